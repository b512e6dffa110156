// Package search provides the result cache and pagination controller behind
// the opportunity list: filter state, query keys, the cache store, optimistic
// projection, fetch orchestration, prefetching, and URL synchronization.
package search

import "strings"

// FilterState describes what the user wants to see.
// It is a value type: every With* method returns a new FilterState.
type FilterState struct {
	SearchText string `json:"search,omitempty"`
	Category   string `json:"category,omitempty"`
	Status     string `json:"status,omitempty"`
	Page       int    `json:"page"`
}

// DefaultFilter returns the unfiltered first page.
func DefaultFilter() FilterState {
	return FilterState{Page: 1}
}

// WithCategory returns a copy with the category set and the page reset to 1.
func (f FilterState) WithCategory(category string) FilterState {
	f.Category = category
	f.Page = 1
	return f
}

// WithStatus returns a copy with the status set and the page reset to 1.
func (f FilterState) WithStatus(status string) FilterState {
	f.Status = status
	f.Page = 1
	return f
}

// WithSearchText returns a copy with the search text set and the page reset to 1.
func (f FilterState) WithSearchText(text string) FilterState {
	f.SearchText = text
	f.Page = 1
	return f
}

// WithPage returns a copy pointing at page n. Pages below 1 clamp to 1.
func (f FilterState) WithPage(n int) FilterState {
	f.Page = max(n, 1)
	return f
}

// Normalize trims surrounding whitespace from the text fields and clamps
// the page. Two filters that only differ in padding normalize equal.
func (f FilterState) Normalize() FilterState {
	f.SearchText = strings.TrimSpace(f.SearchText)
	f.Category = strings.TrimSpace(f.Category)
	f.Status = strings.TrimSpace(f.Status)
	f.Page = max(f.Page, 1)
	return f
}

// IsZero reports whether no filter field is set and the page is the first.
func (f FilterState) IsZero() bool {
	return f.SearchText == "" && f.Category == "" && f.Status == "" && f.Page <= 1
}

// SameFilter reports whether f and other select the same records,
// ignoring which page is shown.
func (f FilterState) SameFilter(other FilterState) bool {
	return f.SearchText == other.SearchText &&
		f.Category == other.Category &&
		f.Status == other.Status
}

// Key returns the QueryKey for f.
func (f FilterState) Key() QueryKey {
	return Encode(f)
}
