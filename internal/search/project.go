package search

import (
	"strings"

	"golang.org/x/text/cases"
)

// Matches applies the endpoint's filter predicate to a single item.
// Empty filter fields match everything.
func Matches(item Item, f FilterState) bool {
	return newMatcher(f).match(item)
}

// matcher holds a case folder, which is stateful and must not be shared
// between goroutines, along with the folded search needle.
type matcher struct {
	f      FilterState
	folder cases.Caser
	needle string
}

func newMatcher(f FilterState) *matcher {
	m := &matcher{f: f, folder: cases.Fold()}
	if f.SearchText != "" {
		m.needle = m.folder.String(f.SearchText)
	}
	return m
}

func (m *matcher) match(item Item) bool {
	if m.f.Category != "" && item.Category != m.f.Category {
		return false
	}
	if m.f.Status != "" && item.Status != m.f.Status {
		return false
	}
	if m.needle == "" {
		return true
	}
	return strings.Contains(m.folder.String(item.Title), m.needle) ||
		strings.Contains(m.folder.String(item.Description), m.needle)
}

// Project derives a provisional page for next from a previously fetched
// page by filtering its items locally.
//
// The local item list does not know the global page boundaries, so the
// result is always presented as page 1 of its own items.
func Project(prev ResultPage, next FilterState) ResultPage {
	m := newMatcher(next)
	items := make([]Item, 0, len(prev.Items))
	for _, it := range prev.Items {
		if m.match(it) {
			items = append(items, it.clone())
		}
	}
	return NewResultPage(items, len(items), prev.PageSize, 1)
}
