package search

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"

	"github.com/go-playground/validator"
)

// DefaultPageSize is the page size requested when none is configured.
const DefaultPageSize = 20

// Item is an opaque remote record. Only the fields used by local filtering
// are typed; everything else the endpoint sends is kept in Extra.
type Item struct {
	ID          string         `json:"id" validate:"required"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Category    string         `json:"category"`
	Status      string         `json:"status"`
	Extra       map[string]any `json:"-"`
}

var itemFields = []string{"id", "title", "description", "category", "status"}

// UnmarshalJSON decodes the typed fields and preserves unknown ones.
func (it *Item) UnmarshalJSON(data []byte) error {
	type plain Item
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	var all map[string]any
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for _, f := range itemFields {
		delete(all, f)
	}
	if len(all) > 0 {
		p.Extra = all
	}
	*it = Item(p)
	return nil
}

// MarshalJSON encodes the typed fields plus Extra.
func (it Item) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(it.Extra)+len(itemFields))
	maps.Copy(out, it.Extra)
	out["id"] = it.ID
	out["title"] = it.Title
	out["description"] = it.Description
	out["category"] = it.Category
	out["status"] = it.Status
	return json.Marshal(out)
}

// clone returns a copy of it whose Extra map is not shared.
func (it Item) clone() Item {
	if it.Extra != nil {
		it.Extra = maps.Clone(it.Extra)
	}
	return it
}

// ResultPage is one page of remote results with its pagination metadata.
type ResultPage struct {
	Items       []Item `json:"items" validate:"dive"`
	TotalCount  int    `json:"totalCount" validate:"gte=0"`
	PageSize    int    `json:"pageSize" validate:"gte=1"`
	CurrentPage int    `json:"currentPage" validate:"gte=1"`
	TotalPages  int    `json:"totalPages" validate:"gte=0"`
}

// NewResultPage builds a page with TotalPages derived from totalCount and
// pageSize, and CurrentPage clamped into [1, TotalPages] when there is at
// least one page.
func NewResultPage(items []Item, totalCount, pageSize, currentPage int) ResultPage {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	totalCount = max(totalCount, 0)
	totalPages := (totalCount + pageSize - 1) / pageSize

	switch {
	case totalPages == 0:
		currentPage = 1
	case currentPage < 1:
		currentPage = 1
	case currentPage > totalPages:
		currentPage = totalPages
	}

	return ResultPage{
		Items:       items,
		TotalCount:  totalCount,
		PageSize:    pageSize,
		CurrentPage: currentPage,
		TotalPages:  totalPages,
	}
}

// Normalized re-derives the pagination fields of p.
func (p ResultPage) Normalized() ResultPage {
	return NewResultPage(p.Items, p.TotalCount, p.PageSize, p.CurrentPage)
}

// HasPrev reports whether a page precedes the current one.
func (p ResultPage) HasPrev() bool { return p.CurrentPage > 1 }

// HasNext reports whether a page follows the current one.
func (p ResultPage) HasNext() bool { return p.CurrentPage < p.TotalPages }

// clone returns a deep copy so stored pages never alias caller slices.
func (p ResultPage) clone() ResultPage {
	if p.Items != nil {
		items := slices.Clone(p.Items)
		for i := range items {
			items[i] = items[i].clone()
		}
		p.Items = items
	}
	return p
}

var validate = validator.New()

// Validate checks the structural constraints of a decoded page.
func (p ResultPage) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("invalid result page: %w", err)
	}
	return nil
}
