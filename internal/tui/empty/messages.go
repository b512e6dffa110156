// Package empty provides empty state messages for TUI components.
package empty

import "github.com/oppfinder/opps/internal/search"

// Message represents an empty state message with optional hints.
type Message struct {
	Title   string
	Body    string
	Hints   []string
	Command string // suggested command to run
}

// NoMatches returns the empty state for a filter with no results.
func NoMatches(f search.FilterState) Message {
	msg := Message{Title: "No opportunities match these filters."}
	if f.SameFilter(search.DefaultFilter()) {
		msg.Body = "There are no opportunities listed right now."
		return msg
	}
	if f.SearchText != "" {
		msg.Hints = append(msg.Hints, "Try a shorter search")
	}
	msg.Hints = append(msg.Hints, "Press x to clear all filters")
	return msg
}

// LoadFailed returns the state shown when the first fetch for a filter
// failed and nothing is cached.
func LoadFailed(err error) Message {
	msg := Message{
		Title: "Could not load results",
		Hints: []string{"Press r to retry."},
	}
	if err != nil {
		msg.Title += ": " + err.Error()
	}
	return msg
}

// NoViews returns the empty state for the saved views list.
func NoViews() Message {
	return Message{
		Title:   "No saved views",
		Body:    "Save a filter combination to reopen it by name.",
		Command: "opps views save <name> --category <c>",
	}
}
