package tui

import (
	"errors"

	"github.com/charmbracelet/huh"
)

// ErrNoOptions is returned by Select when there is nothing to choose.
var ErrNoOptions = errors.New("nothing to choose from")

// Confirm shows a yes/no confirmation prompt.
func Confirm(message string, defaultValue bool) (bool, error) {
	result := defaultValue
	err := huh.NewConfirm().
		Title(message).
		Affirmative("Yes").
		Negative("No").
		Value(&result).
		Run()
	if err != nil {
		return defaultValue, err
	}
	return result, nil
}

// SelectOption represents an option in a select prompt.
type SelectOption struct {
	Value       string
	Label       string
	Description string
}

// Select shows a single-select prompt and returns the chosen Value.
// Options with a Description render it after the label.
func Select(title string, options []SelectOption) (string, error) {
	if len(options) == 0 {
		return "", ErrNoOptions
	}

	var result string
	err := huh.NewSelect[string]().
		Title(title).
		Options(huhOptions(options)...).
		Height(min(len(options)+2, 12)).
		Filtering(len(options) > 8).
		Value(&result).
		Run()
	return result, err
}

func huhOptions(options []SelectOption) []huh.Option[string] {
	out := make([]huh.Option[string], len(options))
	for i, opt := range options {
		label := opt.Label
		if opt.Description != "" {
			label += "  " + opt.Description
		}
		out[i] = huh.NewOption(label, opt.Value)
	}
	return out
}

// IsAborted reports whether err came from the user dismissing a prompt.
func IsAborted(err error) bool {
	return errors.Is(err, huh.ErrUserAborted)
}
