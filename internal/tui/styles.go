package tui

import (
	"github.com/charmbracelet/lipgloss"
)

// Theme defines the color palette for the TUI.
type Theme struct {
	Primary    lipgloss.AdaptiveColor
	Secondary  lipgloss.AdaptiveColor
	Success    lipgloss.AdaptiveColor
	Warning    lipgloss.AdaptiveColor
	Error      lipgloss.AdaptiveColor
	Muted      lipgloss.AdaptiveColor
	Background lipgloss.AdaptiveColor
	Foreground lipgloss.AdaptiveColor
	Border     lipgloss.AdaptiveColor
}

// DefaultTheme returns the default opps theme.
func DefaultTheme() Theme {
	return Theme{
		Primary:    lipgloss.AdaptiveColor{Light: "#0b7a75", Dark: "#5fd3bc"},
		Secondary:  lipgloss.AdaptiveColor{Light: "#5f6368", Dark: "#9aa0a6"},
		Success:    lipgloss.AdaptiveColor{Light: "#1e8e3e", Dark: "#81c995"},
		Warning:    lipgloss.AdaptiveColor{Light: "#b06000", Dark: "#fdd663"},
		Error:      lipgloss.AdaptiveColor{Light: "#d93025", Dark: "#f28b82"},
		Muted:      lipgloss.AdaptiveColor{Light: "#80868b", Dark: "#6e7681"},
		Background: lipgloss.AdaptiveColor{Light: "#ffffff", Dark: "#1f1f1f"},
		Foreground: lipgloss.AdaptiveColor{Light: "#202124", Dark: "#e8eaed"},
		Border:     lipgloss.AdaptiveColor{Light: "#dadce0", Dark: "#3c4043"},
	}
}

// Styles holds the styled components for the browse screen.
type Styles struct {
	theme Theme

	Title   lipgloss.Style
	Body    lipgloss.Style
	Muted   lipgloss.Style
	Bold    lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style

	// Filter bar
	Chip       lipgloss.Style // an active filter
	ChipEmpty  lipgloss.Style // an unset filter
	Prompt     lipgloss.Style
	Projection lipgloss.Style // marks locally projected results

	// Result list
	Row      lipgloss.Style
	RowTitle lipgloss.Style
	Badge    lipgloss.Style
	Skeleton lipgloss.Style

	// Footer
	StatusBar lipgloss.Style
	Key       lipgloss.Style
}

// NewStyles creates a new Styles with the default theme.
func NewStyles() *Styles {
	return NewStylesWithTheme(DefaultTheme())
}

// NewStylesWithTheme creates a new Styles with a custom theme.
func NewStylesWithTheme(theme Theme) *Styles {
	s := &Styles{theme: theme}

	s.Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.Primary)
	s.Body = lipgloss.NewStyle().
		Foreground(theme.Foreground)
	s.Muted = lipgloss.NewStyle().
		Foreground(theme.Muted)
	s.Bold = lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.Foreground)
	s.Warning = lipgloss.NewStyle().
		Foreground(theme.Warning)
	s.Error = lipgloss.NewStyle().
		Foreground(theme.Error).
		Bold(true)

	s.Chip = lipgloss.NewStyle().
		Foreground(theme.Primary).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(theme.Primary).
		Padding(0, 1)
	s.ChipEmpty = s.Chip.
		Foreground(theme.Muted).
		BorderForeground(theme.Border)
	s.Prompt = lipgloss.NewStyle().
		Foreground(theme.Primary).
		Bold(true)
	s.Projection = lipgloss.NewStyle().
		Foreground(theme.Warning).
		Italic(true)

	s.Row = lipgloss.NewStyle().
		PaddingLeft(2)
	s.RowTitle = lipgloss.NewStyle().
		Foreground(theme.Foreground).
		Bold(true)
	s.Badge = lipgloss.NewStyle().
		Foreground(theme.Secondary)
	s.Skeleton = lipgloss.NewStyle().
		Foreground(theme.Border)

	s.StatusBar = lipgloss.NewStyle().
		Foreground(theme.Muted).
		BorderTop(true).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(theme.Border)
	s.Key = lipgloss.NewStyle().
		Foreground(theme.Primary).
		Bold(true)

	return s
}

// Theme returns the current theme.
func (s *Styles) Theme() Theme {
	return s.theme
}

// RenderKeyHelp renders "key label" pairs for the footer.
func (s *Styles) RenderKeyHelp(pairs ...[2]string) string {
	out := ""
	for i, p := range pairs {
		if i > 0 {
			out += s.Muted.Render("  ")
		}
		out += s.Key.Render(p[0]) + " " + s.Muted.Render(p[1])
	}
	return out
}
