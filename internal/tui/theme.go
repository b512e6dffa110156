// Package tui provides terminal user interface components.
package tui

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"
)

// ThemeFileName is the palette file inside the opps config directory.
const ThemeFileName = "theme.yaml"

// ResolveTheme loads a theme with the following precedence:
//  1. NO_COLOR set: NoColorTheme
//  2. OPPS_THEME: path to a palette file
//  3. $XDG_CONFIG_HOME/opps/theme.yaml
//  4. DefaultTheme
//
// The palette file uses terminal-theme key names, so an existing theme
// can be symlinked in:
//
//	ln -s ~/.config/omarchy/current/theme/opps.yaml ~/.config/opps/theme.yaml
func ResolveTheme() Theme {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return NoColorTheme()
	}

	if path := os.Getenv("OPPS_THEME"); path != "" {
		if theme, err := LoadThemeFromFile(path); err == nil {
			return theme
		}
	}

	if theme, err := LoadThemeFromFile(userThemePath()); err == nil {
		return theme
	}
	return DefaultTheme()
}

// NoColorTheme returns a theme with empty colors. Lipgloss renders empty
// colors as plain text.
func NoColorTheme() Theme {
	empty := lipgloss.AdaptiveColor{}
	return Theme{
		Primary:    empty,
		Secondary:  empty,
		Success:    empty,
		Warning:    empty,
		Error:      empty,
		Muted:      empty,
		Background: empty,
		Foreground: empty,
		Border:     empty,
	}
}

func userThemePath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "opps", ThemeFileName)
}

// LoadThemeFromFile reads a YAML palette (a flat map of color names to hex
// values). Entries that are not hex colors are ignored.
func LoadThemeFromFile(path string) (Theme, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path from env or config dir
	if err != nil {
		return Theme{}, err
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Theme{}, fmt.Errorf("parsing theme %s: %w", path, err)
	}

	colors := make(map[string]string, len(raw))
	for k, v := range raw {
		s, ok := v.(string)
		if !ok {
			continue
		}
		s = strings.TrimSpace(s)
		if isValidHexColor(s) {
			colors[strings.ToLower(k)] = s
		}
	}
	return mapColorsToTheme(colors), nil
}

// isValidHexColor reports whether s is #RGB or #RRGGBB.
func isValidHexColor(s string) bool {
	hex, ok := strings.CutPrefix(s, "#")
	if !ok || (len(hex) != 3 && len(hex) != 6) {
		return false
	}
	for _, c := range hex {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

// mapColorsToTheme maps palette names to Theme roles. Palettes are
// assumed dark, so only the Dark variants change.
//
//	accent, color4   → Primary
//	color7           → Secondary
//	color2           → Success
//	color3           → Warning
//	color1           → Error
//	color8, color0   → Muted, Border
//	background       → Background
//	foreground       → Foreground
func mapColorsToTheme(colors map[string]string) Theme {
	defaults := DefaultTheme()

	pick := func(fallback lipgloss.AdaptiveColor, keys ...string) lipgloss.AdaptiveColor {
		for _, k := range keys {
			if v, ok := colors[k]; ok {
				return lipgloss.AdaptiveColor{Light: fallback.Light, Dark: v}
			}
		}
		return fallback
	}

	return Theme{
		Primary:    pick(defaults.Primary, "accent", "color4"),
		Secondary:  pick(defaults.Secondary, "color7"),
		Success:    pick(defaults.Success, "color2"),
		Warning:    pick(defaults.Warning, "color3"),
		Error:      pick(defaults.Error, "color1"),
		Muted:      pick(defaults.Muted, "color8", "color0"),
		Background: pick(defaults.Background, "background"),
		Foreground: pick(defaults.Foreground, "foreground"),
		Border:     pick(defaults.Border, "color8", "color0"),
	}
}
