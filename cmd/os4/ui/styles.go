// Package ui provides the styling and the bubbletea model of the os4
// interactive calculator.
package ui

import (
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Color palette. The LCD colors mimic the liquid crystal display of the
// calculator.
var (
	LightBackground = lipgloss.Color("#f4f5f6")
	LightForeground = lipgloss.Color("#1c1c1c")
	LightPrimary    = lipgloss.Color("#5b4636") // HP brown
	LightMuted      = lipgloss.Color("#8a8f98")
	LightLCD        = lipgloss.Color("#c8ccb4")
	LightLCDText    = lipgloss.Color("#20241a")

	DarkBackground = lipgloss.Color("#1b1a19")
	DarkForeground = lipgloss.Color("#f2f2f2")
	DarkPrimary    = lipgloss.Color("#d9a441") // gold shift key
	DarkMuted      = lipgloss.Color("#6c6f75")
	DarkLCD        = lipgloss.Color("#2f3327")
	DarkLCDText    = lipgloss.Color("#dfe6c8")

	Destructive = lipgloss.Color("#e53935")
	Shift       = lipgloss.Color("#f0a020")
	Info        = lipgloss.Color("#2196F3")
)

// Theme holds the current color scheme.
type Theme struct {
	Background lipgloss.Color
	Foreground lipgloss.Color
	Primary    lipgloss.Color
	Muted      lipgloss.Color
	LCD        lipgloss.Color
	LCDText    lipgloss.Color
	IsDark     bool
}

// LightTheme returns the light mode theme.
func LightTheme() Theme {
	return Theme{
		Background: LightBackground,
		Foreground: LightForeground,
		Primary:    LightPrimary,
		Muted:      LightMuted,
		LCD:        LightLCD,
		LCDText:    LightLCDText,
	}
}

// DarkTheme returns the dark mode theme.
func DarkTheme() Theme {
	return Theme{
		Background: DarkBackground,
		Foreground: DarkForeground,
		Primary:    DarkPrimary,
		Muted:      DarkMuted,
		LCD:        DarkLCD,
		LCDText:    DarkLCDText,
		IsDark:     true,
	}
}

// DetectTheme picks dark mode from COLORFGBG or OS4_DARK_MODE, light
// otherwise.
func DetectTheme() Theme {
	if colorTerm := os.Getenv("COLORFGBG"); colorTerm != "" {
		// "foreground;background"; 0-6 and 8 are dark backgrounds
		parts := strings.Split(colorTerm, ";")
		if len(parts) == 2 {
			if bg, err := strconv.Atoi(parts[1]); err == nil && ((bg >= 0 && bg <= 6) || bg == 8) {
				return DarkTheme()
			}
		}
	}
	if os.Getenv("OS4_DARK_MODE") == "1" {
		return DarkTheme()
	}
	return LightTheme()
}

// Styles holds the styled components of the calculator view.
type Styles struct {
	Theme Theme

	Header lipgloss.Style
	Footer lipgloss.Style

	LCD         lipgloss.Style
	Annunciator lipgloss.Style
	ShiftOn     lipgloss.Style

	History lipgloss.Style
	Key     lipgloss.Style
	Error   lipgloss.Style
	Muted   lipgloss.Style
}

// NewStyles creates a new Styles instance with the given theme.
func NewStyles(theme Theme) Styles {
	return Styles{
		Theme: theme,

		Header: lipgloss.NewStyle().
			Background(theme.Primary).
			Foreground(lipgloss.Color("#ffffff")).
			Padding(0, 2).
			Bold(true),

		Footer: lipgloss.NewStyle().
			Foreground(theme.Muted).
			Padding(0, 2),

		LCD: lipgloss.NewStyle().
			Background(theme.LCD).
			Foreground(theme.LCDText).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(theme.Primary).
			Padding(0, 1).
			Width(LCDWidth + 2),

		Annunciator: lipgloss.NewStyle().
			Foreground(theme.Muted),

		ShiftOn: lipgloss.NewStyle().
			Foreground(Shift).
			Bold(true),

		History: lipgloss.NewStyle().
			Padding(0, 1),

		Key: lipgloss.NewStyle().
			Foreground(theme.Primary).
			Bold(true),

		Error: lipgloss.NewStyle().
			Foreground(Destructive).
			Bold(true),

		Muted: lipgloss.NewStyle().
			Foreground(theme.Muted),
	}
}

// DefaultStyles returns styles for the detected theme.
func DefaultStyles() Styles {
	return NewStyles(DetectTheme())
}

// LCDWidth is the number of characters of the display. Catalog lines are
// wider than the 12 characters of the real display.
const LCDWidth = 24
