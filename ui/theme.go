// Package ui is the terminal front end: a bubbletea model around the
// detector service, with a pure Render of the screen state.
package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
)

type ThemeName string

const (
	ThemeLight ThemeName = "light"
	ThemeDark  ThemeName = "dark"
)

// Theme holds the colors of one scheme.
type Theme struct {
	Name       ThemeName
	Background lipgloss.Color
	Foreground lipgloss.Color
	Button     lipgloss.Color
	Muted      lipgloss.Color
	Spam       lipgloss.Color
	Ham        lipgloss.Color
	Warning    lipgloss.Color
}

func LightTheme() Theme {
	return Theme{
		Name:       ThemeLight,
		Background: lipgloss.Color("#f0f0f0"),
		Foreground: lipgloss.Color("#000000"),
		Button:     lipgloss.Color("#0078d7"),
		Muted:      lipgloss.Color("#808080"),
		Spam:       lipgloss.Color("#e53935"),
		Ham:        lipgloss.Color("#2e7d32"),
		Warning:    lipgloss.Color("#b8860b"),
	}
}

func DarkTheme() Theme {
	return Theme{
		Name:       ThemeDark,
		Background: lipgloss.Color("#1e1e1e"),
		Foreground: lipgloss.Color("#ffffff"),
		Button:     lipgloss.Color("#3a86ff"),
		Muted:      lipgloss.Color("#9e9e9e"),
		Spam:       lipgloss.Color("#ff5252"),
		Ham:        lipgloss.Color("#32cd32"),
		Warning:    lipgloss.Color("#ffc107"),
	}
}

// ThemeFor returns the theme called name; anything unknown is light.
func ThemeFor(name ThemeName) Theme {
	if name == ThemeDark {
		return DarkTheme()
	}
	return LightTheme()
}

// Toggle flips between light and dark.
func Toggle(name ThemeName) ThemeName {
	if name == ThemeDark {
		return ThemeLight
	}
	return ThemeDark
}

// DetectTheme picks dark when SPAMDETECT_DARK_MODE=1.
func DetectTheme() ThemeName {
	if os.Getenv("SPAMDETECT_DARK_MODE") == "1" {
		return ThemeDark
	}
	return ThemeLight
}
