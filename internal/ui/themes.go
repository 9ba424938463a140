package ui

import (
	"os"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// Theme is a set of ANSI escape codes for CLI output.
type Theme struct {
	Name      string
	Primary   string
	Secondary string
	Success   string
	Warning   string
	Error     string
	Info      string
	Bold      string
	Underline string
	Reset     string
}

var (
	// DarkTheme suits dark terminal backgrounds.
	DarkTheme = Theme{
		Name:      "dark",
		Primary:   "\033[38;5;39m",  // Bright blue
		Secondary: "\033[38;5;245m", // Grey
		Success:   "\033[38;5;82m",  // Bright green
		Warning:   "\033[38;5;220m", // Yellow
		Error:     "\033[38;5;196m", // Red
		Info:      "\033[38;5;141m", // Purple
		Bold:      "\033[1m",
		Underline: "\033[4m",
		Reset:     "\033[0m",
	}

	// LightTheme suits light terminal backgrounds.
	LightTheme = Theme{
		Name:      "light",
		Primary:   "\033[38;5;27m",  // Dark blue
		Secondary: "\033[38;5;240m", // Dark grey
		Success:   "\033[38;5;28m",  // Dark green
		Warning:   "\033[38;5;130m", // Orange
		Error:     "\033[38;5;124m", // Dark red
		Info:      "\033[38;5;54m",  // Dark purple
		Bold:      "\033[1m",
		Underline: "\033[4m",
		Reset:     "\033[0m",
	}

	// NoColorTheme disables all color output.
	NoColorTheme = Theme{Name: "none"}

	currentTheme = DarkTheme
	themeMutex   sync.RWMutex
)

// ExplorerTheme holds lipgloss colors for the interactive explorer's chrome.
// The fractal itself is drawn in true color regardless of the theme.
type ExplorerTheme struct {
	Text    lipgloss.TerminalColor
	Border  lipgloss.TerminalColor
	Accent  lipgloss.TerminalColor
	Success lipgloss.TerminalColor
	Warning lipgloss.TerminalColor
	Error   lipgloss.TerminalColor
	Dim     lipgloss.TerminalColor
}

var (
	// DarkExplorerTheme is the default explorer palette.
	DarkExplorerTheme = ExplorerTheme{
		Text:    lipgloss.Color("#E0E0E0"),
		Border:  lipgloss.Color("#3D7BD9"),
		Accent:  lipgloss.Color("#58A6FF"),
		Success: lipgloss.Color("#9ece6a"),
		Warning: lipgloss.Color("#FFB347"),
		Error:   lipgloss.Color("#FF4444"),
		Dim:     lipgloss.Color("#666666"),
	}

	// NoColorExplorerTheme renders chrome in the terminal's default colors.
	NoColorExplorerTheme = ExplorerTheme{
		Text:    lipgloss.NoColor{},
		Border:  lipgloss.NoColor{},
		Accent:  lipgloss.NoColor{},
		Success: lipgloss.NoColor{},
		Warning: lipgloss.NoColor{},
		Error:   lipgloss.NoColor{},
		Dim:     lipgloss.NoColor{},
	}
)

// CurrentExplorerTheme returns the explorer palette matching the active theme.
func CurrentExplorerTheme() ExplorerTheme {
	themeMutex.RLock()
	defer themeMutex.RUnlock()
	if currentTheme.Name == NoColorTheme.Name {
		return NoColorExplorerTheme
	}
	return DarkExplorerTheme
}

// GetCurrentTheme returns the active theme.
func GetCurrentTheme() Theme {
	themeMutex.RLock()
	defer themeMutex.RUnlock()
	return currentTheme
}

// SetCurrentTheme replaces the active theme.
func SetCurrentTheme(t Theme) {
	themeMutex.Lock()
	defer themeMutex.Unlock()
	currentTheme = t
}

// SetTheme activates a theme by name ("dark", "light", "none"). Unknown names
// select the dark theme.
func SetTheme(name string) {
	switch name {
	case LightTheme.Name:
		SetCurrentTheme(LightTheme)
	case NoColorTheme.Name:
		SetCurrentTheme(NoColorTheme)
	default:
		SetCurrentTheme(DarkTheme)
	}
}

// InitTheme selects the startup theme. Colors are disabled when noColor is
// set or the NO_COLOR environment variable exists (https://no-color.org/).
func InitTheme(noColor bool) {
	if _, exists := os.LookupEnv("NO_COLOR"); noColor || exists {
		SetCurrentTheme(NoColorTheme)
		return
	}
	SetCurrentTheme(DarkTheme)
}

// ColorPrimary returns the active primary color code.
func ColorPrimary() string { return GetCurrentTheme().Primary }

// ColorSecondary returns the active secondary color code.
func ColorSecondary() string { return GetCurrentTheme().Secondary }

// ColorSuccess returns the active success color code.
func ColorSuccess() string { return GetCurrentTheme().Success }

// ColorWarning returns the active warning color code.
func ColorWarning() string { return GetCurrentTheme().Warning }

// ColorError returns the active error color code.
func ColorError() string { return GetCurrentTheme().Error }

// ColorInfo returns the active info color code.
func ColorInfo() string { return GetCurrentTheme().Info }

// ColorBold returns the active bold code.
func ColorBold() string { return GetCurrentTheme().Bold }

// ColorUnderline returns the active underline code.
func ColorUnderline() string { return GetCurrentTheme().Underline }

// ColorReset returns the active reset code.
func ColorReset() string { return GetCurrentTheme().Reset }
