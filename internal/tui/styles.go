package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/agbru/deepzoom/internal/ui"
)

// Style variables for the explorer chrome.
// Initialized from the ui theme system via initTUIStyles().
var (
	headerStyle        lipgloss.Style
	titleStyle         lipgloss.Style
	versionStyle       lipgloss.Style
	labelStyle         lipgloss.Style
	valueStyle         lipgloss.Style
	footerKeyStyle     lipgloss.Style
	footerDescStyle    lipgloss.Style
	statusRunningStyle lipgloss.Style
	statusIdleStyle    lipgloss.Style
	statusErrorStyle   lipgloss.Style
	messageStyle       lipgloss.Style
	cpuSparklineStyle  lipgloss.Style
)

func init() {
	initTUIStyles()
}

// initTUIStyles rebuilds all styles from the current ui theme.
// Called at package init and again from Run() after InitTheme has been invoked.
func initTUIStyles() {
	t := ui.CurrentExplorerTheme()

	headerStyle = lipgloss.NewStyle().
		Foreground(t.Text).
		Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(t.Accent)

	versionStyle = lipgloss.NewStyle().
		Foreground(t.Dim)

	labelStyle = lipgloss.NewStyle().
		Foreground(t.Dim)

	valueStyle = lipgloss.NewStyle().
		Foreground(t.Accent).
		Bold(true)

	footerKeyStyle = lipgloss.NewStyle().
		Foreground(t.Accent).
		Bold(true)

	footerDescStyle = lipgloss.NewStyle().
		Foreground(t.Dim)

	statusRunningStyle = lipgloss.NewStyle().
		Foreground(t.Warning).
		Bold(true)

	statusIdleStyle = lipgloss.NewStyle().
		Foreground(t.Success).
		Bold(true)

	statusErrorStyle = lipgloss.NewStyle().
		Foreground(t.Error).
		Bold(true)

	messageStyle = lipgloss.NewStyle().
		Foreground(t.Text)

	cpuSparklineStyle = lipgloss.NewStyle().
		Foreground(t.Border)
}
