package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/agbru/deepzoom/internal/pipeline"
	"github.com/agbru/deepzoom/internal/sysmon"
)

// cpuHistoryLen is the number of CPU samples kept for the sparkline.
const cpuHistoryLen = 20

// StatusBarModel renders host load, the last pipeline error and transient
// messages below the preview.
type StatusBarModel struct {
	stats   sysmon.Stats
	cpu     *History
	message string
	isErr   bool
	width   int
}

// NewStatusBarModel creates an empty status bar.
func NewStatusBarModel() StatusBarModel {
	return StatusBarModel{cpu: NewHistory(cpuHistoryLen)}
}

// SetWidth updates the available width.
func (s *StatusBarModel) SetWidth(w int) { s.width = w }

// UpdateStats records a host sample.
func (s *StatusBarModel) UpdateStats(st sysmon.Stats) {
	s.stats = st
	s.cpu.Add(st.CPUPercent)
}

// SetMessage shows msg until the next one.
func (s *StatusBarModel) SetMessage(msg string, isErr bool) {
	s.message, s.isErr = msg, isErr
}

// Message returns the current message.
func (s StatusBarModel) Message() string { return s.message }

// View renders the bar. A pipeline error takes the message slot.
func (s StatusBarModel) View(st pipeline.Status) string {
	left := " " + cpuSparklineStyle.Render(Sparkline(s.cpu.Values())) + " " + labelStyle.Render(s.stats.String())

	msg, isErr := s.message, s.isErr
	if st.Err != nil {
		msg, isErr = st.Err.Error(), true
	}
	var right string
	switch {
	case msg == "":
	case isErr:
		right = statusErrorStyle.Render(msg)
	default:
		right = messageStyle.Render(msg)
	}

	gap := s.width - lipgloss.Width(left) - lipgloss.Width(right) - 1
	if gap < 1 {
		return left + "  " + right
	}
	return left + strings.Repeat(" ", gap) + right
}
