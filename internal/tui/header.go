package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/agbru/deepzoom/internal/format"
	"github.com/agbru/deepzoom/internal/pipeline"
)

// HeaderModel renders the top bar: title, version, view and compute state.
type HeaderModel struct {
	version string
	width   int
}

// NewHeaderModel creates a new header.
func NewHeaderModel(version string) HeaderModel {
	return HeaderModel{version: version}
}

// SetWidth updates the available width.
func (h *HeaderModel) SetWidth(w int) {
	h.width = w
}

// View renders the header for the current request, the latest compute
// status and the last frame shown.
func (h HeaderModel) View(req pipeline.Request, st pipeline.Status, last *pipeline.Frame) string {
	titleText := "deepzoom"
	if h.version != "" && h.version != "dev" {
		titleText += " " + h.version
	}
	pipe := versionStyle.Render(" | ")

	parts := []string{
		titleStyle.Render(titleText),
		labelStyle.Render("zoom ") + valueStyle.Render(format.FormatZoom(req.Viewport.Zoom)),
		labelStyle.Render("iter ") + valueStyle.Render(format.FormatNumber(int64(req.MaxIter))),
		labelStyle.Render("tier ") + valueStyle.Render(tierLabel(req, st, last)),
		stateLabel(st),
	}
	if last != nil {
		parts = append(parts, labelStyle.Render("frame ")+valueStyle.Render(format.FormatExecutionDuration(last.Elapsed)))
	}
	row := strings.Join(parts, pipe)
	if gap := h.width - 2 - lipgloss.Width(row); gap > 0 {
		row += strings.Repeat(" ", gap)
	}
	return headerStyle.Render(row)
}

// tierLabel shows the requested tier and, once known, the one in use.
func tierLabel(req pipeline.Request, st pipeline.Status, last *pipeline.Frame) string {
	used := st.Tier
	if st.State == pipeline.Idle && last != nil {
		used = last.Tier
	}
	if used == req.Tier || !used.Valid() {
		return req.Tier.String()
	}
	return fmt.Sprintf("%s→%s", req.Tier, used)
}

func stateLabel(st pipeline.Status) string {
	switch {
	case st.Err != nil:
		return statusErrorStyle.Render("error")
	case st.State == pipeline.Idle:
		return statusIdleStyle.Render("idle")
	case st.State == pipeline.Iterating:
		return statusRunningStyle.Render(fmt.Sprintf("iterating %3.0f%%", 100*st.Progress))
	default:
		return statusRunningStyle.Render(st.State.String())
	}
}
