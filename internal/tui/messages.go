package tui

import (
	"time"

	"github.com/agbru/deepzoom/internal/pipeline"
	"github.com/agbru/deepzoom/internal/sysmon"
)

// FrameMsg carries a finished preview frame.
type FrameMsg struct {
	Frame pipeline.Frame
}

// TickMsg drives status polling and the input debouncer.
type TickMsg time.Time

// SysStatsMsg carries a host resource sample.
type SysStatsMsg sysmon.Stats

// SavedMsg reports the outcome of a full-resolution save.
type SavedMsg struct {
	Path    string
	Elapsed time.Duration
	Err     error
}

// RunDoneMsg is sent when the preview compute loop exits.
type RunDoneMsg struct {
	Err error
}

// ContextCancelledMsg is sent when the parent context ends.
type ContextCancelledMsg struct {
	Err error
}
