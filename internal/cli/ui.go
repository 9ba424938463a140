//go:generate mockgen -source=ui.go -destination=mocks/mock_ui.go -package=mocks

package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/briandowns/spinner"

	"github.com/agbru/deepzoom/internal/format"
	"github.com/agbru/deepzoom/internal/pipeline"
	"github.com/agbru/deepzoom/internal/ui"
)

const (
	// ProgressRefreshRate defines the refresh frequency of the progress line.
	ProgressRefreshRate = 200 * time.Millisecond
	// ProgressBarWidth defines the width in characters of the progress bar.
	ProgressBarWidth = 30
)

// Spinner is an interface that abstracts the behavior of a terminal spinner.
// This decouples DisplayProgress from a specific spinner implementation.
type Spinner interface {
	// Start begins the spinner animation.
	Start()
	// Stop halts the spinner animation.
	Stop()
	// UpdateSuffix sets the text that is displayed after the spinner.
	UpdateSuffix(suffix string)
}

// StatusSource is polled for progress; *pipeline.Coordinator implements it.
type StatusSource interface {
	Status() pipeline.Status
}

// realSpinner adapts spinner.Spinner to the Spinner interface.
type realSpinner struct {
	s *spinner.Spinner
}

func (rs *realSpinner) Start() { rs.s.Start() }

func (rs *realSpinner) Stop() { rs.s.Stop() }

func (rs *realSpinner) UpdateSuffix(suffix string) {
	rs.s.Lock()
	rs.s.Suffix = suffix
	rs.s.Unlock()
}

var newSpinner = func(options ...spinner.Option) Spinner {
	s := spinner.New(spinner.CharSets[11], ProgressRefreshRate, options...)
	return &realSpinner{s}
}

// DisplayProgress shows a spinner with the render's stage, progress bar and
// ETA until done is closed or ctx ends. Only statuses of generation gen or
// later are shown.
func DisplayProgress(ctx context.Context, src StatusSource, gen uint64, done <-chan struct{}, out io.Writer) {
	s := newSpinner(spinner.WithWriter(out))
	eta := format.NewProgressWithETA()
	update := func() {
		st := src.Status()
		if st.Generation < gen {
			return
		}
		progress, remaining := eta.Update(st.Progress)
		s.UpdateSuffix(FormatStatus(st, progress, remaining))
	}

	s.Start()
	defer s.Stop()
	ticker := time.NewTicker(ProgressRefreshRate)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			update()
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			update()
		}
	}
}

// FormatStatus renders one progress line, e.g.
// " iterating [████░░] 42.0% ETA: 3s (probed-64)".
func FormatStatus(st pipeline.Status, progress float64, eta time.Duration) string {
	return fmt.Sprintf(" %s%-9s%s %s %s(%s)%s",
		ui.ColorPrimary(), st.State, ui.ColorReset(),
		format.FormatProgressBarWithETA(progress, eta, ProgressBarWidth),
		ui.ColorSecondary(), st.Tier, ui.ColorReset())
}
