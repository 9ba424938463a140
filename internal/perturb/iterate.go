package perturb

import (
	"context"
	"sync/atomic"

	"github.com/agbru/deepzoom/internal/compute"
	apperrors "github.com/agbru/deepzoom/internal/errors"
	"github.com/agbru/deepzoom/internal/precision"
	"github.com/agbru/deepzoom/internal/probe"
)

// DefaultBatchIterations is the number of orbit indices one batch covers.
const DefaultBatchIterations = 500

// IterateParams describes one batch.
type IterateParams struct {
	Width, Height int
	// MaxIter is the iteration cap of the whole render.
	MaxIter int
	// ProbeLen is the number of orbit indices this batch covers.
	ProbeLen int
	// IterOffset is the first orbit index of this batch.
	IterOffset int
}

// BatchStats summarizes a finished batch.
type BatchStats struct {
	// End is the orbit index the next batch starts at.
	End int
	// Running counts pixels still bounded after the batch.
	Running int
}

// Iterate advances every running pixel of grid over orbit indices
// [IterOffset, IterOffset+ProbeLen), clipped to MaxIter and to the orbit's
// span. Escaped pixels are skipped. Because the grid keeps each pixel's
// δ and δ' between calls, any split of the index range into batches gives
// the same results as a single batch.
//
// orbit may be nil for raw tiers.
func Iterate(ctx context.Context, dev compute.Device, grid *Grid, orbit *probe.Orbit, res *Results, p IterateParams) (BatchStats, error) {
	if p.Width != grid.Width || p.Height != grid.Height || res.Len() != grid.Width*grid.Height {
		return BatchStats{}, apperrors.ValidationError{Field: "params", Message: "grid, results and params dimensions differ"}
	}
	if p.IterOffset < 0 || p.ProbeLen < 0 {
		return BatchStats{}, apperrors.ValidationError{Field: "params", Message: "negative batch bounds"}
	}
	span := p.MaxIter
	if grid.Tier().Strategy() == precision.Perturbation {
		if orbit == nil {
			return BatchStats{}, apperrors.ValidationError{Field: "orbit", Message: "probed tiers need an orbit"}
		}
		span = min(span, orbit.Span())
	}
	from := p.IterOffset
	to := min(from+p.ProbeLen, span)
	if to <= from {
		return BatchStats{End: max(from, span), Running: res.Running()}, nil
	}

	ref := referenceOf(orbit)
	var running atomic.Int64
	err := dev.Dispatch(ctx, p.Width, p.Height, func(x, y int) {
		i := y*p.Width + x
		if res.Step[i] != StepRunning {
			return
		}
		if grid.st.run(i, &ref, from, to, res) {
			running.Add(1)
		}
	})
	if err != nil {
		return BatchStats{}, err
	}
	return BatchStats{End: to, Running: int(running.Load())}, nil
}

// Span returns the number of orbit indices a render with maxIter has
// available in tier.
func Span(tier precision.Tier, orbit *probe.Orbit, maxIter int) int {
	if tier.Strategy() == precision.Direct || orbit == nil {
		return maxIter
	}
	return min(maxIter, orbit.Span())
}
