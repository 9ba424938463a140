//go:generate mockgen -source=request.go -destination=mocks/mock_sink.go -package=mocks

package pipeline

import (
	"context"
	"time"

	"github.com/agbru/deepzoom/internal/coloring"
	apperrors "github.com/agbru/deepzoom/internal/errors"
	"github.com/agbru/deepzoom/internal/geometry"
	"github.com/agbru/deepzoom/internal/precision"
)

// Request is one image request from the interactive side.
type Request struct {
	Viewport geometry.Viewport
	// ProbeOverride places the probe orbit somewhere other than the view
	// center. Nil uses the center.
	ProbeOverride *geometry.Point
	MaxIter       uint32
	// Tier is the requested precision; Auto lets the selector decide, and a
	// tier too shallow for the zoom is upgraded.
	Tier  precision.Tier
	Color coloring.Params
}

// Validate checks the request before any stage runs.
func (r Request) Validate() error {
	if err := r.Viewport.Validate(); err != nil {
		return err
	}
	if r.MaxIter == 0 {
		return apperrors.ValidationError{Field: "max-iter", Message: "must be positive"}
	}
	if r.Tier != precision.Auto && !r.Tier.Valid() {
		return apperrors.ValidationError{Field: "tier", Message: "unknown tier " + r.Tier.String()}
	}
	if r.ProbeOverride != nil && r.ProbeOverride.IsZero() {
		return apperrors.ValidationError{Field: "probe", Message: "override must be set"}
	}
	return r.Color.Validate()
}

// Frame is a finished RGBA image tagged with the generation it belongs to.
type Frame struct {
	Generation    uint64
	Width, Height int
	// Pix holds 8-bit sRGB RGBA pixels, row-major from the top-left corner.
	Pix []byte
	// Tier is the precision the frame was rendered with.
	Tier precision.Tier
	// Upgraded reports that the requested tier was raised for the zoom.
	Upgraded bool
	MaxIter  int
	// Escaped counts pixels that left the escape radius.
	Escaped int
	Elapsed time.Duration
}

// Sink receives finished frames for presentation.
type Sink interface {
	Present(ctx context.Context, f Frame) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, f Frame) error

// Present calls f.
func (f SinkFunc) Present(ctx context.Context, fr Frame) error { return f(ctx, fr) }
