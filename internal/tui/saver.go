package tui

import (
	"context"

	"github.com/agbru/deepzoom/internal/pipeline"
	"github.com/agbru/deepzoom/internal/settings"
	"github.com/agbru/deepzoom/internal/sink"
)

// Renderer renders one request to completion.
type Renderer interface {
	RenderSync(ctx context.Context, r pipeline.Request) (pipeline.Frame, error)
}

// PNGSaver returns a Saver that renders with r and writes the image to
// path, with the view's settings in a sidecar next to it.
func PNGSaver(r Renderer, path string) Saver {
	return func(ctx context.Context, req pipeline.Request) (string, error) {
		f, err := r.RenderSync(ctx, req)
		if err != nil {
			return "", err
		}
		out := sink.NewPNG(path, sink.WithSettings(settings.FromRequest(req)))
		if err := out.Present(ctx, f); err != nil {
			return "", err
		}
		return out.Path(), nil
	}
}
