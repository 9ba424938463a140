// Package sink holds render surfaces that receive finished frames: a PNG
// file writer for headless renders and an in-memory surface for tests and
// embedding.
package sink

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"github.com/agbru/deepzoom/internal/pipeline"
	"github.com/agbru/deepzoom/internal/settings"
)

// Image wraps a frame's pixels without copying. Frames carry opaque sRGB
// pixels, so the straight and premultiplied forms coincide.
func Image(f pipeline.Frame) *image.RGBA {
	return &image.RGBA{
		Pix:    f.Pix,
		Stride: 4 * f.Width,
		Rect:   image.Rect(0, 0, f.Width, f.Height),
	}
}

func checkFrame(f pipeline.Frame) error {
	if f.Width <= 0 || f.Height <= 0 || len(f.Pix) != 4*f.Width*f.Height {
		return fmt.Errorf("malformed frame %dx%d with %d bytes", f.Width, f.Height, len(f.Pix))
	}
	return nil
}

// PNG writes each presented frame to a file, replacing it atomically.
type PNG struct {
	path     string
	settings *settings.Document
	logger   zerolog.Logger
}

// PNGOption configures a PNG sink.
type PNGOption func(*PNG)

// WithSettings writes doc to the image's sidecar path with every frame.
func WithSettings(doc settings.Document) PNGOption {
	return func(p *PNG) { p.settings = &doc }
}

// WithLogger sets the sink's logger.
func WithLogger(l zerolog.Logger) PNGOption {
	return func(p *PNG) { p.logger = l.With().Str("component", "png-sink").Logger() }
}

// NewPNG creates a sink writing to path.
func NewPNG(path string, opts ...PNGOption) *PNG {
	p := &PNG{path: path, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Path returns the image path.
func (p *PNG) Path() string { return p.path }

// Present encodes f as PNG.
func (p *PNG) Present(ctx context.Context, f pipeline.Frame) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkFrame(f); err != nil {
		return err
	}
	if dir := filepath.Dir(p.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(p.path), ".deepzoom-*.png")
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := png.Encode(tmp, Image(f)); err != nil {
		tmp.Close()
		return fmt.Errorf("encode png: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	if err := os.Rename(tmp.Name(), p.path); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}

	if p.settings != nil {
		if err := p.settings.Save(settings.SidecarPath(p.path)); err != nil {
			return err
		}
	}
	p.logger.Debug().
		Str("path", p.path).
		Uint64("generation", f.Generation).
		Int("width", f.Width).
		Int("height", f.Height).
		Msg("frame written")
	return nil
}

// Memory keeps the latest frame. It is safe for concurrent use.
type Memory struct {
	mu      sync.Mutex
	last    pipeline.Frame
	count   int
	updated chan struct{}
}

// NewMemory creates an empty in-memory surface.
func NewMemory() *Memory {
	return &Memory{updated: make(chan struct{})}
}

// Present stores a copy of f.
func (m *Memory) Present(ctx context.Context, f pipeline.Frame) error {
	if err := checkFrame(f); err != nil {
		return err
	}
	f.Pix = append([]byte(nil), f.Pix...)
	m.mu.Lock()
	m.last = f
	m.count++
	close(m.updated)
	m.updated = make(chan struct{})
	m.mu.Unlock()
	return nil
}

// Last returns the most recent frame; ok is false before the first one.
func (m *Memory) Last() (f pipeline.Frame, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last, m.count > 0
}

// Count returns how many frames were presented.
func (m *Memory) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count
}

// Wait blocks until a frame of generation gen or later has been presented.
func (m *Memory) Wait(ctx context.Context, gen uint64) (pipeline.Frame, error) {
	for {
		m.mu.Lock()
		if m.count > 0 && m.last.Generation >= gen {
			f := m.last
			m.mu.Unlock()
			return f, nil
		}
		ch := m.updated
		m.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return pipeline.Frame{}, ctx.Err()
		}
	}
}
