package sink

import (
	"context"
	"errors"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/agbru/deepzoom/internal/coloring"
	"github.com/agbru/deepzoom/internal/compute"
	"github.com/agbru/deepzoom/internal/geometry"
	"github.com/agbru/deepzoom/internal/pipeline"
	"github.com/agbru/deepzoom/internal/precision"
	"github.com/agbru/deepzoom/internal/settings"
)

func solidFrame(gen uint64, w, h int, r, g, b byte) pipeline.Frame {
	pix := make([]byte, 4*w*h)
	for i := 0; i < len(pix); i += 4 {
		pix[i], pix[i+1], pix[i+2], pix[i+3] = r, g, b, 255
	}
	return pipeline.Frame{Generation: gen, Width: w, Height: h, Pix: pix}
}

func TestPNG_Present(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "out", "frame.png")
	s := NewPNG(path)

	f := solidFrame(1, 5, 3, 10, 20, 30)
	f.Pix[4*(2*5+4)] = 200 // bottom-right pixel
	if err := s.Present(context.Background(), f); err != nil {
		t.Fatalf("Present: %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()
	img, err := png.Decode(file)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 5 || b.Dy() != 3 {
		t.Fatalf("bounds = %v", b)
	}
	r, g, b, a := img.At(0, 0).RGBA()
	if r>>8 != 10 || g>>8 != 20 || b>>8 != 30 || a>>8 != 255 {
		t.Errorf("top-left = %d,%d,%d,%d", r>>8, g>>8, b>>8, a>>8)
	}
	if r, _, _, _ := img.At(4, 2).RGBA(); r>>8 != 200 {
		t.Errorf("bottom-right red = %d, rows are flipped", r>>8)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("temporary files left behind: %v", entries)
	}
}

func TestPNG_WritesSettingsSidecar(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	req := pipeline.Request{
		Viewport: geometry.Viewport{Center: geometry.NewPoint(-0.5, 0.25, 64), Zoom: 2, Width: 2, Height: 2},
		MaxIter:  100,
		Tier:     precision.Auto,
		Color:    coloring.DefaultParams(),
	}
	s := NewPNG(filepath.Join(dir, "view.png"), WithSettings(settings.FromRequest(req)))
	if err := s.Present(context.Background(), solidFrame(1, 2, 2, 0, 0, 0)); err != nil {
		t.Fatal(err)
	}
	got, err := settings.LoadRequest(filepath.Join(dir, "view.json"))
	if err != nil {
		t.Fatalf("sidecar: %v", err)
	}
	if got.Viewport.Key() != req.Viewport.Key() {
		t.Errorf("sidecar viewport = %s, want %s", got.Viewport.Key(), req.Viewport.Key())
	}
}

func TestPresent_Rejects(t *testing.T) {
	t.Parallel()
	bad := solidFrame(1, 4, 4, 0, 0, 0)
	bad.Pix = bad.Pix[:10]

	if err := NewPNG(filepath.Join(t.TempDir(), "x.png")).Present(context.Background(), bad); err == nil {
		t.Error("PNG accepted a short pixel buffer")
	}
	if err := NewMemory().Present(context.Background(), bad); err == nil {
		t.Error("Memory accepted a short pixel buffer")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewPNG(filepath.Join(t.TempDir(), "x.png")).Present(ctx, solidFrame(1, 1, 1, 0, 0, 0))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("canceled Present = %v", err)
	}
}

func TestMemory(t *testing.T) {
	t.Parallel()
	m := NewMemory()
	if _, ok := m.Last(); ok {
		t.Fatal("empty surface reported a frame")
	}

	f := solidFrame(3, 2, 2, 1, 2, 3)
	if err := m.Present(context.Background(), f); err != nil {
		t.Fatal(err)
	}
	f.Pix[0] = 99
	last, ok := m.Last()
	if !ok || last.Generation != 3 || last.Pix[0] != 1 {
		t.Errorf("Last = %+v, %v; the frame must be copied", last.Generation, ok)
	}
	if m.Count() != 1 {
		t.Errorf("Count = %d", m.Count())
	}
}

func TestMemory_Wait(t *testing.T) {
	t.Parallel()
	m := NewMemory()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan pipeline.Frame, 1)
	go func() {
		f, err := m.Wait(ctx, 2)
		if err != nil {
			t.Error(err)
		}
		done <- f
	}()

	_ = m.Present(ctx, solidFrame(1, 1, 1, 0, 0, 0))
	_ = m.Present(ctx, solidFrame(2, 1, 1, 0, 0, 0))
	if f := <-done; f.Generation != 2 {
		t.Errorf("Wait returned generation %d", f.Generation)
	}

	short, stop := context.WithTimeout(ctx, 20*time.Millisecond)
	defer stop()
	if _, err := m.Wait(short, 10); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait for a future generation = %v", err)
	}
}

func TestRunPresentsToMemory(t *testing.T) {
	t.Parallel()
	m := NewMemory()
	c := pipeline.New(compute.NewCPU(2), pipeline.WithSink(m))
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	gen := c.Submit(pipeline.Request{
		Viewport: geometry.Viewport{Center: geometry.NewPoint(-0.75, 0, 64), Zoom: -1, Width: 16, Height: 12},
		MaxIter:  100,
		Color:    coloring.DefaultParams(),
	})
	f, err := m.Wait(ctx, gen)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if f.Width != 16 || f.Height != 12 || f.Tier != precision.Raw32 {
		t.Errorf("frame %dx%d tier %v", f.Width, f.Height, f.Tier)
	}
	cancel()
	<-done
}
