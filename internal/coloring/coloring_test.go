package coloring

import (
	"bytes"
	"context"
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/agbru/deepzoom/internal/compute"
	"github.com/agbru/deepzoom/internal/perturb"
)

func TestHSVToRGB(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		h, s, v float64
		want    RGB
	}{
		{"red", 0, 1, 1, RGB{1, 0, 0}},
		{"yellow", 1.0 / 6, 1, 1, RGB{1, 1, 0}},
		{"green", 2.0 / 6, 1, 1, RGB{0, 1, 0}},
		{"cyan", 3.0 / 6, 1, 1, RGB{0, 1, 1}},
		{"blue", 4.0 / 6, 1, 1, RGB{0, 0, 1}},
		{"magenta", 5.0 / 6, 1, 1, RGB{1, 0, 1}},
		{"full turn wraps to red", 1, 1, 1, RGB{1, 0, 0}},
		{"negative hue wraps", -1.0 / 6, 1, 1, RGB{1, 0, 1}},
		{"grey without saturation", 0.3, 0, 0.5, RGB{0.5, 0.5, 0.5}},
		{"NaN hue is black", math.NaN(), 1, 1, RGB{}},
		{"infinite hue is black", math.Inf(1), 1, 1, RGB{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := HSVToRGB(tt.h, tt.s, tt.v)
			if !near(got, tt.want) {
				t.Errorf("HSVToRGB(%v, %v, %v) = %+v, want %+v", tt.h, tt.s, tt.v, got, tt.want)
			}
		})
	}
}

func near(a, b RGB) bool {
	const eps = 1e-12
	return math.Abs(a.R-b.R) < eps && math.Abs(a.G-b.G) < eps && math.Abs(a.B-b.B) < eps
}

func TestShade_ZeroGlowIgnoresDistance(t *testing.T) {
	t.Parallel()
	p := DefaultParams()
	p.GlowIntensity = 0
	f := Frame{Width: 1, Height: 1, MaxIter: 1000, Zoom: 400}

	base := Shade(37, 0.2, 1500, 12, p, f)
	for _, ld := range []float64{-300, 0, 900, math.Inf(1), math.Inf(-1), math.NaN()} {
		if got := Shade(37, 0.2, 1500, ld, p, f); got != base {
			t.Errorf("logDeriv %v changed the color: %+v vs %+v", ld, got, base)
		}
	}
}

func TestShade_NonFiniteGlowIsDropped(t *testing.T) {
	t.Parallel()
	p := DefaultParams()
	f := Frame{Width: 1, Height: 1, MaxIter: 1000, Zoom: 10}
	noGlow := p
	noGlow.GlowIntensity = 0

	for _, ld := range []float64{math.Inf(1), math.Inf(-1), math.NaN()} {
		got := Shade(37, 0.2, 1500, ld, p, f)
		if want := Shade(37, 0.2, 1500, ld, noGlow, f); got != want {
			t.Errorf("logDeriv %v: got %+v, want the unglowed %+v", ld, got, want)
		}
	}
}

func TestShade_GlowBrightensNearBoundary(t *testing.T) {
	t.Parallel()
	p := DefaultParams()
	p.Brightness = 0.5
	f := Frame{Width: 1, Height: 1, MaxIter: 1000, Zoom: 0}

	far := Shade(20, 0.2, 1500, 2, p, f)
	edge := Shade(20, 0.2, 1500, 60, p, f)
	if lum(edge) <= lum(far) {
		t.Errorf("pixel with a large derivative should glow: edge %+v, far %+v", edge, far)
	}
}

func lum(c RGB) float64 { return c.R + c.G + c.B }

func TestShade_Interior(t *testing.T) {
	t.Parallel()
	p := DefaultParams()
	f := Frame{Width: 1, Height: 1, MaxIter: 100}

	c := Shade(perturb.StepRunning, 0.25, 0, 0, p, f)
	if c.R != 0.5 || c.G != 0.5 || c.B != 0.5 {
		t.Errorf("interior with trap 0.25 = %+v, want grey 0.5", c)
	}
	p.InteriorBrightness = 0
	if c := Shade(perturb.StepRunning, 0.25, 0, 0, p, f); c != (RGB{}) {
		t.Errorf("zero interior brightness = %+v, want black", c)
	}
	if c := Shade(perturb.StepRunning, math.Inf(1), 0, 0, DefaultParams(), f); c != (RGB{1, 1, 1}) {
		t.Errorf("empty trap = %+v, want white", c)
	}
}

func TestDefaultParams(t *testing.T) {
	t.Parallel()
	want := Params{Frequency: 1, Saturation: 1, GlowSpread: 1, GlowIntensity: 1, Brightness: 2, InteriorBrightness: 0.5}
	if got := DefaultParams(); got != want {
		t.Errorf("DefaultParams() = %+v, want %+v", got, want)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	if err := DefaultParams().Validate(); err != nil {
		t.Fatalf("defaults: %v", err)
	}
	tests := []struct {
		name   string
		modify func(*Params)
	}{
		{"saturation above one", func(p *Params) { p.Saturation = 1.5 }},
		{"negative glow", func(p *Params) { p.GlowIntensity = -1 }},
		{"NaN frequency", func(p *Params) { p.Frequency = math.NaN() }},
		{"infinite offset", func(p *Params) { p.Offset = math.Inf(1) }},
		{"negative brightness", func(p *Params) { p.Brightness = -0.1 }},
		{"misc above one", func(p *Params) { p.Misc = 2 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := DefaultParams()
			tt.modify(&p)
			if err := p.Validate(); err == nil {
				t.Error("expected a validation error")
			}
		})
	}
}

func TestColorize_Dimensions(t *testing.T) {
	t.Parallel()
	res := perturb.NewResults(4, 3)
	dev := compute.NewSerial()
	if err := Colorize(context.Background(), dev, res, DefaultParams(), Frame{Width: 4, Height: 3}, make([]byte, 47)); err == nil {
		t.Error("short destination should fail")
	}
	if err := Colorize(context.Background(), dev, res, DefaultParams(), Frame{Width: 3, Height: 4}, make([]byte, 48)); err == nil {
		t.Error("mismatched frame should fail")
	}
	dst := make([]byte, 48)
	if err := Colorize(context.Background(), dev, res, DefaultParams(), Frame{Width: 4, Height: 3, MaxIter: 10}, dst); err != nil {
		t.Fatal(err)
	}
	for i := 3; i < len(dst); i += 4 {
		if dst[i] != 0xff {
			t.Fatalf("alpha at %d = %d, want opaque", i, dst[i])
		}
	}
}

func TestColorize_Idempotent(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	const w, h = 9, 7
	properties.Property("re-coloring unchanged inputs is byte-identical", prop.ForAll(
		func(steps []uint32, traps []float64, freq, glow float64) bool {
			res := perturb.NewResults(w, h)
			for i := range res.Step {
				s := steps[i%len(steps)]
				if s%5 == 0 {
					continue
				}
				res.Step[i] = s
				res.Trap[i] = traps[i%len(traps)]
				res.Radius[i] = 1000 + float64(s)
				res.LogDeriv[i] = float64(s) / 7
			}
			p := DefaultParams()
			p.Frequency, p.GlowIntensity = freq, glow
			f := Frame{Width: w, Height: h, MaxIter: 1 << 20, Zoom: 12}

			a := make([]byte, 4*w*h)
			b := make([]byte, 4*w*h)
			if Colorize(context.Background(), compute.NewCPU(4), res, p, f, a) != nil {
				return false
			}
			if Colorize(context.Background(), compute.NewSerial(), res, p, f, b) != nil {
				return false
			}
			return bytes.Equal(a, b)
		},
		gen.SliceOfN(16, gen.UInt32Range(0, 5000)),
		gen.SliceOfN(16, gen.Float64Range(0, 4)),
		gen.Float64Range(0.1, 10),
		gen.Float64Range(0, 2),
	))

	properties.TestingRun(t)
}
