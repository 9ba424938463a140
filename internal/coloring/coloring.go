// Package coloring maps the iterator's per-pixel numbers to RGBA pixels.
//
// The stage is a pure function of a perturb.Results arena, a Params value and
// a Frame, so it can be re-run on every styling change without touching the
// probe, the grid or the iterator.
package coloring

import (
	"context"
	"fmt"
	"math"

	"github.com/agbru/deepzoom/internal/compute"
	apperrors "github.com/agbru/deepzoom/internal/errors"
	"github.com/agbru/deepzoom/internal/perturb"
)

// Params are the styling parameters.
type Params struct {
	// Frequency scales the palette along ln(smoothed step).
	Frequency float64 `json:"frequency"`
	// Offset rotates the palette, in turns.
	Offset float64 `json:"offset"`
	// Saturation of exterior colors, in [0, 1].
	Saturation float64 `json:"saturation"`
	// GlowSpread shifts the glow band outward from the boundary.
	GlowSpread float64 `json:"glow_spread"`
	// GlowIntensity scales the glow; 0 disables it.
	GlowIntensity float64 `json:"glow_intensity"`
	// Brightness of exterior pixels.
	Brightness float64 `json:"brightness"`
	// InteriorBrightness scales the orbit-trap shading of interior pixels.
	InteriorBrightness float64 `json:"interior_brightness"`
	// Misc blends the orbit trap into exterior brightness, in [0, 1].
	Misc float64 `json:"misc"`
}

// DefaultParams returns the stock palette.
func DefaultParams() Params {
	return Params{
		Frequency:          1,
		Offset:             0,
		Saturation:         1,
		GlowSpread:         1,
		GlowIntensity:      1,
		Brightness:         2,
		InteriorBrightness: 0.5,
		Misc:               0,
	}
}

// Validate rejects parameters that cannot produce a meaningful image.
func (p Params) Validate() error {
	fields := []struct {
		name     string
		v        float64
		min, max float64
	}{
		{"frequency", p.Frequency, math.Inf(-1), math.Inf(1)},
		{"offset", p.Offset, math.Inf(-1), math.Inf(1)},
		{"saturation", p.Saturation, 0, 1},
		{"glow_spread", p.GlowSpread, math.Inf(-1), math.Inf(1)},
		{"glow_intensity", p.GlowIntensity, 0, math.Inf(1)},
		{"brightness", p.Brightness, 0, math.Inf(1)},
		{"interior_brightness", p.InteriorBrightness, 0, math.Inf(1)},
		{"misc", p.Misc, 0, 1},
	}
	for _, f := range fields {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return apperrors.ValidationError{Field: f.name, Message: "must be finite"}
		}
		if f.v < f.min || f.v > f.max {
			return apperrors.ValidationError{Field: f.name, Message: fmt.Sprintf("%v is outside [%v, %v]", f.v, f.min, f.max)}
		}
	}
	return nil
}

// Frame carries the render-wide values the shading depends on.
type Frame struct {
	Width, Height int
	MaxIter       int
	// Zoom is the log2 magnification of the view.
	Zoom float64
}

// RGB is a linear color with components in [0, 1].
type RGB struct {
	R, G, B float64
}

// Shade colors one pixel from its iterator outputs.
//
// Escaped pixels take their hue from the smoothed step count and their
// lightness from the distance estimate glow and the orbit trap. Interior
// pixels are grey, shaded by the square root of the trap.
func Shade(step uint32, trap, radius, logDeriv float64, p Params, f Frame) RGB {
	if step == perturb.StepRunning || (f.MaxIter > 0 && int64(step) >= int64(f.MaxIter)) {
		g := clamp01(nanTo(math.Sqrt(trap), 1) * p.Brightness * p.InteriorBrightness)
		return RGB{g, g, g}
	}

	lnR := math.Log(radius)
	lnLnR := math.Log(lnR)
	smooth := math.Max(float64(step)+1-lnLnR/math.Ln2, 1)
	hue := 0.5 + 0.5*math.Sin(math.Log(smooth)*p.Frequency-p.Offset*2*math.Pi)

	s, v := p.Saturation, p.Brightness
	if p.GlowIntensity != 0 {
		// DE = 0.5·ln(r)·r/|dr|, kept in the log domain.
		lnDE := math.Log(0.5) + lnLnR + lnR - logDeriv
		glow := -lnDE - f.Zoom*math.Ln2 + p.GlowSpread
		if !math.IsNaN(glow) && !math.IsInf(glow, 0) {
			t := clamp01(p.GlowIntensity / (1 + math.Exp(-glow)))
			s *= 1 - t
			v += (1 - v) * t
		}
	}
	if p.Misc != 0 {
		v *= 1 - p.Misc + p.Misc*clamp01(nanTo(math.Sqrt(trap), 1))
	}
	return HSVToRGB(hue, clamp01(s), clamp01(v))
}

// HSVToRGB converts hue (in turns), saturation and value to RGB using the
// six-sector construction keyed on floor(h·6) mod 6. Any sector outside
// [0, 6), which only a non-finite hue can produce, maps to black.
func HSVToRGB(h, s, v float64) RGB {
	if math.IsNaN(h) || math.IsInf(h, 0) {
		return RGB{}
	}
	h6 := h * 6
	fl := math.Floor(h6)
	f := h6 - fl
	p := v * (1 - s)
	q := v * (1 - f*s)
	t := v * (1 - (1-f)*s)
	sector := math.Mod(fl, 6)
	if sector < 0 {
		sector += 6
	}
	switch int(sector) {
	case 0:
		return RGB{v, t, p}
	case 1:
		return RGB{q, v, p}
	case 2:
		return RGB{p, v, t}
	case 3:
		return RGB{p, q, v}
	case 4:
		return RGB{t, p, v}
	case 5:
		return RGB{v, p, q}
	}
	return RGB{}
}

// Colorize shades every pixel of res into dst as 8-bit sRGB RGBA, row-major
// from the top-left corner. dst must hold at least 4·Width·Height bytes.
// The result depends only on the arguments.
func Colorize(ctx context.Context, dev compute.Device, res *perturb.Results, p Params, f Frame, dst []byte) error {
	if res.Width != f.Width || res.Height != f.Height || res.Len() != f.Width*f.Height {
		return apperrors.ValidationError{Field: "frame", Message: "results and frame dimensions differ"}
	}
	if len(dst) < 4*res.Len() {
		return apperrors.ValidationError{Field: "dst", Message: fmt.Sprintf("need %d bytes, have %d", 4*res.Len(), len(dst))}
	}
	return dev.Dispatch(ctx, f.Width, f.Height, func(x, y int) {
		i := y*f.Width + x
		c := Shade(res.Step[i], res.Trap[i], res.Radius[i], res.LogDeriv[i], p, f)
		o := dst[4*i : 4*i+4 : 4*i+4]
		o[0] = encode(c.R)
		o[1] = encode(c.G)
		o[2] = encode(c.B)
		o[3] = 0xff
	})
}

// encode applies the sRGB transfer function and quantizes to a byte.
func encode(c float64) byte {
	c = clamp01(c)
	if c <= 0.0031308 {
		c *= 12.92
	} else {
		c = 1.055*math.Pow(c, 1/2.4) - 0.055
	}
	return byte(c*255 + 0.5)
}

func clamp01(x float64) float64 {
	switch {
	case math.IsNaN(x) || x < 0:
		return 0
	case x > 1:
		return 1
	}
	return x
}

func nanTo(x, alt float64) float64 {
	if math.IsNaN(x) {
		return alt
	}
	return x
}
