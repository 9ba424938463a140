package tui

import (
	"math"
	"math/big"

	"github.com/agbru/deepzoom/internal/geometry"
	"github.com/agbru/deepzoom/internal/pipeline"
	"github.com/agbru/deepzoom/internal/precision"
)

const (
	zoomStep   = 0.5
	panStep    = 0.2
	rotateStep = math.Pi / 24
	freqFactor = 1.25
	offsetStep = 0.05
	minIter    = 16
	maxIter    = 1 << 31
)

// pan moves the center by (du, dw) in the view's rotated screen units,
// where the view's half-width is 1.
func pan(v geometry.Viewport, du, dw float64) geometry.Viewport {
	if v.Rotation != 0 {
		sin, cos := math.Sincos(v.Rotation)
		du, dw = du*cos-dw*sin, du*sin+dw*cos
	}
	mant, exp := v.ScaleExp()
	prec := max(v.Center.Re.Prec(), v.Center.Im.Prec(), precision.Bits(v.Zoom))

	re := new(big.Float).SetPrec(prec).SetFloat64(du * mant)
	im := new(big.Float).SetPrec(prec).SetFloat64(dw * mant)
	re.SetMantExp(re, exp)
	im.SetMantExp(im, exp)
	v.Center = geometry.Point{
		Re: re.Add(re, v.Center.Re),
		Im: im.Add(im, v.Center.Im),
	}
	return v
}

// zoomBy changes the log2 zoom by d, clamped to [minZoom, maxZoom], and
// widens the center to the precision the new depth needs.
func zoomBy(v geometry.Viewport, d, minZoom, maxZoom float64) geometry.Viewport {
	v.Zoom = min(max(v.Zoom+d, minZoom), maxZoom)
	return v.WithPrec(precision.Bits(v.Zoom))
}

func rotate(v geometry.Viewport, d float64) geometry.Viewport {
	v.Rotation = math.Remainder(v.Rotation+d, 2*math.Pi)
	return v
}

func scaleIter(n uint32, factor float64) uint32 {
	f := math.Round(float64(n) * factor)
	return uint32(min(max(f, minIter), maxIter))
}

// nextTier cycles auto → raw-32 → … → probed-extended → auto.
func nextTier(t precision.Tier) precision.Tier {
	if t >= precision.ProbedExtended {
		return precision.Auto
	}
	return t + 1
}

// wrapTurn keeps a palette offset in [0, 1).
func wrapTurn(x float64) float64 {
	x -= math.Floor(x)
	if x >= 1 {
		return 0
	}
	return x
}

// resize sets the render size of r, keeping everything else.
func resize(r pipeline.Request, width, height int) pipeline.Request {
	r.Viewport.Width = width
	r.Viewport.Height = height
	return r
}
