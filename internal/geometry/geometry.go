// Package geometry describes what part of the complex plane an image covers
// and maps pixels to offsets from the view center.
package geometry

import (
	"fmt"
	"math"
	"math/big"

	apperrors "github.com/agbru/deepzoom/internal/errors"
)

// Point is a complex number held at arbitrary precision.
type Point struct {
	Re, Im *big.Float
}

// NewPoint converts a float64 pair at the given precision.
func NewPoint(re, im float64, prec uint) Point {
	return Point{
		Re: new(big.Float).SetPrec(prec).SetFloat64(re),
		Im: new(big.Float).SetPrec(prec).SetFloat64(im),
	}
}

// ParsePoint parses decimal (or any big.Float-accepted) strings at prec bits.
func ParsePoint(re, im string, prec uint) (Point, error) {
	r, _, err := big.ParseFloat(re, 10, prec, big.ToNearestEven)
	if err != nil {
		return Point{}, apperrors.ValidationError{Field: "center-re", Message: err.Error()}
	}
	i, _, err := big.ParseFloat(im, 10, prec, big.ToNearestEven)
	if err != nil {
		return Point{}, apperrors.ValidationError{Field: "center-im", Message: err.Error()}
	}
	return Point{Re: r, Im: i}, nil
}

// IsZero reports whether p has no components set.
func (p Point) IsZero() bool { return p.Re == nil || p.Im == nil }

// WithPrec returns a copy of p whose components carry at least prec bits.
func (p Point) WithPrec(prec uint) Point {
	if p.IsZero() {
		return NewPoint(0, 0, prec)
	}
	return Point{
		Re: new(big.Float).SetPrec(max(prec, p.Re.Prec())).Set(p.Re),
		Im: new(big.Float).SetPrec(max(prec, p.Im.Prec())).Set(p.Im),
	}
}

// Sub returns p - q computed at prec bits.
func (p Point) Sub(q Point, prec uint) Point {
	return Point{
		Re: new(big.Float).SetPrec(prec).Sub(p.Re, q.Re),
		Im: new(big.Float).SetPrec(prec).Sub(p.Im, q.Im),
	}
}

// Complex128 rounds p to float64 precision.
func (p Point) Complex128() complex128 {
	re, _ := p.Re.Float64()
	im, _ := p.Im.Float64()
	return complex(re, im)
}

// Key is an exact textual form, equal for equal values regardless of
// precision.
func (p Point) Key() string {
	if p.IsZero() {
		return "<nil>"
	}
	return p.Re.Text('p', 0) + "," + p.Im.Text('p', 0)
}

// String prints p in decimal with enough digits to round trip at its precision.
func (p Point) String() string {
	if p.IsZero() {
		return "<nil>"
	}
	return p.Re.Text('g', -1) + "," + p.Im.Text('g', -1)
}

// Viewport is the rectangle of the plane rendered into a Width×Height image.
// Zoom is a log2 magnification: the half-width of the view is 2^-Zoom.
// Rotation is in radians, counter-clockwise.
type Viewport struct {
	Center   Point
	Zoom     float64
	Rotation float64
	Width    int
	Height   int
}

// Validate rejects viewports that cannot be rendered.
func (v Viewport) Validate() error {
	switch {
	case v.Width <= 0:
		return apperrors.ValidationError{Field: "width", Message: "must be positive"}
	case v.Height <= 0:
		return apperrors.ValidationError{Field: "height", Message: "must be positive"}
	case math.IsNaN(v.Zoom) || math.IsInf(v.Zoom, 0):
		return apperrors.ValidationError{Field: "zoom", Message: "must be finite"}
	case math.IsNaN(v.Rotation) || math.IsInf(v.Rotation, 0):
		return apperrors.ValidationError{Field: "rotation", Message: "must be finite"}
	case v.Center.IsZero():
		return apperrors.ValidationError{Field: "center", Message: "must be set"}
	}
	return nil
}

// WithPrec returns a copy whose center carries at least prec bits.
func (v Viewport) WithPrec(prec uint) Viewport {
	v.Center = v.Center.WithPrec(prec)
	return v
}

// Scale returns 2^-Zoom as a float64. It underflows at zooms past ~1074.
func (v Viewport) Scale() float64 { return math.Exp2(-v.Zoom) }

// ScaleExp splits 2^-Zoom into mant·2^exp with mant in (0.5, 1].
func (v Viewport) ScaleExp() (mant float64, exp int) {
	fl := math.Floor(v.Zoom)
	return math.Exp2(fl - v.Zoom), -int(fl)
}

// Offset returns the rotated offset of the center of pixel (px, py) from
// the view center, in units of Scale. Row 0 is the top of the image; the
// horizontal axis spans [-1, 1] and the vertical axis keeps square pixels.
func (v Viewport) Offset(px, py int) (u, w float64) {
	u0 := (float64(px)+0.5)/float64(v.Width)*2 - 1
	w0 := (1 - (float64(py)+0.5)/float64(v.Height)*2) * float64(v.Height) / float64(v.Width)
	if v.Rotation == 0 {
		return u0, w0
	}
	sin, cos := math.Sincos(v.Rotation)
	return u0*cos - w0*sin, u0*sin + w0*cos
}

// PixelPoint returns the plane coordinate of pixel (px, py) at prec bits.
func (v Viewport) PixelPoint(px, py int, prec uint) Point {
	u, w := v.Offset(px, py)
	mant, exp := v.ScaleExp()
	du := new(big.Float).SetPrec(prec).SetFloat64(u * mant)
	dw := new(big.Float).SetPrec(prec).SetFloat64(w * mant)
	du.SetMantExp(du, exp)
	dw.SetMantExp(dw, exp)
	return Point{
		Re: du.Add(du, v.Center.Re),
		Im: dw.Add(dw, v.Center.Im),
	}
}

// Key identifies the geometry for cache comparisons.
func (v Viewport) Key() string {
	return fmt.Sprintf("%s|%v|%v|%dx%d", v.Center.Key(), v.Zoom, v.Rotation, v.Width, v.Height)
}
