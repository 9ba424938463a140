// Package probe computes the high-precision reference orbit that every pixel
// of a perturbation render is measured against.
package probe

import (
	"context"
	"fmt"
	"math/cmplx"
	"slices"
	"time"

	"github.com/rs/zerolog"

	apperrors "github.com/agbru/deepzoom/internal/errors"
	"github.com/agbru/deepzoom/internal/geometry"
	"github.com/agbru/deepzoom/internal/xfloat"
)

// EscapeRadius is the magnitude beyond which an orbit is considered to
// diverge.
const EscapeRadius = 1000.0

// EscapeRadiusSq is EscapeRadius².
const EscapeRadiusSq = EscapeRadius * EscapeRadius

// cancelCheckInterval is how many iterations run between context checks.
const cancelCheckInterval = 1024

// Orbit is an immutable reference orbit X_n of the center c with its
// derivative X'_n = dX_n/dc.
//
// Points holds X_0 … X_{L-1} where L is Len(). When the orbit escaped, the
// escaping point X_L is appended so the iterator can test pixels at step L.
type Orbit struct {
	center  geometry.Point
	bits    uint
	engine  string
	cap     int
	length  int
	escaped bool
	points  []complex128
	derivs  []xfloat.Complex

	// resume state, positioned on the last entry of points
	stepper Stepper
}

// Center returns the orbit's c.
func (o *Orbit) Center() geometry.Point { return o.center }

// Bits returns the precision the orbit was computed at.
func (o *Orbit) Bits() uint { return o.bits }

// Cap returns the iteration cap the orbit was computed for.
func (o *Orbit) Cap() int { return o.cap }

// Len returns the number of non-escaped iterations: the first index whose
// magnitude exceeds the escape radius, or the cap.
func (o *Orbit) Len() int { return o.length }

// Escaped reports whether the orbit left the escape radius before the cap.
func (o *Orbit) Escaped() bool { return o.escaped }

// NonEscaping reports whether the orbit ran to its cap, which happens for
// interior centers. It is a valid outcome.
func (o *Orbit) NonEscaping() bool { return !o.escaped }

// Points returns the orbit values. The slice must not be modified.
func (o *Orbit) Points() []complex128 { return o.points }

// Derivs returns X'_n aligned with Points. The slice must not be modified.
func (o *Orbit) Derivs() []xfloat.Complex { return o.derivs }

// Span is the number of orbit indices available to the iterator.
func (o *Orbit) Span() int { return len(o.points) }

// Key identifies the orbit's inputs.
func (o *Orbit) Key() string {
	return fmt.Sprintf("%s@%d/%s", o.center.Key(), o.bits, o.engine)
}

// Generator produces orbits with a given arithmetic engine.
type Generator struct {
	engine Engine
	logger zerolog.Logger
}

// NewGenerator creates a generator. A nil engine selects math/big.
func NewGenerator(engine Engine) *Generator {
	if engine == nil {
		engine = BigFloatEngine{}
	}
	return &Generator{engine: engine, logger: zerolog.Nop()}
}

// SetLogger configures the logger for orbit generation events.
func (g *Generator) SetLogger(l zerolog.Logger) {
	g.logger = l
}

// Engine returns the arithmetic engine name.
func (g *Generator) Engine() string { return g.engine.Name() }

// Generate computes the orbit of center for at most maxIter iterations at
// bits of precision. Identical inputs always yield identical orbits.
func (g *Generator) Generate(ctx context.Context, center geometry.Point, maxIter int, bits uint) (*Orbit, error) {
	if center.IsZero() {
		return nil, apperrors.ValidationError{Field: "probe", Message: "center must be set"}
	}
	if maxIter <= 0 {
		return nil, apperrors.ValidationError{Field: "max-iter", Message: "must be positive"}
	}
	c := center.WithPrec(bits)
	o := &Orbit{
		center:  c,
		bits:    bits,
		engine:  g.engine.Name(),
		points:  make([]complex128, 1, min(maxIter, 1<<16)+1),
		derivs:  make([]xfloat.Complex, 1, min(maxIter, 1<<16)+1),
		stepper: g.engine.NewStepper(c, bits),
	}
	start := time.Now()
	if err := g.advance(ctx, o, maxIter); err != nil {
		return nil, err
	}
	g.logger.Debug().
		Str("engine", o.engine).
		Uint("bits", bits).
		Int("length", o.length).
		Bool("escaped", o.escaped).
		Dur("elapsed", time.Since(start)).
		Msg("probe orbit computed")
	return o, nil
}

// Extend returns an orbit for a larger cap that shares o's prefix. o is not
// modified. An escaped orbit, or one whose cap already suffices, is
// truncated instead.
func (g *Generator) Extend(ctx context.Context, o *Orbit, maxIter int) (*Orbit, error) {
	if o.escaped || maxIter <= o.cap {
		return Truncate(o, maxIter), nil
	}
	n := &Orbit{
		center:  o.center,
		bits:    o.bits,
		engine:  o.engine,
		cap:     o.cap,
		length:  o.length,
		points:  slices.Clip(o.points),
		derivs:  slices.Clip(o.derivs),
		stepper: o.stepper.Clone(),
	}
	if err := g.advance(ctx, n, maxIter); err != nil {
		return nil, err
	}
	return n, nil
}

// Truncate returns the orbit restricted to maxIter iterations. The result
// shares storage with o and cannot be extended past o's own cap.
func Truncate(o *Orbit, maxIter int) *Orbit {
	if maxIter >= o.cap {
		return o
	}
	t := *o
	t.cap = maxIter
	t.stepper = nil
	if o.escaped && o.length < maxIter {
		return &t
	}
	t.escaped = false
	t.length = maxIter
	t.points = slices.Clip(o.points[:maxIter])
	t.derivs = slices.Clip(o.derivs[:maxIter])
	return &t
}

// advance iterates o in place from its current length up to maxIter. It is
// only called on orbits not yet shared.
func (g *Generator) advance(ctx context.Context, o *Orbit, maxIter int) error {
	if o.stepper == nil {
		return apperrors.ValidationError{Field: "orbit", Message: "truncated orbit cannot be extended"}
	}
	one := xfloat.New(1, 0, 0)
	n := len(o.points) - 1
	x := o.points[n]
	dx := o.derivs[n]
	for n+1 < maxIter {
		if n%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		// X'_{n+1} = 2·X_n·X'_n + 1
		dx = dx.MulComplex128(2 * x).Add(one)
		x = o.stepper.Next()
		n++
		o.points = append(o.points, x)
		o.derivs = append(o.derivs, dx)
		if sq := real(x)*real(x) + imag(x)*imag(x); sq > EscapeRadiusSq || cmplx.IsInf(x) || cmplx.IsNaN(x) {
			o.escaped = true
			o.length = n
			o.cap = maxIter
			return nil
		}
	}
	o.length = len(o.points)
	o.cap = maxIter
	return nil
}
