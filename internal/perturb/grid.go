// Package perturb builds the per-pixel delta grid and advances it through
// the escape-time recurrence in resumable batches.
//
// For probed tiers every pixel is iterated as a small deviation δ from the
// probe orbit X, driven by the pixel's offset Δc from the probe point:
//
//	δ_{n+1}  = 2·X_n·δ_n + δ_n² + Δc
//	δ'_{n+1} = 2·X_n·δ'_n + 2·X'_n·δ_n + 2·δ_n·δ'_n
//
// with δ_0 = δ'_0 = 0, so that X + δ is the pixel's own orbit from z_0 = 0.
// Raw tiers iterate z ← z² + c directly. All state lives in flat per-pixel
// arrays that batches update in place.
package perturb

import (
	"context"
	"math/big"

	"github.com/agbru/deepzoom/internal/compute"
	apperrors "github.com/agbru/deepzoom/internal/errors"
	"github.com/agbru/deepzoom/internal/geometry"
	"github.com/agbru/deepzoom/internal/precision"
	"github.com/agbru/deepzoom/internal/xfloat"
)

// Grid holds every pixel's offset Δc from the probe point (or its absolute
// coordinate for raw tiers) together with the iteration state reached so
// far.
type Grid struct {
	Width, Height int
	st            state
}

// Tier returns the representation the grid was generated in.
func (g *Grid) Tier() precision.Tier { return g.st.tier() }

// Rewind resets every pixel's iteration state to the start of its orbit.
func (g *Grid) Rewind() { g.st.rewind() }

// BytesPerPixel returns the grid state one pixel holds in tier.
func BytesPerPixel(t precision.Tier) int {
	const ext = 24 // xfloat.Complex
	switch t {
	case precision.Raw32, precision.Probed32:
		return 2*8 + ext
	case precision.Raw64, precision.Probed64:
		return 2*16 + ext
	case precision.ProbedExtended:
		return 3 * ext
	}
	return 0
}

// Generate computes the grid for vp in tier. For probed tiers each Δc is
// the pixel's offset from probeCenter: (center − probe) is formed once at
// full precision, converted into the tier, and the pixel offset is added in
// the tier's own representation. probeCenter is ignored for raw tiers.
func Generate(ctx context.Context, dev compute.Device, vp geometry.Viewport, probeCenter geometry.Point, tier precision.Tier) (*Grid, error) {
	if err := vp.Validate(); err != nil {
		return nil, err
	}
	if !tier.Valid() {
		return nil, apperrors.ValidationError{Field: "tier", Message: "grid needs a concrete tier, got " + tier.String()}
	}
	if tier.Strategy() == precision.Perturbation && probeCenter.IsZero() {
		return nil, apperrors.ValidationError{Field: "probe", Message: "probed tiers need a probe center"}
	}
	n := vp.Width * vp.Height
	g := &Grid{Width: vp.Width, Height: vp.Height}

	var kernel compute.Kernel
	switch tier {
	case precision.Raw32:
		s := newDirect[float32](tier, n)
		kernel = directKernel(s, vp)
		g.st = s
	case precision.Raw64:
		s := newDirect[float64](tier, n)
		kernel = directKernel(s, vp)
		g.st = s
	case precision.Probed32:
		s := newPerturbed[float32](tier, n)
		kernel = perturbedKernel(s, vp, probeCenter)
		g.st = s
	case precision.Probed64:
		s := newPerturbed[float64](tier, n)
		kernel = perturbedKernel(s, vp, probeCenter)
		g.st = s
	case precision.ProbedExtended:
		s := &extended{
			d0: make([]xfloat.Complex, n),
			d:  make([]xfloat.Complex, n),
			dd: make([]xfloat.Complex, n),
		}
		kernel = extendedKernel(s, vp, probeCenter)
		g.st = s
	}

	if err := dev.Dispatch(ctx, vp.Width, vp.Height, kernel); err != nil {
		return nil, err
	}
	g.st.rewind()
	return g, nil
}

func newDirect[F float](t precision.Tier, n int) *direct[F] {
	return &direct[F]{t: t, c: make([]cplx[F], n), z: make([]cplx[F], n), dz: make([]xfloat.Complex, n)}
}

func newPerturbed[F float](t precision.Tier, n int) *perturbed[F] {
	return &perturbed[F]{t: t, d0: make([]cplx[F], n), d: make([]cplx[F], n), dd: make([]xfloat.Complex, n)}
}

func directKernel[F float](s *direct[F], vp geometry.Viewport) compute.Kernel {
	center := vp.Center.Complex128()
	scale := vp.Scale()
	return func(x, y int) {
		u, w := vp.Offset(x, y)
		s.c[y*vp.Width+x] = cplx[F]{F(real(center)) + F(u*scale), F(imag(center)) + F(w*scale)}
	}
}

func perturbedKernel[F float](s *perturbed[F], vp geometry.Viewport, probeCenter geometry.Point) compute.Kernel {
	bits := max(vp.Center.Re.Prec(), probeCenter.Re.Prec())
	base := vp.Center.Sub(probeCenter, bits).Complex128()
	br, bi := F(real(base)), F(imag(base))
	scale := vp.Scale()
	return func(x, y int) {
		u, w := vp.Offset(x, y)
		s.d0[y*vp.Width+x] = cplx[F]{br + F(u*scale), bi + F(w*scale)}
	}
}

func extendedKernel(s *extended, vp geometry.Viewport, probeCenter geometry.Point) compute.Kernel {
	bits := max(vp.Center.Re.Prec(), probeCenter.Re.Prec())
	diff := vp.Center.Sub(probeCenter, bits)
	rm, re := mantExp(diff.Re)
	im, ie := mantExp(diff.Im)
	base := xfloat.FromParts(rm, re, im, ie)
	mant, exp := vp.ScaleExp()
	return func(x, y int) {
		u, w := vp.Offset(x, y)
		s.d0[y*vp.Width+x] = base.Add(xfloat.New(u*mant, w*mant, exp))
	}
}

// mantExp splits f into a float64 mantissa and a binary exponent without
// passing through the float64 exponent range.
func mantExp(f *big.Float) (float64, int) {
	var m big.Float
	exp := f.MantExp(&m)
	v, _ := m.Float64()
	return v, exp
}
