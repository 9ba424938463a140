package perturb

import (
	"github.com/agbru/deepzoom/internal/precision"
	"github.com/agbru/deepzoom/internal/probe"
	"github.com/agbru/deepzoom/internal/xfloat"
)

// float is the set of hardware tiers' element types.
type float interface {
	~float32 | ~float64
}

type cplx[F float] struct {
	re, im F
}

func (a cplx[F]) normSq() F { return a.re*a.re + a.im*a.im }

func (a cplx[F]) xf() xfloat.Complex {
	return xfloat.New(float64(a.re), float64(a.im), 0)
}

// reference is the slice of the probe orbit visible to the iterator.
type reference struct {
	points []complex128
	derivs []xfloat.Complex
}

func referenceOf(o *probe.Orbit) reference {
	if o == nil {
		return reference{}
	}
	return reference{points: o.Points(), derivs: o.Derivs()}
}

// state is the per-pixel iteration state of a Grid. The set of
// implementations is closed: one per tier family.
type state interface {
	tier() precision.Tier
	rewind()
	// run iterates pixel i over orbit indices [from, to) and reports whether
	// the pixel is still running afterwards.
	run(i int, ref *reference, from, to int, res *Results) bool
}

var one = xfloat.New(1, 0, 0)

// ─────────────────────────────────────────────────────────────────────────────
// Direct iteration (raw tiers): z ← z² + c, z' ← 2·z·z' + 1
// ─────────────────────────────────────────────────────────────────────────────

type direct[F float] struct {
	t  precision.Tier
	c  []cplx[F]
	z  []cplx[F]
	dz []xfloat.Complex
}

func (s *direct[F]) tier() precision.Tier { return s.t }

func (s *direct[F]) rewind() {
	clear(s.z)
	clear(s.dz)
}

func (s *direct[F]) run(i int, _ *reference, from, to int, res *Results) bool {
	z, dz, c := s.z[i], s.dz[i], s.c[i]
	for n := from; n < to; n++ {
		sq := z.normSq()
		if float64(sq) > probe.EscapeRadiusSq {
			res.escape(i, n, float64(sq), dz.LogAbs())
			s.z[i], s.dz[i] = z, dz
			return false
		}
		res.trap(i, n, float64(sq))
		dz = dz.Mul(cplx[F]{2 * z.re, 2 * z.im}.xf()).Add(one)
		z = cplx[F]{z.re*z.re - z.im*z.im + c.re, 2*z.re*z.im + c.im}
	}
	s.z[i], s.dz[i] = z, dz
	return true
}

// ─────────────────────────────────────────────────────────────────────────────
// Perturbation with hardware floats (probed-32, probed-64)
// ─────────────────────────────────────────────────────────────────────────────

type perturbed[F float] struct {
	t  precision.Tier
	d0 []cplx[F]
	d  []cplx[F]
	dd []xfloat.Complex
}

func (s *perturbed[F]) tier() precision.Tier { return s.t }

func (s *perturbed[F]) rewind() {
	clear(s.d)
	clear(s.dd)
}

func (s *perturbed[F]) run(i int, ref *reference, from, to int, res *Results) bool {
	d, dd, d0 := s.d[i], s.dd[i], s.d0[i]
	for n := from; n < to; n++ {
		X := ref.points[n]
		xr, xi := F(real(X)), F(imag(X))
		y := cplx[F]{xr + d.re, xi + d.im}
		sq := y.normSq()
		if float64(sq) > probe.EscapeRadiusSq {
			res.escape(i, n, float64(sq), ref.derivs[n].Add(dd).LogAbs())
			s.d[i], s.dd[i] = d, dd
			return false
		}
		res.trap(i, n, float64(sq))

		// δ'_{n+1} = 2·X·δ' + 2·X'·δ + 2·δ·δ'
		dx := d.xf()
		dd = xfloat.FromComplex128(X).Mul(dd).Add(ref.derivs[n].Mul(dx)).Add(dx.Mul(dd)).Double()
		// δ_{n+1} = 2·X·δ + δ² + Δc
		d = cplx[F]{
			2*(xr*d.re-xi*d.im) + d.re*d.re - d.im*d.im + d0.re,
			2*(xr*d.im+xi*d.re) + 2*d.re*d.im + d0.im,
		}
	}
	s.d[i], s.dd[i] = d, dd
	return true
}

// ─────────────────────────────────────────────────────────────────────────────
// Perturbation with extended-range deltas (probed-extended)
// ─────────────────────────────────────────────────────────────────────────────

type extended struct {
	d0 []xfloat.Complex
	d  []xfloat.Complex
	dd []xfloat.Complex
}

func (s *extended) tier() precision.Tier { return precision.ProbedExtended }

func (s *extended) rewind() {
	clear(s.d)
	clear(s.dd)
}

func (s *extended) run(i int, ref *reference, from, to int, res *Results) bool {
	d, dd, d0 := s.d[i], s.dd[i], s.d0[i]
	for n := from; n < to; n++ {
		X := ref.points[n]
		y := X + d.Complex128()
		sq := real(y)*real(y) + imag(y)*imag(y)
		if sq > probe.EscapeRadiusSq {
			res.escape(i, n, sq, ref.derivs[n].Add(dd).LogAbs())
			s.d[i], s.dd[i] = d, dd
			return false
		}
		res.trap(i, n, sq)

		x := xfloat.FromComplex128(X)
		dd = x.Mul(dd).Add(ref.derivs[n].Mul(d)).Add(d.Mul(dd)).Double()
		d = x.Mul(d).Double().Add(d.Mul(d)).Add(d0)
	}
	s.d[i], s.dd[i] = d, dd
	return true
}
