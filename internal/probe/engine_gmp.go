//go:build gmp

package probe

import (
	"math"
	"math/big"

	"github.com/ncw/gmp"

	"github.com/agbru/deepzoom/internal/geometry"
)

func init() {
	RegisterEngine(GMPEngine{})
}

// GMPEngine iterates in fixed point on GMP integers: every value is stored
// as round(v·2^frac). It is faster than math/big at thousands of bits.
type GMPEngine struct{}

// Name implements Engine.
func (GMPEngine) Name() string { return "gmp" }

// NewStepper implements Engine.
func (GMPEngine) NewStepper(c geometry.Point, bits uint) Stepper {
	return &gmpStepper{
		frac: bits,
		cr:   toFixed(c.Re, bits),
		ci:   toFixed(c.Im, bits),
		zr:   gmp.NewInt(0),
		zi:   gmp.NewInt(0),
		t1:   gmp.NewInt(0),
		t2:   gmp.NewInt(0),
	}
}

type gmpStepper struct {
	frac   uint
	cr, ci *gmp.Int
	zr, zi *gmp.Int
	t1, t2 *gmp.Int
}

func toFixed(f *big.Float, frac uint) *gmp.Int {
	scaled := new(big.Float).SetPrec(f.Prec() + frac).SetMantExp(f, int(frac))
	i, _ := scaled.Int(nil)
	z, ok := new(gmp.Int).SetString(i.Text(16), 16)
	if !ok {
		return gmp.NewInt(0)
	}
	return z
}

func (s *gmpStepper) Next() complex128 {
	// t1 = 2·zr·zi, t2 = zr² − zi², both rescaled by 2^-frac
	s.t1.Mul(s.zr, s.zi)
	s.t1.Rsh(s.t1, s.frac-1)
	s.t2.Mul(s.zr, s.zr)
	s.zr.Mul(s.zi, s.zi)
	s.t2.Sub(s.t2, s.zr)
	s.t2.Rsh(s.t2, s.frac)
	s.zi.Add(s.t1, s.ci)
	s.zr.Add(s.t2, s.cr)
	return complex(s.float(s.zr), s.float(s.zi))
}

func (s *gmpStepper) float(x *gmp.Int) float64 {
	n := x.BitLen()
	if n <= 62 {
		return math.Ldexp(float64(x.Int64()), -int(s.frac))
	}
	shift := uint(n - 62)
	s.t1.Rsh(x, shift)
	return math.Ldexp(float64(s.t1.Int64()), int(shift)-int(s.frac))
}

func (s *gmpStepper) Clone() Stepper {
	cp := func(x *gmp.Int) *gmp.Int { return new(gmp.Int).Set(x) }
	return &gmpStepper{
		frac: s.frac,
		cr:   s.cr, ci: s.ci,
		zr: cp(s.zr), zi: cp(s.zi),
		t1: gmp.NewInt(0), t2: gmp.NewInt(0),
	}
}
