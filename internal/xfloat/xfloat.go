// Package xfloat implements extended-range complex numbers: a float64
// mantissa pair sharing a separate integer binary exponent. They hold the
// tiny pixel deltas of extreme zooms and the huge orbit derivatives without
// underflowing or overflowing float64.
package xfloat

import "math"

// maxShift is the exponent gap beyond which the smaller addend no longer
// affects a float64 mantissa.
const maxShift = 64

// Complex is (Re + i·Im) · 2^Exp. Normalized values keep max(|Re|, |Im|)
// in [0.5, 1); zero is {0, 0, 0}.
type Complex struct {
	Re, Im float64
	Exp    int
}

// Zero is the additive identity.
var Zero = Complex{}

// New builds a normalized value from a mantissa pair and exponent.
func New(re, im float64, exp int) Complex {
	return Complex{Re: re, Im: im, Exp: exp}.normalize()
}

// FromComplex128 converts a float64 complex value.
func FromComplex128(c complex128) Complex {
	return New(real(c), imag(c), 0)
}

// FromParts builds a value from independently scaled real and imaginary
// components, each given as mantissa·2^exp.
func FromParts(reMant float64, reExp int, imMant float64, imExp int) Complex {
	switch {
	case reMant == 0:
		return New(0, imMant, imExp)
	case imMant == 0:
		return New(reMant, 0, reExp)
	}
	exp := max(reExp, imExp)
	return New(math.Ldexp(reMant, reExp-exp), math.Ldexp(imMant, imExp-exp), exp)
}

func (c Complex) normalize() Complex {
	m := math.Max(math.Abs(c.Re), math.Abs(c.Im))
	if m == 0 || math.IsNaN(m) || math.IsInf(m, 0) {
		if m == 0 {
			return Zero
		}
		return c
	}
	_, e := math.Frexp(m)
	return Complex{Re: math.Ldexp(c.Re, -e), Im: math.Ldexp(c.Im, -e), Exp: c.Exp + e}
}

// IsZero reports whether c is exactly zero.
func (c Complex) IsZero() bool { return c.Re == 0 && c.Im == 0 }

// Neg returns -c.
func (c Complex) Neg() Complex { return Complex{Re: -c.Re, Im: -c.Im, Exp: c.Exp} }

// Add returns c + d.
func (c Complex) Add(d Complex) Complex {
	if c.IsZero() {
		return d
	}
	if d.IsZero() {
		return c
	}
	if c.Exp < d.Exp {
		c, d = d, c
	}
	shift := c.Exp - d.Exp
	if shift > maxShift {
		return c
	}
	return New(c.Re+math.Ldexp(d.Re, -shift), c.Im+math.Ldexp(d.Im, -shift), c.Exp)
}

// Sub returns c - d.
func (c Complex) Sub(d Complex) Complex { return c.Add(d.Neg()) }

// Mul returns c · d.
func (c Complex) Mul(d Complex) Complex {
	return New(c.Re*d.Re-c.Im*d.Im, c.Re*d.Im+c.Im*d.Re, c.Exp+d.Exp)
}

// MulComplex128 returns c · z for an ordinary complex z.
func (c Complex) MulComplex128(z complex128) Complex {
	return c.Mul(FromComplex128(z))
}

// Ldexp returns c · 2^n.
func (c Complex) Ldexp(n int) Complex {
	if c.IsZero() {
		return c
	}
	c.Exp += n
	return c
}

// Double returns 2·c.
func (c Complex) Double() Complex { return c.Ldexp(1) }

// Complex128 converts to float64 precision, underflowing to zero or
// overflowing to infinity outside the float64 range.
func (c Complex) Complex128() complex128 {
	return complex(math.Ldexp(c.Re, c.Exp), math.Ldexp(c.Im, c.Exp))
}

// LogAbs returns ln|c|. Zero yields -Inf.
func (c Complex) LogAbs() float64 {
	if c.IsZero() {
		return math.Inf(-1)
	}
	return math.Log(math.Hypot(c.Re, c.Im)) + float64(c.Exp)*math.Ln2
}

// Equal reports whether both values are bitwise identical after normalization.
func (c Complex) Equal(d Complex) bool {
	return c.Re == d.Re && c.Im == d.Im && c.Exp == d.Exp
}
