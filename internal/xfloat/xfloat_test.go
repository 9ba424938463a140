package xfloat

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func near(a, b complex128) bool {
	return cmplx.Abs(a-b) <= 1e-12*math.Max(1, cmplx.Abs(b))
}

func TestArithmeticMatchesComplex128(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		a, b complex128
	}{
		{"unit", 1 + 1i, 2 - 3i},
		{"mixed scale", 1e-10 + 4i, -7e3 + 1e-3i},
		{"real only", 3, -0.25},
		{"zero", 0, 5 + 5i},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			a, b := FromComplex128(tt.a), FromComplex128(tt.b)
			if got := a.Add(b).Complex128(); !near(got, tt.a+tt.b) {
				t.Errorf("Add = %v, want %v", got, tt.a+tt.b)
			}
			if got := a.Sub(b).Complex128(); !near(got, tt.a-tt.b) {
				t.Errorf("Sub = %v, want %v", got, tt.a-tt.b)
			}
			if got := a.Mul(b).Complex128(); !near(got, tt.a*tt.b) {
				t.Errorf("Mul = %v, want %v", got, tt.a*tt.b)
			}
			if got := a.Double().Complex128(); !near(got, 2*tt.a) {
				t.Errorf("Double = %v, want %v", got, 2*tt.a)
			}
		})
	}
}

func TestExtendedRangeSurvivesUnderflow(t *testing.T) {
	t.Parallel()
	tiny := New(1, 1, -3000)
	if tiny.IsZero() {
		t.Fatal("value 2^-3000 should not be zero")
	}
	if got := tiny.Complex128(); got != 0 {
		t.Errorf("Complex128 should underflow to 0, got %v", got)
	}
	sq := tiny.Mul(tiny)
	want := math.Log(2) + (-6000)*math.Ln2 // |(1+i)^2| = 2
	if got := sq.LogAbs(); math.Abs(got-want) > 1e-9 {
		t.Errorf("LogAbs = %v, want %v", got, want)
	}
}

func TestAddIgnoresNegligibleTerm(t *testing.T) {
	t.Parallel()
	big := New(1, 0, 0)
	small := New(1, 0, -200)
	if got := big.Add(small); !got.Equal(big) {
		t.Errorf("adding 2^-200 to 1 should leave 1, got %+v", got)
	}
	if got := small.Add(big); !got.Equal(big) {
		t.Errorf("addition should commute, got %+v", got)
	}
}

func TestFromParts(t *testing.T) {
	t.Parallel()
	c := FromParts(0.5, -1000, 0.75, -1002)
	re := 0.5
	im := 0.75 / 4
	want := New(re, im, -1000)
	if !c.Equal(want) {
		t.Errorf("FromParts = %+v, want %+v", c, want)
	}
	if !FromParts(0, 0, 0, 0).IsZero() {
		t.Error("zero parts should give zero")
	}
}

func TestLogAbsZero(t *testing.T) {
	t.Parallel()
	if !math.IsInf(Zero.LogAbs(), -1) {
		t.Error("LogAbs(0) should be -Inf")
	}
}

func TestNormalization_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("normalized mantissa lies in [0.5, 1)", prop.ForAll(
		func(re, im float64, exp int) bool {
			c := New(re, im, exp)
			if c.IsZero() {
				return re == 0 && im == 0
			}
			m := math.Max(math.Abs(c.Re), math.Abs(c.Im))
			return m >= 0.5 && m < 1
		},
		gen.Float64Range(-1e6, 1e6),
		gen.Float64Range(-1e6, 1e6),
		gen.IntRange(-5000, 5000),
	))

	properties.Property("multiplication adds logarithms", prop.ForAll(
		func(re, im float64, e1, e2 int) bool {
			if re == 0 && im == 0 {
				return true
			}
			a := New(re, im, e1)
			b := New(im, re, e2)
			got := a.Mul(b).LogAbs()
			want := a.LogAbs() + b.LogAbs()
			return math.Abs(got-want) <= 1e-9*math.Max(1, math.Abs(want))
		},
		gen.Float64Range(-10, 10),
		gen.Float64Range(-10, 10),
		gen.IntRange(-4000, 4000),
		gen.IntRange(-4000, 4000),
	))

	properties.TestingRun(t)
}
