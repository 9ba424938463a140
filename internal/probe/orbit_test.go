package probe

import (
	"context"
	"errors"
	"math/cmplx"
	"slices"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/agbru/deepzoom/internal/geometry"
	"github.com/agbru/deepzoom/internal/xfloat"
)

func generate(t *testing.T, re, im float64, maxIter int) *Orbit {
	t.Helper()
	o, err := NewGenerator(nil).Generate(context.Background(), geometry.NewPoint(re, im, 128), maxIter, 128)
	if err != nil {
		t.Fatalf("Generate(%v%+vi, %d): %v", re, im, maxIter, err)
	}
	return o
}

func TestGenerate_EscapingCenter(t *testing.T) {
	t.Parallel()
	o := generate(t, 1, 0, 100)

	wantPoints := []complex128{0, 1, 2, 5, 26, 677, 458330}
	if !slices.Equal(o.Points(), wantPoints) {
		t.Fatalf("Points = %v, want %v", o.Points(), wantPoints)
	}
	if o.Len() != 6 || !o.Escaped() || o.NonEscaping() {
		t.Errorf("Len = %d, Escaped = %v", o.Len(), o.Escaped())
	}
	wantDerivs := []complex128{0, 1, 3, 13, 131, 6813, 9224803}
	for i, d := range o.Derivs() {
		if d.Complex128() != wantDerivs[i] {
			t.Errorf("X'_%d = %v, want %v", i, d.Complex128(), wantDerivs[i])
		}
	}
}

func TestGenerate_NonEscapingCenter(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		re, im float64
	}{
		{"origin", 0, 0},
		{"tip of the needle", -2, 0},
		{"period-2 bulb", -1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			o := generate(t, tt.re, tt.im, 300)
			if o.Escaped() {
				t.Fatal("interior center should not escape")
			}
			if o.Len() != 300 || o.Span() != 300 {
				t.Errorf("Len = %d, Span = %d, want 300", o.Len(), o.Span())
			}
		})
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	t.Parallel()
	a := generate(t, -0.1011, 0.9563, 2000)
	b := generate(t, -0.1011, 0.9563, 2000)
	if !slices.Equal(a.Points(), b.Points()) {
		t.Fatal("identical inputs produced different orbits")
	}
	if !slices.EqualFunc(a.Derivs(), b.Derivs(), xfloat.Complex.Equal) {
		t.Fatal("identical inputs produced different derivatives")
	}
}

func TestExtend_MatchesFreshOrbit(t *testing.T) {
	t.Parallel()
	g := NewGenerator(nil)
	c := geometry.NewPoint(-0.7436447860, 0.1318252536, 128)
	short, err := g.Generate(context.Background(), c, 500, 128)
	if err != nil {
		t.Fatal(err)
	}
	if short.Escaped() {
		t.Skip("center escaped early; extension not exercised")
	}
	before := slices.Clone(short.Points())

	long, err := g.Extend(context.Background(), short, 3000)
	if err != nil {
		t.Fatal(err)
	}
	fresh, err := g.Generate(context.Background(), c, 3000, 128)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(long.Points(), fresh.Points()) {
		t.Error("extended orbit differs from a fresh computation")
	}
	if long.Len() != fresh.Len() || long.Escaped() != fresh.Escaped() {
		t.Errorf("extended Len/Escaped = %d/%v, fresh = %d/%v", long.Len(), long.Escaped(), fresh.Len(), fresh.Escaped())
	}
	if !slices.Equal(short.Points(), before) || short.Cap() != 500 {
		t.Error("Extend modified the original orbit")
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()
	long := generate(t, -0.75, 0.1, 400)
	short := generate(t, -0.75, 0.1, 40)
	tr := Truncate(long, 40)
	if !slices.Equal(tr.Points(), short.Points()) || tr.Len() != short.Len() || tr.Escaped() != short.Escaped() {
		t.Errorf("truncated orbit differs: len %d/%d", tr.Len(), short.Len())
	}
	if Truncate(long, 400) != long {
		t.Error("truncating to the same cap should return the orbit itself")
	}

	esc := generate(t, 1, 0, 100)
	if tr := Truncate(esc, 6); tr.Escaped() || tr.Len() != 6 || tr.Span() != 6 {
		t.Errorf("cap at the escape index: escaped=%v len=%d span=%d", tr.Escaped(), tr.Len(), tr.Span())
	}
	if tr := Truncate(esc, 10); !tr.Escaped() || tr.Len() != 6 {
		t.Errorf("cap past the escape index should keep the escape")
	}
}

func TestGenerate_Canceled(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewGenerator(nil).Generate(ctx, geometry.NewPoint(0, 0, 64), 10000, 64)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestGenerate_InvalidInput(t *testing.T) {
	t.Parallel()
	g := NewGenerator(nil)
	if _, err := g.Generate(context.Background(), geometry.Point{}, 10, 64); err == nil {
		t.Error("missing center should fail")
	}
	if _, err := g.Generate(context.Background(), geometry.NewPoint(0, 0, 64), 0, 64); err == nil {
		t.Error("zero cap should fail")
	}
}

func TestLength_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)
	g := NewGenerator(nil)

	properties.Property("Len is the first escaping index or the cap", prop.ForAll(
		func(re, im float64) bool {
			const maxIter = 256
			o, err := g.Generate(context.Background(), geometry.NewPoint(re, im, 96), maxIter, 96)
			if err != nil {
				return false
			}
			want := maxIter
			for i, x := range o.Points() {
				if real(x)*real(x)+imag(x)*imag(x) > EscapeRadiusSq || cmplx.IsInf(x) {
					want = i
					break
				}
			}
			if o.Escaped() {
				return o.Len() == want && o.Span() == want+1
			}
			return o.Len() == want && o.Span() == maxIter
		},
		gen.Float64Range(-2.5, 1),
		gen.Float64Range(-1.5, 1.5),
	))

	properties.TestingRun(t)
}

func TestEngines(t *testing.T) {
	t.Parallel()
	if !slices.Contains(Engines(), "bigfloat") {
		t.Errorf("bigfloat engine not registered: %v", Engines())
	}
	if e, ok := LookupEngine("bigfloat"); !ok || e.Name() != "bigfloat" {
		t.Error("LookupEngine(bigfloat) failed")
	}
	if _, ok := LookupEngine("nope"); ok {
		t.Error("unknown engine should not resolve")
	}
}
