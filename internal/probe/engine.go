package probe

import (
	"math/big"
	"sort"
	"sync"

	"github.com/agbru/deepzoom/internal/geometry"
)

// Stepper iterates z ← z² + c at arbitrary precision, starting from z = 0.
type Stepper interface {
	// Next advances one iteration and returns the new z rounded to float64.
	Next() complex128
	// Clone returns an independent copy of the current state.
	Clone() Stepper
}

// Engine creates steppers for a given arithmetic backend.
type Engine interface {
	Name() string
	NewStepper(c geometry.Point, bits uint) Stepper
}

var (
	enginesMu sync.RWMutex
	engines   = map[string]Engine{}
)

func init() {
	RegisterEngine(BigFloatEngine{})
}

// RegisterEngine makes an engine available by name.
func RegisterEngine(e Engine) {
	enginesMu.Lock()
	defer enginesMu.Unlock()
	engines[e.Name()] = e
}

// Engines lists registered engine names in sorted order.
func Engines() []string {
	enginesMu.RLock()
	defer enginesMu.RUnlock()
	names := make([]string, 0, len(engines))
	for n := range engines {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// LookupEngine returns the engine registered under name.
func LookupEngine(name string) (Engine, bool) {
	enginesMu.RLock()
	defer enginesMu.RUnlock()
	e, ok := engines[name]
	return e, ok
}

// ─────────────────────────────────────────────────────────────────────────────
// math/big backend
// ─────────────────────────────────────────────────────────────────────────────

// BigFloatEngine iterates with math/big floating point.
type BigFloatEngine struct{}

// Name implements Engine.
func (BigFloatEngine) Name() string { return "bigfloat" }

// NewStepper implements Engine.
func (BigFloatEngine) NewStepper(c geometry.Point, bits uint) Stepper {
	nf := func() *big.Float { return new(big.Float).SetPrec(bits) }
	return &bigStepper{
		cr: nf().Set(c.Re), ci: nf().Set(c.Im),
		zr: nf(), zi: nf(), zr2: nf(), zi2: nf(), tmp: nf(),
	}
}

type bigStepper struct {
	cr, ci   *big.Float
	zr, zi   *big.Float
	zr2, zi2 *big.Float // squares of the current z
	tmp      *big.Float
}

func (s *bigStepper) Next() complex128 {
	// zi = 2·zr·zi + ci ; zr = zr² − zi² + cr
	s.tmp.Add(s.zr, s.zr)
	s.zi.Mul(s.tmp, s.zi)
	s.zi.Add(s.zi, s.ci)
	s.zr.Sub(s.zr2, s.zi2)
	s.zr.Add(s.zr, s.cr)
	s.zr2.Mul(s.zr, s.zr)
	s.zi2.Mul(s.zi, s.zi)
	re, _ := s.zr.Float64()
	im, _ := s.zi.Float64()
	return complex(re, im)
}

func (s *bigStepper) Clone() Stepper {
	cp := func(f *big.Float) *big.Float { return new(big.Float).Copy(f) }
	return &bigStepper{
		cr: s.cr, ci: s.ci,
		zr: cp(s.zr), zi: cp(s.zi), zr2: cp(s.zr2), zi2: cp(s.zi2),
		tmp: new(big.Float).SetPrec(s.tmp.Prec()),
	}
}
