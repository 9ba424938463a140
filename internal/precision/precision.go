// Package precision maps a zoom depth to the numeric tier used to render it.
//
// Shallow views iterate every pixel directly in hardware floats. Deeper
// views switch to perturbation against a high-precision probe orbit, first
// with 32-bit deltas, then 64-bit, then extended-range deltas that carry a
// separate exponent. Past the deepest tier the selector refuses rather than
// produce wrong pixels.
package precision

import (
	"fmt"
	"math"
	"strings"

	apperrors "github.com/agbru/deepzoom/internal/errors"
)

// Tier is a numeric representation for the per-pixel computation.
// Tiers are ordered from least to most precise.
type Tier int

const (
	// Auto lets the selector choose from the zoom depth.
	Auto Tier = iota
	Raw32
	Raw64
	Probed32
	Probed64
	ProbedExtended
)

var tierNames = [...]string{
	Auto:           "auto",
	Raw32:          "raw-32",
	Raw64:          "raw-64",
	Probed32:       "probed-32",
	Probed64:       "probed-64",
	ProbedExtended: "probed-extended",
}

// String returns the tier's flag spelling.
func (t Tier) String() string {
	if t < Auto || int(t) >= len(tierNames) {
		return fmt.Sprintf("tier(%d)", int(t))
	}
	return tierNames[t]
}

// Valid reports whether t names a concrete tier.
func (t Tier) Valid() bool { return t >= Raw32 && t <= ProbedExtended }

// Strategy reports how pixels are computed in this tier.
func (t Tier) Strategy() Strategy {
	if t == Raw32 || t == Raw64 {
		return Direct
	}
	return Perturbation
}

// ParseTier parses a tier name as printed by String.
func ParseTier(s string) (Tier, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range tierNames {
		if name == s {
			return Tier(i), nil
		}
	}
	return Auto, apperrors.NewConfigError("unknown precision tier %q (valid: %s)", s, strings.Join(tierNames[:], ", "))
}

// MarshalText implements encoding.TextMarshaler.
func (t Tier) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Tier) UnmarshalText(b []byte) error {
	parsed, err := ParseTier(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Strategy distinguishes direct per-pixel iteration from perturbation.
type Strategy int

const (
	Direct Strategy = iota
	Perturbation
)

func (s Strategy) String() string {
	if s == Direct {
		return "direct"
	}
	return "perturbation"
}

// Default maximum zoom (log2 magnification) handled by each tier.
const (
	DefaultMaxZoomRaw32          = 12.0
	DefaultMaxZoomRaw64          = 40.0
	DefaultMaxZoomProbed32       = 90.0
	DefaultMaxZoomProbed64       = 950.0
	DefaultMaxZoomProbedExtended = 100000.0
)

// Thresholds holds the deepest zoom each tier may render.
type Thresholds struct {
	Raw32          float64
	Raw64          float64
	Probed32       float64
	Probed64       float64
	ProbedExtended float64
}

// DefaultThresholds returns the stock tier boundaries.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Raw32:          DefaultMaxZoomRaw32,
		Raw64:          DefaultMaxZoomRaw64,
		Probed32:       DefaultMaxZoomProbed32,
		Probed64:       DefaultMaxZoomProbed64,
		ProbedExtended: DefaultMaxZoomProbedExtended,
	}
}

func (th Thresholds) ordered() [5]float64 {
	return [5]float64{th.Raw32, th.Raw64, th.Probed32, th.Probed64, th.ProbedExtended}
}

// Validate checks that the boundaries are finite and strictly increasing.
func (th Thresholds) Validate() error {
	prev := math.Inf(-1)
	for i, v := range th.ordered() {
		tier := Tier(i + 1)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return apperrors.ValidationError{Field: tier.String() + "-max-zoom", Message: "must be finite"}
		}
		if v <= prev {
			return apperrors.ValidationError{Field: tier.String() + "-max-zoom", Message: "must exceed the previous tier's maximum"}
		}
		prev = v
	}
	return nil
}

// Selector picks tiers from zoom depths. It is immutable and safe for
// concurrent use.
type Selector struct {
	th Thresholds
}

// NewSelector creates a Selector after validating the thresholds.
func NewSelector(th Thresholds) (*Selector, error) {
	if err := th.Validate(); err != nil {
		return nil, err
	}
	return &Selector{th: th}, nil
}

// Thresholds returns the selector's boundaries.
func (s *Selector) Thresholds() Thresholds { return s.th }

// MaxZoom returns the deepest zoom any tier supports.
func (s *Selector) MaxZoom() float64 { return s.th.ProbedExtended }

// Select returns the least precise tier able to render zoom. The mapping is
// monotonic: a deeper zoom never yields a less precise tier. When zoom lies
// beyond every tier it returns ProbedExtended together with a
// PrecisionExhaustedError.
func (s *Selector) Select(zoom float64) (Tier, error) {
	if math.IsNaN(zoom) {
		return Auto, apperrors.ValidationError{Field: "zoom", Message: "must be a number"}
	}
	for i, limit := range s.th.ordered() {
		if zoom < limit || (i == 4 && zoom == limit) {
			return Tier(i + 1), nil
		}
	}
	return ProbedExtended, apperrors.PrecisionExhaustedError{Zoom: zoom, MaxZoom: s.th.ProbedExtended}
}

// Resolve honors an explicitly requested tier when it is at least as precise
// as the selected one. A less precise request is upgraded; upgraded reports
// whether that happened.
func (s *Selector) Resolve(requested Tier, zoom float64) (tier Tier, upgraded bool, err error) {
	selected, err := s.Select(zoom)
	if err != nil {
		return selected, false, err
	}
	if requested == Auto || !requested.Valid() {
		return selected, false, nil
	}
	if requested < selected {
		return selected, true, nil
	}
	return requested, false, nil
}

// Bits returns the mantissa precision of the probe orbit and viewport
// center for zoom.
func Bits(zoom float64) uint {
	if zoom <= 0 {
		return 64
	}
	return max(64, uint(math.Ceil(zoom*1.25))+32)
}
