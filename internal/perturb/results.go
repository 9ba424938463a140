package perturb

import (
	"math"
)

// StepRunning marks a pixel that has not escaped: either still iterating or,
// once iteration finished, an interior point.
const StepRunning = math.MaxUint32

// Results is the per-pixel output of the iterator, stored as flat arrays
// indexed by y·Width + x. Escaped pixels are written once and then skipped
// by later batches.
type Results struct {
	Width, Height int
	// Step is the escape index, or StepRunning.
	Step []uint32
	// Trap is the smallest |y_n|² seen for n ≥ 1 while the pixel was bounded.
	Trap []float64
	// Radius is |y_n| at escape.
	Radius []float64
	// LogDeriv is ln|y'_n| at escape, where y' = dy/dc. Storing the
	// logarithm keeps extreme zoom derivatives finite.
	LogDeriv []float64
}

// NewResults allocates a reset result arena for a width×height image.
func NewResults(width, height int) *Results {
	n := width * height
	r := &Results{
		Width:    width,
		Height:   height,
		Step:     make([]uint32, n),
		Trap:     make([]float64, n),
		Radius:   make([]float64, n),
		LogDeriv: make([]float64, n),
	}
	r.Reset()
	return r
}

// Reset marks every pixel as running with an empty trap.
func (r *Results) Reset() {
	inf := math.Inf(1)
	for i := range r.Step {
		r.Step[i] = StepRunning
		r.Trap[i] = inf
		r.Radius[i] = 0
		r.LogDeriv[i] = 0
	}
}

// Len returns the number of pixels.
func (r *Results) Len() int { return len(r.Step) }

// Escaped reports whether pixel i has escaped.
func (r *Results) Escaped(i int) bool { return r.Step[i] != StepRunning }

// Running counts pixels that have not escaped.
func (r *Results) Running() int {
	n := 0
	for _, s := range r.Step {
		if s == StepRunning {
			n++
		}
	}
	return n
}

// Clone returns a deep copy.
func (r *Results) Clone() *Results {
	return &Results{
		Width:    r.Width,
		Height:   r.Height,
		Step:     append([]uint32(nil), r.Step...),
		Trap:     append([]float64(nil), r.Trap...),
		Radius:   append([]float64(nil), r.Radius...),
		LogDeriv: append([]float64(nil), r.LogDeriv...),
	}
}

func (r *Results) escape(i int, n int, sq float64, logDeriv float64) {
	r.Step[i] = uint32(n)
	r.Radius[i] = math.Sqrt(sq)
	r.LogDeriv[i] = logDeriv
}

func (r *Results) trap(i int, n int, sq float64) {
	if n > 0 && sq < r.Trap[i] {
		r.Trap[i] = sq
	}
}
