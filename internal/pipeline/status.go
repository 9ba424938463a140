package pipeline

import (
	"sync/atomic"

	"github.com/agbru/deepzoom/internal/precision"
)

// State is the coordinator's position in the pipeline.
type State int

const (
	Idle State = iota
	Probing
	Gridding
	Iterating
	Coloring
)

var stateNames = [...]string{"idle", "probing", "gridding", "iterating", "coloring"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Status is a snapshot published by the compute loop after every stage and
// batch. Readers poll it; it is never used for synchronization.
type Status struct {
	Generation uint64
	State      State
	Tier       precision.Tier
	// Progress is the fraction of the iteration span covered, in [0, 1].
	Progress float64
	// Err is the last failure. Abandoned generations never set it.
	Err error
}

// StageRuns counts stage executions since the coordinator was created.
type StageRuns struct {
	Probe, Grid, Iterate, Color uint64
	// OrbitExtensions counts probe orbits lengthened in place for a larger
	// cap, which happens inside the iterating stage.
	OrbitExtensions uint64
	// Batches counts iteration dispatches.
	Batches uint64
}

type stageCounters struct {
	probe, grid, iterate, color, extend, batches atomic.Uint64
}

func (c *stageCounters) snapshot() StageRuns {
	return StageRuns{
		Probe:           c.probe.Load(),
		Grid:            c.grid.Load(),
		Iterate:         c.iterate.Load(),
		Color:           c.color.Load(),
		OrbitExtensions: c.extend.Load(),
		Batches:         c.batches.Load(),
	}
}

func (c *stageCounters) inc(s State) {
	switch s {
	case Probing:
		c.probe.Add(1)
	case Gridding:
		c.grid.Add(1)
	case Iterating:
		c.iterate.Add(1)
	case Coloring:
		c.color.Add(1)
	}
}
