package pipeline

import (
	"github.com/agbru/deepzoom/internal/coloring"
	"github.com/agbru/deepzoom/internal/geometry"
	"github.com/agbru/deepzoom/internal/perturb"
	"github.com/agbru/deepzoom/internal/precision"
	"github.com/agbru/deepzoom/internal/probe"
)

// Plan lists the stages a request needs, in pipeline order.
type Plan struct {
	Probe   bool
	Grid    bool
	Iterate bool
	Color   bool
	// Resume continues iteration from the persisted per-pixel state instead
	// of rewinding the grid.
	Resume bool
}

// Stages returns the states the plan passes through.
func (p Plan) Stages() []State {
	var s []State
	if p.Probe {
		s = append(s, Probing)
	}
	if p.Grid {
		s = append(s, Gridding)
	}
	if p.Iterate {
		s = append(s, Iterating)
	}
	if p.Color {
		s = append(s, Coloring)
	}
	return s
}

// target is a request resolved against the selector.
type target struct {
	tier     precision.Tier
	upgraded bool
	bits     uint
	view     geometry.Viewport
	probe    geometry.Point
	maxIter  int
	color    coloring.Params
}

func (t target) perturbs() bool { return t.tier.Strategy() == precision.Perturbation }

// cache is the state left by the last generation, complete or abandoned.
type cache struct {
	tier     precision.Tier
	probeKey string
	viewKey  string

	// orbit is the longest orbit computed for probeKey.
	orbit *probe.Orbit
	grid  *perturb.Grid
	res   *perturb.Results

	// iterCap is the cap the results are being computed for and iterPos the
	// orbit index the grid has reached.
	iterCap  int
	iterPos  int
	complete bool
	// dirty marks a grid left inconsistent by a failed batch.
	dirty bool

	colored bool
	color   coloring.Params
	pix     []byte
}

// planFor decides the minimal set of stages that turns c into t.
func planFor(c *cache, t target) Plan {
	switch {
	case c == nil || c.grid == nil || c.tier != t.tier:
		return Plan{Probe: t.perturbs(), Grid: true, Iterate: true, Color: true}
	case t.perturbs() && (c.orbit == nil || c.probeKey != t.probe.Key() || c.orbit.Bits() < t.bits):
		return Plan{Probe: true, Grid: true, Iterate: true, Color: true}
	case c.viewKey != t.view.Key():
		return Plan{Grid: true, Iterate: true, Color: true}
	case c.dirty || t.maxIter < c.iterCap:
		return Plan{Iterate: true, Color: true}
	case t.maxIter > c.iterCap || !c.complete:
		return Plan{Iterate: true, Resume: true, Color: true}
	case !c.colored || c.color != t.color:
		return Plan{Color: true}
	}
	return Plan{}
}
