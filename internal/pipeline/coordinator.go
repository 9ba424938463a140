// Package pipeline coordinates the probe, grid, iterate and color stages.
//
// The Coordinator compares each request with the state the previous
// generation left behind and re-runs only the stages the difference
// invalidates. Requests arrive through a latest-wins mailbox: a request that
// is superseded while it renders is abandoned between iteration batches and
// the newer one starts from whatever state was reached.
package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/agbru/deepzoom/internal/coloring"
	"github.com/agbru/deepzoom/internal/compute"
	apperrors "github.com/agbru/deepzoom/internal/errors"
	"github.com/agbru/deepzoom/internal/metrics"
	"github.com/agbru/deepzoom/internal/perturb"
	"github.com/agbru/deepzoom/internal/precision"
	"github.com/agbru/deepzoom/internal/probe"
)

const tracerName = "github.com/agbru/deepzoom/internal/pipeline"

// Coordinator owns the compute side of the renderer.
type Coordinator struct {
	dev      compute.Device
	selector *precision.Selector
	gen      *probe.Generator
	sink     Sink
	batch    int
	logger   zerolog.Logger
	metrics  *metrics.Pipeline
	tracer   trace.Tracer

	mail    *mailbox
	status  atomic.Pointer[Status]
	runs    stageCounters
	nextGen atomic.Uint64
	lastGen atomic.Uint64

	// mu serializes renders and guards cache.
	mu    sync.Mutex
	cache *cache
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithSink sets where Run presents finished frames.
func WithSink(s Sink) Option { return func(c *Coordinator) { c.sink = s } }

// WithSelector replaces the default tier thresholds.
func WithSelector(s *precision.Selector) Option {
	return func(c *Coordinator) {
		if s != nil {
			c.selector = s
		}
	}
}

// WithGenerator sets the probe orbit generator.
func WithGenerator(g *probe.Generator) Option {
	return func(c *Coordinator) {
		if g != nil {
			c.gen = g
		}
	}
}

// WithBatchIterations sets how many orbit indices one iteration dispatch
// covers. Non-positive values keep the default.
func WithBatchIterations(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.batch = n
		}
	}
}

// WithLogger sets the coordinator's logger.
func WithLogger(l zerolog.Logger) Option { return func(c *Coordinator) { c.logger = l } }

// WithMetrics records stage metrics into m.
func WithMetrics(m *metrics.Pipeline) Option { return func(c *Coordinator) { c.metrics = m } }

// WithTracerProvider traces stages with tp instead of the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Coordinator) {
		if tp != nil {
			c.tracer = tp.Tracer(tracerName)
		}
	}
}

// New creates a coordinator that dispatches its kernels on dev.
func New(dev compute.Device, opts ...Option) *Coordinator {
	sel, _ := precision.NewSelector(precision.DefaultThresholds())
	c := &Coordinator{
		dev:      dev,
		selector: sel,
		gen:      probe.NewGenerator(nil),
		batch:    perturb.DefaultBatchIterations,
		logger:   zerolog.Nop(),
		tracer:   otel.Tracer(tracerName),
		mail:     newMailbox(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.status.Store(&Status{})
	return c
}

// Submit hands r to the compute loop and returns its generation. It never
// blocks; a request not yet picked up is replaced.
func (c *Coordinator) Submit(r Request) uint64 {
	gen := c.nextGen.Add(1)
	c.mail.put(&job{gen: gen, req: r})
	return gen
}

// Status returns the latest published snapshot.
func (c *Coordinator) Status() Status { return *c.status.Load() }

// StageRuns returns the stage execution counters.
func (c *Coordinator) StageRuns() StageRuns { return c.runs.snapshot() }

// Generation returns the generation of the last completed frame.
func (c *Coordinator) Generation() uint64 { return c.lastGen.Load() }

// Run is the compute loop. It renders the newest submitted request, hands
// the frame to the sink, and waits for the next one. It returns when ctx is
// done or the device fails.
func (c *Coordinator) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.mail.signal:
		}
		for j := c.mail.take(); j != nil; j = c.mail.take() {
			f, err := c.render(ctx, j, true)
			if err != nil {
				if errors.Is(err, apperrors.ErrStaleGeneration) {
					continue
				}
				if ctx.Err() != nil {
					return ctx.Err()
				}
				var devErr apperrors.DeviceUnavailableError
				if errors.As(err, &devErr) {
					return err
				}
				continue
			}
			if c.sink == nil {
				continue
			}
			if err := c.sink.Present(ctx, f); err != nil {
				c.logger.Error().Err(err).Uint64("generation", f.Generation).Msg("sink rejected frame")
			}
		}
	}
}

// RenderSync renders r on the calling goroutine and returns the frame
// without presenting it. It shares the cache with Run and is never
// abandoned for newer requests.
func (c *Coordinator) RenderSync(ctx context.Context, r Request) (Frame, error) {
	gen := c.nextGen.Add(1)
	return c.render(ctx, &job{gen: gen, req: r}, false)
}

func (c *Coordinator) render(ctx context.Context, j *job, abandonable bool) (Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	start := time.Now()

	t, err := c.resolve(j.req)
	if err != nil {
		return c.fail(j.gen, t, err)
	}
	plan := planFor(c.cache, t)
	c.logger.Debug().
		Uint64("generation", j.gen).
		Str("tier", t.tier.String()).
		Bool("upgraded", t.upgraded).
		Stringer("plan", planStages(plan.Stages())).
		Bool("resume", plan.Resume).
		Msg("render planned")

	stale := func() bool { return abandonable && c.mail.pending() }

	if plan.Grid {
		if err := c.prepare(ctx, j.gen, t, plan.Probe); err != nil {
			return c.fail(j.gen, t, err)
		}
	}
	if plan.Iterate {
		if err := c.iterate(ctx, j.gen, t, !plan.Resume && !plan.Grid, stale); err != nil {
			return c.fail(j.gen, t, err)
		}
	}
	if stale() {
		return c.fail(j.gen, t, apperrors.ErrStaleGeneration)
	}
	if plan.Color {
		if err := c.colorize(ctx, j.gen, t); err != nil {
			return c.fail(j.gen, t, err)
		}
	}

	cc := c.cache
	f := Frame{
		Generation: j.gen,
		Width:      t.view.Width,
		Height:     t.view.Height,
		Pix:        cc.pix,
		Tier:       t.tier,
		Upgraded:   t.upgraded,
		MaxIter:    t.maxIter,
		Escaped:    cc.res.Len() - cc.res.Running(),
		Elapsed:    time.Since(start),
	}
	c.publish(Status{Generation: j.gen, State: Idle, Tier: t.tier, Progress: 1})
	c.lastGen.Store(j.gen)
	c.metrics.SetGeneration(j.gen)
	c.logger.Info().
		Uint64("generation", j.gen).
		Str("tier", t.tier.String()).
		Int("escaped", f.Escaped).
		Dur("elapsed", f.Elapsed).
		Msg("frame rendered")
	return f, nil
}

func (c *Coordinator) resolve(r Request) (target, error) {
	if err := r.Validate(); err != nil {
		return target{}, err
	}
	tier, upgraded, err := c.selector.Resolve(r.Tier, r.Viewport.Zoom)
	if err != nil {
		return target{tier: tier}, err
	}
	bits := precision.Bits(r.Viewport.Zoom)
	view := r.Viewport.WithPrec(bits)
	at := view.Center
	if r.ProbeOverride != nil {
		at = r.ProbeOverride.WithPrec(bits)
	}
	return target{
		tier:     tier,
		upgraded: upgraded,
		bits:     bits,
		view:     view,
		probe:    at,
		maxIter:  int(r.MaxIter),
		color:    r.Color,
	}, nil
}

// prepare computes the probe orbit and the delta grid concurrently. The
// grid needs only the probe location, not its orbit.
func (c *Coordinator) prepare(ctx context.Context, gen uint64, t target, withProbe bool) error {
	if withProbe {
		c.publish(Status{Generation: gen, State: Probing, Tier: t.tier})
	} else {
		c.publish(Status{Generation: gen, State: Gridding, Tier: t.tier})
	}

	var (
		orbit *probe.Orbit
		grid  *perturb.Grid
	)
	g, gctx := errgroup.WithContext(ctx)
	if withProbe {
		g.Go(func() error {
			return c.stage(gctx, gen, Probing, t.tier, func(ctx context.Context) error {
				o, err := c.gen.Generate(ctx, t.probe, t.maxIter, t.bits)
				orbit = o
				return err
			})
		})
	}
	g.Go(func() error {
		return c.stage(gctx, gen, Gridding, t.tier, func(ctx context.Context) error {
			gr, err := perturb.Generate(ctx, c.dev, t.view, t.probe, t.tier)
			grid = gr
			return err
		})
	})
	if err := g.Wait(); err != nil {
		return err
	}

	prev := c.cache
	next := &cache{
		tier:     t.tier,
		probeKey: t.probe.Key(),
		viewKey:  t.view.Key(),
		orbit:    orbit,
		grid:     grid,
		iterCap:  t.maxIter,
	}
	if !withProbe && prev != nil {
		next.orbit = prev.orbit
	}
	if prev != nil && prev.res != nil && prev.res.Width == t.view.Width && prev.res.Height == t.view.Height {
		prev.res.Reset()
		next.res = prev.res
	} else {
		next.res = perturb.NewResults(t.view.Width, t.view.Height)
	}
	c.cache = next
	return nil
}

// iterate advances the cached grid in batches up to the target cap. It stops
// with ErrStaleGeneration before any batch once a newer request is waiting;
// the position reached stays in the cache.
func (c *Coordinator) iterate(ctx context.Context, gen uint64, t target, rewind bool, stale func() bool) error {
	c.publish(Status{Generation: gen, State: Iterating, Tier: t.tier})
	cc := c.cache
	return c.stage(ctx, gen, Iterating, t.tier, func(ctx context.Context) error {
		if rewind || cc.dirty {
			cc.grid.Rewind()
			cc.res.Reset()
			cc.iterPos = 0
			cc.dirty = false
		}
		cc.iterCap = t.maxIter
		cc.complete = false
		cc.colored = false

		var orbit *probe.Orbit
		if t.perturbs() {
			if !cc.orbit.Escaped() && cc.orbit.Cap() < t.maxIter {
				o, err := c.gen.Extend(ctx, cc.orbit, t.maxIter)
				if err != nil {
					return err
				}
				c.runs.extend.Add(1)
				cc.orbit = o
			}
			orbit = probe.Truncate(cc.orbit, t.maxIter)
		}

		span := perturb.Span(t.tier, orbit, t.maxIter)
		for cc.iterPos < span {
			if stale() {
				return apperrors.ErrStaleGeneration
			}
			st, err := perturb.Iterate(ctx, c.dev, cc.grid, orbit, cc.res, perturb.IterateParams{
				Width:      t.view.Width,
				Height:     t.view.Height,
				MaxIter:    t.maxIter,
				ProbeLen:   c.batch,
				IterOffset: cc.iterPos,
			})
			if err != nil {
				cc.dirty = true
				return err
			}
			cc.iterPos = st.End
			c.runs.batches.Add(1)
			c.metrics.ObserveBatch(st.Running)
			c.publish(Status{Generation: gen, State: Iterating, Tier: t.tier, Progress: float64(cc.iterPos) / float64(span)})
			if st.Running == 0 {
				break
			}
		}
		cc.complete = true
		return nil
	})
}

func (c *Coordinator) colorize(ctx context.Context, gen uint64, t target) error {
	c.publish(Status{Generation: gen, State: Coloring, Tier: t.tier, Progress: 1})
	cc := c.cache
	return c.stage(ctx, gen, Coloring, t.tier, func(ctx context.Context) error {
		pix := make([]byte, 4*t.view.Width*t.view.Height)
		f := coloring.Frame{Width: t.view.Width, Height: t.view.Height, MaxIter: t.maxIter, Zoom: t.view.Zoom}
		if err := coloring.Colorize(ctx, c.dev, cc.res, t.color, f, pix); err != nil {
			return err
		}
		cc.pix, cc.color, cc.colored = pix, t.color, true
		return nil
	})
}

// stage runs fn inside a trace span and records its metrics.
func (c *Coordinator) stage(ctx context.Context, gen uint64, s State, tier precision.Tier, fn func(context.Context) error) error {
	c.runs.inc(s)
	ctx, span := c.tracer.Start(ctx, "pipeline."+s.String(), trace.WithAttributes(
		attribute.Int64("deepzoom.generation", int64(gen)),
		attribute.String("deepzoom.tier", tier.String()),
	))
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	if errors.Is(err, apperrors.ErrStaleGeneration) {
		span.AddEvent("abandoned")
		c.metrics.ObserveStage(s.String(), time.Since(start), nil)
		return err
	}
	c.metrics.ObserveStage(s.String(), time.Since(start), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// fail publishes err unless the generation was merely superseded.
func (c *Coordinator) fail(gen uint64, t target, err error) (Frame, error) {
	if errors.Is(err, apperrors.ErrStaleGeneration) {
		c.metrics.ObserveStale()
		c.logger.Debug().Uint64("generation", gen).Msg("generation superseded")
		return Frame{}, err
	}
	c.publish(Status{Generation: gen, State: Idle, Tier: t.tier, Err: err})
	if !apperrors.IsContextError(err) {
		c.logger.Error().Err(err).Uint64("generation", gen).Msg("render failed")
	}
	return Frame{}, err
}

func (c *Coordinator) publish(s Status) { c.status.Store(&s) }

type planStages []State

func (p planStages) String() string {
	if len(p) == 0 {
		return "none"
	}
	out := ""
	for i, s := range p {
		if i > 0 {
			out += ">"
		}
		out += s.String()
	}
	return out
}
