// Package metrics exposes the renderer's Prometheus instrumentation: the
// pipeline stage counters, the runtime memory collector, and the HTTP
// handler that serves them.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const namespace = "deepzoom"

// Pipeline holds the coordinator's metrics. A nil *Pipeline is valid and
// records nothing.
type Pipeline struct {
	stageRuns     *prometheus.CounterVec
	stageErrors   *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	batches       prometheus.Counter
	stale         prometheus.Counter
	generation    prometheus.Gauge
	running       prometheus.Gauge
}

// NewPipeline registers the pipeline metrics with reg. A nil reg uses a
// private registry.
func NewPipeline(reg prometheus.Registerer) *Pipeline {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Pipeline{
		stageRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_runs_total",
			Help:      "Pipeline stage executions.",
		}, []string{"stage"}),
		stageErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_errors_total",
			Help:      "Pipeline stage failures, excluding abandoned generations.",
		}, []string{"stage"}),
		stageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time of pipeline stages.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"stage"}),
		batches: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "iterate_batches_total",
			Help:      "Iteration batches dispatched.",
		}),
		stale: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_generations_total",
			Help:      "Generations abandoned in favor of a newer request.",
		}),
		generation: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "generation",
			Help:      "Generation of the last presented frame.",
		}),
		running: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "running_pixels",
			Help:      "Pixels still iterating after the last batch.",
		}),
	}
}

// ObserveStage records one stage execution.
func (p *Pipeline) ObserveStage(stage string, d time.Duration, err error) {
	if p == nil {
		return
	}
	p.stageRuns.WithLabelValues(stage).Inc()
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
	if err != nil {
		p.stageErrors.WithLabelValues(stage).Inc()
	}
}

// ObserveBatch records one iteration batch and the pixels left running.
func (p *Pipeline) ObserveBatch(running int) {
	if p == nil {
		return
	}
	p.batches.Inc()
	p.running.Set(float64(running))
}

// ObserveStale records an abandoned generation.
func (p *Pipeline) ObserveStale() {
	if p == nil {
		return
	}
	p.stale.Inc()
}

// SetGeneration records the generation of the last presented frame.
func (p *Pipeline) SetGeneration(gen uint64) {
	if p == nil {
		return
	}
	p.generation.Set(float64(gen))
}

// NewRegistry returns a registry carrying the Go runtime, process and
// memory collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		NewMemoryCollector(),
	)
	return reg
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string, reg *prometheus.Registry, logger zerolog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(reg))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("metrics endpoint listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
