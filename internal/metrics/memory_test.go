package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMemoryCollector_Snapshot(t *testing.T) {
	t.Parallel()

	mc := NewMemoryCollector()
	snap := mc.Snapshot()

	if snap.HeapAlloc == 0 {
		t.Error("HeapAlloc should be > 0")
	}
	if snap.Sys == 0 {
		t.Error("Sys should be > 0")
	}
}

func TestMemoryCollector_Collect(t *testing.T) {
	t.Parallel()

	if n := testutil.CollectAndCount(NewMemoryCollector()); n != 3 {
		t.Errorf("collected %d metrics, want 3", n)
	}
}

func TestArenaBytes(t *testing.T) {
	t.Parallel()
	if got := ArenaBytes(0, 10, 16); got != 0 {
		t.Errorf("empty image = %d bytes", got)
	}
	if ArenaBytes(100, 100, 48) <= ArenaBytes(100, 100, 16) {
		t.Error("wider grid state should cost more")
	}
}

func TestPipeline_Counters(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	p := NewPipeline(reg)

	p.ObserveStage("probing", time.Millisecond, nil)
	p.ObserveStage("probing", time.Millisecond, errors.New("boom"))
	p.ObserveStage("coloring", time.Millisecond, nil)
	p.ObserveBatch(42)
	p.ObserveBatch(7)
	p.ObserveStale()
	p.SetGeneration(9)

	if got := testutil.ToFloat64(p.stageRuns.WithLabelValues("probing")); got != 2 {
		t.Errorf("probing runs = %v, want 2", got)
	}
	if got := testutil.ToFloat64(p.stageErrors.WithLabelValues("probing")); got != 1 {
		t.Errorf("probing errors = %v, want 1", got)
	}
	if got := testutil.ToFloat64(p.batches); got != 2 {
		t.Errorf("batches = %v, want 2", got)
	}
	if got := testutil.ToFloat64(p.running); got != 7 {
		t.Errorf("running = %v, want the last batch's 7", got)
	}
	if got := testutil.ToFloat64(p.generation); got != 9 {
		t.Errorf("generation = %v, want 9", got)
	}
}

func TestPipeline_NilIsNoop(t *testing.T) {
	t.Parallel()
	var p *Pipeline
	p.ObserveStage("probing", time.Second, nil)
	p.ObserveBatch(1)
	p.ObserveStale()
	p.SetGeneration(1)
}

func TestHandler(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()
	p := NewPipeline(reg)
	p.ObserveStage("iterating", time.Millisecond, nil)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))

	body := rec.Body.String()
	for _, want := range []string{"deepzoom_stage_runs_total", "deepzoom_heap_alloc_bytes", "go_goroutines"} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output should contain %s", want)
		}
	}
}
