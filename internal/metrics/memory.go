package metrics

import (
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
)

// MemorySnapshot holds a point-in-time memory reading.
type MemorySnapshot struct {
	HeapAlloc    uint64 // bytes in use by application
	HeapSys      uint64 // bytes obtained from OS for heap
	Sys          uint64 // total bytes obtained from OS
	NumGC        uint32 // number of completed GC cycles
	PauseTotalNs uint64 // cumulative GC pause time
	HeapObjects  uint64 // number of allocated heap objects
}

// MemoryCollector reads runtime memory statistics. It doubles as a
// prometheus.Collector so the render arenas' footprint shows up next to the
// pipeline metrics.
type MemoryCollector struct {
	heapAlloc *prometheus.Desc
	heapSys   *prometheus.Desc
	numGC     *prometheus.Desc
}

// NewMemoryCollector creates a new memory collector.
func NewMemoryCollector() *MemoryCollector {
	return &MemoryCollector{
		heapAlloc: prometheus.NewDesc(namespace+"_heap_alloc_bytes", "Bytes of heap in use, including render arenas.", nil, nil),
		heapSys:   prometheus.NewDesc(namespace+"_heap_sys_bytes", "Bytes of heap obtained from the OS.", nil, nil),
		numGC:     prometheus.NewDesc(namespace+"_gc_cycles_total", "Completed GC cycles.", nil, nil),
	}
}

// Snapshot reads current memory statistics.
func (mc *MemoryCollector) Snapshot() MemorySnapshot {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return MemorySnapshot{
		HeapAlloc:    m.HeapAlloc,
		HeapSys:      m.HeapSys,
		Sys:          m.Sys,
		NumGC:        m.NumGC,
		PauseTotalNs: m.PauseTotalNs,
		HeapObjects:  m.HeapObjects,
	}
}

// Describe implements prometheus.Collector.
func (mc *MemoryCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- mc.heapAlloc
	ch <- mc.heapSys
	ch <- mc.numGC
}

// Collect implements prometheus.Collector.
func (mc *MemoryCollector) Collect(ch chan<- prometheus.Metric) {
	s := mc.Snapshot()
	ch <- prometheus.MustNewConstMetric(mc.heapAlloc, prometheus.GaugeValue, float64(s.HeapAlloc))
	ch <- prometheus.MustNewConstMetric(mc.heapSys, prometheus.GaugeValue, float64(s.HeapSys))
	ch <- prometheus.MustNewConstMetric(mc.numGC, prometheus.CounterValue, float64(s.NumGC))
}

// ArenaBytes estimates the memory one render of width×height pixels holds
// in its grid and result arenas for a given bytes-per-pixel grid state.
func ArenaBytes(width, height, gridBytesPerPixel int) uint64 {
	const resultBytes = 4 + 3*8 // step + trap, radius, log-derivative
	const colorBytes = 4
	return uint64(width) * uint64(height) * uint64(gridBytesPerPixel+resultBytes+colorBytes)
}
