// Package compute provides the data-parallel dispatch used by the grid,
// iteration and coloring stages. Work is issued as 16×16 work groups over a
// grid rounded up to cover the image; invocations outside the image are
// discarded by a bounds check, exactly like a compute shader dispatch.
package compute

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	apperrors "github.com/agbru/deepzoom/internal/errors"
)

// WorkGroupSize is the side of a square work group.
const WorkGroupSize = 16

// Kernel is invoked once per in-bounds pixel.
type Kernel func(x, y int)

// Device executes kernels over a width×height domain.
type Device interface {
	// Name returns the backend name.
	Name() string
	// Dispatch runs k for every pixel of a width×height domain. Work groups
	// already started run to completion; cancellation is observed between
	// groups and reported as the context's error.
	Dispatch(ctx context.Context, width, height int, k Kernel) error
	// Stats returns cumulative dispatch counters.
	Stats() Stats
}

// Stats counts dispatched work.
type Stats struct {
	Dispatches  uint64
	WorkGroups  uint64
	Invocations uint64 // in-bounds kernel calls
}

// WorkGroups returns the dispatch grid covering width×height.
func WorkGroups(width, height int) (gx, gy int) {
	return (width + WorkGroupSize - 1) / WorkGroupSize, (height + WorkGroupSize - 1) / WorkGroupSize
}

type counters struct {
	dispatches  atomic.Uint64
	workGroups  atomic.Uint64
	invocations atomic.Uint64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Dispatches:  c.dispatches.Load(),
		WorkGroups:  c.workGroups.Load(),
		Invocations: c.invocations.Load(),
	}
}

// runGroup executes one work group with the bounds check.
func runGroup(gx, gy, width, height int, k Kernel) uint64 {
	var n uint64
	for ly := 0; ly < WorkGroupSize; ly++ {
		y := gy*WorkGroupSize + ly
		for lx := 0; lx < WorkGroupSize; lx++ {
			x := gx*WorkGroupSize + lx
			if x >= width || y >= height {
				continue
			}
			k(x, y)
			n++
		}
	}
	return n
}

// ─────────────────────────────────────────────────────────────────────────────
// Backends
// ─────────────────────────────────────────────────────────────────────────────

// CPU spreads work groups across a bounded pool of goroutines.
type CPU struct {
	workers int
	counters
}

// NewCPU creates a parallel device. workers <= 0 uses runtime.NumCPU().
func NewCPU(workers int) *CPU {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &CPU{workers: workers}
}

// Name implements Device.
func (d *CPU) Name() string { return "cpu" }

// Workers returns the pool size.
func (d *CPU) Workers() int { return d.workers }

// Stats implements Device.
func (d *CPU) Stats() Stats { return d.snapshot() }

// Dispatch implements Device.
func (d *CPU) Dispatch(ctx context.Context, width, height int, k Kernel) error {
	if width <= 0 || height <= 0 {
		return nil
	}
	d.dispatches.Add(1)
	gx, gy := WorkGroups(width, height)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers)
	for y := 0; y < gy; y++ {
		for x := 0; x < gx; x++ {
			if err := gctx.Err(); err != nil {
				_ = g.Wait()
				return ctx.Err()
			}
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				d.invocations.Add(runGroup(x, y, width, height, k))
				d.workGroups.Add(1)
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// Serial runs every work group on the calling goroutine.
type Serial struct {
	counters
}

// NewSerial creates a single-threaded device.
func NewSerial() *Serial { return &Serial{} }

// Name implements Device.
func (d *Serial) Name() string { return "serial" }

// Stats implements Device.
func (d *Serial) Stats() Stats { return d.snapshot() }

// Dispatch implements Device.
func (d *Serial) Dispatch(ctx context.Context, width, height int, k Kernel) error {
	if width <= 0 || height <= 0 {
		return nil
	}
	d.dispatches.Add(1)
	gx, gy := WorkGroups(width, height)
	for y := 0; y < gy; y++ {
		for x := 0; x < gx; x++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			d.invocations.Add(runGroup(x, y, width, height, k))
			d.workGroups.Add(1)
		}
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Registry
// ─────────────────────────────────────────────────────────────────────────────

// Constructor builds a device for the given worker count.
type Constructor func(workers int) (Device, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Constructor{
		"cpu": func(workers int) (Device, error) {
			if workers < 0 {
				return nil, apperrors.DeviceUnavailableError{Backend: "cpu", Reason: fmt.Sprintf("invalid worker count %d", workers)}
			}
			return NewCPU(workers), nil
		},
		"serial": func(int) (Device, error) { return NewSerial(), nil },
	}
)

// Register adds a backend. Registering an existing name replaces it.
func Register(name string, c Constructor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = c
}

// List returns the registered backend names in sorted order.
func List() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open acquires a device by backend name. Unknown backends yield a
// DeviceUnavailableError.
func Open(name string, workers int) (Device, error) {
	registryMu.RLock()
	c, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, apperrors.DeviceUnavailableError{Backend: name, Reason: "no such backend (available: " + fmt.Sprint(List()) + ")"}
	}
	return c(workers)
}
