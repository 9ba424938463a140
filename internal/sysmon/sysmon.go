// Package sysmon samples host CPU and memory use for the explorer's status
// line.
package sysmon

import (
	"context"
	"fmt"
	"os"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
)

// Stats holds a single snapshot of resource usage.
type Stats struct {
	CPUPercent float64 // system-wide, 0.0 .. 100.0
	MemPercent float64 // system-wide, 0.0 .. 100.0
	RSS        uint64  // resident bytes of this process
}

// Sample collects one snapshot. CPU uses interval 0, the delta since the
// previous call. Readings that fail are left at zero.
func Sample(ctx context.Context) Stats {
	var s Stats
	if pcts, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(pcts) > 0 {
		s.CPUPercent = pcts[0]
	}
	if vmem, err := mem.VirtualMemoryWithContext(ctx); err == nil && vmem != nil {
		s.MemPercent = vmem.UsedPercent
	}
	if p, err := process.NewProcessWithContext(ctx, int32(os.Getpid())); err == nil {
		if mi, err := p.MemoryInfoWithContext(ctx); err == nil && mi != nil {
			s.RSS = mi.RSS
		}
	}
	return s
}

// String renders the snapshot for a status line.
func (s Stats) String() string {
	return fmt.Sprintf("cpu %4.1f%%  mem %4.1f%%  rss %d MiB", s.CPUPercent, s.MemPercent, s.RSS>>20)
}
