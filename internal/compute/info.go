package compute

import (
	"runtime"
	"strings"

	"golang.org/x/sys/cpu"
)

// HostInfo describes the machine the CPU backends run on.
type HostInfo struct {
	Arch     string
	NumCPU   int
	Features []string
}

// Info reports the host architecture and the SIMD features relevant to the
// float-heavy kernels.
func Info() HostInfo {
	info := HostInfo{Arch: runtime.GOARCH, NumCPU: runtime.NumCPU()}
	switch runtime.GOARCH {
	case "amd64", "386":
		add := func(ok bool, name string) {
			if ok {
				info.Features = append(info.Features, name)
			}
		}
		add(cpu.X86.HasSSE2, "sse2")
		add(cpu.X86.HasSSE41, "sse4.1")
		add(cpu.X86.HasAVX, "avx")
		add(cpu.X86.HasAVX2, "avx2")
		add(cpu.X86.HasFMA, "fma")
		add(cpu.X86.HasAVX512F, "avx512f")
	case "arm64":
		if cpu.ARM64.HasASIMD {
			info.Features = append(info.Features, "asimd")
		}
		if cpu.ARM64.HasFPHP {
			info.Features = append(info.Features, "fphp")
		}
	}
	return info
}

// String formats the info for the startup banner.
func (h HostInfo) String() string {
	if len(h.Features) == 0 {
		return h.Arch
	}
	return h.Arch + " [" + strings.Join(h.Features, " ") + "]"
}
