package config

import "runtime"

// Worker count resolution chain (highest priority first):
//   1. CLI flag (--workers)
//   2. Environment variable (DEEPZOOM_WORKERS)
//   3. Adaptive hardware estimation (this file)

// ApplyAdaptiveWorkers fills in a worker count from the host when the
// configuration leaves it at zero. Explicit values are preserved.
func ApplyAdaptiveWorkers(cfg AppConfig) AppConfig {
	if cfg.Workers == 0 {
		cfg.Workers = EstimateOptimalWorkers(runtime.NumCPU())
	}
	return cfg
}

// EstimateOptimalWorkers picks a worker count for numCPU cores. Small hosts
// leave one core for the interactive side; large hosts cap out where 16x16
// work groups stop scaling on typical preview sizes.
func EstimateOptimalWorkers(numCPU int) int {
	switch {
	case numCPU <= 1:
		return 1
	case numCPU <= 4:
		return numCPU - 1
	case numCPU <= 32:
		return numCPU
	default:
		return 32
	}
}
