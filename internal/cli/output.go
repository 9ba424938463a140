// # Naming Conventions
//
//   - Display* and Print* functions write formatted output to an [io.Writer].
//   - Format* functions return a formatted string without performing I/O.

package cli

import (
	"fmt"
	"io"
	"runtime"

	"github.com/agbru/deepzoom/internal/compute"
	"github.com/agbru/deepzoom/internal/config"
	"github.com/agbru/deepzoom/internal/format"
	"github.com/agbru/deepzoom/internal/metrics"
	"github.com/agbru/deepzoom/internal/perturb"
	"github.com/agbru/deepzoom/internal/pipeline"
	"github.com/agbru/deepzoom/internal/ui"
)

// OutputConfig holds configuration for result output.
type OutputConfig struct {
	// OutputFile is the path the image was written to.
	OutputFile string
	// Quiet prints only the output path.
	Quiet bool
	// Verbose adds stage and memory statistics.
	Verbose bool
}

// PrintRenderConfig displays what is about to be rendered.
func PrintRenderConfig(cfg config.AppConfig, req pipeline.Request, dev compute.Device, out io.Writer) {
	fmt.Fprintf(out, "--- Render Configuration ---\n")
	fmt.Fprintf(out, "Center %s%s%s at zoom %s%s%s, %dx%d, cap %s iterations.\n",
		ui.ColorPrimary(), req.Viewport.Center, ui.ColorReset(),
		ui.ColorWarning(), format.FormatZoom(req.Viewport.Zoom), ui.ColorReset(),
		req.Viewport.Width, req.Viewport.Height, format.FormatNumber(int64(req.MaxIter)))
	fmt.Fprintf(out, "Device: %s%s%s (%d logical processors, Go %s), requested tier %s%s%s, timeout %s.\n",
		ui.ColorInfo(), dev.Name(), ui.ColorReset(), runtime.NumCPU(), runtime.Version(),
		ui.ColorInfo(), req.Tier, ui.ColorReset(), cfg.Timeout)
	fmt.Fprintf(out, "\n--- Rendering ---\n")
}

// FormatTier describes the tier a frame used, noting an upgrade.
func FormatTier(f pipeline.Frame) string {
	if f.Upgraded {
		return fmt.Sprintf("%s (upgraded for the zoom)", f.Tier)
	}
	return f.Tier.String()
}

// DisplayFrameSummary reports a finished render.
func DisplayFrameSummary(out io.Writer, f pipeline.Frame, runs pipeline.StageRuns, cfg OutputConfig) {
	if cfg.Quiet {
		fmt.Fprintln(out, cfg.OutputFile)
		return
	}
	pixels := f.Width * f.Height
	fmt.Fprintf(out, "\n%s✓ Rendered %dx%d in %s%s\n",
		ui.ColorSuccess(), f.Width, f.Height, format.FormatExecutionDuration(f.Elapsed), ui.ColorReset())
	fmt.Fprintf(out, "Tier:     %s\n", FormatTier(f))
	fmt.Fprintf(out, "Escaped:  %s of %s pixels (%.1f%%)\n",
		format.FormatNumber(int64(f.Escaped)), format.FormatNumber(int64(pixels)), 100*float64(f.Escaped)/float64(max(pixels, 1)))

	if cfg.Verbose {
		fmt.Fprintf(out, "Stages:   probe %d, grid %d, iterate %d (%d batches, %d orbit extensions), color %d\n",
			runs.Probe, runs.Grid, runs.Iterate, runs.Batches, runs.OrbitExtensions, runs.Color)
		fmt.Fprintf(out, "Arena:    %s\n",
			format.FormatBytes(metrics.ArenaBytes(f.Width, f.Height, perturb.BytesPerPixel(f.Tier))))
		DisplayMemoryStats(metrics.NewMemoryCollector().Snapshot(), out)
	}
	if cfg.OutputFile != "" {
		fmt.Fprintf(out, "%s✓ Image saved to: %s%s%s\n",
			ui.ColorSuccess(), ui.ColorPrimary(), cfg.OutputFile, ui.ColorReset())
	}
}

// DisplayMemoryStats shows heap statistics after a render.
func DisplayMemoryStats(s metrics.MemorySnapshot, out io.Writer) {
	fmt.Fprintf(out, "Memory:   heap %s, sys %s, %d GC cycles\n",
		format.FormatBytes(s.HeapAlloc), format.FormatBytes(s.Sys), s.NumGC)
}
