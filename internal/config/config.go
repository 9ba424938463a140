// Package config parses the deepzoom command line and DEEPZOOM_* environment
// into an AppConfig.
package config

import (
	"flag"
	"fmt"
	"io"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/agbru/deepzoom/internal/coloring"
	"github.com/agbru/deepzoom/internal/compute"
	apperrors "github.com/agbru/deepzoom/internal/errors"
	"github.com/agbru/deepzoom/internal/geometry"
	"github.com/agbru/deepzoom/internal/perturb"
	"github.com/agbru/deepzoom/internal/pipeline"
	"github.com/agbru/deepzoom/internal/precision"
	"github.com/agbru/deepzoom/internal/probe"
	"github.com/rs/zerolog"
)

// EnvPrefix is prepended to every environment override key.
const EnvPrefix = "DEEPZOOM_"

// Defaults.
const (
	DefaultCenterRe = "-0.75"
	DefaultCenterIm = "0"
	DefaultZoom     = -1.0
	DefaultWidth    = 800
	DefaultHeight   = 600
	DefaultMaxIter  = 1000
	DefaultBackend  = "cpu"
	DefaultEngine   = "bigfloat"
	DefaultOutput   = "deepzoom.png"
	DefaultTimeout  = 5 * time.Minute
	DefaultLogLevel = "info"
)

// AppConfig aggregates the application's configuration parameters.
type AppConfig struct {
	// CenterRe and CenterIm are the view center as decimal strings, so deep
	// coordinates keep every digit.
	CenterRe, CenterIm string
	// Zoom is the log2 magnification; the view's half-width is 2^-Zoom.
	Zoom     float64
	Rotation float64
	Width    int
	Height   int
	MaxIter  uint
	// Tier is "auto" or a tier name accepted by precision.ParseTier.
	Tier string
	// ProbeRe and ProbeIm move the probe orbit off the view center when both
	// are set.
	ProbeRe, ProbeIm string
	Color            coloring.Params
	// BatchIterations bounds the iterations run per dispatch.
	BatchIterations int
	Backend         string
	// Workers is the CPU worker count; 0 picks one from the host.
	Workers int
	// Engine is the probe orbit engine ("bigfloat", or "gmp" when built in).
	Engine string
	MaxZoom precision.Thresholds

	OutputFile string
	// SettingsFile, when set, replaces the view flags with a saved document.
	SettingsFile string
	// SaveSettings writes a settings document next to the output image.
	SaveSettings bool
	TUI          bool
	Quiet        bool
	Verbose      bool
	MetricsAddr  string
	LogLevel     string
	Timeout      time.Duration
}

// Default returns the configuration used when nothing is overridden.
func Default() AppConfig {
	return AppConfig{
		CenterRe:        DefaultCenterRe,
		CenterIm:        DefaultCenterIm,
		Zoom:            DefaultZoom,
		Width:           DefaultWidth,
		Height:          DefaultHeight,
		MaxIter:         DefaultMaxIter,
		Tier:            precision.Auto.String(),
		Color:           coloring.DefaultParams(),
		BatchIterations: perturb.DefaultBatchIterations,
		Backend:         DefaultBackend,
		Engine:          DefaultEngine,
		MaxZoom:         precision.DefaultThresholds(),
		OutputFile:      DefaultOutput,
		LogLevel:        DefaultLogLevel,
		Timeout:         DefaultTimeout,
	}
}

// ParseConfig parses args into an AppConfig. Priority is command-line flags,
// then DEEPZOOM_* environment variables, then defaults. Help requests return
// flag.ErrHelp unchanged; everything else is a ConfigError.
func ParseConfig(programName string, args []string, errorOutput io.Writer) (AppConfig, error) {
	cfg := Default()
	fs := flag.NewFlagSet(programName, flag.ContinueOnError)
	fs.SetOutput(errorOutput)
	registerFlags(fs, &cfg)
	fs.Usage = func() {
		fmt.Fprintf(errorOutput, "Usage: %s [flags]\n\nFlags:\n", programName)
		fs.PrintDefaults()
		fmt.Fprintf(errorOutput, "\nEnvironment (%s prefix, flags take precedence):\n  %s\n",
			EnvPrefix, strings.Join(EnvKeys(), ", "))
	}

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return cfg, err
		}
		return cfg, apperrors.ConfigError{Message: err.Error()}
	}
	if fs.NArg() > 0 {
		return cfg, apperrors.NewConfigError("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	if err := applyEnvOverrides(&cfg, fs); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(errorOutput, "Error:", err)
		return cfg, err
	}
	return cfg, nil
}

func registerFlags(fs *flag.FlagSet, cfg *AppConfig) {
	fs.StringVar(&cfg.CenterRe, "re", cfg.CenterRe, "Real part of the view center (decimal, any length).")
	fs.StringVar(&cfg.CenterIm, "im", cfg.CenterIm, "Imaginary part of the view center (decimal, any length).")
	fs.Float64Var(&cfg.Zoom, "zoom", cfg.Zoom, "Log2 magnification; the view half-width is 2^-zoom.")
	fs.Float64Var(&cfg.Zoom, "z", cfg.Zoom, "Shorthand for -zoom.")
	fs.Float64Var(&cfg.Rotation, "rotation", cfg.Rotation, "View rotation in radians.")
	fs.IntVar(&cfg.Width, "width", cfg.Width, "Output width in pixels.")
	fs.IntVar(&cfg.Height, "height", cfg.Height, "Output height in pixels.")
	fs.UintVar(&cfg.MaxIter, "max-iter", cfg.MaxIter, "Iteration cap.")
	fs.UintVar(&cfg.MaxIter, "i", cfg.MaxIter, "Shorthand for -max-iter.")
	fs.StringVar(&cfg.Tier, "tier", cfg.Tier, "Precision tier: auto, raw-32, raw-64, probed-32, probed-64, probed-extended.")
	fs.StringVar(&cfg.ProbeRe, "probe-re", cfg.ProbeRe, "Real part of the probe orbit (defaults to the center).")
	fs.StringVar(&cfg.ProbeIm, "probe-im", cfg.ProbeIm, "Imaginary part of the probe orbit (defaults to the center).")

	fs.Float64Var(&cfg.Color.Frequency, "frequency", cfg.Color.Frequency, "Palette frequency.")
	fs.Float64Var(&cfg.Color.Offset, "offset", cfg.Color.Offset, "Palette offset, in turns.")
	fs.Float64Var(&cfg.Color.Saturation, "saturation", cfg.Color.Saturation, "Exterior saturation in [0, 1].")
	fs.Float64Var(&cfg.Color.GlowSpread, "glow-spread", cfg.Color.GlowSpread, "Boundary glow spread.")
	fs.Float64Var(&cfg.Color.GlowIntensity, "glow-intensity", cfg.Color.GlowIntensity, "Boundary glow intensity (0 disables).")
	fs.Float64Var(&cfg.Color.Brightness, "brightness", cfg.Color.Brightness, "Exterior brightness.")
	fs.Float64Var(&cfg.Color.InteriorBrightness, "interior-brightness", cfg.Color.InteriorBrightness, "Interior brightness.")
	fs.Float64Var(&cfg.Color.Misc, "misc", cfg.Color.Misc, "Orbit-trap blend in [0, 1].")

	fs.IntVar(&cfg.BatchIterations, "batch", cfg.BatchIterations, "Iterations per dispatch.")
	fs.StringVar(&cfg.Backend, "backend", cfg.Backend, fmt.Sprintf("Compute backend %v.", compute.List()))
	fs.IntVar(&cfg.Workers, "workers", cfg.Workers, "CPU workers (0 = adaptive).")
	fs.StringVar(&cfg.Engine, "engine", cfg.Engine, fmt.Sprintf("Probe orbit engine %v.", probe.Engines()))
	fs.Float64Var(&cfg.MaxZoom.Raw32, "raw32-max-zoom", cfg.MaxZoom.Raw32, "Deepest zoom for raw32.")
	fs.Float64Var(&cfg.MaxZoom.Raw64, "raw64-max-zoom", cfg.MaxZoom.Raw64, "Deepest zoom for raw64.")
	fs.Float64Var(&cfg.MaxZoom.Probed32, "probed32-max-zoom", cfg.MaxZoom.Probed32, "Deepest zoom for probed32.")
	fs.Float64Var(&cfg.MaxZoom.Probed64, "probed64-max-zoom", cfg.MaxZoom.Probed64, "Deepest zoom for probed64.")
	fs.Float64Var(&cfg.MaxZoom.ProbedExtended, "extended-max-zoom", cfg.MaxZoom.ProbedExtended, "Deepest zoom for extended.")

	fs.StringVar(&cfg.OutputFile, "output", cfg.OutputFile, "PNG output path.")
	fs.StringVar(&cfg.OutputFile, "o", cfg.OutputFile, "Shorthand for -output.")
	fs.StringVar(&cfg.SettingsFile, "settings", cfg.SettingsFile, "Load the view from a saved settings document.")
	fs.BoolVar(&cfg.SaveSettings, "save-settings", cfg.SaveSettings, "Write a settings document next to the output.")
	fs.BoolVar(&cfg.TUI, "tui", cfg.TUI, "Launch the interactive explorer.")
	fs.BoolVar(&cfg.Quiet, "quiet", cfg.Quiet, "Suppress progress output.")
	fs.BoolVar(&cfg.Quiet, "q", cfg.Quiet, "Shorthand for -quiet.")
	fs.BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "Print render statistics.")
	fs.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "Shorthand for -verbose.")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "Serve Prometheus metrics on this address (empty disables).")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn, error.")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "Maximum render time.")
}

// Validate checks the configuration for consistency.
func (c AppConfig) Validate() error {
	switch {
	case c.Width <= 0 || c.Height <= 0:
		return apperrors.NewConfigError("image size must be positive, got %dx%d", c.Width, c.Height)
	case math.IsNaN(c.Zoom) || math.IsInf(c.Zoom, 0):
		return apperrors.NewConfigError("zoom must be finite")
	case c.MaxIter == 0:
		return apperrors.NewConfigError("max-iter must be positive")
	case c.MaxIter > 1<<31:
		return apperrors.NewConfigError("max-iter %d is too large", c.MaxIter)
	case c.BatchIterations <= 0:
		return apperrors.NewConfigError("batch must be positive, got %d", c.BatchIterations)
	case c.Workers < 0:
		return apperrors.NewConfigError("workers must not be negative, got %d", c.Workers)
	case c.Timeout <= 0:
		return apperrors.NewConfigError("timeout must be positive, got %s", c.Timeout)
	case (c.ProbeRe == "") != (c.ProbeIm == ""):
		return apperrors.NewConfigError("probe-re and probe-im must be set together")
	}
	if !slices.Contains(compute.List(), c.Backend) {
		return apperrors.NewConfigError("unknown backend %q (available: %v)", c.Backend, compute.List())
	}
	if _, ok := probe.LookupEngine(c.Engine); !ok {
		return apperrors.NewConfigError("unknown engine %q (available: %v)", c.Engine, probe.Engines())
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return apperrors.NewConfigError("invalid log level %q", c.LogLevel)
	}
	if _, err := c.ParsedTier(); err != nil {
		return apperrors.ConfigError{Message: err.Error()}
	}
	if err := c.MaxZoom.Validate(); err != nil {
		return apperrors.ConfigError{Message: err.Error()}
	}
	if err := c.Color.Validate(); err != nil {
		return apperrors.ConfigError{Message: err.Error()}
	}
	if _, err := c.ToRequest(); err != nil {
		return apperrors.ConfigError{Message: err.Error()}
	}
	return nil
}

// ParsedTier returns the requested tier.
func (c AppConfig) ParsedTier() (precision.Tier, error) {
	return precision.ParseTier(c.Tier)
}

// ToRequest builds the render request described by the configuration.
// Coordinates are parsed with enough bits for the zoom.
func (c AppConfig) ToRequest() (pipeline.Request, error) {
	tier, err := c.ParsedTier()
	if err != nil {
		return pipeline.Request{}, err
	}
	bits := precision.Bits(c.Zoom)
	center, err := geometry.ParsePoint(c.CenterRe, c.CenterIm, bits)
	if err != nil {
		return pipeline.Request{}, err
	}
	req := pipeline.Request{
		Viewport: geometry.Viewport{
			Center:   center,
			Zoom:     c.Zoom,
			Rotation: c.Rotation,
			Width:    c.Width,
			Height:   c.Height,
		},
		MaxIter: uint32(c.MaxIter),
		Tier:    tier,
		Color:   c.Color,
	}
	if c.ProbeRe != "" {
		p, err := geometry.ParsePoint(c.ProbeRe, c.ProbeIm, bits)
		if err != nil {
			return pipeline.Request{}, err
		}
		req.ProbeOverride = &p
	}
	return req, req.Validate()
}
