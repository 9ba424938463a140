// Package app wires configuration, the compute device and the pipeline into
// the deepzoom command: a headless render to PNG or the interactive
// explorer.
package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/agbru/deepzoom/internal/compute"
	"github.com/agbru/deepzoom/internal/config"
	apperrors "github.com/agbru/deepzoom/internal/errors"
	"github.com/agbru/deepzoom/internal/logging"
	"github.com/agbru/deepzoom/internal/metrics"
	"github.com/agbru/deepzoom/internal/pipeline"
	"github.com/agbru/deepzoom/internal/precision"
	"github.com/agbru/deepzoom/internal/probe"
	"github.com/agbru/deepzoom/internal/settings"
	"github.com/agbru/deepzoom/internal/tui"
	"github.com/agbru/deepzoom/internal/ui"
)

// DeviceOpener acquires a compute backend by name.
type DeviceOpener func(name string, workers int) (compute.Device, error)

// Application represents the deepzoom application instance.
type Application struct {
	Config config.AppConfig
	// Request is the view to render, from flags or a settings file.
	Request    pipeline.Request
	OpenDevice DeviceOpener
	ErrWriter  io.Writer
}

// AppOption configures an Application during construction.
type AppOption func(*Application)

// WithDeviceOpener replaces compute.Open.
func WithDeviceOpener(o DeviceOpener) AppOption {
	return func(a *Application) { a.OpenDevice = o }
}

// New creates a new Application instance by parsing command-line arguments.
// A settings file, when given, supplies the view in place of the view flags.
func New(args []string, errWriter io.Writer, opts ...AppOption) (*Application, error) {
	app := &Application{ErrWriter: errWriter}
	for _, opt := range opts {
		opt(app)
	}
	if app.OpenDevice == nil {
		app.OpenDevice = compute.Open
	}

	programName := "deepzoom"
	var cmdArgs []string
	if len(args) > 0 {
		programName = args[0]
		cmdArgs = args[1:]
	}

	cfg, err := config.ParseConfig(programName, cmdArgs, errWriter)
	if err != nil {
		return nil, err
	}
	cfg = config.ApplyAdaptiveWorkers(cfg)

	var req pipeline.Request
	if cfg.SettingsFile != "" {
		req, err = settings.LoadRequest(cfg.SettingsFile)
		if err != nil {
			fmt.Fprintf(errWriter, "Error loading settings: %v\n", err)
			return nil, err
		}
	} else if req, err = cfg.ToRequest(); err != nil {
		return nil, err
	}

	app.Config = cfg
	app.Request = req
	return app, nil
}

// Run executes the application based on the configured mode.
func (a *Application) Run(ctx context.Context, out io.Writer) int {
	ui.InitTheme(false)
	level, _ := zerolog.ParseLevel(a.Config.LogLevel)
	if a.Config.Verbose && level > zerolog.DebugLevel {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	dev, err := a.OpenDevice(a.Config.Backend, a.Config.Workers)
	if err != nil {
		return apperrors.HandleRenderError(err, 0, a.ErrWriter)
	}

	logger := a.logger()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	opts, err := a.pipelineOptions(ctx, logger)
	if err != nil {
		fmt.Fprintf(a.ErrWriter, "Error: %v\n", err)
		return apperrors.ExitCodeFor(err)
	}

	if a.Config.TUI {
		return a.runTUI(ctx, dev, opts)
	}
	return a.runRender(ctx, dev, opts, out)
}

// logger returns the process logger. The explorer owns the terminal, so it
// runs silent.
func (a *Application) logger() zerolog.Logger {
	if a.Config.TUI {
		return zerolog.Nop()
	}
	return logging.NewLogger(a.ErrWriter, "deepzoom").Zerolog()
}

// pipelineOptions builds the coordinator options shared by every mode, and
// starts the metrics endpoint when one is configured.
func (a *Application) pipelineOptions(ctx context.Context, logger zerolog.Logger) ([]pipeline.Option, error) {
	sel, err := precision.NewSelector(a.Config.MaxZoom)
	if err != nil {
		return nil, err
	}
	engine, ok := probe.LookupEngine(a.Config.Engine)
	if !ok {
		return nil, apperrors.NewConfigError("unknown engine %q", a.Config.Engine)
	}
	gen := probe.NewGenerator(engine)
	gen.SetLogger(logger.With().Str("component", "probe").Logger())

	opts := []pipeline.Option{
		pipeline.WithSelector(sel),
		pipeline.WithGenerator(gen),
		pipeline.WithBatchIterations(a.Config.BatchIterations),
		pipeline.WithLogger(logger.With().Str("component", "pipeline").Logger()),
	}
	if a.Config.MetricsAddr != "" {
		reg := metrics.NewRegistry()
		opts = append(opts, pipeline.WithMetrics(metrics.NewPipeline(reg)))
		go a.serveMetrics(ctx, reg, logger)
	}
	return opts, nil
}

func (a *Application) serveMetrics(ctx context.Context, reg *prometheus.Registry, logger zerolog.Logger) {
	if err := metrics.Serve(ctx, a.Config.MetricsAddr, reg, logger); err != nil {
		logger.Error().Err(err).Str("addr", a.Config.MetricsAddr).Msg("metrics endpoint stopped")
	}
}

// runTUI launches the interactive explorer. It has no timeout.
func (a *Application) runTUI(ctx context.Context, dev compute.Device, opts []pipeline.Option) int {
	ctx, stopSignals := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stopSignals()
	return tui.Run(ctx, dev, a.Request, a.Config, Version, opts...)
}

// IsHelpError checks if the error is a help flag error (--help was used).
func IsHelpError(err error) bool {
	return errors.Is(err, flag.ErrHelp)
}
