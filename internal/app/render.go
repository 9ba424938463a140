package app

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/agbru/deepzoom/internal/cli"
	"github.com/agbru/deepzoom/internal/compute"
	apperrors "github.com/agbru/deepzoom/internal/errors"
	"github.com/agbru/deepzoom/internal/pipeline"
	"github.com/agbru/deepzoom/internal/settings"
	"github.com/agbru/deepzoom/internal/sink"
)

// runRender renders the request once at full resolution and writes it to
// the output file.
func (a *Application) runRender(ctx context.Context, dev compute.Device, opts []pipeline.Option, out io.Writer) int {
	// Setup lifecycle (timeout + signals)
	ctx, cancelTimeout := context.WithTimeout(ctx, a.Config.Timeout)
	defer cancelTimeout()
	ctx, stopSignals := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stopSignals()

	c := pipeline.New(dev, opts...)
	if !a.Config.Quiet {
		cli.PrintRenderConfig(a.Config, a.Request, dev, out)
	}

	start := time.Now()
	var (
		frame pipeline.Frame
		err   error
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		frame, err = c.RenderSync(ctx, a.Request)
	}()
	if !a.Config.Quiet {
		// A fresh coordinator numbers its first render 1.
		cli.DisplayProgress(ctx, c, 1, done, out)
	}
	<-done
	if err != nil {
		return apperrors.HandleRenderError(err, time.Since(start), a.ErrWriter)
	}

	if code := a.writeImage(ctx, frame); code != apperrors.ExitSuccess {
		return code
	}
	cli.DisplayFrameSummary(out, frame, c.StageRuns(), cli.OutputConfig{
		OutputFile: a.Config.OutputFile,
		Quiet:      a.Config.Quiet,
		Verbose:    a.Config.Verbose,
	})
	return apperrors.ExitSuccess
}

func (a *Application) writeImage(ctx context.Context, f pipeline.Frame) int {
	var pngOpts []sink.PNGOption
	if a.Config.SaveSettings {
		pngOpts = append(pngOpts, sink.WithSettings(settings.FromRequest(a.Request)))
	}
	pngOpts = append(pngOpts, sink.WithLogger(a.logger()))
	if err := sink.NewPNG(a.Config.OutputFile, pngOpts...).Present(ctx, f); err != nil {
		fmt.Fprintf(a.ErrWriter, "Error saving image: %v\n", err)
		if apperrors.IsContextError(err) {
			return apperrors.ExitCodeFor(err)
		}
		return apperrors.ExitErrorGeneric
	}
	return apperrors.ExitSuccess
}
