package apperrors

import (
	"errors"
	"fmt"
	"io"
	"time"
)

// HandleRenderError prints a human-readable description of a render failure
// and returns the matching exit code. A nil error prints nothing.
//
// Parameters:
//   - err: The error returned by the render.
//   - duration: How long the render ran before failing.
//   - out: The writer for the message.
//
// Returns:
//   - int: The process exit code.
func HandleRenderError(err error, duration time.Duration, out io.Writer) int {
	if err == nil {
		return ExitSuccess
	}
	code := ExitCodeFor(err)
	switch code {
	case ExitErrorTimeout:
		fmt.Fprintf(out, "Render timed out after %s\n", duration.Round(time.Millisecond))
	case ExitErrorCanceled:
		fmt.Fprintf(out, "Render canceled after %s\n", duration.Round(time.Millisecond))
	default:
		var precErr PrecisionExhaustedError
		if errors.As(err, &precErr) {
			fmt.Fprintf(out, "Render halted: %v\n", err)
			return code
		}
		fmt.Fprintf(out, "Render failed: %v\n", err)
	}
	return code
}
