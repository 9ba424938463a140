package apperrors

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Application exit codes define the standard exit statuses for the application.
// These codes are used to signal the outcome of the program execution to the OS.
const (
	ExitSuccess        = 0   // Indicates successful execution.
	ExitErrorGeneric   = 1   // Indicates a generic error.
	ExitErrorTimeout   = 2   // Indicates the render timed out.
	ExitErrorPrecision = 3   // Indicates the requested zoom is beyond every precision tier.
	ExitErrorConfig    = 4   // Indicates a configuration error.
	ExitErrorDevice    = 5   // Indicates the compute device could not be acquired.
	ExitErrorCanceled  = 130 // Indicates the operation was canceled (e.g., SIGINT).
)

// ErrStaleGeneration marks work abandoned because a newer request superseded
// it. The coordinator swallows it; it never reaches the user.
var ErrStaleGeneration = errors.New("stale generation abandoned")

// ConfigError represents a user configuration error, such as invalid flags or
// values. It indicates that the application cannot proceed due to incorrect user input.
type ConfigError struct {
	// Message explains the specific configuration error.
	Message string
}

// Error returns the error message for a ConfigError.
//
// Returns:
//   - string: The error message string.
func (e ConfigError) Error() string { return e.Message }

// NewConfigError creates a new ConfigError with a formatted message.
//
// Parameters:
//   - format: A format string (see fmt.Sprintf).
//   - a: Arguments to be formatted into the string.
//
// Returns:
//   - error: A new ConfigError instance containing the formatted message.
func NewConfigError(format string, a ...any) error {
	return ConfigError{Message: fmt.Sprintf(format, a...)}
}

// PrecisionExhaustedError reports a zoom depth that no precision tier can
// represent. Rendering halts instead of producing a degraded image.
type PrecisionExhaustedError struct {
	// Zoom is the requested log2 magnification.
	Zoom float64
	// MaxZoom is the deepest zoom the most precise tier supports.
	MaxZoom float64
}

// Error returns a formatted message describing the exhausted precision.
func (e PrecisionExhaustedError) Error() string {
	return fmt.Sprintf("precision exhausted: zoom %.2f exceeds deepest supported zoom %.2f", e.Zoom, e.MaxZoom)
}

// DeviceUnavailableError reports a compute backend that could not be
// acquired. It is fatal for the pipeline.
type DeviceUnavailableError struct {
	// Backend is the name of the requested backend.
	Backend string
	// Reason explains why the backend is unavailable.
	Reason string
}

// Error returns a formatted message describing the unavailable device.
func (e DeviceUnavailableError) Error() string {
	return fmt.Sprintf("compute device %q unavailable: %s", e.Backend, e.Reason)
}

// RenderError encapsulates a failed render stage while preserving the
// original cause.
type RenderError struct {
	// Stage is the pipeline stage that failed.
	Stage string
	// Cause is the underlying error that triggered this render error.
	Cause error
}

// Error returns the stage name and the underlying message.
func (e RenderError) Error() string { return e.Stage + ": " + e.Cause.Error() }

// Unwrap returns the original wrapped error, allowing for error chain
// inspection (e.g., using errors.Is or errors.As).
//
// Returns:
//   - error: The underlying cause of the RenderError.
func (e RenderError) Unwrap() error { return e.Cause }

// TimeoutError represents a render timeout. It captures the operation
// name and the duration limit that was exceeded.
type TimeoutError struct {
	// Operation is the name of the operation that timed out.
	Operation string
	// Limit is the duration after which the operation was considered timed out.
	Limit time.Duration
}

// Error returns a formatted message describing the timeout.
//
// Returns:
//   - string: The error message string.
func (e TimeoutError) Error() string {
	return fmt.Sprintf("operation %q timed out after %s", e.Operation, e.Limit)
}

// ValidationError represents an input validation failure. It identifies which
// field failed validation and provides a human-readable explanation.
type ValidationError struct {
	// Field is the name of the field that failed validation.
	Field string
	// Message explains the validation failure.
	Message string
}

// Error returns a formatted message describing the validation failure.
//
// Returns:
//   - string: The error message string.
func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error for %q: %s", e.Field, e.Message)
}

// WrapError wraps an error with additional context using fmt.Errorf and %w.
// This allows the wrapped error to be unwrapped with errors.Unwrap() and
// checked with errors.Is() and errors.As().
//
// Parameters:
//   - err: The error to wrap.
//   - format: A format string for the context message.
//   - args: Arguments for the format string.
//
// Returns:
//   - error: The wrapped error, or nil if err is nil.
func WrapError(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	message := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", message, err)
}

// IsContextError checks if the error is a context cancellation or deadline exceeded error.
//
// Parameters:
//   - err: The error to check.
//
// Returns:
//   - bool: true if the error is a context error.
func IsContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// ExitCodeFor maps an error to the process exit code.
func ExitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var (
		precErr   PrecisionExhaustedError
		devErr    DeviceUnavailableError
		cfgErr    ConfigError
		valErr    ValidationError
		timeoutEr TimeoutError
	)
	switch {
	case errors.As(err, &precErr):
		return ExitErrorPrecision
	case errors.As(err, &devErr):
		return ExitErrorDevice
	case errors.As(err, &cfgErr), errors.As(err, &valErr):
		return ExitErrorConfig
	case errors.As(err, &timeoutEr), errors.Is(err, context.DeadlineExceeded):
		return ExitErrorTimeout
	case errors.Is(err, context.Canceled):
		return ExitErrorCanceled
	}
	return ExitErrorGeneric
}
