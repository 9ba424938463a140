// Package apperrors defines structured application error types for the
// renderer, separating user configuration mistakes, precision exhaustion,
// device acquisition failures and stage failures, and maps them to exit codes.
//
// Error Wrapping Guidelines:
// This package follows Go's error wrapping conventions using fmt.Errorf with %w.
// Wrapping types implement Unwrap() to support errors.Is() and errors.As().
package apperrors
