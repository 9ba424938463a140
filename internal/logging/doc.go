// Package logging provides a unified logging interface for the renderer.
// It abstracts the underlying logging implementation, allowing consistent logging
// across the pipeline stages while supporting zerolog and the standard logger.
package logging
