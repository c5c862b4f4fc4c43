// Package logging wires log/slog with console and JSON handlers plus the
// structured field conventions used across the pipeline.
package logging
