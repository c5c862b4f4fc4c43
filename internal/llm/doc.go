// Package llm wraps the Anthropic-style Messages API used for proposition
// generation and refinement. The client classifies failures into the shared
// error taxonomy and performs no retrying of its own; callers go through
// retry.Executor.
package llm
