package services

import "context"

type contextKey string

const (
	batchKey contextKey = "batch"
	stageKey contextKey = "stage"
	runIDKey contextKey = "run_id"
)

// WithBatch stores the batch number being processed on the context.
func WithBatch(ctx context.Context, number int) context.Context {
	return context.WithValue(ctx, batchKey, number)
}

// BatchFromContext extracts the batch number stored by WithBatch.
func BatchFromContext(ctx context.Context) (int, bool) {
	if ctx == nil {
		return 0, false
	}
	number, ok := ctx.Value(batchKey).(int)
	return number, ok
}

// WithStage stores the stage index being processed on the context.
func WithStage(ctx context.Context, stage int) context.Context {
	return context.WithValue(ctx, stageKey, stage)
}

// StageFromContext extracts the stage index stored by WithStage.
func StageFromContext(ctx context.Context) (int, bool) {
	if ctx == nil {
		return 0, false
	}
	stage, ok := ctx.Value(stageKey).(int)
	return stage, ok
}

// WithRunID stores the run identifier on the context.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// RunIDFromContext extracts the run identifier stored by WithRunID.
func RunIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	runID, ok := ctx.Value(runIDKey).(string)
	return runID, ok
}
