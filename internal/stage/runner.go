package stage

import (
	"context"
	"fmt"
	"log/slog"

	"refinery/internal/batch"
	"refinery/internal/logging"
	"refinery/internal/retry"
	"refinery/internal/services"
)

// Refiner performs the external transformation for one item.
type Refiner interface {
	Refine(ctx context.Context, proposition, domain string, stage int) (string, error)
}

// Runner executes refinement stages against the batch store.
type Runner struct {
	store   *batch.Store
	refiner Refiner
	exec    *retry.Executor
	logger  *slog.Logger
}

// NewRunner constructs a stage runner.
func NewRunner(store *batch.Store, refiner Refiner, exec *retry.Executor, logger *slog.Logger) *Runner {
	return &Runner{
		store:   store,
		refiner: refiner,
		exec:    exec,
		logger:  logging.NewComponentLogger(logger, "stage"),
	}
}

// Run refines batch number through stage index: the input batch is read from
// the previous stage's location (the origin for stage 1), every item is
// transformed in order, and the full output batch is written under the same
// number at the stage's own location. A single item failing fatally aborts
// the whole batch; under-cardinality batches are never persisted because
// resume counting depends on full batches.
func (r *Runner) Run(ctx context.Context, index, number int) error {
	if index < 1 || index > r.store.Stages() {
		return fmt.Errorf("stage index %d out of range 1..%d", index, r.store.Stages())
	}

	input := batch.Origin
	if index > 1 {
		input = batch.Stage(index - 1)
	}

	stageCtx := services.WithStage(services.WithBatch(ctx, number), index)
	logger := logging.WithContext(stageCtx, r.logger)

	items, err := r.store.Read(input, number)
	if err != nil {
		return err
	}
	logger.Info("stage started", logging.Int("items", len(items)))

	refined := make([]batch.Item, 0, len(items))
	for i, item := range items {
		if err := item.Validate(); err != nil {
			return fmt.Errorf("stage %d batch %d item %d: %w", index, number, i+1, err)
		}

		var output string
		err := r.exec.Do(stageCtx, func(ctx context.Context) error {
			text, err := r.refiner.Refine(ctx, item.Proposition, item.Domain, index)
			if err != nil {
				return err
			}
			output = text
			return nil
		})
		if err != nil {
			return fmt.Errorf("stage %d batch %d item %d: %w", index, number, i+1, err)
		}

		// Only the payload changes; token and domain ride through untouched.
		refined = append(refined, batch.Item{
			Proposition: output,
			Domain:      item.Domain,
			Timestamp:   item.Timestamp,
		})
		logger.Debug("item refined", logging.Int("item", i+1), logging.Int("items", len(items)))
	}

	if err := r.store.Write(batch.Stage(index), number, refined); err != nil {
		return err
	}
	logger.Info("stage completed", logging.Int("items", len(refined)))
	return nil
}
