package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"refinery/internal/batch"
	"refinery/internal/generate"
	"refinery/internal/logging"
	"refinery/internal/resume"
	"refinery/internal/services"
	"refinery/internal/stage"
)

// lockFileName guards the data root against concurrent runs.
const lockFileName = "refinery.lock"

// ErrAlreadyRunning indicates another process holds the data root lock.
var ErrAlreadyRunning = errors.New("another run holds the data root lock")

// Driver owns the run loop: it resumes unfinished batches from storage,
// generates fresh batches while the target still needs them, and carries each
// batch through every stage in order. Cancellation is honored only between
// batches and between stages, never mid-item.
type Driver struct {
	store     *batch.Store
	generator *generate.Generator
	runner    *stage.Runner
	tracker   *resume.Tracker
	logger    *slog.Logger

	targetTotal int
	batchSize   int

	newRunID func() string
	clock    func() time.Time
}

// Option customizes the driver.
type Option func(*Driver)

// WithLogger sets the driver's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Driver) {
		if logger != nil {
			d.logger = logging.NewComponentLogger(logger, "pipeline")
		}
	}
}

// WithRunIDFunc overrides run ID generation (useful for tests).
func WithRunIDFunc(fn func() string) Option {
	return func(d *Driver) {
		if fn != nil {
			d.newRunID = fn
		}
	}
}

// WithClock overrides the summary time source.
func WithClock(clock func() time.Time) Option {
	return func(d *Driver) {
		if clock != nil {
			d.clock = clock
		}
	}
}

// New constructs a driver.
func New(store *batch.Store, generator *generate.Generator, runner *stage.Runner, tracker *resume.Tracker, targetTotal, batchSize int, opts ...Option) *Driver {
	driver := &Driver{
		store:       store,
		generator:   generator,
		runner:      runner,
		tracker:     tracker,
		logger:      logging.NewNop(),
		targetTotal: targetTotal,
		batchSize:   batchSize,
		newRunID:    uuid.NewString,
		clock:       time.Now,
	}
	for _, opt := range opts {
		opt(driver)
	}
	return driver
}

// batchStatus reports how one batch's pass through the stages ended.
type batchStatus int

const (
	batchCompleted batchStatus = iota
	batchSkipped
	batchInterrupted
)

// Run executes the pipeline until the target is reached, the remaining work
// cannot proceed, or ctx is canceled. The returned summary is valid even when
// err is non-nil.
func (d *Driver) Run(ctx context.Context) (Summary, error) {
	summary := Summary{
		RunID:       d.newRunID(),
		StartedAt:   d.clock(),
		TargetTotal: d.targetTotal,
	}

	ctx = services.WithRunID(ctx, summary.RunID)
	logger := logging.WithContext(ctx, d.logger)

	lock := flock.New(filepath.Join(d.store.Root(), lockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return d.finish(summary, OutcomeIncomplete), services.Wrap(services.ErrStorage, "pipeline", "lock", "acquire data root lock", err)
	}
	if !locked {
		return d.finish(summary, OutcomeIncomplete), ErrAlreadyRunning
	}
	defer func() {
		if unlockErr := lock.Unlock(); unlockErr != nil {
			logger.Warn("failed to release data root lock", logging.Error(unlockErr))
		}
	}()

	completed, err := d.tracker.CompletedItems()
	if err != nil {
		return d.finish(summary, OutcomeIncomplete), err
	}
	genBudget, err := d.generationBudget()
	if err != nil {
		return d.finish(summary, OutcomeIncomplete), err
	}
	logger.Info("run started",
		logging.Int("target_total", d.targetTotal),
		logging.Int("items_done", completed),
		logging.Int("generation_budget", genBudget),
	)

	failed := make(map[int]bool)
	interrupted := false

	for {
		if ctx.Err() != nil {
			interrupted = true
			break
		}

		number, pending, err := d.nextPending(failed)
		if err != nil {
			return d.finish(summary, OutcomeIncomplete), err
		}

		if !pending {
			if genBudget <= 0 {
				break
			}
			size, err := d.nextBatchSize()
			if err != nil {
				return d.finish(summary, OutcomeIncomplete), err
			}
			if size <= 0 {
				break
			}
			number, err = d.store.NextNumber()
			if err != nil {
				return d.finish(summary, OutcomeIncomplete), err
			}
			if _, genErr := d.generator.GenerateBatch(ctx, number, size); genErr != nil {
				if ctx.Err() != nil {
					interrupted = true
					break
				}
				if services.IsStorage(genErr) {
					return d.finish(summary, OutcomeIncomplete), genErr
				}
				genBudget--
				summary.GenerationFailures++
				logger.Warn("batch generation failed",
					logging.Int(logging.FieldBatch, number),
					logging.Error(genErr),
				)
				continue
			}
			genBudget--
		}

		status, err := d.runBatch(ctx, number, logger)
		switch status {
		case batchCompleted:
			summary.BatchesCompleted++
			if err := d.reportProgress(logger, &summary); err != nil {
				return d.finish(summary, OutcomeIncomplete), err
			}
		case batchSkipped:
			failed[number] = true
			summary.BatchesSkipped++
			summary.SkippedBatches = append(summary.SkippedBatches, number)
			logger.Warn("batch abandoned",
				logging.Int(logging.FieldBatch, number),
				logging.Error(err),
			)
		case batchInterrupted:
			interrupted = true
		}
		if status == batchInterrupted {
			break
		}
		if err != nil && services.IsStorage(err) {
			return d.finish(summary, OutcomeIncomplete), err
		}
	}

	summary.ItemsDone, err = d.tracker.CompletedItems()
	if err != nil {
		return d.finish(summary, OutcomeIncomplete), err
	}

	outcome := OutcomeIncomplete
	switch {
	case interrupted:
		outcome = OutcomeInterrupted
	case summary.ItemsDone >= d.targetTotal:
		outcome = OutcomeCompleted
	}
	summary = d.finish(summary, outcome)

	logger.Info("run finished",
		logging.String("outcome", string(summary.Outcome)),
		logging.Int("items_done", summary.ItemsDone),
		logging.Int("batches_completed", summary.BatchesCompleted),
		logging.Int("batches_skipped", summary.BatchesSkipped),
		logging.Duration("duration", summary.Duration()),
	)
	return summary, nil
}

// runBatch carries one batch through every stage whose output is missing. A
// fatal item abandons the batch; completed stage outputs survive for a later
// run to resume from.
func (d *Driver) runBatch(ctx context.Context, number int, logger *slog.Logger) (batchStatus, error) {
	for index := 1; index <= d.store.Stages(); index++ {
		if ctx.Err() != nil {
			return batchInterrupted, ctx.Err()
		}

		exists, err := d.store.Exists(batch.Stage(index), number)
		if err != nil {
			return batchSkipped, err
		}
		if exists {
			logger.Debug("stage output present, skipping",
				logging.Int(logging.FieldBatch, number),
				logging.Int(logging.FieldStage, index),
			)
			continue
		}

		if err := d.runner.Run(ctx, index, number); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return batchInterrupted, err
			}
			return batchSkipped, err
		}
	}
	return batchCompleted, nil
}

// nextPending returns the lowest origin batch missing from the final stage,
// excluding batches already abandoned this run.
func (d *Driver) nextPending(failed map[int]bool) (int, bool, error) {
	numbers, err := d.store.List(batch.Origin)
	if err != nil {
		return 0, false, err
	}
	for _, number := range numbers {
		if failed[number] {
			continue
		}
		done, err := d.store.Exists(d.store.Final(), number)
		if err != nil {
			return 0, false, err
		}
		if !done {
			return number, true, nil
		}
	}
	return 0, false, nil
}

// generationBudget bounds how many fresh batches this run may attempt,
// derived from origin items already on disk rather than completed items so a
// backlog of half-refined batches is drained before new work is created.
func (d *Driver) generationBudget() (int, error) {
	originItems, err := d.generator.OriginItemCount()
	if err != nil {
		return 0, err
	}
	missing := d.targetTotal - originItems
	if missing <= 0 {
		return 0, nil
	}
	return (missing + d.batchSize - 1) / d.batchSize, nil
}

// nextBatchSize caps the final generated batch at the remaining shortfall so
// the origin never outgrows the target.
func (d *Driver) nextBatchSize() (int, error) {
	originItems, err := d.generator.OriginItemCount()
	if err != nil {
		return 0, err
	}
	size := d.targetTotal - originItems
	if size > d.batchSize {
		size = d.batchSize
	}
	return size, nil
}

func (d *Driver) reportProgress(logger *slog.Logger, summary *Summary) error {
	itemsDone, err := d.tracker.CompletedItems()
	if err != nil {
		return err
	}
	remaining := d.targetTotal - itemsDone
	if remaining < 0 {
		remaining = 0
	}
	logger.Info("progress",
		logging.Int("batches_done", summary.BatchesCompleted),
		logging.Int("items_done", itemsDone),
		logging.Int("items_remaining", remaining),
		logging.String("percent", fmt.Sprintf("%.1f%%", percent(itemsDone, d.targetTotal))),
	)
	return nil
}

func percent(done, target int) float64 {
	if target <= 0 {
		return 100
	}
	p := float64(done) / float64(target) * 100
	if p > 100 {
		p = 100
	}
	return p
}

func (d *Driver) finish(summary Summary, outcome Outcome) Summary {
	summary.FinishedAt = d.clock()
	summary.Outcome = outcome
	return summary
}
