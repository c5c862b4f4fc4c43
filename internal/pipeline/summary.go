package pipeline

import "time"

// Outcome classifies how a run ended.
type Outcome string

const (
	// OutcomeCompleted means the target item count was reached.
	OutcomeCompleted Outcome = "completed"
	// OutcomeIncomplete means the run stopped on its own with failed work
	// left behind; a later run can pick it up.
	OutcomeIncomplete Outcome = "incomplete"
	// OutcomeInterrupted means cancellation stopped the run at a boundary.
	OutcomeInterrupted Outcome = "interrupted"
)

// Summary describes one pipeline run end to end.
type Summary struct {
	RunID       string
	StartedAt   time.Time
	FinishedAt  time.Time
	Outcome     Outcome
	TargetTotal int

	// ItemsDone counts items present at the final stage when the run ended.
	ItemsDone int

	// BatchesCompleted counts batches this run carried through the final
	// stage. BatchesSkipped counts batches abandoned after a fatal item.
	BatchesCompleted int
	BatchesSkipped   int

	// GenerationFailures counts attempts to compose a fresh batch that
	// produced nothing. Failed generations leave no file behind, so their
	// numbers stay reusable.
	GenerationFailures int

	// SkippedBatches lists the batch numbers abandoned this run.
	SkippedBatches []int
}

// Duration returns the wall-clock length of the run.
func (s Summary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}
