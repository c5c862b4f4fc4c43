package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"refinery/internal/batch"
	"refinery/internal/generate"
	"refinery/internal/resume"
	"refinery/internal/retry"
	"refinery/internal/services"
	"refinery/internal/stage"
)

// fakeLLM serves both composition and refinement. Refined text is tagged with
// the stage index so tests can see which stages actually ran.
type fakeLLM struct {
	mu           sync.Mutex
	composeCalls int
	refineCalls  int
	refineErr    func(proposition string, stageIndex int) error
	onRefine     func(proposition string)
}

func (f *fakeLLM) Compose(ctx context.Context, domain string, seeds []string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.composeCalls++
	return fmt.Sprintf("proposition %d about %s", f.composeCalls, domain), nil
}

func (f *fakeLLM) Refine(ctx context.Context, proposition, domain string, stageIndex int) (string, error) {
	f.mu.Lock()
	f.refineCalls++
	f.mu.Unlock()
	if f.onRefine != nil {
		f.onRefine(proposition)
	}
	if f.refineErr != nil {
		if err := f.refineErr(proposition, stageIndex); err != nil {
			return "", err
		}
	}
	return fmt.Sprintf("%s|s%d", proposition, stageIndex), nil
}

func newTestExecutor() *retry.Executor {
	policy := retry.Policy{MaxAttempts: 3, InitialDelay: time.Second, Multiplier: 2}
	return retry.NewExecutor(policy, retry.WithSleeper(func(time.Duration) {}))
}

func newTestDriver(t *testing.T, llm *fakeLLM, targetTotal, batchSize, stages int) (*Driver, *batch.Store) {
	t.Helper()
	store, err := batch.Open(t.TempDir(), stages)
	if err != nil {
		t.Fatalf("batch.Open: %v", err)
	}

	exec := newTestExecutor()
	entropy := generate.NewEntropy(generate.WithoutRandomOrg())

	var tick int64
	clock := func() time.Time {
		tick++
		return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC).Add(time.Duration(tick) * time.Millisecond)
	}

	generator := generate.New(store, llm, exec, entropy, generate.WithClock(clock))
	runner := stage.NewRunner(store, llm, exec, nil)
	tracker := resume.NewTracker(store)

	driver := New(store, generator, runner, tracker, targetTotal, batchSize,
		WithRunIDFunc(func() string { return "test-run" }),
	)
	return driver, store
}

func seedOrigin(t *testing.T, store *batch.Store, number, size int, prefix string) []batch.Item {
	t.Helper()
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	items := make([]batch.Item, 0, size)
	for i := 0; i < size; i++ {
		items = append(items, batch.NewItem(
			fmt.Sprintf("%s %d-%d", prefix, number, i),
			"logic",
			base.Add(time.Duration(number*1000+i)*time.Millisecond),
		))
	}
	if err := store.Write(batch.Origin, number, items); err != nil {
		t.Fatalf("seed origin batch %d: %v", number, err)
	}
	return items
}

func TestRunGeneratesAndRefinesToTarget(t *testing.T) {
	llm := &fakeLLM{}
	driver, store := newTestDriver(t, llm, 30, 10, 2)

	summary, err := driver.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Outcome != OutcomeCompleted {
		t.Fatalf("outcome = %s, want %s", summary.Outcome, OutcomeCompleted)
	}
	if summary.ItemsDone != 30 || summary.BatchesCompleted != 3 || summary.BatchesSkipped != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	finalNumbers, err := store.List(store.Final())
	if err != nil {
		t.Fatalf("List final: %v", err)
	}
	if len(finalNumbers) != 3 {
		t.Fatalf("final stage has %d batches, want 3", len(finalNumbers))
	}

	// Tokens survive both stages unchanged and stay unique across the run.
	seen := make(map[string]bool)
	for _, number := range finalNumbers {
		origin, err := store.Read(batch.Origin, number)
		if err != nil {
			t.Fatalf("Read origin %d: %v", number, err)
		}
		final, err := store.Read(store.Final(), number)
		if err != nil {
			t.Fatalf("Read final %d: %v", number, err)
		}
		if len(final) != len(origin) {
			t.Fatalf("batch %d cardinality changed: %d -> %d", number, len(origin), len(final))
		}
		for i := range final {
			if final[i].Timestamp != origin[i].Timestamp {
				t.Fatalf("batch %d item %d token changed: %q -> %q", number, i, origin[i].Timestamp, final[i].Timestamp)
			}
			if final[i].Domain != origin[i].Domain {
				t.Fatalf("batch %d item %d domain changed", number, i)
			}
			if !strings.HasSuffix(final[i].Proposition, "|s1|s2") {
				t.Fatalf("batch %d item %d missed a stage: %q", number, i, final[i].Proposition)
			}
			if seen[final[i].Timestamp] {
				t.Fatalf("duplicate token %q", final[i].Timestamp)
			}
			seen[final[i].Timestamp] = true
		}
	}
}

func TestRunResumesWithoutRedoingStages(t *testing.T) {
	llm := &fakeLLM{}
	driver, store := newTestDriver(t, llm, 20, 10, 2)

	// Batch 1 was interrupted after stage 1 in a previous run.
	items := seedOrigin(t, store, 1, 10, "seeded")
	staged := make([]batch.Item, len(items))
	for i, item := range items {
		staged[i] = batch.Item{
			Proposition: item.Proposition + "|s1",
			Domain:      item.Domain,
			Timestamp:   item.Timestamp,
		}
	}
	if err := store.Write(batch.Stage(1), 1, staged); err != nil {
		t.Fatalf("seed stage 1: %v", err)
	}

	summary, err := driver.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Outcome != OutcomeCompleted || summary.ItemsDone != 20 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	final, err := store.Read(store.Final(), 1)
	if err != nil {
		t.Fatalf("Read final batch 1: %v", err)
	}
	for i, item := range final {
		if !strings.HasSuffix(item.Proposition, "|s1|s2") || strings.HasSuffix(item.Proposition, "|s1|s1|s2") {
			t.Fatalf("item %d reran stage 1 or skipped stage 2: %q", i, item.Proposition)
		}
		if item.Timestamp != items[i].Timestamp {
			t.Fatalf("item %d token changed across resume", i)
		}
	}

	// One fresh batch of 10 covers the rest of the target.
	if llm.composeCalls != 10 {
		t.Fatalf("composeCalls = %d, want 10", llm.composeCalls)
	}
	// Batch 1 needed stage 2 only; batch 2 needed both stages.
	if llm.refineCalls != 30 {
		t.Fatalf("refineCalls = %d, want 30", llm.refineCalls)
	}
}

func TestRunAbandonsFatalBatchAndContinues(t *testing.T) {
	llm := &fakeLLM{
		refineErr: func(proposition string, stageIndex int) error {
			if strings.Contains(proposition, "poison") {
				return services.Wrap(services.ErrValidation, "llm", "refine", "refusal", nil)
			}
			return nil
		},
	}
	driver, store := newTestDriver(t, llm, 20, 10, 2)
	seedOrigin(t, store, 1, 10, "poison")
	seedOrigin(t, store, 2, 10, "clean")

	summary, err := driver.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Outcome != OutcomeIncomplete {
		t.Fatalf("outcome = %s, want %s", summary.Outcome, OutcomeIncomplete)
	}
	if summary.BatchesCompleted != 1 || summary.BatchesSkipped != 1 || summary.ItemsDone != 10 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if len(summary.SkippedBatches) != 1 || summary.SkippedBatches[0] != 1 {
		t.Fatalf("SkippedBatches = %v, want [1]", summary.SkippedBatches)
	}

	// The abandoned batch left nothing behind at any stage.
	for index := 1; index <= 2; index++ {
		exists, err := store.Exists(batch.Stage(index), 1)
		if err != nil {
			t.Fatalf("Exists: %v", err)
		}
		if exists {
			t.Fatalf("abandoned batch persisted output at stage %d", index)
		}
	}
	if llm.composeCalls != 0 {
		t.Fatalf("composeCalls = %d, generation should not run with a full origin", llm.composeCalls)
	}
}

func TestRunStopsAtBoundaryOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	llm := &fakeLLM{}
	llm.onRefine = func(proposition string) {
		if strings.Contains(proposition, "second") {
			cancel()
		}
	}
	driver, store := newTestDriver(t, llm, 20, 10, 2)
	seedOrigin(t, store, 1, 10, "first")
	seedOrigin(t, store, 2, 10, "second")

	summary, err := driver.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Outcome != OutcomeInterrupted {
		t.Fatalf("outcome = %s, want %s", summary.Outcome, OutcomeInterrupted)
	}
	if summary.BatchesCompleted != 1 || summary.ItemsDone != 10 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	// The in-flight stage ran to completion; the next stage never started.
	stageOne, err := store.Exists(batch.Stage(1), 2)
	if err != nil {
		t.Fatalf("Exists stage 1: %v", err)
	}
	if !stageOne {
		t.Fatal("cancellation dropped a stage that was already in flight")
	}
	stageTwo, err := store.Exists(batch.Stage(2), 2)
	if err != nil {
		t.Fatalf("Exists stage 2: %v", err)
	}
	if stageTwo {
		t.Fatal("stage 2 ran after cancellation")
	}
}

func TestRunRefusesConcurrentLock(t *testing.T) {
	llm := &fakeLLM{}
	driver, store := newTestDriver(t, llm, 10, 10, 1)

	held := flock.New(filepath.Join(store.Root(), lockFileName))
	locked, err := held.TryLock()
	if err != nil || !locked {
		t.Fatalf("pre-acquire lock: locked=%v err=%v", locked, err)
	}
	defer held.Unlock()

	if _, err := driver.Run(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("Run err = %v, want ErrAlreadyRunning", err)
	}
}

func TestRunFinalBatchCappedAtShortfall(t *testing.T) {
	llm := &fakeLLM{}
	driver, store := newTestDriver(t, llm, 25, 10, 1)

	summary, err := driver.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Outcome != OutcomeCompleted || summary.ItemsDone != 25 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	numbers, err := store.List(batch.Origin)
	if err != nil {
		t.Fatalf("List origin: %v", err)
	}
	if len(numbers) != 3 {
		t.Fatalf("origin has %d batches, want 3", len(numbers))
	}
	last, err := store.Read(batch.Origin, numbers[len(numbers)-1])
	if err != nil {
		t.Fatalf("Read last origin batch: %v", err)
	}
	if len(last) != 5 {
		t.Fatalf("final batch has %d items, want the 5-item shortfall", len(last))
	}
}

func TestRunNoWorkWhenTargetMet(t *testing.T) {
	llm := &fakeLLM{}
	driver, store := newTestDriver(t, llm, 10, 10, 1)
	items := seedOrigin(t, store, 1, 10, "done")
	if err := store.Write(store.Final(), 1, items); err != nil {
		t.Fatalf("seed final: %v", err)
	}

	summary, err := driver.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Outcome != OutcomeCompleted || summary.ItemsDone != 10 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if summary.BatchesCompleted != 0 || llm.composeCalls != 0 || llm.refineCalls != 0 {
		t.Fatalf("run did work with nothing to do: %+v compose=%d refine=%d",
			summary, llm.composeCalls, llm.refineCalls)
	}
}
