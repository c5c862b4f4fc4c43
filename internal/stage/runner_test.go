package stage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"refinery/internal/batch"
	"refinery/internal/logging"
	"refinery/internal/retry"
	"refinery/internal/services"
)

type fakeRefiner struct {
	calls    int
	failItem int
	failWith error
}

func (f *fakeRefiner) Refine(ctx context.Context, proposition, domain string, stage int) (string, error) {
	f.calls++
	if f.failItem > 0 && f.calls == f.failItem {
		return "", f.failWith
	}
	return fmt.Sprintf("refined(%s)", proposition), nil
}

func newTestRunner(t *testing.T, refiner Refiner) (*Runner, *batch.Store) {
	t.Helper()
	store, err := batch.Open(t.TempDir(), 3)
	if err != nil {
		t.Fatalf("batch.Open: %v", err)
	}
	exec := retry.NewExecutor(retry.Policy{MaxAttempts: 3, InitialDelay: time.Millisecond, Multiplier: 2},
		retry.WithSleeper(func(time.Duration) {}))
	return NewRunner(store, refiner, exec, logging.NewNop()), store
}

func seedOrigin(t *testing.T, store *batch.Store, number, count int) []batch.Item {
	t.Helper()
	items := make([]batch.Item, 0, count)
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < count; i++ {
		items = append(items, batch.NewItem(
			fmt.Sprintf("proposition %d", i+1),
			"philosophy",
			base.Add(time.Duration(i)*time.Second),
		))
	}
	if err := store.Write(batch.Origin, number, items); err != nil {
		t.Fatalf("seed origin: %v", err)
	}
	return items
}

func TestRunPreservesCardinalityOrderAndTokens(t *testing.T) {
	runner, store := newTestRunner(t, &fakeRefiner{})
	originals := seedOrigin(t, store, 1, 10)

	if err := runner.Run(context.Background(), 1, 1); err != nil {
		t.Fatalf("Run: %v", err)
	}

	refined, err := store.Read(batch.Stage(1), 1)
	if err != nil {
		t.Fatalf("Read stage 1: %v", err)
	}
	if len(refined) != 10 {
		t.Fatalf("output cardinality %d, want 10", len(refined))
	}
	for i := range refined {
		if refined[i].Timestamp != originals[i].Timestamp {
			t.Fatalf("item %d identity token changed: %q -> %q", i, originals[i].Timestamp, refined[i].Timestamp)
		}
		if refined[i].Domain != originals[i].Domain {
			t.Fatalf("item %d domain changed", i)
		}
		want := fmt.Sprintf("refined(%s)", originals[i].Proposition)
		if refined[i].Proposition != want {
			t.Fatalf("item %d out of order or unrefined: %q", i, refined[i].Proposition)
		}
	}
}

func TestRunChainsStages(t *testing.T) {
	runner, store := newTestRunner(t, &fakeRefiner{})
	seedOrigin(t, store, 2, 3)

	for stageIndex := 1; stageIndex <= 3; stageIndex++ {
		if err := runner.Run(context.Background(), stageIndex, 2); err != nil {
			t.Fatalf("Run stage %d: %v", stageIndex, err)
		}
	}

	final, err := store.Read(batch.Stage(3), 2)
	if err != nil {
		t.Fatalf("Read stage 3: %v", err)
	}
	if !strings.HasPrefix(final[0].Proposition, "refined(refined(refined(") {
		t.Fatalf("stages not chained: %q", final[0].Proposition)
	}
}

func TestRunAbortsBatchOnFatalItem(t *testing.T) {
	fatal := services.Wrap(services.ErrValidation, "llm", "refine", "refused", nil)
	runner, store := newTestRunner(t, &fakeRefiner{failItem: 4, failWith: fatal})
	seedOrigin(t, store, 1, 10)

	err := runner.Run(context.Background(), 1, 1)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !strings.Contains(err.Error(), "item 4") {
		t.Fatalf("error should name the failing item: %v", err)
	}

	exists, statErr := store.Exists(batch.Stage(1), 1)
	if statErr != nil {
		t.Fatalf("Exists: %v", statErr)
	}
	if exists {
		t.Fatal("partial batch must not be persisted after a fatal item failure")
	}
}

func TestRunAbortsBatchOnExhaustedRetries(t *testing.T) {
	refiner := &alwaysRateLimitedRefiner{}
	runner, store := newTestRunner(t, refiner)
	seedOrigin(t, store, 1, 2)

	err := runner.Run(context.Background(), 1, 1)
	if !errors.Is(err, retry.ErrExhausted) {
		t.Fatalf("expected retries-exhausted error, got %v", err)
	}
	if refiner.calls != 3 {
		t.Fatalf("first item should consume all attempts, calls = %d", refiner.calls)
	}

	exists, statErr := store.Exists(batch.Stage(1), 1)
	if statErr != nil {
		t.Fatalf("Exists: %v", statErr)
	}
	if exists {
		t.Fatal("batch must not be persisted after retry exhaustion")
	}
}

type alwaysRateLimitedRefiner struct {
	calls int
}

func (a *alwaysRateLimitedRefiner) Refine(ctx context.Context, proposition, domain string, stage int) (string, error) {
	a.calls++
	return "", services.Wrap(services.ErrRateLimited, "llm", "refine", "http 429", nil)
}

func TestRunMissingInputBatch(t *testing.T) {
	runner, _ := newTestRunner(t, &fakeRefiner{})
	err := runner.Run(context.Background(), 1, 9)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRunRejectsOutOfRangeStage(t *testing.T) {
	runner, _ := newTestRunner(t, &fakeRefiner{})
	if err := runner.Run(context.Background(), 0, 1); err == nil {
		t.Fatal("expected error for stage 0")
	}
	if err := runner.Run(context.Background(), 4, 1); err == nil {
		t.Fatal("expected error for stage past final")
	}
}
