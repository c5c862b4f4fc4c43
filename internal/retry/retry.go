package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"refinery/internal/logging"
	"refinery/internal/services"
)

// ErrExhausted is surfaced after the last retryable failure so callers can
// distinguish exhaustion from a single fatal error.
var ErrExhausted = errors.New("retries exhausted")

// Policy describes the bounded backoff applied to retryable failures.
type Policy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Multiplier   float64
	Jitter       bool
}

// Executor runs fallible operations under a Policy. Operations whose errors
// are retryable (per services.IsRetryable) are reattempted with exponential
// backoff; fatal errors are surfaced immediately.
type Executor struct {
	policy  Policy
	pacer   *Pacer
	logger  *slog.Logger
	sleeper func(time.Duration)
	random  func() float64
}

// Option customizes the executor.
type Option func(*Executor)

// WithPacer attaches a shared inter-call pacer. The pacer delay runs before
// every attempt, including the first, independent of backoff.
func WithPacer(pacer *Pacer) Option {
	return func(e *Executor) { e.pacer = pacer }
}

// WithLogger sets the logger used for retry warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithSleeper overrides how backoff sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(e *Executor) { e.sleeper = sleeper }
}

// WithRandom overrides the jitter source (useful for tests).
func WithRandom(random func() float64) Option {
	return func(e *Executor) {
		if random != nil {
			e.random = random
		}
	}
}

// NewExecutor constructs an executor for the supplied policy.
func NewExecutor(policy Policy, opts ...Option) *Executor {
	exec := &Executor{
		policy: policy,
		logger: logging.NewNop(),
		random: rand.Float64,
	}
	for _, opt := range opts {
		opt(exec)
	}
	return exec
}

// Do runs op until it succeeds, fails fatally, or attempts are exhausted.
// Every retryable failure sleeps its backoff delay before the executor moves
// on, including the final one, so the shared rate-limit window has cooled
// before the caller reaches for the next item.
func (e *Executor) Do(ctx context.Context, op func(context.Context) error) error {
	attempts := e.policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := e.pacer.Wait(ctx); err != nil {
			return err
		}

		err := op(ctx)
		if err == nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		if !services.IsRetryable(err) {
			return err
		}

		lastErr = err
		delay := e.backoffDelay(attempt)
		e.logger.Warn("retryable failure",
			logging.Int("attempt", attempt),
			logging.Int("max_attempts", attempts),
			logging.Duration("backoff", delay),
			logging.Bool("rate_limited", errors.Is(err, services.ErrRateLimited)),
			logging.Error(err),
		)
		if err := e.sleep(ctx, delay); err != nil {
			return err
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, attempts, lastErr)
}

// backoffDelay computes initial × multiplier^(attempt−1), scaled by a uniform
// jitter factor in [1.0, 2.0) when jitter is enabled.
func (e *Executor) backoffDelay(attempt int) time.Duration {
	if e.policy.InitialDelay <= 0 {
		return 0
	}
	multiplier := e.policy.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}
	delay := float64(e.policy.InitialDelay) * math.Pow(multiplier, float64(attempt-1))
	if e.policy.Jitter {
		delay *= 1 + e.random()
	}
	return time.Duration(delay)
}

func (e *Executor) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	if e.sleeper != nil {
		e.sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
