package retry

import (
	"context"
	"sync"
	"time"
)

// Pacer enforces a minimum interval between service calls. A single pacer is
// shared across every call site so generation and refinement draw on the same
// rate-limit budget.
type Pacer struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time

	now     func() time.Time
	sleeper func(time.Duration)
}

// PacerOption customizes a pacer.
type PacerOption func(*Pacer)

// WithPacerClock overrides the time source (useful for tests).
func WithPacerClock(now func() time.Time) PacerOption {
	return func(p *Pacer) {
		if now != nil {
			p.now = now
		}
	}
}

// WithPacerSleeper overrides how pacing sleeps are performed (useful for tests).
func WithPacerSleeper(sleeper func(time.Duration)) PacerOption {
	return func(p *Pacer) { p.sleeper = sleeper }
}

// NewPacer constructs a pacer with the given minimum inter-call interval.
// A non-positive interval disables pacing.
func NewPacer(interval time.Duration, opts ...PacerOption) *Pacer {
	pacer := &Pacer{interval: interval, now: time.Now}
	for _, opt := range opts {
		opt(pacer)
	}
	return pacer
}

// Wait blocks until the interval since the previous call has elapsed, then
// records the call. A nil pacer waits for nothing.
func (p *Pacer) Wait(ctx context.Context) error {
	if p == nil || p.interval <= 0 {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.last.IsZero() {
		if wait := p.interval - p.now().Sub(p.last); wait > 0 {
			if err := p.sleep(ctx, wait); err != nil {
				return err
			}
		}
	} else if err := p.sleep(ctx, p.interval); err != nil {
		return err
	}

	p.last = p.now()
	return nil
}

func (p *Pacer) sleep(ctx context.Context, delay time.Duration) error {
	if p.sleeper != nil {
		p.sleeper(delay)
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
