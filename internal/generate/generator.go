package generate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"refinery/internal/batch"
	"refinery/internal/logging"
	"refinery/internal/retry"
	"refinery/internal/services"
)

// Composer produces a fresh proposition for the given domain and seed words.
type Composer interface {
	Compose(ctx context.Context, domain string, seeds []string) (string, error)
}

// Generator writes new source batches to the origin location.
type Generator struct {
	store    *batch.Store
	composer Composer
	exec     *retry.Executor
	entropy  *Entropy
	logger   *slog.Logger
	clock    func() time.Time
}

// Option customizes the generator.
type Option func(*Generator)

// WithLogger sets the generator's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Generator) {
		if logger != nil {
			g.logger = logging.NewComponentLogger(logger, "generator")
		}
	}
}

// WithClock overrides the identity-token time source (useful for tests).
func WithClock(clock func() time.Time) Option {
	return func(g *Generator) {
		if clock != nil {
			g.clock = clock
		}
	}
}

// New constructs a generator.
func New(store *batch.Store, composer Composer, exec *retry.Executor, entropy *Entropy, opts ...Option) *Generator {
	gen := &Generator{
		store:    store,
		composer: composer,
		exec:     exec,
		entropy:  entropy,
		logger:   logging.NewNop(),
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(gen)
	}
	return gen
}

// NextNumber returns the batch number a new batch must use: one past the
// highest number already persisted at the origin.
func (g *Generator) NextNumber() (int, error) {
	return g.store.NextNumber()
}

// OriginItemCount returns the number of items already generated.
func (g *Generator) OriginItemCount() (int, error) {
	return g.store.ItemCount(batch.Origin)
}

// GenerateBatch composes size new items and persists them as batch number at
// the origin. Nothing is written unless every item composes successfully, so
// a failed batch leaves no trace and the number can be reused.
func (g *Generator) GenerateBatch(ctx context.Context, number, size int) ([]batch.Item, error) {
	if size < 1 {
		return nil, fmt.Errorf("generate batch %d: size must be positive, got %d", number, size)
	}

	genCtx := services.WithBatch(ctx, number)
	logger := logging.WithContext(genCtx, g.logger)
	logger.Info("generating batch", logging.Int("size", size))

	items := make([]batch.Item, 0, size)
	for i := 0; i < size; i++ {
		item, err := g.generateItem(genCtx)
		if err != nil {
			return nil, fmt.Errorf("generate batch %d item %d/%d: %w", number, i+1, size, err)
		}
		items = append(items, item)
		logger.Debug("proposition generated",
			logging.Int("item", i+1),
			logging.Int("size", size),
			logging.String("domain", item.Domain),
		)
	}

	if err := g.store.Write(batch.Origin, number, items); err != nil {
		return nil, err
	}
	logger.Info("batch generated", logging.Int("items", len(items)))
	return items, nil
}

func (g *Generator) generateItem(ctx context.Context) (batch.Item, error) {
	seeds, err := g.entropy.SeedWords(ctx)
	if err != nil {
		return batch.Item{}, err
	}
	domain, err := g.entropy.Domain(ctx)
	if err != nil {
		return batch.Item{}, err
	}

	var proposition string
	err = g.exec.Do(ctx, func(ctx context.Context) error {
		text, err := g.composer.Compose(ctx, domain, seeds)
		if err != nil {
			return err
		}
		proposition = text
		return nil
	})
	if err != nil {
		return batch.Item{}, err
	}
	return batch.NewItem(proposition, domain, g.clock()), nil
}
