package barcode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/raboid/rpa-dispatch/internal/domain"
	"github.com/raboid/rpa-dispatch/internal/storage"
)

// maxGenerateAttempts bounds regeneration when a freshly generated code
// collides with one already in the pool.
const maxGenerateAttempts = 5

// Store is the subset of the barcode store the pool depends on.
type Store interface {
	Insert(ctx context.Context, code string, now time.Time) error
	AllocateAndConsume(ctx context.Context, storeID string, now time.Time) (*domain.Barcode, error)
	CountAvailable(ctx context.Context) (int, error)
}

// Pool hands out unique single-use barcodes. All exclusivity is enforced by
// the store's atomic find-and-flip; the pool itself holds no mutable state.
type Pool struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// NewPool creates a new barcode pool backed by the given store.
func NewPool(store Store, logger *slog.Logger) *Pool {
	return &Pool{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// WithNow overrides the pool's clock; tests use it to pin timestamps.
func (p *Pool) WithNow(now func() time.Time) *Pool {
	p.now = now
	return p
}

// AllocateAndConsume atomically takes one unused barcode out of the pool and
// marks it consumed by storeID. Returns domain.ErrNoBarcodeAvailable when the
// pool is exhausted; it never blocks and never partially allocates.
func (p *Pool) AllocateAndConsume(ctx context.Context, storeID string) (*domain.Barcode, error) {
	return p.store.AllocateAndConsume(ctx, storeID, p.now().UTC())
}

// CountAvailable returns the number of unused barcodes remaining.
func (p *Pool) CountAvailable(ctx context.Context) (int, error) {
	return p.store.CountAvailable(ctx)
}

// Seed generates count fresh barcodes and inserts them into the pool. A code
// rejected by the store's uniqueness constraint is regenerated up to
// maxGenerateAttempts times before the seed fails.
func (p *Pool) Seed(ctx context.Context, count int) error {
	if count <= 0 {
		return fmt.Errorf("%w: seed count must be positive", domain.ErrValidation)
	}

	inserted := 0
	for i := 0; i < count; i++ {
		if err := p.seedOne(ctx); err != nil {
			return fmt.Errorf("seeded %d of %d barcodes: %w", inserted, count, err)
		}
		inserted++
	}

	p.logger.Info("Barcode pool seeded",
		slog.Int("count", inserted),
	)

	return nil
}

func (p *Pool) seedOne(ctx context.Context) error {
	for attempt := 1; attempt <= maxGenerateAttempts; attempt++ {
		code := Generate()

		err := p.store.Insert(ctx, code, p.now().UTC())
		if err == nil {
			return nil
		}
		if errors.Is(err, storage.ErrDuplicateCode) {
			p.logger.Debug("Generated duplicate barcode, retrying",
				slog.String("code", code),
				slog.Int("attempt", attempt),
			)
			continue
		}
		return err
	}

	return fmt.Errorf("failed to generate unique barcode after %d attempts", maxGenerateAttempts)
}
