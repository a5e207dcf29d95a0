// Package scheduler runs the periodic reclaim of overdue in-progress jobs.
// Workers that crash or stall never report back; their jobs are recovered
// here, returned to the queue while retries remain and failed permanently
// once the budget is spent.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/raboid/rpa-dispatch/internal/domain"
	"github.com/raboid/rpa-dispatch/internal/events"
)

// JobStore is the reclaim surface the sweeper depends on.
type JobStore interface {
	ListExpired(ctx context.Context, now time.Time) ([]domain.Job, error)
	RequeueExpired(ctx context.Context, jobID string, observedExpiresAt time.Time, reason string, newExpiresAt, now time.Time) error
	FailExpired(ctx context.Context, jobID string, observedExpiresAt time.Time, reason string, now time.Time) error
}

// BarcodePool is the replenishment surface the sweeper depends on.
type BarcodePool interface {
	CountAvailable(ctx context.Context) (int, error)
	Seed(ctx context.Context, count int) error
}

// Config holds sweeper dependencies and policy knobs.
type Config struct {
	Logger   *slog.Logger
	Jobs     JobStore
	Barcodes BarcodePool
	Events   *events.Publisher

	// Interval is the sweep period.
	Interval time.Duration
	// PendingTTL is the fresh expiry horizon given to requeued jobs.
	PendingTTL time.Duration
	// LowWaterMark triggers pool replenishment when the available barcode
	// count drops below it; ReplenishCount is the batch size seeded.
	LowWaterMark   int
	ReplenishCount int
}

// Sweeper reclaims overdue jobs on a fixed period.
type Sweeper struct {
	logger   *slog.Logger
	jobs     JobStore
	barcodes BarcodePool
	events   *events.Publisher

	interval       time.Duration
	pendingTTL     time.Duration
	lowWaterMark   int
	replenishCount int

	now func() time.Time
}

// NewSweeper creates a sweeper from cfg.
func NewSweeper(cfg *Config) *Sweeper {
	return &Sweeper{
		logger:         cfg.Logger,
		jobs:           cfg.Jobs,
		barcodes:       cfg.Barcodes,
		events:         cfg.Events,
		interval:       cfg.Interval,
		pendingTTL:     cfg.PendingTTL,
		lowWaterMark:   cfg.LowWaterMark,
		replenishCount: cfg.ReplenishCount,
		now:            time.Now,
	}
}

// WithNow overrides the sweeper clock; tests use it to simulate expiry
// without waiting.
func (s *Sweeper) WithNow(now func() time.Time) *Sweeper {
	s.now = now
	return s
}

// Run ticks until ctx is canceled. A failed sweep is logged and retried on
// the next period; the loop never exits on a transient error.
func (s *Sweeper) Run(ctx context.Context) error {
	s.logger.Info("Sweeper started",
		slog.Duration("interval", s.interval),
	)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Sweeper stopped")
			return ctx.Err()

		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				s.logger.Error("Sweep iteration failed",
					slog.Any("error", err),
				)
			}
			s.replenishPool(ctx)
		}
	}
}

// Sweep performs one reclaim pass over all overdue in-progress jobs. A
// failure on one job is logged and does not abort the rest of the batch.
func (s *Sweeper) Sweep(ctx context.Context) error {
	now := s.now().UTC()

	expired, err := s.jobs.ListExpired(ctx, now)
	if err != nil {
		return fmt.Errorf("failed to list expired jobs: %w", err)
	}
	if len(expired) == 0 {
		return nil
	}

	s.logger.Info("Reclaiming expired jobs",
		slog.Int("count", len(expired)),
	)

	for _, job := range expired {
		if err := s.reclaim(ctx, &job); err != nil {
			s.logger.Error("Failed to reclaim job",
				slog.String("job_id", job.JobID),
				slog.Any("error", err),
			)
		}
	}

	return nil
}

// reclaim returns one overdue job to pending, or fails it permanently when
// its retry budget is spent. Both updates are conditioned on the status and
// deadline observed during the scan, so a job its worker finished in the
// meantime is left untouched.
func (s *Sweeper) reclaim(ctx context.Context, job *domain.Job) error {
	if !job.ExpiresAt.Valid {
		return fmt.Errorf("expired job %s has no deadline", job.JobID)
	}

	now := s.now().UTC()
	observed := job.ExpiresAt.Time

	if job.RetryCount < job.MaxRetries {
		retry := job.RetryCount + 1
		reason := fmt.Sprintf("expired - retry %d/%d", retry, job.MaxRetries)

		err := s.jobs.RequeueExpired(ctx, job.JobID, observed, reason, now.Add(s.pendingTTL), now)
		if err != nil {
			if errors.Is(err, domain.ErrStaleAssignment) {
				// The worker finished (or another sweep won) between scan and
				// reclaim; nothing to do.
				return nil
			}
			return err
		}

		s.logger.Info("Expired job requeued",
			slog.String("job_id", job.JobID),
			slog.Int("retry_count", retry),
			slog.Int("max_retries", job.MaxRetries),
		)
		s.events.Emit(ctx, events.TypeJobRequeued, job.JobID, job.StoreID, "", reason, now)

		return nil
	}

	reason := fmt.Sprintf("job failed after %d retries", job.MaxRetries)

	err := s.jobs.FailExpired(ctx, job.JobID, observed, reason, now)
	if err != nil {
		if errors.Is(err, domain.ErrStaleAssignment) {
			return nil
		}
		return err
	}

	s.logger.Warn("Expired job failed permanently",
		slog.String("job_id", job.JobID),
		slog.Int("max_retries", job.MaxRetries),
	)
	s.events.Emit(ctx, events.TypeJobFailed, job.JobID, job.StoreID, "", reason, now)

	return nil
}

// replenishPool tops up the barcode pool when it drops below the low-water
// mark. Best-effort: errors are logged and retried on the next tick.
func (s *Sweeper) replenishPool(ctx context.Context) {
	if s.lowWaterMark <= 0 || s.replenishCount <= 0 {
		return
	}

	available, err := s.barcodes.CountAvailable(ctx)
	if err != nil {
		s.logger.Error("Failed to count available barcodes",
			slog.Any("error", err),
		)
		return
	}
	if available >= s.lowWaterMark {
		return
	}

	s.logger.Info("Replenishing barcode pool",
		slog.Int("available", available),
		slog.Int("low_water_mark", s.lowWaterMark),
		slog.Int("replenish_count", s.replenishCount),
	)

	if err := s.barcodes.Seed(ctx, s.replenishCount); err != nil {
		s.logger.Error("Failed to replenish barcode pool",
			slog.Any("error", err),
		)
	}
}
