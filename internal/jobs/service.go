// Package jobs implements the job lifecycle: creation, exclusive assignment
// to polling workers, and result recording. Exclusivity is enforced entirely
// by the store's conditional updates, so the service is safe to call from any
// number of concurrent producers and workers without external serialization.
package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/raboid/rpa-dispatch/internal/domain"
	"github.com/raboid/rpa-dispatch/internal/events"
)

// JobStore is the job persistence surface the service depends on.
type JobStore interface {
	Create(ctx context.Context, job *domain.Job) error
	GetByID(ctx context.Context, jobID string) (*domain.Job, error)
	ListPending(ctx context.Context, limit int) ([]domain.Job, error)
	ListByStatus(ctx context.Context, status domain.JobStatus) ([]domain.Job, error)
	ListByStore(ctx context.Context, storeID string) ([]domain.Job, error)
	CountByStatus(ctx context.Context, status domain.JobStatus) (int, error)
	Claim(ctx context.Context, jobID, workerID string, startedAt, expiresAt time.Time) (*domain.Job, error)
	Finish(ctx context.Context, jobID, workerID string, status domain.JobStatus, errorMessage string, completedAt time.Time) (*domain.Job, error)
}

// ProductStore persists the catalog entries created alongside jobs.
type ProductStore interface {
	Create(ctx context.Context, product *domain.Product) error
}

// BarcodePool hands out single-use barcodes for new products.
type BarcodePool interface {
	AllocateAndConsume(ctx context.Context, storeID string) (*domain.Barcode, error)
	CountAvailable(ctx context.Context) (int, error)
}

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// Config holds the lifecycle service dependencies and policy knobs.
type Config struct {
	Logger   *slog.Logger
	Jobs     JobStore
	Products ProductStore
	Barcodes BarcodePool
	Events   *events.Publisher

	// PendingTTL is the expiry horizon applied when a job is created or
	// requeued; ProcessingTTL is applied on every assignment.
	PendingTTL    time.Duration
	ProcessingTTL time.Duration
	MaxRetries    int
}

// Service coordinates the job lifecycle against the store.
type Service struct {
	logger   *slog.Logger
	jobs     JobStore
	products ProductStore
	barcodes BarcodePool
	events   *events.Publisher

	pendingTTL    time.Duration
	processingTTL time.Duration
	maxRetries    int

	now func() time.Time
}

// NewService creates a lifecycle service from cfg.
func NewService(cfg *Config) *Service {
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = domain.DefaultMaxRetries
	}

	return &Service{
		logger:        cfg.Logger,
		jobs:          cfg.Jobs,
		products:      cfg.Products,
		barcodes:      cfg.Barcodes,
		events:        cfg.Events,
		pendingTTL:    cfg.PendingTTL,
		processingTTL: cfg.ProcessingTTL,
		maxRetries:    maxRetries,
		now:           time.Now,
	}
}

// WithNow overrides the service clock; tests use it to pin timestamps.
func (s *Service) WithNow(now func() time.Time) *Service {
	s.now = now
	return s
}

// CreateParams describes a job to create.
type CreateParams struct {
	StoreID     string
	ProductCode string
	ProductName string
	PriceCents  int64
}

func (params *CreateParams) validate() error {
	if strings.TrimSpace(params.StoreID) == "" {
		return fmt.Errorf("%w: store_id is required", domain.ErrValidation)
	}
	if strings.TrimSpace(params.ProductCode) == "" {
		return fmt.Errorf("%w: product_code is required", domain.ErrValidation)
	}
	if strings.TrimSpace(params.ProductName) == "" {
		return fmt.Errorf("%w: product_name is required", domain.ErrValidation)
	}
	if params.PriceCents < 0 {
		return fmt.Errorf("%w: price_cents must not be negative", domain.ErrValidation)
	}
	return nil
}

// Create allocates a barcode, registers the product, and inserts a pending
// job carrying the product snapshot. When the barcode pool is exhausted no
// job record is created.
func (s *Service) Create(ctx context.Context, params CreateParams) (*domain.Job, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}

	barcode, err := s.barcodes.AllocateAndConsume(ctx, params.StoreID)
	if err != nil {
		if errors.Is(err, domain.ErrNoBarcodeAvailable) {
			s.logger.Warn("Job creation rejected - barcode pool exhausted",
				slog.String("store_id", params.StoreID),
			)
			return nil, domain.ErrNoBarcodeAvailable
		}
		return nil, fmt.Errorf("failed to allocate barcode: %w", err)
	}

	now := s.now().UTC()

	product := &domain.Product{
		ProductID:   uuid.New().String(),
		ProductCode: params.ProductCode,
		ProductName: params.ProductName,
		PriceCents:  params.PriceCents,
		Barcode:     barcode.Code,
		StoreID:     params.StoreID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.products.Create(ctx, product); err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	job := &domain.Job{
		JobID:      uuid.New().String(),
		StoreID:    params.StoreID,
		Product:    product.Snapshot(),
		Status:     domain.JobStatusPending,
		RetryCount: 0,
		MaxRetries: s.maxRetries,
		CreatedAt:  now,
		ExpiresAt:  sql.NullTime{Time: now.Add(s.pendingTTL), Valid: true},
		UpdatedAt:  now,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	s.logger.Info("Job created",
		slog.String("job_id", job.JobID),
		slog.String("store_id", job.StoreID),
		slog.String("barcode", barcode.Code),
	)
	s.events.Emit(ctx, events.TypeJobCreated, job.JobID, job.StoreID, "", "", now)

	return job, nil
}

// AssignBatch claims up to maxCount pending jobs for workerID, oldest first.
// A candidate lost to a concurrent assigner is skipped without counting
// against maxCount; the batch may still come back short when the backlog
// drains. Claimed jobs are returned in claim order.
func (s *Service) AssignBatch(ctx context.Context, workerID string, maxCount int) ([]domain.Job, error) {
	if strings.TrimSpace(workerID) == "" {
		return nil, fmt.Errorf("%w: worker_id is required", domain.ErrValidation)
	}
	if maxCount <= 0 {
		return nil, fmt.Errorf("%w: count must be positive", domain.ErrValidation)
	}

	assigned := make([]domain.Job, 0, maxCount)
	for len(assigned) < maxCount {
		remaining := maxCount - len(assigned)

		candidates, err := s.jobs.ListPending(ctx, remaining)
		if err != nil {
			return assigned, fmt.Errorf("failed to list pending jobs: %w", err)
		}
		if len(candidates) == 0 {
			break
		}

		claimedAny := false
		for _, candidate := range candidates {
			now := s.now().UTC()
			job, err := s.jobs.Claim(ctx, candidate.JobID, workerID, now, now.Add(s.processingTTL))
			if err != nil {
				if errors.Is(err, domain.ErrAlreadyAssigned) {
					// Lost the race; the candidate is no longer pending.
					continue
				}
				return assigned, fmt.Errorf("failed to claim job %s: %w", candidate.JobID, err)
			}

			claimedAny = true
			assigned = append(assigned, *job)
			s.events.Emit(ctx, events.TypeJobAssigned, job.JobID, job.StoreID, workerID, "", now)

			if len(assigned) == maxCount {
				break
			}
		}

		// Every candidate was stolen by concurrent assigners and the next
		// fetch would race the same way; give up rather than spin.
		if !claimedAny {
			break
		}
	}

	s.logger.Info("Batch assignment completed",
		slog.String("worker_id", workerID),
		slog.Int("requested", maxCount),
		slog.Int("assigned", len(assigned)),
	)

	return assigned, nil
}

// AssignOne claims a single named pending job for workerID. Fails with
// domain.ErrAlreadyAssigned when the job exists but is no longer pending, and
// domain.ErrJobNotFound when it does not exist.
func (s *Service) AssignOne(ctx context.Context, jobID, workerID string) (*domain.Job, error) {
	if strings.TrimSpace(jobID) == "" || strings.TrimSpace(workerID) == "" {
		return nil, fmt.Errorf("%w: job_id and worker_id are required", domain.ErrValidation)
	}

	now := s.now().UTC()
	job, err := s.jobs.Claim(ctx, jobID, workerID, now, now.Add(s.processingTTL))
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyAssigned) {
			// Zero rows matched: distinguish a missing job from a lost race.
			if _, getErr := s.jobs.GetByID(ctx, jobID); errors.Is(getErr, domain.ErrJobNotFound) {
				return nil, domain.ErrJobNotFound
			}
			return nil, domain.ErrAlreadyAssigned
		}
		return nil, err
	}

	s.events.Emit(ctx, events.TypeJobAssigned, job.JobID, job.StoreID, workerID, "", now)

	return job, nil
}

// ReportResult transitions an in-progress job held by workerID to its
// terminal state. A report that arrives after the sweeper reclaimed the job,
// or from a worker that no longer holds it, is rejected and discarded.
func (s *Service) ReportResult(ctx context.Context, jobID, workerID string, outcome domain.Outcome) error {
	if strings.TrimSpace(jobID) == "" || strings.TrimSpace(workerID) == "" {
		return fmt.Errorf("%w: job_id and worker_id are required", domain.ErrValidation)
	}
	if !outcome.Success && strings.TrimSpace(outcome.ErrorMessage) == "" {
		return fmt.Errorf("%w: error_message is required for a failed outcome", domain.ErrValidation)
	}

	now := s.now().UTC()
	terminal := outcome.TerminalStatus()

	job, err := s.jobs.Finish(ctx, jobID, workerID, terminal, outcome.ErrorMessage, now)
	if err != nil {
		if errors.Is(err, domain.ErrStaleAssignment) {
			return s.classifyRejectedReport(ctx, jobID)
		}
		return err
	}

	eventType := events.TypeJobCompleted
	if terminal == domain.JobStatusFailed {
		eventType = events.TypeJobFailed
	}
	s.events.Emit(ctx, eventType, job.JobID, job.StoreID, workerID, outcome.ErrorMessage, now)

	return nil
}

// classifyRejectedReport re-reads the job after a rejected conditional update
// to report the precise precondition failure to the caller.
func (s *Service) classifyRejectedReport(ctx context.Context, jobID string) error {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			return domain.ErrJobNotFound
		}
		return domain.ErrStaleAssignment
	}

	if job.Status.Terminal() {
		return domain.ErrInvalidTransition
	}

	// The job is non-terminal but the precondition failed: it is held by
	// another worker now, or back in the queue after a reclaim.
	return domain.ErrStaleAssignment
}

// ListPending returns up to limit pending jobs, oldest first.
func (s *Service) ListPending(ctx context.Context, limit int) ([]domain.Job, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return s.jobs.ListPending(ctx, limit)
}

// ListInProgress returns all in-progress jobs.
func (s *Service) ListInProgress(ctx context.Context) ([]domain.Job, error) {
	return s.jobs.ListByStatus(ctx, domain.JobStatusInProgress)
}

// ListByStatus returns all jobs with the given status.
func (s *Service) ListByStatus(ctx context.Context, status domain.JobStatus) ([]domain.Job, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrValidation, status)
	}
	return s.jobs.ListByStatus(ctx, status)
}

// ListByStore returns all jobs belonging to a store.
func (s *Service) ListByStore(ctx context.Context, storeID string) ([]domain.Job, error) {
	if strings.TrimSpace(storeID) == "" {
		return nil, fmt.Errorf("%w: store_id is required", domain.ErrValidation)
	}
	return s.jobs.ListByStore(ctx, storeID)
}

// GetByID returns a single job.
func (s *Service) GetByID(ctx context.Context, jobID string) (*domain.Job, error) {
	return s.jobs.GetByID(ctx, jobID)
}

// Stats is a snapshot of queue depth and pool capacity.
type Stats struct {
	PendingJobs       int `json:"pending_jobs"`
	InProgressJobs    int `json:"in_progress_jobs"`
	CompletedJobs     int `json:"completed_jobs"`
	FailedJobs        int `json:"failed_jobs"`
	AvailableBarcodes int `json:"available_barcodes"`
}

// Stats counts jobs per status and the remaining barcode pool.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	counts := []struct {
		status domain.JobStatus
		dest   *int
	}{
		{domain.JobStatusPending, &stats.PendingJobs},
		{domain.JobStatusInProgress, &stats.InProgressJobs},
		{domain.JobStatusCompleted, &stats.CompletedJobs},
		{domain.JobStatusFailed, &stats.FailedJobs},
	}
	for _, c := range counts {
		n, err := s.jobs.CountByStatus(ctx, c.status)
		if err != nil {
			return nil, err
		}
		*c.dest = n
	}

	available, err := s.barcodes.CountAvailable(ctx)
	if err != nil {
		return nil, err
	}
	stats.AvailableBarcodes = available

	return stats, nil
}
