package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/raboid/rpa-dispatch/internal/domain"
)

// JobStore handles all database operations on the jobs collection. Every
// status mutation is a single conditional UPDATE so that exclusivity is
// enforced by the database, not by in-process locks.
type JobStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewJobStore creates a new JobStore instance.
func NewJobStore(db *sqlx.DB, logger *slog.Logger) *JobStore {
	return &JobStore{
		db:     db,
		logger: logger,
	}
}

const jobColumns = `
	job_id, store_id, product, status, assigned_worker,
	retry_count, max_retries, error_message,
	created_at, started_at, completed_at, expires_at, updated_at
`

// Create inserts a new job record.
func (s *JobStore) Create(ctx context.Context, job *domain.Job) error {
	query := `
		INSERT INTO jobs (
			job_id, store_id, product, status, assigned_worker,
			retry_count, max_retries, error_message,
			created_at, started_at, completed_at, expires_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8,
			$9, $10, $11, $12, $13
		)
	`

	_, err := s.db.ExecContext(
		ctx,
		query,
		job.JobID,
		job.StoreID,
		job.Product,
		job.Status,
		job.AssignedWorker,
		job.RetryCount,
		job.MaxRetries,
		job.ErrorMessage,
		job.CreatedAt,
		job.StartedAt,
		job.CompletedAt,
		job.ExpiresAt,
		job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	return nil
}

// GetByID retrieves a job by its ID.
func (s *JobStore) GetByID(ctx context.Context, jobID string) (*domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE job_id = $1`

	var job domain.Job
	err := s.db.GetContext(ctx, &job, query, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return &job, nil
}

// ListPending returns up to limit pending jobs in strict creation-time
// ascending order (oldest first).
func (s *JobStore) ListPending(ctx context.Context, limit int) ([]domain.Job, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM jobs
		WHERE status = $1
		ORDER BY created_at ASC, job_id ASC
		LIMIT $2
	`

	jobs := []domain.Job{}
	err := s.db.SelectContext(ctx, &jobs, query, domain.JobStatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending jobs: %w", err)
	}

	return jobs, nil
}

// ListByStatus returns all jobs with the given status.
func (s *JobStore) ListByStatus(ctx context.Context, status domain.JobStatus) ([]domain.Job, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM jobs
		WHERE status = $1
		ORDER BY created_at ASC, job_id ASC
	`

	jobs := []domain.Job{}
	err := s.db.SelectContext(ctx, &jobs, query, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs by status: %w", err)
	}

	return jobs, nil
}

// ListByStore returns all jobs belonging to a store.
func (s *JobStore) ListByStore(ctx context.Context, storeID string) ([]domain.Job, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM jobs
		WHERE store_id = $1
		ORDER BY created_at ASC, job_id ASC
	`

	jobs := []domain.Job{}
	err := s.db.SelectContext(ctx, &jobs, query, storeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs by store: %w", err)
	}

	return jobs, nil
}

// ListExpired returns in-progress jobs whose deadline has passed.
func (s *JobStore) ListExpired(ctx context.Context, now time.Time) ([]domain.Job, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM jobs
		WHERE status = $1 AND expires_at < $2
		ORDER BY expires_at ASC
	`

	jobs := []domain.Job{}
	err := s.db.SelectContext(ctx, &jobs, query, domain.JobStatusInProgress, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired jobs: %w", err)
	}

	return jobs, nil
}

// CountByStatus returns the number of jobs with the given status.
func (s *JobStore) CountByStatus(ctx context.Context, status domain.JobStatus) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM jobs WHERE status = $1`, status)
	if err != nil {
		return 0, fmt.Errorf("failed to count jobs: %w", err)
	}
	return count, nil
}

// Claim attempts to move a pending job to in_progress for the given worker.
// The update is conditioned on the job still being pending, so under
// concurrent claimers at most one caller wins; the rest get
// domain.ErrAlreadyAssigned.
func (s *JobStore) Claim(ctx context.Context, jobID, workerID string, startedAt, expiresAt time.Time) (*domain.Job, error) {
	query := `
		UPDATE jobs
		SET status = $1,
		    assigned_worker = $2,
		    started_at = $3,
		    expires_at = $4,
		    updated_at = $3
		WHERE job_id = $5
		  AND status = $6
		RETURNING ` + jobColumns

	var job domain.Job
	err := s.db.GetContext(ctx, &job, query,
		domain.JobStatusInProgress, workerID, startedAt, expiresAt, jobID, domain.JobStatusPending)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("Failed to claim job - already assigned or not found",
				slog.String("job_id", jobID),
				slog.String("worker_id", workerID),
			)
			return nil, domain.ErrAlreadyAssigned
		}
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}

	s.logger.Info("Job claimed",
		slog.String("job_id", jobID),
		slog.String("worker_id", workerID),
	)

	return &job, nil
}

// Finish moves an in-progress job to its terminal status on behalf of the
// worker that holds it. The update is conditioned on the job still being
// in_progress AND still assigned to workerID; if the sweeper reclaimed the
// job in the meantime the report is rejected with domain.ErrStaleAssignment
// and the record is left unchanged.
func (s *JobStore) Finish(ctx context.Context, jobID, workerID string, status domain.JobStatus, errorMessage string, completedAt time.Time) (*domain.Job, error) {
	query := `
		UPDATE jobs
		SET status = $1,
		    error_message = NULLIF($2, ''),
		    completed_at = $3,
		    updated_at = $3
		WHERE job_id = $4
		  AND status = $5
		  AND assigned_worker = $6
		RETURNING ` + jobColumns

	var job domain.Job
	err := s.db.GetContext(ctx, &job, query,
		status, errorMessage, completedAt, jobID, domain.JobStatusInProgress, workerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("Result rejected - job not in progress for this worker",
				slog.String("job_id", jobID),
				slog.String("worker_id", workerID),
			)
			return nil, domain.ErrStaleAssignment
		}
		return nil, fmt.Errorf("failed to finish job: %w", err)
	}

	s.logger.Info("Job finished",
		slog.String("job_id", jobID),
		slog.String("status", string(status)),
	)

	return &job, nil
}

// RequeueExpired returns an overdue in-progress job to pending with an
// incremented retry count. The update is conditioned on the status and the
// observed deadline, so a job completed by its worker between scan and
// reclaim is left untouched.
func (s *JobStore) RequeueExpired(ctx context.Context, jobID string, observedExpiresAt time.Time, reason string, newExpiresAt, now time.Time) error {
	query := `
		UPDATE jobs
		SET status = $1,
		    assigned_worker = NULL,
		    started_at = NULL,
		    retry_count = retry_count + 1,
		    error_message = $2,
		    expires_at = $3,
		    updated_at = $4
		WHERE job_id = $5
		  AND status = $6
		  AND expires_at = $7
	`

	result, err := s.db.ExecContext(ctx, query,
		domain.JobStatusPending, reason, newExpiresAt, now, jobID, domain.JobStatusInProgress, observedExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to requeue expired job: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrStaleAssignment
	}

	return nil
}

// FailExpired marks an overdue in-progress job whose retry budget is spent as
// permanently failed, under the same conditional-update discipline as
// RequeueExpired.
func (s *JobStore) FailExpired(ctx context.Context, jobID string, observedExpiresAt time.Time, reason string, now time.Time) error {
	query := `
		UPDATE jobs
		SET status = $1,
		    error_message = $2,
		    completed_at = $3,
		    updated_at = $3
		WHERE job_id = $4
		  AND status = $5
		  AND expires_at = $6
	`

	result, err := s.db.ExecContext(ctx, query,
		domain.JobStatusFailed, reason, now, jobID, domain.JobStatusInProgress, observedExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to fail expired job: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrStaleAssignment
	}

	return nil
}
