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

// WorkerStore handles database operations on registered workers.
type WorkerStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewWorkerStore creates a new WorkerStore instance.
func NewWorkerStore(db *sqlx.DB, logger *slog.Logger) *WorkerStore {
	return &WorkerStore{
		db:     db,
		logger: logger,
	}
}

// Create registers a new worker if the worker id is not already taken.
func (s *WorkerStore) Create(ctx context.Context, worker *domain.Worker) error {
	query := `
		INSERT INTO workers (
			worker_id, secret, name, active, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6
		)
		ON CONFLICT (worker_id) DO NOTHING
	`

	_, err := s.db.ExecContext(
		ctx,
		query,
		worker.WorkerID,
		worker.Secret,
		worker.Name,
		worker.Active,
		worker.CreatedAt,
		worker.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create worker: %w", err)
	}

	return nil
}

// GetByID retrieves a worker by its worker id.
func (s *WorkerStore) GetByID(ctx context.Context, workerID string) (*domain.Worker, error) {
	query := `
		SELECT worker_id, secret, name, active,
		       last_login_at, login_expires_at, created_at, updated_at
		FROM workers
		WHERE worker_id = $1
	`

	var worker domain.Worker
	err := s.db.GetContext(ctx, &worker, query, workerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrWorkerNotFound
		}
		return nil, fmt.Errorf("failed to get worker: %w", err)
	}

	return &worker, nil
}

// ValidateCredentials checks a worker id / secret pair against the active
// worker records.
func (s *WorkerStore) ValidateCredentials(ctx context.Context, workerID, secret string) (bool, error) {
	var count int
	query := `
		SELECT COUNT(*) FROM workers
		WHERE worker_id = $1 AND secret = $2 AND active = TRUE
	`

	err := s.db.GetContext(ctx, &count, query, workerID, secret)
	if err != nil {
		return false, fmt.Errorf("failed to validate credentials: %w", err)
	}

	return count > 0, nil
}

// RecordLogin stamps the worker's last login and token expiry.
func (s *WorkerStore) RecordLogin(ctx context.Context, workerID string, loginAt, expiresAt time.Time) error {
	query := `
		UPDATE workers
		SET last_login_at = $1,
		    login_expires_at = $2,
		    updated_at = $1
		WHERE worker_id = $3
	`

	_, err := s.db.ExecContext(ctx, query, loginAt, expiresAt, workerID)
	if err != nil {
		return fmt.Errorf("failed to record login: %w", err)
	}

	return nil
}
