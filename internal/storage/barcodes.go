package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/raboid/rpa-dispatch/internal/domain"
)

// ErrDuplicateCode is returned when inserting a barcode whose code already
// exists; the generator regenerates and retries on this error.
var ErrDuplicateCode = errors.New("barcode code already exists")

// pqUniqueViolation is the Postgres error code for unique constraint violations.
const pqUniqueViolation = "23505"

// BarcodeStore handles database operations on the barcode pool.
type BarcodeStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewBarcodeStore creates a new BarcodeStore instance.
func NewBarcodeStore(db *sqlx.DB, logger *slog.Logger) *BarcodeStore {
	return &BarcodeStore{
		db:     db,
		logger: logger,
	}
}

// Insert adds a fresh unused barcode to the pool. The codes column carries a
// UNIQUE constraint; duplicates surface as ErrDuplicateCode.
func (s *BarcodeStore) Insert(ctx context.Context, code string, now time.Time) error {
	query := `
		INSERT INTO barcodes (code, used, created_at, updated_at)
		VALUES ($1, FALSE, $2, $2)
	`

	_, err := s.db.ExecContext(ctx, query, code, now)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pqUniqueViolation {
			return ErrDuplicateCode
		}
		return fmt.Errorf("failed to insert barcode: %w", err)
	}

	return nil
}

// AllocateAndConsume atomically selects one unused barcode and marks it used
// in the same statement. The inner SELECT ... FOR UPDATE SKIP LOCKED keeps
// concurrent allocators from ever observing the same candidate, so a code can
// never be issued twice. Returns domain.ErrNoBarcodeAvailable when the pool
// is empty.
func (s *BarcodeStore) AllocateAndConsume(ctx context.Context, storeID string, now time.Time) (*domain.Barcode, error) {
	query := `
		UPDATE barcodes
		SET used = TRUE,
		    used_by_store_id = $1,
		    used_at = $2,
		    updated_at = $2
		WHERE code = (
			SELECT code FROM barcodes
			WHERE used = FALSE
			ORDER BY created_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING code, used, used_by_store_id, used_at, created_at, updated_at
	`

	var barcode domain.Barcode
	err := s.db.GetContext(ctx, &barcode, query, storeID, now)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNoBarcodeAvailable
		}
		return nil, fmt.Errorf("failed to allocate barcode: %w", err)
	}

	s.logger.Debug("Barcode consumed",
		slog.String("code", barcode.Code),
		slog.String("store_id", storeID),
	)

	return &barcode, nil
}

// CountAvailable returns the number of unused barcodes left in the pool.
func (s *BarcodeStore) CountAvailable(ctx context.Context) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM barcodes WHERE used = FALSE`)
	if err != nil {
		return 0, fmt.Errorf("failed to count available barcodes: %w", err)
	}
	return count, nil
}

// GetByCode retrieves a barcode by its code.
func (s *BarcodeStore) GetByCode(ctx context.Context, code string) (*domain.Barcode, error) {
	query := `
		SELECT code, used, used_by_store_id, used_at, created_at, updated_at
		FROM barcodes
		WHERE code = $1
	`

	var barcode domain.Barcode
	err := s.db.GetContext(ctx, &barcode, query, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrBarcodeNotFound
		}
		return nil, fmt.Errorf("failed to get barcode: %w", err)
	}

	return &barcode, nil
}

// ListUsedByStore returns the consumed barcodes attributed to a store.
func (s *BarcodeStore) ListUsedByStore(ctx context.Context, storeID string) ([]domain.Barcode, error) {
	query := `
		SELECT code, used, used_by_store_id, used_at, created_at, updated_at
		FROM barcodes
		WHERE used = TRUE AND used_by_store_id = $1
		ORDER BY used_at ASC
	`

	barcodes := []domain.Barcode{}
	err := s.db.SelectContext(ctx, &barcodes, query, storeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list used barcodes: %w", err)
	}

	return barcodes, nil
}
