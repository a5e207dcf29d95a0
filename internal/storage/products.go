package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/raboid/rpa-dispatch/internal/domain"
)

// ProductStore handles database operations on products.
type ProductStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewProductStore creates a new ProductStore instance.
func NewProductStore(db *sqlx.DB, logger *slog.Logger) *ProductStore {
	return &ProductStore{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new product record.
func (s *ProductStore) Create(ctx context.Context, product *domain.Product) error {
	query := `
		INSERT INTO products (
			product_id, product_code, product_name, price_cents,
			barcode, store_id, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8
		)
	`

	_, err := s.db.ExecContext(
		ctx,
		query,
		product.ProductID,
		product.ProductCode,
		product.ProductName,
		product.PriceCents,
		product.Barcode,
		product.StoreID,
		product.CreatedAt,
		product.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}

	return nil
}

// ListByStore returns the products registered for a store.
func (s *ProductStore) ListByStore(ctx context.Context, storeID string) ([]domain.Product, error) {
	query := `
		SELECT product_id, product_code, product_name, price_cents,
		       barcode, store_id, created_at, updated_at
		FROM products
		WHERE store_id = $1
		ORDER BY created_at ASC
	`

	products := []domain.Product{}
	err := s.db.SelectContext(ctx, &products, query, storeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	return products, nil
}
