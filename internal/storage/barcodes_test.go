package storage

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raboid/rpa-dispatch/internal/domain"
)

var barcodeTestColumns = []string{
	"code", "used", "used_by_store_id", "used_at", "created_at", "updated_at",
}

func TestBarcodeStore_Insert(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("inserts a fresh code", func(t *testing.T) {
		db, mock := newMockDB(t)
		store := NewBarcodeStore(db, testLogger())

		mock.ExpectExec("INSERT INTO barcodes").
			WithArgs("4006381333931", now).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := store.Insert(context.Background(), "4006381333931", now)
		require.NoError(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate code", func(t *testing.T) {
		db, mock := newMockDB(t)
		store := NewBarcodeStore(db, testLogger())

		mock.ExpectExec("INSERT INTO barcodes").
			WillReturnError(&pq.Error{Code: pqUniqueViolation})

		err := store.Insert(context.Background(), "4006381333931", now)
		assert.ErrorIs(t, err, ErrDuplicateCode)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestBarcodeStore_AllocateAndConsume(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("flips one unused code", func(t *testing.T) {
		db, mock := newMockDB(t)
		store := NewBarcodeStore(db, testLogger())

		rows := sqlmock.NewRows(barcodeTestColumns).
			AddRow("4006381333931", true, "store-1", now, now.Add(-time.Hour), now)

		mock.ExpectQuery("UPDATE barcodes").
			WithArgs("store-1", now).
			WillReturnRows(rows)

		barcode, err := store.AllocateAndConsume(context.Background(), "store-1", now)
		require.NoError(t, err)

		assert.Equal(t, "4006381333931", barcode.Code)
		assert.True(t, barcode.Used)
		assert.Equal(t, "store-1", barcode.UsedByStoreID.String)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty pool", func(t *testing.T) {
		db, mock := newMockDB(t)
		store := NewBarcodeStore(db, testLogger())

		mock.ExpectQuery("UPDATE barcodes").
			WillReturnError(sql.ErrNoRows)

		_, err := store.AllocateAndConsume(context.Background(), "store-1", now)
		assert.ErrorIs(t, err, domain.ErrNoBarcodeAvailable)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestBarcodeStore_CountAvailable(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewBarcodeStore(db, testLogger())

	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))

	count, err := store.CountAvailable(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, count)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBarcodeStore_GetByCode(t *testing.T) {
	t.Run("not found", func(t *testing.T) {
		db, mock := newMockDB(t)
		store := NewBarcodeStore(db, testLogger())

		mock.ExpectQuery("SELECT (.+) FROM barcodes").
			WithArgs("0000000000000").
			WillReturnError(sql.ErrNoRows)

		_, err := store.GetByCode(context.Background(), "0000000000000")
		assert.ErrorIs(t, err, domain.ErrBarcodeNotFound)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}
