package storage

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raboid/rpa-dispatch/internal/domain"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	return sqlx.NewDb(mockDB, "postgres"), mock
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var jobTestColumns = []string{
	"job_id", "store_id", "product", "status", "assigned_worker",
	"retry_count", "max_retries", "error_message",
	"created_at", "started_at", "completed_at", "expires_at", "updated_at",
}

func jobRow(jobID string, status domain.JobStatus, worker interface{}, now time.Time) *sqlmock.Rows {
	product := []byte(`{"product_id":"p-1","product_code":"SKU-1","product_name":"Widget","price_cents":1999,"barcode":"4006381333931","store_id":"store-1"}`)

	return sqlmock.NewRows(jobTestColumns).AddRow(
		jobID, "store-1", product, string(status), worker,
		0, 3, nil,
		now, nil, nil, now.Add(2*time.Hour), now,
	)
}

func TestJobStore_GetByID(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("found", func(t *testing.T) {
		db, mock := newMockDB(t)
		store := NewJobStore(db, testLogger())

		mock.ExpectQuery("SELECT (.+) FROM jobs WHERE job_id").
			WithArgs("job-1").
			WillReturnRows(jobRow("job-1", domain.JobStatusPending, nil, now))

		job, err := store.GetByID(context.Background(), "job-1")
		require.NoError(t, err)

		assert.Equal(t, "job-1", job.JobID)
		assert.Equal(t, domain.JobStatusPending, job.Status)
		assert.Equal(t, "4006381333931", job.Product.Barcode)
		assert.False(t, job.AssignedWorker.Valid)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		db, mock := newMockDB(t)
		store := NewJobStore(db, testLogger())

		mock.ExpectQuery("SELECT (.+) FROM jobs WHERE job_id").
			WithArgs("ghost").
			WillReturnError(sql.ErrNoRows)

		_, err := store.GetByID(context.Background(), "ghost")
		assert.ErrorIs(t, err, domain.ErrJobNotFound)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestJobStore_Claim(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	expiresAt := now.Add(time.Hour)

	t.Run("wins the pending job", func(t *testing.T) {
		db, mock := newMockDB(t)
		store := NewJobStore(db, testLogger())

		mock.ExpectQuery("UPDATE jobs").
			WithArgs(
				string(domain.JobStatusInProgress), "worker-1", now, expiresAt,
				"job-1", string(domain.JobStatusPending),
			).
			WillReturnRows(jobRow("job-1", domain.JobStatusInProgress, "worker-1", now))

		job, err := store.Claim(context.Background(), "job-1", "worker-1", now, expiresAt)
		require.NoError(t, err)

		assert.Equal(t, domain.JobStatusInProgress, job.Status)
		assert.Equal(t, "worker-1", job.AssignedWorker.String)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no pending row to update", func(t *testing.T) {
		db, mock := newMockDB(t)
		store := NewJobStore(db, testLogger())

		mock.ExpectQuery("UPDATE jobs").
			WillReturnError(sql.ErrNoRows)

		_, err := store.Claim(context.Background(), "job-1", "worker-1", now, expiresAt)
		assert.ErrorIs(t, err, domain.ErrAlreadyAssigned)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestJobStore_Finish(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("completes the held job", func(t *testing.T) {
		db, mock := newMockDB(t)
		store := NewJobStore(db, testLogger())

		mock.ExpectQuery("UPDATE jobs").
			WithArgs(
				string(domain.JobStatusCompleted), "", now,
				"job-1", string(domain.JobStatusInProgress), "worker-1",
			).
			WillReturnRows(jobRow("job-1", domain.JobStatusCompleted, "worker-1", now))

		job, err := store.Finish(context.Background(), "job-1", "worker-1", domain.JobStatusCompleted, "", now)
		require.NoError(t, err)

		assert.Equal(t, domain.JobStatusCompleted, job.Status)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("precondition failed", func(t *testing.T) {
		db, mock := newMockDB(t)
		store := NewJobStore(db, testLogger())

		mock.ExpectQuery("UPDATE jobs").
			WillReturnError(sql.ErrNoRows)

		_, err := store.Finish(context.Background(), "job-1", "worker-2", domain.JobStatusCompleted, "", now)
		assert.ErrorIs(t, err, domain.ErrStaleAssignment)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestJobStore_RequeueExpired(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	observed := now.Add(-time.Minute)

	t.Run("requeues the observed job", func(t *testing.T) {
		db, mock := newMockDB(t)
		store := NewJobStore(db, testLogger())

		mock.ExpectExec("UPDATE jobs").
			WithArgs(
				string(domain.JobStatusPending), "expired - retry 1/3", now.Add(2*time.Hour), now,
				"job-1", string(domain.JobStatusInProgress), observed,
			).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := store.RequeueExpired(context.Background(), "job-1", observed, "expired - retry 1/3", now.Add(2*time.Hour), now)
		require.NoError(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("deadline changed since the scan", func(t *testing.T) {
		db, mock := newMockDB(t)
		store := NewJobStore(db, testLogger())

		mock.ExpectExec("UPDATE jobs").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := store.RequeueExpired(context.Background(), "job-1", observed, "expired - retry 1/3", now.Add(2*time.Hour), now)
		assert.ErrorIs(t, err, domain.ErrStaleAssignment)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestJobStore_FailExpired(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	observed := now.Add(-time.Minute)

	t.Run("fails the observed job", func(t *testing.T) {
		db, mock := newMockDB(t)
		store := NewJobStore(db, testLogger())

		mock.ExpectExec("UPDATE jobs").
			WithArgs(
				string(domain.JobStatusFailed), "job failed after 3 retries", now,
				"job-1", string(domain.JobStatusInProgress), observed,
			).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := store.FailExpired(context.Background(), "job-1", observed, "job failed after 3 retries", now)
		require.NoError(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("job no longer matches", func(t *testing.T) {
		db, mock := newMockDB(t)
		store := NewJobStore(db, testLogger())

		mock.ExpectExec("UPDATE jobs").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := store.FailExpired(context.Background(), "job-1", observed, "job failed after 3 retries", now)
		assert.ErrorIs(t, err, domain.ErrStaleAssignment)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestJobStore_ListPending(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	db, mock := newMockDB(t)
	store := NewJobStore(db, testLogger())

	rows := jobRow("job-1", domain.JobStatusPending, nil, now)
	product := []byte(`{"product_id":"p-2","product_code":"SKU-2","product_name":"Gadget","price_cents":2999,"barcode":"4006381333948","store_id":"store-1"}`)
	rows.AddRow("job-2", "store-1", product, string(domain.JobStatusPending), nil, 0, 3, nil, now.Add(time.Second), nil, nil, now.Add(2*time.Hour), now.Add(time.Second))

	mock.ExpectQuery("SELECT (.+) FROM jobs").
		WithArgs(string(domain.JobStatusPending), 10).
		WillReturnRows(rows)

	jobs, err := store.ListPending(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "job-1", jobs[0].JobID)
	assert.Equal(t, "job-2", jobs[1].JobID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJobStore_CountByStatus(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewJobStore(db, testLogger())

	mock.ExpectQuery("SELECT COUNT").
		WithArgs(string(domain.JobStatusPending)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	count, err := store.CountByStatus(context.Background(), domain.JobStatusPending)
	require.NoError(t, err)
	assert.Equal(t, 7, count)
	require.NoError(t, mock.ExpectationsWereMet())
}
