package domain

import (
	"database/sql"
	"time"
)

// DefaultMaxRetries is applied to jobs created without an explicit retry budget.
const DefaultMaxRetries = 3

// Job is a unit of work dispatched to exactly one worker at a time.
//
// Invariants:
//   - AssignedWorker is non-null iff Status == in_progress
//   - StartedAt is set once the job has been assigned at least once
//   - RetryCount never exceeds MaxRetries
//   - ExpiresAt is set while the job is non-terminal
type Job struct {
	JobID          string          `db:"job_id"`
	StoreID        string          `db:"store_id"`
	Product        ProductSnapshot `db:"product"`
	Status         JobStatus       `db:"status"`
	AssignedWorker sql.NullString  `db:"assigned_worker"`
	RetryCount     int             `db:"retry_count"`
	MaxRetries     int             `db:"max_retries"`
	ErrorMessage   sql.NullString  `db:"error_message"`
	CreatedAt      time.Time       `db:"created_at"`
	StartedAt      sql.NullTime    `db:"started_at"`
	CompletedAt    sql.NullTime    `db:"completed_at"`
	ExpiresAt      sql.NullTime    `db:"expires_at"`
	UpdatedAt      time.Time       `db:"updated_at"`
}

// Outcome is a worker's reported result for an in-progress job.
type Outcome struct {
	Success      bool
	ErrorMessage string
}

// TerminalStatus maps an outcome to the job's terminal state.
func (o Outcome) TerminalStatus() JobStatus {
	if o.Success {
		return JobStatusCompleted
	}
	return JobStatusFailed
}
