package domain

import (
	"database/sql"
	"time"
)

// Worker is a registered remote agent that polls for pending jobs. WorkerID
// and Secret form its client credentials.
type Worker struct {
	WorkerID       string       `db:"worker_id"`
	Secret         string       `db:"secret"`
	Name           string       `db:"name"`
	Active         bool         `db:"active"`
	LastLoginAt    sql.NullTime `db:"last_login_at"`
	LoginExpiresAt sql.NullTime `db:"login_expires_at"`
	CreatedAt      time.Time    `db:"created_at"`
	UpdatedAt      time.Time    `db:"updated_at"`
}
