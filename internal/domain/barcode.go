package domain

import (
	"database/sql"
	"time"
)

// Barcode is a single-use EAN-13 code consumed when a job's product is
// created. Once Used flips to true it never reverts.
type Barcode struct {
	Code          string         `db:"code"`
	Used          bool           `db:"used"`
	UsedByStoreID sql.NullString `db:"used_by_store_id"`
	UsedAt        sql.NullTime   `db:"used_at"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
}
