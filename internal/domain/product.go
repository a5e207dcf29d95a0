package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Product is a catalog entry created together with a job. Each product
// consumes exactly one barcode from the pool.
type Product struct {
	ProductID   string    `db:"product_id" json:"product_id"`
	ProductCode string    `db:"product_code" json:"product_code"`
	ProductName string    `db:"product_name" json:"product_name"`
	PriceCents  int64     `db:"price_cents" json:"price_cents"`
	Barcode     string    `db:"barcode" json:"barcode"`
	StoreID     string    `db:"store_id" json:"store_id"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// ProductSnapshot is the payload embedded in a job record. It is frozen at
// creation time; later product edits do not affect dispatched jobs.
type ProductSnapshot struct {
	ProductID   string `json:"product_id"`
	ProductCode string `json:"product_code"`
	ProductName string `json:"product_name"`
	PriceCents  int64  `json:"price_cents"`
	Barcode     string `json:"barcode"`
	StoreID     string `json:"store_id"`
}

// Snapshot freezes the payload fields of a product.
func (p *Product) Snapshot() ProductSnapshot {
	return ProductSnapshot{
		ProductID:   p.ProductID,
		ProductCode: p.ProductCode,
		ProductName: p.ProductName,
		PriceCents:  p.PriceCents,
		Barcode:     p.Barcode,
		StoreID:     p.StoreID,
	}
}

// Value implements driver.Valuer so the snapshot persists as a JSONB column.
func (s ProductSnapshot) Value() (driver.Value, error) {
	return json.Marshal(s)
}

// Scan implements sql.Scanner.
func (s *ProductSnapshot) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	case nil:
		*s = ProductSnapshot{}
		return nil
	default:
		return fmt.Errorf("cannot scan %T into ProductSnapshot", src)
	}
}
