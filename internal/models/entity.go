package models

import "time"

// Kind discriminates the two authoritative entity collections.
type Kind string

const (
	KindListing Kind = "listing"
	KindBuyer   Kind = "buyer"
)

// RawDoc is a loosely typed entity document as the admin UI stores it.
// Field values may be numbers, numeric strings with thousands separators,
// or arrays of either; the normalizer is responsible for coercion.
type RawDoc map[string]any

// EntityDoc pairs an entity id with its raw document.
type EntityDoc struct {
	ID   string
	Data RawDoc
}

// Entity is the persisted form of a raw listing or buyer document.
type Entity struct {
	Kind      Kind      `gorm:"primaryKey;size:16" json:"kind"`
	ID        string    `gorm:"primaryKey;size:64;column:id" json:"id"`
	Data      string    `gorm:"type:text" json:"data"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name
func (Entity) TableName() string {
	return "entities"
}
