// Package shared holds what every stored mirror record has in common.
package shared

import (
	"time"

	"github.com/google/uuid"
)

// BaseEntity is the row identity of a mirror record. Shops, connections,
// product and variant mirrors, media runs and webhook events embed it; the
// database row keys on ID.
type BaseEntity struct {
	ID        uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewBaseEntity stamps a fresh record.
func NewBaseEntity() BaseEntity {
	now := time.Now()
	return BaseEntity{ID: uuid.New(), CreatedAt: now, UpdatedAt: now}
}

// Touch marks the record as changed.
func (e *BaseEntity) Touch() {
	e.UpdatedAt = time.Now()
}

// Stored reports whether the record was ever assigned an id.
func (e *BaseEntity) Stored() bool {
	return e.ID != uuid.Nil
}
