package domain

import (
	"time"

	"github.com/google/uuid"
)

// Source is a registered evidence provider. Reliability is the default
// Shafer discount weight applied to its evidence; individual evidence rows
// may override it.
type Source struct {
	ID          uuid.UUID `json:"id"`
	TenantID    uuid.UUID `json:"tenant_id,omitempty"`
	Name        string    `json:"name"`
	Reliability float64   `json:"reliability"`
	Notes       string    `json:"notes,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
