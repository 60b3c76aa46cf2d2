package domain

import (
	"time"

	"github.com/google/uuid"
)

// ClaimStatus is the lifecycle state of a claim.
type ClaimStatus string

const (
	ClaimOpen     ClaimStatus = "open"
	ClaimSettled  ClaimStatus = "settled"
	ClaimArchived ClaimStatus = "archived"
)

// ValidClaimStatus reports whether s names a known status.
func ValidClaimStatus(s string) bool {
	switch ClaimStatus(s) {
	case ClaimOpen, ClaimSettled, ClaimArchived:
		return true
	}
	return false
}

// Claim is a statement under verification. Its frame of discernment is
// fixed at creation: every piece of evidence attached to the claim must be
// a mass assignment over exactly this frame.
type Claim struct {
	ID          uuid.UUID   `json:"id"`
	TenantID    uuid.UUID   `json:"tenant_id,omitempty"`
	Statement   string      `json:"statement"`
	Frame       []string    `json:"frame"`
	DefaultRule string      `json:"default_rule"`
	Status      ClaimStatus `json:"status"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}
