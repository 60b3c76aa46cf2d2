package domain

import (
	"time"

	"github.com/google/uuid"
)

// FusionRecord is one immutable audit row per fusion run. The latest row
// for a claim is its current belief state.
type FusionRecord struct {
	ID            uuid.UUID          `json:"id"`
	ClaimID       uuid.UUID          `json:"claim_id"`
	TenantID      uuid.UUID          `json:"tenant_id,omitempty"`
	Rule          string             `json:"rule"`
	Conflict      float64            `json:"conflict"`
	HighConflict  bool               `json:"high_conflict"`
	Assignments   map[string]float64 `json:"assignments"`
	EvidenceCount int                `json:"evidence_count"`
	EvidenceIDs   []uuid.UUID        `json:"evidence_ids,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
}
