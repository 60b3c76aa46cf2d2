package domain

import (
	"time"

	"github.com/google/uuid"
)

// Evidence is one mass assignment attached to a claim by a source. The
// assignment is stored in wire form (focal-set label → mass) and is
// validated against the claim frame before it is accepted. Vector holds
// the pignistic probabilities in frame element order and is used for
// redundancy detection, not for fusion.
type Evidence struct {
	ID          uuid.UUID          `json:"id"`
	ClaimID     uuid.UUID          `json:"claim_id"`
	TenantID    uuid.UUID          `json:"tenant_id,omitempty"`
	SourceID    uuid.UUID          `json:"source_id"`
	Assignments map[string]float64 `json:"assignments"`
	Reliability *float64           `json:"reliability,omitempty"`
	Vector      []float32          `json:"-"`
	ExpiresAt   *time.Time         `json:"expires_at,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// EvidenceWithScore pairs evidence with a cosine similarity score from the
// vector column.
type EvidenceWithScore struct {
	Evidence
	Score float32 `json:"score"`
}
