package domain

import (
	"context"

	"github.com/google/uuid"
)

type TenantStore interface {
	Create(ctx context.Context, t *Tenant) error
	GetByAPIKeyHash(ctx context.Context, apiKeyHash string) (*Tenant, error)
}

type SourceStore interface {
	Create(ctx context.Context, s *Source) error
	GetByID(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (*Source, error)
	List(ctx context.Context, tenantID uuid.UUID) ([]Source, error)
}

// ListClaimsOpts filters and pages claim listings.
type ListClaimsOpts struct {
	Status *ClaimStatus
	Limit  int
	Offset int
}

type ClaimStore interface {
	Create(ctx context.Context, c *Claim) error
	GetByID(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (*Claim, error)
	List(ctx context.Context, tenantID uuid.UUID, opts ListClaimsOpts) ([]Claim, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, tenantID uuid.UUID, status ClaimStatus) error
	Delete(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) error
	// ListStale returns open claims, across tenants, whose evidence changed
	// after their latest fusion (or that have evidence but no fusion yet).
	ListStale(ctx context.Context, limit int) ([]Claim, error)
}

type EvidenceStore interface {
	Create(ctx context.Context, e *Evidence) error
	GetByID(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (*Evidence, error)
	ListByClaim(ctx context.Context, claimID uuid.UUID, tenantID uuid.UUID) ([]Evidence, error)
	CountByClaim(ctx context.Context, claimID uuid.UUID, tenantID uuid.UUID) (int, error)
	Delete(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) error
	// FindSimilar returns same-claim evidence whose pignistic vector is
	// within the cosine-similarity threshold of the given one.
	FindSimilar(ctx context.Context, claimID uuid.UUID, tenantID uuid.UUID, vector []float32, threshold float32) ([]EvidenceWithScore, error)
	DeleteExpired(ctx context.Context) (int64, error)
}

type FusionStore interface {
	Create(ctx context.Context, rec *FusionRecord) error
	Latest(ctx context.Context, claimID uuid.UUID, tenantID uuid.UUID) (*FusionRecord, error)
	ListByClaim(ctx context.Context, claimID uuid.UUID, tenantID uuid.UUID, limit int) ([]FusionRecord, error)
}
