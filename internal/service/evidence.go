package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/credencehq/credence/internal/belief"
	"github.com/credencehq/credence/internal/domain"
	"github.com/credencehq/credence/internal/metrics"
	"github.com/credencehq/credence/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrEvidenceNotFound = errors.New("evidence not found")
	ErrClaimNotOpen     = errors.New("claim is not open for evidence")
)

// redundancyThreshold is the cosine similarity above which new evidence is
// flagged as redundant with existing evidence on the same claim.
const redundancyThreshold = 0.98

type EvidenceService struct {
	evidence domain.EvidenceStore
	claims   domain.ClaimStore
	sources  domain.SourceStore
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

func NewEvidenceService(es domain.EvidenceStore, cs domain.ClaimStore, ss domain.SourceStore, logger *zap.Logger) *EvidenceService {
	return &EvidenceService{evidence: es, claims: cs, sources: ss, logger: logger}
}

// SetMetrics wires the Prometheus collectors. Optional; nil means no-op.
func (s *EvidenceService) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// AttachInput is one mass assignment to record against a claim.
type AttachInput struct {
	ClaimID     uuid.UUID
	SourceID    uuid.UUID
	Assignments map[string]float64
	Reliability *float64
	ExpiresAt   *time.Time
}

// AttachResult carries the stored evidence plus a redundancy advisory:
// near-identical evidence already on the claim, which usually means the
// same underlying observation was reported twice.
type AttachResult struct {
	Evidence  *domain.Evidence `json:"evidence"`
	Redundant bool             `json:"redundant"`
	SimilarTo []uuid.UUID      `json:"similar_to,omitempty"`
}

// Attach validates the assignment against the claim's frame and stores it.
// Kernel validation failures surface unwrapped so callers can match the
// belief sentinels.
func (s *EvidenceService) Attach(ctx context.Context, tenantID uuid.UUID, in AttachInput) (*AttachResult, error) {
	claim, err := s.claims.GetByID(ctx, in.ClaimID, tenantID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrClaimNotFound
		}
		return nil, err
	}
	if claim.Status != domain.ClaimOpen {
		return nil, fmt.Errorf("%w: status is %s", ErrClaimNotOpen, claim.Status)
	}

	if _, err := s.sources.GetByID(ctx, in.SourceID, tenantID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrSourceNotFound
		}
		return nil, err
	}

	if in.Reliability != nil && (*in.Reliability < 0 || *in.Reliability > 1) {
		return nil, fmt.Errorf("%w: got %g", ErrInvalidReliability, *in.Reliability)
	}

	frame, err := belief.NewFrame(claim.Frame...)
	if err != nil {
		return nil, err
	}
	mass, err := belief.NewMass(frame, in.Assignments)
	if err != nil {
		return nil, err
	}

	ev := &domain.Evidence{
		ClaimID:     in.ClaimID,
		TenantID:    tenantID,
		SourceID:    in.SourceID,
		Assignments: mass.Assignments(),
		Reliability: in.Reliability,
		Vector:      mass.Vector(),
		ExpiresAt:   in.ExpiresAt,
	}

	result := &AttachResult{Evidence: ev}

	// Redundancy is an advisory, never a rejection; a lookup failure only
	// loses the advisory.
	similar, err := s.evidence.FindSimilar(ctx, in.ClaimID, tenantID, ev.Vector, redundancyThreshold)
	if err != nil {
		s.logger.Warn("redundancy check failed", zap.Error(err))
	} else if len(similar) > 0 {
		result.Redundant = true
		for _, sim := range similar {
			result.SimilarTo = append(result.SimilarTo, sim.ID)
		}
	}

	if err := s.evidence.Create(ctx, ev); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.EvidenceAttached.Inc()
	}
	s.logger.Info("evidence attached",
		zap.String("claim_id", in.ClaimID.String()),
		zap.String("evidence_id", ev.ID.String()),
		zap.String("source_id", in.SourceID.String()),
		zap.Bool("redundant", result.Redundant))

	return result, nil
}

func (s *EvidenceService) ListByClaim(ctx context.Context, claimID uuid.UUID, tenantID uuid.UUID) ([]domain.Evidence, error) {
	if _, err := s.claims.GetByID(ctx, claimID, tenantID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrClaimNotFound
		}
		return nil, err
	}
	return s.evidence.ListByClaim(ctx, claimID, tenantID)
}

func (s *EvidenceService) Delete(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) error {
	err := s.evidence.Delete(ctx, id, tenantID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrEvidenceNotFound
		}
		return err
	}
	return nil
}
