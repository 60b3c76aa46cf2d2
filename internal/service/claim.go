package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/credencehq/credence/internal/belief"
	"github.com/credencehq/credence/internal/domain"
	"github.com/credencehq/credence/internal/policy"
	"github.com/credencehq/credence/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrClaimNotFound = errors.New("claim not found")
	ErrClaimArchived = errors.New("claim is archived")
	ErrInvalidStatus = errors.New("invalid claim status")
)

type ClaimService struct {
	store    domain.ClaimStore
	policies *policy.Provider
	logger   *zap.Logger
}

func NewClaimService(s domain.ClaimStore, policies *policy.Provider, logger *zap.Logger) *ClaimService {
	return &ClaimService{store: s, policies: policies, logger: logger}
}

// Create validates the frame through the kernel and persists the claim.
// The stored frame is the kernel's canonical form (trimmed, deduplicated,
// sorted); it is fixed for the life of the claim.
func (s *ClaimService) Create(ctx context.Context, c *domain.Claim) error {
	frame, err := belief.NewFrame(c.Frame...)
	if err != nil {
		return err
	}
	c.Frame = frame.Elements()

	if c.DefaultRule == "" {
		c.DefaultRule = s.policies.Current().DefaultRule
	}
	if !belief.ValidRule(c.DefaultRule) {
		return fmt.Errorf("%w: %q", belief.ErrUnknownRule, c.DefaultRule)
	}

	c.Status = domain.ClaimOpen
	if err := s.store.Create(ctx, c); err != nil {
		return err
	}

	s.logger.Info("claim created",
		zap.String("claim_id", c.ID.String()),
		zap.Int("frame_size", len(c.Frame)),
		zap.String("default_rule", c.DefaultRule))
	return nil
}

func (s *ClaimService) GetByID(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (*domain.Claim, error) {
	c, err := s.store.GetByID(ctx, id, tenantID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrClaimNotFound
		}
		return nil, err
	}
	return c, nil
}

func (s *ClaimService) List(ctx context.Context, tenantID uuid.UUID, opts domain.ListClaimsOpts) ([]domain.Claim, error) {
	return s.store.List(ctx, tenantID, opts)
}

// UpdateStatus moves a claim between open, settled and archived. Archived
// is terminal.
func (s *ClaimService) UpdateStatus(ctx context.Context, id uuid.UUID, tenantID uuid.UUID, status string) error {
	if !domain.ValidClaimStatus(status) {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	c, err := s.GetByID(ctx, id, tenantID)
	if err != nil {
		return err
	}
	if c.Status == domain.ClaimArchived {
		return ErrClaimArchived
	}

	if err := s.store.UpdateStatus(ctx, id, tenantID, domain.ClaimStatus(status)); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrClaimNotFound
		}
		return err
	}

	s.logger.Info("claim status changed",
		zap.String("claim_id", id.String()),
		zap.String("from", string(c.Status)),
		zap.String("to", status))
	return nil
}

func (s *ClaimService) Delete(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) error {
	err := s.store.Delete(ctx, id, tenantID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrClaimNotFound
		}
		return err
	}
	return nil
}
