package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/credencehq/credence/internal/domain"
	"github.com/credencehq/credence/internal/store"
	"github.com/google/uuid"
)

var (
	ErrSourceNotFound    = errors.New("source not found")
	ErrSourceConflict    = errors.New("source with this name already exists")
	ErrInvalidReliability = errors.New("reliability must be in [0,1]")
)

type SourceService struct {
	store domain.SourceStore
}

func NewSourceService(s domain.SourceStore) *SourceService {
	return &SourceService{store: s}
}

func (s *SourceService) Create(ctx context.Context, src *domain.Source) error {
	if src.Reliability < 0 || src.Reliability > 1 {
		return fmt.Errorf("%w: got %g", ErrInvalidReliability, src.Reliability)
	}

	err := s.store.Create(ctx, src)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return ErrSourceConflict
		}
		return err
	}
	return nil
}

func (s *SourceService) GetByID(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (*domain.Source, error) {
	src, err := s.store.GetByID(ctx, id, tenantID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrSourceNotFound
		}
		return nil, err
	}
	return src, nil
}

func (s *SourceService) List(ctx context.Context, tenantID uuid.UUID) ([]domain.Source, error) {
	return s.store.List(ctx, tenantID)
}
