package service

import (
	"context"
	"testing"

	"github.com/credencehq/credence/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourceCreateAndGet(t *testing.T) {
	svc := NewSourceService(newMemSourceStore())
	ctx := context.Background()
	tenantID := uuid.New()

	src := &domain.Source{TenantID: tenantID, Name: "sensor-a", Reliability: 0.85}
	require.NoError(t, svc.Create(ctx, src))

	got, err := svc.GetByID(ctx, src.ID, tenantID)
	require.NoError(t, err)
	assert.Equal(t, "sensor-a", got.Name)
	assert.InDelta(t, 0.85, got.Reliability, 1e-9)

	_, err = svc.GetByID(ctx, src.ID, uuid.New())
	require.ErrorIs(t, err, ErrSourceNotFound)
}

func TestSourceCreateValidatesReliability(t *testing.T) {
	svc := NewSourceService(newMemSourceStore())
	ctx := context.Background()
	tenantID := uuid.New()

	for _, r := range []float64{-0.1, 1.1} {
		err := svc.Create(ctx, &domain.Source{TenantID: tenantID, Name: "bad", Reliability: r})
		require.ErrorIs(t, err, ErrInvalidReliability)
	}
}

func TestSourceCreateDuplicateName(t *testing.T) {
	svc := NewSourceService(newMemSourceStore())
	ctx := context.Background()
	tenantID := uuid.New()

	require.NoError(t, svc.Create(ctx, &domain.Source{TenantID: tenantID, Name: "sensor-a", Reliability: 0.8}))
	err := svc.Create(ctx, &domain.Source{TenantID: tenantID, Name: "sensor-a", Reliability: 0.9})
	require.ErrorIs(t, err, ErrSourceConflict)

	// Same name under another tenant is fine.
	require.NoError(t, svc.Create(ctx, &domain.Source{TenantID: uuid.New(), Name: "sensor-a", Reliability: 0.9}))
}
