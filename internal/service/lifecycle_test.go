package service

import (
	"context"
	"testing"
	"time"

	"github.com/credencehq/credence/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestRefusionServiceRunRefusesStaleClaims(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newFixture(t)
	ctx := context.Background()

	srcID := f.addSource(t, 1.0)
	claimID := f.addClaim(t, []string{"yes", "no"}, "dempster")
	f.addEvidence(t, claimID, srcID, map[string]float64{"yes": 0.6, "*": 0.4})

	claim, err := f.claims.GetByID(ctx, claimID, f.tenantID)
	require.NoError(t, err)
	f.claims.stale = []domain.Claim{*claim}

	svc := NewRefusionService(f.claims, f.fuser, zap.NewNop())
	svc.run(ctx)

	rec, err := f.fusions.Latest(ctx, claimID, f.tenantID)
	require.NoError(t, err)
	assert.Equal(t, "dempster", rec.Rule)
	assert.Equal(t, 1, rec.EvidenceCount)
}

func TestRefusionServiceToleratesFailingClaims(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newFixture(t)
	ctx := context.Background()

	srcID := f.addSource(t, 1.0)

	// First claim has no evidence and cannot fuse; the second must still be
	// re-fused in the same pass.
	emptyID := f.addClaim(t, []string{"yes", "no"}, "dempster")
	goodID := f.addClaim(t, []string{"yes", "no"}, "dempster")
	f.addEvidence(t, goodID, srcID, map[string]float64{"yes": 0.6, "*": 0.4})

	empty, err := f.claims.GetByID(ctx, emptyID, f.tenantID)
	require.NoError(t, err)
	good, err := f.claims.GetByID(ctx, goodID, f.tenantID)
	require.NoError(t, err)
	f.claims.stale = []domain.Claim{*empty, *good}

	svc := NewRefusionService(f.claims, f.fuser, zap.NewNop())
	svc.run(ctx)

	_, err = f.fusions.Latest(ctx, goodID, f.tenantID)
	require.NoError(t, err)
	_, err = f.fusions.Latest(ctx, emptyID, f.tenantID)
	require.Error(t, err)
}

func TestRefusionServiceStartStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newFixture(t)
	svc := NewRefusionService(f.claims, f.fuser, zap.NewNop())
	svc.SetInterval(10 * time.Millisecond)
	svc.Start()
	time.Sleep(50 * time.Millisecond)
	svc.Stop()
}

func TestExpirerServiceDeletesExpired(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newFixture(t)
	ctx := context.Background()

	srcID := f.addSource(t, 1.0)
	claimID := f.addClaim(t, []string{"yes", "no"}, "dempster")

	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)
	expired := &domain.Evidence{
		ClaimID:     claimID,
		TenantID:    f.tenantID,
		SourceID:    srcID,
		Assignments: map[string]float64{"yes": 1.0},
		ExpiresAt:   &past,
	}
	require.NoError(t, f.evidence.Create(ctx, expired))
	live := &domain.Evidence{
		ClaimID:     claimID,
		TenantID:    f.tenantID,
		SourceID:    srcID,
		Assignments: map[string]float64{"no": 1.0},
		ExpiresAt:   &future,
	}
	require.NoError(t, f.evidence.Create(ctx, live))

	svc := NewExpirerService(f.evidence, zap.NewNop())
	svc.run(ctx)

	remaining, err := f.evidence.ListByClaim(ctx, claimID, f.tenantID)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, live.ID, remaining[0].ID)
}

func TestExpirerServiceStartStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newFixture(t)
	svc := NewExpirerService(f.evidence, zap.NewNop())
	svc.SetInterval(10 * time.Millisecond)
	svc.Start()
	time.Sleep(50 * time.Millisecond)
	svc.Stop()
}
