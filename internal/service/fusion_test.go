package service

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/credencehq/credence/internal/belief"
	"github.com/credencehq/credence/internal/domain"
	"github.com/credencehq/credence/internal/policy"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	claims   *memClaimStore
	sources  *memSourceStore
	evidence *memEvidenceStore
	fusions  *memFusionStore
	policies *policy.Provider

	fuser    *FusionService
	tenantID uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zap.NewNop()
	f := &fixture{
		claims:   newMemClaimStore(),
		sources:  newMemSourceStore(),
		evidence: newMemEvidenceStore(),
		fusions:  newMemFusionStore(),
		policies: policy.NewProvider("", logger),
		tenantID: uuid.New(),
	}
	f.fuser = NewFusionService(f.claims, f.evidence, f.fusions, f.sources, f.policies, logger)
	return f
}

func (f *fixture) addSource(t *testing.T, reliability float64) uuid.UUID {
	t.Helper()
	src := &domain.Source{TenantID: f.tenantID, Name: uuid.NewString(), Reliability: reliability}
	require.NoError(t, f.sources.Create(context.Background(), src))
	return src.ID
}

func (f *fixture) addClaim(t *testing.T, frame []string, rule string) uuid.UUID {
	t.Helper()
	c := &domain.Claim{
		TenantID:    f.tenantID,
		Statement:   "test claim",
		Frame:       frame,
		DefaultRule: rule,
		Status:      domain.ClaimOpen,
	}
	require.NoError(t, f.claims.Create(context.Background(), c))
	return c.ID
}

func (f *fixture) addEvidence(t *testing.T, claimID, sourceID uuid.UUID, assignments map[string]float64) uuid.UUID {
	t.Helper()
	ev := &domain.Evidence{
		ClaimID:     claimID,
		TenantID:    f.tenantID,
		SourceID:    sourceID,
		Assignments: assignments,
	}
	require.NoError(t, f.evidence.Create(context.Background(), ev))
	return ev.ID
}

func TestFuseClaimPersistsRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	srcID := f.addSource(t, 1.0)
	claimID := f.addClaim(t, []string{"yes", "no"}, "dempster")
	f.addEvidence(t, claimID, srcID, map[string]float64{"yes": 0.6, "*": 0.4})
	f.addEvidence(t, claimID, srcID, map[string]float64{"yes": 0.5, "*": 0.5})

	rec, err := f.fuser.FuseClaim(ctx, f.tenantID, claimID, "")
	require.NoError(t, err)

	assert.Equal(t, "dempster", rec.Rule)
	assert.Equal(t, 2, rec.EvidenceCount)
	assert.Len(t, rec.EvidenceIDs, 2)
	assert.False(t, rec.HighConflict)
	assert.InDelta(t, 0.0, rec.Conflict, 1e-9)
	// No opposing focal sets, so the conjunctive product keeps everything:
	// m(yes) = 0.6*0.5 + 0.6*0.5 + 0.4*0.5 = 0.8, m(Θ) = 0.2.
	assert.InDelta(t, 0.8, rec.Assignments["yes"], 1e-3)
	assert.InDelta(t, 0.2, rec.Assignments["*"], 1e-3)

	latest, err := f.fusions.Latest(ctx, claimID, f.tenantID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, latest.ID)
}

func TestFuseClaimDiscountsBySourceReliability(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	srcID := f.addSource(t, 0.5)
	claimID := f.addClaim(t, []string{"yes", "no"}, "dempster")
	f.addEvidence(t, claimID, srcID, map[string]float64{"yes": 1.0})

	rec, err := f.fuser.FuseClaim(ctx, f.tenantID, claimID, "")
	require.NoError(t, err)

	// Fresh evidence carries no meaningful decay, so the discount is the
	// source reliability: half the mass moves to Θ.
	assert.InDelta(t, 0.5, rec.Assignments["yes"], 1e-3)
	assert.InDelta(t, 0.5, rec.Assignments["*"], 1e-3)
}

func TestFuseClaimEvidenceReliabilityOverride(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	srcID := f.addSource(t, 1.0)
	claimID := f.addClaim(t, []string{"yes", "no"}, "dempster")

	override := 0.8
	ev := &domain.Evidence{
		ClaimID:     claimID,
		TenantID:    f.tenantID,
		SourceID:    srcID,
		Assignments: map[string]float64{"yes": 1.0},
		Reliability: &override,
	}
	require.NoError(t, f.evidence.Create(ctx, ev))

	rec, err := f.fuser.FuseClaim(ctx, f.tenantID, claimID, "")
	require.NoError(t, err)
	assert.InDelta(t, 0.8, rec.Assignments["yes"], 1e-3)
	assert.InDelta(t, 0.2, rec.Assignments["*"], 1e-3)
}

func TestFuseClaimAgeDecay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	srcID := f.addSource(t, 1.0)
	claimID := f.addClaim(t, []string{"yes", "no"}, "dempster")

	created := time.Now().Add(-500 * time.Hour)
	ev := &domain.Evidence{
		ClaimID:     claimID,
		TenantID:    f.tenantID,
		SourceID:    srcID,
		Assignments: map[string]float64{"yes": 1.0},
		CreatedAt:   created,
	}
	require.NoError(t, f.evidence.Create(ctx, ev))
	f.fuser.now = func() time.Time { return created.Add(500 * time.Hour) }

	rec, err := f.fuser.FuseClaim(ctx, f.tenantID, claimID, "")
	require.NoError(t, err)

	// λ = 0.002/hour over 500 hours leaves e^-1 of the reliability.
	want := math.Exp(-1)
	assert.InDelta(t, want, rec.Assignments["yes"], 1e-3)
	assert.InDelta(t, 1-want, rec.Assignments["*"], 1e-3)
}

func TestFuseClaimReliabilityFloor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	srcID := f.addSource(t, 1.0)
	claimID := f.addClaim(t, []string{"yes", "no"}, "dempster")

	created := time.Now().Add(-100000 * time.Hour)
	ev := &domain.Evidence{
		ClaimID:     claimID,
		TenantID:    f.tenantID,
		SourceID:    srcID,
		Assignments: map[string]float64{"yes": 1.0},
		CreatedAt:   created,
	}
	require.NoError(t, f.evidence.Create(ctx, ev))

	rec, err := f.fuser.FuseClaim(ctx, f.tenantID, claimID, "")
	require.NoError(t, err)

	// Decay would push reliability to ~0; the policy floor keeps 0.1.
	assert.InDelta(t, 0.1, rec.Assignments["yes"], 1e-3)
	assert.InDelta(t, 0.9, rec.Assignments["*"], 1e-3)
}

func TestFuseClaimTotalConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	srcID := f.addSource(t, 1.0)
	claimID := f.addClaim(t, []string{"yes", "no"}, "dempster")
	f.addEvidence(t, claimID, srcID, map[string]float64{"yes": 1.0})
	f.addEvidence(t, claimID, srcID, map[string]float64{"no": 1.0})

	_, err := f.fuser.FuseClaim(ctx, f.tenantID, claimID, "")
	require.ErrorIs(t, err, belief.ErrTotalConflict)

	// A failed fusion must not leave an audit row.
	_, err = f.fusions.Latest(ctx, claimID, f.tenantID)
	require.Error(t, err)
}

func TestFuseClaimYagerAbsorbsTotalConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	srcID := f.addSource(t, 1.0)
	claimID := f.addClaim(t, []string{"yes", "no"}, "dempster")
	f.addEvidence(t, claimID, srcID, map[string]float64{"yes": 1.0})
	f.addEvidence(t, claimID, srcID, map[string]float64{"no": 1.0})

	rec, err := f.fuser.FuseClaim(ctx, f.tenantID, claimID, "yager")
	require.NoError(t, err)

	assert.Equal(t, "yager", rec.Rule)
	assert.InDelta(t, 1.0, rec.Conflict, 1e-9)
	assert.True(t, rec.HighConflict)
	assert.InDelta(t, 1.0, rec.Assignments["*"], 1e-9)
}

func TestFuseClaimRuleResolution(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	srcID := f.addSource(t, 1.0)
	claimID := f.addClaim(t, []string{"yes", "no"}, "yager")
	f.addEvidence(t, claimID, srcID, map[string]float64{"yes": 0.6, "*": 0.4})

	rec, err := f.fuser.FuseClaim(ctx, f.tenantID, claimID, "")
	require.NoError(t, err)
	assert.Equal(t, "yager", rec.Rule, "claim default should win when no override is given")

	rec, err = f.fuser.FuseClaim(ctx, f.tenantID, claimID, "dubois_prade")
	require.NoError(t, err)
	assert.Equal(t, "dubois_prade", rec.Rule, "request override should win over claim default")

	_, err = f.fuser.FuseClaim(ctx, f.tenantID, claimID, "majority_vote")
	require.ErrorIs(t, err, belief.ErrUnknownRule)
}

func TestFuseClaimNoEvidence(t *testing.T) {
	f := newFixture(t)
	claimID := f.addClaim(t, []string{"yes", "no"}, "dempster")

	_, err := f.fuser.FuseClaim(context.Background(), f.tenantID, claimID, "")
	require.ErrorIs(t, err, belief.ErrEmptyEvidenceSet)
}

func TestFuseClaimNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.fuser.FuseClaim(context.Background(), f.tenantID, uuid.New(), "")
	require.ErrorIs(t, err, ErrClaimNotFound)
}

func TestFuseClaimWrongTenant(t *testing.T) {
	f := newFixture(t)
	srcID := f.addSource(t, 1.0)
	claimID := f.addClaim(t, []string{"yes", "no"}, "dempster")
	f.addEvidence(t, claimID, srcID, map[string]float64{"yes": 1.0})

	_, err := f.fuser.FuseClaim(context.Background(), uuid.New(), claimID, "")
	require.ErrorIs(t, err, ErrClaimNotFound)
}

func TestPreviewDoesNotPersist(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	srcID := f.addSource(t, 1.0)
	claimID := f.addClaim(t, []string{"yes", "no"}, "dempster")
	f.addEvidence(t, claimID, srcID, map[string]float64{"yes": 0.6, "*": 0.4})

	out, err := f.fuser.Preview(ctx, f.tenantID, claimID, "")
	require.NoError(t, err)
	assert.Equal(t, 1, out.EvidenceCount)

	_, err = f.fusions.Latest(ctx, claimID, f.tenantID)
	require.Error(t, err, "preview must not write a fusion record")
}

func TestAdHocFusion(t *testing.T) {
	f := newFixture(t)

	out, err := f.fuser.AdHoc(AdHocRequest{
		Frame: []string{"true", "false"},
		Masses: []map[string]float64{
			{"true": 0.7, "*": 0.3},
			{"true": 0.5, "false": 0.2, "*": 0.3},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "dempster", out.Rule)
	assert.Equal(t, 2, out.EvidenceCount)
	assert.Empty(t, out.EvidenceIDs)
	// K = 0.7*0.2 = 0.14; normalized m(true) = (0.35+0.21+0.15)/0.86.
	assert.InDelta(t, 0.14, out.Conflict, 1e-9)
	assert.InDelta(t, 0.71/0.86, out.Assignments["true"], 1e-3)

	_, err = f.fuser.AdHoc(AdHocRequest{
		Frame:  []string{"true", "false"},
		Masses: []map[string]float64{{"true": 1.0}},
		Rule:   "bogus",
	})
	require.ErrorIs(t, err, belief.ErrUnknownRule)

	_, err = f.fuser.AdHoc(AdHocRequest{
		Frame:  []string{"true", "false"},
		Masses: []map[string]float64{{"true": 0.5}},
	})
	require.ErrorIs(t, err, belief.ErrUnnormalizedMass)
}

func TestBeliefAt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	srcID := f.addSource(t, 1.0)
	claimID := f.addClaim(t, []string{"yes", "no"}, "dempster")

	_, err := f.fuser.BeliefAt(ctx, f.tenantID, claimID, nil)
	require.ErrorIs(t, err, ErrNotFused)

	f.addEvidence(t, claimID, srcID, map[string]float64{"yes": 0.6, "*": 0.4})
	_, err = f.fuser.FuseClaim(ctx, f.tenantID, claimID, "")
	require.NoError(t, err)

	report, err := f.fuser.BeliefAt(ctx, f.tenantID, claimID, []string{"yes"})
	require.NoError(t, err)
	require.NotNil(t, report.Belief)
	require.NotNil(t, report.Plausibility)
	assert.InDelta(t, 0.6, *report.Belief, 1e-3)
	assert.InDelta(t, 1.0, *report.Plausibility, 1e-3)
	assert.LessOrEqual(t, *report.Belief, *report.Plausibility)
}

func TestHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	srcID := f.addSource(t, 1.0)
	claimID := f.addClaim(t, []string{"yes", "no"}, "dempster")
	f.addEvidence(t, claimID, srcID, map[string]float64{"yes": 0.6, "*": 0.4})

	for i := 0; i < 3; i++ {
		_, err := f.fuser.FuseClaim(ctx, f.tenantID, claimID, "")
		require.NoError(t, err)
	}

	all, err := f.fuser.History(ctx, f.tenantID, claimID, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	for i := 1; i < len(all); i++ {
		assert.True(t, !all[i-1].CreatedAt.Before(all[i].CreatedAt), "history should be newest first")
	}

	limited, err := f.fuser.History(ctx, f.tenantID, claimID, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	_, err = f.fuser.History(ctx, f.tenantID, uuid.New(), 0)
	require.ErrorIs(t, err, ErrClaimNotFound)
}
