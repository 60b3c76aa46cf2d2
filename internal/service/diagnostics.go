package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/credencehq/credence/internal/belief"
	"github.com/credencehq/credence/internal/domain"
	"github.com/credencehq/credence/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Verdict hints for a claim's uncertainty report.
const (
	VerdictUnfused   = "unfused"
	VerdictUndecided = "undecided"
	VerdictLeaning   = "leaning"
	VerdictConfident = "confident"
	VerdictContested = "contested"
)

const expiringSoonWindow = 24 * time.Hour

// DiagnosticsService builds per-claim uncertainty reports from the latest
// fusion: how much mass is still on ignorance, which hypothesis leads and
// by how much, and whether the evidence base has drifted since fusion.
type DiagnosticsService struct {
	claims   domain.ClaimStore
	evidence domain.EvidenceStore
	fusions  domain.FusionStore
	logger   *zap.Logger

	now func() time.Time
}

func NewDiagnosticsService(cs domain.ClaimStore, es domain.EvidenceStore, fs domain.FusionStore, logger *zap.Logger) *DiagnosticsService {
	return &DiagnosticsService{claims: cs, evidence: es, fusions: fs, logger: logger, now: time.Now}
}

// HypothesisInterval is the uncertainty interval of one singleton.
type HypothesisInterval struct {
	Hypothesis   string  `json:"hypothesis"`
	Belief       float64 `json:"belief"`
	Plausibility float64 `json:"plausibility"`
	Pignistic    float64 `json:"pignistic"`
}

// ClaimDiagnostics is the uncertainty report for one claim.
type ClaimDiagnostics struct {
	ClaimID        uuid.UUID            `json:"claim_id"`
	Status         domain.ClaimStatus   `json:"status"`
	EvidenceCount  int                  `json:"evidence_count"`
	StaleEvidence  int                  `json:"stale_evidence"`
	ExpiringSoon   int                  `json:"expiring_soon"`
	Fused          bool                 `json:"fused"`
	FusedAt        *time.Time           `json:"fused_at,omitempty"`
	Rule           string               `json:"rule,omitempty"`
	Conflict       float64              `json:"conflict"`
	HighConflict   bool                 `json:"high_conflict"`
	IgnoranceMass  float64              `json:"ignorance_mass"`
	Hypotheses     []HypothesisInterval `json:"hypotheses,omitempty"`
	Verdict        string               `json:"verdict"`
	Recommendation string               `json:"recommendation"`
}

func (s *DiagnosticsService) Report(ctx context.Context, tenantID uuid.UUID, claimID uuid.UUID) (*ClaimDiagnostics, error) {
	claim, err := s.claims.GetByID(ctx, claimID, tenantID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrClaimNotFound
		}
		return nil, err
	}

	evs, err := s.evidence.ListByClaim(ctx, claimID, tenantID)
	if err != nil {
		return nil, err
	}

	diag := &ClaimDiagnostics{
		ClaimID:       claimID,
		Status:        claim.Status,
		EvidenceCount: len(evs),
	}

	now := s.now()
	for _, ev := range evs {
		if ev.ExpiresAt != nil && ev.ExpiresAt.After(now) && ev.ExpiresAt.Before(now.Add(expiringSoonWindow)) {
			diag.ExpiringSoon++
		}
	}

	rec, err := s.fusions.Latest(ctx, claimID, tenantID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		diag.Verdict = VerdictUnfused
		diag.Recommendation = "no fusion recorded yet; run a fusion to establish a belief state"
		if len(evs) == 0 {
			diag.Recommendation = "no evidence attached; register sources and attach evidence first"
		}
		return diag, nil
	}

	diag.Fused = true
	diag.FusedAt = &rec.CreatedAt
	diag.Rule = rec.Rule
	diag.Conflict = rec.Conflict
	diag.HighConflict = rec.HighConflict

	for _, ev := range evs {
		if ev.CreatedAt.After(rec.CreatedAt) {
			diag.StaleEvidence++
		}
	}

	frame, err := belief.NewFrame(claim.Frame...)
	if err != nil {
		return nil, err
	}
	mass, err := belief.NewMass(frame, rec.Assignments)
	if err != nil {
		return nil, err
	}

	diag.IgnoranceMass = mass.Of(frame.Full())
	pignistic := mass.Pignistic()

	for _, elem := range frame.Elements() {
		h, err := frame.Subset(elem)
		if err != nil {
			return nil, err
		}
		bel, pl := mass.Interval(h)
		diag.Hypotheses = append(diag.Hypotheses, HypothesisInterval{
			Hypothesis:   elem,
			Belief:       bel,
			Plausibility: pl,
			Pignistic:    pignistic[elem],
		})
	}

	diag.Verdict, diag.Recommendation = verdict(diag)
	return diag, nil
}

// verdict classifies the belief state. The thresholds are advisory UI
// guidance, not part of the fusion math.
func verdict(d *ClaimDiagnostics) (string, string) {
	if d.HighConflict {
		return VerdictContested, "sources disagree strongly; review the evidence or switch to a conflict-preserving rule"
	}

	ranked := make([]HypothesisInterval, len(d.Hypotheses))
	copy(ranked, d.Hypotheses)
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].Belief > ranked[j].Belief })

	if len(ranked) == 0 || d.IgnoranceMass > 0.5 {
		return VerdictUndecided, "most mass is still on ignorance; attach more evidence"
	}

	top := ranked[0]
	lead := top.Belief
	if len(ranked) > 1 {
		lead = top.Belief - ranked[1].Belief
	}

	switch {
	case top.Belief >= 0.7 && lead >= 0.3:
		return VerdictConfident, fmt.Sprintf("belief in %q is %.2f; consider settling the claim", top.Hypothesis, top.Belief)
	case top.Belief >= 0.5:
		return VerdictLeaning, fmt.Sprintf("evidence leans toward %q (belief %.2f) but the interval is still wide", top.Hypothesis, top.Belief)
	default:
		return VerdictUndecided, "no hypothesis has majority belief; attach more evidence"
	}
}
