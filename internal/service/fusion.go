package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/credencehq/credence/internal/belief"
	"github.com/credencehq/credence/internal/domain"
	"github.com/credencehq/credence/internal/metrics"
	"github.com/credencehq/credence/internal/policy"
	"github.com/credencehq/credence/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrNotFused is returned when a belief query hits a claim that has never
// been fused.
var ErrNotFused = errors.New("claim has no fusion yet")

// FusionService is the conflict-policy layer around the belief kernel: it
// assembles discounted masses from stored evidence, runs the combination
// under the active policy thresholds, persists the audit record, and
// surfaces high-conflict advisories.
type FusionService struct {
	claims   domain.ClaimStore
	evidence domain.EvidenceStore
	fusions  domain.FusionStore
	sources  domain.SourceStore
	policies *policy.Provider
	logger   *zap.Logger
	metrics  *metrics.Metrics

	now func() time.Time
}

func NewFusionService(cs domain.ClaimStore, es domain.EvidenceStore, fs domain.FusionStore, ss domain.SourceStore, policies *policy.Provider, logger *zap.Logger) *FusionService {
	return &FusionService{
		claims:   cs,
		evidence: es,
		fusions:  fs,
		sources:  ss,
		policies: policies,
		logger:   logger,
		now:      time.Now,
	}
}

// SetMetrics wires the Prometheus collectors. Optional; nil means no-op.
func (s *FusionService) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// FusionOutcome is a fusion that has not been persisted.
type FusionOutcome struct {
	Rule          string             `json:"rule"`
	Conflict      float64            `json:"conflict"`
	HighConflict  bool               `json:"high_conflict"`
	Assignments   map[string]float64 `json:"assignments"`
	EvidenceCount int                `json:"evidence_count"`
	EvidenceIDs   []uuid.UUID        `json:"evidence_ids,omitempty"`
}

// FuseClaim combines all evidence on a claim and records the result. An
// empty ruleOverride falls back to the claim's default rule, then to the
// policy's.
func (s *FusionService) FuseClaim(ctx context.Context, tenantID uuid.UUID, claimID uuid.UUID, ruleOverride string) (*domain.FusionRecord, error) {
	outcome, err := s.fuse(ctx, tenantID, claimID, ruleOverride)
	if err != nil {
		return nil, err
	}

	rec := &domain.FusionRecord{
		ClaimID:       claimID,
		TenantID:      tenantID,
		Rule:          outcome.Rule,
		Conflict:      outcome.Conflict,
		HighConflict:  outcome.HighConflict,
		Assignments:   outcome.Assignments,
		EvidenceCount: outcome.EvidenceCount,
		EvidenceIDs:   outcome.EvidenceIDs,
	}
	if err := s.fusions.Create(ctx, rec); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.ObserveFusion(rec.Rule, rec.Conflict, rec.HighConflict)
	}
	if rec.HighConflict {
		s.logger.Warn("high conflict between sources",
			zap.String("claim_id", claimID.String()),
			zap.Float64("conflict", rec.Conflict),
			zap.String("rule", rec.Rule))
	}
	s.logger.Info("claim fused",
		zap.String("claim_id", claimID.String()),
		zap.String("rule", rec.Rule),
		zap.Float64("conflict", rec.Conflict),
		zap.Int("evidence_count", rec.EvidenceCount))

	return rec, nil
}

// Preview runs the same combination as FuseClaim without persisting it.
func (s *FusionService) Preview(ctx context.Context, tenantID uuid.UUID, claimID uuid.UUID, ruleOverride string) (*FusionOutcome, error) {
	return s.fuse(ctx, tenantID, claimID, ruleOverride)
}

func (s *FusionService) fuse(ctx context.Context, tenantID uuid.UUID, claimID uuid.UUID, ruleOverride string) (*FusionOutcome, error) {
	claim, err := s.claims.GetByID(ctx, claimID, tenantID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrClaimNotFound
		}
		return nil, err
	}

	pol := s.policies.Current()
	rule, err := resolveRule(ruleOverride, claim.DefaultRule, pol.DefaultRule)
	if err != nil {
		return nil, err
	}

	evs, err := s.evidence.ListByClaim(ctx, claimID, tenantID)
	if err != nil {
		return nil, err
	}

	frame, err := belief.NewFrame(claim.Frame...)
	if err != nil {
		return nil, err
	}

	reliabilities := make(map[uuid.UUID]float64)
	masses := make([]belief.Mass, 0, len(evs))
	ids := make([]uuid.UUID, 0, len(evs))
	for _, ev := range evs {
		mass, err := belief.NewMassWithEpsilon(frame, ev.Assignments, pol.Epsilon)
		if err != nil {
			return nil, fmt.Errorf("evidence %s: %w", ev.ID, err)
		}

		r, err := s.effectiveReliability(ctx, tenantID, &ev, pol, reliabilities)
		if err != nil {
			return nil, err
		}
		discounted, err := belief.Discount(mass, r)
		if err != nil {
			return nil, fmt.Errorf("evidence %s: %w", ev.ID, err)
		}

		masses = append(masses, discounted)
		ids = append(ids, ev.ID)
	}

	engine := pol.Engine(rule)
	res, err := engine.CombineAll(masses, rule)
	if err != nil {
		if s.metrics != nil {
			s.metrics.ObserveFusionError(string(rule))
		}
		return nil, err
	}

	return &FusionOutcome{
		Rule:          string(rule),
		Conflict:      res.Conflict,
		HighConflict:  res.HighConflict,
		Assignments:   res.Mass.Assignments(),
		EvidenceCount: len(evs),
		EvidenceIDs:   ids,
	}, nil
}

// effectiveReliability is the source reliability (or per-evidence
// override) decayed exponentially by evidence age and floored by policy.
// Decay happens at read time; stored evidence is never mutated.
func (s *FusionService) effectiveReliability(ctx context.Context, tenantID uuid.UUID, ev *domain.Evidence, pol policy.Policy, cache map[uuid.UUID]float64) (float64, error) {
	base, ok := cache[ev.SourceID]
	if !ok {
		src, err := s.sources.GetByID(ctx, ev.SourceID, tenantID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return 0, ErrSourceNotFound
			}
			return 0, err
		}
		base = src.Reliability
		cache[ev.SourceID] = base
	}
	if ev.Reliability != nil {
		base = *ev.Reliability
	}

	ageHours := s.now().Sub(ev.CreatedAt).Hours()
	if ageHours < 0 {
		ageHours = 0
	}
	r := base * math.Exp(-pol.DecayLambda*ageHours)
	if r < pol.ReliabilityFloor {
		r = pol.ReliabilityFloor
	}
	return r, nil
}

// AdHocRequest is a stateless fusion over caller-supplied masses: the
// kernel exposed over the API without touching storage.
type AdHocRequest struct {
	Frame   []string             `json:"frame"`
	Masses  []map[string]float64 `json:"masses"`
	Rule    string               `json:"rule,omitempty"`
	Epsilon float64              `json:"epsilon,omitempty"`
}

func (s *FusionService) AdHoc(req AdHocRequest) (*FusionOutcome, error) {
	pol := s.policies.Current()
	rule, err := resolveRule(req.Rule, "", pol.DefaultRule)
	if err != nil {
		return nil, err
	}

	frame, err := belief.NewFrame(req.Frame...)
	if err != nil {
		return nil, err
	}

	epsilon := req.Epsilon
	if epsilon <= 0 {
		epsilon = pol.Epsilon
	}

	masses := make([]belief.Mass, 0, len(req.Masses))
	for i, assignments := range req.Masses {
		m, err := belief.NewMassWithEpsilon(frame, assignments, epsilon)
		if err != nil {
			return nil, fmt.Errorf("mass %d: %w", i, err)
		}
		masses = append(masses, m)
	}

	engine := pol.Engine(rule)
	engine.Epsilon = epsilon
	res, err := engine.CombineAll(masses, rule)
	if err != nil {
		return nil, err
	}

	return &FusionOutcome{
		Rule:          string(rule),
		Conflict:      res.Conflict,
		HighConflict:  res.HighConflict,
		Assignments:   res.Mass.Assignments(),
		EvidenceCount: len(masses),
	}, nil
}

// BeliefReport answers "what does the latest fusion say", optionally with
// the Bel/Pl interval of one hypothesis set.
type BeliefReport struct {
	ClaimID       uuid.UUID          `json:"claim_id"`
	Rule          string             `json:"rule"`
	Conflict      float64            `json:"conflict"`
	HighConflict  bool               `json:"high_conflict"`
	Assignments   map[string]float64 `json:"assignments"`
	EvidenceCount int                `json:"evidence_count"`
	FusedAt       time.Time          `json:"fused_at"`
	Hypothesis    []string           `json:"hypothesis,omitempty"`
	Belief        *float64           `json:"belief,omitempty"`
	Plausibility  *float64           `json:"plausibility,omitempty"`
}

func (s *FusionService) BeliefAt(ctx context.Context, tenantID uuid.UUID, claimID uuid.UUID, hypothesis []string) (*BeliefReport, error) {
	claim, err := s.claims.GetByID(ctx, claimID, tenantID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrClaimNotFound
		}
		return nil, err
	}

	rec, err := s.fusions.Latest(ctx, claimID, tenantID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFused
		}
		return nil, err
	}

	report := &BeliefReport{
		ClaimID:       claimID,
		Rule:          rec.Rule,
		Conflict:      rec.Conflict,
		HighConflict:  rec.HighConflict,
		Assignments:   rec.Assignments,
		EvidenceCount: rec.EvidenceCount,
		FusedAt:       rec.CreatedAt,
	}

	if len(hypothesis) > 0 {
		frame, err := belief.NewFrame(claim.Frame...)
		if err != nil {
			return nil, err
		}
		mass, err := belief.NewMass(frame, rec.Assignments)
		if err != nil {
			return nil, err
		}
		h, err := frame.Subset(hypothesis...)
		if err != nil {
			return nil, err
		}
		bel, pl := mass.Interval(h)
		report.Hypothesis = h.Elements()
		report.Belief = &bel
		report.Plausibility = &pl
	}

	return report, nil
}

// History returns the fusion audit trail, newest first.
func (s *FusionService) History(ctx context.Context, tenantID uuid.UUID, claimID uuid.UUID, limit int) ([]domain.FusionRecord, error) {
	if _, err := s.claims.GetByID(ctx, claimID, tenantID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrClaimNotFound
		}
		return nil, err
	}
	return s.fusions.ListByClaim(ctx, claimID, tenantID, limit)
}

func resolveRule(override, claimDefault, policyDefault string) (belief.Rule, error) {
	rule := override
	if rule == "" {
		rule = claimDefault
	}
	if rule == "" {
		rule = policyDefault
	}
	if !belief.ValidRule(rule) {
		return "", fmt.Errorf("%w: %q", belief.ErrUnknownRule, rule)
	}
	return belief.Rule(rule), nil
}
