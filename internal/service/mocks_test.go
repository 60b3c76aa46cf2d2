package service

// In-memory store implementations shared by the service tests.

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/credencehq/credence/internal/domain"
	"github.com/credencehq/credence/internal/store"
	"github.com/google/uuid"
)

type memClaimStore struct {
	mu     sync.Mutex
	claims map[uuid.UUID]domain.Claim

	// stale is returned verbatim from ListStale; tests set it directly.
	stale []domain.Claim
}

func newMemClaimStore() *memClaimStore {
	return &memClaimStore{claims: make(map[uuid.UUID]domain.Claim)}
}

func (m *memClaimStore) Create(ctx context.Context, c *domain.Claim) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID = uuid.New()
	now := time.Now()
	c.CreatedAt = now
	c.UpdatedAt = now
	m.claims[c.ID] = *c
	return nil
}

func (m *memClaimStore) GetByID(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (*domain.Claim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.claims[id]
	if !ok || c.TenantID != tenantID {
		return nil, store.ErrNotFound
	}
	out := c
	return &out, nil
}

func (m *memClaimStore) List(ctx context.Context, tenantID uuid.UUID, opts domain.ListClaimsOpts) ([]domain.Claim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Claim
	for _, c := range m.claims {
		if c.TenantID != tenantID {
			continue
		}
		if opts.Status != nil && c.Status != *opts.Status {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memClaimStore) UpdateStatus(ctx context.Context, id uuid.UUID, tenantID uuid.UUID, status domain.ClaimStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.claims[id]
	if !ok || c.TenantID != tenantID {
		return store.ErrNotFound
	}
	c.Status = status
	c.UpdatedAt = time.Now()
	m.claims[id] = c
	return nil
}

func (m *memClaimStore) Delete(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.claims[id]
	if !ok || c.TenantID != tenantID {
		return store.ErrNotFound
	}
	delete(m.claims, id)
	return nil
}

func (m *memClaimStore) ListStale(ctx context.Context, limit int) ([]domain.Claim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit > 0 && len(m.stale) > limit {
		return m.stale[:limit], nil
	}
	return m.stale, nil
}

type memSourceStore struct {
	mu      sync.Mutex
	sources map[uuid.UUID]domain.Source
}

func newMemSourceStore() *memSourceStore {
	return &memSourceStore{sources: make(map[uuid.UUID]domain.Source)}
}

func (m *memSourceStore) Create(ctx context.Context, s *domain.Source) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.sources {
		if existing.TenantID == s.TenantID && existing.Name == s.Name {
			return store.ErrConflict
		}
	}
	s.ID = uuid.New()
	now := time.Now()
	s.CreatedAt = now
	s.UpdatedAt = now
	m.sources[s.ID] = *s
	return nil
}

func (m *memSourceStore) GetByID(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (*domain.Source, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sources[id]
	if !ok || s.TenantID != tenantID {
		return nil, store.ErrNotFound
	}
	out := s
	return &out, nil
}

func (m *memSourceStore) List(ctx context.Context, tenantID uuid.UUID) ([]domain.Source, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Source
	for _, s := range m.sources {
		if s.TenantID == tenantID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type memEvidenceStore struct {
	mu       sync.Mutex
	evidence []domain.Evidence
}

func newMemEvidenceStore() *memEvidenceStore {
	return &memEvidenceStore{}
}

func (m *memEvidenceStore) Create(ctx context.Context, e *domain.Evidence) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = uuid.New()
	now := time.Now()
	// Honor a pre-set CreatedAt so tests can age evidence.
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now
	m.evidence = append(m.evidence, *e)
	return nil
}

func (m *memEvidenceStore) GetByID(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (*domain.Evidence, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.evidence {
		if e.ID == id && e.TenantID == tenantID {
			out := e
			return &out, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memEvidenceStore) ListByClaim(ctx context.Context, claimID uuid.UUID, tenantID uuid.UUID) ([]domain.Evidence, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Evidence
	for _, e := range m.evidence {
		if e.ClaimID == claimID && e.TenantID == tenantID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *memEvidenceStore) CountByClaim(ctx context.Context, claimID uuid.UUID, tenantID uuid.UUID) (int, error) {
	evs, _ := m.ListByClaim(ctx, claimID, tenantID)
	return len(evs), nil
}

func (m *memEvidenceStore) Delete(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, e := range m.evidence {
		if e.ID == id && e.TenantID == tenantID {
			m.evidence = append(m.evidence[:i], m.evidence[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

func (m *memEvidenceStore) FindSimilar(ctx context.Context, claimID uuid.UUID, tenantID uuid.UUID, vector []float32, threshold float32) ([]domain.EvidenceWithScore, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.EvidenceWithScore
	for _, e := range m.evidence {
		if e.ClaimID != claimID || e.TenantID != tenantID || len(e.Vector) != len(vector) {
			continue
		}
		score := cosine(e.Vector, vector)
		if score >= threshold {
			out = append(out, domain.EvidenceWithScore{Evidence: e, Score: score})
		}
	}
	return out, nil
}

func (m *memEvidenceStore) DeleteExpired(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	var kept []domain.Evidence
	var deleted int64
	for _, e := range m.evidence {
		if e.ExpiresAt != nil && e.ExpiresAt.Before(now) {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	m.evidence = kept
	return deleted, nil
}

func cosine(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

type memFusionStore struct {
	mu      sync.Mutex
	records []domain.FusionRecord
	seq     int
}

func newMemFusionStore() *memFusionStore {
	return &memFusionStore{}
}

func (m *memFusionStore) Create(ctx context.Context, rec *domain.FusionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec.ID = uuid.New()
	m.seq++
	// Monotonic timestamps so Latest is deterministic within one test.
	rec.CreatedAt = time.Now().Add(time.Duration(m.seq) * time.Microsecond)
	m.records = append(m.records, *rec)
	return nil
}

func (m *memFusionStore) Latest(ctx context.Context, claimID uuid.UUID, tenantID uuid.UUID) (*domain.FusionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *domain.FusionRecord
	for i := range m.records {
		rec := m.records[i]
		if rec.ClaimID != claimID || rec.TenantID != tenantID {
			continue
		}
		if latest == nil || rec.CreatedAt.After(latest.CreatedAt) {
			out := rec
			latest = &out
		}
	}
	if latest == nil {
		return nil, store.ErrNotFound
	}
	return latest, nil
}

func (m *memFusionStore) ListByClaim(ctx context.Context, claimID uuid.UUID, tenantID uuid.UUID, limit int) ([]domain.FusionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.FusionRecord
	for _, rec := range m.records {
		if rec.ClaimID == claimID && rec.TenantID == tenantID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Interface conformance for the mocks.
var (
	_ domain.ClaimStore    = (*memClaimStore)(nil)
	_ domain.SourceStore   = (*memSourceStore)(nil)
	_ domain.EvidenceStore = (*memEvidenceStore)(nil)
	_ domain.FusionStore   = (*memFusionStore)(nil)
)
