package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/credencehq/credence/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type FusionStore struct {
	db *pgxpool.Pool
}

func NewFusionStore(db *pgxpool.Pool) *FusionStore {
	return &FusionStore{db: db}
}

func (s *FusionStore) Create(ctx context.Context, rec *domain.FusionRecord) error {
	assignments, err := json.Marshal(rec.Assignments)
	if err != nil {
		return err
	}

	return s.db.QueryRow(ctx,
		`INSERT INTO fusions (claim_id, tenant_id, rule, conflict, high_conflict, assignments, evidence_count, evidence_ids)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, created_at`,
		rec.ClaimID, rec.TenantID, rec.Rule, rec.Conflict, rec.HighConflict, assignments, rec.EvidenceCount, rec.EvidenceIDs,
	).Scan(&rec.ID, &rec.CreatedAt)
}

func (s *FusionStore) Latest(ctx context.Context, claimID uuid.UUID, tenantID uuid.UUID) (*domain.FusionRecord, error) {
	rec := &domain.FusionRecord{}
	var assignments []byte
	err := s.db.QueryRow(ctx,
		`SELECT id, claim_id, tenant_id, rule, conflict, high_conflict, assignments, evidence_count, evidence_ids, created_at
		 FROM fusions WHERE claim_id = $1 AND tenant_id = $2
		 ORDER BY created_at DESC LIMIT 1`,
		claimID, tenantID,
	).Scan(&rec.ID, &rec.ClaimID, &rec.TenantID, &rec.Rule, &rec.Conflict, &rec.HighConflict, &assignments, &rec.EvidenceCount, &rec.EvidenceIDs, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(assignments, &rec.Assignments); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *FusionStore) ListByClaim(ctx context.Context, claimID uuid.UUID, tenantID uuid.UUID, limit int) ([]domain.FusionRecord, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	rows, err := s.db.Query(ctx,
		`SELECT id, claim_id, tenant_id, rule, conflict, high_conflict, assignments, evidence_count, evidence_ids, created_at
		 FROM fusions WHERE claim_id = $1 AND tenant_id = $2
		 ORDER BY created_at DESC LIMIT $3`,
		claimID, tenantID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.FusionRecord
	for rows.Next() {
		var rec domain.FusionRecord
		var assignments []byte
		if err := rows.Scan(&rec.ID, &rec.ClaimID, &rec.TenantID, &rec.Rule, &rec.Conflict, &rec.HighConflict, &assignments, &rec.EvidenceCount, &rec.EvidenceIDs, &rec.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(assignments, &rec.Assignments); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
