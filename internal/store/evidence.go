package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/credencehq/credence/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
)

type EvidenceStore struct {
	db *pgxpool.Pool
}

func NewEvidenceStore(db *pgxpool.Pool) *EvidenceStore {
	return &EvidenceStore{db: db}
}

func (s *EvidenceStore) Create(ctx context.Context, e *domain.Evidence) error {
	assignments, err := json.Marshal(e.Assignments)
	if err != nil {
		return err
	}

	var vec *pgvector.Vector
	if len(e.Vector) > 0 {
		v := pgvector.NewVector(e.Vector)
		vec = &v
	}

	return s.db.QueryRow(ctx,
		`INSERT INTO evidence (claim_id, tenant_id, source_id, assignments, reliability, vector, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at, updated_at`,
		e.ClaimID, e.TenantID, e.SourceID, assignments, e.Reliability, vec, e.ExpiresAt,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
}

func (s *EvidenceStore) GetByID(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (*domain.Evidence, error) {
	e := &domain.Evidence{}
	var assignments []byte
	err := s.db.QueryRow(ctx,
		`SELECT id, claim_id, tenant_id, source_id, assignments, reliability, expires_at, created_at, updated_at
		 FROM evidence WHERE id = $1 AND tenant_id = $2`,
		id, tenantID,
	).Scan(&e.ID, &e.ClaimID, &e.TenantID, &e.SourceID, &assignments, &e.Reliability, &e.ExpiresAt, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(assignments, &e.Assignments); err != nil {
		return nil, err
	}
	return e, nil
}

func (s *EvidenceStore) ListByClaim(ctx context.Context, claimID uuid.UUID, tenantID uuid.UUID) ([]domain.Evidence, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, claim_id, tenant_id, source_id, assignments, reliability, expires_at, created_at, updated_at
		 FROM evidence WHERE claim_id = $1 AND tenant_id = $2
		 ORDER BY created_at`,
		claimID, tenantID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Evidence
	for rows.Next() {
		var e domain.Evidence
		var assignments []byte
		if err := rows.Scan(&e.ID, &e.ClaimID, &e.TenantID, &e.SourceID, &assignments, &e.Reliability, &e.ExpiresAt, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(assignments, &e.Assignments); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *EvidenceStore) CountByClaim(ctx context.Context, claimID uuid.UUID, tenantID uuid.UUID) (int, error) {
	var count int
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM evidence WHERE claim_id = $1 AND tenant_id = $2`,
		claimID, tenantID,
	).Scan(&count)
	return count, err
}

func (s *EvidenceStore) Delete(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) error {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM evidence WHERE id = $1 AND tenant_id = $2`,
		id, tenantID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// FindSimilar returns evidence on the same claim whose pignistic vector is
// within the cosine-similarity threshold. Vectors on one claim share the
// claim's frame, so their dimensions always match.
func (s *EvidenceStore) FindSimilar(ctx context.Context, claimID uuid.UUID, tenantID uuid.UUID, vector []float32, threshold float32) ([]domain.EvidenceWithScore, error) {
	vec := pgvector.NewVector(vector)
	rows, err := s.db.Query(ctx,
		`SELECT id, claim_id, tenant_id, source_id, assignments, reliability, expires_at, created_at, updated_at,
		        1 - (vector <=> $3) AS score
		 FROM evidence
		 WHERE claim_id = $1 AND tenant_id = $2 AND vector IS NOT NULL
		   AND 1 - (vector <=> $3) >= $4
		 ORDER BY vector <=> $3
		 LIMIT 10`,
		claimID, tenantID, vec, threshold,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.EvidenceWithScore
	for rows.Next() {
		var e domain.EvidenceWithScore
		var assignments []byte
		if err := rows.Scan(&e.ID, &e.ClaimID, &e.TenantID, &e.SourceID, &assignments, &e.Reliability, &e.ExpiresAt, &e.CreatedAt, &e.UpdatedAt, &e.Score); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(assignments, &e.Assignments); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *EvidenceStore) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM evidence WHERE expires_at IS NOT NULL AND expires_at < NOW()`,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
