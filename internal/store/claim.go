package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/credencehq/credence/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ClaimStore struct {
	db *pgxpool.Pool
}

func NewClaimStore(db *pgxpool.Pool) *ClaimStore {
	return &ClaimStore{db: db}
}

func (s *ClaimStore) Create(ctx context.Context, c *domain.Claim) error {
	return s.db.QueryRow(ctx,
		`INSERT INTO claims (tenant_id, statement, frame, default_rule, status)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at, updated_at`,
		c.TenantID, c.Statement, c.Frame, c.DefaultRule, c.Status,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
}

func (s *ClaimStore) GetByID(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (*domain.Claim, error) {
	c := &domain.Claim{}
	err := s.db.QueryRow(ctx,
		`SELECT id, tenant_id, statement, frame, default_rule, status, created_at, updated_at
		 FROM claims WHERE id = $1 AND tenant_id = $2`,
		id, tenantID,
	).Scan(&c.ID, &c.TenantID, &c.Statement, &c.Frame, &c.DefaultRule, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return c, nil
}

func (s *ClaimStore) List(ctx context.Context, tenantID uuid.UUID, opts domain.ListClaimsOpts) ([]domain.Claim, error) {
	limit := opts.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	args := []any{tenantID}
	statusFilter := ""
	if opts.Status != nil {
		statusFilter = ` AND status = $2`
		args = append(args, *opts.Status)
	}
	args = append(args, limit, opts.Offset)

	query := fmt.Sprintf(
		`SELECT id, tenant_id, statement, frame, default_rule, status, created_at, updated_at
		 FROM claims WHERE tenant_id = $1%s
		 ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		statusFilter, len(args)-1, len(args),
	)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var claims []domain.Claim
	for rows.Next() {
		var c domain.Claim
		if err := rows.Scan(&c.ID, &c.TenantID, &c.Statement, &c.Frame, &c.DefaultRule, &c.Status, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		claims = append(claims, c)
	}
	return claims, rows.Err()
}

func (s *ClaimStore) UpdateStatus(ctx context.Context, id uuid.UUID, tenantID uuid.UUID, status domain.ClaimStatus) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE claims SET status = $1, updated_at = NOW() WHERE id = $2 AND tenant_id = $3`,
		status, id, tenantID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *ClaimStore) Delete(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) error {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM claims WHERE id = $1 AND tenant_id = $2`,
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

// ListStale returns open claims whose newest evidence postdates their
// latest fusion, or that have evidence and no fusion at all. Used by the
// background re-fusion pass, so it scans across tenants.
func (s *ClaimStore) ListStale(ctx context.Context, limit int) ([]domain.Claim, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.Query(ctx,
		`SELECT c.id, c.tenant_id, c.statement, c.frame, c.default_rule, c.status, c.created_at, c.updated_at
		 FROM claims c
		 JOIN LATERAL (
		     SELECT MAX(created_at) AS newest FROM evidence WHERE claim_id = c.id
		 ) e ON e.newest IS NOT NULL
		 LEFT JOIN LATERAL (
		     SELECT MAX(created_at) AS latest FROM fusions WHERE claim_id = c.id
		 ) f ON TRUE
		 WHERE c.status = 'open' AND (f.latest IS NULL OR e.newest > f.latest)
		 ORDER BY c.updated_at
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var claims []domain.Claim
	for rows.Next() {
		var c domain.Claim
		if err := rows.Scan(&c.ID, &c.TenantID, &c.Statement, &c.Frame, &c.DefaultRule, &c.Status, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		claims = append(claims, c)
	}
	return claims, rows.Err()
}
