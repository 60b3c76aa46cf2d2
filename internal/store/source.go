package store

import (
	"context"
	"errors"

	"github.com/credencehq/credence/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type SourceStore struct {
	db *pgxpool.Pool
}

func NewSourceStore(db *pgxpool.Pool) *SourceStore {
	return &SourceStore{db: db}
}

func (s *SourceStore) Create(ctx context.Context, src *domain.Source) error {
	err := s.db.QueryRow(ctx,
		`INSERT INTO sources (tenant_id, name, reliability, notes)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at, updated_at`,
		src.TenantID, src.Name, src.Reliability, src.Notes,
	).Scan(&src.ID, &src.CreatedAt, &src.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return err
	}
	return nil
}

func (s *SourceStore) GetByID(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (*domain.Source, error) {
	src := &domain.Source{}
	err := s.db.QueryRow(ctx,
		`SELECT id, tenant_id, name, reliability, notes, created_at, updated_at
		 FROM sources WHERE id = $1 AND tenant_id = $2`,
		id, tenantID,
	).Scan(&src.ID, &src.TenantID, &src.Name, &src.Reliability, &src.Notes, &src.CreatedAt, &src.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return src, nil
}

func (s *SourceStore) List(ctx context.Context, tenantID uuid.UUID) ([]domain.Source, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, tenant_id, name, reliability, notes, created_at, updated_at
		 FROM sources WHERE tenant_id = $1 ORDER BY name`,
		tenantID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sources []domain.Source
	for rows.Next() {
		var src domain.Source
		if err := rows.Scan(&src.ID, &src.TenantID, &src.Name, &src.Reliability, &src.Notes, &src.CreatedAt, &src.UpdatedAt); err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return sources, rows.Err()
}
