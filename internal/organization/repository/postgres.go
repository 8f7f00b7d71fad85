package repository

import (
	"context"
	"database/sql"
	"errors"

	"netra-apex/backend/internal/organization/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an organization repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the org for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Org, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, slug, plan, status, created_at, updated_at FROM organizations WHERE id = $1`, id)
	return scanOrg(row)
}

// GetBySlug returns the org with the given slug, or nil if not found.
func (r *PostgresRepository) GetBySlug(ctx context.Context, slug string) (*domain.Org, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, slug, plan, status, created_at, updated_at FROM organizations WHERE slug = $1`, slug)
	return scanOrg(row)
}

// Create persists the organization to the database. The org must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, o *domain.Org) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO organizations (id, name, slug, plan, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		o.ID, o.Name, o.Slug, string(o.Plan), string(o.Status), o.CreatedAt, o.UpdatedAt)
	return err
}

func scanOrg(row *sql.Row) (*domain.Org, error) {
	var o domain.Org
	var plan, status string
	err := row.Scan(&o.ID, &o.Name, &o.Slug, &plan, &status, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	o.Plan = domain.Plan(plan)
	o.Status = domain.OrgStatus(status)
	return &o, nil
}
