package repository

import (
	"context"
	"database/sql"
	"errors"

	"netra-apex/backend/internal/membership/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a membership repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByUserAndOrg returns the membership linking user to org, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByUserAndOrg(ctx context.Context, userID, orgID string) (*domain.Membership, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, org_id, role, created_at FROM memberships WHERE user_id = $1 AND org_id = $2`,
		userID, orgID)
	var m domain.Membership
	var role string
	err := row.Scan(&m.ID, &m.UserID, &m.OrgID, &role, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	m.Role = domain.Role(role)
	return &m, nil
}

// ListByUser returns all memberships for the user ordered by creation time.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Membership, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, org_id, role, created_at FROM memberships WHERE user_id = $1 ORDER BY created_at`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Membership
	for rows.Next() {
		var m domain.Membership
		var role string
		if err := rows.Scan(&m.ID, &m.UserID, &m.OrgID, &role, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Role = domain.Role(role)
		out = append(out, &m)
	}
	return out, rows.Err()
}

// Create persists the membership to the database. The membership must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, m *domain.Membership) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO memberships (id, user_id, org_id, role, created_at) VALUES ($1, $2, $3, $4, $5)`,
		m.ID, m.UserID, m.OrgID, string(m.Role), m.CreatedAt)
	return err
}
