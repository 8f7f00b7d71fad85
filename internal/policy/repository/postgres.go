package repository

import (
	"context"
	"database/sql"
	"errors"

	"netra-apex/backend/internal/policy/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a policy repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the policy for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Policy, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, org_id, rules, enabled, created_at FROM org_policies WHERE id = $1`, id)
	p, err := scanPolicy(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

// ListByOrg returns all policies for the given org, newest first.
func (r *PostgresRepository) ListByOrg(ctx context.Context, orgID string) ([]*domain.Policy, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, org_id, rules, enabled, created_at FROM org_policies
		 WHERE org_id = $1 ORDER BY created_at DESC`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPolicies(rows)
}

// GetEnabledPoliciesByOrg returns only the enabled policies for the given org.
func (r *PostgresRepository) GetEnabledPoliciesByOrg(ctx context.Context, orgID string) ([]*domain.Policy, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, org_id, rules, enabled, created_at FROM org_policies
		 WHERE org_id = $1 AND enabled ORDER BY created_at DESC`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPolicies(rows)
}

// Create persists the policy. The policy must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, p *domain.Policy) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO org_policies (id, org_id, rules, enabled, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		p.ID, p.OrgID, p.Rules, p.Enabled, p.CreatedAt)
	return err
}

// Update updates the rules and enabled flag of an existing policy.
func (r *PostgresRepository) Update(ctx context.Context, p *domain.Policy) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE org_policies SET rules = $2, enabled = $3 WHERE id = $1`,
		p.ID, p.Rules, p.Enabled)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPolicy(row rowScanner) (*domain.Policy, error) {
	var p domain.Policy
	if err := row.Scan(&p.ID, &p.OrgID, &p.Rules, &p.Enabled, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func collectPolicies(rows *sql.Rows) ([]*domain.Policy, error) {
	var out []*domain.Policy
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
