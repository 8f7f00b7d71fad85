package repository

import (
	"context"
	"database/sql"
	"errors"

	"netra-apex/backend/internal/audit/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an audit log repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the audit log for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.AuditLog, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, org_id, user_id, action, resource, ip, metadata, created_at FROM audit_logs WHERE id = $1`, id)
	var a domain.AuditLog
	var userID, ip, metadata sql.NullString
	err := row.Scan(&a.ID, &a.OrgID, &userID, &a.Action, &a.Resource, &ip, &metadata, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	a.UserID = userID.String
	a.IP = ip.String
	a.Metadata = metadata.String
	return &a, nil
}

// ListByOrg returns audit logs for the given org, newest first, paginated by limit and offset.
func (r *PostgresRepository) ListByOrg(ctx context.Context, orgID string, limit, offset int32) ([]*domain.AuditLog, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, org_id, user_id, action, resource, ip, metadata, created_at
		 FROM audit_logs WHERE org_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		orgID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.AuditLog
	for rows.Next() {
		var a domain.AuditLog
		var userID, ip, metadata sql.NullString
		if err := rows.Scan(&a.ID, &a.OrgID, &userID, &a.Action, &a.Resource, &ip, &metadata, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.UserID = userID.String
		a.IP = ip.String
		a.Metadata = metadata.String
		out = append(out, &a)
	}
	return out, rows.Err()
}

// Save persists the audit log to the database. The audit log must have ID set.
func (r *PostgresRepository) Save(ctx context.Context, a *domain.AuditLog) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_logs (id, org_id, user_id, action, resource, ip, metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, a.OrgID,
		sql.NullString{String: a.UserID, Valid: a.UserID != ""},
		a.Action, a.Resource,
		sql.NullString{String: a.IP, Valid: a.IP != ""},
		sql.NullString{String: a.Metadata, Valid: a.Metadata != ""},
		a.CreatedAt)
	return err
}
