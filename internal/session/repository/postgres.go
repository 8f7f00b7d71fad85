package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"netra-apex/backend/internal/session/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a session repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the session for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, org_id, expires_at, revoked_at, last_seen_at, ip_address, refresh_jti, refresh_token_hash, created_at
		 FROM sessions WHERE id = $1`, id)
	var s domain.Session
	var revokedAt, lastSeenAt sql.NullTime
	var ip, jti, tokenHash sql.NullString
	err := row.Scan(&s.ID, &s.UserID, &s.OrgID, &s.ExpiresAt, &revokedAt, &lastSeenAt, &ip, &jti, &tokenHash, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if revokedAt.Valid {
		t := revokedAt.Time
		s.RevokedAt = &t
	}
	if lastSeenAt.Valid {
		t := lastSeenAt.Time
		s.LastSeenAt = &t
	}
	s.IPAddress = ip.String
	s.RefreshJti = jti.String
	s.RefreshTokenHash = tokenHash.String
	return &s, nil
}

// Create persists the session to the database. The session must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.Session) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, org_id, expires_at, ip_address, refresh_jti, refresh_token_hash, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		s.ID, s.UserID, s.OrgID, s.ExpiresAt,
		sql.NullString{String: s.IPAddress, Valid: s.IPAddress != ""},
		sql.NullString{String: s.RefreshJti, Valid: s.RefreshJti != ""},
		sql.NullString{String: s.RefreshTokenHash, Valid: s.RefreshTokenHash != ""},
		s.CreatedAt)
	return err
}

// Revoke marks the session revoked. Revoking an already-revoked session is a no-op.
func (r *PostgresRepository) Revoke(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET revoked_at = $2 WHERE id = $1 AND revoked_at IS NULL`,
		id, time.Now().UTC())
	return err
}

// RevokeAllSessionsByUser revokes every non-revoked session for the user.
// Used on refresh token reuse detection.
func (r *PostgresRepository) RevokeAllSessionsByUser(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET revoked_at = $2 WHERE user_id = $1 AND revoked_at IS NULL`,
		userID, time.Now().UTC())
	return err
}

// UpdateLastSeen records session activity.
func (r *PostgresRepository) UpdateLastSeen(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET last_seen_at = $2 WHERE id = $1`, id, at)
	return err
}

// UpdateRefreshToken rotates the stored refresh jti and hash for the session.
func (r *PostgresRepository) UpdateRefreshToken(ctx context.Context, sessionID, jti, refreshTokenHash string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET refresh_jti = $2, refresh_token_hash = $3 WHERE id = $1`,
		sessionID, jti, refreshTokenHash)
	return err
}
