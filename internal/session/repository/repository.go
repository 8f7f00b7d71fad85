package repository

import (
	"context"
	"time"

	"netra-apex/backend/internal/session/domain"
)

// Repository persists login sessions and their refresh-token rotation state.
// Lookups return (nil, nil) when no row exists.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	Create(ctx context.Context, s *domain.Session) error
	Revoke(ctx context.Context, id string) error
	RevokeAllSessionsByUser(ctx context.Context, userID string) error
	UpdateLastSeen(ctx context.Context, id string, at time.Time) error
	UpdateRefreshToken(ctx context.Context, sessionID, jti, refreshTokenHash string) error
}
