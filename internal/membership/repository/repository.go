package repository

import (
	"context"

	"netra-apex/backend/internal/membership/domain"
)

// Repository stores org memberships.
type Repository interface {
	GetByUserAndOrg(ctx context.Context, userID, orgID string) (*domain.Membership, error)
	// ListByUser returns the user's memberships ordered by creation time; the
	// first row is the user's default org for login.
	ListByUser(ctx context.Context, userID string) ([]*domain.Membership, error)
	Create(ctx context.Context, m *domain.Membership) error
}
