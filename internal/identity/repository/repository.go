package repository

import (
	"context"

	"netra-apex/backend/internal/identity/domain"
)

// Repository stores credential identities.
type Repository interface {
	GetByUserAndProvider(ctx context.Context, userID string, provider domain.IdentityProvider) (*domain.Identity, error)
	Create(ctx context.Context, i *domain.Identity) error
}
