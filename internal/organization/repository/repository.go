package repository

import (
	"context"

	"netra-apex/backend/internal/organization/domain"
)

// Repository is organization persistence. Lookups return (nil, nil) when no
// row exists.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Org, error)
	GetBySlug(ctx context.Context, slug string) (*domain.Org, error)
	Create(ctx context.Context, o *domain.Org) error
}
