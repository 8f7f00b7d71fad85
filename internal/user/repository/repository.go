package repository

import (
	"context"

	"netra-apex/backend/internal/user/domain"
)

// Repository is user persistence. Lookups return (nil, nil) when no row
// exists.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
	Update(ctx context.Context, u *domain.User) error
}
