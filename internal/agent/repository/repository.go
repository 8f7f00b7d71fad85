package repository

import (
	"context"

	"netra-apex/backend/internal/agent/domain"
)

// Repository defines persistence for agent runs.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Run, error)
	ListByOrg(ctx context.Context, orgID string, limit int) ([]*domain.Run, error)
	CountRunningByOrg(ctx context.Context, orgID string) (int, error)
	Create(ctx context.Context, run *domain.Run) error
	Finish(ctx context.Context, id string, status domain.RunStatus, runErr string) error
}
