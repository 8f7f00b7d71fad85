package repository

import (
	"context"

	"netra-apex/backend/internal/audit/domain"
)

// Repository stores audit log rows. Writes are append-only.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.AuditLog, error)
	ListByOrg(ctx context.Context, orgID string, limit, offset int32) ([]*domain.AuditLog, error)
	Save(ctx context.Context, a *domain.AuditLog) error
}
