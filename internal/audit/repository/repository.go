package repository

import (
	"context"

	"presensi-praktikum/internal/audit/domain"
)

// Repository is the storage contract for audit logs.
type Repository interface {
	Create(ctx context.Context, a *domain.AuditLog) error
	ListByClass(ctx context.Context, classID string, limit, offset int32) ([]*domain.AuditLog, error)
}
