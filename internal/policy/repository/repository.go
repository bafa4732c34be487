package repository

import (
	"context"

	"presensi-praktikum/internal/policy/domain"
)

// Repository is the storage contract for classification policies.
type Repository interface {
	GetEnabledPoliciesByClass(ctx context.Context, classID string) ([]*domain.Policy, error)
	Create(ctx context.Context, p *domain.Policy) error
}
