package postgres

import (
	"context"
)

// HealthRepository reports database connectivity for readiness probes.
type HealthRepository struct {
	provider *Provider
}

// NewHealthRepository constructs a HealthRepository backed by the provider pool.
func NewHealthRepository(provider *Provider) *HealthRepository {
	return &HealthRepository{provider: provider}
}

// Ping verifies the database answers within the context deadline.
func (r *HealthRepository) Ping(ctx context.Context) error {
	return r.provider.Ping(ctx)
}
