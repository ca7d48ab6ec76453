package ports

import (
	"context"

	"github.com/transflow/tms-backend/internal/core/domain"
)

// TripRepository is a read-only projection of trips for payroll.
type TripRepository interface {
	Get(ctx context.Context, tenantID, id string) (*domain.Trip, error)
	// GetByIDs fetches all listed trips in one query; missing ids are
	// silently absent from the result.
	GetByIDs(ctx context.Context, tenantID string, ids []string) ([]*domain.Trip, error)
}
