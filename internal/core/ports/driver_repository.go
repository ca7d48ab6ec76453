package ports

import (
	"context"

	"github.com/transflow/tms-backend/internal/core/domain"
)

// DriverRepository provides driver lookups and status updates.
type DriverRepository interface {
	Get(ctx context.Context, tenantID, id string) (*domain.Driver, error)
	UpdateStatus(ctx context.Context, tenantID, id string, status domain.DriverStatus) error
}

// CustomerRepository provides the customer lookup pricing needs.
type CustomerRepository interface {
	Get(ctx context.Context, tenantID, id string) (*domain.Customer, error)
}
