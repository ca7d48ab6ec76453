package ports

import (
	"context"

	"github.com/transflow/tms-backend/internal/core/domain"
)

// DriverSalaryService selects exactly one commission strategy per shipment.
type DriverSalaryService interface {
	CalculateCommission(ctx context.Context, tenantID string, shipment *domain.Shipment, driver *domain.Driver, trip *domain.Trip) (*domain.SalaryCalculationResult, error)
	// CalculateBatchCommissions resolves trips in one query and isolates
	// per-shipment failures; result order matches input order.
	CalculateBatchCommissions(ctx context.Context, tenantID string, shipments []*domain.Shipment, driver *domain.Driver) ([]*domain.SalaryCalculationResult, error)
}
