package ports

import (
	"context"

	"github.com/transflow/tms-backend/internal/core/domain"
)

// AssignDriverInput carries a driver assignment request.
type AssignDriverInput struct {
	ShipmentID string
	DriverID   string
	VehicleID  string
}

// AcknowledgeInput carries a driver's response to an assignment.
type AcknowledgeInput struct {
	ShipmentID string
	DriverID   string
	Accepted   bool
	Note       string
}

// ShipmentService drives the shipment state machine. Every method takes the
// tenant id explicitly; it is never captured in the service instance.
type ShipmentService interface {
	Get(ctx context.Context, tenantID, id string) (*domain.Shipment, error)
	GetByNumber(ctx context.Context, tenantID, number string) (*domain.Shipment, error)
	List(ctx context.Context, tenantID string, filter ListShipmentsFilter) ([]*domain.Shipment, int64, error)

	Confirm(ctx context.Context, tenantID, shipmentID string) (*domain.Shipment, error)
	AssignDriver(ctx context.Context, tenantID string, in AssignDriverInput) (*domain.Shipment, error)
	StartPickup(ctx context.Context, tenantID, shipmentID, driverID string) (*domain.Shipment, error)
	StartTransit(ctx context.Context, tenantID, shipmentID, driverID string) (*domain.Shipment, error)
	CompleteDelivery(ctx context.Context, tenantID, shipmentID, driverID, notes string) (*domain.Shipment, error)
	CompleteShipment(ctx context.Context, tenantID, shipmentID string, actualCost *float64) (*domain.Shipment, error)
	Cancel(ctx context.Context, tenantID, shipmentID, reason string) (*domain.Shipment, error)

	// ConvertQuoteToShipment atomically confirms a quoted shipment:
	// status guard, optional number regeneration, timeline stamp, actual
	// cost resolution. All-or-nothing.
	ConvertQuoteToShipment(ctx context.Context, tenantID, shipmentID string, actualCost *float64) (*domain.Shipment, error)
	// AcknowledgeAssignment atomically records a driver accepting or
	// declining an assignment, including the driver status flip and the
	// audit row, as one unit.
	AcknowledgeAssignment(ctx context.Context, tenantID string, in AcknowledgeInput) (*domain.Shipment, error)

	// HandleLocationUpdate applies geofence auto-advancement for the
	// driver's active shipments.
	HandleLocationUpdate(ctx context.Context, update domain.LocationUpdate) error
}
