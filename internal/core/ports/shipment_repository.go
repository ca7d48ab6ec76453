package ports

import (
	"context"
	"errors"
	"time"

	"github.com/transflow/tms-backend/internal/core/domain"
)

// ErrTransitionConflict is returned by ApplyTransition when no document
// matched the guard filter: the shipment is absent, its status moved, or a
// required driver did not match. The caller re-reads to classify.
var ErrTransitionConflict = errors.New("transition guard conflict")

// TransitionUpdate describes one guarded compare-and-set against a shipment
// row. The guards are folded into the storage-level filter so that two
// concurrent transitions on the same shipment cannot both succeed.
type TransitionUpdate struct {
	// FromStatuses the shipment must currently be in.
	FromStatuses []domain.ShipmentStatus
	// RequireDriverID, when non-empty, guards driver_id equality.
	RequireDriverID string
	NewStatus       domain.ShipmentStatus
	// TimelineStamps are timeline keys to stamp at At. Callers only pass
	// keys that are not yet set, preserving stamp-at-most-once.
	TimelineStamps []string
	At             time.Time
	// Set holds extra fields to assign (driver_id, actual_cost, ...).
	Set map[string]any
	// Unset holds field names to clear (declined assignment).
	Unset []string
}

// ListShipmentsFilter carries query parameters for listing shipments.
type ListShipmentsFilter struct {
	Status     domain.ShipmentStatus
	CustomerID string
	DriverID   string
	DateFrom   time.Time
	DateTo     time.Time
	Page       int // 1-based
	Limit      int // capped by the service
}

// ShipmentRepository defines persistence operations for shipments. Every
// method is tenant-scoped; tenantID is mandatory on each call.
type ShipmentRepository interface {
	Create(ctx context.Context, s *domain.Shipment) error
	Get(ctx context.Context, tenantID, id string) (*domain.Shipment, error)
	GetByNumber(ctx context.Context, tenantID, number string) (*domain.Shipment, error)
	List(ctx context.Context, tenantID string, filter ListShipmentsFilter) ([]*domain.Shipment, int64, error)
	// FindActiveByDriver returns the driver's shipments in any of the given
	// statuses (geofence auto-advancement scan).
	FindActiveByDriver(ctx context.Context, tenantID, driverID string, statuses []domain.ShipmentStatus) ([]*domain.Shipment, error)
	// ApplyTransition performs a guarded compare-and-set and returns the
	// post-update shipment, or ErrTransitionConflict when the guard lost.
	ApplyTransition(ctx context.Context, tenantID, id string, tu TransitionUpdate) (*domain.Shipment, error)
	// AppendAdditionalFee pushes one fee and sets the re-derived actual
	// cost, guarded on the fee count the caller observed. A concurrent
	// append changes the count and loses the guard, returning
	// ErrTransitionConflict; the caller re-reads and recomputes.
	AppendAdditionalFee(ctx context.Context, tenantID, id string, fee domain.AdditionalFee, expectedFees int, actualCost float64) error
}

// Transactor scopes a function to one storage transaction. The function's
// error aborts the transaction; every write made through repositories with
// the provided context is rolled back on any failure path.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
