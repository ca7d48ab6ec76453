package ports

import (
	"context"
	"time"

	"github.com/transflow/tms-backend/internal/core/domain"
)

// TimelineEventLogger appends immutable audit rows for shipment activity.
type TimelineEventLogger interface {
	Append(ctx context.Context, shipmentID, eventType, actorType string, extra map[string]any) error
}

// FinancialRecorder is the fire-and-log bookkeeping side channel. Failures
// must never roll back the computation that produced the entry.
type FinancialRecorder interface {
	Record(ctx context.Context, tenantID string, entry domain.FinancialEntry) error
}

// PendingAssignment is the record created when a driver is assigned and
// removed when the assignment is declined.
type PendingAssignment struct {
	ShipmentID string    `bson:"shipment_id"`
	DriverID   string    `bson:"driver_id"`
	VehicleID  string    `bson:"vehicle_id,omitempty"`
	CreatedAt  time.Time `bson:"created_at"`
}

// AssignmentRepository tracks assignments awaiting driver acknowledgment.
type AssignmentRepository interface {
	CreatePending(ctx context.Context, tenantID string, a PendingAssignment) error
	DeletePending(ctx context.Context, tenantID, shipmentID string) error
}
