package domain

import "time"

// Timeline event types appended by the state machine.
const (
	EventDriverAcknowledged = "DRIVER_ACKNOWLEDGED"
	EventDriverDeclined     = "DRIVER_DECLINED"
	EventQuoteConverted     = "QUOTE_CONVERTED"
	EventStatusChanged      = "STATUS_CHANGED"
	EventGeofenceAdvance    = "GEOFENCE_ADVANCE"
)

// Timeline event actor types.
const (
	ActorUser     = "user"
	ActorDriver   = "driver"
	ActorGeofence = "geofence"
	ActorSystem   = "system"
)

// TimelineEvent is an append-only audit row recorded alongside shipment
// transitions. Rows are never updated or deleted.
type TimelineEvent struct {
	ShipmentID string         `json:"shipment_id" bson:"shipment_id"`
	EventType  string         `json:"event_type" bson:"event_type"`
	ActorType  string         `json:"actor_type" bson:"actor_type"`
	Extra      map[string]any `json:"extra,omitempty" bson:"extra,omitempty"`
	CreatedAt  time.Time      `json:"created_at" bson:"created_at"`
}

// LocationUpdate is a driver GPS ping feeding geofence auto-advancement.
type LocationUpdate struct {
	TenantID  string      `json:"tenant_id"`
	DriverID  string      `json:"driver_id"`
	Location  Coordinates `json:"location"`
	Timestamp time.Time   `json:"timestamp"`
}
