package domain

import (
	"errors"
	"time"
)

// ShipmentStatus represents the lifecycle state of a shipment.
type ShipmentStatus string

const (
	StatusDraft               ShipmentStatus = "draft"
	StatusPendingConfirmation ShipmentStatus = "pending_confirmation"
	StatusConfirmed           ShipmentStatus = "confirmed"
	StatusScheduled           ShipmentStatus = "scheduled"
	StatusPickupInProgress    ShipmentStatus = "pickup_in_progress"
	StatusInTransit           ShipmentStatus = "in_transit"
	StatusDelivered           ShipmentStatus = "delivered"
	StatusPODPendingReview    ShipmentStatus = "pod_pending_review"
	StatusCompleted           ShipmentStatus = "completed"
	StatusCancelled           ShipmentStatus = "cancelled"
	StatusException           ShipmentStatus = "exception"
)

// allStatuses lists every status in lifecycle order.
var allStatuses = []ShipmentStatus{
	StatusDraft,
	StatusPendingConfirmation,
	StatusConfirmed,
	StatusScheduled,
	StatusPickupInProgress,
	StatusInTransit,
	StatusDelivered,
	StatusPODPendingReview,
	StatusCompleted,
	StatusCancelled,
	StatusException,
}

// validTransitions defines the allowed state machine transitions.
// Cancellation is handled separately: any non-terminal status may cancel.
// scheduled -> confirmed is the revert on a declined assignment.
var validTransitions = map[ShipmentStatus][]ShipmentStatus{
	StatusDraft:               {StatusPendingConfirmation},
	StatusPendingConfirmation: {StatusConfirmed, StatusScheduled},
	StatusConfirmed:           {StatusScheduled},
	StatusScheduled:           {StatusScheduled, StatusConfirmed, StatusPickupInProgress},
	StatusPickupInProgress:    {StatusInTransit},
	StatusInTransit:           {StatusDelivered},
	StatusDelivered:           {StatusPODPendingReview, StatusCompleted},
	StatusPODPendingReview:    {StatusCompleted},
}

// timelineFields maps each status to its timeline key. Exception is
// deliberately absent: it is never timeline-stamped.
var timelineFields = map[ShipmentStatus]string{
	StatusDraft:               "draft",
	StatusPendingConfirmation: "pendingConfirmation",
	StatusConfirmed:           "confirmed",
	StatusScheduled:           "scheduled",
	StatusPickupInProgress:    "pickupInProgress",
	StatusInTransit:           "inTransit",
	StatusDelivered:           "delivered",
	StatusPODPendingReview:    "podPendingReview",
	StatusCompleted:           "completed",
	StatusCancelled:           "cancelled",
}

// Timeline markers that are not statuses.
const (
	TimelineCreated                = "created"
	TimelineAssignmentAcknowledged = "assignmentAcknowledged"
	TimelineAssignmentDeclined     = "assignmentDeclined"
)

var (
	ErrShipmentNotFound   = errors.New("shipment not found")
	ErrCustomerNotFound   = errors.New("customer not found")
	ErrDriverNotFound     = errors.New("driver not found")
	ErrTripNotFound       = errors.New("trip not found")
	ErrInvalidStatus      = errors.New("invalid status transition")
	ErrDriverNotAvailable = errors.New("driver not available")
	ErrDriverNotAssigned  = errors.New("driver not assigned to shipment")
	ErrValidation         = errors.New("validation failed")
	ErrForbidden          = errors.New("access forbidden")
)

// CanTransitionTo reports whether a transition from current status to next is valid.
func (s ShipmentStatus) CanTransitionTo(next ShipmentStatus) bool {
	if next == StatusCancelled {
		return !s.Terminal()
	}
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions are possible from s.
func (s ShipmentStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// NonTerminalStatuses returns every status a shipment can still leave, in
// lifecycle order. These are exactly the statuses cancellation is allowed
// from.
func NonTerminalStatuses() []ShipmentStatus {
	out := make([]ShipmentStatus, 0, len(allStatuses))
	for _, s := range allStatuses {
		if !s.Terminal() {
			out = append(out, s)
		}
	}
	return out
}

// TimelineField returns the timeline key a status is stamped under. The
// second result is false for statuses that are never stamped (exception).
func (s ShipmentStatus) TimelineField() (string, bool) {
	f, ok := timelineFields[s]
	return f, ok
}

// Coordinates represents a geographic point. A zero value means unknown.
type Coordinates struct {
	Lat float64 `json:"lat" bson:"lat"`
	Lng float64 `json:"lng" bson:"lng"`
}

// Zero reports whether the coordinates are unset.
func (c Coordinates) Zero() bool {
	return c.Lat == 0 && c.Lng == 0
}

// Address represents a physical location.
type Address struct {
	Address     string      `json:"address" bson:"address"`
	City        string      `json:"city" bson:"city"`
	PostalCode  string      `json:"postal_code" bson:"postal_code"`
	Coordinates Coordinates `json:"coordinates" bson:"coordinates"`
}

// Dimensions represents the physical size of the cargo.
type Dimensions struct {
	LengthM float64 `json:"length_m" bson:"length_m"`
	WidthM  float64 `json:"width_m" bson:"width_m"`
	HeightM float64 `json:"height_m" bson:"height_m"`
}

// CargoInfo contains the details of what is being shipped.
type CargoInfo struct {
	WeightKg              float64    `json:"weight_kg" bson:"weight_kg"`
	VolumeM3              float64    `json:"volume_m3" bson:"volume_m3"`
	Dimensions            Dimensions `json:"dimensions" bson:"dimensions"`
	DeclaredValue         float64    `json:"declared_value" bson:"declared_value"`
	Hazardous             bool       `json:"hazardous" bson:"hazardous"`
	RequiresRefrigeration bool       `json:"requires_refrigeration" bson:"requires_refrigeration"`
	RequiresTailgate      bool       `json:"requires_tailgate" bson:"requires_tailgate"`
	Description           string     `json:"description,omitempty" bson:"description,omitempty"`
}

// AdditionalFee is a post-quote charge appended to a shipment.
type AdditionalFee struct {
	Name      string    `json:"name" bson:"name"`
	Amount    float64   `json:"amount" bson:"amount"`
	Reason    string    `json:"reason,omitempty" bson:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// Shipment is the core transactional aggregate. It is mutated only through
// ShipmentService transition methods, never by direct field assignment.
type Shipment struct {
	ID              string               `json:"id" bson:"_id"`
	TenantID        string               `json:"tenant_id" bson:"tenant_id"`
	ShipmentNumber  string               `json:"shipment_number" bson:"shipment_number"`
	CustomerID      string               `json:"customer_id" bson:"customer_id"`
	DriverID        string               `json:"driver_id,omitempty" bson:"driver_id,omitempty"`
	VehicleID       string               `json:"vehicle_id,omitempty" bson:"vehicle_id,omitempty"`
	TripID          string               `json:"trip_id,omitempty" bson:"trip_id,omitempty"`
	PickupAddress   Address              `json:"pickup_address" bson:"pickup_address"`
	DeliveryAddress Address              `json:"delivery_address" bson:"delivery_address"`
	Cargo           CargoInfo            `json:"cargo" bson:"cargo"`
	VehicleType     VehicleType          `json:"vehicle_type" bson:"vehicle_type"`
	DistanceKm      float64              `json:"distance_km" bson:"distance_km"`
	EstimatedCost   float64              `json:"estimated_cost" bson:"estimated_cost"`
	ActualCost      *float64             `json:"actual_cost,omitempty" bson:"actual_cost,omitempty"`
	DriverFee       float64              `json:"driver_fee,omitempty" bson:"driver_fee,omitempty"`
	AdditionalFees  []AdditionalFee      `json:"additional_fees,omitempty" bson:"additional_fees,omitempty"`
	AppliedRules    []string             `json:"applied_rules,omitempty" bson:"applied_rules,omitempty"`
	Status          ShipmentStatus       `json:"status" bson:"status"`
	Timeline        map[string]time.Time `json:"timeline" bson:"timeline"`
	CancelReason    string               `json:"cancel_reason,omitempty" bson:"cancel_reason,omitempty"`
	DeliveryNotes   string               `json:"delivery_notes,omitempty" bson:"delivery_notes,omitempty"`
	CreatedAt       time.Time            `json:"created_at" bson:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at" bson:"updated_at"`
}

// FinalCost returns ActualCost when set, EstimatedCost otherwise.
func (s *Shipment) FinalCost() float64 {
	if s.ActualCost != nil {
		return *s.ActualCost
	}
	return s.EstimatedCost
}

// TimelineAt returns the timestamp a timeline key was first stamped at.
func (s *Shipment) TimelineAt(key string) (time.Time, bool) {
	if s.Timeline == nil {
		return time.Time{}, false
	}
	t, ok := s.Timeline[key]
	return t, ok
}
