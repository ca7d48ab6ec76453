package domain

import "time"

// VehicleType is decided by a pure decision tree over cargo attributes.
type VehicleType string

const (
	VehicleVan          VehicleType = "van"
	VehicleTruck        VehicleType = "truck"
	VehicleTrailer      VehicleType = "trailer"
	VehicleRefrigerated VehicleType = "refrigerated"
)

// CostBreakdown itemizes a quote. All amounts are currency-agnostic units.
type CostBreakdown struct {
	BaseFee     float64 `json:"base_fee"`
	DistanceFee float64 `json:"distance_fee"`
	WeightFee   float64 `json:"weight_fee"`
	VolumeFee   float64 `json:"volume_fee"`
	SpecialFees float64 `json:"special_fees"`
	Discount    float64 `json:"discount"`
	Surcharge   float64 `json:"surcharge"`
}

// Quote is the result of a pricing run. A successful quote always has a
// durable shipment record behind it.
type Quote struct {
	ShipmentID     string        `json:"shipment_id"`
	ShipmentNumber string        `json:"shipment_number"`
	VehicleType    VehicleType   `json:"vehicle_type"`
	DistanceKm     float64       `json:"distance_km"`
	Breakdown      CostBreakdown `json:"breakdown"`
	EstimatedCost  float64       `json:"estimated_cost"`
	AppliedRules   []string      `json:"applied_rules,omitempty"`
	ValidUntil     time.Time     `json:"valid_until"`
}
