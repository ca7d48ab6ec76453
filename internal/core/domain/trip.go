package domain

// Trip groups shipments hauled together. When TripFee is positive it is a
// fixed all-inclusive price for every shipment in the trip and becomes the
// highest-priority payroll signal. Read-only from the salary service.
type Trip struct {
	ID          string   `json:"id" bson:"_id"`
	TenantID    string   `json:"tenant_id" bson:"tenant_id"`
	TripNo      string   `json:"trip_no" bson:"trip_no"`
	TripFee     float64  `json:"trip_fee,omitempty" bson:"trip_fee,omitempty"`
	ShipmentIDs []string `json:"shipment_ids" bson:"shipment_ids"`
}
