package domain

// DriverStatus is the dispatch availability of a driver.
type DriverStatus string

const (
	DriverActive    DriverStatus = "active"
	DriverAvailable DriverStatus = "available"
	DriverBusy      DriverStatus = "busy"
	DriverInactive  DriverStatus = "inactive"
)

// Assignable reports whether a driver in this status may take a shipment.
func (s DriverStatus) Assignable() bool {
	return s == DriverActive || s == DriverAvailable
}

// Driver is the minimal driver projection the core needs.
type Driver struct {
	ID       string       `json:"id" bson:"_id"`
	TenantID string       `json:"tenant_id" bson:"tenant_id"`
	Name     string       `json:"name" bson:"name"`
	Phone    string       `json:"phone,omitempty" bson:"phone,omitempty"`
	Status   DriverStatus `json:"status" bson:"status"`
}

// Customer is the minimal customer projection used by pricing.
type Customer struct {
	ID       string `json:"id" bson:"_id"`
	TenantID string `json:"tenant_id" bson:"tenant_id"`
	Name     string `json:"name" bson:"name"`
	// Level feeds the customerLevel fact ("standard", "silver", "gold", ...).
	Level string `json:"level" bson:"level"`
}
