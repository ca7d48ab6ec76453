package domain

import "time"

// SalaryStrategy tags which chain member produced a commission.
type SalaryStrategy string

const (
	StrategyTripOverride      SalaryStrategy = "trip-override"
	StrategyRuleEngine        SalaryStrategy = "rule-engine"
	StrategyDriverFeeOverride SalaryStrategy = "driver-fee-override"
	StrategyManualAdjustment  SalaryStrategy = "manual-adjustment"
)

// SalaryDetails explains how a commission was derived.
type SalaryDetails struct {
	BaseAmount     float64 `json:"base_amount,omitempty"`
	Percentage     float64 `json:"percentage,omitempty"`
	RuleID         string  `json:"rule_id,omitempty"`
	RuleName       string  `json:"rule_name,omitempty"`
	OverrideReason string  `json:"override_reason,omitempty"`
	FinalCost      float64 `json:"final_cost,omitempty"`
}

// SalaryCalculationResult is the outcome of one strategy evaluation for one
// shipment. Ephemeral; persisted only via the financial-record collaborator.
type SalaryCalculationResult struct {
	ShipmentID     string         `json:"shipment_id"`
	ShipmentNumber string         `json:"shipment_number"`
	Commission     float64        `json:"commission"`
	Strategy       SalaryStrategy `json:"strategy"`
	Details        SalaryDetails  `json:"details"`
	CalculatedAt   time.Time      `json:"calculated_at"`
}

// FinancialEntry is the payable/receivable record mirrored to bookkeeping.
type FinancialEntry struct {
	Type       string    `json:"type" bson:"type"`
	ShipmentID string    `json:"shipment_id" bson:"shipment_id"`
	DriverID   string    `json:"driver_id,omitempty" bson:"driver_id,omitempty"`
	Amount     float64   `json:"amount" bson:"amount"`
	Memo       string    `json:"memo,omitempty" bson:"memo,omitempty"`
	CreatedAt  time.Time `json:"created_at" bson:"created_at"`
}
