package ports

import (
	"context"

	"github.com/transflow/tms-backend/internal/core/domain"
)

// AddressInput holds a pickup or delivery location. Coordinates are
// optional; when either side lacks them, pricing falls back to the postal
// code heuristic.
type AddressInput struct {
	Address     string
	City        string
	PostalCode  string
	Coordinates *domain.Coordinates
}

// CargoInput holds the cargo attributes pricing decides the vehicle from.
type CargoInput struct {
	WeightKg              float64
	VolumeM3              float64
	Dimensions            domain.Dimensions
	DeclaredValue         float64
	Hazardous             bool
	RequiresRefrigeration bool
	RequiresTailgate      bool
	Description           string
}

// QuoteRequest carries everything needed to price a shipment.
type QuoteRequest struct {
	CustomerID      string
	PickupAddress   AddressInput
	DeliveryAddress AddressInput
	Cargo           CargoInput
	WeekendDelivery bool
	Urgent          bool
	TripID          string
}

// FeeInput is an additional fee appended after quoting.
type FeeInput struct {
	Name   string
	Amount float64
	Reason string
}

// PricingService produces deterministic quotes and manages post-quote fees.
type PricingService interface {
	// GenerateQuote prices the request and persists a shipment in its
	// initial lifecycle state. A successful quote always has a durable,
	// queryable shipment record behind it.
	GenerateQuote(ctx context.Context, tenantID string, req QuoteRequest) (*domain.Quote, error)
	// AddAdditionalFee appends a fee and re-derives the actual cost from
	// the original estimate plus all accumulated fees.
	AddAdditionalFee(ctx context.Context, tenantID, shipmentID string, fee FeeInput) (*domain.Shipment, error)
}
