package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/transflow/tms-backend/internal/api/metrics"
	"github.com/transflow/tms-backend/internal/core/domain"
	"github.com/transflow/tms-backend/internal/core/ports"
)

// Per-km base rates by vehicle type.
var vehicleBaseRates = map[domain.VehicleType]float64{
	domain.VehicleVan:          2.0,
	domain.VehicleTruck:        3.0,
	domain.VehicleTrailer:      4.5,
	domain.VehicleRefrigerated: 5.5,
}

// Flat special fees.
const (
	hazardousFee = 500.0
	tailgateFee  = 150.0
	weekendFee   = 200.0
	urgentFee    = 300.0

	minimumBaseFee = 50.0
	quoteValidity  = 24 * time.Hour

	// quoteNumberPrefix marks a shipment number as a temporary quote
	// number; conversion regenerates it with shipmentNumberPrefix.
	quoteNumberPrefix    = "QT"
	shipmentNumberPrefix = "SH"
)

// PricingService produces deterministic quotes: fixed fee formulas plus
// rule-engine-sourced discounts and surcharges.
type PricingService struct {
	engine    *RuleEngine
	shipments ports.ShipmentRepository
	customers ports.CustomerRepository
	log       zerolog.Logger
}

func NewPricingService(engine *RuleEngine, shipments ports.ShipmentRepository, customers ports.CustomerRepository, log zerolog.Logger) *PricingService {
	return &PricingService{engine: engine, shipments: shipments, customers: customers, log: log}
}

// GenerateQuote prices the request and persists the shipment in its initial
// lifecycle state. Given identical request, ruleset and distance inputs the
// cost output is deterministic; only ValidUntil and the shipment id vary.
func (s *PricingService) GenerateQuote(ctx context.Context, tenantID string, req ports.QuoteRequest) (*domain.Quote, error) {
	if err := validateQuoteRequest(req); err != nil {
		return nil, err
	}

	customer, err := s.customers.Get(ctx, tenantID, req.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("generate quote: %w", err)
	}

	distance := s.resolveDistance(req.PickupAddress, req.DeliveryAddress)
	vehicleType := determineVehicleType(req.Cargo)
	rate := vehicleBaseRates[vehicleType]

	breakdown := domain.CostBreakdown{
		BaseFee:     math.Max(minimumBaseFee, distance*rate),
		DistanceFee: distanceFee(distance, rate),
		WeightFee:   weightFee(req.Cargo.WeightKg),
		VolumeFee:   volumeFee(req.Cargo.VolumeM3),
		SpecialFees: specialFees(req),
	}
	subtotal := breakdown.BaseFee + breakdown.DistanceFee + breakdown.WeightFee +
		breakdown.VolumeFee + breakdown.SpecialFees

	customerLevel := customer.Level
	if customerLevel == "" {
		customerLevel = "standard"
	}
	facts := domain.Facts{
		"distance":      distance,
		"weight":        req.Cargo.WeightKg,
		"volume":        req.Cargo.VolumeM3,
		"customerLevel": customerLevel,
		"isHazardous":   req.Cargo.Hazardous,
		"declaredValue": req.Cargo.DeclaredValue,
		"vehicleType":   string(vehicleType),
		"isWeekend":     req.WeekendDelivery,
		"isUrgent":      req.Urgent,
	}

	eval, err := s.engine.Evaluate(ctx, tenantID, domain.RuleTypePricing, facts)
	if err != nil {
		return nil, fmt.Errorf("generate quote: %w", err)
	}

	total, appliedRules := s.applyPricingEvents(subtotal, eval.Events, &breakdown)
	// Final cost never goes below zero, whatever the discounts say.
	total = math.Max(0, total)

	now := time.Now().UTC()
	shipment := &domain.Shipment{
		ID:              uuid.NewString(),
		TenantID:        tenantID,
		ShipmentNumber:  generateShipmentNumber(quoteNumberPrefix, now),
		CustomerID:      req.CustomerID,
		TripID:          req.TripID,
		PickupAddress:   toAddress(req.PickupAddress),
		DeliveryAddress: toAddress(req.DeliveryAddress),
		Cargo:           toCargo(req.Cargo),
		VehicleType:     vehicleType,
		DistanceKm:      distance,
		EstimatedCost:   total,
		AppliedRules:    appliedRules,
		Status:          domain.StatusPendingConfirmation,
		// Quote creation passes through draft on the way to
		// pending_confirmation; both stamps land in the timeline.
		Timeline: map[string]time.Time{
			domain.TimelineCreated: now,
			"draft":                now,
			"pendingConfirmation":  now,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.shipments.Create(ctx, shipment); err != nil {
		return nil, fmt.Errorf("generate quote: persist shipment: %w", err)
	}

	metrics.QuotesGeneratedTotal.WithLabelValues(string(vehicleType)).Inc()
	metrics.QuoteAmount.Observe(total)

	s.log.Info().
		Str("tenant_id", tenantID).
		Str("shipment_number", shipment.ShipmentNumber).
		Str("vehicle_type", string(vehicleType)).
		Float64("distance_km", distance).
		Float64("estimated_cost", total).
		Strs("applied_rules", appliedRules).
		Msg("quote generated")

	return &domain.Quote{
		ShipmentID:     shipment.ID,
		ShipmentNumber: shipment.ShipmentNumber,
		VehicleType:    vehicleType,
		DistanceKm:     distance,
		Breakdown:      breakdown,
		EstimatedCost:  total,
		AppliedRules:   appliedRules,
		ValidUntil:     now.Add(quoteValidity),
	}, nil
}

// feeAppendRetries bounds the re-read loop when concurrent appends keep
// losing the fee-count guard.
const feeAppendRetries = 3

// AddAdditionalFee appends a fee and recomputes the actual cost as the
// original estimate plus all accumulated fees. The estimate is the base of
// every recomputation; repeated calls never compound against a prior
// actual cost. The append is guarded on the fee count read here, so a
// concurrent append cannot silently drop a fee: the loser re-reads and
// recomputes.
func (s *PricingService) AddAdditionalFee(ctx context.Context, tenantID, shipmentID string, fee ports.FeeInput) (*domain.Shipment, error) {
	if fee.Name == "" || fee.Amount < 0 {
		return nil, fmt.Errorf("%w: fee requires a name and a non-negative amount", domain.ErrValidation)
	}

	newFee := domain.AdditionalFee{
		Name:      fee.Name,
		Amount:    fee.Amount,
		Reason:    fee.Reason,
		CreatedAt: time.Now().UTC(),
	}

	for attempt := 0; attempt < feeAppendRetries; attempt++ {
		shipment, err := s.shipments.Get(ctx, tenantID, shipmentID)
		if err != nil {
			return nil, fmt.Errorf("add additional fee: %w", err)
		}

		actual := shipment.EstimatedCost + newFee.Amount
		for _, f := range shipment.AdditionalFees {
			actual += f.Amount
		}

		err = s.shipments.AppendAdditionalFee(ctx, tenantID, shipmentID, newFee, len(shipment.AdditionalFees), actual)
		if errors.Is(err, ports.ErrTransitionConflict) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("add additional fee: %w", err)
		}

		shipment.AdditionalFees = append(shipment.AdditionalFees, newFee)
		shipment.ActualCost = &actual

		s.log.Info().
			Str("tenant_id", tenantID).
			Str("shipment_id", shipmentID).
			Str("fee", fee.Name).
			Float64("amount", fee.Amount).
			Float64("actual_cost", actual).
			Msg("additional fee appended")
		return shipment, nil
	}

	return nil, fmt.Errorf("add additional fee: contention on shipment %s, retry", shipmentID)
}

func validateQuoteRequest(req ports.QuoteRequest) error {
	switch {
	case req.CustomerID == "":
		return fmt.Errorf("%w: customer id is required", domain.ErrValidation)
	case req.PickupAddress.Address == "" || req.DeliveryAddress.Address == "":
		return fmt.Errorf("%w: pickup and delivery addresses are required", domain.ErrValidation)
	case req.Cargo.WeightKg < 0 || req.Cargo.VolumeM3 < 0:
		return fmt.Errorf("%w: cargo weight and volume must be non-negative", domain.ErrValidation)
	case req.Cargo.Dimensions.LengthM < 0 || req.Cargo.Dimensions.WidthM < 0 || req.Cargo.Dimensions.HeightM < 0:
		return fmt.Errorf("%w: cargo dimensions must be non-negative", domain.ErrValidation)
	}
	return nil
}

// resolveDistance uses great-circle distance when both sides carry
// coordinates and falls back to the postal-code heuristic otherwise.
func (s *PricingService) resolveDistance(pickup, delivery ports.AddressInput) float64 {
	if pickup.Coordinates != nil && delivery.Coordinates != nil {
		return haversineKm(*pickup.Coordinates, *delivery.Coordinates)
	}
	s.log.Debug().
		Str("pickup_postal", pickup.PostalCode).
		Str("delivery_postal", delivery.PostalCode).
		Msg("coordinates missing, using postal-code distance heuristic")
	return postalCodeDistanceKm(pickup.PostalCode, delivery.PostalCode)
}

// determineVehicleType is a pure decision tree over cargo attributes.
func determineVehicleType(cargo ports.CargoInput) domain.VehicleType {
	switch {
	case cargo.RequiresRefrigeration:
		return domain.VehicleRefrigerated
	case cargo.WeightKg > 15000 || cargo.VolumeM3 > 60:
		return domain.VehicleTrailer
	case cargo.WeightKg > 5000 || cargo.VolumeM3 > 30:
		return domain.VehicleTruck
	default:
		return domain.VehicleVan
	}
}

// distanceFee is tiered: first 50 km at full rate, 50-200 km at 0.8x, and
// everything beyond 200 km at 0.6x.
func distanceFee(distance, rate float64) float64 {
	switch {
	case distance <= 50:
		return distance * rate
	case distance <= 200:
		return 50*rate + (distance-50)*rate*0.8
	default:
		return 50*rate + 150*rate*0.8 + (distance-200)*rate*0.6
	}
}

// weightFee is banded, each band charged only over its own sub-range.
func weightFee(weight float64) float64 {
	fee := 0.0
	if weight > 15000 {
		fee += (weight - 15000) * 0.2
		weight = 15000
	}
	if weight > 5000 {
		fee += (weight - 5000) * 0.3
		weight = 5000
	}
	if weight > 1000 {
		fee += (weight - 1000) * 0.5
	}
	return fee
}

// volumeFee mirrors the weight banding with volume thresholds.
func volumeFee(volume float64) float64 {
	fee := 0.0
	if volume > 60 {
		fee += (volume - 60) * 2
		volume = 60
	}
	if volume > 30 {
		fee += (volume - 30) * 3
		volume = 30
	}
	if volume > 10 {
		fee += (volume - 10) * 5
	}
	return fee
}

// specialFees are flat and independent of each other.
func specialFees(req ports.QuoteRequest) float64 {
	fee := 0.0
	if req.Cargo.Hazardous {
		fee += hazardousFee
	}
	if req.Cargo.RequiresTailgate {
		fee += tailgateFee
	}
	if req.WeekendDelivery {
		fee += weekendFee
	}
	if req.Urgent {
		fee += urgentFee
	}
	return fee
}

// applyPricingEvents folds every matched pricing event into the running
// total in event order. Discounts subtract a percentage of the running
// total; flat fees add. setBaseRate and setCustomerLevel are recognized
// but deliberately not applied here (reserved for upstream use); they are
// logged and skipped, not errors.
func (s *PricingService) applyPricingEvents(subtotal float64, events []domain.RuleEvent, breakdown *domain.CostBreakdown) (float64, []string) {
	total := subtotal
	var applied []string

	for _, ev := range events {
		if ev.Type != domain.RuleTypePricing {
			continue
		}
		applied = append(applied, ev.RuleName)
		for _, action := range ev.Actions {
			switch action.Type {
			case domain.ActionApplyDiscount:
				pct, ok := action.NumParam("percentage")
				if !ok {
					s.log.Warn().Str("rule", ev.RuleName).Msg("applyDiscount without percentage param")
					continue
				}
				d := total * pct / 100
				breakdown.Discount += d
				total -= d
			case domain.ActionAddFee:
				amount, ok := action.NumParam("amount")
				if !ok {
					s.log.Warn().Str("rule", ev.RuleName).Msg("addFee without amount param")
					continue
				}
				breakdown.Surcharge += amount
				total += amount
			case domain.ActionSetBaseRate, domain.ActionSetCustomerLevel:
				// Recognized no-ops: these actions are reserved for
				// upstream use and intentionally not applied here.
				s.log.Debug().Str("rule", ev.RuleName).Str("action", string(action.Type)).Msg("no-op pricing action skipped")
			default:
				s.log.Warn().Str("rule", ev.RuleName).Str("action", string(action.Type)).Msg("unsupported pricing action skipped")
			}
		}
	}
	return total, applied
}

func toAddress(in ports.AddressInput) domain.Address {
	addr := domain.Address{
		Address:    in.Address,
		City:       in.City,
		PostalCode: in.PostalCode,
	}
	if in.Coordinates != nil {
		addr.Coordinates = *in.Coordinates
	}
	return addr
}

func toCargo(in ports.CargoInput) domain.CargoInfo {
	return domain.CargoInfo{
		WeightKg:              in.WeightKg,
		VolumeM3:              in.VolumeM3,
		Dimensions:            in.Dimensions,
		DeclaredValue:         in.DeclaredValue,
		Hazardous:             in.Hazardous,
		RequiresRefrigeration: in.RequiresRefrigeration,
		RequiresTailgate:      in.RequiresTailgate,
		Description:           in.Description,
	}
}

// generateShipmentNumber returns a number in the format PFX-YYYYMMDD-XXXXXX.
func generateShipmentNumber(prefix string, at time.Time) string {
	b := make([]byte, 3)
	if _, err := rand.Read(b); err != nil {
		// fallback: use current nanoseconds
		return fmt.Sprintf("%s-%s-%06X", prefix, at.Format("20060102"), at.UnixNano()&0xFFFFFF)
	}
	return fmt.Sprintf("%s-%s-%06X", prefix, at.Format("20060102"), b)
}
