package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/transflow/tms-backend/internal/api/metrics"
	"github.com/transflow/tms-backend/internal/core/domain"
	"github.com/transflow/tms-backend/internal/core/ports"
)

// DriverSalaryService walks a fixed, priority-ordered chain of commission
// strategies and applies exactly one per shipment: trip-fee proration, then
// rule-engine commission, then explicit driver-fee override, then a manual
// zero fallback.
type DriverSalaryService struct {
	chain   []salaryStrategy
	trips   ports.TripRepository
	finance ports.FinancialRecorder
	log     zerolog.Logger
}

func NewDriverSalaryService(engine *RuleEngine, trips ports.TripRepository, finance ports.FinancialRecorder, log zerolog.Logger) *DriverSalaryService {
	return &DriverSalaryService{
		chain: []salaryStrategy{
			tripOverrideStrategy{},
			ruleEngineStrategy{engine: engine},
			driverFeeOverrideStrategy{},
			manualAdjustmentStrategy{},
		},
		trips:   trips,
		finance: finance,
		log:     log,
	}
}

// CalculateCommission selects the first strategy whose CanApply is true and
// whose Calculate succeeds. The manual fallback always succeeds, so an
// exhausted chain indicates a programming defect, not a normal error path.
func (s *DriverSalaryService) CalculateCommission(ctx context.Context, tenantID string, shipment *domain.Shipment, driver *domain.Driver, trip *domain.Trip) (*domain.SalaryCalculationResult, error) {
	if shipment == nil {
		return nil, fmt.Errorf("%w: shipment is required", domain.ErrValidation)
	}

	sc := buildSalaryContext(tenantID, shipment, driver, trip)

	for _, strategy := range s.chain {
		if !strategy.CanApply(sc) {
			continue
		}
		result, err := strategy.Calculate(ctx, sc)
		if err != nil {
			s.log.Debug().Err(err).
				Str("tenant_id", tenantID).
				Str("shipment_id", shipment.ID).
				Str("strategy", string(strategy.Name())).
				Msg("strategy declined, trying next")
			continue
		}

		metrics.SalaryStrategyTotal.WithLabelValues(string(result.Strategy)).Inc()
		s.log.Info().
			Str("tenant_id", tenantID).
			Str("shipment_number", shipment.ShipmentNumber).
			Str("strategy", string(result.Strategy)).
			Float64("commission", result.Commission).
			Msg("commission calculated")

		s.recordEntry(ctx, tenantID, shipment, result)
		return result, nil
	}

	return nil, fmt.Errorf("salary chain exhausted for shipment %s: manual fallback must always apply", shipment.ID)
}

// CalculateBatchCommissions resolves every distinct trip referenced by the
// batch in one query, then calculates per shipment. One shipment's failure
// degrades to a zero-commission manual result and never aborts the batch;
// result order matches input order.
func (s *DriverSalaryService) CalculateBatchCommissions(ctx context.Context, tenantID string, shipments []*domain.Shipment, driver *domain.Driver) ([]*domain.SalaryCalculationResult, error) {
	tripByID, err := s.fetchTrips(ctx, tenantID, shipments)
	if err != nil {
		return nil, fmt.Errorf("batch commissions: %w", err)
	}

	results := make([]*domain.SalaryCalculationResult, 0, len(shipments))
	for _, shipment := range shipments {
		var trip *domain.Trip
		if shipment.TripID != "" {
			trip = tripByID[shipment.TripID]
		}

		result, err := s.CalculateCommission(ctx, tenantID, shipment, driver, trip)
		if err != nil {
			s.log.Error().Err(err).
				Str("tenant_id", tenantID).
				Str("shipment_id", shipment.ID).
				Msg("commission calculation failed, degrading to manual adjustment")
			result = &domain.SalaryCalculationResult{
				ShipmentID:     shipment.ID,
				ShipmentNumber: shipment.ShipmentNumber,
				Commission:     0,
				Strategy:       domain.StrategyManualAdjustment,
				Details: domain.SalaryDetails{
					OverrideReason: err.Error(),
					FinalCost:      shipment.FinalCost(),
				},
				CalculatedAt: time.Now().UTC(),
			}
		}
		results = append(results, result)
	}
	return results, nil
}

// fetchTrips collects the distinct trip ids of the batch and loads them in
// a single query.
func (s *DriverSalaryService) fetchTrips(ctx context.Context, tenantID string, shipments []*domain.Shipment) (map[string]*domain.Trip, error) {
	seen := make(map[string]struct{})
	var ids []string
	for _, sh := range shipments {
		if sh.TripID == "" {
			continue
		}
		if _, ok := seen[sh.TripID]; ok {
			continue
		}
		seen[sh.TripID] = struct{}{}
		ids = append(ids, sh.TripID)
	}

	byID := make(map[string]*domain.Trip, len(ids))
	if len(ids) == 0 {
		return byID, nil
	}

	trips, err := s.trips.GetByIDs(ctx, tenantID, ids)
	if err != nil {
		return nil, err
	}
	for _, t := range trips {
		byID[t.ID] = t
	}
	return byID, nil
}

// recordEntry mirrors a calculated commission to the bookkeeping side
// channel. Failures are logged and swallowed: bookkeeping must never roll
// back a salary computation.
func (s *DriverSalaryService) recordEntry(ctx context.Context, tenantID string, shipment *domain.Shipment, result *domain.SalaryCalculationResult) {
	if s.finance == nil || result.Commission == 0 {
		return
	}
	entry := domain.FinancialEntry{
		Type:       "driver_payable",
		ShipmentID: shipment.ID,
		DriverID:   shipment.DriverID,
		Amount:     result.Commission,
		Memo:       fmt.Sprintf("commission via %s", result.Strategy),
		CreatedAt:  result.CalculatedAt,
	}
	if err := s.finance.Record(ctx, tenantID, entry); err != nil {
		s.log.Warn().Err(err).
			Str("tenant_id", tenantID).
			Str("shipment_id", shipment.ID).
			Msg("failed to record financial entry")
	}
}

// buildSalaryContext derives the fact inputs: final cost falls back from
// actual to estimated, delivery time is the pickup-to-delivered timeline
// delta in milliseconds (zero when either stamp is missing), and the
// customer level defaults to standard.
func buildSalaryContext(tenantID string, shipment *domain.Shipment, driver *domain.Driver, trip *domain.Trip) *salaryContext {
	deliveryTime := 0.0
	pickupAt, pok := shipment.TimelineAt("pickupInProgress")
	deliveredAt, dok := shipment.TimelineAt("delivered")
	if pok && dok {
		deliveryTime = float64(deliveredAt.Sub(pickupAt).Milliseconds())
	}

	return &salaryContext{
		tenantID:      tenantID,
		shipment:      shipment,
		driver:        driver,
		trip:          trip,
		finalCost:     shipment.FinalCost(),
		distance:      shipment.DistanceKm,
		weight:        shipment.Cargo.WeightKg,
		volume:        shipment.Cargo.VolumeM3,
		deliveryTime:  deliveryTime,
		customerLevel: "standard",
	}
}
