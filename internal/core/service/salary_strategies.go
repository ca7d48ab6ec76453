package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/transflow/tms-backend/internal/core/domain"
)

// errStrategyNotApplicable signals that a strategy offered to run but found
// nothing to apply, so the chain proceeds to the next member.
var errStrategyNotApplicable = errors.New("strategy not applicable")

// salaryContext is the per-shipment input a strategy works from. Strategies
// hold no shared mutable state; the context carries everything.
type salaryContext struct {
	tenantID string
	shipment *domain.Shipment
	driver   *domain.Driver
	trip     *domain.Trip

	finalCost     float64
	distance      float64
	weight        float64
	volume        float64
	deliveryTime  float64 // milliseconds between pickup start and delivery
	customerLevel string
}

// salaryStrategy is one member of the commission calculation chain.
type salaryStrategy interface {
	Name() domain.SalaryStrategy
	// CanApply is a cheap applicability check; Calculate may still decline
	// by returning errStrategyNotApplicable.
	CanApply(sc *salaryContext) bool
	Calculate(ctx context.Context, sc *salaryContext) (*domain.SalaryCalculationResult, error)
}

// tripOverrideStrategy applies when the shipment belongs to a trip with a
// positive trip fee. The fee is prorated equally across the trip's
// shipments; proration is deliberately not weighted by distance or cost.
type tripOverrideStrategy struct{}

func (tripOverrideStrategy) Name() domain.SalaryStrategy { return domain.StrategyTripOverride }

func (tripOverrideStrategy) CanApply(sc *salaryContext) bool {
	return sc.trip != nil && sc.trip.TripFee > 0 && len(sc.trip.ShipmentIDs) > 0
}

func (s tripOverrideStrategy) Calculate(_ context.Context, sc *salaryContext) (*domain.SalaryCalculationResult, error) {
	count := len(sc.trip.ShipmentIDs)
	commission := round2(sc.trip.TripFee / float64(count))
	return newResult(sc, commission, s.Name(), domain.SalaryDetails{
		BaseAmount:     sc.trip.TripFee,
		OverrideReason: fmt.Sprintf("trip %s fee %.2f split across %d shipments", sc.trip.TripNo, sc.trip.TripFee, count),
		FinalCost:      sc.finalCost,
	}), nil
}

// ruleEngineStrategy always offers to apply; it evaluates payroll rules and
// looks for a setDriverCommission action on the selected event. When no
// qualifying action exists it declines so the chain proceeds; it never
// silently returns zero.
type ruleEngineStrategy struct {
	engine *RuleEngine
}

func (ruleEngineStrategy) Name() domain.SalaryStrategy { return domain.StrategyRuleEngine }

func (ruleEngineStrategy) CanApply(*salaryContext) bool { return true }

func (s ruleEngineStrategy) Calculate(ctx context.Context, sc *salaryContext) (*domain.SalaryCalculationResult, error) {
	facts := domain.Facts{
		"shipmentId":    sc.shipment.ID,
		"finalCost":     sc.finalCost,
		"distance":      sc.distance,
		"weight":        sc.weight,
		"volume":        sc.volume,
		"deliveryTime":  sc.deliveryTime,
		"customerLevel": sc.customerLevel,
	}
	if sc.driver != nil {
		facts["driverId"] = sc.driver.ID
	} else if sc.shipment.DriverID != "" {
		facts["driverId"] = sc.shipment.DriverID
	}

	eval, err := s.engine.Evaluate(ctx, sc.tenantID, domain.RuleTypePayroll, facts)
	if err != nil {
		return nil, err
	}

	event, _, ok := SelectPayrollEvent(eval.Events)
	if !ok {
		return nil, errStrategyNotApplicable
	}

	for _, action := range event.Actions {
		if action.Type != domain.ActionSetDriverCommission {
			continue
		}
		pct, pok := action.NumParam("percentage")
		if !pok {
			continue
		}
		commission := round2(sc.finalCost * pct / 100)
		return newResult(sc, commission, s.Name(), domain.SalaryDetails{
			BaseAmount: sc.finalCost,
			Percentage: pct,
			RuleID:     event.RuleID,
			RuleName:   event.RuleName,
			FinalCost:  sc.finalCost,
		}), nil
	}
	return nil, errStrategyNotApplicable
}

// driverFeeOverrideStrategy applies when an explicit driver fee was set on
// the shipment; the fee is taken verbatim.
type driverFeeOverrideStrategy struct{}

func (driverFeeOverrideStrategy) Name() domain.SalaryStrategy { return domain.StrategyDriverFeeOverride }

func (driverFeeOverrideStrategy) CanApply(sc *salaryContext) bool {
	return sc.shipment.DriverFee > 0
}

func (s driverFeeOverrideStrategy) Calculate(_ context.Context, sc *salaryContext) (*domain.SalaryCalculationResult, error) {
	return newResult(sc, sc.shipment.DriverFee, s.Name(), domain.SalaryDetails{
		BaseAmount:     sc.shipment.DriverFee,
		OverrideReason: "explicit driver fee set on shipment",
		FinalCost:      sc.finalCost,
	}), nil
}

// manualAdjustmentStrategy is the terminal fallback. It always applies and
// never fails; commission is zero pending manual review.
type manualAdjustmentStrategy struct{}

func (manualAdjustmentStrategy) Name() domain.SalaryStrategy { return domain.StrategyManualAdjustment }

func (manualAdjustmentStrategy) CanApply(*salaryContext) bool { return true }

func (s manualAdjustmentStrategy) Calculate(_ context.Context, sc *salaryContext) (*domain.SalaryCalculationResult, error) {
	return newResult(sc, 0, s.Name(), domain.SalaryDetails{
		OverrideReason: "no applicable calculation method, manual adjustment required",
		FinalCost:      sc.finalCost,
	}), nil
}

func newResult(sc *salaryContext, commission float64, strategy domain.SalaryStrategy, details domain.SalaryDetails) *domain.SalaryCalculationResult {
	return &domain.SalaryCalculationResult{
		ShipmentID:     sc.shipment.ID,
		ShipmentNumber: sc.shipment.ShipmentNumber,
		Commission:     commission,
		Strategy:       strategy,
		Details:        details,
		CalculatedAt:   time.Now().UTC(),
	}
}
