package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/transflow/tms-backend/internal/core/domain"
	"github.com/transflow/tms-backend/internal/core/ports"
)

// ---------------------------------------------------------------------------
// In-memory stubs
// ---------------------------------------------------------------------------

type stubCustomerRepo struct {
	customers map[string]*domain.Customer
}

func (r *stubCustomerRepo) Get(_ context.Context, _, id string) (*domain.Customer, error) {
	c, ok := r.customers[id]
	if !ok {
		return nil, domain.ErrCustomerNotFound
	}
	clone := *c
	return &clone, nil
}

type stubPricingShipmentRepo struct {
	created  []*domain.Shipment
	byID     map[string]*domain.Shipment
	lastFees []domain.AdditionalFee
	lastCost float64
}

func newStubPricingShipmentRepo() *stubPricingShipmentRepo {
	return &stubPricingShipmentRepo{byID: make(map[string]*domain.Shipment)}
}

func (r *stubPricingShipmentRepo) Create(_ context.Context, s *domain.Shipment) error {
	clone := *s
	r.created = append(r.created, &clone)
	r.byID[s.ID] = &clone
	return nil
}

func (r *stubPricingShipmentRepo) Get(_ context.Context, _, id string) (*domain.Shipment, error) {
	s, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrShipmentNotFound
	}
	clone := *s
	return &clone, nil
}

func (r *stubPricingShipmentRepo) GetByNumber(_ context.Context, _, _ string) (*domain.Shipment, error) {
	return nil, domain.ErrShipmentNotFound
}

func (r *stubPricingShipmentRepo) List(_ context.Context, _ string, _ ports.ListShipmentsFilter) ([]*domain.Shipment, int64, error) {
	return nil, 0, nil
}

func (r *stubPricingShipmentRepo) FindActiveByDriver(_ context.Context, _, _ string, _ []domain.ShipmentStatus) ([]*domain.Shipment, error) {
	return nil, nil
}

func (r *stubPricingShipmentRepo) ApplyTransition(_ context.Context, _, _ string, _ ports.TransitionUpdate) (*domain.Shipment, error) {
	return nil, ports.ErrTransitionConflict
}

func (r *stubPricingShipmentRepo) AppendAdditionalFee(_ context.Context, _, id string, fee domain.AdditionalFee, expectedFees int, actualCost float64) error {
	s, ok := r.byID[id]
	if !ok {
		return domain.ErrShipmentNotFound
	}
	if len(s.AdditionalFees) != expectedFees {
		return ports.ErrTransitionConflict
	}
	s.AdditionalFees = append(s.AdditionalFees, fee)
	cost := actualCost
	s.ActualCost = &cost
	r.lastFees = s.AdditionalFees
	r.lastCost = actualCost
	return nil
}

func newTestPricingService(repo *stubPricingShipmentRepo, rules ...domain.Rule) *PricingService {
	customers := &stubCustomerRepo{customers: map[string]*domain.Customer{
		"c1": {ID: "c1", TenantID: "t1", Name: "Acme", Level: "gold"},
	}}
	return NewPricingService(newTestEngine(rules...), repo, customers, discardLogger)
}

func postalQuoteRequest(fromPostal, toPostal string, cargo ports.CargoInput) ports.QuoteRequest {
	return ports.QuoteRequest{
		CustomerID:      "c1",
		PickupAddress:   ports.AddressInput{Address: "Origin St 1", PostalCode: fromPostal},
		DeliveryAddress: ports.AddressInput{Address: "Dest Av 2", PostalCode: toPostal},
		Cargo:           cargo,
	}
}

// ---------------------------------------------------------------------------
// Fee formulas
// ---------------------------------------------------------------------------

func TestDetermineVehicleType(t *testing.T) {
	cases := []struct {
		name  string
		cargo ports.CargoInput
		want  domain.VehicleType
	}{
		{"light parcel", ports.CargoInput{WeightKg: 400, VolumeM3: 2}, domain.VehicleVan},
		{"mid weight", ports.CargoInput{WeightKg: 6000, VolumeM3: 10}, domain.VehicleTruck},
		{"mid volume", ports.CargoInput{WeightKg: 400, VolumeM3: 31}, domain.VehicleTruck},
		{"heavy", ports.CargoInput{WeightKg: 15001, VolumeM3: 10}, domain.VehicleTrailer},
		{"bulky", ports.CargoInput{WeightKg: 400, VolumeM3: 61}, domain.VehicleTrailer},
		{"cold chain beats weight", ports.CargoInput{WeightKg: 20000, RequiresRefrigeration: true}, domain.VehicleRefrigerated},
	}
	for _, tc := range cases {
		if got := determineVehicleType(tc.cargo); got != tc.want {
			t.Errorf("%s: got %s, want %s", tc.name, got, tc.want)
		}
	}
}

func TestDistanceFee_Tiers(t *testing.T) {
	const rate = 2.0 // van
	cases := []struct {
		distance float64
		want     float64
	}{
		{30, 60},                    // all in the first tier
		{100, 50*2 + 50*2*0.8},      // 180: second tier discounted
		{300, 100 + 240 + 100*1.2},  // 460: three tiers
	}
	for _, tc := range cases {
		if got := distanceFee(tc.distance, rate); got != tc.want {
			t.Errorf("distanceFee(%v): got %v, want %v", tc.distance, got, tc.want)
		}
	}
}

func TestWeightFee_Bands(t *testing.T) {
	cases := []struct {
		weight float64
		want   float64
	}{
		{800, 0},       // free band
		{1000, 0},      // boundary still free
		{3000, 1000},   // 2000 * 0.5
		{8000, 2900},   // 4000*0.5 + 3000*0.3
		{20000, 6000},  // 4000*0.5 + 10000*0.3 + 5000*0.2
	}
	for _, tc := range cases {
		if got := weightFee(tc.weight); got != tc.want {
			t.Errorf("weightFee(%v): got %v, want %v", tc.weight, got, tc.want)
		}
	}
}

func TestVolumeFee_Bands(t *testing.T) {
	cases := []struct {
		volume float64
		want   float64
	}{
		{8, 0},
		{20, 50},   // 10 * 5
		{40, 130},  // 20*5 + 10*3
		{70, 210},  // 20*5 + 30*3 + 10*2
	}
	for _, tc := range cases {
		if got := volumeFee(tc.volume); got != tc.want {
			t.Errorf("volumeFee(%v): got %v, want %v", tc.volume, got, tc.want)
		}
	}
}

func TestPostalCodeDistance(t *testing.T) {
	if got := postalCodeDistanceKm("01000", "13000"); got != 600 {
		t.Fatalf("expected 600, got %v", got)
	}
	// Same leading digits floor at the 10 km minimum.
	if got := postalCodeDistanceKm("06100", "06900"); got != 10 {
		t.Fatalf("expected minimum 10, got %v", got)
	}
}

// ---------------------------------------------------------------------------
// GenerateQuote
// ---------------------------------------------------------------------------

func TestGenerateQuote_EndToEnd(t *testing.T) {
	repo := newStubPricingShipmentRepo()
	svc := newTestPricingService(repo)

	// 600 km via postal heuristic, 6000 kg, 40 m3 -> truck at 3.0/km.
	quote, err := svc.GenerateQuote(context.Background(), "t1",
		postalQuoteRequest("01000", "13000", ports.CargoInput{WeightKg: 6000, VolumeM3: 40}))
	if err != nil {
		t.Fatalf("generate quote: %v", err)
	}

	if quote.VehicleType != domain.VehicleTruck {
		t.Fatalf("expected truck, got %s", quote.VehicleType)
	}
	if quote.DistanceKm != 600 {
		t.Fatalf("expected 600 km, got %v", quote.DistanceKm)
	}
	// base 1800 + distance 1230 + weight 2300 + volume 130
	if quote.EstimatedCost != 5460 {
		t.Fatalf("expected 5460, got %v", quote.EstimatedCost)
	}
	if quote.Breakdown.BaseFee != 1800 || quote.Breakdown.DistanceFee != 1230 ||
		quote.Breakdown.WeightFee != 2300 || quote.Breakdown.VolumeFee != 130 {
		t.Fatalf("unexpected breakdown: %+v", quote.Breakdown)
	}
}

func TestGenerateQuote_PersistsShipment(t *testing.T) {
	repo := newStubPricingShipmentRepo()
	svc := newTestPricingService(repo)

	quote, err := svc.GenerateQuote(context.Background(), "t1",
		postalQuoteRequest("01000", "02000", ports.CargoInput{WeightKg: 100}))
	if err != nil {
		t.Fatalf("generate quote: %v", err)
	}

	if len(repo.created) != 1 {
		t.Fatalf("expected 1 persisted shipment, got %d", len(repo.created))
	}
	s := repo.created[0]
	if s.Status != domain.StatusPendingConfirmation {
		t.Fatalf("expected pending_confirmation, got %s", s.Status)
	}
	if !strings.HasPrefix(s.ShipmentNumber, "QT-") {
		t.Fatalf("quote number must carry the QT prefix, got %s", s.ShipmentNumber)
	}
	if s.ShipmentNumber != quote.ShipmentNumber || s.ID != quote.ShipmentID {
		t.Fatal("quote must reference the persisted shipment")
	}
	for _, key := range []string{"created", "draft", "pendingConfirmation"} {
		if _, ok := s.TimelineAt(key); !ok {
			t.Fatalf("timeline missing %q", key)
		}
	}
}

func TestGenerateQuote_AppliesRuleEventsInOrder(t *testing.T) {
	discount := pricingRule("r1", "gold discount", 10, []domain.Condition{
		{Fact: "customerLevel", Operator: domain.OpEqual, Value: "gold"},
	}, []domain.Action{
		{Type: domain.ActionApplyDiscount, Params: map[string]any{"percentage": 10.0}},
	})
	fuel := pricingRule("r2", "fuel surcharge", 5, nil, []domain.Action{
		{Type: domain.ActionAddFee, Params: map[string]any{"amount": 100.0}},
	})
	repo := newStubPricingShipmentRepo()
	svc := newTestPricingService(repo, discount, fuel)

	// 10 km minimum distance, van: base 50, distance 20, no other fees.
	quote, err := svc.GenerateQuote(context.Background(), "t1",
		postalQuoteRequest("06100", "06900", ports.CargoInput{WeightKg: 100}))
	if err != nil {
		t.Fatalf("generate quote: %v", err)
	}

	// subtotal 70 -> discount 10% = 63 -> +100 fee = 163
	if quote.EstimatedCost != 163 {
		t.Fatalf("expected 163, got %v", quote.EstimatedCost)
	}
	if quote.Breakdown.Discount != 7 || quote.Breakdown.Surcharge != 100 {
		t.Fatalf("unexpected breakdown: %+v", quote.Breakdown)
	}
	if len(quote.AppliedRules) != 2 || quote.AppliedRules[0] != "gold discount" {
		t.Fatalf("applied rules must keep evaluation order, got %v", quote.AppliedRules)
	}
}

func TestGenerateQuote_NoOpActionsAndFloor(t *testing.T) {
	noop := pricingRule("r1", "reserved actions", 10, nil, []domain.Action{
		{Type: domain.ActionSetBaseRate, Params: map[string]any{"rate": 9.0}},
		{Type: domain.ActionSetCustomerLevel, Params: map[string]any{"level": "vip"}},
	})
	crush := pricingRule("r2", "full comp", 5, nil, []domain.Action{
		{Type: domain.ActionApplyDiscount, Params: map[string]any{"percentage": 150.0}},
	})
	repo := newStubPricingShipmentRepo()
	svc := newTestPricingService(repo, noop, crush)

	quote, err := svc.GenerateQuote(context.Background(), "t1",
		postalQuoteRequest("06100", "06900", ports.CargoInput{WeightKg: 100}))
	if err != nil {
		t.Fatalf("generate quote: %v", err)
	}
	// setBaseRate/setCustomerLevel change nothing; a >100% discount
	// clamps at zero instead of going negative.
	if quote.EstimatedCost != 0 {
		t.Fatalf("expected cost floored at 0, got %v", quote.EstimatedCost)
	}
	if len(quote.AppliedRules) != 2 {
		t.Fatalf("both rules still count as applied, got %v", quote.AppliedRules)
	}
}

func TestGenerateQuote_UnknownCustomer(t *testing.T) {
	repo := newStubPricingShipmentRepo()
	svc := newTestPricingService(repo)

	req := postalQuoteRequest("01000", "02000", ports.CargoInput{WeightKg: 100})
	req.CustomerID = "nope"
	if _, err := svc.GenerateQuote(context.Background(), "t1", req); !errors.Is(err, domain.ErrCustomerNotFound) {
		t.Fatalf("expected ErrCustomerNotFound, got %v", err)
	}
	if len(repo.created) != 0 {
		t.Fatal("no shipment may be persisted on failure")
	}
}

// ---------------------------------------------------------------------------
// AddAdditionalFee
// ---------------------------------------------------------------------------

func TestAddAdditionalFee_DerivesFromEstimate(t *testing.T) {
	repo := newStubPricingShipmentRepo()
	repo.byID["s1"] = &domain.Shipment{ID: "s1", TenantID: "t1", EstimatedCost: 500}
	svc := newTestPricingService(repo)

	s, err := svc.AddAdditionalFee(context.Background(), "t1", "s1", ports.FeeInput{Name: "waiting time", Amount: 50})
	if err != nil {
		t.Fatalf("add fee: %v", err)
	}
	if *s.ActualCost != 550 {
		t.Fatalf("expected 550, got %v", *s.ActualCost)
	}

	s, err = svc.AddAdditionalFee(context.Background(), "t1", "s1", ports.FeeInput{Name: "toll", Amount: 30})
	if err != nil {
		t.Fatalf("add fee: %v", err)
	}
	// 500 + 50 + 30, never 550 + 50 + 30.
	if *s.ActualCost != 580 {
		t.Fatalf("expected 580, got %v", *s.ActualCost)
	}
	if len(s.AdditionalFees) != 2 {
		t.Fatalf("expected 2 fees, got %d", len(s.AdditionalFees))
	}
}

// racingFeeRepo injects a competing fee right before the first append, so
// the caller's fee-count guard loses exactly once and must retry.
type racingFeeRepo struct {
	*stubPricingShipmentRepo
	raced bool
}

func (r *racingFeeRepo) AppendAdditionalFee(ctx context.Context, tenantID, id string, fee domain.AdditionalFee, expectedFees int, actualCost float64) error {
	if !r.raced {
		r.raced = true
		s := r.byID[id]
		s.AdditionalFees = append(s.AdditionalFees, domain.AdditionalFee{Name: "competing", Amount: 20})
	}
	return r.stubPricingShipmentRepo.AppendAdditionalFee(ctx, tenantID, id, fee, expectedFees, actualCost)
}

func TestAddAdditionalFee_ConcurrentAppendNotLost(t *testing.T) {
	inner := newStubPricingShipmentRepo()
	inner.byID["s1"] = &domain.Shipment{ID: "s1", TenantID: "t1", EstimatedCost: 500}
	repo := &racingFeeRepo{stubPricingShipmentRepo: inner}
	svc := NewPricingService(newTestEngine(), repo, &stubCustomerRepo{}, discardLogger)

	s, err := svc.AddAdditionalFee(context.Background(), "t1", "s1", ports.FeeInput{Name: "waiting time", Amount: 50})
	if err != nil {
		t.Fatalf("add fee: %v", err)
	}
	if len(s.AdditionalFees) != 2 {
		t.Fatalf("the competing fee must survive the retry, got %d fees", len(s.AdditionalFees))
	}
	// 500 + 20 (competing) + 50, recomputed after the lost guard.
	if *s.ActualCost != 570 {
		t.Fatalf("expected 570, got %v", *s.ActualCost)
	}
}

func TestAddAdditionalFee_Validation(t *testing.T) {
	repo := newStubPricingShipmentRepo()
	svc := newTestPricingService(repo)

	if _, err := svc.AddAdditionalFee(context.Background(), "t1", "s1", ports.FeeInput{Amount: 10}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation for unnamed fee, got %v", err)
	}
	if _, err := svc.AddAdditionalFee(context.Background(), "t1", "s1", ports.FeeInput{Name: "x", Amount: -1}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation for negative amount, got %v", err)
	}
}
