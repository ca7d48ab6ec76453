package service

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/transflow/tms-backend/internal/core/domain"
)

// ---------------------------------------------------------------------------
// In-memory stub repositories
// ---------------------------------------------------------------------------

type stubRuleRepo struct {
	rules   []domain.Rule
	loadErr error
	calls   int
}

func (r *stubRuleRepo) LoadActiveRules(_ context.Context, tenantID string, ruleType domain.RuleType) ([]domain.Rule, error) {
	r.calls++
	if r.loadErr != nil {
		return nil, r.loadErr
	}
	var out []domain.Rule
	for _, rule := range r.rules {
		if rule.TenantID == tenantID && rule.Type == ruleType {
			out = append(out, rule)
		}
	}
	return out, nil
}

var discardLogger = zerolog.Nop()

func newTestEngine(rules ...domain.Rule) *RuleEngine {
	return NewRuleEngine(&stubRuleRepo{rules: rules}, discardLogger)
}

func pricingRule(id, name string, priority int, conds []domain.Condition, actions []domain.Action) domain.Rule {
	return domain.Rule{
		ID:         id,
		TenantID:   "t1",
		Name:       name,
		Type:       domain.RuleTypePricing,
		Priority:   priority,
		Status:     domain.RuleStatusActive,
		Conditions: conds,
		Actions:    actions,
	}
}

func payrollRule(id, name string, priority int, conds []domain.Condition, actions []domain.Action) domain.Rule {
	r := pricingRule(id, name, priority, conds, actions)
	r.Type = domain.RuleTypePayroll
	return r
}

// ---------------------------------------------------------------------------
// Condition evaluation
// ---------------------------------------------------------------------------

func TestEvaluate_AllConditionsMustHold(t *testing.T) {
	rule := pricingRule("r1", "long haul gold", 10, []domain.Condition{
		{Fact: "distance", Operator: domain.OpGreaterThan, Value: 500.0},
		{Fact: "customerLevel", Operator: domain.OpEqual, Value: "gold"},
	}, []domain.Action{
		{Type: domain.ActionApplyDiscount, Params: map[string]any{"percentage": 10.0}},
	})
	engine := newTestEngine(rule)

	eval, err := engine.Evaluate(context.Background(), "t1", domain.RuleTypePricing, domain.Facts{
		"distance":      600.0,
		"customerLevel": "gold",
	})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(eval.Events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(eval.Events))
	}

	eval, err = engine.Evaluate(context.Background(), "t1", domain.RuleTypePricing, domain.Facts{
		"distance":      600.0,
		"customerLevel": "standard",
	})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(eval.Events) != 0 {
		t.Fatalf("expected no events when one condition fails, got %d", len(eval.Events))
	}
}

func TestEvaluate_MissingFactNeverMatches(t *testing.T) {
	conds := [][]domain.Condition{
		{{Fact: "ghost", Operator: domain.OpEqual, Value: "x"}},
		{{Fact: "ghost", Operator: domain.OpGreaterThan, Value: 1.0}},
		{{Fact: "ghost", Operator: domain.OpIsEmpty}},
		{{Fact: "ghost", Operator: domain.OpNotIn, Value: []any{"a"}}},
	}
	for i, c := range conds {
		engine := newTestEngine(pricingRule("r1", "ghost rule", 1, c, nil))
		eval, err := engine.Evaluate(context.Background(), "t1", domain.RuleTypePricing, domain.Facts{"present": 1})
		if err != nil {
			t.Fatalf("case %d: evaluate: %v", i, err)
		}
		if len(eval.Events) != 0 {
			t.Fatalf("case %d: condition on absent fact matched", i)
		}
	}
}

func TestEvaluate_Operators(t *testing.T) {
	facts := domain.Facts{
		"distance":    150.0,
		"weight":      int32(2000), // storage drivers decode small ints as int32
		"vehicleType": "truck",
		"regions":     []any{"north", "west"},
		"notes":       "",
	}

	cases := []struct {
		name string
		cond domain.Condition
		want bool
	}{
		{"equal numeric across types", domain.Condition{Fact: "weight", Operator: domain.OpEqual, Value: 2000.0}, true},
		{"notEqual", domain.Condition{Fact: "vehicleType", Operator: domain.OpNotEqual, Value: "van"}, true},
		{"greaterThanInclusive boundary", domain.Condition{Fact: "distance", Operator: domain.OpGreaterThanInclusive, Value: 150.0}, true},
		{"lessThan false at boundary", domain.Condition{Fact: "distance", Operator: domain.OpLessThan, Value: 150.0}, false},
		{"contains on list", domain.Condition{Fact: "regions", Operator: domain.OpContains, Value: "west"}, true},
		{"doesNotContain on list", domain.Condition{Fact: "regions", Operator: domain.OpDoesNotContain, Value: "south"}, true},
		{"startsWith", domain.Condition{Fact: "vehicleType", Operator: domain.OpStartsWith, Value: "tru"}, true},
		{"endsWith", domain.Condition{Fact: "vehicleType", Operator: domain.OpEndsWith, Value: "uck"}, true},
		{"in list", domain.Condition{Fact: "vehicleType", Operator: domain.OpIn, Value: []any{"truck", "trailer"}}, true},
		{"notIn list", domain.Condition{Fact: "vehicleType", Operator: domain.OpNotIn, Value: []any{"van"}}, true},
		{"isEmpty on empty string", domain.Condition{Fact: "notes", Operator: domain.OpIsEmpty}, true},
		{"isNotEmpty on empty string", domain.Condition{Fact: "notes", Operator: domain.OpIsNotEmpty}, false},
	}

	for _, tc := range cases {
		got, err := evaluateCondition(tc.cond, facts)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if got != tc.want {
			t.Errorf("%s: got %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestEvaluate_MalformedRuleIsSkipped(t *testing.T) {
	bad := pricingRule("r1", "bad operator", 5, []domain.Condition{
		{Fact: "distance", Operator: "between", Value: 10.0},
	}, nil)
	good := pricingRule("r2", "good", 1, []domain.Condition{
		{Fact: "distance", Operator: domain.OpGreaterThan, Value: 100.0},
	}, nil)
	engine := newTestEngine(bad, good)

	eval, err := engine.Evaluate(context.Background(), "t1", domain.RuleTypePricing, domain.Facts{"distance": 150.0})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(eval.Events) != 1 || eval.Events[0].RuleID != "r2" {
		t.Fatalf("expected only the well-formed rule to match, got %+v", eval.Events)
	}
}

func TestEvaluate_LoadErrorSurfaces(t *testing.T) {
	repo := &stubRuleRepo{loadErr: errors.New("db down")}
	engine := NewRuleEngine(repo, discardLogger)

	if _, err := engine.Evaluate(context.Background(), "t1", domain.RuleTypePricing, domain.Facts{}); err == nil {
		t.Fatal("expected load error to surface")
	}
}

// ---------------------------------------------------------------------------
// Payroll event selection
// ---------------------------------------------------------------------------

func TestSelectPayrollEvent_HighestPriorityWins(t *testing.T) {
	events := []domain.RuleEvent{
		{RuleID: "a", Type: domain.RuleTypePayroll, Priority: 100},
		{RuleID: "b", Type: domain.RuleTypePayroll, Priority: 200},
		{RuleID: "c", Type: domain.RuleTypePricing, Priority: 900},
	}

	winner, conflict, ok := SelectPayrollEvent(events)
	if !ok {
		t.Fatal("expected a winner")
	}
	if winner.RuleID != "b" {
		t.Fatalf("expected rule b, got %s", winner.RuleID)
	}
	if !conflict {
		t.Fatal("two matching payroll rules must raise the conflict warning")
	}
}

func TestSelectPayrollEvent_SingleMatchNoConflict(t *testing.T) {
	events := []domain.RuleEvent{
		{RuleID: "only", Type: domain.RuleTypePayroll, Priority: 100},
		{RuleID: "pricing", Type: domain.RuleTypePricing, Priority: 900},
	}

	winner, conflict, ok := SelectPayrollEvent(events)
	if !ok {
		t.Fatal("expected a winner")
	}
	if winner.RuleID != "only" {
		t.Fatalf("expected the lone payroll rule, got %s", winner.RuleID)
	}
	if conflict {
		t.Fatal("a single payroll match must not raise the conflict warning")
	}
}

func TestSelectPayrollEvent_TieKeepsEvaluationOrder(t *testing.T) {
	events := []domain.RuleEvent{
		{RuleID: "first", Type: domain.RuleTypePayroll, Priority: 100},
		{RuleID: "second", Type: domain.RuleTypePayroll, Priority: 100},
	}

	winner, conflict, ok := SelectPayrollEvent(events)
	if !ok {
		t.Fatal("expected a winner")
	}
	if winner.RuleID != "first" {
		t.Fatalf("tie must keep evaluation order, got %s", winner.RuleID)
	}
	if !conflict {
		t.Fatal("equal priorities must raise the conflict warning")
	}
}

func TestSelectPayrollEvent_NoPayrollEvents(t *testing.T) {
	events := []domain.RuleEvent{
		{RuleID: "a", Type: domain.RuleTypePricing, Priority: 100},
	}
	if _, _, ok := SelectPayrollEvent(events); ok {
		t.Fatal("pricing events must not produce a payroll winner")
	}
}
