package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/transflow/tms-backend/internal/api/metrics"
	"github.com/transflow/tms-backend/internal/core/domain"
	"github.com/transflow/tms-backend/internal/core/ports"
)

// RuleEngine evaluates a tenant's active rules against a fact set. It is a
// pure function of (ruleset, facts) aside from the rule load: rules are
// loaded fresh on every call, so rule edits take effect on the next
// evaluation. Callers needing bounded caching wrap the RuleRepository.
type RuleEngine struct {
	rules ports.RuleRepository
	log   zerolog.Logger
}

func NewRuleEngine(rules ports.RuleRepository, log zerolog.Logger) *RuleEngine {
	return &RuleEngine{rules: rules, log: log}
}

// Evaluate loads the tenant's active rules of the given type and returns
// one event per fully-matched rule, in evaluation (load) order. Priority
// tie-breaking is the consumer's concern, not the engine's.
//
// A condition-evaluation error on one rule skips that rule and continues;
// a single malformed rule never aborts the run.
func (e *RuleEngine) Evaluate(ctx context.Context, tenantID string, ruleType domain.RuleType, facts domain.Facts) (*domain.RuleEvaluation, error) {
	rules, err := e.rules.LoadActiveRules(ctx, tenantID, ruleType)
	if err != nil {
		return nil, fmt.Errorf("rule engine: load rules: %w", err)
	}

	eval := &domain.RuleEvaluation{}
	for _, rule := range rules {
		metrics.RulesEvaluatedTotal.WithLabelValues(string(rule.Type)).Inc()

		matched, err := e.matches(rule, facts)
		if err != nil {
			metrics.RuleEvalErrorsTotal.Inc()
			e.log.Warn().Err(err).
				Str("tenant_id", tenantID).
				Str("rule_id", rule.ID).
				Str("rule_name", rule.Name).
				Msg("rule evaluation failed, skipping rule")
			continue
		}
		if !matched {
			continue
		}

		metrics.RulesMatchedTotal.WithLabelValues(string(rule.Type)).Inc()
		eval.Events = append(eval.Events, domain.RuleEvent{
			RuleID:   rule.ID,
			RuleName: rule.Name,
			Type:     rule.Type,
			Priority: rule.Priority,
			Actions:  rule.Actions,
		})
	}

	e.log.Debug().
		Str("tenant_id", tenantID).
		Str("rule_type", string(ruleType)).
		Int("rules_loaded", len(rules)).
		Int("rules_matched", len(eval.Events)).
		Msg("rule evaluation complete")

	return eval, nil
}

// matches reports whether every condition of the rule holds (logical AND,
// short-circuit on the first false).
func (e *RuleEngine) matches(rule domain.Rule, facts domain.Facts) (bool, error) {
	for _, cond := range rule.Conditions {
		ok, err := evaluateCondition(cond, facts)
		if err != nil {
			return false, fmt.Errorf("condition on fact %q: %w", cond.Fact, err)
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// SelectPayrollEvent implements the payroll selection policy: keep only
// payroll events and pick the highest priority, first in evaluation order
// on a tie. Any time more than one payroll rule matched the same facts the
// conflict warning is raised, even when priorities differ.
func SelectPayrollEvent(events []domain.RuleEvent) (domain.RuleEvent, bool, bool) {
	var payroll []domain.RuleEvent
	for _, ev := range events {
		if ev.Type == domain.RuleTypePayroll {
			payroll = append(payroll, ev)
		}
	}
	if len(payroll) == 0 {
		return domain.RuleEvent{}, false, false
	}

	// Stable sort keeps evaluation order within equal priorities, which is
	// what makes the tie winner deterministic.
	sort.SliceStable(payroll, func(i, j int) bool {
		return payroll[i].Priority > payroll[j].Priority
	})

	conflict := len(payroll) > 1
	if conflict {
		metrics.PayrollConflictsTotal.Inc()
	}
	return payroll[0], conflict, true
}

// evaluateCondition applies one operator. A condition referencing an absent
// fact never matches, regardless of operator.
func evaluateCondition(cond domain.Condition, facts domain.Facts) (bool, error) {
	fact, present := facts[cond.Fact]
	if !present {
		return false, nil
	}

	switch cond.Operator {
	case domain.OpEqual:
		return looseEqual(fact, cond.Value), nil
	case domain.OpNotEqual:
		return !looseEqual(fact, cond.Value), nil
	case domain.OpGreaterThan, domain.OpLessThan, domain.OpGreaterThanInclusive, domain.OpLessThanInclusive:
		a, aok := toFloat(fact)
		b, bok := toFloat(cond.Value)
		if !aok || !bok {
			return false, fmt.Errorf("operator %s requires numeric operands", cond.Operator)
		}
		switch cond.Operator {
		case domain.OpGreaterThan:
			return a > b, nil
		case domain.OpLessThan:
			return a < b, nil
		case domain.OpGreaterThanInclusive:
			return a >= b, nil
		default:
			return a <= b, nil
		}
	case domain.OpContains:
		return containsValue(fact, cond.Value), nil
	case domain.OpDoesNotContain:
		return !containsValue(fact, cond.Value), nil
	case domain.OpStartsWith:
		return strings.HasPrefix(toString(fact), toString(cond.Value)), nil
	case domain.OpEndsWith:
		return strings.HasSuffix(toString(fact), toString(cond.Value)), nil
	case domain.OpIn:
		return inList(fact, cond.Value)
	case domain.OpNotIn:
		ok, err := inList(fact, cond.Value)
		if err != nil {
			return false, err
		}
		return !ok, nil
	case domain.OpIsEmpty:
		return isEmpty(fact), nil
	case domain.OpIsNotEmpty:
		return !isEmpty(fact), nil
	default:
		return false, fmt.Errorf("unknown operator %q", cond.Operator)
	}
}

// looseEqual compares numerically when both sides are numeric, otherwise by
// string form. Storage drivers hand back int32/int64 for values authored as
// plain numbers, so strict type equality would be wrong.
func looseEqual(a, b any) bool {
	fa, aok := toFloat(a)
	fb, bok := toFloat(b)
	if aok && bok {
		return fa == fb
	}
	if ab, ok := a.(bool); ok {
		if bb, ok := b.(bool); ok {
			return ab == bb
		}
	}
	return toString(a) == toString(b)
}

func containsValue(fact, value any) bool {
	if list, ok := toSlice(fact); ok {
		for _, item := range list {
			if looseEqual(item, value) {
				return true
			}
		}
		return false
	}
	return strings.Contains(toString(fact), toString(value))
}

func inList(fact, value any) (bool, error) {
	list, ok := toSlice(value)
	if !ok {
		return false, fmt.Errorf("operator requires a list value, got %T", value)
	}
	for _, item := range list {
		if looseEqual(item, fact) {
			return true, nil
		}
	}
	return false, nil
}

func isEmpty(fact any) bool {
	switch v := fact.(type) {
	case nil:
		return true
	case string:
		return v == ""
	default:
		if list, ok := toSlice(fact); ok {
			return len(list) == 0
		}
		return false
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func toSlice(v any) ([]any, bool) {
	switch s := v.(type) {
	case []any:
		return s, true
	case []string:
		out := make([]any, len(s))
		for i, item := range s {
			out[i] = item
		}
		return out, true
	}
	return nil, false
}
