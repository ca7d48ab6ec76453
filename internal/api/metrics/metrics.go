// Package metrics defines and registers all custom Prometheus metrics for
// the TMS backend. It is the single source of truth for metric names,
// labels, and help strings.
//
// Metrics register with the default Prometheus registry via promauto at
// package init; the /metrics endpoint is wired in the router.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tms"

// ── Rule engine metrics ───────────────────────────────────────────────────────

// RulesEvaluatedTotal counts rules evaluated, by rule type.
var RulesEvaluatedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rules_evaluated_total",
		Help:      "Total number of rules evaluated against a fact set.",
	},
	[]string{"type"},
)

// RulesMatchedTotal counts rules whose conditions all held, by rule type.
var RulesMatchedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rules_matched_total",
		Help:      "Total number of matched rules that emitted events.",
	},
	[]string{"type"},
)

// RuleEvalErrorsTotal counts per-rule condition evaluation errors. These
// are skipped, never fatal to the evaluation run.
var RuleEvalErrorsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rule_eval_errors_total",
		Help:      "Total number of rules skipped due to condition evaluation errors.",
	},
)

// PayrollConflictsTotal counts payroll evaluations where two or more rules
// tied for highest priority.
var PayrollConflictsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "payroll_rule_conflicts_total",
		Help:      "Total number of payroll evaluations with a priority tie (conflict warning).",
	},
)

// ── Pricing metrics ───────────────────────────────────────────────────────────

// QuotesGeneratedTotal counts generated quotes, by selected vehicle type.
var QuotesGeneratedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "quotes_generated_total",
		Help:      "Total number of quotes generated, by vehicle type.",
	},
	[]string{"vehicle_type"},
)

// QuoteAmount observes the final estimated cost of generated quotes.
var QuoteAmount = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "quote_amount",
		Help:      "Final estimated cost of generated quotes (currency-agnostic units).",
		Buckets:   prometheus.ExponentialBuckets(50, 2.5, 10),
	},
)

// ── State machine metrics ─────────────────────────────────────────────────────

// TransitionsTotal counts successful shipment status transitions.
var TransitionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "shipment_transitions_total",
		Help:      "Total number of successful shipment status transitions, by target status.",
	},
	[]string{"to_status"},
)

// TransitionsRejectedTotal counts guard-rejected transitions.
var TransitionsRejectedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "shipment_transitions_rejected_total",
		Help:      "Total number of transitions rejected by a guard, by reason.",
	},
	[]string{"reason"},
)

// GeofenceAdvancesTotal counts geofence-triggered auto-advancements.
var GeofenceAdvancesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "geofence_advances_total",
		Help:      "Total number of geofence-triggered status advancements, by target status.",
	},
	[]string{"to_status"},
)

// ── Payroll metrics ───────────────────────────────────────────────────────────

// SalaryStrategyTotal counts commission calculations, by winning strategy.
var SalaryStrategyTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "salary_strategy_total",
		Help:      "Total number of commission calculations, by selected strategy.",
	},
	[]string{"strategy"},
)
