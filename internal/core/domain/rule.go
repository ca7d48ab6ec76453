package domain

// RuleType distinguishes which consumer a rule is meant for.
type RuleType string

const (
	RuleTypePricing RuleType = "pricing"
	RuleTypePayroll RuleType = "payroll"
)

// RuleStatus controls whether a rule participates in evaluation.
type RuleStatus string

const (
	RuleStatusActive   RuleStatus = "active"
	RuleStatusInactive RuleStatus = "inactive"
)

// Operator is the closed set of condition comparison kinds.
type Operator string

const (
	OpEqual                Operator = "equal"
	OpNotEqual             Operator = "notEqual"
	OpGreaterThan          Operator = "greaterThan"
	OpLessThan             Operator = "lessThan"
	OpGreaterThanInclusive Operator = "greaterThanInclusive"
	OpLessThanInclusive    Operator = "lessThanInclusive"
	OpContains             Operator = "contains"
	OpDoesNotContain       Operator = "doesNotContain"
	OpStartsWith           Operator = "startsWith"
	OpEndsWith             Operator = "endsWith"
	OpIn                   Operator = "in"
	OpNotIn                Operator = "notIn"
	OpIsEmpty              Operator = "isEmpty"
	OpIsNotEmpty           Operator = "isNotEmpty"
)

// ActionType is the closed set of action kinds a rule may emit.
type ActionType string

const (
	ActionApplyDiscount       ActionType = "applyDiscount"
	ActionAddFee              ActionType = "addFee"
	ActionSetBaseRate         ActionType = "setBaseRate"
	ActionSetCustomerLevel    ActionType = "setCustomerLevel"
	ActionSetDriverCommission ActionType = "setDriverCommission"
)

// Condition is one clause of a rule. All of a rule's conditions must hold
// (logical AND) for the rule to match.
type Condition struct {
	Fact     string   `json:"fact" bson:"fact"`
	Operator Operator `json:"operator" bson:"operator"`
	Value    any      `json:"value" bson:"value"`
}

// Action is emitted when a rule matches. Params are interpreted by the
// consumer (pricing or payroll), not by the engine.
type Action struct {
	Type   ActionType     `json:"type" bson:"type"`
	Params map[string]any `json:"params,omitempty" bson:"params,omitempty"`
}

// NumParam reads a numeric parameter, tolerating the integer widths the
// storage driver may hand back.
func (a Action) NumParam(key string) (float64, bool) {
	v, ok := a.Params[key]
	if !ok {
		return 0, false
	}
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

// Rule is an immutable-per-version business rule owned by one tenant.
type Rule struct {
	ID         string      `json:"id" bson:"_id"`
	TenantID   string      `json:"tenant_id" bson:"tenant_id"`
	Name       string      `json:"name" bson:"name"`
	Type       RuleType    `json:"type" bson:"type"`
	Priority   int         `json:"priority" bson:"priority"`
	Status     RuleStatus  `json:"status" bson:"status"`
	Conditions []Condition `json:"conditions" bson:"conditions"`
	Actions    []Action    `json:"actions" bson:"actions"`
}

// Facts is the flat key-value input a rule's conditions are evaluated
// against. Ephemeral: built per evaluation call.
type Facts map[string]any

// RuleEvent records one matched rule. Events keep rule evaluation order,
// not priority order; priority tie-breaking belongs to the consumer.
type RuleEvent struct {
	RuleID   string   `json:"rule_id"`
	RuleName string   `json:"rule_name"`
	Type     RuleType `json:"type"`
	Priority int      `json:"priority"`
	Actions  []Action `json:"actions"`
}

// RuleEvaluation is the result of one engine run.
type RuleEvaluation struct {
	Events []RuleEvent `json:"events"`
}
