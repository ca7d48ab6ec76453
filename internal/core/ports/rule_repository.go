package ports

import (
	"context"

	"github.com/transflow/tms-backend/internal/core/domain"
)

// RuleRepository supplies the current set of active rules for a tenant.
// Implementations may bound staleness with a short TTL cache; the rule
// engine itself always loads through this interface on every call.
type RuleRepository interface {
	// LoadActiveRules returns rules with status=active for the tenant,
	// optionally filtered by type (empty = all types), in stored order.
	LoadActiveRules(ctx context.Context, tenantID string, ruleType domain.RuleType) ([]domain.Rule, error)
}
