package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/transflow/tms-backend/internal/core/domain"
	"github.com/transflow/tms-backend/internal/core/ports"
)

// CachedRuleRepository decorates a RuleRepository with a short TTL cache.
// Staleness is bounded by the TTL; the engine still loads through the
// repository on every evaluation, so rule edits propagate within one TTL.
// Cache key format: rules:<tenant_id>:<type>
type CachedRuleRepository struct {
	inner  ports.RuleRepository
	client *redis.Client
	ttl    time.Duration
	log    zerolog.Logger
}

func NewCachedRuleRepository(inner ports.RuleRepository, client *redis.Client, ttl time.Duration, log zerolog.Logger) *CachedRuleRepository {
	return &CachedRuleRepository{inner: inner, client: client, ttl: ttl, log: log}
}

// LoadActiveRules serves from cache when possible; any cache failure falls
// through to the backing repository.
func (c *CachedRuleRepository) LoadActiveRules(ctx context.Context, tenantID string, ruleType domain.RuleType) ([]domain.Rule, error) {
	key := c.key(tenantID, ruleType)

	raw, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var rules []domain.Rule
		if jsonErr := json.Unmarshal(raw, &rules); jsonErr == nil {
			return rules, nil
		}
		c.log.Warn().Str("key", key).Msg("corrupt rule cache entry, reloading")
	} else if err != redis.Nil {
		c.log.Warn().Err(err).Str("key", key).Msg("rule cache read failed, loading from store")
	}

	rules, err := c.inner.LoadActiveRules(ctx, tenantID, ruleType)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(rules); err == nil {
		if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			c.log.Warn().Err(err).Str("key", key).Msg("failed to populate rule cache")
		}
	}
	return rules, nil
}

func (c *CachedRuleRepository) key(tenantID string, ruleType domain.RuleType) string {
	return fmt.Sprintf("rules:%s:%s", tenantID, ruleType)
}
