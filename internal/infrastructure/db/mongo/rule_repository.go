package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/transflow/tms-backend/internal/core/domain"
)

const collectionRules = "rules"

// RuleRepository loads business rules from Mongo. Rules are authored by an
// external rule-management surface; this repository is read-only.
type RuleRepository struct {
	col *mongo.Collection
}

func NewRuleRepository(db *mongo.Database) *RuleRepository {
	return &RuleRepository{col: db.Collection(collectionRules)}
}

// LoadActiveRules returns active rules for the tenant, optionally filtered
// by type, in priority-descending stored order.
func (r *RuleRepository) LoadActiveRules(ctx context.Context, tenantID string, ruleType domain.RuleType) ([]domain.Rule, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := bson.M{
		"tenant_id": tenantID,
		"status":    string(domain.RuleStatusActive),
	}
	if ruleType != "" {
		filter["type"] = string(ruleType)
	}

	cur, err := r.col.Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "priority", Value: -1}, {Key: "_id", Value: 1}}),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var rules []domain.Rule
	if err := cur.All(ctx, &rules); err != nil {
		return nil, err
	}
	return rules, nil
}

// EnsureIndexes creates necessary indexes on the rules collection.
func (r *RuleRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "status", Value: 1}, {Key: "type", Value: 1}},
	})
	return err
}
