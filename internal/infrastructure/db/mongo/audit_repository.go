package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/transflow/tms-backend/internal/core/domain"
	"github.com/transflow/tms-backend/internal/core/ports"
)

const (
	collectionTimelineEvents   = "timeline_events"
	collectionFinancialEntries = "financial_entries"
	collectionAssignments      = "assignments"
)

// TimelineEventRepository appends immutable audit rows. Rows are inserted
// only; there is no update or delete path.
type TimelineEventRepository struct {
	col *mongo.Collection
}

func NewTimelineEventRepository(db *mongo.Database) *TimelineEventRepository {
	return &TimelineEventRepository{col: db.Collection(collectionTimelineEvents)}
}

func (r *TimelineEventRepository) Append(ctx context.Context, shipmentID, eventType, actorType string, extra map[string]any) error {
	_, err := r.col.InsertOne(ctx, domain.TimelineEvent{
		ShipmentID: shipmentID,
		EventType:  eventType,
		ActorType:  actorType,
		Extra:      extra,
		CreatedAt:  time.Now().UTC(),
	})
	return err
}

// FinancialEntryRepository is the bookkeeping side channel sink.
type FinancialEntryRepository struct {
	col *mongo.Collection
}

func NewFinancialEntryRepository(db *mongo.Database) *FinancialEntryRepository {
	return &FinancialEntryRepository{col: db.Collection(collectionFinancialEntries)}
}

func (r *FinancialEntryRepository) Record(ctx context.Context, tenantID string, entry domain.FinancialEntry) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := bson.M{
		"tenant_id":   tenantID,
		"type":        entry.Type,
		"shipment_id": entry.ShipmentID,
		"driver_id":   entry.DriverID,
		"amount":      entry.Amount,
		"memo":        entry.Memo,
		"created_at":  entry.CreatedAt,
	}
	_, err := r.col.InsertOne(ctx, doc)
	return err
}

// AssignmentRepository tracks assignments awaiting driver acknowledgment.
type AssignmentRepository struct {
	col *mongo.Collection
}

func NewAssignmentRepository(db *mongo.Database) *AssignmentRepository {
	return &AssignmentRepository{col: db.Collection(collectionAssignments)}
}

func (r *AssignmentRepository) CreatePending(ctx context.Context, tenantID string, a ports.PendingAssignment) error {
	doc := bson.M{
		"tenant_id":   tenantID,
		"shipment_id": a.ShipmentID,
		"driver_id":   a.DriverID,
		"vehicle_id":  a.VehicleID,
		"created_at":  a.CreatedAt,
	}
	// One pending assignment per shipment: replace any earlier one.
	_, err := r.col.ReplaceOne(ctx,
		bson.M{"tenant_id": tenantID, "shipment_id": a.ShipmentID},
		doc,
		options.Replace().SetUpsert(true),
	)
	return err
}

func (r *AssignmentRepository) DeletePending(ctx context.Context, tenantID, shipmentID string) error {
	_, err := r.col.DeleteOne(ctx, bson.M{"tenant_id": tenantID, "shipment_id": shipmentID})
	return err
}
