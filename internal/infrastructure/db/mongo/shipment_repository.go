package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/transflow/tms-backend/internal/core/domain"
	"github.com/transflow/tms-backend/internal/core/ports"
)

const collectionShipments = "shipments"

type ShipmentRepository struct {
	col *mongo.Collection
}

func NewShipmentRepository(db *mongo.Database) *ShipmentRepository {
	return &ShipmentRepository{col: db.Collection(collectionShipments)}
}

// Create inserts a new shipment document.
func (r *ShipmentRepository) Create(ctx context.Context, s *domain.Shipment) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := r.col.InsertOne(ctx, s)
	return err
}

// Get retrieves a shipment by id, scoped to the tenant.
func (r *ShipmentRepository) Get(ctx context.Context, tenantID, id string) (*domain.Shipment, error) {
	return r.findOne(ctx, bson.M{"_id": id, "tenant_id": tenantID})
}

// GetByNumber retrieves a shipment by shipment number, scoped to the tenant.
func (r *ShipmentRepository) GetByNumber(ctx context.Context, tenantID, number string) (*domain.Shipment, error) {
	return r.findOne(ctx, bson.M{"shipment_number": number, "tenant_id": tenantID})
}

func (r *ShipmentRepository) findOne(ctx context.Context, filter bson.M) (*domain.Shipment, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var s domain.Shipment
	err := r.col.FindOne(ctx, filter).Decode(&s)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrShipmentNotFound
		}
		return nil, err
	}
	return &s, nil
}

// List returns a page of shipments matching the filter and the total count.
func (r *ShipmentRepository) List(ctx context.Context, tenantID string, f ports.ListShipmentsFilter) ([]*domain.Shipment, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := bson.M{"tenant_id": tenantID}
	if f.Status != "" {
		filter["status"] = string(f.Status)
	}
	if f.CustomerID != "" {
		filter["customer_id"] = f.CustomerID
	}
	if f.DriverID != "" {
		filter["driver_id"] = f.DriverID
	}
	created := bson.M{}
	if !f.DateFrom.IsZero() {
		created["$gte"] = f.DateFrom
	}
	if !f.DateTo.IsZero() {
		created["$lte"] = f.DateTo
	}
	if len(created) > 0 {
		filter["created_at"] = created
	}

	total, err := r.col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	page := f.Page
	if page < 1 {
		page = 1
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64((page - 1) * f.Limit)).
		SetLimit(int64(f.Limit))

	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cur.Close(ctx)

	var out []*domain.Shipment
	if err := cur.All(ctx, &out); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// FindActiveByDriver returns the driver's shipments in the given statuses.
func (r *ShipmentRepository) FindActiveByDriver(ctx context.Context, tenantID, driverID string, statuses []domain.ShipmentStatus) ([]*domain.Shipment, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	in := make([]string, len(statuses))
	for i, s := range statuses {
		in[i] = string(s)
	}

	cur, err := r.col.Find(ctx, bson.M{
		"tenant_id": tenantID,
		"driver_id": driverID,
		"status":    bson.M{"$in": in},
	})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []*domain.Shipment
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ApplyTransition performs the guarded compare-and-set. The status guard
// (and optional driver guard) is folded into the filter, so of two
// concurrent transitions on the same document exactly one matches; the
// loser gets ports.ErrTransitionConflict and must re-read.
func (r *ShipmentRepository) ApplyTransition(ctx context.Context, tenantID, id string, tu ports.TransitionUpdate) (*domain.Shipment, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	in := make([]string, len(tu.FromStatuses))
	for i, s := range tu.FromStatuses {
		in[i] = string(s)
	}
	filter := bson.M{
		"_id":       id,
		"tenant_id": tenantID,
		"status":    bson.M{"$in": in},
	}
	if tu.RequireDriverID != "" {
		filter["driver_id"] = tu.RequireDriverID
	}

	set := bson.M{
		"status":     string(tu.NewStatus),
		"updated_at": tu.At,
	}
	for _, key := range tu.TimelineStamps {
		set["timeline."+key] = tu.At
	}
	for k, v := range tu.Set {
		set[k] = v
	}
	update := bson.M{"$set": set}
	if len(tu.Unset) > 0 {
		unset := bson.M{}
		for _, field := range tu.Unset {
			unset[field] = ""
		}
		update["$unset"] = unset
	}

	var s domain.Shipment
	err := r.col.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&s)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ports.ErrTransitionConflict
		}
		return nil, err
	}
	return &s, nil
}

// AppendAdditionalFee pushes one fee under a fee-count guard, the same
// compare-and-set idiom as ApplyTransition: of two concurrent appends
// exactly one matches the observed count, the loser re-reads and retries.
func (r *ShipmentRepository) AppendAdditionalFee(ctx context.Context, tenantID, id string, fee domain.AdditionalFee, expectedFees int, actualCost float64) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := bson.M{
		"_id":       id,
		"tenant_id": tenantID,
		"$expr": bson.M{"$eq": bson.A{
			bson.M{"$size": bson.M{"$ifNull": bson.A{"$additional_fees", bson.A{}}}},
			expectedFees,
		}},
	}
	res, err := r.col.UpdateOne(ctx, filter, bson.M{
		"$push": bson.M{"additional_fees": fee},
		"$set": bson.M{
			"actual_cost": actualCost,
			"updated_at":  time.Now().UTC(),
		},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ports.ErrTransitionConflict
	}
	return nil
}

// EnsureIndexes creates necessary indexes on the shipments collection.
func (r *ShipmentRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "tenant_id", Value: 1}, {Key: "shipment_number", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "driver_id", Value: 1}}},
	}

	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}
