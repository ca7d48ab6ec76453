package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/transflow/tms-backend/internal/core/domain"
)

const collectionTrips = "trips"

// TripRepository is the read-only trip projection used by payroll.
type TripRepository struct {
	col *mongo.Collection
}

func NewTripRepository(db *mongo.Database) *TripRepository {
	return &TripRepository{col: db.Collection(collectionTrips)}
}

func (r *TripRepository) Get(ctx context.Context, tenantID, id string) (*domain.Trip, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var t domain.Trip
	err := r.col.FindOne(ctx, bson.M{"_id": id, "tenant_id": tenantID}).Decode(&t)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrTripNotFound
		}
		return nil, err
	}
	return &t, nil
}

// GetByIDs fetches all listed trips in one query. Missing ids are simply
// absent from the result.
func (r *TripRepository) GetByIDs(ctx context.Context, tenantID string, ids []string) ([]*domain.Trip, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	cur, err := r.col.Find(ctx, bson.M{
		"tenant_id": tenantID,
		"_id":       bson.M{"$in": ids},
	})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var trips []*domain.Trip
	if err := cur.All(ctx, &trips); err != nil {
		return nil, err
	}
	return trips, nil
}
