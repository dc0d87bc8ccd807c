package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"openmat/bookings-app/internal/domain"
	"openmat/bookings-app/internal/repository"
)

const (
	subscriptionCollectionName = "subscriptions"
	planCollectionName         = "plans"
)

// mongoSubscriptionRepository implements repository.SubscriptionRepository.
// Subscription documents are written by the billing webhook; read-only here.
type mongoSubscriptionRepository struct {
	collection *mongo.Collection
}

// NewMongoSubscriptionRepository creates a new Subscription repository backed by MongoDB.
func NewMongoSubscriptionRepository(db *mongo.Database) repository.SubscriptionRepository {
	return &mongoSubscriptionRepository{
		collection: db.Collection(subscriptionCollectionName),
	}
}

// FindActiveByUser returns the subscription covering now for the user.
func (r *mongoSubscriptionRepository) FindActiveByUser(ctx context.Context, tenantID string, userID primitive.ObjectID, now time.Time) (*domain.Subscription, error) {
	filter := bson.M{
		"tenantId":  tenantID,
		"userId":    userID,
		"status":    domain.SubscriptionActive,
		"startDate": bson.M{"$lte": now},
		"endDate":   bson.M{"$gt": now},
	}
	findOptions := options.FindOne().SetSort(bson.D{{Key: "endDate", Value: -1}})

	var subscription domain.Subscription
	err := r.collection.FindOne(ctx, filter, findOptions).Decode(&subscription)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &subscription, nil
}

// mongoPlanRepository implements repository.PlanRepository.
type mongoPlanRepository struct {
	collection *mongo.Collection
}

// NewMongoPlanRepository creates a new Plan repository backed by MongoDB.
func NewMongoPlanRepository(db *mongo.Database) repository.PlanRepository {
	return &mongoPlanRepository{
		collection: db.Collection(planCollectionName),
	}
}

// GetByID retrieves a plan by its ID within a tenant.
func (r *mongoPlanRepository) GetByID(ctx context.Context, tenantID string, id primitive.ObjectID) (*domain.Plan, error) {
	var plan domain.Plan
	filter := bson.M{"_id": id, "tenantId": tenantID}

	err := r.collection.FindOne(ctx, filter).Decode(&plan)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &plan, nil
}

// EnsureSubscriptionIndexes creates necessary indexes for the subscriptions collection.
func EnsureSubscriptionIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "tenantId", Value: 1},
				{Key: "userId", Value: 1},
				{Key: "status", Value: 1},
				{Key: "endDate", Value: -1},
			},
			Options: options.Index(),
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		// log.Printf("WARN: Failed to create indexes for collection %s: %v", collection.Name(), err)
	}
}
