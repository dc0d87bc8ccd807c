package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"openmat/bookings-app/internal/domain"
	"openmat/bookings-app/internal/repository"
)

const classOptionCollectionName = "class_options"

// mongoClassOptionRepository implements repository.ClassOptionRepository.
// Class options are authored by the admin surface; this service only reads.
type mongoClassOptionRepository struct {
	collection *mongo.Collection
}

// NewMongoClassOptionRepository creates a new ClassOption repository backed by MongoDB.
func NewMongoClassOptionRepository(db *mongo.Database) repository.ClassOptionRepository {
	return &mongoClassOptionRepository{
		collection: db.Collection(classOptionCollectionName),
	}
}

// GetByID retrieves a class option by its ID within a tenant.
func (r *mongoClassOptionRepository) GetByID(ctx context.Context, tenantID string, id primitive.ObjectID) (*domain.ClassOption, error) {
	var classOption domain.ClassOption
	filter := bson.M{"_id": id, "tenantId": tenantID}

	err := r.collection.FindOne(ctx, filter).Decode(&classOption)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &classOption, nil
}
