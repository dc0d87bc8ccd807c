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

const lessonCollectionName = "lessons"

// mongoLessonRepository implements repository.LessonRepository
type mongoLessonRepository struct {
	collection *mongo.Collection
}

// NewMongoLessonRepository creates a new Lesson repository backed by MongoDB.
func NewMongoLessonRepository(db *mongo.Database) repository.LessonRepository {
	return &mongoLessonRepository{
		collection: db.Collection(lessonCollectionName),
	}
}

// Create inserts a new lesson. The unique index on
// (tenantId, startTime, endTime, location) backs the expansion idempotency
// key; a concurrent duplicate insert surfaces as ErrDuplicateKey.
func (r *mongoLessonRepository) Create(ctx context.Context, lesson *domain.Lesson) (primitive.ObjectID, error) {
	if lesson.TenantID == "" || lesson.ClassOptionID == primitive.NilObjectID {
		return primitive.NilObjectID, errors.New("lesson requires tenantId and classOptionId")
	}
	if !lesson.StartTime.Before(lesson.EndTime) {
		return primitive.NilObjectID, errors.New("lesson must end after it starts")
	}

	lesson.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	lesson.CreatedAt = now
	lesson.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, lesson)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return primitive.NilObjectID, repository.ErrDuplicateKey
		}
		return primitive.NilObjectID, err
	}

	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted lesson ID")
	}
	return insertedID, nil
}

// GetByID retrieves a lesson by its ID within a tenant.
func (r *mongoLessonRepository) GetByID(ctx context.Context, tenantID string, id primitive.ObjectID) (*domain.Lesson, error) {
	var lesson domain.Lesson
	filter := bson.M{"_id": id, "tenantId": tenantID}

	err := r.collection.FindOne(ctx, filter).Decode(&lesson)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &lesson, nil
}

// Find retrieves lessons matching the filter, sorted by start time ascending.
func (r *mongoLessonRepository) Find(ctx context.Context, filter repository.LessonFilter) ([]domain.Lesson, error) {
	query := bson.M{"tenantId": filter.TenantID}

	if filter.From != nil || filter.To != nil {
		window := bson.M{}
		if filter.From != nil {
			window["$gte"] = *filter.From
		}
		if filter.To != nil {
			window["$lte"] = *filter.To
		}
		query["startTime"] = window
	}
	if filter.Location != nil {
		query["location"] = *filter.Location
	}
	if filter.OnlyActive {
		query["active"] = true
	}

	findOptions := options.Find().SetSort(bson.D{{Key: "startTime", Value: 1}})

	cursor, err := r.collection.Find(ctx, query, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var lessons []domain.Lesson
	if err = cursor.All(ctx, &lessons); err != nil {
		return nil, err
	}
	if err = cursor.Err(); err != nil {
		return nil, err
	}
	return lessons, nil
}

// FindByKey looks a lesson up by its identity tuple.
func (r *mongoLessonRepository) FindByKey(ctx context.Context, tenantID string, start, end time.Time, location string) (*domain.Lesson, error) {
	filter := bson.M{
		"tenantId":  tenantID,
		"startTime": start,
		"endTime":   end,
		"location":  location,
	}

	var lesson domain.Lesson
	err := r.collection.FindOne(ctx, filter).Decode(&lesson)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &lesson, nil
}

// DeleteByIDs removes the given lessons. Callers are responsible for checking
// booking protection beforehand.
func (r *mongoLessonRepository) DeleteByIDs(ctx context.Context, tenantID string, ids []primitive.ObjectID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	filter := bson.M{
		"tenantId": tenantID,
		"_id":      bson.M{"$in": ids},
	}
	result, err := r.collection.DeleteMany(ctx, filter)
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}

// EnsureLessonIndexes creates necessary indexes for the lessons collection.
func EnsureLessonIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			// The expansion idempotency key.
			Keys: bson.D{
				{Key: "tenantId", Value: 1},
				{Key: "startTime", Value: 1},
				{Key: "endTime", Value: 1},
				{Key: "location", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		},
		{
			// Range listing per tenant.
			Keys:    bson.D{{Key: "tenantId", Value: 1}, {Key: "startTime", Value: 1}},
			Options: options.Index(),
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		// log.Printf("WARN: Failed to create indexes for collection %s: %v", collection.Name(), err)
	}
}
