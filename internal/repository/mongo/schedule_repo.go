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

const scheduleCollectionName = "schedules"

// mongoScheduleRepository implements repository.ScheduleRepository. Each
// tenant holds exactly one weekly schedule document.
type mongoScheduleRepository struct {
	collection *mongo.Collection
}

// NewMongoScheduleRepository creates a new Schedule repository backed by MongoDB.
func NewMongoScheduleRepository(db *mongo.Database) repository.ScheduleRepository {
	return &mongoScheduleRepository{
		collection: db.Collection(scheduleCollectionName),
	}
}

// Get retrieves the tenant's weekly schedule.
func (r *mongoScheduleRepository) Get(ctx context.Context, tenantID string) (*domain.WeeklySchedule, error) {
	var schedule domain.WeeklySchedule
	err := r.collection.FindOne(ctx, bson.M{"tenantId": tenantID}).Decode(&schedule)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &schedule, nil
}

// Upsert stores the tenant's weekly schedule, replacing any previous version.
func (r *mongoScheduleRepository) Upsert(ctx context.Context, schedule *domain.WeeklySchedule) error {
	if schedule.TenantID == "" {
		return errors.New("schedule requires tenantId")
	}

	now := time.Now().UTC()
	schedule.UpdatedAt = now
	if schedule.ID == primitive.NilObjectID {
		schedule.ID = primitive.NewObjectID()
		schedule.CreatedAt = now
	}

	filter := bson.M{"tenantId": schedule.TenantID}
	update := bson.M{
		"$set": bson.M{
			"validFrom":      schedule.ValidFrom,
			"validTo":        schedule.ValidTo,
			"lockOutMinutes": schedule.LockOutMinutes,
			"classOptionId":  schedule.ClassOptionID,
			"days":           schedule.Days,
			"updatedAt":      schedule.UpdatedAt,
		},
		"$setOnInsert": bson.M{
			"_id":       schedule.ID,
			"tenantId":  schedule.TenantID,
			"createdAt": schedule.CreatedAt,
		},
	}

	_, err := r.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	return err
}

// ListTenantIDs returns every tenant that has a schedule stored.
func (r *mongoScheduleRepository) ListTenantIDs(ctx context.Context) ([]string, error) {
	values, err := r.collection.Distinct(ctx, "tenantId", bson.M{})
	if err != nil {
		return nil, err
	}

	tenantIDs := make([]string, 0, len(values))
	for _, v := range values {
		if id, ok := v.(string); ok {
			tenantIDs = append(tenantIDs, id)
		}
	}
	return tenantIDs, nil
}

// EnsureScheduleIndexes creates necessary indexes for the schedules collection.
func EnsureScheduleIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "tenantId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		// log.Printf("WARN: Failed to create indexes for collection %s: %v", collection.Name(), err)
	}
}
