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

const bookingCollectionName = "bookings"

// activeStates are the booking states that occupy a (lesson, user) pair.
var activeStates = []domain.BookingState{
	domain.BookingPending, domain.BookingConfirmed, domain.BookingWaiting,
}

// mongoBookingRepository implements repository.BookingRepository
type mongoBookingRepository struct {
	collection *mongo.Collection
}

// NewMongoBookingRepository creates a new Booking repository backed by MongoDB.
func NewMongoBookingRepository(db *mongo.Database) repository.BookingRepository {
	return &mongoBookingRepository{
		collection: db.Collection(bookingCollectionName),
	}
}

// Create inserts a new booking.
func (r *mongoBookingRepository) Create(ctx context.Context, booking *domain.Booking) (primitive.ObjectID, error) {
	if booking.TenantID == "" ||
		booking.LessonID == primitive.NilObjectID ||
		booking.UserID == primitive.NilObjectID {
		return primitive.NilObjectID, errors.New("booking requires tenantId, lessonId and userId")
	}

	booking.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	booking.CreatedAt = now
	booking.UpdatedAt = now
	if booking.Status == "" {
		booking.Status = domain.BookingPending
	}

	result, err := r.collection.InsertOne(ctx, booking)
	if err != nil {
		return primitive.NilObjectID, err
	}

	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted booking ID")
	}
	return insertedID, nil
}

// GetByID retrieves a booking by its ID within a tenant.
func (r *mongoBookingRepository) GetByID(ctx context.Context, tenantID string, id primitive.ObjectID) (*domain.Booking, error) {
	var booking domain.Booking
	filter := bson.M{"_id": id, "tenantId": tenantID}

	err := r.collection.FindOne(ctx, filter).Decode(&booking)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &booking, nil
}

// Find retrieves bookings matching the filter, oldest first.
func (r *mongoBookingRepository) Find(ctx context.Context, filter repository.BookingFilter) ([]domain.Booking, error) {
	query := bson.M{"tenantId": filter.TenantID}
	if filter.LessonID != nil {
		query["lessonId"] = *filter.LessonID
	}
	if filter.UserID != nil {
		query["userId"] = *filter.UserID
	}
	if len(filter.Statuses) > 0 {
		query["status"] = bson.M{"$in": filter.Statuses}
	}

	findOptions := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})

	cursor, err := r.collection.Find(ctx, query, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var bookings []domain.Booking
	if err = cursor.All(ctx, &bookings); err != nil {
		return nil, err
	}
	if err = cursor.Err(); err != nil {
		return nil, err
	}
	return bookings, nil
}

// UpdateStatus transitions a booking's status and bumps its update timestamp.
func (r *mongoBookingRepository) UpdateStatus(ctx context.Context, tenantID string, id primitive.ObjectID, status domain.BookingState) error {
	filter := bson.M{"_id": id, "tenantId": tenantID}
	update := bson.M{"$set": bson.M{
		"status":    status,
		"updatedAt": time.Now().UTC(),
	}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// FindActiveByLessonAndUser returns the non-cancelled booking for a
// (lesson, user) pair, or ErrNotFound.
func (r *mongoBookingRepository) FindActiveByLessonAndUser(ctx context.Context, tenantID string, lessonID, userID primitive.ObjectID) (*domain.Booking, error) {
	filter := bson.M{
		"tenantId": tenantID,
		"lessonId": lessonID,
		"userId":   userID,
		"status":   bson.M{"$in": activeStates},
	}

	var booking domain.Booking
	err := r.collection.FindOne(ctx, filter).Decode(&booking)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &booking, nil
}

// FirstWaiting returns the oldest waiting booking on a lesson.
func (r *mongoBookingRepository) FirstWaiting(ctx context.Context, tenantID string, lessonID primitive.ObjectID) (*domain.Booking, error) {
	filter := bson.M{
		"tenantId": tenantID,
		"lessonId": lessonID,
		"status":   domain.BookingWaiting,
	}
	findOptions := options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: 1}})

	var booking domain.Booking
	err := r.collection.FindOne(ctx, filter, findOptions).Decode(&booking)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &booking, nil
}

// CountConfirmedByLesson counts confirmed bookings on one lesson.
func (r *mongoBookingRepository) CountConfirmedByLesson(ctx context.Context, tenantID string, lessonID primitive.ObjectID) (int, error) {
	filter := bson.M{
		"tenantId": tenantID,
		"lessonId": lessonID,
		"status":   domain.BookingConfirmed,
	}
	count, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

// CountConfirmedByLessons aggregates confirmed booking counts for a batch of
// lessons in a single round trip. Lessons with no confirmed bookings are
// absent from the result map.
func (r *mongoBookingRepository) CountConfirmedByLessons(ctx context.Context, tenantID string, lessonIDs []primitive.ObjectID) (map[primitive.ObjectID]int, error) {
	counts := make(map[primitive.ObjectID]int, len(lessonIDs))
	if len(lessonIDs) == 0 {
		return counts, nil
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"tenantId": tenantID,
			"lessonId": bson.M{"$in": lessonIDs},
			"status":   domain.BookingConfirmed,
		}}},
		{{Key: "$group", Value: bson.M{
			"_id":   "$lessonId",
			"count": bson.M{"$sum": 1},
		}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []struct {
		LessonID primitive.ObjectID `bson:"_id"`
		Count    int                `bson:"count"`
	}
	if err = cursor.All(ctx, &rows); err != nil {
		return nil, err
	}
	for _, row := range rows {
		counts[row.LessonID] = row.Count
	}
	return counts, nil
}

// CountConfirmedByUserBetween counts a user's confirmed bookings whose lesson
// start time falls in [from, to].
func (r *mongoBookingRepository) CountConfirmedByUserBetween(ctx context.Context, tenantID string, userID primitive.ObjectID, from, to time.Time) (int, error) {
	filter := bson.M{
		"tenantId":        tenantID,
		"userId":          userID,
		"status":          domain.BookingConfirmed,
		"lessonStartTime": bson.M{"$gte": from, "$lte": to},
	}
	count, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

// HasConfirmedByUser reports whether the user holds any confirmed booking.
func (r *mongoBookingRepository) HasConfirmedByUser(ctx context.Context, tenantID string, userID primitive.ObjectID) (bool, error) {
	filter := bson.M{
		"tenantId": tenantID,
		"userId":   userID,
		"status":   domain.BookingConfirmed,
	}
	count, err := r.collection.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ChildConfirmedOnLesson reports whether a child of the given parent holds a
// confirmed booking on the lesson.
func (r *mongoBookingRepository) ChildConfirmedOnLesson(ctx context.Context, tenantID string, lessonID, parentUserID primitive.ObjectID) (bool, error) {
	filter := bson.M{
		"tenantId":     tenantID,
		"lessonId":     lessonID,
		"parentUserId": parentUserID,
		"status":       domain.BookingConfirmed,
	}
	count, err := r.collection.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// EnsureBookingIndexes creates necessary indexes for the bookings collection.
func EnsureBookingIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			// Admission lookups: one active row per (lesson, user).
			Keys: bson.D{
				{Key: "tenantId", Value: 1},
				{Key: "lessonId", Value: 1},
				{Key: "userId", Value: 1},
				{Key: "status", Value: 1},
			},
			Options: options.Index(),
		},
		{
			// Capacity counts per lesson.
			Keys:    bson.D{{Key: "tenantId", Value: 1}, {Key: "lessonId", Value: 1}, {Key: "status", Value: 1}},
			Options: options.Index(),
		},
		{
			// Quota window counts per user.
			Keys: bson.D{
				{Key: "tenantId", Value: 1},
				{Key: "userId", Value: 1},
				{Key: "status", Value: 1},
				{Key: "lessonStartTime", Value: 1},
			},
			Options: options.Index(),
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		// log.Printf("WARN: Failed to create indexes for collection %s: %v", collection.Name(), err)
	}
}
