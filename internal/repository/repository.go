package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"openmat/bookings-app/internal/domain"
)

// Error constants for the repository layer.
var (
	ErrNotFound     = RepositoryError("not found")
	ErrUpdateFailed = RepositoryError("update failed")
	ErrDuplicateKey = RepositoryError("duplicate key")
)

// RepositoryError helps distinguish repository errors.
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// LessonFilter selects lessons within a tenant. From/To bound the lesson
// start time (inclusive).
type LessonFilter struct {
	TenantID   string
	From       *time.Time
	To         *time.Time
	Location   *string
	OnlyActive bool
}

// LessonRepository defines the persistence collaborator for lessons.
// Every method is tenant-scoped.
type LessonRepository interface {
	Create(ctx context.Context, lesson *domain.Lesson) (primitive.ObjectID, error)
	GetByID(ctx context.Context, tenantID string, id primitive.ObjectID) (*domain.Lesson, error)
	Find(ctx context.Context, filter LessonFilter) ([]domain.Lesson, error)
	// FindByKey looks a lesson up by its identity tuple; returns ErrNotFound
	// when no lesson is materialized at that instant/location.
	FindByKey(ctx context.Context, tenantID string, start, end time.Time, location string) (*domain.Lesson, error)
	DeleteByIDs(ctx context.Context, tenantID string, ids []primitive.ObjectID) (int64, error)
}

// BookingFilter selects bookings within a tenant.
type BookingFilter struct {
	TenantID string
	LessonID *primitive.ObjectID
	UserID   *primitive.ObjectID
	Statuses []domain.BookingState
}

// BookingRepository defines the persistence collaborator for bookings.
type BookingRepository interface {
	Create(ctx context.Context, booking *domain.Booking) (primitive.ObjectID, error)
	GetByID(ctx context.Context, tenantID string, id primitive.ObjectID) (*domain.Booking, error)
	Find(ctx context.Context, filter BookingFilter) ([]domain.Booking, error)
	UpdateStatus(ctx context.Context, tenantID string, id primitive.ObjectID, status domain.BookingState) error

	// FindActiveByLessonAndUser returns the single non-cancelled booking for
	// a (lesson, user) pair, or ErrNotFound.
	FindActiveByLessonAndUser(ctx context.Context, tenantID string, lessonID, userID primitive.ObjectID) (*domain.Booking, error)
	// FirstWaiting returns the oldest waiting booking on a lesson, or
	// ErrNotFound when the waitlist is empty.
	FirstWaiting(ctx context.Context, tenantID string, lessonID primitive.ObjectID) (*domain.Booking, error)

	CountConfirmedByLesson(ctx context.Context, tenantID string, lessonID primitive.ObjectID) (int, error)
	CountConfirmedByLessons(ctx context.Context, tenantID string, lessonIDs []primitive.ObjectID) (map[primitive.ObjectID]int, error)
	// CountConfirmedByUserBetween counts a user's confirmed bookings whose
	// lesson start falls in [from, to]; the subscription quota window count.
	CountConfirmedByUserBetween(ctx context.Context, tenantID string, userID primitive.ObjectID, from, to time.Time) (int, error)
	// HasConfirmedByUser reports whether the user has any confirmed booking
	// history at all (trial consumption check).
	HasConfirmedByUser(ctx context.Context, tenantID string, userID primitive.ObjectID) (bool, error)
	// ChildConfirmedOnLesson reports whether any confirmed booking on the
	// lesson belongs to a child of the given parent user.
	ChildConfirmedOnLesson(ctx context.Context, tenantID string, lessonID, parentUserID primitive.ObjectID) (bool, error)
}

// ScheduleRepository stores the per-tenant weekly schedule template.
type ScheduleRepository interface {
	Get(ctx context.Context, tenantID string) (*domain.WeeklySchedule, error)
	Upsert(ctx context.Context, schedule *domain.WeeklySchedule) error
	// ListTenantIDs returns every tenant with a stored schedule; used by the
	// background generation run.
	ListTenantIDs(ctx context.Context) ([]string, error)
}

// ClassOptionRepository reads class options; they are authored elsewhere.
type ClassOptionRepository interface {
	GetByID(ctx context.Context, tenantID string, id primitive.ObjectID) (*domain.ClassOption, error)
}

// SubscriptionRepository reads billing-synced subscriptions.
type SubscriptionRepository interface {
	// FindActiveByUser returns the subscription covering now for the user,
	// or ErrNotFound.
	FindActiveByUser(ctx context.Context, tenantID string, userID primitive.ObjectID, now time.Time) (*domain.Subscription, error)
}

// PlanRepository reads membership plans.
type PlanRepository interface {
	GetByID(ctx context.Context, tenantID string, id primitive.ObjectID) (*domain.Plan, error)
}
