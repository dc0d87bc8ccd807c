package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// BookingState type for the booking lifecycle.
type BookingState string

const (
	BookingPending   BookingState = "pending"
	BookingConfirmed BookingState = "confirmed"
	BookingWaiting   BookingState = "waiting"   // on the waitlist
	BookingCancelled BookingState = "cancelled" // terminal
)

// Booking is the durable record of a user's intent to attend a lesson.
// At most one row per (lesson, user) pair may be in a non-cancelled state;
// the admission service enforces that under a per-lesson lock.
type Booking struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TenantID string             `bson:"tenantId" json:"tenantId"`
	LessonID primitive.ObjectID `bson:"lessonId" json:"lessonId"`
	UserID   primitive.ObjectID `bson:"userId" json:"userId"`
	// ParentUserID is set when the booked user is a child account; child-class
	// status checks look the parent up through this field.
	ParentUserID *primitive.ObjectID `bson:"parentUserId,omitempty" json:"parentUserId,omitempty"`
	Status       BookingState        `bson:"status" json:"status"`
	// LessonStartTime is denormalized from the lesson so quota window counts
	// don't need a join.
	LessonStartTime time.Time `bson:"lessonStartTime" json:"lessonStartTime"`
	CreatedAt       time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time `bson:"updatedAt" json:"updatedAt"`
}

// IsActive reports whether the booking still occupies a (lesson, user) pair.
func (b *Booking) IsActive() bool {
	return b.Status != BookingCancelled
}
