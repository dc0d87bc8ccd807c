package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Lesson is a single scheduled class occurrence. Its identity, within a
// tenant, is the tuple (StartTime, EndTime, Location) — the schedule
// expansion engine uses exactly that tuple to decide whether a lesson has
// already been materialized. Lessons are derived from the weekly schedule
// and regenerable; once a lesson has a confirmed booking it is protected
// from regeneration-time deletion.
type Lesson struct {
	ID             primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	TenantID       string              `bson:"tenantId" json:"tenantId"`
	Date           time.Time           `bson:"date" json:"date"` // local midnight of the calendar day the lesson belongs to
	StartTime      time.Time           `bson:"startTime" json:"startTime"`
	EndTime        time.Time           `bson:"endTime" json:"endTime"`
	Location       string              `bson:"location,omitempty" json:"location,omitempty"`
	ClassOptionID  primitive.ObjectID  `bson:"classOptionId" json:"classOptionId"`
	InstructorID   *primitive.ObjectID `bson:"instructorId,omitempty" json:"instructorId,omitempty"`
	LockOutMinutes int                 `bson:"lockOutMinutes" json:"lockOutMinutes"`
	Active         bool                `bson:"active" json:"active"`
	CreatedAt      time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time           `bson:"updatedAt" json:"updatedAt"`
}

// LockOutDeadline is the instant after which new check-ins are disallowed.
// A lock-out of zero means only the start time closes the lesson.
func (l *Lesson) LockOutDeadline() time.Time {
	if l.LockOutMinutes <= 0 {
		return l.StartTime
	}
	return l.StartTime.Add(-time.Duration(l.LockOutMinutes) * time.Minute)
}
