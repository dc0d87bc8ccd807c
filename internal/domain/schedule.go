package domain

import (
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"openmat/bookings-app/internal/timeutil"
)

// Weekday names for validation messages, Monday first to match Days indexing.
var weekdayNames = [7]string{
	"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday",
}

var (
	ErrScheduleInvalid = errors.New("schedule validation failed")
)

// TimeSlot is one recurring wall-clock slot within a weekly schedule day.
// ClassOptionID, InstructorID and LockOutMinutes override the schedule-level
// defaults when set.
type TimeSlot struct {
	StartTime      timeutil.TimeOfDay  `bson:"startTime" json:"startTime"`
	EndTime        timeutil.TimeOfDay  `bson:"endTime" json:"endTime"`
	ClassOptionID  *primitive.ObjectID `bson:"classOptionId,omitempty" json:"classOptionId,omitempty"`
	Location       string              `bson:"location,omitempty" json:"location,omitempty"`
	InstructorID   *primitive.ObjectID `bson:"instructorId,omitempty" json:"instructorId,omitempty"`
	LockOutMinutes *int                `bson:"lockOutMinutes,omitempty" json:"lockOutMinutes,omitempty"`
}

// DaySchedule holds the ordered slots for one weekday.
type DaySchedule struct {
	TimeSlots []TimeSlot `bson:"timeSlots,omitempty" json:"timeSlots,omitempty"`
}

// WeeklySchedule is the operator-authored recurring template a tenant's
// lessons are generated from. One document per tenant. Days is Monday-first:
// index 0 = Monday ... index 6 = Sunday.
type WeeklySchedule struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TenantID       string             `bson:"tenantId" json:"tenantId"`
	ValidFrom      time.Time          `bson:"validFrom" json:"validFrom"` // inclusive calendar dates
	ValidTo        time.Time          `bson:"validTo" json:"validTo"`
	LockOutMinutes int                `bson:"lockOutMinutes" json:"lockOutMinutes"`
	ClassOptionID  primitive.ObjectID `bson:"classOptionId" json:"classOptionId"` // default class option
	Days           [7]DaySchedule     `bson:"days" json:"days"`
	CreatedAt      time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// Validate checks the schedule at edit time: the validity window must be
// ordered, every slot must end after it starts, and within one day two slots
// sharing a location must not overlap. Expansion assumes a valid schedule
// and does not re-check.
func (s *WeeklySchedule) Validate() error {
	if s.TenantID == "" {
		return fmt.Errorf("%w: tenant is required", ErrScheduleInvalid)
	}
	if s.ClassOptionID == primitive.NilObjectID {
		return fmt.Errorf("%w: default class option is required", ErrScheduleInvalid)
	}
	if !s.ValidFrom.IsZero() && !s.ValidTo.IsZero() && s.ValidTo.Before(s.ValidFrom) {
		return fmt.Errorf("%w: validTo is before validFrom", ErrScheduleInvalid)
	}
	if s.LockOutMinutes < 0 {
		return fmt.Errorf("%w: lockOutMinutes must not be negative", ErrScheduleInvalid)
	}

	for dayIdx, day := range s.Days {
		for i, slot := range day.TimeSlots {
			if !slot.StartTime.Before(slot.EndTime) {
				return fmt.Errorf("%w: %s slot %d ends at or before its start (%s-%s)",
					ErrScheduleInvalid, weekdayNames[dayIdx], i+1, slot.StartTime, slot.EndTime)
			}
			if slot.LockOutMinutes != nil && *slot.LockOutMinutes < 0 {
				return fmt.Errorf("%w: %s slot %d has a negative lock-out", ErrScheduleInvalid, weekdayNames[dayIdx], i+1)
			}

			// Overlap is only a conflict when both slots claim the same location.
			for j := i + 1; j < len(day.TimeSlots); j++ {
				other := day.TimeSlots[j]
				if slot.Location != other.Location {
					continue
				}
				if slot.StartTime.Minutes() < other.EndTime.Minutes() &&
					other.StartTime.Minutes() < slot.EndTime.Minutes() {
					return fmt.Errorf("%w: %s slots %d and %d overlap at location %q",
						ErrScheduleInvalid, weekdayNames[dayIdx], i+1, j+1, slot.Location)
				}
			}
		}
	}
	return nil
}

// SlotClassOption resolves the effective class option for a slot.
func (s *WeeklySchedule) SlotClassOption(slot TimeSlot) primitive.ObjectID {
	if slot.ClassOptionID != nil && *slot.ClassOptionID != primitive.NilObjectID {
		return *slot.ClassOptionID
	}
	return s.ClassOptionID
}

// SlotLockOut resolves the effective lock-out minutes for a slot.
func (s *WeeklySchedule) SlotLockOut(slot TimeSlot) int {
	if slot.LockOutMinutes != nil {
		return *slot.LockOutMinutes
	}
	return s.LockOutMinutes
}

// DayIndex maps a time.Weekday (Sunday = 0) to the Monday-first Days index.
func DayIndex(w time.Weekday) int {
	return (int(w) + 6) % 7
}
