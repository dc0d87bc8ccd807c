package domain

import "time"

// LessonStatus is the live, per-viewer booking state of a lesson. It is
// derived on every read from the current time, remaining capacity and the
// viewer's own bookings; it is never persisted.
type LessonStatus string

const (
	// LessonClosed — the lesson has started, or its lock-out window has
	// passed and the viewer holds no confirmed booking.
	LessonClosed LessonStatus = "closed"
	// LessonBooked — the viewer holds a confirmed booking.
	LessonBooked LessonStatus = "booked"
	// LessonMultipleBooked — the viewer holds more than one confirmed
	// booking. Should not happen; surfaced so operators can repair the data.
	LessonMultipleBooked LessonStatus = "multipleBooked"
	// LessonChildrenBooked — a child of the viewer holds a confirmed booking
	// on a child-class lesson.
	LessonChildrenBooked LessonStatus = "childrenBooked"
	// LessonWaiting — the viewer is on the waitlist.
	LessonWaiting LessonStatus = "waiting"
	// LessonWaitlist — no viewer booking and the lesson is at capacity.
	LessonWaitlist LessonStatus = "waitlist"
	// LessonTrialable — open, trial-eligible, and the viewer has not yet
	// consumed a trial.
	LessonTrialable LessonStatus = "trialable"
	// LessonActive — open for booking.
	LessonActive LessonStatus = "active"
)

// LessonStatusQuery carries everything ResolveLessonStatus needs. Callers
// assemble it from the lesson, its class option, the confirmed booking count
// and the viewer's own bookings.
type LessonStatusQuery struct {
	StartTime      time.Time
	LockOutMinutes int
	Capacity       int
	ConfirmedCount int

	// Viewer state. ViewerKnown is false for anonymous reads, in which case
	// the remaining viewer fields are ignored.
	ViewerKnown          bool
	ViewerConfirmedCount int
	ViewerWaiting        bool
	ChildConfirmed       bool // child-class lessons only
	TrialConsumed        bool // viewer has any confirmed booking history

	Trialable bool
	Now       time.Time
}

// ResolveLessonStatus computes the discrete booking status of a lesson.
// Precedence, first match wins:
//
//  1. closed    — started, or past the lock-out with no viewer confirmation
//  2. childrenBooked / booked / multipleBooked — viewer's confirmed state
//  3. waiting   — viewer is on the waitlist (and the lesson is still open)
//  4. waitlist  — at capacity
//  5. trialable — trial-eligible and no trial consumed
//  6. active
//
// Pure function; safe to call on every read.
func ResolveLessonStatus(q LessonStatusQuery) LessonStatus {
	// Started lessons are closed for everyone, regardless of bookings.
	if !q.Now.Before(q.StartTime) {
		return LessonClosed
	}

	if q.ViewerKnown {
		if q.ChildConfirmed {
			return LessonChildrenBooked
		}
		if q.ViewerConfirmedCount >= 2 {
			return LessonMultipleBooked
		}
		if q.ViewerConfirmedCount == 1 {
			return LessonBooked
		}
	}

	// The lock-out window only exempts viewers with a confirmed booking,
	// matched above. A waitlisted viewer is closed out like everyone else:
	// their spot can no longer be honored once check-in ends.
	if q.LockOutMinutes > 0 {
		deadline := q.StartTime.Add(-time.Duration(q.LockOutMinutes) * time.Minute)
		if !q.Now.Before(deadline) {
			return LessonClosed
		}
	}

	if q.ViewerKnown && q.ViewerWaiting {
		return LessonWaiting
	}

	if q.ConfirmedCount >= q.Capacity {
		return LessonWaitlist
	}

	if q.Trialable && (!q.ViewerKnown || !q.TrialConsumed) {
		return LessonTrialable
	}

	return LessonActive
}

// RemainingCapacity never reports below zero even if confirmed bookings
// exceed capacity (possible after an operator shrinks a class option).
func RemainingCapacity(capacity, confirmedCount int) int {
	if remaining := capacity - confirmedCount; remaining > 0 {
		return remaining
	}
	return 0
}
