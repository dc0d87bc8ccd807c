package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"openmat/bookings-app/internal/domain"
	"openmat/bookings-app/internal/repository"
	"openmat/bookings-app/internal/timeutil"
)

// --- Error Definitions ---
var (
	ErrScheduleNotFound = errors.New("weekly schedule not found")
	ErrInvalidDateRange = errors.New("invalid date range")
	// ErrLessonConflict marks an idempotency-key collision where the existing
	// lesson disagrees on class option. The slot is skipped, never reconciled.
	ErrLessonConflict = errors.New("lesson exists at this time and location with a different class option")
)

// ExpandFailure records one slot or day that could not be materialized.
// Failures never abort the run.
type ExpandFailure struct {
	Date   string `json:"date"`
	Slot   string `json:"slot,omitempty"`
	Reason string `json:"reason"`
}

// ExpandSummary is the structured result of one expansion run.
type ExpandSummary struct {
	RunID     string          `json:"runId"`
	Created   []domain.Lesson `json:"created"`
	Skipped   int             `json:"skipped"`
	Deleted   int             `json:"deleted"`
	Cancelled bool            `json:"cancelled,omitempty"` // run stopped early on context cancellation
	Failures  []ExpandFailure `json:"failures,omitempty"`
}

// ScheduleService owns the weekly schedule template and its expansion into
// concrete lessons.
type ScheduleService interface {
	GetSchedule(ctx context.Context, tenantID string) (*domain.WeeklySchedule, error)
	SaveSchedule(ctx context.Context, schedule *domain.WeeklySchedule) error

	// Expand materializes lessons for every calendar day in
	// [rangeStart, rangeEnd] (inclusive, clamped to the schedule's validity
	// window). Re-running over the same range is a no-op for lessons that
	// already exist. With clearExisting, in-range lessons without confirmed
	// bookings are deleted first so a reshaped schedule can regenerate.
	Expand(ctx context.Context, tenantID string, rangeStart, rangeEnd time.Time, clearExisting bool) (*ExpandSummary, error)
}

// scheduleService implements the ScheduleService interface.
type scheduleService struct {
	scheduleRepo repository.ScheduleRepository
	lessonRepo   repository.LessonRepository
	bookingRepo  repository.BookingRepository
	loc          *time.Location
	logger       *zap.Logger
}

// NewScheduleService creates a new instance of scheduleService. loc is the
// deployment's IANA timezone; all wall-clock arithmetic happens in it.
func NewScheduleService(
	scheduleRepo repository.ScheduleRepository,
	lessonRepo repository.LessonRepository,
	bookingRepo repository.BookingRepository,
	loc *time.Location,
	logger *zap.Logger,
) ScheduleService {
	return &scheduleService{
		scheduleRepo: scheduleRepo,
		lessonRepo:   lessonRepo,
		bookingRepo:  bookingRepo,
		loc:          loc,
		logger:       logger,
	}
}

// GetSchedule returns the tenant's weekly schedule template.
func (s *scheduleService) GetSchedule(ctx context.Context, tenantID string) (*domain.WeeklySchedule, error) {
	schedule, err := s.scheduleRepo.Get(ctx, tenantID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrScheduleNotFound
		}
		return nil, err
	}
	return schedule, nil
}

// SaveSchedule validates and stores the weekly schedule. Slot overlap and
// ordering problems are rejected here, at edit time, not during expansion.
func (s *scheduleService) SaveSchedule(ctx context.Context, schedule *domain.WeeklySchedule) error {
	if err := schedule.Validate(); err != nil {
		return err
	}
	return s.scheduleRepo.Upsert(ctx, schedule)
}

// Expand turns the weekly template into concrete lessons, one calendar day
// at a time in ascending order. Days are expanded as a unit: cancellation is
// honored between days, so an interrupted run leaves a consistent,
// resumable prefix.
func (s *scheduleService) Expand(ctx context.Context, tenantID string, rangeStart, rangeEnd time.Time, clearExisting bool) (*ExpandSummary, error) {
	schedule, err := s.GetSchedule(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	// Pre-flight validation; a malformed schedule never starts a run.
	if err := schedule.Validate(); err != nil {
		return nil, err
	}

	start := timeutil.DateOnly(rangeStart, s.loc)
	end := timeutil.DateOnly(rangeEnd, s.loc)
	if end.Before(start) {
		return nil, fmt.Errorf("%w: end %s before start %s", ErrInvalidDateRange,
			end.Format("2006-01-02"), start.Format("2006-01-02"))
	}

	// Clamp to the schedule's validity window.
	if !schedule.ValidFrom.IsZero() {
		if validFrom := timeutil.DateOnly(schedule.ValidFrom, s.loc); start.Before(validFrom) {
			start = validFrom
		}
	}
	if !schedule.ValidTo.IsZero() {
		if validTo := timeutil.DateOnly(schedule.ValidTo, s.loc); end.After(validTo) {
			end = validTo
		}
	}

	summary := &ExpandSummary{
		RunID:   uuid.NewString(),
		Created: []domain.Lesson{},
	}

	logger := s.logger.With(
		zap.String("runId", summary.RunID),
		zap.String("tenantId", tenantID),
	)
	logger.Info("expanding weekly schedule",
		zap.Time("rangeStart", start),
		zap.Time("rangeEnd", end),
		zap.Bool("clearExisting", clearExisting),
	)

	if end.Before(start) {
		// Requested range lies entirely outside the validity window.
		return summary, nil
	}

	if clearExisting {
		deleted, err := s.clearUnbookedLessons(ctx, tenantID, start, end, logger)
		if err != nil {
			// Clearing is best-effort; generation still proceeds and the
			// idempotency check keeps surviving lessons intact.
			logger.Warn("failed to clear existing lessons", zap.Error(err))
			summary.Failures = append(summary.Failures, ExpandFailure{
				Date:   start.Format("2006-01-02"),
				Reason: fmt.Sprintf("clear existing: %v", err),
			})
		} else {
			summary.Deleted = deleted
		}
	}

	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		// A day's slots are expanded atomically as a unit; cancellation is
		// only observed between days.
		if ctx.Err() != nil {
			logger.Warn("expansion cancelled", zap.Time("stoppedBefore", day))
			summary.Cancelled = true
			break
		}
		s.expandDay(ctx, schedule, tenantID, day, summary, logger)
	}

	logger.Info("expansion finished",
		zap.Int("created", len(summary.Created)),
		zap.Int("skipped", summary.Skipped),
		zap.Int("deleted", summary.Deleted),
		zap.Int("failed", len(summary.Failures)),
	)
	return summary, nil
}

// expandDay materializes every slot of one calendar day. Per-slot failures
// are appended to the summary and the day continues.
func (s *scheduleService) expandDay(
	ctx context.Context,
	schedule *domain.WeeklySchedule,
	tenantID string,
	day time.Time,
	summary *ExpandSummary,
	logger *zap.Logger,
) {
	dayIdx := domain.DayIndex(day.Weekday())
	slots := schedule.Days[dayIdx].TimeSlots
	if len(slots) == 0 {
		return
	}

	dateStr := day.Format("2006-01-02")

	for _, slot := range slots {
		startInstant := timeutil.At(day, slot.StartTime, s.loc)
		endInstant := timeutil.At(day, slot.EndTime, s.loc)

		// Idempotency check: (startTime, endTime, location) is the sole
		// de-duplication key. A slot that differs only by class option
		// collides here; we surface the divergence as a skip + warning.
		existing, err := s.lessonRepo.FindByKey(ctx, tenantID, startInstant, endInstant, slot.Location)
		switch {
		case err == nil:
			summary.Skipped++
			if existing.ClassOptionID != schedule.SlotClassOption(slot) {
				logger.Warn("lesson key collision with a different class option",
					zap.String("date", dateStr),
					zap.String("slot", slot.StartTime.String()),
					zap.String("location", slot.Location),
					zap.Error(ErrLessonConflict),
				)
			}
			continue
		case errors.Is(err, repository.ErrNotFound):
			// Fall through and create.
		default:
			logger.Error("lesson lookup failed",
				zap.String("date", dateStr),
				zap.String("slot", slot.StartTime.String()),
				zap.Error(err),
			)
			summary.Failures = append(summary.Failures, ExpandFailure{
				Date: dateStr, Slot: slot.StartTime.String(), Reason: err.Error(),
			})
			continue
		}

		lesson := &domain.Lesson{
			TenantID:       tenantID,
			Date:           day,
			StartTime:      startInstant,
			EndTime:        endInstant,
			Location:       slot.Location,
			ClassOptionID:  schedule.SlotClassOption(slot),
			InstructorID:   slot.InstructorID,
			LockOutMinutes: schedule.SlotLockOut(slot),
			Active:         true,
		}

		if _, err := s.lessonRepo.Create(ctx, lesson); err != nil {
			if errors.Is(err, repository.ErrDuplicateKey) {
				// A concurrent run materialized it between lookup and insert.
				summary.Skipped++
				continue
			}
			logger.Error("lesson creation failed",
				zap.String("date", dateStr),
				zap.String("slot", slot.StartTime.String()),
				zap.Error(err),
			)
			summary.Failures = append(summary.Failures, ExpandFailure{
				Date: dateStr, Slot: slot.StartTime.String(), Reason: err.Error(),
			})
			continue
		}

		summary.Created = append(summary.Created, *lesson)
	}
}

// clearUnbookedLessons deletes in-range lessons with zero confirmed bookings.
// Lessons with confirmed attendance are never deleted, even when the new
// schedule would regenerate them differently.
func (s *scheduleService) clearUnbookedLessons(ctx context.Context, tenantID string, start, end time.Time, logger *zap.Logger) (int, error) {
	// The window spans the first day's midnight through the last day's end.
	windowStart := start
	windowEnd := time.Date(end.Year(), end.Month(), end.Day(), 23, 59, 59, 999e6, s.loc)

	lessons, err := s.lessonRepo.Find(ctx, repository.LessonFilter{
		TenantID: tenantID,
		From:     &windowStart,
		To:       &windowEnd,
	})
	if err != nil {
		return 0, err
	}
	if len(lessons) == 0 {
		return 0, nil
	}

	ids := make([]primitive.ObjectID, 0, len(lessons))
	for _, lesson := range lessons {
		ids = append(ids, lesson.ID)
	}

	confirmed, err := s.bookingRepo.CountConfirmedByLessons(ctx, tenantID, ids)
	if err != nil {
		return 0, err
	}

	deletable := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if confirmed[id] == 0 {
			deletable = append(deletable, id)
		}
	}
	if protected := len(ids) - len(deletable); protected > 0 {
		logger.Info("retaining lessons with confirmed bookings", zap.Int("protected", protected))
	}

	deleted, err := s.lessonRepo.DeleteByIDs(ctx, tenantID, deletable)
	if err != nil {
		return 0, err
	}
	return int(deleted), nil
}
