package service

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"openmat/bookings-app/internal/domain"
	"openmat/bookings-app/internal/repository"
)

// --- Error Definitions ---
var (
	ErrLessonNotFound = errors.New("lesson not found")
	// ErrHasConfirmedBookings - deletion refused while confirmed attendance
	// records exist.
	ErrHasConfirmedBookings = errors.New("lesson has confirmed bookings and cannot be deleted")
)

// Viewer identifies the user a status read is computed for. A nil Viewer is
// an anonymous read.
type Viewer struct {
	UserID primitive.ObjectID
}

// LessonDetails combines a lesson with its per-viewer derived state. The
// status and remaining capacity are recomputed on every read and never
// persisted.
type LessonDetails struct {
	domain.Lesson
	BookingStatus     domain.LessonStatus `json:"bookingStatus"`
	RemainingCapacity int                 `json:"remainingCapacity"`
}

type LessonService interface {
	GetLessons(ctx context.Context, tenantID string, from, to time.Time, viewer *Viewer) ([]LessonDetails, error)
	GetLesson(ctx context.Context, tenantID string, id primitive.ObjectID, viewer *Viewer) (*LessonDetails, error)
	// DeleteLesson removes a lesson unless it has confirmed bookings.
	DeleteLesson(ctx context.Context, tenantID string, id primitive.ObjectID) error
}

// lessonService implements the LessonService interface.
type lessonService struct {
	lessonRepo      repository.LessonRepository
	bookingRepo     repository.BookingRepository
	classOptionRepo repository.ClassOptionRepository
	logger          *zap.Logger
	now             func() time.Time
}

// NewLessonService creates a new instance of lessonService. now is the clock
// collaborator; pass nil for time.Now.
func NewLessonService(
	lessonRepo repository.LessonRepository,
	bookingRepo repository.BookingRepository,
	classOptionRepo repository.ClassOptionRepository,
	logger *zap.Logger,
	now func() time.Time,
) LessonService {
	if now == nil {
		now = time.Now
	}
	return &lessonService{
		lessonRepo:      lessonRepo,
		bookingRepo:     bookingRepo,
		classOptionRepo: classOptionRepo,
		logger:          logger,
		now:             now,
	}
}

// GetLessons lists lessons starting in [from, to] with derived status for
// the viewer.
func (s *lessonService) GetLessons(ctx context.Context, tenantID string, from, to time.Time, viewer *Viewer) ([]LessonDetails, error) {
	lessons, err := s.lessonRepo.Find(ctx, repository.LessonFilter{
		TenantID:   tenantID,
		From:       &from,
		To:         &to,
		OnlyActive: true,
	})
	if err != nil {
		return nil, err
	}
	if len(lessons) == 0 {
		return []LessonDetails{}, nil
	}

	ids := make([]primitive.ObjectID, 0, len(lessons))
	for _, lesson := range lessons {
		ids = append(ids, lesson.ID)
	}
	confirmedCounts, err := s.bookingRepo.CountConfirmedByLessons(ctx, tenantID, ids)
	if err != nil {
		return nil, err
	}

	// Class options repeat across lessons; fetch each once.
	classOptions := make(map[primitive.ObjectID]*domain.ClassOption)

	details := make([]LessonDetails, 0, len(lessons))
	for i := range lessons {
		lesson := &lessons[i]

		classOption, ok := classOptions[lesson.ClassOptionID]
		if !ok {
			classOption, err = s.classOptionRepo.GetByID(ctx, tenantID, lesson.ClassOptionID)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					// Orphaned reference; surface the lesson without capacity
					// information rather than failing the whole listing.
					s.logger.Warn("lesson references missing class option",
						zap.String("lessonId", lesson.ID.Hex()),
						zap.String("classOptionId", lesson.ClassOptionID.Hex()),
					)
					classOption = &domain.ClassOption{ID: lesson.ClassOptionID}
				} else {
					return nil, err
				}
			}
			classOptions[lesson.ClassOptionID] = classOption
		}

		detail, err := s.buildDetails(ctx, lesson, classOption, confirmedCounts[lesson.ID], viewer)
		if err != nil {
			return nil, err
		}
		details = append(details, *detail)
	}
	return details, nil
}

// GetLesson returns one lesson with derived status for the viewer.
func (s *lessonService) GetLesson(ctx context.Context, tenantID string, id primitive.ObjectID, viewer *Viewer) (*LessonDetails, error) {
	lesson, err := s.lessonRepo.GetByID(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrLessonNotFound
		}
		return nil, err
	}

	classOption, err := s.classOptionRepo.GetByID(ctx, tenantID, lesson.ClassOptionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			classOption = &domain.ClassOption{ID: lesson.ClassOptionID}
		} else {
			return nil, err
		}
	}

	confirmedCount, err := s.bookingRepo.CountConfirmedByLesson(ctx, tenantID, lesson.ID)
	if err != nil {
		return nil, err
	}

	return s.buildDetails(ctx, lesson, classOption, confirmedCount, viewer)
}

// DeleteLesson refuses to delete a lesson with confirmed bookings.
func (s *lessonService) DeleteLesson(ctx context.Context, tenantID string, id primitive.ObjectID) error {
	lesson, err := s.lessonRepo.GetByID(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrLessonNotFound
		}
		return err
	}

	confirmedCount, err := s.bookingRepo.CountConfirmedByLesson(ctx, tenantID, lesson.ID)
	if err != nil {
		return err
	}
	if confirmedCount > 0 {
		return ErrHasConfirmedBookings
	}

	_, err = s.lessonRepo.DeleteByIDs(ctx, tenantID, []primitive.ObjectID{lesson.ID})
	return err
}

// buildDetails assembles the pure status query from persisted state and the
// injected clock.
func (s *lessonService) buildDetails(
	ctx context.Context,
	lesson *domain.Lesson,
	classOption *domain.ClassOption,
	confirmedCount int,
	viewer *Viewer,
) (*LessonDetails, error) {
	query := domain.LessonStatusQuery{
		StartTime:      lesson.StartTime,
		LockOutMinutes: lesson.LockOutMinutes,
		Capacity:       classOption.Places,
		ConfirmedCount: confirmedCount,
		Trialable:      classOption.Trialable(),
		Now:            s.now(),
	}

	if viewer != nil && viewer.UserID != primitive.NilObjectID {
		query.ViewerKnown = true

		viewerBookings, err := s.bookingRepo.Find(ctx, repository.BookingFilter{
			TenantID: lesson.TenantID,
			LessonID: &lesson.ID,
			UserID:   &viewer.UserID,
			Statuses: []domain.BookingState{domain.BookingConfirmed, domain.BookingWaiting},
		})
		if err != nil {
			return nil, err
		}
		for _, b := range viewerBookings {
			switch b.Status {
			case domain.BookingConfirmed:
				query.ViewerConfirmedCount++
			case domain.BookingWaiting:
				query.ViewerWaiting = true
			}
		}

		if classOption.Type == domain.ClassTypeChild {
			childConfirmed, err := s.bookingRepo.ChildConfirmedOnLesson(ctx, lesson.TenantID, lesson.ID, viewer.UserID)
			if err != nil {
				return nil, err
			}
			query.ChildConfirmed = childConfirmed
		}

		if query.Trialable {
			consumed, err := s.bookingRepo.HasConfirmedByUser(ctx, lesson.TenantID, viewer.UserID)
			if err != nil {
				return nil, err
			}
			query.TrialConsumed = consumed
		}
	}

	return &LessonDetails{
		Lesson:            *lesson,
		BookingStatus:     domain.ResolveLessonStatus(query),
		RemainingCapacity: domain.RemainingCapacity(classOption.Places, confirmedCount),
	}, nil
}
