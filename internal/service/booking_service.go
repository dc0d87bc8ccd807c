package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"openmat/bookings-app/internal/domain"
	"openmat/bookings-app/internal/repository"
)

// --- Error Definitions ---
var (
	ErrBookingNotFound  = errors.New("booking not found")
	ErrBookingNotOwned  = errors.New("booking does not belong to this user")
	ErrCapacityExceeded = errors.New("lesson is fully booked")
	ErrLessonClosed     = errors.New("lesson is closed for booking")
	ErrQuotaExceeded    = errors.New("subscription session limit reached")
	ErrInvalidStatus    = errors.New("requested status must be confirmed or waiting")
	ErrWaitlistEmpty    = errors.New("no waiting bookings to promote")
)

// AdmissionResult tags the outcome of a booking attempt.
type AdmissionResult string

const (
	AdmissionConfirmed  AdmissionResult = "confirmed"
	AdmissionWaitlisted AdmissionResult = "waitlisted"
	AdmissionRejected   AdmissionResult = "rejected"
)

// BookingDecision is the typed result of Admit. Rejections carry their
// reason here instead of escaping as errors; the error return of Admit is
// reserved for infrastructure failures.
type BookingDecision struct {
	Result  AdmissionResult `json:"result"`
	Booking *domain.Booking `json:"booking,omitempty"`
	Reason  string          `json:"reason,omitempty"`
}

// AdmitRequest carries one booking attempt.
type AdmitRequest struct {
	TenantID     string
	LessonID     primitive.ObjectID
	UserID       primitive.ObjectID
	ParentUserID *primitive.ObjectID // set when booking on behalf of a child
	// Requested is confirmed or waiting. The engine never silently downgrades
	// a confirmed request to the waitlist; a full lesson rejects it.
	Requested domain.BookingState
}

type BookingService interface {
	Admit(ctx context.Context, req AdmitRequest) (*BookingDecision, error)
	// Cancel marks a booking cancelled. Cancellation never promotes a
	// waitlisted user; promotion is an explicit, separate operation.
	Cancel(ctx context.Context, tenantID string, bookingID, actorID primitive.ObjectID, actorIsAdmin bool) (*domain.Booking, error)
	// PromoteNextWaiting confirms the oldest waiting booking on a lesson if
	// capacity allows.
	PromoteNextWaiting(ctx context.Context, tenantID string, lessonID primitive.ObjectID) (*domain.Booking, error)
}

// lockStripes sizes the fixed pool of admission mutexes. Lessons hash onto a
// stripe, so memory stays constant no matter how many lessons ever get booked;
// two lessons sharing a stripe only costs a little contention.
const lockStripes = 64

// bookingService implements the BookingService interface. The capacity
// check-then-insert for confirmed admissions runs under a per-lesson mutex;
// this is the only shared-resource serialization in the engine.
type bookingService struct {
	lessonRepo      repository.LessonRepository
	bookingRepo     repository.BookingRepository
	classOptionRepo repository.ClassOptionRepository
	subscriptionSvc SubscriptionService
	logger          *zap.Logger
	now             func() time.Time

	lessonLocks [lockStripes]sync.Mutex
}

// NewBookingService creates a new instance of bookingService.
func NewBookingService(
	lessonRepo repository.LessonRepository,
	bookingRepo repository.BookingRepository,
	classOptionRepo repository.ClassOptionRepository,
	subscriptionSvc SubscriptionService,
	logger *zap.Logger,
	now func() time.Time,
) BookingService {
	if now == nil {
		now = time.Now
	}
	return &bookingService{
		lessonRepo:      lessonRepo,
		bookingRepo:     bookingRepo,
		classOptionRepo: classOptionRepo,
		subscriptionSvc: subscriptionSvc,
		logger:          logger,
		now:             now,
	}
}

// lockLesson returns the stripe mutex serializing admissions for one lesson.
func (s *bookingService) lockLesson(lessonID primitive.ObjectID) *sync.Mutex {
	// The trailing ObjectID bytes hold the per-process counter and spread
	// consecutive lessons across stripes.
	idx := (int(lessonID[10])<<8 | int(lessonID[11])) % lockStripes
	return &s.lessonLocks[idx]
}

func rejected(reason error) *BookingDecision {
	return &BookingDecision{Result: AdmissionRejected, Reason: reason.Error()}
}

// Admit decides whether a booking attempt becomes confirmed, waitlisted or
// rejected. An existing non-cancelled booking for the (lesson, user) pair is
// reused and transitioned, never duplicated.
func (s *bookingService) Admit(ctx context.Context, req AdmitRequest) (*BookingDecision, error) {
	if req.Requested != domain.BookingConfirmed && req.Requested != domain.BookingWaiting {
		return rejected(ErrInvalidStatus), nil
	}

	lock := s.lockLesson(req.LessonID)
	lock.Lock()
	defer lock.Unlock()

	lesson, err := s.lessonRepo.GetByID(ctx, req.TenantID, req.LessonID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrLessonNotFound
		}
		return nil, err
	}
	if !lesson.Active {
		return rejected(ErrLessonClosed), nil
	}

	classOption, err := s.classOptionRepo.GetByID(ctx, req.TenantID, lesson.ClassOptionID)
	if err != nil {
		return nil, err
	}

	existing, err := s.bookingRepo.FindActiveByLessonAndUser(ctx, req.TenantID, req.LessonID, req.UserID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	// Time-based closing: a started lesson is closed for everyone; the
	// lock-out window closes it for users without a confirmed booking.
	now := s.now()
	if !now.Before(lesson.StartTime) {
		return rejected(ErrLessonClosed), nil
	}
	hasConfirmed := existing != nil && existing.Status == domain.BookingConfirmed
	if !hasConfirmed && lesson.LockOutMinutes > 0 && !now.Before(lesson.LockOutDeadline()) {
		return rejected(ErrLessonClosed), nil
	}

	if req.Requested == domain.BookingConfirmed {
		// Membership quota: a subscription with a reached session allowance
		// cannot confirm another booking in the same window.
		sub, err := s.subscriptionSvc.ActiveSubscription(ctx, req.TenantID, req.UserID)
		if err != nil {
			return nil, err
		}
		if sub != nil && !hasConfirmed {
			reached, err := s.subscriptionSvc.HasReachedLimit(ctx, req.TenantID, req.UserID, sub, lesson.StartTime)
			if err != nil {
				return nil, err
			}
			if reached {
				return rejected(ErrQuotaExceeded), nil
			}
		}
	}

	confirmedCount, err := s.bookingRepo.CountConfirmedByLesson(ctx, req.TenantID, req.LessonID)
	if err != nil {
		return nil, err
	}
	remaining := domain.RemainingCapacity(classOption.Places, confirmedCount)

	if existing != nil {
		return s.admitExisting(ctx, req, existing, remaining)
	}

	if req.Requested == domain.BookingConfirmed && remaining == 0 {
		return rejected(ErrCapacityExceeded), nil
	}

	booking := &domain.Booking{
		TenantID:        req.TenantID,
		LessonID:        req.LessonID,
		UserID:          req.UserID,
		ParentUserID:    req.ParentUserID,
		Status:          req.Requested,
		LessonStartTime: lesson.StartTime,
	}
	id, err := s.bookingRepo.Create(ctx, booking)
	if err != nil {
		return nil, err
	}
	booking.ID = id

	result := AdmissionConfirmed
	if req.Requested == domain.BookingWaiting {
		result = AdmissionWaitlisted
	}
	s.logger.Info("booking admitted",
		zap.String("tenantId", req.TenantID),
		zap.String("lessonId", req.LessonID.Hex()),
		zap.String("userId", req.UserID.Hex()),
		zap.String("result", string(result)),
	)
	return &BookingDecision{Result: result, Booking: booking}, nil
}

// admitExisting transitions a reused booking row. Runs under the lesson lock.
func (s *bookingService) admitExisting(ctx context.Context, req AdmitRequest, existing *domain.Booking, remaining int) (*BookingDecision, error) {
	switch {
	case existing.Status == req.Requested:
		// Repeat of the current state; idempotent.

	case req.Requested == domain.BookingConfirmed:
		// pending or waiting -> confirmed still needs a free place.
		if remaining == 0 {
			return rejected(ErrCapacityExceeded), nil
		}
		if err := s.bookingRepo.UpdateStatus(ctx, req.TenantID, existing.ID, domain.BookingConfirmed); err != nil {
			return nil, err
		}
		existing.Status = domain.BookingConfirmed

	case existing.Status == domain.BookingConfirmed:
		// Already confirmed; a waiting request does not give up the place.

	default:
		// pending -> waiting
		if err := s.bookingRepo.UpdateStatus(ctx, req.TenantID, existing.ID, domain.BookingWaiting); err != nil {
			return nil, err
		}
		existing.Status = domain.BookingWaiting
	}

	result := AdmissionConfirmed
	if existing.Status == domain.BookingWaiting {
		result = AdmissionWaitlisted
	}
	return &BookingDecision{Result: result, Booking: existing}, nil
}

// Cancel marks a booking cancelled. The freed place is not handed to the
// waitlist automatically; see PromoteNextWaiting.
func (s *bookingService) Cancel(ctx context.Context, tenantID string, bookingID, actorID primitive.ObjectID, actorIsAdmin bool) (*domain.Booking, error) {
	booking, err := s.bookingRepo.GetByID(ctx, tenantID, bookingID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}

	if !actorIsAdmin && booking.UserID != actorID {
		// Parents may cancel their children's bookings.
		if booking.ParentUserID == nil || *booking.ParentUserID != actorID {
			return nil, ErrBookingNotOwned
		}
	}

	if booking.Status == domain.BookingCancelled {
		// Terminal state; cancelling twice is a no-op.
		return booking, nil
	}

	if err := s.bookingRepo.UpdateStatus(ctx, tenantID, booking.ID, domain.BookingCancelled); err != nil {
		return nil, err
	}
	booking.Status = domain.BookingCancelled

	s.logger.Info("booking cancelled",
		zap.String("tenantId", tenantID),
		zap.String("bookingId", booking.ID.Hex()),
		zap.String("lessonId", booking.LessonID.Hex()),
	)
	return booking, nil
}

// PromoteNextWaiting confirms the oldest waiting booking on a lesson. This is
// the explicit extension point for waitlist promotion; nothing calls it
// automatically on cancellation.
func (s *bookingService) PromoteNextWaiting(ctx context.Context, tenantID string, lessonID primitive.ObjectID) (*domain.Booking, error) {
	lock := s.lockLesson(lessonID)
	lock.Lock()
	defer lock.Unlock()

	lesson, err := s.lessonRepo.GetByID(ctx, tenantID, lessonID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrLessonNotFound
		}
		return nil, err
	}

	classOption, err := s.classOptionRepo.GetByID(ctx, tenantID, lesson.ClassOptionID)
	if err != nil {
		return nil, err
	}

	confirmedCount, err := s.bookingRepo.CountConfirmedByLesson(ctx, tenantID, lessonID)
	if err != nil {
		return nil, err
	}
	if domain.RemainingCapacity(classOption.Places, confirmedCount) == 0 {
		return nil, ErrCapacityExceeded
	}

	next, err := s.bookingRepo.FirstWaiting(ctx, tenantID, lessonID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrWaitlistEmpty
		}
		return nil, err
	}

	if err := s.bookingRepo.UpdateStatus(ctx, tenantID, next.ID, domain.BookingConfirmed); err != nil {
		return nil, err
	}
	next.Status = domain.BookingConfirmed

	s.logger.Info("waitlisted booking promoted",
		zap.String("tenantId", tenantID),
		zap.String("bookingId", next.ID.Hex()),
		zap.String("lessonId", lessonID.Hex()),
	)
	return next, nil
}
