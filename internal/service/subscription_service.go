package service

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"openmat/bookings-app/internal/domain"
	"openmat/bookings-app/internal/repository"
	"openmat/bookings-app/internal/timeutil"
)

// SubscriptionService evaluates a user's membership entitlement. Subscription
// and plan documents are synced in by billing and are read-only here.
type SubscriptionService interface {
	// ActiveSubscription returns the user's currently active subscription, or
	// nil when they have none.
	ActiveSubscription(ctx context.Context, tenantID string, userID primitive.ObjectID) (*domain.Subscription, error)

	// HasReachedLimit reports whether booking a lesson dated lessonDate would
	// exceed the plan's session quota. Plans without sessions information are
	// unlimited and never reach the limit.
	HasReachedLimit(ctx context.Context, tenantID string, userID primitive.ObjectID, sub *domain.Subscription, lessonDate time.Time) (bool, error)
}

// subscriptionService implements the SubscriptionService interface.
type subscriptionService struct {
	subscriptionRepo repository.SubscriptionRepository
	planRepo         repository.PlanRepository
	bookingRepo      repository.BookingRepository
	loc              *time.Location
	logger           *zap.Logger
	now              func() time.Time
}

// NewSubscriptionService creates a new instance of subscriptionService.
func NewSubscriptionService(
	subscriptionRepo repository.SubscriptionRepository,
	planRepo repository.PlanRepository,
	bookingRepo repository.BookingRepository,
	loc *time.Location,
	logger *zap.Logger,
	now func() time.Time,
) SubscriptionService {
	if now == nil {
		now = time.Now
	}
	return &subscriptionService{
		subscriptionRepo: subscriptionRepo,
		planRepo:         planRepo,
		bookingRepo:      bookingRepo,
		loc:              loc,
		logger:           logger,
		now:              now,
	}
}

// ActiveSubscription returns the subscription covering the current instant.
func (s *subscriptionService) ActiveSubscription(ctx context.Context, tenantID string, userID primitive.ObjectID) (*domain.Subscription, error) {
	sub, err := s.subscriptionRepo.FindActiveByUser(ctx, tenantID, userID, s.now())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return sub, nil
}

// HasReachedLimit counts the user's confirmed bookings inside the quota
// window anchored at the target lesson's date. Waiting and cancelled
// bookings never consume quota.
func (s *subscriptionService) HasReachedLimit(ctx context.Context, tenantID string, userID primitive.ObjectID, sub *domain.Subscription, lessonDate time.Time) (bool, error) {
	if sub == nil {
		return false, nil
	}

	plan, err := s.planRepo.GetByID(ctx, tenantID, sub.PlanID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn("subscription references missing plan",
				zap.String("subscriptionId", sub.ID.Hex()),
				zap.String("planId", sub.PlanID.Hex()),
			)
			return false, nil
		}
		return false, err
	}

	si := plan.SessionsInformation
	if !si.Complete() {
		// Unlimited plan.
		return false, nil
	}

	intervalCount := si.IntervalCount
	if intervalCount < 1 {
		intervalCount = 1
	}

	windowStart, windowEnd := timeutil.IntervalBounds(si.Interval, intervalCount, lessonDate, s.loc)

	count, err := s.bookingRepo.CountConfirmedByUserBetween(ctx, tenantID, userID, windowStart, windowEnd)
	if err != nil {
		return false, err
	}

	return count >= si.Sessions, nil
}
