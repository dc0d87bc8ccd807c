package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"openmat/bookings-app/internal/timeutil"
)

// SubscriptionStatus mirrors the billing provider's subscription states.
// Subscriptions are synced in by a billing webhook and read-only here.
type SubscriptionStatus string

const (
	SubscriptionActive   SubscriptionStatus = "active"
	SubscriptionTrialing SubscriptionStatus = "trialing"
	SubscriptionPastDue  SubscriptionStatus = "past_due"
	SubscriptionCanceled SubscriptionStatus = "canceled"
)

// SessionsInformation is the quota a plan grants: Sessions bookings per
// rolling interval window. A plan without it is unlimited.
type SessionsInformation struct {
	Sessions      int                   `bson:"sessions" json:"sessions"`
	Interval      timeutil.IntervalKind `bson:"interval" json:"interval"`
	IntervalCount int                   `bson:"intervalCount" json:"intervalCount"`
}

// Complete reports whether the quota is fully specified. Partially filled
// sessions information behaves like an unlimited plan.
func (si *SessionsInformation) Complete() bool {
	return si != nil && si.Sessions > 0 && si.Interval != ""
}

// Plan is a membership product. Read-only to this service.
type Plan struct {
	ID                  primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	TenantID            string               `bson:"tenantId" json:"tenantId"`
	Name                string               `bson:"name" json:"name"`
	SessionsInformation *SessionsInformation `bson:"sessionsInformation,omitempty" json:"sessionsInformation,omitempty"`
}

// Subscription links a user to a plan for a validity period.
type Subscription struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TenantID  string             `bson:"tenantId" json:"tenantId"`
	UserID    primitive.ObjectID `bson:"userId" json:"userId"`
	PlanID    primitive.ObjectID `bson:"planId" json:"planId"`
	Status    SubscriptionStatus `bson:"status" json:"status"`
	StartDate time.Time          `bson:"startDate" json:"startDate"`
	EndDate   time.Time          `bson:"endDate" json:"endDate"`
}

// Covers reports whether the subscription is active at the given instant.
func (s *Subscription) Covers(now time.Time) bool {
	return s.Status == SubscriptionActive &&
		!now.Before(s.StartDate) && now.Before(s.EndDate)
}
