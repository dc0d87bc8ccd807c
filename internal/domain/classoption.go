package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ClassOptionType distinguishes adult and child classes; child classes are
// booked by a parent on behalf of a child account.
type ClassOptionType string

const (
	ClassTypeAdult ClassOptionType = "adult"
	ClassTypeChild ClassOptionType = "child"
)

// DiscountTier is a single drop-in pricing tier. A tier of type "trial"
// makes the class option trial-eligible.
type DiscountTier struct {
	Type     string `bson:"type" json:"type"`
	Quantity int    `bson:"quantity,omitempty" json:"quantity,omitempty"`
	Discount int    `bson:"discount,omitempty" json:"discount,omitempty"` // percent
}

// AllowedDropIn describes drop-in (pay per class) availability.
type AllowedDropIn struct {
	Enabled       bool           `bson:"enabled" json:"enabled"`
	DiscountTiers []DiscountTier `bson:"discountTiers,omitempty" json:"discountTiers,omitempty"`
}

// PaymentMethods enumerates how a class option can be paid for.
type PaymentMethods struct {
	AllowedPlans  []primitive.ObjectID `bson:"allowedPlans,omitempty" json:"allowedPlans,omitempty"`
	AllowedDropIn *AllowedDropIn       `bson:"allowedDropIn,omitempty" json:"allowedDropIn,omitempty"`
}

// ClassOption describes a bookable class type: its confirmed-booking
// capacity and how it may be paid for. Read-only to this service; authored
// by operators.
type ClassOption struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TenantID       string             `bson:"tenantId" json:"tenantId"`
	Name           string             `bson:"name" json:"name"`
	Places         int                `bson:"places" json:"places"` // max confirmed bookings
	Type           ClassOptionType    `bson:"type" json:"type"`
	PaymentMethods *PaymentMethods    `bson:"paymentMethods,omitempty" json:"paymentMethods,omitempty"`
	CreatedAt      time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// Trialable reports whether the class option offers a trial drop-in tier.
func (c *ClassOption) Trialable() bool {
	if c.PaymentMethods == nil || c.PaymentMethods.AllowedDropIn == nil {
		return false
	}
	for _, tier := range c.PaymentMethods.AllowedDropIn.DiscountTiers {
		if tier.Type == "trial" {
			return true
		}
	}
	return false
}
