/**
 * @description
 * This file defines the core domain models for the subscription tracker.
 * It includes the Subscription struct that maps to the subscriptions table,
 * the enumerations it is validated against, and the request/response shapes
 * exchanged with the API layer.
 */
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Frequency is the billing cadence of a subscription.
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
	FrequencyYearly  Frequency = "yearly"

	// FrequencyQuarterly is understood by the renewal projection only.
	// It is not an accepted value for stored subscriptions.
	FrequencyQuarterly Frequency = "quarterly"
)

// Status is the lifecycle state of a subscription.
type Status string

const (
	StatusActive    Status = "active"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
)

// DefaultCurrency is applied when a create request omits the currency.
const DefaultCurrency = "INR"

// Subscription represents a tracked recurring subscription.
type Subscription struct {
	ID            string          `json:"id"`
	UserID        string          `json:"user_id"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	Currency      string          `json:"currency"`
	Frequency     Frequency       `json:"frequency"`
	Category      string          `json:"category"`
	PaymentMethod string          `json:"payment_method"`
	Status        Status          `json:"status"`
	StartDate     time.Time       `json:"start_date"`
	RenewalDate   time.Time       `json:"renewal_date"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// CreateSubscriptionRequest is the payload accepted when creating a subscription.
type CreateSubscriptionRequest struct {
	Name          string           `json:"name" validate:"required,min=2,max=100"`
	Price         *decimal.Decimal `json:"price" validate:"required,gte=0"`
	Currency      string           `json:"currency" validate:"omitempty,oneof=USD EUR JPY GBP AUD CAD CHF CNY INR HKD"`
	Frequency     Frequency        `json:"frequency" validate:"omitempty,oneof=daily weekly monthly yearly"`
	Category      string           `json:"category" validate:"required,oneof=sports entertainment news education health lifestyle technology business other"`
	PaymentMethod string           `json:"payment_method" validate:"required"`
	StartDate     time.Time        `json:"start_date" validate:"required"`
	RenewalDate   *time.Time       `json:"renewal_date,omitempty"`
}

// UpdateSubscriptionRequest carries the fields a caller wants to change.
// Nil fields are left untouched.
type UpdateSubscriptionRequest struct {
	Name          *string          `json:"name,omitempty" validate:"omitempty,min=2,max=100"`
	Price         *decimal.Decimal `json:"price,omitempty" validate:"omitempty,gte=0"`
	Currency      *string          `json:"currency,omitempty" validate:"omitempty,oneof=USD EUR JPY GBP AUD CAD CHF CNY INR HKD"`
	Frequency     *Frequency       `json:"frequency,omitempty" validate:"omitempty,oneof=daily weekly monthly yearly"`
	Category      *string          `json:"category,omitempty" validate:"omitempty,oneof=sports entertainment news education health lifestyle technology business other"`
	PaymentMethod *string          `json:"payment_method,omitempty" validate:"omitempty,min=1"`
	Status        *Status          `json:"status,omitempty" validate:"omitempty,oneof=active cancelled expired"`
	StartDate     *time.Time       `json:"start_date,omitempty"`
	RenewalDate   *time.Time       `json:"renewal_date,omitempty"`
}

// TouchesSchedule reports whether the update changes any input of the renewal policy.
func (r UpdateSubscriptionRequest) TouchesSchedule() bool {
	return r.StartDate != nil || r.Frequency != nil || r.RenewalDate != nil
}

// UpcomingRenewal pairs a subscription with its projected next renewal.
type UpcomingRenewal struct {
	Subscription    Subscription `json:"subscription"`
	NextRenewalDate time.Time    `json:"next_renewal_date"`
}
