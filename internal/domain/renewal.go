package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidFrequency is returned when a renewal date has to be derived
	// from a frequency that is missing or not part of the stored enumeration.
	ErrInvalidFrequency = errors.New("invalid frequency")
	// ErrInvalidDateOrder is returned when a renewal date is not after the start date.
	ErrInvalidDateOrder = errors.New("renewal date must be after start date")
)

// renewalPeriodDays is the fixed day table used when a renewal date is filled in at creation.
var renewalPeriodDays = map[Frequency]int{
	FrequencyDaily:   1,
	FrequencyWeekly:  7,
	FrequencyMonthly: 30,
	FrequencyYearly:  365,
}

// PeriodDays returns the creation-time renewal period for a stored frequency.
func PeriodDays(f Frequency) (int, error) {
	days, ok := renewalPeriodDays[f]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidFrequency, f)
	}
	return days, nil
}

// RenewalFields is the derived-field patch applied to a subscription before it is stored.
// Status is empty when the policy leaves the caller's status alone.
type RenewalFields struct {
	RenewalDate time.Time
	Status      Status
}

// DeriveRenewalFields resolves the renewal date of a subscription about to be persisted.
//
// An explicit renewal date that is after startDate is kept as is. Without one, the date is
// startDate plus PeriodDays(frequency) calendar days, and the subscription is marked expired
// when that date already lies before startDate or now.
func DeriveRenewalFields(startDate time.Time, frequency Frequency, existingRenewalDate *time.Time, now time.Time) (RenewalFields, error) {
	if existingRenewalDate != nil && !existingRenewalDate.IsZero() {
		if !existingRenewalDate.After(startDate) {
			return RenewalFields{}, ErrInvalidDateOrder
		}
		return RenewalFields{RenewalDate: *existingRenewalDate}, nil
	}

	days, err := PeriodDays(frequency)
	if err != nil {
		return RenewalFields{}, err
	}

	renewal := startDate.UTC().AddDate(0, 0, days)
	fields := RenewalFields{RenewalDate: renewal, Status: StatusActive}
	if renewal.Before(startDate) || renewal.Before(now) {
		fields.Status = StatusExpired
	}
	return fields, nil
}
