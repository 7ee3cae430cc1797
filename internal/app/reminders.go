package app

import (
	"context"
	"fmt"
	"log"
	"time"
)

// ReminderResult summarizes a renewal reminder run.
type ReminderResult struct {
	Evaluated int `json:"evaluated"`
	Published int `json:"published"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// RunRenewalReminders publishes one renewal_upcoming event for every active subscription
// renewing within windowDays. Reminders already recorded in the ledger are skipped.
func (s Service) RunRenewalReminders(ctx context.Context, windowDays int) (*ReminderResult, error) {
	upcoming, err := s.ListUpcomingAll(ctx, windowDays)
	if err != nil {
		return nil, err
	}

	result := &ReminderResult{Evaluated: len(upcoming)}
	for _, u := range upcoming {
		if s.ledger != nil {
			key := reminderKey(u.Subscription.ID, u.NextRenewalDate)
			// Keep the marker until the renewal has passed.
			ttl := u.NextRenewalDate.Sub(s.now()) + 24*time.Hour
			first, err := s.ledger.MarkReminded(ctx, key, ttl)
			if err != nil {
				log.Printf("WARN: reminder ledger unavailable for subscription %s: %v", u.Subscription.ID, err)
				result.Failed++
				continue
			}
			if !first {
				result.Skipped++
				continue
			}
		}

		next := u.NextRenewalDate
		s.publishEvent(ctx, "subscription.renewal_upcoming", u.Subscription, &next)
		result.Published++
	}

	return result, nil
}

func reminderKey(subscriptionID string, next time.Time) string {
	return fmt.Sprintf("reminder:%s:%s", subscriptionID, next.UTC().Format("2006-01-02"))
}
