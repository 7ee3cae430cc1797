package domain

import (
	"sort"
	"time"
)

const msPerDay = int64(24 * time.Hour / time.Millisecond)

// cycleDays is the period length used to count elapsed renewal cycles.
var cycleDays = map[Frequency]int64{
	FrequencyDaily:     1,
	FrequencyWeekly:    7,
	FrequencyMonthly:   30,
	FrequencyQuarterly: 90,
	FrequencyYearly:    365,
}

// NextRenewalDate returns the renewal occurrence that follows the number of whole cycles
// elapsed between start and now. Monthly, quarterly and yearly cycles land on calendar
// dates; daily and weekly cycles are fixed lengths. Frequencies without a cycle yield start.
func NextRenewalDate(start time.Time, frequency Frequency, now time.Time) time.Time {
	start = start.UTC()
	days, ok := cycleDays[frequency]
	if !ok {
		return start
	}

	elapsedMs := now.Sub(start).Milliseconds()
	cycles := floorDiv(elapsedMs, days*msPerDay) + 1

	switch frequency {
	case FrequencyMonthly:
		return addMonths(start, int(cycles))
	case FrequencyQuarterly:
		return addMonths(start, int(3*cycles))
	case FrequencyYearly:
		return addMonths(start, int(12*cycles))
	default:
		return start.AddDate(0, 0, int(cycles*days))
	}
}

// ProjectUpcoming lists the active subscriptions whose next renewal falls inside
// [now, now+windowDays], soonest first. When owner is set only that user's
// subscriptions are considered. Subscriptions renewing at the same instant keep
// their input order.
func ProjectUpcoming(subs []Subscription, now time.Time, windowDays int, owner *string) []UpcomingRenewal {
	windowEnd := now.AddDate(0, 0, windowDays)

	upcoming := make([]UpcomingRenewal, 0, len(subs))
	for _, sub := range subs {
		if sub.Status != StatusActive {
			continue
		}
		if owner != nil && sub.UserID != *owner {
			continue
		}

		next := NextRenewalDate(sub.StartDate, sub.Frequency, now)
		if next.Before(now) || next.After(windowEnd) {
			continue
		}
		upcoming = append(upcoming, UpcomingRenewal{Subscription: sub, NextRenewalDate: next})
	}

	sort.SliceStable(upcoming, func(i, j int) bool {
		return upcoming[i].NextRenewalDate.Before(upcoming[j].NextRenewalDate)
	})
	return upcoming
}

// addMonths moves t by n calendar months, clamping the day to the last day of the target month.
func addMonths(t time.Time, n int) time.Time {
	year, month, day := t.Date()
	first := time.Date(year, month+time.Month(n), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	if last := daysIn(first.Year(), first.Month()); day > last {
		day = last
	}
	return first.AddDate(0, 0, day-1)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
