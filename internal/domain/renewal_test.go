package domain

import (
	"errors"
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestPeriodDays(t *testing.T) {
	tests := []struct {
		frequency Frequency
		want      int
		wantErr   bool
	}{
		{frequency: FrequencyDaily, want: 1},
		{frequency: FrequencyWeekly, want: 7},
		{frequency: FrequencyMonthly, want: 30},
		{frequency: FrequencyYearly, want: 365},
		{frequency: FrequencyQuarterly, wantErr: true},
		{frequency: "", wantErr: true},
		{frequency: "hourly", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(string(tt.frequency), func(t *testing.T) {
			got, err := PeriodDays(tt.frequency)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidFrequency) {
					t.Fatalf("expected ErrInvalidFrequency, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("PeriodDays(%q) returned error: %v", tt.frequency, err)
			}
			if got != tt.want {
				t.Fatalf("PeriodDays(%q) = %d, want %d", tt.frequency, got, tt.want)
			}
		})
	}
}

func TestDeriveRenewalFields_FillsMissingRenewalDate(t *testing.T) {
	start := date(2024, time.January, 10)
	now := date(2024, time.January, 12)

	tests := []struct {
		frequency Frequency
		want      time.Time
	}{
		{frequency: FrequencyDaily, want: date(2024, time.January, 11)},
		{frequency: FrequencyWeekly, want: date(2024, time.January, 17)},
		{frequency: FrequencyMonthly, want: date(2024, time.February, 9)},
		{frequency: FrequencyYearly, want: date(2025, time.January, 9)},
	}

	for _, tt := range tests {
		t.Run(string(tt.frequency), func(t *testing.T) {
			fields, err := DeriveRenewalFields(start, tt.frequency, nil, start)
			if err != nil {
				t.Fatalf("DeriveRenewalFields returned error: %v", err)
			}
			if !fields.RenewalDate.Equal(tt.want) {
				t.Fatalf("expected renewal date %s, got %s", tt.want, fields.RenewalDate)
			}
			if !fields.RenewalDate.After(start) {
				t.Fatalf("renewal date %s is not after start %s", fields.RenewalDate, start)
			}
		})
	}

	fields, err := DeriveRenewalFields(start, FrequencyMonthly, nil, now)
	if err != nil {
		t.Fatalf("DeriveRenewalFields returned error: %v", err)
	}
	if fields.Status != StatusActive {
		t.Fatalf("expected active status, got %q", fields.Status)
	}
}

func TestDeriveRenewalFields_MarksExpiredWhenComputedDateHasPassed(t *testing.T) {
	start := date(2024, time.January, 10)
	now := date(2024, time.March, 1)

	fields, err := DeriveRenewalFields(start, FrequencyWeekly, nil, now)
	if err != nil {
		t.Fatalf("DeriveRenewalFields returned error: %v", err)
	}
	if fields.Status != StatusExpired {
		t.Fatalf("expected expired status, got %q", fields.Status)
	}
	if !fields.RenewalDate.Equal(date(2024, time.January, 17)) {
		t.Fatalf("unexpected renewal date %s", fields.RenewalDate)
	}
}

func TestDeriveRenewalFields_KeepsValidExplicitDate(t *testing.T) {
	start := date(2024, time.January, 10)
	explicit := date(2024, time.March, 1)

	fields, err := DeriveRenewalFields(start, "", &explicit, date(2025, time.January, 1))
	if err != nil {
		t.Fatalf("DeriveRenewalFields returned error: %v", err)
	}
	if !fields.RenewalDate.Equal(explicit) {
		t.Fatalf("expected explicit renewal date to be kept, got %s", fields.RenewalDate)
	}
	if fields.Status != "" {
		t.Fatalf("expected status to be left to the caller, got %q", fields.Status)
	}
}

func TestDeriveRenewalFields_RejectsExplicitDateNotAfterStart(t *testing.T) {
	start := date(2024, time.January, 10)

	for _, explicit := range []time.Time{date(2024, time.January, 1), start} {
		explicit := explicit
		_, err := DeriveRenewalFields(start, FrequencyMonthly, &explicit, start)
		if !errors.Is(err, ErrInvalidDateOrder) {
			t.Fatalf("expected ErrInvalidDateOrder for %s, got %v", explicit, err)
		}
	}
}

func TestDeriveRenewalFields_RejectsUnknownFrequency(t *testing.T) {
	start := date(2024, time.January, 10)

	for _, frequency := range []Frequency{"", FrequencyQuarterly, "fortnightly"} {
		if _, err := DeriveRenewalFields(start, frequency, nil, start); !errors.Is(err, ErrInvalidFrequency) {
			t.Fatalf("expected ErrInvalidFrequency for %q, got %v", frequency, err)
		}
	}
}

func TestDeriveRenewalFields_IsDeterministic(t *testing.T) {
	start := date(2024, time.May, 31)
	now := date(2024, time.June, 2)

	first, err := DeriveRenewalFields(start, FrequencyMonthly, nil, now)
	if err != nil {
		t.Fatalf("first call returned error: %v", err)
	}
	second, err := DeriveRenewalFields(start, FrequencyMonthly, nil, now)
	if err != nil {
		t.Fatalf("second call returned error: %v", err)
	}
	if first != second {
		t.Fatalf("expected identical results, got %+v and %+v", first, second)
	}
}
