package store

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ReminderLedger records sent renewal reminders in Redis so a reminder is
// published at most once per subscription and renewal date.
type ReminderLedger struct {
	client redis.UniversalClient
	prefix string
}

// NewReminderLedger creates a ledger whose keys live under prefix.
func NewReminderLedger(client redis.UniversalClient, prefix string) *ReminderLedger {
	trimmed := strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if trimmed == "" {
		trimmed = "subtracker"
	}
	return &ReminderLedger{client: client, prefix: trimmed}
}

// MarkReminded stores key if it is new and reports whether it was.
func (l *ReminderLedger) MarkReminded(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if ttl < time.Hour {
		ttl = time.Hour
	}
	return l.client.SetNX(ctx, l.prefix+":"+key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
}
