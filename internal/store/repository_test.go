package store

import (
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"

	"github.com/MajXin/Subscription-management-sys/internal/domain"
)

func TestActiveSubscriptionsQuery(t *testing.T) {
	query, args := activeSubscriptionsQuery(nil)
	if strings.Contains(query, "user_id = $2") {
		t.Fatalf("expected no owner clause, got %s", query)
	}
	if len(args) != 1 || args[0] != domain.StatusActive {
		t.Fatalf("unexpected args %v", args)
	}

	owner := "5b1f1d0e-3a7c-4c1e-9a58-0f0f5d1c2b3a"
	query, args = activeSubscriptionsQuery(&owner)
	if !strings.Contains(query, "AND user_id = $2") {
		t.Fatalf("expected owner clause, got %s", query)
	}
	if len(args) != 2 || args[1] != owner {
		t.Fatalf("unexpected args %v", args)
	}
	if !strings.HasSuffix(query, "ORDER BY created_at, id") {
		t.Fatalf("expected insertion ordering, got %s", query)
	}
}

type errRow struct{ err error }

func (r errRow) Scan(dest ...any) error { return r.err }

func TestScanSubscription_MapsNoRows(t *testing.T) {
	_, err := scanSubscription(errRow{err: pgx.ErrNoRows})
	if !errors.Is(err, ErrSubscriptionNotFound) {
		t.Fatalf("expected ErrSubscriptionNotFound, got %v", err)
	}

	boom := errors.New("connection reset")
	_, err = scanSubscription(errRow{err: boom})
	if !errors.Is(err, boom) {
		t.Fatalf("expected underlying error, got %v", err)
	}
}

func TestScanUser_MapsNoRows(t *testing.T) {
	_, err := scanUser(errRow{err: pgx.ErrNoRows})
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}
