package app

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MajXin/Subscription-management-sys/internal/domain"
	"github.com/MajXin/Subscription-management-sys/internal/store"
	"github.com/MajXin/Subscription-management-sys/internal/validation"
)

const (
	ownerSubject = "user_owner"
	ownerID      = "11111111-1111-1111-1111-111111111111"
	otherSubject = "user_other"
	otherID      = "22222222-2222-2222-2222-222222222222"
)

type repoStub struct {
	users   map[string]string
	subs    []domain.Subscription
	created *domain.Subscription
	updated *domain.Subscription
	deleted string
	listErr error
}

func newRepoStub(subs ...domain.Subscription) *repoStub {
	return &repoStub{
		users: map[string]string{ownerSubject: ownerID, otherSubject: otherID},
		subs:  subs,
	}
}

func (r *repoStub) UpsertUserBySubject(ctx context.Context, subject string) (string, error) {
	if id, ok := r.users[subject]; ok {
		return id, nil
	}
	id := uuid.NewString()
	r.users[subject] = id
	return id, nil
}

func (r *repoStub) ListUsers(ctx context.Context) ([]domain.User, error) {
	users := make([]domain.User, 0, len(r.users))
	for subject, id := range r.users {
		users = append(users, domain.User{ID: id, AuthSubject: subject})
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (r *repoStub) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	for subject, userID := range r.users {
		if userID == id {
			return &domain.User{ID: id, AuthSubject: subject}, nil
		}
	}
	return nil, store.ErrUserNotFound
}

func (r *repoStub) DeleteUser(ctx context.Context, id string) error {
	for subject, userID := range r.users {
		if userID != id {
			continue
		}
		delete(r.users, subject)
		kept := r.subs[:0]
		for _, sub := range r.subs {
			if sub.UserID != id {
				kept = append(kept, sub)
			}
		}
		r.subs = kept
		return nil
	}
	return store.ErrUserNotFound
}

func (r *repoStub) CreateSubscription(ctx context.Context, sub *domain.Subscription) (*domain.Subscription, error) {
	created := *sub
	created.ID = "sub-new"
	r.created = &created
	return &created, nil
}

func (r *repoStub) GetSubscriptionByID(ctx context.Context, id string) (*domain.Subscription, error) {
	for _, sub := range r.subs {
		if sub.ID == id {
			found := sub
			return &found, nil
		}
	}
	return nil, store.ErrSubscriptionNotFound
}

func (r *repoStub) ListSubscriptionsByUserID(ctx context.Context, userID string) ([]domain.Subscription, error) {
	var out []domain.Subscription
	for _, sub := range r.subs {
		if sub.UserID == userID {
			out = append(out, sub)
		}
	}
	return out, nil
}

func (r *repoStub) ListSubscriptions(ctx context.Context) ([]domain.Subscription, error) {
	return r.subs, nil
}

func (r *repoStub) ListActiveSubscriptions(ctx context.Context, userID *string) ([]domain.Subscription, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	var out []domain.Subscription
	for _, sub := range r.subs {
		if sub.Status != domain.StatusActive {
			continue
		}
		if userID != nil && sub.UserID != *userID {
			continue
		}
		out = append(out, sub)
	}
	return out, nil
}

func (r *repoStub) UpdateSubscription(ctx context.Context, sub *domain.Subscription) (*domain.Subscription, error) {
	updated := *sub
	r.updated = &updated
	return &updated, nil
}

func (r *repoStub) UpdateSubscriptionStatus(ctx context.Context, id string, status domain.Status) (*domain.Subscription, error) {
	sub, err := r.GetSubscriptionByID(ctx, id)
	if err != nil {
		return nil, err
	}
	sub.Status = status
	r.updated = sub
	return sub, nil
}

func (r *repoStub) DeleteSubscription(ctx context.Context, id string) error {
	r.deleted = id
	return nil
}

type publishedEvent struct {
	exchange   string
	routingKey string
	body       interface{}
}

type publisherStub struct {
	events []publishedEvent
	err    error
}

func (p *publisherStub) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	p.events = append(p.events, publishedEvent{exchange: exchange, routingKey: routingKey, body: body})
	return p.err
}

type ledgerStub struct {
	seen map[string]bool
	err  error
}

func (l *ledgerStub) MarkReminded(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if l.err != nil {
		return false, l.err
	}
	if l.seen == nil {
		l.seen = map[string]bool{}
	}
	if l.seen[key] {
		return false, nil
	}
	l.seen[key] = true
	return true, nil
}

func decimalPtr(v string) *decimal.Decimal {
	d := decimal.RequireFromString(v)
	return &d
}

func utcDate(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newTestService(repo Repository, publisher EventPublisher, ledger ReminderLedger, now time.Time) Service {
	svc := NewService(repo, publisher, ledger, "subscriptions.events")
	svc.now = func() time.Time { return now }
	return svc
}

func createRequest() domain.CreateSubscriptionRequest {
	return domain.CreateSubscriptionRequest{
		Name:          "  Spotify  ",
		Price:         decimalPtr("9.99"),
		Frequency:     domain.FrequencyMonthly,
		Category:      "entertainment",
		PaymentMethod: " Visa ",
		StartDate:     utcDate(2024, time.January, 10),
	}
}

func TestCreate_DerivesRenewalDateAndDefaults(t *testing.T) {
	repo := newRepoStub()
	publisher := &publisherStub{}
	svc := newTestService(repo, publisher, nil, utcDate(2024, time.January, 20))

	created, err := svc.Create(context.Background(), ownerSubject, createRequest())
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if created.UserID != ownerID {
		t.Fatalf("expected owner %s, got %s", ownerID, created.UserID)
	}
	if created.Name != "Spotify" || created.PaymentMethod != "Visa" {
		t.Fatalf("expected trimmed fields, got %q / %q", created.Name, created.PaymentMethod)
	}
	if created.Currency != domain.DefaultCurrency {
		t.Fatalf("expected default currency, got %s", created.Currency)
	}
	if !created.RenewalDate.Equal(utcDate(2024, time.February, 9)) {
		t.Fatalf("expected 30 day renewal, got %s", created.RenewalDate)
	}
	if created.Status != domain.StatusActive {
		t.Fatalf("expected active status, got %s", created.Status)
	}
	if len(publisher.events) != 1 || publisher.events[0].routingKey != "subscription.created" {
		t.Fatalf("expected created event, got %+v", publisher.events)
	}
	if publisher.events[0].exchange != "subscriptions.events" {
		t.Fatalf("unexpected exchange %s", publisher.events[0].exchange)
	}
}

func TestCreate_MarksExpiredWhenComputedRenewalHasPassed(t *testing.T) {
	repo := newRepoStub()
	svc := newTestService(repo, nil, nil, utcDate(2024, time.June, 1))

	created, err := svc.Create(context.Background(), ownerSubject, createRequest())
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if created.Status != domain.StatusExpired {
		t.Fatalf("expected expired status, got %s", created.Status)
	}
}

func TestCreate_RejectsInvalidInput(t *testing.T) {
	before := utcDate(2024, time.January, 1)
	future := utcDate(2024, time.March, 1)

	tests := []struct {
		name    string
		mutate  func(r *domain.CreateSubscriptionRequest)
		wantErr error
		wantVal bool
	}{
		{
			name:    "renewal before start",
			mutate:  func(r *domain.CreateSubscriptionRequest) { r.RenewalDate = &before },
			wantErr: domain.ErrInvalidDateOrder,
		},
		{
			name:    "missing frequency without renewal date",
			mutate:  func(r *domain.CreateSubscriptionRequest) { r.Frequency = "" },
			wantErr: domain.ErrInvalidFrequency,
		},
		{
			name:    "missing price",
			mutate:  func(r *domain.CreateSubscriptionRequest) { r.Price = nil },
			wantVal: true,
		},
		{
			name:    "negative price",
			mutate:  func(r *domain.CreateSubscriptionRequest) { r.Price = decimalPtr("-0.01") },
			wantVal: true,
		},
		{
			name:    "start date in the future",
			mutate:  func(r *domain.CreateSubscriptionRequest) { r.StartDate = future },
			wantVal: true,
		},
		{
			name:    "name too short after trimming",
			mutate:  func(r *domain.CreateSubscriptionRequest) { r.Name = " a " },
			wantVal: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newRepoStub()
			svc := newTestService(repo, nil, nil, utcDate(2024, time.January, 20))

			req := createRequest()
			tt.mutate(&req)

			_, err := svc.Create(context.Background(), ownerSubject, req)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if tt.wantVal {
				var verr *validation.RequestValidationError
				if !errors.As(err, &verr) {
					t.Fatalf("expected validation error, got %v", err)
				}
			}
			if repo.created != nil {
				t.Fatal("expected nothing to be stored")
			}
		})
	}
}

func TestCreate_ProvisionsUnknownSubject(t *testing.T) {
	repo := newRepoStub()
	svc := newTestService(repo, nil, nil, utcDate(2024, time.January, 20))

	created, err := svc.Create(context.Background(), "user_new", createRequest())
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	newID, ok := repo.users["user_new"]
	if !ok {
		t.Fatal("expected the subject to be provisioned")
	}
	if created.UserID != newID {
		t.Fatalf("expected subscription owned by %s, got %s", newID, created.UserID)
	}

	again, err := svc.Create(context.Background(), "user_new", createRequest())
	if err != nil {
		t.Fatalf("second Create returned error: %v", err)
	}
	if again.UserID != newID {
		t.Fatalf("expected the same user on the second call, got %s", again.UserID)
	}
}

func TestCreate_AcceptsZeroPrice(t *testing.T) {
	svc := newTestService(newRepoStub(), nil, nil, utcDate(2024, time.January, 20))

	req := createRequest()
	req.Price = decimalPtr("0")
	created, err := svc.Create(context.Background(), ownerSubject, req)
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if !created.Price.IsZero() {
		t.Fatalf("expected zero price, got %s", created.Price)
	}
}

func ownedSubscription() domain.Subscription {
	return domain.Subscription{
		ID:          "sub-1",
		UserID:      ownerID,
		Name:        "Spotify",
		Price:       decimal.RequireFromString("9.99"),
		Currency:    "USD",
		Frequency:   domain.FrequencyMonthly,
		Category:    "entertainment",
		Status:      domain.StatusActive,
		StartDate:   utcDate(2024, time.January, 10),
		RenewalDate: utcDate(2024, time.February, 9),
	}
}

func TestOwnershipIsEnforced(t *testing.T) {
	repo := newRepoStub(ownedSubscription())
	svc := newTestService(repo, nil, nil, utcDate(2024, time.January, 20))
	ctx := context.Background()

	if _, err := svc.Get(ctx, otherSubject, "sub-1"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("Get: expected ErrForbidden, got %v", err)
	}
	if _, err := svc.Cancel(ctx, otherSubject, "sub-1"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("Cancel: expected ErrForbidden, got %v", err)
	}
	if err := svc.Delete(ctx, otherSubject, "sub-1"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("Delete: expected ErrForbidden, got %v", err)
	}
	if _, err := svc.Update(ctx, otherSubject, "sub-1", domain.UpdateSubscriptionRequest{}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("Update: expected ErrForbidden, got %v", err)
	}
	if _, err := svc.ListForUser(ctx, otherSubject, ownerID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("ListForUser: expected ErrForbidden, got %v", err)
	}
	if repo.deleted != "" || repo.updated != nil {
		t.Fatal("expected no writes for a foreign caller")
	}

	if _, err := svc.Get(ctx, ownerSubject, "missing"); !errors.Is(err, store.ErrSubscriptionNotFound) {
		t.Fatalf("expected ErrSubscriptionNotFound, got %v", err)
	}

	subs, err := svc.ListForUser(ctx, ownerSubject, ownerID)
	if err != nil || len(subs) != 1 {
		t.Fatalf("expected owner to list 1 subscription, got %d (%v)", len(subs), err)
	}
}

func TestCancel_SetsCancelledAndPublishes(t *testing.T) {
	repo := newRepoStub(ownedSubscription())
	publisher := &publisherStub{}
	svc := newTestService(repo, publisher, nil, utcDate(2024, time.January, 20))

	sub, err := svc.Cancel(context.Background(), ownerSubject, "sub-1")
	if err != nil {
		t.Fatalf("Cancel returned error: %v", err)
	}
	if sub.Status != domain.StatusCancelled {
		t.Fatalf("expected cancelled status, got %s", sub.Status)
	}
	if len(publisher.events) != 1 || publisher.events[0].routingKey != "subscription.cancelled" {
		t.Fatalf("expected cancelled event, got %+v", publisher.events)
	}
}

func TestDelete_RemovesOwnedSubscription(t *testing.T) {
	repo := newRepoStub(ownedSubscription())
	publisher := &publisherStub{err: errors.New("broker down")}
	svc := newTestService(repo, publisher, nil, utcDate(2024, time.January, 20))

	if err := svc.Delete(context.Background(), ownerSubject, "sub-1"); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if repo.deleted != "sub-1" {
		t.Fatalf("expected sub-1 to be deleted, got %q", repo.deleted)
	}
}

func TestUpdate_RederivesRenewalWhenScheduleChanges(t *testing.T) {
	repo := newRepoStub(ownedSubscription())
	svc := newTestService(repo, nil, nil, utcDate(2024, time.January, 20))

	weekly := domain.FrequencyWeekly
	updated, err := svc.Update(context.Background(), ownerSubject, "sub-1", domain.UpdateSubscriptionRequest{Frequency: &weekly})
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if !updated.RenewalDate.Equal(utcDate(2024, time.January, 17)) {
		t.Fatalf("expected renewal date to follow new frequency, got %s", updated.RenewalDate)
	}
	if updated.Status != domain.StatusExpired {
		t.Fatalf("expected expired status once derived date passed, got %s", updated.Status)
	}
}

func TestUpdate_KeepsRenewalWhenScheduleUntouched(t *testing.T) {
	repo := newRepoStub(ownedSubscription())
	svc := newTestService(repo, nil, nil, utcDate(2024, time.January, 20))

	name := "Spotify Family"
	price := decimal.RequireFromString("14.99")
	updated, err := svc.Update(context.Background(), ownerSubject, "sub-1", domain.UpdateSubscriptionRequest{Name: &name, Price: &price})
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if updated.Name != name || !updated.Price.Equal(price) {
		t.Fatalf("expected name and price to change, got %s %s", updated.Name, updated.Price)
	}
	if !updated.RenewalDate.Equal(utcDate(2024, time.February, 9)) {
		t.Fatalf("expected renewal date to be unchanged, got %s", updated.RenewalDate)
	}
}

func TestUpdate_RejectsRenewalBeforeStart(t *testing.T) {
	repo := newRepoStub(ownedSubscription())
	svc := newTestService(repo, nil, nil, utcDate(2024, time.January, 20))

	renewal := utcDate(2024, time.January, 5)
	_, err := svc.Update(context.Background(), ownerSubject, "sub-1", domain.UpdateSubscriptionRequest{RenewalDate: &renewal})
	if !errors.Is(err, domain.ErrInvalidDateOrder) {
		t.Fatalf("expected ErrInvalidDateOrder, got %v", err)
	}
	if repo.updated != nil {
		t.Fatal("expected nothing to be written")
	}
}

func TestListUpcoming_ScopesToCaller(t *testing.T) {
	mine := ownedSubscription()
	theirs := ownedSubscription()
	theirs.ID = "sub-2"
	theirs.UserID = otherID

	repo := newRepoStub(mine, theirs)
	svc := newTestService(repo, nil, nil, utcDate(2024, time.February, 5))

	upcoming, err := svc.ListUpcoming(context.Background(), ownerSubject, 30)
	if err != nil {
		t.Fatalf("ListUpcoming returned error: %v", err)
	}
	if len(upcoming) != 1 || upcoming[0].Subscription.ID != "sub-1" {
		t.Fatalf("expected only the caller's subscription, got %+v", upcoming)
	}
	if !upcoming[0].NextRenewalDate.Equal(utcDate(2024, time.February, 10)) {
		t.Fatalf("unexpected next renewal date %s", upcoming[0].NextRenewalDate)
	}

	all, err := svc.ListUpcomingAll(context.Background(), 30)
	if err != nil {
		t.Fatalf("ListUpcomingAll returned error: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected both subscriptions, got %d", len(all))
	}
}

func TestListUpcoming_RejectsWindowOutOfRange(t *testing.T) {
	svc := newTestService(newRepoStub(), nil, nil, utcDate(2024, time.February, 5))

	for _, days := range []int{0, -1, 366} {
		_, err := svc.ListUpcoming(context.Background(), ownerSubject, days)
		var verr *validation.RequestValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("expected validation error for %d days, got %v", days, err)
		}
	}
}

func TestRunRenewalReminders_PublishesOncePerRenewal(t *testing.T) {
	repo := newRepoStub(ownedSubscription())
	publisher := &publisherStub{}
	ledger := &ledgerStub{}
	svc := newTestService(repo, publisher, ledger, utcDate(2024, time.February, 5))

	first, err := svc.RunRenewalReminders(context.Background(), 7)
	if err != nil {
		t.Fatalf("RunRenewalReminders returned error: %v", err)
	}
	if first.Published != 1 || first.Skipped != 0 {
		t.Fatalf("unexpected first run result %+v", first)
	}

	second, err := svc.RunRenewalReminders(context.Background(), 7)
	if err != nil {
		t.Fatalf("RunRenewalReminders returned error: %v", err)
	}
	if second.Published != 0 || second.Skipped != 1 {
		t.Fatalf("unexpected second run result %+v", second)
	}

	if len(publisher.events) != 1 || publisher.events[0].routingKey != "subscription.renewal_upcoming" {
		t.Fatalf("expected one renewal_upcoming event, got %+v", publisher.events)
	}
	event, ok := publisher.events[0].body.(subscriptionEvent)
	if !ok {
		t.Fatalf("unexpected event body %T", publisher.events[0].body)
	}
	if event.NextRenewalDate == nil || !event.NextRenewalDate.Equal(utcDate(2024, time.February, 10)) {
		t.Fatalf("unexpected next renewal date in event: %v", event.NextRenewalDate)
	}
}

func TestRunRenewalReminders_CountsLedgerFailures(t *testing.T) {
	repo := newRepoStub(ownedSubscription())
	publisher := &publisherStub{}
	svc := newTestService(repo, publisher, &ledgerStub{err: errors.New("redis down")}, utcDate(2024, time.February, 5))

	result, err := svc.RunRenewalReminders(context.Background(), 7)
	if err != nil {
		t.Fatalf("RunRenewalReminders returned error: %v", err)
	}
	if result.Failed != 1 || len(publisher.events) != 0 {
		t.Fatalf("expected the reminder to fail without publishing, got %+v", result)
	}
}

func TestRunRenewalReminders_PropagatesRepositoryError(t *testing.T) {
	repo := newRepoStub()
	repo.listErr = errors.New("db unavailable")
	svc := newTestService(repo, nil, nil, utcDate(2024, time.February, 5))

	if _, err := svc.RunRenewalReminders(context.Background(), 7); err == nil {
		t.Fatal("expected repository error")
	}
}
