/**
 * @description
 * This file contains the core business logic for the subscription tracker.
 * The Service layer resolves the caller, enforces ownership, applies the renewal
 * policy before anything is written, and publishes lifecycle events.
 */
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MajXin/Subscription-management-sys/internal/domain"
	"github.com/MajXin/Subscription-management-sys/internal/validation"
)

// ErrForbidden is returned when the caller does not own the requested resource.
var ErrForbidden = errors.New("you are not authorized to access this subscription")

const (
	minWindowDays = 1
	maxWindowDays = 365
)

// Repository defines the interface for database operations that the service needs.
type Repository interface {
	UpsertUserBySubject(ctx context.Context, subject string) (string, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	DeleteUser(ctx context.Context, id string) error
	CreateSubscription(ctx context.Context, sub *domain.Subscription) (*domain.Subscription, error)
	GetSubscriptionByID(ctx context.Context, id string) (*domain.Subscription, error)
	ListSubscriptionsByUserID(ctx context.Context, userID string) ([]domain.Subscription, error)
	ListSubscriptions(ctx context.Context) ([]domain.Subscription, error)
	ListActiveSubscriptions(ctx context.Context, userID *string) ([]domain.Subscription, error)
	UpdateSubscription(ctx context.Context, sub *domain.Subscription) (*domain.Subscription, error)
	UpdateSubscriptionStatus(ctx context.Context, id string, status domain.Status) (*domain.Subscription, error)
	DeleteSubscription(ctx context.Context, id string) error
}

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body interface{}) error
}

// ReminderLedger remembers which renewal reminders were already sent.
// MarkReminded returns false when key was recorded before.
type ReminderLedger interface {
	MarkReminded(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// Service provides the business logic for subscription tracking.
type Service struct {
	repo      Repository
	publisher EventPublisher
	ledger    ReminderLedger
	exchange  string
	now       func() time.Time
}

// NewService creates a new subscription service. publisher and ledger may be nil.
func NewService(repo Repository, publisher EventPublisher, ledger ReminderLedger, exchange string) Service {
	return Service{
		repo:      repo,
		publisher: publisher,
		ledger:    ledger,
		exchange:  exchange,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Create validates a new subscription, resolves its renewal fields and stores it.
func (s Service) Create(ctx context.Context, subject string, req domain.CreateSubscriptionRequest) (*domain.Subscription, error) {
	userID, err := s.resolveUser(ctx, subject)
	if err != nil {
		return nil, err
	}

	req.Name = strings.TrimSpace(req.Name)
	req.PaymentMethod = strings.TrimSpace(req.PaymentMethod)
	if verr := validation.ValidateStruct(&req); verr != nil {
		return nil, verr
	}

	now := s.now()
	if req.StartDate.After(now) {
		return nil, validation.NewError("start_date", "start_date must be in the past")
	}

	fields, err := domain.DeriveRenewalFields(req.StartDate, req.Frequency, req.RenewalDate, now)
	if err != nil {
		return nil, err
	}

	currency := req.Currency
	if currency == "" {
		currency = domain.DefaultCurrency
	}

	sub := &domain.Subscription{
		UserID:        userID,
		Name:          req.Name,
		Price:         *req.Price,
		Currency:      currency,
		Frequency:     req.Frequency,
		Category:      req.Category,
		PaymentMethod: req.PaymentMethod,
		Status:        domain.StatusActive,
		StartDate:     req.StartDate.UTC(),
		RenewalDate:   fields.RenewalDate.UTC(),
	}
	if fields.Status != "" {
		sub.Status = fields.Status
	}

	created, err := s.repo.CreateSubscription(ctx, sub)
	if err != nil {
		return nil, err
	}

	s.publishEvent(ctx, "subscription.created", *created, nil)
	return created, nil
}

// Get returns a subscription owned by the caller.
func (s Service) Get(ctx context.Context, subject, id string) (*domain.Subscription, error) {
	userID, err := s.resolveUser(ctx, subject)
	if err != nil {
		return nil, err
	}
	return s.getOwned(ctx, userID, id)
}

// ListForUser returns a user's subscriptions. Callers may only list their own.
func (s Service) ListForUser(ctx context.Context, subject, userID string) ([]domain.Subscription, error) {
	callerID, err := s.resolveUser(ctx, subject)
	if err != nil {
		return nil, err
	}
	if callerID != userID {
		return nil, ErrForbidden
	}
	return s.repo.ListSubscriptionsByUserID(ctx, userID)
}

// ListAll returns every subscription. Reserved for operators.
func (s Service) ListAll(ctx context.Context) ([]domain.Subscription, error) {
	return s.repo.ListSubscriptions(ctx)
}

// Update applies a partial update to a subscription owned by the caller. When the
// schedule changes, the renewal policy runs again before the row is written.
func (s Service) Update(ctx context.Context, subject, id string, req domain.UpdateSubscriptionRequest) (*domain.Subscription, error) {
	userID, err := s.resolveUser(ctx, subject)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		trimmed := strings.TrimSpace(*req.Name)
		req.Name = &trimmed
	}
	if req.PaymentMethod != nil {
		trimmed := strings.TrimSpace(*req.PaymentMethod)
		req.PaymentMethod = &trimmed
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		return nil, verr
	}

	sub, err := s.getOwned(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if req.StartDate != nil && req.StartDate.After(now) {
		return nil, validation.NewError("start_date", "start_date must be in the past")
	}

	applyUpdate(sub, req)

	if req.TouchesSchedule() {
		fields, err := domain.DeriveRenewalFields(sub.StartDate, sub.Frequency, req.RenewalDate, now)
		if err != nil {
			return nil, err
		}
		sub.RenewalDate = fields.RenewalDate.UTC()
		if req.Status == nil && fields.Status != "" && sub.Status == domain.StatusActive {
			sub.Status = fields.Status
		}
	}

	updated, err := s.repo.UpdateSubscription(ctx, sub)
	if err != nil {
		return nil, err
	}

	s.publishEvent(ctx, "subscription.updated", *updated, nil)
	return updated, nil
}

// Delete removes a subscription owned by the caller.
func (s Service) Delete(ctx context.Context, subject, id string) error {
	userID, err := s.resolveUser(ctx, subject)
	if err != nil {
		return err
	}

	sub, err := s.getOwned(ctx, userID, id)
	if err != nil {
		return err
	}

	if err := s.repo.DeleteSubscription(ctx, id); err != nil {
		return err
	}

	s.publishEvent(ctx, "subscription.deleted", *sub, nil)
	return nil
}

// Cancel marks a subscription owned by the caller as cancelled.
func (s Service) Cancel(ctx context.Context, subject, id string) (*domain.Subscription, error) {
	userID, err := s.resolveUser(ctx, subject)
	if err != nil {
		return nil, err
	}

	sub, err := s.getOwned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if sub.Status == domain.StatusCancelled {
		return sub, nil
	}

	cancelled, err := s.repo.UpdateSubscriptionStatus(ctx, id, domain.StatusCancelled)
	if err != nil {
		return nil, err
	}

	s.publishEvent(ctx, "subscription.cancelled", *cancelled, nil)
	return cancelled, nil
}

// ListUpcoming projects the caller's active subscriptions renewing within windowDays.
func (s Service) ListUpcoming(ctx context.Context, subject string, windowDays int) ([]domain.UpcomingRenewal, error) {
	if err := checkWindow(windowDays); err != nil {
		return nil, err
	}

	userID, err := s.resolveUser(ctx, subject)
	if err != nil {
		return nil, err
	}

	subs, err := s.repo.ListActiveSubscriptions(ctx, &userID)
	if err != nil {
		return nil, err
	}
	return domain.ProjectUpcoming(subs, s.now(), windowDays, &userID), nil
}

// ListUpcomingAll projects every user's active subscriptions renewing within windowDays.
func (s Service) ListUpcomingAll(ctx context.Context, windowDays int) ([]domain.UpcomingRenewal, error) {
	if err := checkWindow(windowDays); err != nil {
		return nil, err
	}

	subs, err := s.repo.ListActiveSubscriptions(ctx, nil)
	if err != nil {
		return nil, err
	}
	return domain.ProjectUpcoming(subs, s.now(), windowDays, nil), nil
}

func (s Service) resolveUser(ctx context.Context, subject string) (string, error) {
	if subject == "" {
		return "", errors.New("token subject cannot be empty")
	}

	userID, err := s.repo.UpsertUserBySubject(ctx, subject)
	if err != nil {
		log.Printf("Failed to resolve internal user id for subject %s: %v", subject, err)
		return "", err
	}
	return userID, nil
}

func (s Service) getOwned(ctx context.Context, userID, id string) (*domain.Subscription, error) {
	sub, err := s.repo.GetSubscriptionByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub.UserID != userID {
		return nil, ErrForbidden
	}
	return sub, nil
}

func applyUpdate(sub *domain.Subscription, req domain.UpdateSubscriptionRequest) {
	if req.Name != nil {
		sub.Name = *req.Name
	}
	if req.Price != nil {
		sub.Price = *req.Price
	}
	if req.Currency != nil {
		sub.Currency = *req.Currency
	}
	if req.Frequency != nil {
		sub.Frequency = *req.Frequency
	}
	if req.Category != nil {
		sub.Category = *req.Category
	}
	if req.PaymentMethod != nil {
		sub.PaymentMethod = *req.PaymentMethod
	}
	if req.Status != nil {
		sub.Status = *req.Status
	}
	if req.StartDate != nil {
		sub.StartDate = req.StartDate.UTC()
	}
}

func checkWindow(windowDays int) error {
	if windowDays < minWindowDays || windowDays > maxWindowDays {
		return validation.NewError("days", fmt.Sprintf("days must be between %d and %d", minWindowDays, maxWindowDays))
	}
	return nil
}

type subscriptionEvent struct {
	EventID         string     `json:"event_id"`
	SubscriptionID  string     `json:"subscription_id"`
	UserID          string     `json:"user_id"`
	Name            string     `json:"name"`
	Price           string     `json:"price"`
	Currency        string     `json:"currency"`
	Frequency       string     `json:"frequency"`
	Status          string     `json:"status"`
	RenewalDate     time.Time  `json:"renewal_date"`
	NextRenewalDate *time.Time `json:"next_renewal_date,omitempty"`
	Timestamp       time.Time  `json:"timestamp"`
}

func (s Service) publishEvent(ctx context.Context, routingKey string, sub domain.Subscription, nextRenewal *time.Time) {
	if s.publisher == nil {
		return
	}

	payload := subscriptionEvent{
		EventID:         uuid.NewString(),
		SubscriptionID:  sub.ID,
		UserID:          sub.UserID,
		Name:            sub.Name,
		Price:           sub.Price.String(),
		Currency:        sub.Currency,
		Frequency:       string(sub.Frequency),
		Status:          string(sub.Status),
		RenewalDate:     sub.RenewalDate,
		NextRenewalDate: nextRenewal,
		Timestamp:       s.now(),
	}

	if err := s.publisher.Publish(ctx, s.exchange, routingKey, payload); err != nil {
		log.Printf("WARN: failed to publish subscription event %s: %v", routingKey, err)
	}
}
