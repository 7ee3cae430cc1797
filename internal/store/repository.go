/**
 * @description
 * This file implements the data access layer for the subscription tracker.
 * It contains all the SQL queries and logic for interacting with the database.
 */
package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MajXin/Subscription-management-sys/internal/domain"
)

var (
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrUserNotFound         = errors.New("user not found")
)

const subscriptionColumns = `
	id, user_id, name, price, currency, frequency, category, payment_method,
	status, start_date, renewal_date, created_at, updated_at`

const userColumns = ` id, auth_subject, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// Repository handles database operations for subscriptions and their owners.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// UpsertUserBySubject returns the internal user id for a token subject, creating the
// user row on first sight.
func (r *Repository) UpsertUserBySubject(ctx context.Context, subject string) (string, error) {
	query := `
        INSERT INTO users (auth_subject)
        VALUES ($1)
        ON CONFLICT (auth_subject) DO UPDATE SET auth_subject = EXCLUDED.auth_subject
        RETURNING id`

	var id string
	if err := r.db.QueryRow(ctx, query, subject).Scan(&id); err != nil {
		return "", err
	}
	return id, nil
}

// ListUsers retrieves every provisioned user.
func (r *Repository) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := r.db.Query(ctx, `SELECT`+userColumns+` FROM users ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}

// GetUserByID retrieves a single user.
func (r *Repository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	return scanUser(r.db.QueryRow(ctx, `SELECT`+userColumns+` FROM users WHERE id = $1`, id))
}

// DeleteUser removes a user. Their subscriptions go with them (ON DELETE CASCADE).
func (r *Repository) DeleteUser(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, "DELETE FROM users WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// CreateSubscription inserts a fully resolved subscription and returns the stored row.
func (r *Repository) CreateSubscription(ctx context.Context, sub *domain.Subscription) (*domain.Subscription, error) {
	query := `
        INSERT INTO subscriptions (
            user_id, name, price, currency, frequency, category, payment_method,
            status, start_date, renewal_date
        )
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
        RETURNING` + subscriptionColumns

	row := r.db.QueryRow(ctx, query,
		sub.UserID,
		sub.Name,
		sub.Price,
		sub.Currency,
		sub.Frequency,
		sub.Category,
		sub.PaymentMethod,
		sub.Status,
		sub.StartDate,
		sub.RenewalDate,
	)
	return scanSubscription(row)
}

// GetSubscriptionByID retrieves a single subscription.
func (r *Repository) GetSubscriptionByID(ctx context.Context, id string) (*domain.Subscription, error) {
	query := `SELECT` + subscriptionColumns + ` FROM subscriptions WHERE id = $1`
	return scanSubscription(r.db.QueryRow(ctx, query, id))
}

// ListSubscriptionsByUserID retrieves every subscription owned by a user.
func (r *Repository) ListSubscriptionsByUserID(ctx context.Context, userID string) ([]domain.Subscription, error) {
	query := `SELECT` + subscriptionColumns + ` FROM subscriptions WHERE user_id = $1 ORDER BY created_at, id`
	return r.querySubscriptions(ctx, query, userID)
}

// ListSubscriptions retrieves every subscription in the system.
func (r *Repository) ListSubscriptions(ctx context.Context) ([]domain.Subscription, error) {
	query := `SELECT` + subscriptionColumns + ` FROM subscriptions ORDER BY created_at, id`
	return r.querySubscriptions(ctx, query)
}

// ListActiveSubscriptions retrieves active subscriptions, optionally for a single user.
func (r *Repository) ListActiveSubscriptions(ctx context.Context, userID *string) ([]domain.Subscription, error) {
	query, args := activeSubscriptionsQuery(userID)
	return r.querySubscriptions(ctx, query, args...)
}

// UpdateSubscription overwrites the mutable columns of a subscription.
func (r *Repository) UpdateSubscription(ctx context.Context, sub *domain.Subscription) (*domain.Subscription, error) {
	query := `
        UPDATE subscriptions SET
            name = $2,
            price = $3,
            currency = $4,
            frequency = $5,
            category = $6,
            payment_method = $7,
            status = $8,
            start_date = $9,
            renewal_date = $10,
            updated_at = NOW()
        WHERE id = $1
        RETURNING` + subscriptionColumns

	row := r.db.QueryRow(ctx, query,
		sub.ID,
		sub.Name,
		sub.Price,
		sub.Currency,
		sub.Frequency,
		sub.Category,
		sub.PaymentMethod,
		sub.Status,
		sub.StartDate,
		sub.RenewalDate,
	)
	return scanSubscription(row)
}

// UpdateSubscriptionStatus sets only the status of a subscription.
func (r *Repository) UpdateSubscriptionStatus(ctx context.Context, id string, status domain.Status) (*domain.Subscription, error) {
	query := `UPDATE subscriptions SET status = $2, updated_at = NOW() WHERE id = $1 RETURNING` + subscriptionColumns
	return scanSubscription(r.db.QueryRow(ctx, query, id, status))
}

// DeleteSubscription removes a subscription permanently.
func (r *Repository) DeleteSubscription(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, "DELETE FROM subscriptions WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSubscriptionNotFound
	}
	return nil
}

func (r *Repository) querySubscriptions(ctx context.Context, query string, args ...any) ([]domain.Subscription, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	subs := make([]domain.Subscription, 0)
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, *sub)
	}
	return subs, rows.Err()
}

// activeSubscriptionsQuery keeps insertion order so equal renewal dates stay stable downstream.
func activeSubscriptionsQuery(userID *string) (string, []any) {
	query := `SELECT` + subscriptionColumns + ` FROM subscriptions WHERE status = $1`
	args := []any{domain.StatusActive}
	if userID != nil {
		query += ` AND user_id = $2`
		args = append(args, *userID)
	}
	return query + ` ORDER BY created_at, id`, args
}

func scanSubscription(row rowScanner) (*domain.Subscription, error) {
	var sub domain.Subscription
	err := row.Scan(
		&sub.ID,
		&sub.UserID,
		&sub.Name,
		&sub.Price,
		&sub.Currency,
		&sub.Frequency,
		&sub.Category,
		&sub.PaymentMethod,
		&sub.Status,
		&sub.StartDate,
		&sub.RenewalDate,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, err
	}
	return &sub, nil
}

func scanUser(row rowScanner) (*domain.User, error) {
	var user domain.User
	if err := row.Scan(&user.ID, &user.AuthSubject, &user.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}
