package app

import (
	"context"
	"log"

	"github.com/MajXin/Subscription-management-sys/internal/domain"
)

// ListUsers returns every provisioned user. Reserved for operators.
func (s Service) ListUsers(ctx context.Context) ([]domain.User, error) {
	return s.repo.ListUsers(ctx)
}

// GetUser returns a single user. Reserved for operators.
func (s Service) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return s.repo.GetUserByID(ctx, id)
}

// DeleteUser removes a user together with their subscriptions. Reserved for operators.
func (s Service) DeleteUser(ctx context.Context, id string) error {
	if err := s.repo.DeleteUser(ctx, id); err != nil {
		return err
	}
	log.Printf("Deleted user %s and their subscriptions", id)
	return nil
}
