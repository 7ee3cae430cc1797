package domain

import "time"

// User is a subscription owner known by the subject of their identity-provider token.
// Accounts are provisioned the first time a subject calls the API.
type User struct {
	ID          string    `json:"id"`
	AuthSubject string    `json:"auth_subject"`
	CreatedAt   time.Time `json:"created_at"`
}
