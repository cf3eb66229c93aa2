package domain

import "context"

// User is an authenticated account together with its bearer token.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Token string `json:"-"`
}

// Authenticator exchanges an email for an authenticated user.
type Authenticator interface {
	Login(ctx context.Context, email string) (User, error)
}
