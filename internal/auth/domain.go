package auth

import (
	"errors"
	"time"
)

// User represents an account. Accounts start unconfirmed; the confirmation
// token is cleared once the emailed link is followed.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	ConfirmToken string
	ConfirmedAt  time.Time
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Confirmed reports whether the account finished email confirmation.
func (u *User) Confirmed() bool {
	return u != nil && !u.ConfirmedAt.IsZero()
}

// ErrEmailTaken indicates signup with an already registered address.
var ErrEmailTaken = errors.New("auth: email already registered")

// ErrEmailNotConfirmed indicates login before following the confirmation link.
var ErrEmailNotConfirmed = errors.New("auth: email not confirmed")

// ErrTokenInvalid indicates an unknown or spent confirmation token.
var ErrTokenInvalid = errors.New("auth: confirmation token invalid")
