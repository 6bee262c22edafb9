// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Phonepass Contributors

package auth

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// LoginMethod records how a user last authenticated.
type LoginMethod string

// Supported login methods.
const (
	LoginMethodSMS      LoginMethod = "sms"
	LoginMethodPassword LoginMethod = "password"
)

// Valid reports whether m is a known login method.
func (m LoginMethod) Valid() bool {
	return m == LoginMethodSMS || m == LoginMethodPassword
}

// User is the identity anchor, keyed by phone number.
type User struct {
	ID              ulid.ULID
	PhoneNumber     string
	PasswordHash    string // empty when the user only ever used codes
	LastLoginMethod LoginMethod
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewUser creates a validated User.
// passwordHash may be empty for users created through code login.
func NewUser(phoneNumber, passwordHash string, method LoginMethod, now time.Time) (*User, error) {
	if !ValidPhoneNumber(phoneNumber) {
		return nil, oops.Code("USER_INVALID_PHONE").
			With("phone", maskPhone(phoneNumber)).
			Errorf("phone number format is invalid")
	}
	if !method.Valid() {
		return nil, oops.Code("USER_INVALID_LOGIN_METHOD").
			With("method", string(method)).
			Errorf("unknown login method %q", method)
	}
	if now.IsZero() {
		return nil, oops.Code("USER_INVALID_TIME").Errorf("creation time cannot be zero")
	}

	return &User{
		ID:              ulid.Make(),
		PhoneNumber:     phoneNumber,
		PasswordHash:    passwordHash,
		LastLoginMethod: method,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// HasPassword reports whether the user can log in with a password.
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

// markLogin records a successful login at now.
func (u *User) markLogin(method LoginMethod, now time.Time) {
	u.LastLoginMethod = method
	u.UpdatedAt = now
}

// UserRepository manages user persistence.
type UserRepository interface {
	// Create stores a new user.
	// Returns ErrUserExists if the phone number is already registered.
	Create(ctx context.Context, user *User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*User, error)

	// GetByPhone retrieves a user by phone number.
	// Returns ErrNotFound if no user has the given phone number.
	GetByPhone(ctx context.Context, phoneNumber string) (*User, error)

	// Update stores the mutable fields of an existing user.
	Update(ctx context.Context, user *User) error
}
