// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Phonepass Contributors

package memory

import (
	"context"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/phonepass/phonepass/internal/auth"
)

// UserRepository is an in-memory auth.UserRepository.
type UserRepository struct {
	mu      sync.RWMutex
	byID    map[ulid.ULID]auth.User
	byPhone map[string]ulid.ULID
}

// NewUserRepository creates an empty UserRepository.
func NewUserRepository() *UserRepository {
	return &UserRepository{
		byID:    make(map[ulid.ULID]auth.User),
		byPhone: make(map[string]ulid.ULID),
	}
}

// Create stores a new user. The phone number must be unused.
func (r *UserRepository) Create(_ context.Context, user *auth.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byPhone[user.PhoneNumber]; ok {
		return oops.Code("USER_EXISTS").Wrap(auth.ErrUserExists)
	}
	r.byID[user.ID] = *user
	r.byPhone[user.PhoneNumber] = user.ID
	return nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(_ context.Context, id ulid.ULID) (*auth.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.byID[id]
	if !ok {
		return nil, oops.Code("USER_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	return &user, nil
}

// GetByPhone retrieves a user by phone number.
func (r *UserRepository) GetByPhone(_ context.Context, phoneNumber string) (*auth.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byPhone[phoneNumber]
	if !ok {
		return nil, oops.Code("USER_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	user := r.byID[id]
	return &user, nil
}

// Update replaces the stored copy of an existing user.
func (r *UserRepository) Update(_ context.Context, user *auth.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[user.ID]; !ok {
		return oops.Code("USER_NOT_FOUND").With("id", user.ID.String()).Wrap(auth.ErrNotFound)
	}
	r.byID[user.ID] = *user
	return nil
}

// Len returns the number of stored users.
func (r *UserRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

var _ auth.UserRepository = (*UserRepository)(nil)
