// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Phonepass Contributors

package memory

import (
	"context"
	"sync"
	"time"

	"github.com/samber/oops"

	"github.com/phonepass/phonepass/internal/auth"
)

// AttemptRepository is an in-memory auth.AttemptRepository.
type AttemptRepository struct {
	mu       sync.Mutex
	attempts map[string]auth.LoginAttempt
}

// NewAttemptRepository creates an empty AttemptRepository.
func NewAttemptRepository() *AttemptRepository {
	return &AttemptRepository{attempts: make(map[string]auth.LoginAttempt)}
}

// Get returns the attempt record for account.
func (r *AttemptRepository) Get(_ context.Context, account string) (*auth.LoginAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	attempt, ok := r.attempts[account]
	if !ok {
		return nil, oops.Code("ATTEMPT_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	return cloneAttempt(attempt), nil
}

// Increment adds one failure. At or above lockThreshold LockedUntil is set
// to lockUntil, refreshing any active lock.
func (r *AttemptRepository) Increment(_ context.Context, account string, lockThreshold int, lockUntil, now time.Time) (*auth.LoginAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	attempt := r.attempts[account]
	attempt.Account = account
	attempt.FailureCount++
	attempt.UpdatedAt = now
	if attempt.FailureCount >= lockThreshold {
		until := lockUntil
		attempt.LockedUntil = &until
	}
	r.attempts[account] = attempt
	return cloneAttempt(attempt), nil
}

// Reset clears the failure count and lock for account.
func (r *AttemptRepository) Reset(_ context.Context, account string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.attempts[account] = auth.LoginAttempt{Account: account, UpdatedAt: now}
	return nil
}

func cloneAttempt(a auth.LoginAttempt) *auth.LoginAttempt {
	if a.LockedUntil != nil {
		until := *a.LockedUntil
		a.LockedUntil = &until
	}
	return &a
}

var _ auth.AttemptRepository = (*AttemptRepository)(nil)
