// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Phonepass Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"
)

// Password login throttling.
const (
	// CaptchaThreshold is the failure count from which a CAPTCHA proof is required.
	CaptchaThreshold = 3

	// LockoutThreshold is the failure count that locks the account.
	LockoutThreshold = 5

	// LockoutDuration is how long a lock lasts.
	LockoutDuration = 30 * time.Minute
)

// LoginAttempt is the failure counter for one account.
type LoginAttempt struct {
	Account      string
	FailureCount int
	LockedUntil  *time.Time
	UpdatedAt    time.Time
}

// IsLockedAt returns true if the account is locked at t.
func (a *LoginAttempt) IsLockedAt(t time.Time) bool {
	return IsLockedOut(a.LockedUntil, t)
}

// RequiresCaptcha returns true once the failure count reaches CaptchaThreshold.
// Time does not lower the count; only a successful login does.
func (a *LoginAttempt) RequiresCaptcha() bool {
	return a.FailureCount >= CaptchaThreshold
}

// IsLockedOut returns true if lockedUntil is strictly after now.
func IsLockedOut(lockedUntil *time.Time, now time.Time) bool {
	return lockedUntil != nil && lockedUntil.After(now)
}

// ComputeLockoutTime returns the lock expiry for the given failure count.
// Returns nil if failures < LockoutThreshold.
func ComputeLockoutTime(failures int, now time.Time) *time.Time {
	if failures < LockoutThreshold {
		return nil
	}
	lockout := now.Add(LockoutDuration)
	return &lockout
}

// AttemptRepository persists login attempt counters.
// Implementations must make Increment and Reset atomic per account.
type AttemptRepository interface {
	// Get retrieves the counter for an account.
	// Returns ErrNotFound if the account never failed.
	Get(ctx context.Context, account string) (*LoginAttempt, error)

	// Increment adds one failure, creating the record at 1 if needed.
	// Whenever the new count is at or above lockThreshold, LockedUntil is set
	// to lockUntil, so a failure during an active lock extends it.
	Increment(ctx context.Context, account string, lockThreshold int, lockUntil, now time.Time) (*LoginAttempt, error)

	// Reset sets the failure count to zero and clears any lock.
	Reset(ctx context.Context, account string, now time.Time) error
}

// FailureReport is the result of AttemptTracker.RecordFailure.
type FailureReport struct {
	Count       int
	Locked      bool
	LockedUntil *time.Time
}

// AttemptStatus is a point-in-time view of an account's counter.
type AttemptStatus struct {
	Count           int
	Locked          bool
	LockedUntil     *time.Time
	RequiresCaptcha bool
}

// AttemptTracker counts consecutive password failures per account and
// escalates from CAPTCHA to a timed lockout.
type AttemptTracker struct {
	repo   AttemptRepository
	clock  Clock
	logger *slog.Logger
}

// NewAttemptTracker creates an AttemptTracker. Nil clock and logger use defaults.
func NewAttemptTracker(repo AttemptRepository, clock Clock, logger *slog.Logger) (*AttemptTracker, error) {
	if repo == nil {
		return nil, oops.Code("ATTEMPT_TRACKER_INVALID").Errorf("attempt repository is required")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AttemptTracker{repo: repo, clock: clock, logger: logger}, nil
}

// RecordFailure counts a failed attempt and locks the account at the threshold.
func (t *AttemptTracker) RecordFailure(ctx context.Context, account string) (FailureReport, error) {
	return t.recordFailureAt(ctx, account, t.clock.Now())
}

func (t *AttemptTracker) recordFailureAt(ctx context.Context, account string, now time.Time) (FailureReport, error) {
	attempt, err := t.repo.Increment(ctx, account, LockoutThreshold, now.Add(LockoutDuration), now)
	if err != nil {
		return FailureReport{}, storageFailure("increment login attempts", err)
	}

	report := FailureReport{
		Count:       attempt.FailureCount,
		Locked:      attempt.IsLockedAt(now),
		LockedUntil: attempt.LockedUntil,
	}
	if report.Locked && attempt.FailureCount >= LockoutThreshold {
		Lockouts.Inc()
		t.logger.WarnContext(ctx, "account locked",
			"account", maskPhone(account),
			"failures", attempt.FailureCount,
			"locked_until", attempt.LockedUntil)
	}
	return report, nil
}

// RecordSuccess clears the failure count and any lock.
func (t *AttemptTracker) RecordSuccess(ctx context.Context, account string) error {
	return t.recordSuccessAt(ctx, account, t.clock.Now())
}

func (t *AttemptTracker) recordSuccessAt(ctx context.Context, account string, now time.Time) error {
	if err := t.repo.Reset(ctx, account, now); err != nil {
		return storageFailure("reset login attempts", err)
	}
	return nil
}

// IsLocked reports whether the account is currently locked.
func (t *AttemptTracker) IsLocked(ctx context.Context, account string) (bool, error) {
	status, err := t.Status(ctx, account)
	if err != nil {
		return false, err
	}
	return status.Locked, nil
}

// RequiresCaptcha reports whether the next attempt must carry a CAPTCHA proof.
func (t *AttemptTracker) RequiresCaptcha(ctx context.Context, account string) (bool, error) {
	status, err := t.Status(ctx, account)
	if err != nil {
		return false, err
	}
	return status.RequiresCaptcha, nil
}

// Status reads the counter once and evaluates it against the current time.
func (t *AttemptTracker) Status(ctx context.Context, account string) (AttemptStatus, error) {
	return t.statusAt(ctx, account, t.clock.Now())
}

func (t *AttemptTracker) statusAt(ctx context.Context, account string, now time.Time) (AttemptStatus, error) {
	attempt, err := t.repo.Get(ctx, account)
	if errors.Is(err, ErrNotFound) {
		return AttemptStatus{}, nil
	}
	if err != nil {
		return AttemptStatus{}, storageFailure("get login attempts", err)
	}
	return AttemptStatus{
		Count:           attempt.FailureCount,
		Locked:          attempt.IsLockedAt(now),
		LockedUntil:     attempt.LockedUntil,
		RequiresCaptcha: attempt.RequiresCaptcha(),
	}, nil
}
