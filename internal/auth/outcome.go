// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Phonepass Contributors

package auth

import "time"

// Outcome is the closed set of results the auth services report.
// Storage failures are not outcomes; they are returned as errors.
type Outcome int

// Outcomes.
const (
	OutcomeOK Outcome = iota
	OutcomeInvalidInput
	OutcomeRateLimited
	OutcomeInvalidOrExpiredCode
	OutcomeNotRegistered
	OutcomeUserNotFound
	OutcomeUserAlreadyExists
	OutcomePasswordMismatch
	OutcomeCaptchaRequired
	OutcomeAccountLocked
	OutcomeInvalidCredential
)

var outcomeNames = map[Outcome]string{
	OutcomeOK:                   "ok",
	OutcomeInvalidInput:         "invalid_input",
	OutcomeRateLimited:          "rate_limited",
	OutcomeInvalidOrExpiredCode: "invalid_or_expired_code",
	OutcomeNotRegistered:        "not_registered",
	OutcomeUserNotFound:         "user_not_found",
	OutcomeUserAlreadyExists:    "user_already_exists",
	OutcomePasswordMismatch:     "password_mismatch",
	OutcomeCaptchaRequired:      "captcha_required",
	OutcomeAccountLocked:        "account_locked",
	OutcomeInvalidCredential:    "invalid_credential",
}

// String returns the snake_case name used in logs and metrics.
func (o Outcome) String() string {
	if name, ok := outcomeNames[o]; ok {
		return name
	}
	return "unknown"
}

// HasSession reports whether results with this outcome carry a session.
func (o Outcome) HasSession() bool {
	return o == OutcomeOK || o == OutcomeUserAlreadyExists
}

// SendCodeResult is the result of Service.SendCode.
type SendCodeResult struct {
	Outcome Outcome
	// Reason explains OutcomeInvalidInput.
	Reason string
	// ExpiresAt is set for OutcomeOK.
	ExpiresAt time.Time
	// RetryAfter is set for OutcomeRateLimited.
	RetryAfter time.Duration
}

// LoginResult is the result of CodeLogin, PasswordLogin and Register.
type LoginResult struct {
	Outcome Outcome
	// Reason explains OutcomeInvalidInput.
	Reason string
	// User and Session are set when Outcome.HasSession().
	User    *User
	Session *IssuedSession
	// NewUser is true when this call created the user.
	NewUser bool
	// Failures is the consecutive failure count after a password attempt.
	Failures int
	// LockedUntil is set for OutcomeAccountLocked.
	LockedUntil *time.Time
}

// RegisterRequest carries the registration form.
type RegisterRequest struct {
	PhoneNumber     string
	Code            string
	Password        string
	ConfirmPassword string
	AgreeTerms      bool
}
