// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Phonepass Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"

	"github.com/phonepass/phonepass/pkg/errutil"
)

// dummyPasswordHash is verified when the account has no usable digest so that
// unknown accounts take as long as known ones. It never matches any password.
//
//nolint:gosec // G101: This is an intentionally fake hash for timing attack prevention, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// Verification is the result of a credential check.
// Outcome is one of OutcomeOK, OutcomeInvalidCredential, OutcomeUserNotFound,
// OutcomeAccountLocked or OutcomeCaptchaRequired.
type Verification struct {
	Outcome     Outcome
	User        *User
	Created     bool
	Failures    int
	LockedUntil *time.Time
}

// CredentialVerifier checks codes and passwords against user records.
type CredentialVerifier struct {
	users    UserRepository
	codes    *CodeStore
	attempts *AttemptTracker
	hasher   PasswordHasher
	captcha  CaptchaVerifier
	clock    Clock
	logger   *slog.Logger
}

// VerifierConfig lists the collaborators of a CredentialVerifier.
type VerifierConfig struct {
	Users    UserRepository
	Codes    *CodeStore
	Attempts *AttemptTracker
	Hasher   PasswordHasher
	Captcha  CaptchaVerifier
	Clock    Clock
	Logger   *slog.Logger
}

// NewCredentialVerifier creates a CredentialVerifier.
// Captcha, Clock and Logger fall back to defaults when nil.
func NewCredentialVerifier(cfg VerifierConfig) (*CredentialVerifier, error) {
	switch {
	case cfg.Users == nil:
		return nil, oops.Code("VERIFIER_INVALID").Errorf("users repository is required")
	case cfg.Codes == nil:
		return nil, oops.Code("VERIFIER_INVALID").Errorf("code store is required")
	case cfg.Attempts == nil:
		return nil, oops.Code("VERIFIER_INVALID").Errorf("attempt tracker is required")
	case cfg.Hasher == nil:
		return nil, oops.Code("VERIFIER_INVALID").Errorf("password hasher is required")
	}

	v := &CredentialVerifier{
		users:    cfg.Users,
		codes:    cfg.Codes,
		attempts: cfg.Attempts,
		hasher:   cfg.Hasher,
		captcha:  cfg.Captcha,
		clock:    cfg.Clock,
		logger:   cfg.Logger,
	}
	if v.captcha == nil {
		v.captcha = PresenceCaptchaVerifier{}
	}
	if v.clock == nil {
		v.clock = SystemClock{}
	}
	if v.logger == nil {
		v.logger = slog.Default()
	}
	return v, nil
}

// VerifyCode consumes the code for phoneNumber and resolves the user.
// With createIfMissing an unknown phone number gets a new user (Created=true);
// without it the result is OutcomeUserNotFound. Code logins never touch the
// attempt counter.
func (v *CredentialVerifier) VerifyCode(ctx context.Context, phoneNumber, code string, createIfMissing bool) (Verification, error) {
	if !ValidPhoneNumber(phoneNumber) {
		return Verification{Outcome: OutcomeInvalidCredential}, nil
	}

	now := v.clock.Now()
	ok, err := v.codes.consumeAt(ctx, phoneNumber, code, now)
	if err != nil {
		return Verification{}, err
	}
	if !ok {
		return Verification{Outcome: OutcomeInvalidCredential}, nil
	}

	user, err := v.users.GetByPhone(ctx, phoneNumber)
	if err == nil {
		user.markLogin(LoginMethodSMS, now)
		v.updateBestEffort(ctx, user)
		return Verification{Outcome: OutcomeOK, User: user}, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Verification{}, storageFailure("get user by phone", err)
	}
	if !createIfMissing {
		return Verification{Outcome: OutcomeUserNotFound}, nil
	}

	user, created, err := v.createUser(ctx, phoneNumber, "", LoginMethodSMS, now)
	if err != nil {
		return Verification{}, err
	}
	return Verification{Outcome: OutcomeOK, User: user, Created: created}, nil
}

// VerifyPassword checks a password login for account (the phone number).
// The clock is read once; lock checks, counter writes and the login stamp
// all use that instant.
func (v *CredentialVerifier) VerifyPassword(ctx context.Context, account, password, captchaProof string) (Verification, error) {
	now := v.clock.Now()
	status, err := v.attempts.statusAt(ctx, account, now)
	if err != nil {
		return Verification{}, err
	}
	if status.Locked {
		return Verification{
			Outcome:     OutcomeAccountLocked,
			Failures:    status.Count,
			LockedUntil: status.LockedUntil,
		}, nil
	}

	user, err := v.users.GetByPhone(ctx, account)
	if errors.Is(err, ErrNotFound) {
		v.burnDummyHash(password)
		report, err := v.attempts.recordFailureAt(ctx, account, now)
		if err != nil {
			return Verification{}, err
		}
		return Verification{Outcome: OutcomeUserNotFound, Failures: report.Count}, nil
	}
	if err != nil {
		return Verification{}, storageFailure("get user by phone", err)
	}

	if status.RequiresCaptcha {
		passed, err := v.captcha.Verify(ctx, account, captchaProof)
		if err != nil {
			return Verification{}, oops.Code("AUTH_CAPTCHA_FAILED").
				With("operation", "verify captcha").
				Wrap(err)
		}
		if !passed {
			return Verification{Outcome: OutcomeCaptchaRequired, Failures: status.Count}, nil
		}
	}

	valid := false
	if user.HasPassword() {
		valid, err = v.hasher.Verify(password, user.PasswordHash)
		if err != nil {
			return Verification{}, oops.Code("AUTH_LOGIN_FAILED").
				With("operation", "verify password").
				With("user_id", user.ID.String()).
				Wrap(err)
		}
	} else {
		v.burnDummyHash(password)
	}

	if !valid {
		report, err := v.attempts.recordFailureAt(ctx, account, now)
		if err != nil {
			return Verification{}, err
		}
		result := Verification{Outcome: OutcomeInvalidCredential, Failures: report.Count}
		if report.Locked {
			result.Outcome = OutcomeAccountLocked
			result.LockedUntil = report.LockedUntil
		}
		return result, nil
	}

	if err := v.attempts.recordSuccessAt(ctx, account, now); err != nil {
		return Verification{}, err
	}

	if v.hasher.NeedsUpgrade(user.PasswordHash) {
		if upgraded, hashErr := v.hasher.Hash(password); hashErr == nil {
			user.PasswordHash = upgraded
		}
	}
	user.markLogin(LoginMethodPassword, now)
	v.updateBestEffort(ctx, user)

	return Verification{Outcome: OutcomeOK, User: user}, nil
}

// createUser inserts a user, falling back to the existing row when a
// concurrent call registered the same phone first.
func (v *CredentialVerifier) createUser(ctx context.Context, phoneNumber, passwordHash string, method LoginMethod, now time.Time) (*User, bool, error) {
	user, err := NewUser(phoneNumber, passwordHash, method, now)
	if err != nil {
		return nil, false, err
	}

	err = v.users.Create(ctx, user)
	if err == nil {
		return user, true, nil
	}
	if !errors.Is(err, ErrUserExists) {
		return nil, false, storageFailure("create user", err)
	}

	existing, err := v.users.GetByPhone(ctx, phoneNumber)
	if err != nil {
		return nil, false, storageFailure("get user by phone", err)
	}
	return existing, false, nil
}

// updateBestEffort persists login bookkeeping. The login succeeds regardless.
func (v *CredentialVerifier) updateBestEffort(ctx context.Context, user *User) {
	if err := v.users.Update(ctx, user); err != nil {
		errutil.LogErrorContext(ctx, v.logger, "failed to update user after login",
			oops.With("user_id", user.ID.String()).Wrap(err))
	}
}

func (v *CredentialVerifier) burnDummyHash(password string) {
	_, _ = v.hasher.Verify(password, dummyPasswordHash) //nolint:errcheck // timing only
}
