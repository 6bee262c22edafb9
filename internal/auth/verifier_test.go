// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Phonepass Contributors

package auth_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/phonepass/phonepass/internal/auth"
	"github.com/phonepass/phonepass/internal/auth/memory"
	"github.com/phonepass/phonepass/internal/auth/mocks"
	"github.com/phonepass/phonepass/pkg/errutil"
)

type verifierEnv struct {
	verifier *auth.CredentialVerifier
	clock    *fakeClock
	codes    *auth.CodeStore
	attempts *auth.AttemptTracker
	notifier *recordingNotifier
	logs     *bytes.Buffer
}

func newVerifierEnv(t *testing.T, users auth.UserRepository, hasher auth.PasswordHasher, captcha auth.CaptchaVerifier) *verifierEnv {
	t.Helper()

	env := &verifierEnv{
		clock:    newFakeClock(),
		notifier: newRecordingNotifier(),
		logs:     &bytes.Buffer{},
	}
	logger := slog.New(slog.NewJSONHandler(env.logs, nil))

	codes, err := auth.NewCodeStore(memory.NewCodeRepository(), auth.CodeStoreConfig{
		Notifier: env.notifier,
		Clock:    env.clock,
		Logger:   logger,
	})
	require.NoError(t, err)
	env.codes = codes

	attempts, err := auth.NewAttemptTracker(memory.NewAttemptRepository(), env.clock, logger)
	require.NoError(t, err)
	env.attempts = attempts

	v, err := auth.NewCredentialVerifier(auth.VerifierConfig{
		Users:    users,
		Codes:    codes,
		Attempts: attempts,
		Hasher:   hasher,
		Captcha:  captcha,
		Clock:    env.clock,
		Logger:   logger,
	})
	require.NoError(t, err)
	env.verifier = v
	return env
}

func (e *verifierEnv) fail(t *testing.T, n int) {
	t.Helper()
	for range n {
		_, err := e.attempts.RecordFailure(context.Background(), account)
		require.NoError(t, err)
	}
}

func seedUser(t *testing.T, users *memory.UserRepository, passwordHash string) *auth.User {
	t.Helper()
	user, err := auth.NewUser(account, passwordHash, auth.LoginMethodSMS, newFakeClock().Now())
	require.NoError(t, err)
	require.NoError(t, users.Create(context.Background(), user))
	return user
}

func TestNewCredentialVerifier_NilDependencies(t *testing.T) {
	codes, err := auth.NewCodeStore(memory.NewCodeRepository(), auth.CodeStoreConfig{})
	require.NoError(t, err)
	attempts, err := auth.NewAttemptTracker(memory.NewAttemptRepository(), nil, nil)
	require.NoError(t, err)
	users := memory.NewUserRepository()
	hasher := auth.NewArgon2idHasher()

	tests := []struct {
		name        string
		cfg         auth.VerifierConfig
		expectError string
	}{
		{"nil users", auth.VerifierConfig{Codes: codes, Attempts: attempts, Hasher: hasher}, "users repository is required"},
		{"nil codes", auth.VerifierConfig{Users: users, Attempts: attempts, Hasher: hasher}, "code store is required"},
		{"nil attempts", auth.VerifierConfig{Users: users, Codes: codes, Hasher: hasher}, "attempt tracker is required"},
		{"nil hasher", auth.VerifierConfig{Users: users, Codes: codes, Attempts: attempts}, "password hasher is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := auth.NewCredentialVerifier(tt.cfg)
			require.Error(t, err)
			assert.Nil(t, v)
			assert.Contains(t, err.Error(), tt.expectError)
			errutil.AssertErrorCode(t, err, "VERIFIER_INVALID")
		})
	}
}

func TestCredentialVerifier_VerifyPassword(t *testing.T) {
	ctx := context.Background()
	const digest = "$argon2id$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA"

	t.Run("locked account short-circuits without touching the counter", func(t *testing.T) {
		users := memory.NewUserRepository()
		seedUser(t, users, digest)
		hasher := mocks.NewMockPasswordHasher(t)
		env := newVerifierEnv(t, users, hasher, nil)
		env.fail(t, auth.LockoutThreshold)

		res, err := env.verifier.VerifyPassword(ctx, account, "right", "proof")
		require.NoError(t, err)
		assert.Equal(t, auth.OutcomeAccountLocked, res.Outcome)
		require.NotNil(t, res.LockedUntil)

		status, err := env.attempts.Status(ctx, account)
		require.NoError(t, err)
		assert.Equal(t, auth.LockoutThreshold, status.Count)
		hasher.AssertNotCalled(t, "Verify", mock.Anything, mock.Anything)
	})

	t.Run("unknown account burns a hash and records a failure", func(t *testing.T) {
		hasher := mocks.NewMockPasswordHasher(t)
		hasher.On("Verify", "guess", mock.AnythingOfType("string")).Return(false, nil).Once()
		env := newVerifierEnv(t, memory.NewUserRepository(), hasher, nil)

		res, err := env.verifier.VerifyPassword(ctx, account, "guess", "")
		require.NoError(t, err)
		assert.Equal(t, auth.OutcomeUserNotFound, res.Outcome)
		assert.Equal(t, 1, res.Failures)
	})

	t.Run("captcha demanded after three failures", func(t *testing.T) {
		users := memory.NewUserRepository()
		seedUser(t, users, digest)
		hasher := mocks.NewMockPasswordHasher(t)
		env := newVerifierEnv(t, users, hasher, nil)
		env.fail(t, auth.CaptchaThreshold)

		res, err := env.verifier.VerifyPassword(ctx, account, "whatever", "  ")
		require.NoError(t, err)
		assert.Equal(t, auth.OutcomeCaptchaRequired, res.Outcome)
		assert.Equal(t, auth.CaptchaThreshold, res.Failures)

		status, err := env.attempts.Status(ctx, account)
		require.NoError(t, err)
		assert.Equal(t, auth.CaptchaThreshold, status.Count, "no attempt consumed")
	})

	t.Run("captcha provider error is returned", func(t *testing.T) {
		users := memory.NewUserRepository()
		seedUser(t, users, digest)
		captcha := mocks.NewMockCaptchaVerifier(t)
		captcha.On("Verify", ctx, account, "proof").Return(false, errors.New("provider unreachable"))
		env := newVerifierEnv(t, users, mocks.NewMockPasswordHasher(t), captcha)
		env.fail(t, auth.CaptchaThreshold)

		_, err := env.verifier.VerifyPassword(ctx, account, "pw", "proof")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "AUTH_CAPTCHA_FAILED")
	})

	t.Run("captcha not consulted below threshold", func(t *testing.T) {
		users := memory.NewUserRepository()
		seedUser(t, users, digest)
		hasher := mocks.NewMockPasswordHasher(t)
		hasher.On("Verify", "wrong", digest).Return(false, nil)
		captcha := mocks.NewMockCaptchaVerifier(t)
		env := newVerifierEnv(t, users, hasher, captcha)

		res, err := env.verifier.VerifyPassword(ctx, account, "wrong", "")
		require.NoError(t, err)
		assert.Equal(t, auth.OutcomeInvalidCredential, res.Outcome)
		captcha.AssertNotCalled(t, "Verify", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("fifth wrong password locks", func(t *testing.T) {
		users := memory.NewUserRepository()
		seedUser(t, users, digest)
		hasher := mocks.NewMockPasswordHasher(t)
		hasher.On("Verify", "wrong", digest).Return(false, nil)
		env := newVerifierEnv(t, users, hasher, nil)
		env.fail(t, auth.LockoutThreshold-1)

		res, err := env.verifier.VerifyPassword(ctx, account, "wrong", "proof")
		require.NoError(t, err)
		assert.Equal(t, auth.OutcomeAccountLocked, res.Outcome)
		assert.Equal(t, auth.LockoutThreshold, res.Failures)
		require.NotNil(t, res.LockedUntil)
		assert.Equal(t, env.clock.Now().Add(auth.LockoutDuration), *res.LockedUntil)
	})

	t.Run("user without password is an invalid credential", func(t *testing.T) {
		users := memory.NewUserRepository()
		seedUser(t, users, "")
		hasher := mocks.NewMockPasswordHasher(t)
		hasher.On("Verify", "pw", mock.AnythingOfType("string")).Return(false, nil).Once()
		env := newVerifierEnv(t, users, hasher, nil)

		res, err := env.verifier.VerifyPassword(ctx, account, "pw", "")
		require.NoError(t, err)
		assert.Equal(t, auth.OutcomeInvalidCredential, res.Outcome)
		assert.Equal(t, 1, res.Failures)
	})

	t.Run("malformed digest is an error", func(t *testing.T) {
		users := memory.NewUserRepository()
		seedUser(t, users, "garbage")
		hasher := mocks.NewMockPasswordHasher(t)
		hasher.On("Verify", "pw", "garbage").Return(false, errors.New("invalid hash format"))
		env := newVerifierEnv(t, users, hasher, nil)

		_, err := env.verifier.VerifyPassword(ctx, account, "pw", "")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "AUTH_LOGIN_FAILED")
	})

	t.Run("success resets attempts and upgrades legacy digest", func(t *testing.T) {
		const legacy = "$2a$10$legacylegacylegacylegacy"
		users := memory.NewUserRepository()
		user := seedUser(t, users, legacy)
		hasher := mocks.NewMockPasswordHasher(t)
		hasher.On("Verify", "right", legacy).Return(true, nil)
		hasher.On("NeedsUpgrade", legacy).Return(true)
		hasher.On("Hash", "right").Return(digest, nil)
		env := newVerifierEnv(t, users, hasher, nil)
		env.fail(t, 2)

		res, err := env.verifier.VerifyPassword(ctx, account, "right", "")
		require.NoError(t, err)
		assert.Equal(t, auth.OutcomeOK, res.Outcome)
		assert.Equal(t, user.ID, res.User.ID)

		status, err := env.attempts.Status(ctx, account)
		require.NoError(t, err)
		assert.Zero(t, status.Count)

		stored, err := users.GetByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, digest, stored.PasswordHash)
		assert.Equal(t, auth.LoginMethodPassword, stored.LastLoginMethod)
	})

	t.Run("update failure is logged and login still succeeds", func(t *testing.T) {
		user, err := auth.NewUser(account, digest, auth.LoginMethodSMS, newFakeClock().Now())
		require.NoError(t, err)
		users := mocks.NewMockUserRepository(t)
		users.On("GetByPhone", ctx, account).Return(user, nil)
		users.On("Update", ctx, mock.AnythingOfType("*auth.User")).Return(errors.New("replica read-only"))
		hasher := mocks.NewMockPasswordHasher(t)
		hasher.On("Verify", "right", digest).Return(true, nil)
		hasher.On("NeedsUpgrade", digest).Return(false)
		env := newVerifierEnv(t, users, hasher, nil)

		res, err := env.verifier.VerifyPassword(ctx, account, "right", "")
		require.NoError(t, err)
		assert.Equal(t, auth.OutcomeOK, res.Outcome)
		assert.Contains(t, env.logs.String(), "failed to update user after login")
	})

	t.Run("user lookup failure is a storage failure", func(t *testing.T) {
		users := mocks.NewMockUserRepository(t)
		users.On("GetByPhone", ctx, account).Return(nil, errors.New("too many connections"))
		env := newVerifierEnv(t, users, mocks.NewMockPasswordHasher(t), nil)

		_, err := env.verifier.VerifyPassword(ctx, account, "pw", "")
		assert.ErrorIs(t, err, auth.ErrStorageFailure)
	})
}

func TestCredentialVerifier_VerifyCode(t *testing.T) {
	ctx := context.Background()

	t.Run("existing user logs in and records method", func(t *testing.T) {
		users := memory.NewUserRepository()
		user := seedUser(t, users, "digest")
		user.LastLoginMethod = auth.LoginMethodPassword
		require.NoError(t, users.Update(ctx, user))
		env := newVerifierEnv(t, users, auth.NewArgon2idHasher(), nil)

		_, err := env.codes.Issue(ctx, account)
		require.NoError(t, err)

		res, err := env.verifier.VerifyCode(ctx, account, env.notifier.last(account), false)
		require.NoError(t, err)
		assert.Equal(t, auth.OutcomeOK, res.Outcome)
		assert.False(t, res.Created)

		stored, err := users.GetByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, auth.LoginMethodSMS, stored.LastLoginMethod)
	})

	t.Run("unknown user without creation", func(t *testing.T) {
		users := memory.NewUserRepository()
		env := newVerifierEnv(t, users, auth.NewArgon2idHasher(), nil)

		_, err := env.codes.Issue(ctx, account)
		require.NoError(t, err)

		res, err := env.verifier.VerifyCode(ctx, account, env.notifier.last(account), false)
		require.NoError(t, err)
		assert.Equal(t, auth.OutcomeUserNotFound, res.Outcome)
		assert.Zero(t, users.Len())
	})

	t.Run("unknown user with creation", func(t *testing.T) {
		users := memory.NewUserRepository()
		env := newVerifierEnv(t, users, auth.NewArgon2idHasher(), nil)

		_, err := env.codes.Issue(ctx, account)
		require.NoError(t, err)

		res, err := env.verifier.VerifyCode(ctx, account, env.notifier.last(account), true)
		require.NoError(t, err)
		assert.Equal(t, auth.OutcomeOK, res.Outcome)
		assert.True(t, res.Created)
		assert.False(t, res.User.HasPassword())
		assert.Equal(t, 1, users.Len())
	})

	t.Run("concurrent registration race returns the winner", func(t *testing.T) {
		winner, err := auth.NewUser(account, "", auth.LoginMethodSMS, newFakeClock().Now())
		require.NoError(t, err)
		users := mocks.NewMockUserRepository(t)
		users.On("GetByPhone", ctx, account).Return(nil, auth.ErrNotFound).Once()
		users.On("Create", ctx, mock.AnythingOfType("*auth.User")).Return(auth.ErrUserExists)
		users.On("GetByPhone", ctx, account).Return(winner, nil).Once()
		env := newVerifierEnv(t, users, auth.NewArgon2idHasher(), nil)

		_, err = env.codes.Issue(ctx, account)
		require.NoError(t, err)

		res, err := env.verifier.VerifyCode(ctx, account, env.notifier.last(account), true)
		require.NoError(t, err)
		assert.Equal(t, auth.OutcomeOK, res.Outcome)
		assert.False(t, res.Created)
		assert.Equal(t, winner.ID, res.User.ID)
	})

	t.Run("bad code and bad phone are invalid credentials", func(t *testing.T) {
		users := mocks.NewMockUserRepository(t)
		env := newVerifierEnv(t, users, auth.NewArgon2idHasher(), nil)

		res, err := env.verifier.VerifyCode(ctx, account, "000000", true)
		require.NoError(t, err)
		assert.Equal(t, auth.OutcomeInvalidCredential, res.Outcome)

		res, err = env.verifier.VerifyCode(ctx, "not-a-phone", "000000", true)
		require.NoError(t, err)
		assert.Equal(t, auth.OutcomeInvalidCredential, res.Outcome)
	})

	t.Run("code logins never touch the attempt counter", func(t *testing.T) {
		env := newVerifierEnv(t, memory.NewUserRepository(), auth.NewArgon2idHasher(), nil)

		for range 6 {
			_, err := env.verifier.VerifyCode(ctx, account, "000000", true)
			require.NoError(t, err)
		}
		status, err := env.attempts.Status(ctx, account)
		require.NoError(t, err)
		assert.Zero(t, status.Count)
	})
}

// steppingClock moves forward one second on every read and counts reads.
type steppingClock struct {
	mu    sync.Mutex
	now   time.Time
	reads int
}

func (c *steppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reads++
	t := c.now
	c.now = c.now.Add(time.Second)
	return t
}

func (e *verifierEnv) withClock(t *testing.T, users auth.UserRepository, hasher auth.PasswordHasher, captcha auth.CaptchaVerifier, clock auth.Clock) *auth.CredentialVerifier {
	t.Helper()
	v, err := auth.NewCredentialVerifier(auth.VerifierConfig{
		Users:    users,
		Codes:    e.codes,
		Attempts: e.attempts,
		Hasher:   hasher,
		Captcha:  captcha,
		Clock:    clock,
	})
	require.NoError(t, err)
	return v
}

func TestCredentialVerifier_ReadsClockOncePerLogin(t *testing.T) {
	ctx := context.Background()
	const digest = "$argon2id$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA"
	start := newFakeClock().Now()

	t.Run("locking failure uses the sampled instant", func(t *testing.T) {
		users := memory.NewUserRepository()
		seedUser(t, users, digest)
		hasher := mocks.NewMockPasswordHasher(t)
		hasher.On("Verify", "wrong", digest).Return(false, nil)
		captcha := mocks.NewMockCaptchaVerifier(t)
		captcha.On("Verify", ctx, account, "proof").Return(true, nil)
		env := newVerifierEnv(t, users, hasher, captcha)
		env.fail(t, auth.LockoutThreshold-1)

		clock := &steppingClock{now: start}
		v := env.withClock(t, users, hasher, captcha, clock)

		res, err := v.VerifyPassword(ctx, account, "wrong", "proof")
		require.NoError(t, err)
		assert.Equal(t, auth.OutcomeAccountLocked, res.Outcome)
		require.NotNil(t, res.LockedUntil)
		assert.Equal(t, start.Add(auth.LockoutDuration), *res.LockedUntil)
		assert.Equal(t, 1, clock.reads)
	})

	t.Run("successful password login stamps the sampled instant", func(t *testing.T) {
		users := memory.NewUserRepository()
		user := seedUser(t, users, digest)
		hasher := mocks.NewMockPasswordHasher(t)
		hasher.On("Verify", "right", digest).Return(true, nil)
		hasher.On("NeedsUpgrade", digest).Return(false)
		env := newVerifierEnv(t, users, hasher, nil)

		clock := &steppingClock{now: start.Add(time.Hour)}
		v := env.withClock(t, users, hasher, nil, clock)

		res, err := v.VerifyPassword(ctx, account, "right", "")
		require.NoError(t, err)
		assert.Equal(t, auth.OutcomeOK, res.Outcome)
		assert.Equal(t, 1, clock.reads)

		stored, err := users.GetByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, start.Add(time.Hour), stored.UpdatedAt)
	})

	t.Run("code login consumes and creates at the sampled instant", func(t *testing.T) {
		users := memory.NewUserRepository()
		hasher := auth.NewArgon2idHasher()
		env := newVerifierEnv(t, users, hasher, nil)
		_, err := env.codes.Issue(ctx, account)
		require.NoError(t, err)

		clock := &steppingClock{now: start.Add(time.Second)}
		v := env.withClock(t, users, hasher, nil, clock)

		res, err := v.VerifyCode(ctx, account, env.notifier.last(account), true)
		require.NoError(t, err)
		assert.Equal(t, auth.OutcomeOK, res.Outcome)
		require.True(t, res.Created)
		assert.Equal(t, 1, clock.reads)
		assert.Equal(t, start.Add(time.Second), res.User.CreatedAt)
	})
}
