// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Phonepass Contributors

package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/phonepass/phonepass/pkg/errutil"
)

// Reasons a code is rejected. Callers only ever see false; these go to the log.
const (
	rejectNotFound = "not_found"
	rejectMismatch = "mismatch"
	rejectUsed     = "used"
	rejectExpired  = "expired"
	rejectRaced    = "raced"
)

// CodeStoreConfig configures a CodeStore. Zero values pick the defaults.
type CodeStoreConfig struct {
	TTL          time.Duration
	ResendWindow time.Duration
	Generator    CodeGenerator
	Notifier     Notifier
	Clock        Clock
	Logger       *slog.Logger
}

// CodeIssue is the result of CodeStore.Issue.
type CodeIssue struct {
	Outcome    Outcome // OutcomeOK or OutcomeRateLimited
	ExpiresAt  time.Time
	RetryAfter time.Duration
}

// CodeStore manages the verification code lifecycle for phone numbers.
// Operations on the same phone number are serialized.
type CodeStore struct {
	repo         CodeRepository
	ttl          time.Duration
	resendWindow time.Duration
	generator    CodeGenerator
	notifier     Notifier
	clock        Clock
	logger       *slog.Logger
	locks        *keyedMutex
}

// NewCodeStore creates a CodeStore backed by repo.
func NewCodeStore(repo CodeRepository, cfg CodeStoreConfig) (*CodeStore, error) {
	if repo == nil {
		return nil, oops.Code("CODE_STORE_INVALID").Errorf("code repository is required")
	}
	if cfg.TTL < 0 || cfg.ResendWindow < 0 {
		return nil, oops.Code("CODE_STORE_INVALID").
			With("ttl", cfg.TTL).
			With("resend_window", cfg.ResendWindow).
			Errorf("durations cannot be negative")
	}

	s := &CodeStore{
		repo:         repo,
		ttl:          cfg.TTL,
		resendWindow: cfg.ResendWindow,
		generator:    cfg.Generator,
		notifier:     cfg.Notifier,
		clock:        cfg.Clock,
		logger:       cfg.Logger,
		locks:        newKeyedMutex(),
	}
	if s.ttl == 0 {
		s.ttl = DefaultCodeTTL
	}
	if s.resendWindow == 0 {
		s.resendWindow = DefaultResendWindow
	}
	if s.generator == nil {
		s.generator = RandomCodeGenerator{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.notifier == nil {
		s.notifier = NewLogNotifier(s.logger)
	}
	if s.clock == nil {
		s.clock = SystemClock{}
	}
	return s, nil
}

// TTL returns the validity window of issued codes.
func (s *CodeStore) TTL() time.Duration { return s.ttl }

// ResendWindow returns the minimum spacing between two codes for one phone.
func (s *CodeStore) ResendWindow() time.Duration { return s.resendWindow }

// Issue generates and stores a new code for phoneNumber, replacing any previous
// one, unless the previous one was created within the resend window.
// The caller must have validated the phone number.
func (s *CodeStore) Issue(ctx context.Context, phoneNumber string) (CodeIssue, error) {
	unlock := s.locks.Lock(phoneNumber)
	defer unlock()

	now := s.clock.Now()

	current, err := s.repo.GetByPhone(ctx, phoneNumber)
	switch {
	case errors.Is(err, ErrNotFound):
	case err != nil:
		return CodeIssue{}, storageFailure("get code by phone", err)
	default:
		if allowedAt := current.ResendAllowedAt(s.resendWindow); now.Before(allowedAt) {
			return CodeIssue{
				Outcome:    OutcomeRateLimited,
				RetryAfter: allowedAt.Sub(now),
			}, nil
		}
	}

	value, err := s.generator.Generate()
	if err != nil {
		return CodeIssue{}, oops.Code("CODE_ISSUE_FAILED").
			With("operation", "generate code").
			Wrap(err)
	}

	code := &VerificationCode{
		ID:          ulid.Make(),
		PhoneNumber: phoneNumber,
		Code:        value,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.ttl),
	}
	if err := s.repo.Replace(ctx, code); err != nil {
		return CodeIssue{}, storageFailure("replace code", err)
	}
	CodesIssued.Inc()

	if err := s.notifier.SendCode(ctx, phoneNumber, value, code.ExpiresAt); err != nil {
		NotifyFailures.Inc()
		errutil.LogErrorContext(ctx, s.logger, "verification code delivery failed",
			oops.With("phone", maskPhone(phoneNumber)).Wrap(err))
	}

	return CodeIssue{Outcome: OutcomeOK, ExpiresAt: code.ExpiresAt}, nil
}

// Consume reports whether candidate is the active code for phoneNumber and,
// if so, invalidates it. A given code is accepted at most once.
// Unknown numbers, wrong codes, used codes and expired codes all return false.
func (s *CodeStore) Consume(ctx context.Context, phoneNumber, candidate string) (bool, error) {
	return s.consumeAt(ctx, phoneNumber, candidate, s.clock.Now())
}

// consumeAt is Consume evaluated at now, for callers that already sampled
// the clock for the surrounding operation.
func (s *CodeStore) consumeAt(ctx context.Context, phoneNumber, candidate string, now time.Time) (bool, error) {
	unlock := s.locks.Lock(phoneNumber)
	defer unlock()

	current, err := s.repo.GetByPhone(ctx, phoneNumber)
	if errors.Is(err, ErrNotFound) {
		s.reject(ctx, phoneNumber, rejectNotFound)
		return false, nil
	}
	if err != nil {
		return false, storageFailure("get code by phone", err)
	}

	if subtle.ConstantTimeCompare([]byte(current.Code), []byte(candidate)) != 1 {
		s.reject(ctx, phoneNumber, rejectMismatch)
		return false, nil
	}
	if current.Used {
		s.reject(ctx, phoneNumber, rejectUsed)
		return false, nil
	}
	if current.IsExpiredAt(now) {
		s.reject(ctx, phoneNumber, rejectExpired)
		return false, nil
	}

	marked, err := s.repo.MarkUsed(ctx, phoneNumber, current.ID)
	if err != nil {
		return false, storageFailure("mark code used", err)
	}
	if !marked {
		s.reject(ctx, phoneNumber, rejectRaced)
		return false, nil
	}
	return true, nil
}

func (s *CodeStore) reject(ctx context.Context, phoneNumber, reason string) {
	s.logger.DebugContext(ctx, "verification code rejected",
		"phone", maskPhone(phoneNumber),
		"reason", reason)
}
