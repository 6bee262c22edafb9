// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Phonepass Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/phonepass/phonepass/pkg/errutil"
)

// RegistrationPolicy decides what CodeLogin does for an unknown phone number.
type RegistrationPolicy string

// Registration policies.
const (
	// RegistrationAuto creates the user on the first successful code login.
	RegistrationAuto RegistrationPolicy = "auto"
	// RegistrationExplicit requires Register first; CodeLogin reports OutcomeNotRegistered.
	RegistrationExplicit RegistrationPolicy = "explicit"
)

// Valid reports whether p is a known policy.
func (p RegistrationPolicy) Valid() bool {
	return p == RegistrationAuto || p == RegistrationExplicit
}

// Input rejection reasons.
const (
	ReasonInvalidPhone    = "phone number format is invalid"
	ReasonMissingFields   = "all fields are required"
	ReasonTermsNotAgreed  = "terms of service must be accepted"
	ReasonMissingAccount  = "account and password are required"
	ReasonMissingCodeForm = "phone number and code are required"
)

// Stores groups the storage collaborators of a Service.
type Stores struct {
	Users    UserRepository
	Codes    CodeRepository
	Attempts AttemptRepository
	Sessions SessionRepository
}

// Options configures a Service. Zero values pick the defaults.
type Options struct {
	Hasher             PasswordHasher
	Generator          CodeGenerator
	Notifier           Notifier
	Captcha            CaptchaVerifier
	Clock              Clock
	Logger             *slog.Logger
	CodeTTL            time.Duration
	ResendWindow       time.Duration
	RegistrationPolicy RegistrationPolicy
}

// Service composes the credential components into the login use cases.
type Service struct {
	users    UserRepository
	codes    *CodeStore
	attempts *AttemptTracker
	verifier *CredentialVerifier
	sessions *SessionIssuer
	hasher   PasswordHasher
	clock    Clock
	logger   *slog.Logger
	policy   RegistrationPolicy
}

// NewService wires the components over the given stores.
func NewService(stores Stores, opts Options) (*Service, error) {
	switch {
	case stores.Users == nil:
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("users repository is required")
	case stores.Codes == nil:
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("codes repository is required")
	case stores.Attempts == nil:
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("attempts repository is required")
	case stores.Sessions == nil:
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("sessions repository is required")
	}

	if opts.Hasher == nil {
		opts.Hasher = NewArgon2idHasher()
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.RegistrationPolicy == "" {
		opts.RegistrationPolicy = RegistrationAuto
	}
	if !opts.RegistrationPolicy.Valid() {
		return nil, oops.Code("AUTH_SERVICE_INVALID").
			With("policy", string(opts.RegistrationPolicy)).
			Errorf("unknown registration policy %q", opts.RegistrationPolicy)
	}

	codes, err := NewCodeStore(stores.Codes, CodeStoreConfig{
		TTL:          opts.CodeTTL,
		ResendWindow: opts.ResendWindow,
		Generator:    opts.Generator,
		Notifier:     opts.Notifier,
		Clock:        opts.Clock,
		Logger:       opts.Logger,
	})
	if err != nil {
		return nil, err
	}

	attempts, err := NewAttemptTracker(stores.Attempts, opts.Clock, opts.Logger)
	if err != nil {
		return nil, err
	}

	verifier, err := NewCredentialVerifier(VerifierConfig{
		Users:    stores.Users,
		Codes:    codes,
		Attempts: attempts,
		Hasher:   opts.Hasher,
		Captcha:  opts.Captcha,
		Clock:    opts.Clock,
		Logger:   opts.Logger,
	})
	if err != nil {
		return nil, err
	}

	sessions, err := NewSessionIssuer(stores.Users, stores.Sessions, opts.Clock)
	if err != nil {
		return nil, err
	}

	return &Service{
		users:    stores.Users,
		codes:    codes,
		attempts: attempts,
		verifier: verifier,
		sessions: sessions,
		hasher:   opts.Hasher,
		clock:    opts.Clock,
		logger:   opts.Logger,
		policy:   opts.RegistrationPolicy,
	}, nil
}

// Sessions returns the session issuer, for token validation by the transport.
func (s *Service) Sessions() *SessionIssuer { return s.sessions }

// Attempts returns the login attempt tracker.
func (s *Service) Attempts() *AttemptTracker { return s.attempts }

// SendCode issues a verification code for phoneNumber.
func (s *Service) SendCode(ctx context.Context, phoneNumber string) (SendCodeResult, error) {
	if !ValidPhoneNumber(phoneNumber) {
		RecordOutcome(OpSendCode, OutcomeInvalidInput)
		return SendCodeResult{Outcome: OutcomeInvalidInput, Reason: ReasonInvalidPhone}, nil
	}

	issue, err := s.codes.Issue(ctx, phoneNumber)
	if err != nil {
		errutil.LogErrorContext(ctx, s.logger, "send code failed", err)
		return SendCodeResult{}, err
	}

	RecordOutcome(OpSendCode, issue.Outcome)
	return SendCodeResult{
		Outcome:    issue.Outcome,
		ExpiresAt:  issue.ExpiresAt,
		RetryAfter: issue.RetryAfter,
	}, nil
}

// CodeLogin logs a user in with a verification code. Under RegistrationAuto
// an unknown phone number is registered on the spot and NewUser is set.
func (s *Service) CodeLogin(ctx context.Context, phoneNumber, code string) (LoginResult, error) {
	res, err := s.codeLogin(ctx, phoneNumber, code)
	return s.finish(ctx, OpCodeLogin, res, err)
}

func (s *Service) codeLogin(ctx context.Context, phoneNumber, code string) (LoginResult, error) {
	if phoneNumber == "" || code == "" {
		return LoginResult{Outcome: OutcomeInvalidInput, Reason: ReasonMissingCodeForm}, nil
	}
	if !ValidPhoneNumber(phoneNumber) {
		return LoginResult{Outcome: OutcomeInvalidInput, Reason: ReasonInvalidPhone}, nil
	}

	v, err := s.verifier.VerifyCode(ctx, phoneNumber, code, s.policy == RegistrationAuto)
	if err != nil {
		return LoginResult{}, err
	}

	switch v.Outcome {
	case OutcomeOK:
		return s.withSession(ctx, LoginResult{Outcome: OutcomeOK, User: v.User, NewUser: v.Created})
	case OutcomeUserNotFound:
		return LoginResult{Outcome: OutcomeNotRegistered}, nil
	default:
		return LoginResult{Outcome: OutcomeInvalidOrExpiredCode}, nil
	}
}

// PasswordLogin logs a user in with account (phone number) and password.
// captchaProof is only checked once the account has enough failures.
func (s *Service) PasswordLogin(ctx context.Context, account, password, captchaProof string) (LoginResult, error) {
	res, err := s.passwordLogin(ctx, account, password, captchaProof)
	return s.finish(ctx, OpPasswordLogin, res, err)
}

func (s *Service) passwordLogin(ctx context.Context, account, password, captchaProof string) (LoginResult, error) {
	if account == "" || password == "" {
		return LoginResult{Outcome: OutcomeInvalidInput, Reason: ReasonMissingAccount}, nil
	}

	v, err := s.verifier.VerifyPassword(ctx, account, password, captchaProof)
	if err != nil {
		return LoginResult{}, err
	}

	switch v.Outcome {
	case OutcomeOK:
		return s.withSession(ctx, LoginResult{Outcome: OutcomeOK, User: v.User})
	default:
		return LoginResult{
			Outcome:     v.Outcome,
			Failures:    v.Failures,
			LockedUntil: v.LockedUntil,
		}, nil
	}
}

// Register creates a password account after checking the verification code.
// A phone number that is already registered is logged in instead and the
// result carries OutcomeUserAlreadyExists with a session.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (LoginResult, error) {
	res, err := s.register(ctx, req)
	return s.finish(ctx, OpRegister, res, err)
}

func (s *Service) register(ctx context.Context, req RegisterRequest) (LoginResult, error) {
	if req.PhoneNumber == "" || req.Code == "" || req.Password == "" || req.ConfirmPassword == "" {
		return LoginResult{Outcome: OutcomeInvalidInput, Reason: ReasonMissingFields}, nil
	}
	if !ValidPhoneNumber(req.PhoneNumber) {
		return LoginResult{Outcome: OutcomeInvalidInput, Reason: ReasonInvalidPhone}, nil
	}
	if req.Password != req.ConfirmPassword {
		return LoginResult{Outcome: OutcomePasswordMismatch}, nil
	}
	if !req.AgreeTerms {
		return LoginResult{Outcome: OutcomeInvalidInput, Reason: ReasonTermsNotAgreed}, nil
	}

	ok, err := s.codes.Consume(ctx, req.PhoneNumber, req.Code)
	if err != nil {
		return LoginResult{}, err
	}
	if !ok {
		return LoginResult{Outcome: OutcomeInvalidOrExpiredCode}, nil
	}

	existing, err := s.users.GetByPhone(ctx, req.PhoneNumber)
	if err == nil {
		return s.withSession(ctx, LoginResult{Outcome: OutcomeUserAlreadyExists, User: existing})
	}
	if !errors.Is(err, ErrNotFound) {
		return LoginResult{}, storageFailure("get user by phone", err)
	}

	digest, err := s.hasher.Hash(req.Password)
	if err != nil {
		return LoginResult{}, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	user, created, err := s.verifier.createUser(ctx, req.PhoneNumber, digest, LoginMethodPassword, s.clock.Now())
	if err != nil {
		return LoginResult{}, err
	}
	if !created {
		return s.withSession(ctx, LoginResult{Outcome: OutcomeUserAlreadyExists, User: user})
	}
	return s.withSession(ctx, LoginResult{Outcome: OutcomeOK, User: user, NewUser: true})
}

// withSession issues a session for res.User and attaches it.
func (s *Service) withSession(ctx context.Context, res LoginResult) (LoginResult, error) {
	issued, err := s.sessions.Issue(ctx, res.User.ID)
	if err != nil {
		return LoginResult{}, err
	}
	res.Session = issued
	return res, nil
}

func (s *Service) finish(ctx context.Context, operation string, res LoginResult, err error) (LoginResult, error) {
	if err != nil {
		errutil.LogErrorContext(ctx, s.logger, operation+" failed", err)
		return LoginResult{}, err
	}
	RecordOutcome(operation, res.Outcome)

	var userID string
	if res.User != nil {
		userID = res.User.ID.String()
	}
	s.logger.DebugContext(ctx, "auth operation finished",
		"operation", operation,
		"outcome", res.Outcome.String(),
		"user_id", userID)
	return res, nil
}

// UserByID looks a user up for callers holding a validated session.
func (s *Service) UserByID(ctx context.Context, id ulid.ULID) (*User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("USER_NOT_FOUND").With("user_id", id.String()).Wrap(err)
		}
		return nil, storageFailure("get user by id", err)
	}
	return user, nil
}
