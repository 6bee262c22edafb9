// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Phonepass Contributors

package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Session token configuration.
const (
	SessionTokenBytes  = 32                 // 32 bytes = 64 hex chars = 256 bits
	SessionTokenExpiry = 7 * 24 * time.Hour // 7 day expiry
)

// Session is proof of authentication for one user.
// Only the SHA-256 hash of the bearer token is kept.
type Session struct {
	ID        ulid.ULID
	UserID    ulid.ULID
	TokenHash string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// IssuedSession pairs a freshly stored session with its plaintext token.
// The token is never stored and cannot be recovered later.
type IssuedSession struct {
	*Session
	Token string
}

// NewSession creates a validated Session.
func NewSession(userID ulid.ULID, tokenHash string, issuedAt, expiresAt time.Time) (*Session, error) {
	if userID.Compare(ulid.ULID{}) == 0 {
		return nil, oops.Code(CodeInvalidSubject).Wrap(ErrInvalidSubject)
	}
	if tokenHash == "" {
		return nil, oops.Code("SESSION_INVALID_HASH").Errorf("token hash cannot be empty")
	}
	if !expiresAt.After(issuedAt) {
		return nil, oops.Code("SESSION_INVALID_EXPIRY").
			With("issued_at", issuedAt).
			With("expires_at", expiresAt).
			Errorf("expiry must be after issue time")
	}
	return &Session{
		ID:        ulid.Make(),
		UserID:    userID,
		TokenHash: tokenHash,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}, nil
}

// IsExpiredAt returns true if the session is expired at t.
func (s *Session) IsExpiredAt(t time.Time) bool {
	return !s.ExpiresAt.After(t)
}

// GenerateSessionToken creates a secure random token and its hash.
// Returns (plaintext_token, sha256_hash, error).
func GenerateSessionToken() (token, hash string, err error) {
	tokenBytes := make([]byte, SessionTokenBytes)
	if _, err = rand.Read(tokenBytes); err != nil {
		return "", "", oops.Code("SESSION_TOKEN_GENERATE_FAILED").
			With("operation", "crypto/rand.Read").
			With("requested_bytes", SessionTokenBytes).
			Wrap(err)
	}

	token = hex.EncodeToString(tokenBytes)
	return token, HashSessionToken(token), nil
}

// HashSessionToken computes the hex SHA-256 of a session token.
func HashSessionToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// VerifySessionToken checks in constant time whether token matches hash.
func VerifySessionToken(token, hash string) bool {
	if token == "" || hash == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(HashSessionToken(token)), []byte(hash)) == 1
}

// SessionRepository manages session persistence.
type SessionRepository interface {
	// Create stores a new session.
	Create(ctx context.Context, session *Session) error

	// GetByTokenHash retrieves a session by its token hash.
	GetByTokenHash(ctx context.Context, tokenHash string) (*Session, error)

	// Delete removes a session by ID.
	Delete(ctx context.Context, id ulid.ULID) error

	// DeleteExpired removes sessions that expired before now and returns the count.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// SessionIssuer mints bearer sessions for existing users.
type SessionIssuer struct {
	users    UserRepository
	sessions SessionRepository
	clock    Clock
	ttl      time.Duration
}

// NewSessionIssuer creates a SessionIssuer. A nil clock uses the wall clock.
func NewSessionIssuer(users UserRepository, sessions SessionRepository, clock Clock) (*SessionIssuer, error) {
	if users == nil {
		return nil, oops.Code("SESSION_ISSUER_INVALID").Errorf("users repository is required")
	}
	if sessions == nil {
		return nil, oops.Code("SESSION_ISSUER_INVALID").Errorf("sessions repository is required")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &SessionIssuer{users: users, sessions: sessions, clock: clock, ttl: SessionTokenExpiry}, nil
}

// Issue creates and stores a session for userID.
// Returns an error matching ErrInvalidSubject if the user does not exist.
func (i *SessionIssuer) Issue(ctx context.Context, userID ulid.ULID) (*IssuedSession, error) {
	if userID.Compare(ulid.ULID{}) == 0 {
		return nil, oops.Code(CodeInvalidSubject).Wrap(ErrInvalidSubject)
	}
	if _, err := i.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code(CodeInvalidSubject).
				With("user_id", userID.String()).
				Wrap(ErrInvalidSubject)
		}
		return nil, storageFailure("get user by id", err)
	}

	token, tokenHash, err := GenerateSessionToken()
	if err != nil {
		return nil, err
	}

	now := i.clock.Now()
	session, err := NewSession(userID, tokenHash, now, now.Add(i.ttl))
	if err != nil {
		return nil, err
	}
	if err := i.sessions.Create(ctx, session); err != nil {
		return nil, storageFailure("create session", err)
	}
	SessionsIssued.Inc()

	return &IssuedSession{Session: session, Token: token}, nil
}

// Validate returns the live session for token.
func (i *SessionIssuer) Validate(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, oops.Code("SESSION_TOKEN_EMPTY").Errorf("session token cannot be empty")
	}

	session, err := i.sessions.GetByTokenHash(ctx, HashSessionToken(token))
	if errors.Is(err, ErrNotFound) {
		return nil, oops.Code("SESSION_INVALID").Errorf("invalid session token")
	}
	if err != nil {
		return nil, storageFailure("get session by token hash", err)
	}
	if session.IsExpiredAt(i.clock.Now()) {
		return nil, oops.Code("SESSION_EXPIRED").
			With("session_id", session.ID.String()).
			Errorf("session has expired")
	}
	return session, nil
}

// Revoke deletes the session identified by token.
func (i *SessionIssuer) Revoke(ctx context.Context, token string) error {
	session, err := i.Validate(ctx, token)
	if err != nil {
		return err
	}
	if err := i.sessions.Delete(ctx, session.ID); err != nil {
		return storageFailure("delete session", err)
	}
	return nil
}

// PurgeExpired removes expired sessions and returns how many were deleted.
func (i *SessionIssuer) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := i.sessions.DeleteExpired(ctx, i.clock.Now())
	if err != nil {
		return 0, storageFailure("delete expired sessions", err)
	}
	return n, nil
}
