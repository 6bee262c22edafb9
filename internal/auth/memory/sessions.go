// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Phonepass Contributors

package memory

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/phonepass/phonepass/internal/auth"
)

// SessionRepository is an in-memory auth.SessionRepository.
type SessionRepository struct {
	mu       sync.RWMutex
	sessions map[ulid.ULID]auth.Session
	byHash   map[string]ulid.ULID
}

// NewSessionRepository creates an empty SessionRepository.
func NewSessionRepository() *SessionRepository {
	return &SessionRepository{
		sessions: make(map[ulid.ULID]auth.Session),
		byHash:   make(map[string]ulid.ULID),
	}
}

// Create stores a new session. Token hashes must be unique.
func (r *SessionRepository) Create(_ context.Context, session *auth.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byHash[session.TokenHash]; ok {
		return oops.Code("SESSION_CREATE_FAILED").Errorf("duplicate token hash")
	}
	r.sessions[session.ID] = *session
	r.byHash[session.TokenHash] = session.ID
	return nil
}

// GetByTokenHash retrieves a session by its token hash.
func (r *SessionRepository) GetByTokenHash(_ context.Context, tokenHash string) (*auth.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byHash[tokenHash]
	if !ok {
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	session := r.sessions[id]
	return &session, nil
}

// Delete removes a session by ID.
func (r *SessionRepository) Delete(_ context.Context, id ulid.ULID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[id]
	if !ok {
		return oops.Code("SESSION_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	delete(r.byHash, session.TokenHash)
	delete(r.sessions, id)
	return nil
}

// DeleteExpired removes sessions whose expiry is not after now.
func (r *SessionRepository) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, session := range r.sessions {
		if session.IsExpiredAt(now) {
			delete(r.byHash, session.TokenHash)
			delete(r.sessions, id)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored sessions.
func (r *SessionRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

var _ auth.SessionRepository = (*SessionRepository)(nil)
