// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Phonepass Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/phonepass/phonepass/internal/auth"
)

// AttemptRepository implements auth.AttemptRepository using PostgreSQL.
// Increment is a single upsert, so concurrent failures are never lost even
// across processes.
type AttemptRepository struct {
	pool poolIface
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool poolIface) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

// Get retrieves the counter for an account.
func (r *AttemptRepository) Get(ctx context.Context, account string) (*auth.LoginAttempt, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT account, failure_count, locked_until, updated_at
		FROM login_attempts
		WHERE account = $1
	`, account)

	attempt, err := scanAttempt(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ATTEMPT_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ATTEMPT_GET_FAILED").
			With("operation", "get login attempt").
			Wrap(err)
	}
	return attempt, nil
}

// Increment adds one failure. At or above lockThreshold locked_until is set
// to lockUntil, refreshing any active lock.
func (r *AttemptRepository) Increment(ctx context.Context, account string, lockThreshold int, lockUntil, now time.Time) (*auth.LoginAttempt, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO login_attempts AS a (account, failure_count, locked_until, updated_at)
		VALUES ($1, 1, CASE WHEN 1 >= $2 THEN $3::timestamptz END, $4)
		ON CONFLICT (account) DO UPDATE
		SET failure_count = a.failure_count + 1,
		    locked_until = CASE
		        WHEN a.failure_count + 1 >= $2 THEN $3::timestamptz
		        ELSE a.locked_until
		    END,
		    updated_at = $4
		RETURNING account, failure_count, locked_until, updated_at
	`, account, lockThreshold, lockUntil, now)

	attempt, err := scanAttempt(row)
	if err != nil {
		return nil, oops.Code("ATTEMPT_INCREMENT_FAILED").
			With("operation", "increment login attempt").
			Wrap(err)
	}
	return attempt, nil
}

// Reset zeroes the failure count and clears any lock.
func (r *AttemptRepository) Reset(ctx context.Context, account string, now time.Time) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO login_attempts (account, failure_count, locked_until, updated_at)
		VALUES ($1, 0, NULL, $2)
		ON CONFLICT (account) DO UPDATE
		SET failure_count = 0, locked_until = NULL, updated_at = EXCLUDED.updated_at
	`, account, now)
	if err != nil {
		return oops.Code("ATTEMPT_RESET_FAILED").
			With("operation", "reset login attempt").
			Wrap(err)
	}
	return nil
}

func scanAttempt(row pgx.Row) (*auth.LoginAttempt, error) {
	var attempt auth.LoginAttempt
	if err := row.Scan(&attempt.Account, &attempt.FailureCount, &attempt.LockedUntil, &attempt.UpdatedAt); err != nil {
		return nil, err
	}
	return &attempt, nil
}

var _ auth.AttemptRepository = (*AttemptRepository)(nil)
