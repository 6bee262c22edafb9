// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Phonepass Contributors

package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/phonepass/phonepass/internal/auth"
)

// CodeRepository implements auth.CodeRepository using PostgreSQL.
// Each phone number has at most one row.
type CodeRepository struct {
	pool poolIface
}

// NewCodeRepository creates a new CodeRepository.
func NewCodeRepository(pool poolIface) *CodeRepository {
	return &CodeRepository{pool: pool}
}

// GetByPhone retrieves the current code for a phone number.
func (r *CodeRepository) GetByPhone(ctx context.Context, phoneNumber string) (*auth.VerificationCode, error) {
	var (
		code auth.VerificationCode
		id   string
	)
	err := r.pool.QueryRow(ctx, `
		SELECT id, phone_number, code, created_at, expires_at, used
		FROM verification_codes
		WHERE phone_number = $1
	`, phoneNumber).Scan(&id, &code.PhoneNumber, &code.Code, &code.CreatedAt, &code.ExpiresAt, &code.Used)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("CODE_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("CODE_GET_FAILED").
			With("operation", "get code by phone").
			Wrap(err)
	}
	if code.ID, err = parseID("verification_codes.id", id); err != nil {
		return nil, err
	}
	return &code, nil
}

// Replace upserts the code row for the phone number.
func (r *CodeRepository) Replace(ctx context.Context, code *auth.VerificationCode) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO verification_codes (phone_number, id, code, created_at, expires_at, used)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (phone_number) DO UPDATE
		SET id = EXCLUDED.id,
		    code = EXCLUDED.code,
		    created_at = EXCLUDED.created_at,
		    expires_at = EXCLUDED.expires_at,
		    used = EXCLUDED.used
	`,
		code.PhoneNumber,
		code.ID.String(),
		code.Code,
		code.CreatedAt,
		code.ExpiresAt,
		code.Used,
	)
	if err != nil {
		return oops.Code("CODE_REPLACE_FAILED").
			With("operation", "upsert verification code").
			With("code_id", code.ID.String()).
			Wrap(err)
	}
	return nil
}

// MarkUsed flags the code as used only if the row still holds id and is unused.
func (r *CodeRepository) MarkUsed(ctx context.Context, phoneNumber string, id ulid.ULID) (bool, error) {
	result, err := r.pool.Exec(ctx, `
		UPDATE verification_codes SET used = TRUE
		WHERE phone_number = $1 AND id = $2 AND used = FALSE
	`, phoneNumber, id.String())
	if err != nil {
		return false, oops.Code("CODE_MARK_USED_FAILED").
			With("operation", "mark code used").
			With("code_id", id.String()).
			Wrap(err)
	}
	return result.RowsAffected() == 1, nil
}

var _ auth.CodeRepository = (*CodeRepository)(nil)
