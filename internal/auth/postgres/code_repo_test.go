// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Phonepass Contributors

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phonepass/phonepass/internal/auth"
	"github.com/phonepass/phonepass/pkg/errutil"
)

func TestCodeRepository_GetByPhone(t *testing.T) {
	id := ulid.Make()
	cols := []string{"id", "phone_number", "code", "created_at", "expires_at", "used"}

	t.Run("returns code", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(`FROM verification_codes`).
			WithArgs("13800138000").
			WillReturnRows(pgxmock.NewRows(cols).
				AddRow(id.String(), "13800138000", "123456", testNow, testNow.Add(5*time.Minute), false))

		got, err := NewCodeRepository(mock).GetByPhone(context.Background(), "13800138000")
		require.NoError(t, err)
		assert.Equal(t, &auth.VerificationCode{
			ID:          id,
			PhoneNumber: "13800138000",
			Code:        "123456",
			CreatedAt:   testNow,
			ExpiresAt:   testNow.Add(5 * time.Minute),
		}, got)
	})

	t.Run("missing code is ErrNotFound", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(`FROM verification_codes`).
			WithArgs("13800138000").
			WillReturnError(pgx.ErrNoRows)

		_, err := NewCodeRepository(mock).GetByPhone(context.Background(), "13800138000")
		assert.ErrorIs(t, err, auth.ErrNotFound)
		errutil.AssertErrorCode(t, err, "CODE_NOT_FOUND")
	})

	t.Run("database error", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(`FROM verification_codes`).
			WithArgs("13800138000").
			WillReturnError(errors.New("connection reset"))

		_, err := NewCodeRepository(mock).GetByPhone(context.Background(), "13800138000")
		errutil.AssertErrorCode(t, err, "CODE_GET_FAILED")
	})
}

func TestCodeRepository_Replace(t *testing.T) {
	code := &auth.VerificationCode{
		ID:          ulid.Make(),
		PhoneNumber: "13800138000",
		Code:        "654321",
		CreatedAt:   testNow,
		ExpiresAt:   testNow.Add(5 * time.Minute),
	}
	args := []any{code.PhoneNumber, code.ID.String(), code.Code, code.CreatedAt, code.ExpiresAt, false}

	t.Run("upserts row", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectExec(`INSERT INTO verification_codes .+ ON CONFLICT \(phone_number\) DO UPDATE`).
			WithArgs(args...).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, NewCodeRepository(mock).Replace(context.Background(), code))
	})

	t.Run("database error", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectExec(`INSERT INTO verification_codes`).
			WithArgs(args...).
			WillReturnError(errors.New("disk full"))

		err := NewCodeRepository(mock).Replace(context.Background(), code)
		errutil.AssertErrorCode(t, err, "CODE_REPLACE_FAILED")
	})
}

func TestCodeRepository_MarkUsed(t *testing.T) {
	id := ulid.Make()

	tests := []struct {
		name     string
		affected int64
		err      error
		want     bool
	}{
		{name: "first consumer wins", affected: 1, want: true},
		{name: "replaced or already used", affected: 0, want: false},
		{name: "database error", err: errors.New("timeout")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := newMock(t)
			exp := mock.ExpectExec(`UPDATE verification_codes SET used = TRUE`).
				WithArgs("13800138000", id.String())
			if tt.err != nil {
				exp.WillReturnError(tt.err)
			} else {
				exp.WillReturnResult(pgxmock.NewResult("UPDATE", tt.affected))
			}

			ok, err := NewCodeRepository(mock).MarkUsed(context.Background(), "13800138000", id)
			if tt.err != nil {
				errutil.AssertErrorCode(t, err, "CODE_MARK_USED_FAILED")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}
