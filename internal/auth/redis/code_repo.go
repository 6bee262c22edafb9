// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Phonepass Contributors

// Package redis implements auth.CodeRepository on Redis.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/phonepass/phonepass/internal/auth"
)

// KeyPrefix namespaces verification code keys.
const KeyPrefix = "phonepass:code:"

// DefaultRetention is how long a code record stays in Redis after it is
// written. It must cover both the code TTL and the resend window, since
// the resend check reads CreatedAt from the stored record.
const DefaultRetention = time.Hour

// markUsedScript flips used to true only if the stored record still has
// the expected id and is unused. The key's TTL is preserved.
var markUsedScript = goredis.NewScript(`
local raw = redis.call('GET', KEYS[1])
if not raw then
  return 0
end
local rec = cjson.decode(raw)
if rec.id ~= ARGV[1] or rec.used then
  return 0
end
rec.used = true
redis.call('SET', KEYS[1], cjson.encode(rec), 'KEEPTTL')
return 1
`)

type codeRecord struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Used      bool      `json:"used"`
}

// CodeRepository stores one JSON record per phone number.
type CodeRepository struct {
	client    goredis.UniversalClient
	retention time.Duration
}

// NewCodeRepository creates a CodeRepository. A non-positive retention
// selects DefaultRetention.
func NewCodeRepository(client goredis.UniversalClient, retention time.Duration) *CodeRepository {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &CodeRepository{client: client, retention: retention}
}

func codeKey(phoneNumber string) string {
	return KeyPrefix + phoneNumber
}

// GetByPhone loads the current code for a phone number.
func (r *CodeRepository) GetByPhone(ctx context.Context, phoneNumber string) (*auth.VerificationCode, error) {
	raw, err := r.client.Get(ctx, codeKey(phoneNumber)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, oops.Code("CODE_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("CODE_GET_FAILED").
			With("operation", "redis get").
			Wrap(err)
	}
	return decodeCode(phoneNumber, raw)
}

// Replace overwrites the record for the phone number and restarts its retention.
func (r *CodeRepository) Replace(ctx context.Context, code *auth.VerificationCode) error {
	payload, err := encodeCode(code)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, codeKey(code.PhoneNumber), payload, r.retention).Err(); err != nil {
		return oops.Code("CODE_REPLACE_FAILED").
			With("operation", "redis set").
			With("code_id", code.ID.String()).
			Wrap(err)
	}
	return nil
}

// MarkUsed atomically marks the code used if the record still holds id.
func (r *CodeRepository) MarkUsed(ctx context.Context, phoneNumber string, id ulid.ULID) (bool, error) {
	n, err := markUsedScript.Run(ctx, r.client, []string{codeKey(phoneNumber)}, id.String()).Int()
	if err != nil {
		return false, oops.Code("CODE_MARK_USED_FAILED").
			With("operation", "redis mark used").
			With("code_id", id.String()).
			Wrap(err)
	}
	return n == 1, nil
}

func encodeCode(code *auth.VerificationCode) ([]byte, error) {
	payload, err := json.Marshal(codeRecord{
		ID:        code.ID.String(),
		Code:      code.Code,
		CreatedAt: code.CreatedAt.UTC(),
		ExpiresAt: code.ExpiresAt.UTC(),
		Used:      code.Used,
	})
	if err != nil {
		return nil, oops.Code("CODE_ENCODE_FAILED").Wrap(err)
	}
	return payload, nil
}

func decodeCode(phoneNumber string, raw []byte) (*auth.VerificationCode, error) {
	var rec codeRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, oops.Code("CODE_DECODE_FAILED").Wrap(err)
	}
	id, err := ulid.Parse(rec.ID)
	if err != nil {
		return nil, oops.Code("CODE_DECODE_FAILED").With("id", rec.ID).Wrap(err)
	}
	return &auth.VerificationCode{
		ID:          id,
		PhoneNumber: phoneNumber,
		Code:        rec.Code,
		CreatedAt:   rec.CreatedAt,
		ExpiresAt:   rec.ExpiresAt,
		Used:        rec.Used,
	}, nil
}

var _ auth.CodeRepository = (*CodeRepository)(nil)
