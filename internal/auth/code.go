// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Phonepass Contributors

package auth

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Verification code configuration.
const (
	CodeLength          = 6
	DefaultCodeTTL      = 5 * time.Minute
	DefaultResendWindow = time.Minute
)

var codeRegex = regexp.MustCompile(`^[0-9]{6}$`)

// VerificationCode is the single active one-time code for a phone number.
type VerificationCode struct {
	ID          ulid.ULID
	PhoneNumber string
	Code        string
	CreatedAt   time.Time
	ExpiresAt   time.Time
	Used        bool
}

// IsExpiredAt returns true if the code is no longer valid at t.
// A code expiring exactly at t is expired.
func (c *VerificationCode) IsExpiredAt(t time.Time) bool {
	return !c.ExpiresAt.After(t)
}

// ResendAllowedAt returns the earliest time a replacement may be issued.
func (c *VerificationCode) ResendAllowedAt(window time.Duration) time.Time {
	return c.CreatedAt.Add(window)
}

// CodeGenerator produces 6-digit verification codes.
type CodeGenerator interface {
	Generate() (string, error)
}

// RandomCodeGenerator draws codes uniformly from 000000-999999 using crypto/rand.
type RandomCodeGenerator struct{}

var codeSpace = big.NewInt(1_000_000)

// Generate returns a fresh random code.
func (RandomCodeGenerator) Generate() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpace)
	if err != nil {
		return "", oops.Code("CODE_GENERATE_FAILED").
			With("operation", "crypto/rand.Int").
			Wrap(err)
	}
	return fmt.Sprintf("%0*d", CodeLength, n.Int64()), nil
}

// FixedCodeGenerator always returns the same code. Only for test harnesses.
type FixedCodeGenerator struct {
	code string
}

// NewFixedCodeGenerator validates code and returns a generator for it.
func NewFixedCodeGenerator(code string) (*FixedCodeGenerator, error) {
	if !codeRegex.MatchString(code) {
		return nil, oops.Code("CODE_INVALID_FIXED").
			Errorf("fixed code must be %d digits", CodeLength)
	}
	return &FixedCodeGenerator{code: code}, nil
}

// Generate returns the fixed code.
func (g *FixedCodeGenerator) Generate() (string, error) {
	return g.code, nil
}

// CodeRepository stores at most one verification code per phone number.
type CodeRepository interface {
	// GetByPhone retrieves the current code for a phone number.
	// Returns ErrNotFound if none was ever issued.
	GetByPhone(ctx context.Context, phoneNumber string) (*VerificationCode, error)

	// Replace stores code, overwriting any previous record for the same phone.
	Replace(ctx context.Context, code *VerificationCode) error

	// MarkUsed flags the code with the given ID as used.
	// Returns false if the record was replaced or already used in the meantime.
	MarkUsed(ctx context.Context, phoneNumber string, id ulid.ULID) (bool, error)
}

// Notifier delivers a code to the phone out of band.
type Notifier interface {
	SendCode(ctx context.Context, phoneNumber, code string, expiresAt time.Time) error
}
