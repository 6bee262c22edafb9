// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Phonepass Contributors

package memory

import (
	"context"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/phonepass/phonepass/internal/auth"
)

// CodeRepository is an in-memory auth.CodeRepository holding one code per phone.
type CodeRepository struct {
	mu    sync.Mutex
	codes map[string]auth.VerificationCode
}

// NewCodeRepository creates an empty CodeRepository.
func NewCodeRepository() *CodeRepository {
	return &CodeRepository{codes: make(map[string]auth.VerificationCode)}
}

// GetByPhone returns the current code for a phone number.
func (r *CodeRepository) GetByPhone(_ context.Context, phoneNumber string) (*auth.VerificationCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	code, ok := r.codes[phoneNumber]
	if !ok {
		return nil, oops.Code("CODE_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	return &code, nil
}

// Replace stores code as the only code for its phone number.
func (r *CodeRepository) Replace(_ context.Context, code *auth.VerificationCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.codes[code.PhoneNumber] = *code
	return nil
}

// MarkUsed flags the code as used if it is still the current, unused code.
func (r *CodeRepository) MarkUsed(_ context.Context, phoneNumber string, id ulid.ULID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	code, ok := r.codes[phoneNumber]
	if !ok || code.ID != id || code.Used {
		return false, nil
	}
	code.Used = true
	r.codes[phoneNumber] = code
	return true, nil
}

var _ auth.CodeRepository = (*CodeRepository)(nil)
