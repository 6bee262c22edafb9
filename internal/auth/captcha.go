// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Phonepass Contributors

package auth

import (
	"context"
	"strings"
)

// CaptchaVerifier checks a CAPTCHA proof submitted with a password login.
type CaptchaVerifier interface {
	Verify(ctx context.Context, account, proof string) (bool, error)
}

// PresenceCaptchaVerifier accepts any non-blank proof. The transport layer is
// expected to have checked the proof with the CAPTCHA provider already.
type PresenceCaptchaVerifier struct{}

// Verify returns true if proof is not blank.
func (PresenceCaptchaVerifier) Verify(_ context.Context, _, proof string) (bool, error) {
	return strings.TrimSpace(proof) != "", nil
}
