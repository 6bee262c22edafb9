// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Phonepass Contributors

package auth

import (
	"context"
	"log/slog"
	"time"
)

// LogNotifier writes codes to the log instead of sending an SMS.
// Intended for development and the operator CLI.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier. A nil logger uses slog.Default().
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// SendCode logs the code.
func (n *LogNotifier) SendCode(ctx context.Context, phoneNumber, code string, expiresAt time.Time) error {
	n.logger.InfoContext(ctx, "verification code dispatched",
		"phone", maskPhone(phoneNumber),
		"code", code,
		"expires_at", expiresAt)
	return nil
}
