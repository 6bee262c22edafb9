// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Phonepass Contributors

package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/oops"

	"github.com/phonepass/phonepass/internal/auth"
	"github.com/phonepass/phonepass/internal/observability"
	"github.com/phonepass/phonepass/pkg/errutil"
)

// sessionPurger is implemented by *auth.SessionIssuer.
type sessionPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Sweeper periodically removes expired sessions. Verification code rows are
// left alone: the latest row per phone carries the resend window.
type Sweeper struct {
	sessions sessionPurger
	clock    auth.Clock
	interval time.Duration
	metrics  *observability.Metrics
	logger   *slog.Logger
}

// NewSweeper creates a Sweeper. metrics may be nil.
func NewSweeper(sessions sessionPurger, clock auth.Clock, interval time.Duration, metrics *observability.Metrics, logger *slog.Logger) (*Sweeper, error) {
	if sessions == nil {
		return nil, oops.Code("SWEEPER_INVALID").Errorf("session purger is required")
	}
	if interval <= 0 {
		return nil, oops.Code("SWEEPER_INVALID").With("interval", interval).Errorf("interval must be positive")
	}
	if clock == nil {
		clock = auth.SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		sessions: sessions,
		clock:    clock,
		interval: interval,
		metrics:  metrics,
		logger:   logger,
	}, nil
}

// Run sweeps once immediately and then every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
			errutil.LogErrorContext(ctx, s.logger, "expiry sweep failed", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Sweep runs a single purge pass.
func (s *Sweeper) Sweep(ctx context.Context) error {
	sessions, err := s.sessions.PurgeExpired(ctx)
	if err != nil {
		s.record("error")
		return oops.With("operation", "purge sessions").Wrap(err)
	}
	s.purged("sessions", sessions)

	s.record("ok")
	if s.metrics != nil {
		s.metrics.LastSweepStamp.Set(float64(s.clock.Now().Unix()))
	}
	if sessions > 0 {
		s.logger.InfoContext(ctx, "expired sessions purged", "sessions", sessions)
	}
	return nil
}

func (s *Sweeper) record(result string) {
	if s.metrics != nil {
		s.metrics.SweepsTotal.WithLabelValues(result).Inc()
	}
}

func (s *Sweeper) purged(kind string, n int64) {
	if s.metrics != nil && n > 0 {
		s.metrics.ExpiredPurged.WithLabelValues(kind).Add(float64(n))
	}
}
