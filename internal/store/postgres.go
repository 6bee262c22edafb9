// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Phonepass Contributors

// Package store opens the PostgreSQL pool and owns the schema migrations
// for users, sessions, verification codes and login attempts.
package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// Connection retry defaults.
const (
	DefaultConnectAttempts = 5
	DefaultConnectBackoff  = 200 * time.Millisecond
)

// pinger is the part of *pgxpool.Pool Open needs to verify connectivity.
type pinger interface {
	Ping(ctx context.Context) error
}

// Open creates a pgx pool for dsn and pings it with exponential backoff
// until the database answers or the attempts run out.
func Open(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, oops.Code("STORE_INVALID_DSN").With("operation", "parse dsn").Wrap(err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, oops.Code("STORE_CONNECT_FAILED").With("operation", "create pool").Wrap(err)
	}

	if err := waitForPing(ctx, pool, DefaultConnectAttempts, DefaultConnectBackoff); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// waitForPing pings p up to attempts times, doubling the delay from base.
func waitForPing(ctx context.Context, p pinger, attempts uint64, base time.Duration) error {
	if attempts == 0 {
		attempts = 1
	}
	backoff := retry.WithMaxRetries(attempts-1, retry.NewExponential(base))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := p.Ping(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return oops.Code("STORE_CONNECT_FAILED").
			With("operation", "ping").
			With("attempts", attempts).
			Wrap(err)
	}
	return nil
}
