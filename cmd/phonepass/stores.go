// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Phonepass Contributors

package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/phonepass/phonepass/internal/auth"
	"github.com/phonepass/phonepass/internal/auth/memory"
	authpg "github.com/phonepass/phonepass/internal/auth/postgres"
	authredis "github.com/phonepass/phonepass/internal/auth/redis"
	"github.com/phonepass/phonepass/internal/config"
	"github.com/phonepass/phonepass/internal/store"
)

// backend holds the storage handles opened for one command.
type backend struct {
	stores auth.Stores
	pool   *pgxpool.Pool
	redis  goredis.UniversalClient
}

// StoreDeps contains injectable connection factories.
// All fields with nil values will use their default implementations.
type StoreDeps struct {
	// PoolFactory opens a PostgreSQL pool.
	// Default: store.Open
	PoolFactory func(ctx context.Context, dsn string) (*pgxpool.Pool, error)

	// RedisFactory connects to Redis.
	// Default: authredis.Connect
	RedisFactory func(ctx context.Context, url string) (goredis.UniversalClient, error)
}

func (d *StoreDeps) withDefaults() *StoreDeps {
	out := StoreDeps{}
	if d != nil {
		out = *d
	}
	if out.PoolFactory == nil {
		out.PoolFactory = store.Open
	}
	if out.RedisFactory == nil {
		out.RedisFactory = authredis.Connect
	}
	return &out
}

// openBackend builds the auth stores selected by cfg. Users, sessions and
// attempts live in PostgreSQL when a database URL is set and in memory
// otherwise. Codes follow codes.backend.
func openBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger, deps *StoreDeps) (*backend, error) {
	deps = deps.withDefaults()
	b := &backend{}

	if cfg.UsesPostgres() {
		pool, err := deps.PoolFactory(ctx, cfg.Database.URL)
		if err != nil {
			return nil, oops.With("operation", "open database").Wrap(err)
		}
		b.pool = pool
		b.stores.Users = authpg.NewUserRepository(pool)
		b.stores.Sessions = authpg.NewSessionRepository(pool)
		b.stores.Attempts = authpg.NewAttemptRepository(pool)
	} else {
		logger.Warn("no database configured, users and sessions are kept in memory")
		b.stores.Users = memory.NewUserRepository()
		b.stores.Sessions = memory.NewSessionRepository()
		b.stores.Attempts = memory.NewAttemptRepository()
	}

	switch cfg.Codes.Backend {
	case config.BackendPostgres:
		b.stores.Codes = authpg.NewCodeRepository(b.pool)
	case config.BackendRedis:
		client, err := deps.RedisFactory(ctx, cfg.Codes.RedisURL)
		if err != nil {
			b.Close()
			return nil, oops.With("operation", "open redis").Wrap(err)
		}
		b.redis = client
		b.stores.Codes = authredis.NewCodeRepository(client, cfg.Codes.Retention)
	default:
		b.stores.Codes = memory.NewCodeRepository()
	}

	return b, nil
}

// Ping checks every remote store the backend holds.
func (b *backend) Ping(ctx context.Context) error {
	if b.pool != nil {
		if err := b.pool.Ping(ctx); err != nil {
			return oops.Code("STORE_UNAVAILABLE").With("store", "postgres").Wrap(err)
		}
	}
	if b.redis != nil {
		if err := b.redis.Ping(ctx).Err(); err != nil {
			return oops.Code("STORE_UNAVAILABLE").With("store", "redis").Wrap(err)
		}
	}
	return nil
}

// Close releases the pool and the Redis client.
func (b *backend) Close() {
	if b.pool != nil {
		b.pool.Close()
	}
	if b.redis != nil {
		if err := b.redis.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			slog.Debug("error closing redis client", "error", err)
		}
	}
}

// newService wires the orchestrator over b with the configured policies.
func newService(cfg *config.Config, b *backend, logger *slog.Logger) (*auth.Service, error) {
	opts := auth.Options{
		Notifier:           auth.NewLogNotifier(logger),
		Captcha:            auth.PresenceCaptchaVerifier{},
		Logger:             logger,
		CodeTTL:            cfg.Codes.TTL,
		ResendWindow:       cfg.Codes.ResendWindow,
		RegistrationPolicy: auth.RegistrationPolicy(cfg.Auth.RegistrationPolicy),
	}
	if cfg.Codes.FixedCode != "" {
		generator, err := auth.NewFixedCodeGenerator(cfg.Codes.FixedCode)
		if err != nil {
			return nil, err
		}
		opts.Generator = generator
		logger.Warn("fixed verification code in use, do not run this in production")
	}
	return auth.NewService(b.stores, opts)
}
