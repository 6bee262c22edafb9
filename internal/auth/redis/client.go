// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Phonepass Contributors

package redis

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/samber/oops"
)

// Connect parses a redis:// URL, creates a client and pings it.
func Connect(ctx context.Context, url string) (goredis.UniversalClient, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, oops.Code("REDIS_INVALID_URL").With("operation", "parse redis url").Wrap(err)
	}
	client := goredis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, oops.Code("REDIS_CONNECT_FAILED").With("operation", "ping").Wrap(err)
	}
	return client, nil
}
