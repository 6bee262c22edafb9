// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Phonepass Contributors

package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phonepass/phonepass/pkg/errutil"
)

type flakyPinger struct {
	failures int
	calls    int
}

func (f *flakyPinger) Ping(context.Context) error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("connection refused")
	}
	return nil
}

func TestWaitForPing(t *testing.T) {
	ctx := context.Background()

	t.Run("succeeds after transient failures", func(t *testing.T) {
		p := &flakyPinger{failures: 2}
		require.NoError(t, waitForPing(ctx, p, 5, time.Millisecond))
		assert.Equal(t, 3, p.calls)
	})

	t.Run("gives up after the last attempt", func(t *testing.T) {
		p := &flakyPinger{failures: 10}
		err := waitForPing(ctx, p, 3, time.Millisecond)
		require.Error(t, err)
		assert.Equal(t, 3, p.calls)
		errutil.AssertErrorCode(t, err, "STORE_CONNECT_FAILED")
		errutil.AssertErrorContext(t, err, "operation", "ping")
	})

	t.Run("zero attempts still pings once", func(t *testing.T) {
		p := &flakyPinger{}
		require.NoError(t, waitForPing(ctx, p, 0, time.Millisecond))
		assert.Equal(t, 1, p.calls)
	})

	t.Run("stops when context is cancelled", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		p := &flakyPinger{failures: 10}
		err := waitForPing(cancelled, p, 5, time.Hour)
		require.Error(t, err)
		assert.LessOrEqual(t, p.calls, 1)
	})
}

func TestOpen_InvalidDSN(t *testing.T) {
	_, err := Open(context.Background(), "postgres://%zz")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "STORE_INVALID_DSN")
}
