package utils

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestLease_ExclusiveUntilReleased(t *testing.T) {
	_, rdb := newTestRedis(t)
	ctx := context.Background()

	ok, err := AcquireLease(ctx, rdb, "lease:call_sync", "owner-a", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = AcquireLease(ctx, rdb, "lease:call_sync", "owner-b", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second owner must not acquire a held lease")

	released, err := ReleaseLease(ctx, rdb, "lease:call_sync", "owner-b")
	require.NoError(t, err)
	assert.False(t, released, "foreign owner must not release the lease")

	released, err = ReleaseLease(ctx, rdb, "lease:call_sync", "owner-a")
	require.NoError(t, err)
	assert.True(t, released)

	ok, err = AcquireLease(ctx, rdb, "lease:call_sync", "owner-b", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLease_ExpiresAfterTTL(t *testing.T) {
	mr, rdb := newTestRedis(t)
	ctx := context.Background()

	ok, err := AcquireLease(ctx, rdb, "lease:rollup", "owner-a", 30*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(31 * time.Second)

	ok, err = AcquireLease(ctx, rdb, "lease:rollup", "owner-b", 30*time.Second)
	require.NoError(t, err)
	assert.True(t, ok, "expired lease must be reclaimable")
}

func TestLease_RejectsBadInput(t *testing.T) {
	_, rdb := newTestRedis(t)
	ctx := context.Background()

	_, err := AcquireLease(ctx, rdb, "", "owner", time.Minute)
	assert.Error(t, err)
	_, err = AcquireLease(ctx, rdb, "k", "owner", 0)
	assert.Error(t, err)
	_, err = AcquireLease(ctx, nil, "k", "owner", time.Minute)
	assert.Error(t, err)
}
