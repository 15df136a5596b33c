package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewFromRedis(rdb, ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})), mr
}

func TestClient_GetSet(t *testing.T) {
	client, mr := newTestClient(t)
	ctx := context.Background()

	_, err := client.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, client.Set(ctx, "europace:token", "abc", time.Minute))
	value, err := client.Get(ctx, "europace:token")
	require.NoError(t, err)
	assert.Equal(t, "abc", value)

	mr.FastForward(2 * time.Minute)
	_, err = client.Get(ctx, "europace:token")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocker(t *testing.T) {
	client, _ := newTestClient(t)
	locker := NewLocker(client, "")
	ctx := context.Background()

	lock, err := locker.Acquire(ctx, "tenant-1", time.Minute)
	require.NoError(t, err)

	_, err = locker.Acquire(ctx, "tenant-1", time.Minute)
	assert.ErrorIs(t, err, ErrLockNotAcquired)

	_, err = locker.TryAcquire(ctx, "tenant-1", time.Minute, 30*time.Millisecond)
	assert.ErrorIs(t, err, ErrLockNotAcquired)

	require.NoError(t, lock.Release(ctx))
	assert.ErrorIs(t, lock.Release(ctx), ErrLockNotHeld)
}

func TestLocker_WithLock(t *testing.T) {
	client, mr := newTestClient(t)
	locker := NewLocker(client, "matches:")
	ctx := context.Background()

	ran := false
	err := locker.WithLock(ctx, "tenant-1", time.Minute, time.Second, func(ctx context.Context) error {
		ran = true
		assert.True(t, mr.Exists("matches:tenant-1"))
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
	assert.False(t, mr.Exists("matches:tenant-1"))

	boom := errors.New("boom")
	assert.ErrorIs(t, locker.WithLock(ctx, "tenant-1", time.Minute, time.Second, func(context.Context) error { return boom }), boom)
	assert.False(t, mr.Exists("matches:tenant-1"))
}

func TestLock_Extend(t *testing.T) {
	client, mr := newTestClient(t)
	locker := NewLocker(client, "")
	ctx := context.Background()

	lock, err := locker.Acquire(ctx, "tenant-1", time.Second)
	require.NoError(t, err)
	require.NoError(t, lock.Extend(ctx, time.Minute))
	assert.Equal(t, time.Minute, mr.TTL("lock:tenant-1"))

	mr.FastForward(2 * time.Minute)
	assert.ErrorIs(t, lock.Extend(ctx, time.Minute), ErrLockNotHeld)
}

func TestLocker_WithLock_ReleasesAfterCancel(t *testing.T) {
	client, mr := newTestClient(t)
	locker := NewLocker(client, "")
	ctx, cancel := context.WithCancel(context.Background())

	err := locker.WithLock(ctx, "tenant-1", time.Minute, time.Second, func(ctx context.Context) error {
		cancel()
		return ctx.Err()
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, mr.Exists("lock:tenant-1"))
}
