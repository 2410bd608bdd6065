package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	s, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{
		Addr: s.Addr(),
	})

	t.Cleanup(func() {
		client.Close()
		s.Close()
	})

	return client, s
}

func TestRedisService(t *testing.T) {
	client, mr := setupRedis(t)
	ctx := context.Background()

	t.Run("AcquireRelease", func(t *testing.T) {
		svc := NewRedisService(client)

		ok, err := svc.Acquire(ctx, "sweep:outbox", time.Minute)
		assert.NoError(t, err)
		assert.True(t, ok)

		held, err := svc.IsHeld(ctx, "sweep:outbox")
		assert.NoError(t, err)
		assert.True(t, held)

		err = svc.Release(ctx, "sweep:outbox")
		assert.NoError(t, err)

		held, err = svc.IsHeld(ctx, "sweep:outbox")
		assert.NoError(t, err)
		assert.False(t, held)
	})

	t.Run("Contention", func(t *testing.T) {
		svc1 := NewRedisService(client)
		svc2 := NewRedisService(client)

		ok, err := svc1.Acquire(ctx, "sweep:auto-cancel", time.Minute)
		require.NoError(t, err)
		require.True(t, ok)

		// Second instance must not get the lock
		ok, err = svc2.Acquire(ctx, "sweep:auto-cancel", time.Minute)
		assert.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, svc1.Release(ctx, "sweep:auto-cancel"))

		ok, err = svc2.Acquire(ctx, "sweep:auto-cancel", time.Minute)
		assert.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("ReleaseWithoutAcquire", func(t *testing.T) {
		svc := NewRedisService(client)
		err := svc.Release(ctx, "sweep:never-acquired")
		assert.ErrorIs(t, err, ErrNotHeld)
	})

	t.Run("TTLExpiryAllowsTakeover", func(t *testing.T) {
		svc1 := NewRedisService(client)
		svc2 := NewRedisService(client)

		ok, err := svc1.Acquire(ctx, "sweep:sla", 50*time.Millisecond)
		require.NoError(t, err)
		require.True(t, ok)

		mr.FastForward(100 * time.Millisecond)

		// Crashed-holder scenario: the lock expired, another instance
		// may take it, and the original release reports ErrNotHeld.
		ok, err = svc2.Acquire(ctx, "sweep:sla", time.Minute)
		assert.NoError(t, err)
		assert.True(t, ok)

		err = svc1.Release(ctx, "sweep:sla")
		assert.ErrorIs(t, err, ErrNotHeld)
	})

	t.Run("Extend", func(t *testing.T) {
		svc := NewRedisService(client)

		ok, err := svc.Acquire(ctx, "sweep:idempotency", time.Minute)
		require.NoError(t, err)
		require.True(t, ok)

		assert.NoError(t, svc.Extend(ctx, "sweep:idempotency", 2*time.Minute))
		assert.NoError(t, svc.Release(ctx, "sweep:idempotency"))

		assert.ErrorIs(t, svc.Extend(ctx, "sweep:idempotency", time.Minute), ErrNotHeld)
	})
}

func TestMemoryService(t *testing.T) {
	ctx := context.Background()
	svc := NewMemoryService()

	ok, err := svc.Acquire(ctx, "job", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = svc.Acquire(ctx, "job", time.Minute)
	assert.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, svc.Release(ctx, "job"))

	ok, err = svc.Acquire(ctx, "job", time.Minute)
	assert.NoError(t, err)
	assert.True(t, ok)
}
