package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	s, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(s.Close)

	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisStore(client), s
}

func TestRedisStore_GetSetDelete(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	_, ok, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "slots:2025-11-15", `[{"id":"slot_0"}]`, time.Minute))

	val, ok, err := store.Get(ctx, "slots:2025-11-15")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `[{"id":"slot_0"}]`, val)

	require.NoError(t, store.Delete(ctx, "slots:2025-11-15"))
	_, ok, err = store.Get(ctx, "slots:2025-11-15")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStore_TTLExpiry(t *testing.T) {
	store, s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", "v", 30*time.Second))
	s.FastForward(31 * time.Second)

	_, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStore_DeleteByPrefix(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "slots:2025-11-15", "a", time.Minute))
	require.NoError(t, store.Set(ctx, "slots:2025-11-15:FITTING", "b", time.Minute))
	require.NoError(t, store.Set(ctx, "slots:2025-11-16", "c", time.Minute))

	require.NoError(t, store.DeleteByPrefix(ctx, "slots:2025-11-15"))

	_, ok, _ := store.Get(ctx, "slots:2025-11-15")
	assert.False(t, ok)
	_, ok, _ = store.Get(ctx, "slots:2025-11-15:FITTING")
	assert.False(t, ok)
	_, ok, _ = store.Get(ctx, "slots:2025-11-16")
	assert.True(t, ok, "other dates must survive prefix invalidation")
}

func TestRedisStore_LockMutualExclusion(t *testing.T) {
	store, s := newTestStore(t)
	ctx := context.Background()

	ok, err := store.Lock(ctx, "slot:lock:2025-11-15:14:00", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Lock(ctx, "slot:lock:2025-11-15:14:00", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second lock attempt must fail while held")

	require.NoError(t, store.Unlock(ctx, "slot:lock:2025-11-15:14:00"))
	ok, err = store.Lock(ctx, "slot:lock:2025-11-15:14:00", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "lock must be re-acquirable after unlock")

	// Lease expiry frees the slot if the holder never unlocks.
	s.FastForward(61 * time.Second)
	ok, err = store.Lock(ctx, "slot:lock:2025-11-15:14:00", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}
