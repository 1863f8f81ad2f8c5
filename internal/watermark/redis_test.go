package watermark

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	store, err := NewRedisStore(context.Background(), "redis://"+mr.Addr(), "test:cursor")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func TestRedisStore(t *testing.T) {
	t.Parallel()
	store, _ := newTestRedisStore(t)
	runStoreContract(t, store)
}

func TestRedisStore_KeyLayout(t *testing.T) {
	t.Parallel()
	store, mr := newTestRedisStore(t)

	cursor := time.Date(2024, 1, 1, 0, 15, 0, 0, time.UTC)
	require.NoError(t, store.Set(context.Background(), "orders", cursor))

	raw, err := mr.Get("test:cursor:orders")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01T00:15:00Z", raw)
	assert.Zero(t, mr.TTL("test:cursor:orders"), "cursor keys must not expire")
}

func TestRedisStore_NeverMovesBackward(t *testing.T) {
	t.Parallel()
	store, _ := newTestRedisStore(t)
	ctx := context.Background()

	later := time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC)
	require.NoError(t, store.Set(ctx, "orders", later))
	require.NoError(t, store.Set(ctx, "orders", later.Add(-time.Hour)))
	require.NoError(t, store.Set(ctx, "orders", later))

	got, ok, err := store.Get(ctx, "orders")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, got.Equal(later), "cursor moved backward to %s", got)
}

func TestRedisStore_CorruptValue(t *testing.T) {
	t.Parallel()
	store, mr := newTestRedisStore(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("test:cursor:orders", "not a timestamp"))

	_, _, err := store.Get(ctx, "orders")
	require.ErrorIs(t, err, ErrStoreFailure)

	// A commit replaces the unreadable value.
	cursor := time.Date(2024, 1, 1, 0, 15, 0, 0, time.UTC)
	require.NoError(t, store.Set(ctx, "orders", cursor))
	got, ok, err := store.Get(ctx, "orders")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, got.Equal(cursor))
}

func TestRedisStore_ServerDown(t *testing.T) {
	t.Parallel()
	store, mr := newTestRedisStore(t)
	mr.Close()

	ctx := context.Background()
	_, _, err := store.Get(ctx, "orders")
	require.ErrorIs(t, err, ErrStoreFailure)
	require.ErrorIs(t, store.Set(ctx, "orders", time.Now()), ErrStoreFailure)
}

func TestNewRedisStore_Errors(t *testing.T) {
	t.Parallel()

	_, err := NewRedisStore(context.Background(), "not-a-url", "")
	require.ErrorIs(t, err, ErrStoreFailure)

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	_, err = NewRedisStore(context.Background(), "redis://"+addr, "")
	require.ErrorIs(t, err, ErrStoreFailure)
}

func TestNewRedisStoreFromClient_DefaultPrefix(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStoreFromClient(client, "")
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Set(context.Background(), "orders", time.Unix(0, 0)))
	assert.True(t, mr.Exists(DefaultRedisKeyPrefix+":orders"))
}
