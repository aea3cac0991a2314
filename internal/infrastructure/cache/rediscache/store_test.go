package rediscache

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T) (*miniredis.Miniredis, *Store) {
	t.Helper()
	mr := miniredis.RunT(t)
	store, err := Open(context.Background(), Config{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return mr, store
}

func TestStore_GetMissingKey(t *testing.T) {
	_, store := setupStore(t)

	value, ok, err := store.Get(context.Background(), "absent")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, value)
}

func TestStore_SetWithTTLExpires(t *testing.T) {
	mr, store := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.SetWithTTL(ctx, "k", `{"answer":"hi"}`, 30*time.Second))

	value, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"answer":"hi"}`, value)

	ttl, err := store.TTL(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, ttl)

	mr.FastForward(31 * time.Second)
	_, ok, err = store.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_KeysAndDelete(t *testing.T) {
	mr, store := setupStore(t)
	ctx := context.Background()

	for _, key := range []string{"app:query:en:a", "app:query:zh:b", "app:metrics"} {
		require.NoError(t, mr.Set(key, "v"))
	}

	keys, err := store.Keys(ctx, "app:query:*")
	require.NoError(t, err)
	sort.Strings(keys)
	assert.Equal(t, []string{"app:query:en:a", "app:query:zh:b"}, keys)

	n, err := store.Delete(ctx, keys...)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.True(t, mr.Exists("app:metrics"))

	n, err = store.Delete(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestStore_HashCounters(t *testing.T) {
	_, store := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.HashIncrement(ctx, "metrics", "hits", 1))
	require.NoError(t, store.HashIncrement(ctx, "metrics", "hits", 2))
	require.NoError(t, store.HashIncrement(ctx, "metrics", "misses", 1))

	values, err := store.HashGetAll(ctx, "metrics")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"hits": "3", "misses": "1"}, values)

	values, err = store.HashGetAll(ctx, "nothing")
	require.NoError(t, err)
	assert.Empty(t, values)
}

func TestStore_TTLForKeyWithoutExpiry(t *testing.T) {
	mr, store := setupStore(t)
	require.NoError(t, mr.Set("persistent", "v"))

	ttl, err := store.TTL(context.Background(), "persistent")
	require.NoError(t, err)
	assert.Less(t, ttl, time.Duration(0))
}

func TestStore_ErrorsWhenServerGone(t *testing.T) {
	mr := miniredis.RunT(t)
	store := New(redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1}))
	mr.Close()

	_, _, err := store.Get(context.Background(), "k")
	assert.ErrorContains(t, err, "redis get")
}

func TestParseInfo(t *testing.T) {
	raw := "# Memory\r\nused_memory:1048576\r\nused_memory_human:1.00M\r\n\r\nmaxmemory:0\r\n"
	info := parseInfo(raw)
	assert.Equal(t, "1048576", info["used_memory"])
	assert.Equal(t, "1.00M", info["used_memory_human"])
	assert.Equal(t, "0", info["maxmemory"])
	assert.NotContains(t, info, "# Memory")
}
