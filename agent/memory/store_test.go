package memory

import (
	"context"
	"testing"
	"time"

	"github.com/BaSui01/agentloop/internal/cache"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newRedisStore(t *testing.T) (*miniredis.Miniredis, *RedisStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	mgr, err := cache.NewManager(cache.Config{Addr: mr.Addr()}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = mgr.Close() })
	return mr, NewRedisStore(mgr, "test:mem:", time.Hour, zap.NewNop())
}

func TestRedisStore_AppendLoadTrim(t *testing.T) {
	mr, store := newRedisStore(t)
	ctx := context.Background()

	for i := 1; i <= 4; i++ {
		require.NoError(t, store.Append(ctx, "s1", exchange(i), 3))
	}

	got, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "q2", got[0].Input)
	assert.Equal(t, "a4", got[2].Output)
	assert.Equal(t, time.Hour, mr.TTL("test:mem:s1"))

	require.NoError(t, store.Delete(ctx, "s1"))
	got, err = store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRedisStore_SkipsCorruptEntries(t *testing.T) {
	mr, store := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "s1", exchange(1), 5))
	_, err := mr.Push("test:mem:s1", "{not json")
	require.NoError(t, err)
	require.NoError(t, store.Append(ctx, "s1", exchange(2), 5))

	got, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "q1", got[0].Input)
	assert.Equal(t, "q2", got[1].Input)
}

func TestInMemoryStore(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()
	for i := 1; i <= 3; i++ {
		require.NoError(t, store.Append(ctx, "s", exchange(i), 2))
	}
	got, err := store.Load(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, []string{"q2", "q3"}, []string{got[0].Input, got[1].Input})

	require.NoError(t, store.Delete(ctx, "s"))
	got, err = store.Load(ctx, "s")
	require.NoError(t, err)
	assert.Empty(t, got)
}
