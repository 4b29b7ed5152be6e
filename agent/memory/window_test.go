package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exchange(i int) Exchange {
	return Exchange{Input: fmt.Sprintf("q%d", i), Output: fmt.Sprintf("a%d", i)}
}

func TestWindow_FIFOEviction(t *testing.T) {
	w := NewWindow(5)
	ctx := context.Background()
	for i := 1; i <= 6; i++ {
		require.NoError(t, w.Append(ctx, exchange(i)))
	}

	snap := w.Snapshot()
	require.Len(t, snap, 5)
	assert.Equal(t, "q2", snap[0].Input, "first exchange is evicted")
	assert.Equal(t, "q6", snap[4].Input)
	assert.False(t, snap[0].CreatedAt.IsZero())
}

func TestWindow_DefaultK(t *testing.T) {
	assert.Equal(t, DefaultWindowSize, NewWindow(0).K())
	assert.Equal(t, 3, NewWindow(3).K())
}

func TestWindow_SnapshotIsolated(t *testing.T) {
	w := NewWindow(2)
	ctx := context.Background()
	require.NoError(t, w.Append(ctx, exchange(1)))

	snap := w.Snapshot()
	require.NoError(t, w.Append(ctx, exchange(2)))
	snap[0].Output = "mutated"

	assert.Len(t, snap, 1, "snapshot taken at start does not see later appends")
	assert.Equal(t, "a1", w.Snapshot()[0].Output)
}

func TestWindow_ConcurrentAppend(t *testing.T) {
	w := NewWindow(5)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = w.Append(ctx, exchange(i))
			_ = w.Snapshot()
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 5, w.Len())
}

// slowStore delays early exchanges longer so unordered writers would
// overtake each other.
type slowStore struct {
	*InMemoryStore
	n int
}

func (s *slowStore) Append(ctx context.Context, id string, ex Exchange, keep int) error {
	var i int
	_, _ = fmt.Sscanf(ex.Input, "q%d", &i)
	time.Sleep(time.Duration(s.n-i) * time.Millisecond)
	return s.InMemoryStore.Append(ctx, id, ex, keep)
}

func TestWindow_ConcurrentAppendPersistsInWindowOrder(t *testing.T) {
	const n = 20
	store := &slowStore{InMemoryStore: NewInMemoryStore(), n: n}
	w := NewWindow(n, WithStore(store, "s1"))
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, w.Append(ctx, exchange(i)))
		}(i)
	}
	wg.Wait()

	stored, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	snap := w.Snapshot()
	require.Len(t, stored, n)
	for i := range snap {
		assert.Equal(t, snap[i].Input, stored[i].Input, "position %d", i)
	}
}

func TestWindow_PersistsToStore(t *testing.T) {
	store := NewInMemoryStore()
	w := NewWindow(2, WithStore(store, "s1"))
	ctx := context.Background()
	for i := 1; i <= 3; i++ {
		require.NoError(t, w.Append(ctx, exchange(i)))
	}

	stored, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, "q2", stored[0].Input)
	assert.Equal(t, "q3", stored[1].Input)
}

func TestWindow_StoreFailureKeepsMemory(t *testing.T) {
	store := NewInMemoryStore()
	w := NewWindow(2, WithStore(store, "s1"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := w.Append(ctx, exchange(1))
	require.Error(t, err)
	assert.Equal(t, 1, w.Len())
}

func TestRenderHistory(t *testing.T) {
	got := RenderHistory([]Exchange{
		{Input: "draw a sunset", Output: "https://img.example/s.png", Tools: []ToolTrace{
			{Tool: "Image Generator", Input: "sunset", Observation: "https://img.example/s.png"},
		}},
		{Input: "thanks", Output: "You're welcome!"},
	})
	want := "Human: draw a sunset\n" +
		"Tool Image Generator -> https://img.example/s.png\n" +
		"AI: https://img.example/s.png\n" +
		"Human: thanks\n" +
		"AI: You're welcome!"
	assert.Equal(t, want, got)
	assert.Equal(t, "", RenderHistory(nil))
}
