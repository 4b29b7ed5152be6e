package config

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, path, body string, mod time.Time) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	require.NoError(t, os.Chtimes(path, mod, mod))
}

func TestNewReloader_RequiresPath(t *testing.T) {
	_, err := NewReloader(NewLoader(), DefaultConfig())
	assert.Error(t, err)
}

func TestReloader_Reload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, "agent:\n  max_iterations: 4\n", time.Now().Add(-time.Hour))

	loader := NewLoader().WithConfigPath(path)
	initial, err := loader.Load()
	require.NoError(t, err)

	r, err := NewReloader(loader, initial)
	require.NoError(t, err)

	var gotOld, gotNew int
	r.OnReload(func(old, new *Config) {
		gotOld, gotNew = old.Agent.MaxIterations, new.Agent.MaxIterations
	})

	writeConfig(t, path, "agent:\n  max_iterations: 7\n", time.Now())
	require.True(t, r.changed())
	require.False(t, r.changed())
	require.NoError(t, r.Reload())

	assert.Equal(t, 4, gotOld)
	assert.Equal(t, 7, gotNew)
	assert.Equal(t, 7, r.Current().Agent.MaxIterations)
}

func TestReloader_RejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, "agent:\n  max_iterations: 4\n", time.Now())

	loader := NewLoader().WithConfigPath(path)
	initial, err := loader.Load()
	require.NoError(t, err)
	r, err := NewReloader(loader, initial)
	require.NoError(t, err)

	var calls int32
	r.OnReload(func(_, _ *Config) { atomic.AddInt32(&calls, 1) })

	writeConfig(t, path, "agent:\n  max_iterations: 0\n", time.Now().Add(time.Second))
	require.Error(t, r.Reload())
	assert.Equal(t, 4, r.Current().Agent.MaxIterations)
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestReloader_PollLoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, "agent:\n  max_iterations: 4\n", time.Now().Add(-time.Hour))

	loader := NewLoader().WithConfigPath(path)
	initial, err := loader.Load()
	require.NoError(t, err)
	r, err := NewReloader(loader, initial, WithPollInterval(10*time.Millisecond))
	require.NoError(t, err)

	reloaded := make(chan int, 1)
	r.OnReload(func(_, new *Config) { reloaded <- new.Agent.MaxIterations })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, r.Start(ctx))
	defer r.Stop()
	assert.Error(t, r.Start(ctx))

	writeConfig(t, path, "agent:\n  max_iterations: 9\n", time.Now())

	select {
	case n := <-reloaded:
		assert.Equal(t, 9, n)
	case <-time.After(2 * time.Second):
		t.Fatal("reload not observed")
	}
}
