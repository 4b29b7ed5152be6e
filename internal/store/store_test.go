package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/BaSui01/agentloop/agent"
	"github.com/BaSui01/agentloop/config"
	"github.com/BaSui01/agentloop/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) *RunStore {
	t.Helper()
	pool, err := database.Open(config.DatabaseConfig{
		Driver: "sqlite",
		Name:   filepath.Join(t.TempDir(), "runs.db"),
	}, zap.NewNop())
	require.NoError(t, err)
	s, err := New(pool, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleRecord(id, session string, started time.Time) agent.RunRecord {
	return agent.RunRecord{
		RunID:       id,
		SessionID:   session,
		Input:       "draw a cat",
		Output:      "https://img.example/cat.png",
		Termination: agent.TerminationFinalAnswer,
		Iterations:  1,
		Steps: []agent.StepRecord{{
			Index:       0,
			Kind:        agent.KindAction,
			Tool:        "Image Generator",
			ToolInput:   "a cat",
			Log:         "Thought: Do I need to use a tool? Yes\nAction: Image Generator\nAction Input: a cat",
			Observation: "https://img.example/cat.png",
			Success:     true,
		}},
		StartedAt: started,
		Duration:  1500 * time.Millisecond,
	}
}

func TestNew_NilPool(t *testing.T) {
	_, err := New(nil, nil)
	assert.Error(t, err)
}

func TestRunStore_RecordAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	started := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	require.NoError(t, s.RecordRun(ctx, sampleRecord("run-1", "s1", started)))

	got, err := s.Get(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, "s1", got.SessionID)
	assert.Equal(t, "draw a cat", got.Input)
	assert.Equal(t, agent.TerminationFinalAnswer, got.Termination)
	assert.Equal(t, 1, got.Iterations)
	assert.Equal(t, 1500*time.Millisecond, got.Duration)
	assert.True(t, got.StartedAt.Equal(started))
	require.Len(t, got.Steps, 1)
	assert.Equal(t, "Image Generator", got.Steps[0].Tool)
	assert.True(t, got.Steps[0].Success)
}

func TestRunStore_GetUnknown(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestRunStore_DuplicateRunID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	rec := sampleRecord("dup", "s1", time.Now())

	require.NoError(t, s.RecordRun(ctx, rec))
	assert.Error(t, s.RecordRun(ctx, rec))
}

func TestRunStore_AbortedRunWithoutSteps(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordRun(ctx, agent.RunRecord{
		RunID:       "aborted",
		Input:       "hi",
		Termination: agent.TerminationAborted,
		StartedAt:   time.Now(),
	}))
	got, err := s.Get(ctx, "aborted")
	require.NoError(t, err)
	assert.Equal(t, agent.TerminationAborted, got.Termination)
	assert.Empty(t, got.Output)
	assert.NotNil(t, got.Steps)
	assert.Empty(t, got.Steps)
}

func TestRunStore_ListBySession(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.RecordRun(ctx, sampleRecord(fmt.Sprintf("a-%d", i), "alpha", base.Add(time.Duration(i)*time.Minute))))
	}
	require.NoError(t, s.RecordRun(ctx, sampleRecord("b-0", "beta", base)))

	runs, err := s.ListBySession(ctx, "alpha", 0)
	require.NoError(t, err)
	require.Len(t, runs, 5)
	assert.Equal(t, "a-4", runs[0].RunID, "newest first")
	assert.Equal(t, "a-0", runs[4].RunID)

	runs, err = s.ListBySession(ctx, "alpha", 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "a-3", runs[1].RunID)

	runs, err = s.ListBySession(ctx, "nobody", 10)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestRunStore_AsRecorder(t *testing.T) {
	var _ agent.RunRecorder = (*RunStore)(nil)

	s := newTestStore(t)
	require.NoError(t, s.Ping(context.Background()))
}
