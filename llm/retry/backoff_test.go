package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/BaSui01/agentloop/llm"
	"github.com/BaSui01/agentloop/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func fastPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxRetries:   3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestBackoffRetryer_SuccessFirstTry(t *testing.T) {
	r := NewBackoffRetryer(fastPolicy(), zap.NewNop())
	calls := 0
	err := r.Do(context.Background(), func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestBackoffRetryer_RetriesTransient(t *testing.T) {
	var attempts []int
	policy := fastPolicy()
	policy.OnRetry = func(attempt int, err error, delay time.Duration) {
		attempts = append(attempts, attempt)
	}
	r := NewBackoffRetryer(policy, nil)

	calls := 0
	err := r.Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return &llm.Error{Code: llm.ErrRateLimited, Retryable: true}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, attempts)
}

func TestBackoffRetryer_StopsOnPermanent(t *testing.T) {
	r := NewBackoffRetryer(fastPolicy(), zap.NewNop())
	permanent := &llm.Error{Code: llm.ErrInvalidRequest}
	calls := 0
	err := r.Do(context.Background(), func() error {
		calls++
		return permanent
	})
	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestBackoffRetryer_Exhausted(t *testing.T) {
	r := NewBackoffRetryer(fastPolicy(), zap.NewNop())
	calls := 0
	err := r.Do(context.Background(), func() error {
		calls++
		return WrapRetryable(errors.New("flaky"))
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed after 3 retries")
	assert.Equal(t, 4, calls)
}

func TestBackoffRetryer_ContextCancelled(t *testing.T) {
	policy := fastPolicy()
	policy.InitialDelay = time.Second
	policy.MaxDelay = time.Second
	r := NewBackoffRetryer(policy, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := r.Do(ctx, func() error { return WrapRetryable(errors.New("flaky")) })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBackoffRetryer_DelayBounds(t *testing.T) {
	r := NewBackoffRetryer(&RetryPolicy{
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     40 * time.Millisecond,
		Multiplier:   2,
	}, nil).(*backoffRetryer)

	assert.Equal(t, 10*time.Millisecond, r.calculateDelay(1))
	assert.Equal(t, 20*time.Millisecond, r.calculateDelay(2))
	assert.Equal(t, 40*time.Millisecond, r.calculateDelay(3))
	assert.Equal(t, 40*time.Millisecond, r.calculateDelay(10))
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("x"), false},
		{"cancelled", context.Canceled, false},
		{"llm retryable", &llm.Error{Retryable: true}, true},
		{"llm permanent", &llm.Error{Retryable: false}, false},
		{"types retryable", types.NewError(types.ErrUpstreamError, "x").WithRetryable(true), true},
		{"wrapped", WrapRetryable(errors.New("x")), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestValue(t *testing.T) {
	r := NewBackoffRetryer(fastPolicy(), zap.NewNop())
	attempts := 0
	url, err := Value(context.Background(), r, func() (string, error) {
		attempts++
		if attempts == 1 {
			return "", WrapRetryable(errors.New("image backend busy"))
		}
		return "https://img.example/a.png", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "https://img.example/a.png", url)
	assert.Equal(t, 2, attempts)

	url, err = Value(context.Background(), r, func() (string, error) {
		return "ignored", errors.New("content policy violation")
	})
	assert.Error(t, err)
	assert.Empty(t, url, "failures return the zero value")
}
