package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/madspark/madspark/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryExecutorSucceedsAfterTransientFailures(t *testing.T) {
	executor := NewRetryExecutor(&RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  time.Millisecond,
		MaxDelay:      10 * time.Millisecond,
		BackoffFactor: 2.0,
	})

	attempts := 0
	err := executor.Execute(context.Background(), "flaky", func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryExecutorExhaustsAttempts(t *testing.T) {
	executor := NewRetryExecutor(&RetryConfig{
		MaxAttempts:   2,
		InitialDelay:  time.Millisecond,
		MaxDelay:      5 * time.Millisecond,
		BackoffFactor: 2.0,
	})

	attempts := 0
	err := executor.Execute(context.Background(), "always-fails", func() error {
		attempts++
		return errors.New("persistent")
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrMaxRetriesExceeded)
	assert.Equal(t, 2, attempts)
}

func TestRetryExecutorRespectsContextCancellation(t *testing.T) {
	executor := NewRetryExecutor(&RetryConfig{
		MaxAttempts:   5,
		InitialDelay:  50 * time.Millisecond,
		MaxDelay:      time.Second,
		BackoffFactor: 2.0,
	})

	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := executor.Execute(ctx, "canceled", func() error {
		attempts++
		if attempts == 1 {
			cancel()
		}
		return errors.New("fail")
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
