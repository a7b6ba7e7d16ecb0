package executor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunCollectsResultsInOrder(t *testing.T) {
	e := New(2, 8, nil)
	results, errs, canceled := Run(context.Background(), e, 5, func(ctx context.Context, i int) (int, error) {
		return i * 2, nil
	})
	require.False(t, canceled)
	for _, err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, []int{0, 2, 4, 6, 8}, results)
}

func TestRunIsolatesPerIndexErrors(t *testing.T) {
	e := New(2, 8, nil)
	_, errs, _ := Run(context.Background(), e, 3, func(ctx context.Context, i int) (int, error) {
		if i == 1 {
			return 0, errors.New("boom")
		}
		return i, nil
	})
	require.NoError(t, errs[0])
	require.Error(t, errs[1])
	require.NoError(t, errs[2])
}

func TestRunRecoversPanic(t *testing.T) {
	e := New(2, 8, nil)
	_, errs, _ := Run(context.Background(), e, 2, func(ctx context.Context, i int) (int, error) {
		if i == 0 {
			panic("kaboom")
		}
		return i, nil
	})
	require.Error(t, errs[0])
	require.NoError(t, errs[1])
}

func TestRunRespectsConcurrencyBound(t *testing.T) {
	e := New(2, 8, nil)
	var inFlight, maxInFlight int32
	_, _, _ = Run(context.Background(), e, 10, func(ctx context.Context, i int) (int, error) {
		cur := atomic.AddInt32(&inFlight, 1)
		for {
			max := atomic.LoadInt32(&maxInFlight)
			if cur <= max || atomic.CompareAndSwapInt32(&maxInFlight, max, cur) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return i, nil
	})
	assert.LessOrEqual(t, int(atomic.LoadInt32(&maxInFlight)), 2)
}

func TestRunStopsSchedulingAfterCancellation(t *testing.T) {
	e := New(2, 8, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, errs, canceled := Run(ctx, e, 3, func(ctx context.Context, i int) (int, error) {
		return i, nil
	})
	assert.True(t, canceled)
	for _, err := range errs {
		assert.Error(t, err)
	}
}

func TestEmitDropsOldestOnOverflow(t *testing.T) {
	e := New(1, 1, nil)
	e.Emit("s1", 0.1, "first")
	e.Emit("s2", 0.2, "second") // buffer full (cap 1); should drop "first"

	evt := <-e.Progress()
	assert.Equal(t, "s2", evt.Stage)
	assert.Equal(t, int64(1), e.DroppedEvents())
}
