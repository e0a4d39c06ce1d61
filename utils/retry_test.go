package utils

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

func TestRetryPolicy_SucceedsOnThirdAttempt(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 5}

	calls := 0
	err := p.Do(context.Background(), func(ctx context.Context, n int) (bool, error) {
		calls++
		return n == 3, nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
}

func TestRetryPolicy_ExhaustedKeepsLastError(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 3}
	boom := errors.New("provider down")

	err := p.Do(context.Background(), func(ctx context.Context, n int) (bool, error) {
		return false, boom
	})
	require.ErrorIs(t, err, ErrRetryExhausted)
	require.ErrorIs(t, err, boom)
}

func TestRetryPolicy_DoneWithErrorStopsImmediately(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 10}
	fatal := errors.New("bad template")

	calls := 0
	err := p.Do(context.Background(), func(ctx context.Context, n int) (bool, error) {
		calls++
		return true, fatal
	})
	require.ErrorIs(t, err, fatal)
	require.NotErrorIs(t, err, ErrRetryExhausted)
	require.Equal(t, 1, calls)
}

func TestRetryPolicy_WaitsOnFakeClock(t *testing.T) {
	clock := clockwork.NewFakeClock()
	p := RetryPolicy{MaxAttempts: 10, Delay: time.Second, Clock: clock}

	var calls atomic.Int32
	result := make(chan error, 1)
	go func() {
		result <- p.Do(context.Background(), func(ctx context.Context, n int) (bool, error) {
			calls.Add(1)
			return false, nil
		})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i := 0; i < 9; i++ {
		require.NoError(t, clock.BlockUntilContext(ctx, 1))
		clock.Advance(time.Second)
	}

	select {
	case err := <-result:
		require.ErrorIs(t, err, ErrRetryExhausted)
	case <-ctx.Done():
		t.Fatal("retry loop did not finish")
	}
	require.EqualValues(t, 10, calls.Load())
}

func TestRetryPolicy_DeadlineCutsAttemptsShort(t *testing.T) {
	clock := clockwork.NewFakeClock()
	p := RetryPolicy{MaxAttempts: 10, Delay: time.Second, Deadline: 3 * time.Second, Clock: clock}

	var calls atomic.Int32
	result := make(chan error, 1)
	go func() {
		result <- p.Do(context.Background(), func(ctx context.Context, n int) (bool, error) {
			calls.Add(1)
			return false, nil
		})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i := 0; i < 3; i++ {
		require.NoError(t, clock.BlockUntilContext(ctx, 1))
		clock.Advance(time.Second)
	}

	select {
	case err := <-result:
		require.ErrorIs(t, err, ErrRetryExhausted)
	case <-ctx.Done():
		t.Fatal("retry loop did not respect the deadline")
	}
	require.EqualValues(t, 4, calls.Load())
}

func TestRetryPolicy_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := RetryPolicy{MaxAttempts: 3}.Do(ctx, func(ctx context.Context, n int) (bool, error) {
		t.Fatal("must not run")
		return false, nil
	})
	require.ErrorIs(t, err, context.Canceled)
}
