// utils/retry.go
package utils

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
)

// ErrRetryExhausted is returned when every attempt ran without success.
var ErrRetryExhausted = errors.New("retry attempts exhausted")

// RetryPolicy bounds how often and how long an operation is retried.
// The zero Clock means the real clock.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
	// Deadline caps the total time spent, measured on Clock. Zero means no cap.
	Deadline time.Duration
	Clock    clockwork.Clock
}

// Attempt reports whether the operation finished. A non-nil error with done
// set aborts immediately; with done unset the error is remembered and retried.
type Attempt func(ctx context.Context, n int) (done bool, err error)

// Do runs fn until it reports done, attempts run out, the deadline passes or
// ctx is cancelled. Between attempts it waits Delay on the policy clock.
func (p RetryPolicy) Do(ctx context.Context, fn Attempt) error {
	clock := p.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	start := clock.Now()
	var lastErr error
	for n := 1; n <= attempts; n++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		done, err := fn(ctx, n)
		if done {
			return err
		}
		if err != nil {
			lastErr = err
		}

		if n == attempts {
			break
		}
		if p.Deadline > 0 && clock.Since(start)+p.Delay > p.Deadline {
			break
		}
		if p.Delay > 0 {
			select {
			case <-clock.After(p.Delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	if lastErr != nil {
		return fmt.Errorf("%w: %w", ErrRetryExhausted, lastErr)
	}
	return ErrRetryExhausted
}
