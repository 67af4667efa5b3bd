// Package waiter synchronizes with an asynchronous UI by polling conditions
// against per-call deadlines.
package waiter

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/xkilldash9x/bolt/internal/clock"
	"github.com/xkilldash9x/bolt/internal/driver"
)

var (
	ErrInvalidTimeout  = errors.New("timeout must be positive")
	ErrInvalidInterval = errors.New("poll interval must be positive")
)

// TimeoutError reports a condition that did not hold before its deadline.
type TimeoutError struct {
	Condition Condition
	Target    string
	Timeout   time.Duration
	Elapsed   time.Duration
	// Last is the most recent transient error seen while polling, if any.
	Last  error
	stack driver.Stack
}

func (e *TimeoutError) Error() string {
	msg := fmt.Sprintf("timed out after %s waiting for %s", e.Elapsed, e.Condition)
	if e.Target != "" {
		msg = fmt.Sprintf("timed out after %s waiting for %s to be %s", e.Elapsed, e.Target, e.Condition)
	}
	if e.Last != nil {
		msg += " (last error: " + e.Last.Error() + ")"
	}
	return msg
}

func (e *TimeoutError) Kind() driver.ErrorKind { return driver.KindTimeout }
func (e *TimeoutError) Unwrap() error          { return e.Last }

// StackFrames returns where the wait was issued.
func (e *TimeoutError) StackFrames() []runtime.Frame { return e.stack.Frames() }

// PollUntil evaluates fn immediately and then every interval until fn reports
// done, returns a non-transient error, or timeout elapses. Stale references and
// missing elements count as "not yet". The last evaluation happens at or after
// the deadline, never before, and a sleep never overshoots the deadline.
func PollUntil[T any](ctx context.Context, clk clock.Clock, interval, timeout time.Duration, fn func(ctx context.Context) (T, bool, error)) (T, error) {
	var zero T
	if timeout <= 0 {
		return zero, fmt.Errorf("%w: %s", ErrInvalidTimeout, timeout)
	}
	if interval <= 0 {
		return zero, fmt.Errorf("%w: %s", ErrInvalidInterval, interval)
	}

	start := clk.Now()
	deadline := start.Add(timeout)
	var last error
	for {
		v, done, err := fn(ctx)
		switch {
		case err != nil && !driver.IsTransient(err):
			return zero, err
		case err != nil:
			last = err
		case done:
			return v, nil
		}

		now := clk.Now()
		if !now.Before(deadline) {
			return zero, &TimeoutError{
				Timeout: timeout,
				Elapsed: now.Sub(start),
				Last:    last,
				stack:   driver.CaptureStack(1),
			}
		}

		wait := interval
		if remaining := deadline.Sub(now); remaining < wait {
			wait = remaining
		}
		if err := clk.Sleep(ctx, wait); err != nil {
			return zero, err
		}
	}
}
