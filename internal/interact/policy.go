// Package interact performs clicks and text entry against a UI that re-renders
// underneath the caller, retrying transient failures within fixed budgets and
// escalating to heavier recovery when a plain click keeps failing.
package interact

import (
	"context"
	"fmt"
	"time"

	"github.com/xkilldash9x/bolt/internal/driver"
)

// RetryPolicy bounds a retried interaction. Only errors whose kind is in
// Retryable trigger another attempt.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
	Retryable   []driver.ErrorKind
}

// interactionKinds is every failure class the driver reports for an element
// interaction.
var interactionKinds = []driver.ErrorKind{
	driver.KindStale,
	driver.KindNoSuchElement,
	driver.KindNotInteractable,
	driver.KindTimeout,
	driver.KindScript,
	driver.KindDriver,
}

func (p RetryPolicy) Validate() error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be at least 1, got %d", p.MaxAttempts)
	}
	if p.Backoff < 0 {
		return fmt.Errorf("backoff must not be negative, got %s", p.Backoff)
	}
	return nil
}

// retryable reports whether err earns another attempt. Context errors never do.
func (p RetryPolicy) retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil || !driver.IsDriverError(err) {
		return false
	}
	return driver.IsKind(err, p.Retryable...)
}

// OutcomeKind tags an Outcome.
type OutcomeKind int

const (
	Success OutcomeKind = iota
	RetriesExhausted
	NonRetryableFailure
)

func (k OutcomeKind) String() string {
	switch k {
	case Success:
		return "success"
	case RetriesExhausted:
		return "retries_exhausted"
	case NonRetryableFailure:
		return "non_retryable"
	default:
		return "unknown"
	}
}

// Outcome is the result of a retried interaction. Err is nil only for Success,
// and is the last attempt's error exactly as the driver returned it.
type Outcome struct {
	Kind     OutcomeKind
	Attempts int
	Err      error
}

func (o Outcome) OK() bool { return o.Kind == Success }
