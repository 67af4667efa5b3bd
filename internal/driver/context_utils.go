// internal/driver/context_utils.go
package driver

import (
	"context"
	"time"
)

// CombineContext derives a context from browserCtx, which carries the CDP
// target, that is also cancelled when opCtx is done. Values come from browserCtx only.
func CombineContext(browserCtx, opCtx context.Context) (context.Context, context.CancelFunc) {
	combined, cancel := context.WithCancel(browserCtx)
	if deadline, ok := opCtx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		combined, cancelDeadline = context.WithDeadline(combined, deadline)
		inner := cancel
		cancel = func() {
			cancelDeadline()
			inner()
		}
	}

	go func() {
		select {
		case <-opCtx.Done():
			cancel()
		case <-combined.Done():
		}
	}()

	return combined, cancel
}

// valueOnlyContext keeps the parent's values but drops its deadline and cancellation.
type valueOnlyContext struct {
	context.Context
}

func (valueOnlyContext) Deadline() (deadline time.Time, ok bool) { return }
func (valueOnlyContext) Done() <-chan struct{}                   { return nil }
func (valueOnlyContext) Err() error                              { return nil }

// Detach returns a context with ctx's values that is never cancelled.
// Screenshots taken while a scenario's context is being torn down use it.
func Detach(ctx context.Context) context.Context {
	return valueOnlyContext{ctx}
}
