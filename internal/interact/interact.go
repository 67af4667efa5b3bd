package interact

import (
	"context"
	"fmt"

	"github.com/xkilldash9x/bolt/internal/config"
	"github.com/xkilldash9x/bolt/internal/driver"
	"github.com/xkilldash9x/bolt/internal/observability"
	"github.com/xkilldash9x/bolt/internal/waiter"
	"go.uber.org/zap"
)

// Interactor clicks and types through a Waiter. It shares the waiter's
// driver, clock and stopwatch.
type Interactor struct {
	w        *waiter.Waiter
	drv      driver.Driver
	cfg      config.InteractionConfig
	recovery config.RecoveryConfig
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// New creates an Interactor. metrics may be nil.
func New(w *waiter.Waiter, cfg config.InteractionConfig, recovery config.RecoveryConfig, metrics *observability.Metrics, logger *zap.Logger) *Interactor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Interactor{
		w:        w,
		drv:      w.Driver(),
		cfg:      cfg,
		recovery: recovery,
		metrics:  metrics,
		logger:   logger.Named("Interact"),
	}
}

// ClickPolicy retries any driver interaction failure.
func (i *Interactor) ClickPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: i.cfg.ClickAttempts, Backoff: i.cfg.ClickDelay, Retryable: interactionKinds}
}

// TypePolicy retries only elements that are not interactable yet.
func (i *Interactor) TypePolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: i.cfg.TypeAttempts, Backoff: i.cfg.TypeDelay, Retryable: []driver.ErrorKind{driver.KindNotInteractable}}
}

// Retry runs fn under policy. Between attempts it sleeps the policy backoff,
// accounted as waiting time.
func (i *Interactor) Retry(ctx context.Context, op string, policy RetryPolicy, fn func(ctx context.Context) error) Outcome {
	if err := policy.Validate(); err != nil {
		return i.finish(op, Outcome{Kind: NonRetryableFailure, Err: err})
	}

	var err error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		i.metrics.IncAttempt(op)
		if err = fn(ctx); err == nil {
			return i.finish(op, Outcome{Kind: Success, Attempts: attempt})
		}
		if !policy.retryable(ctx, err) {
			return i.finish(op, Outcome{Kind: NonRetryableFailure, Attempts: attempt, Err: err})
		}
		if attempt == policy.MaxAttempts {
			break
		}
		i.logger.Debug("Interaction failed, will retry.",
			zap.String("operation", op),
			zap.Int("attempt", attempt),
			zap.Stringer("kind", driver.KindOf(err)),
			zap.Error(err))
		if serr := i.w.Sleep(ctx, policy.Backoff); serr != nil {
			return i.finish(op, Outcome{Kind: NonRetryableFailure, Attempts: attempt, Err: serr})
		}
	}
	return i.finish(op, Outcome{Kind: RetriesExhausted, Attempts: policy.MaxAttempts, Err: err})
}

func (i *Interactor) finish(op string, o Outcome) Outcome {
	i.metrics.ObserveOutcome(op, o.Kind.String())
	if o.Kind == RetriesExhausted {
		i.logger.Warn("Interaction retries exhausted.", zap.String("operation", op), zap.Int("attempts", o.Attempts), zap.Error(o.Err))
	}
	return o
}

// element resolves target once. A locator that matches nothing yields a
// no-such-element error, which the click policy retries.
func (i *Interactor) element(ctx context.Context, target waiter.Target) (driver.Element, error) {
	if target.Element != nil {
		return target.Element, nil
	}
	return i.drv.FindElement(ctx, target.Locator)
}

// TryClick clicks target, retrying interaction failures.
func (i *Interactor) TryClick(ctx context.Context, target waiter.Target) Outcome {
	return i.Retry(ctx, "click", i.ClickPolicy(), func(ctx context.Context) error {
		el, err := i.element(ctx, target)
		if err != nil {
			return err
		}
		return i.drv.Click(ctx, el)
	})
}

// Click clicks target, retrying interaction failures. When every attempt
// fails the last driver error is returned unwrapped.
func (i *Interactor) Click(ctx context.Context, target waiter.Target) error {
	return i.TryClick(ctx, target).Err
}

type typeOptions struct {
	clear  bool
	submit string
}

// TypeOption adjusts Type.
type TypeOption func(*typeOptions)

// WithClear clears the field before typing.
func WithClear() TypeOption { return func(o *typeOptions) { o.clear = true } }

// WithoutSubmit leaves focus in the field instead of pressing Tab.
func WithoutSubmit() TypeOption { return func(o *typeOptions) { o.submit = "" } }

// SubmitWith presses key after the text instead of Tab.
func SubmitWith(key string) TypeOption { return func(o *typeOptions) { o.submit = key } }

// TryType types text into target. Empty text does nothing.
func (i *Interactor) TryType(ctx context.Context, target waiter.Target, text string, opts ...TypeOption) Outcome {
	if text == "" {
		return Outcome{Kind: Success}
	}
	o := typeOptions{submit: driver.KeyTab}
	for _, opt := range opts {
		opt(&o)
	}

	return i.Retry(ctx, "type", i.TypePolicy(), func(ctx context.Context) error {
		el, err := i.w.Clickable(ctx, target, i.cfg.TypeClickableTimeout)
		if err != nil {
			return err
		}
		if o.clear {
			if err := i.drv.Clear(ctx, el); err != nil {
				return err
			}
		}
		if err := i.drv.SendKeys(ctx, el, text); err != nil {
			return err
		}
		if o.submit != "" {
			return i.drv.SendKeys(ctx, el, o.submit)
		}
		return nil
	})
}

// Type types text into target and, by default, presses Tab so Lightning
// commits the value. Empty text does nothing.
func (i *Interactor) Type(ctx context.Context, target waiter.Target, text string, opts ...TypeOption) error {
	return i.TryType(ctx, target, text, opts...).Err
}

// TypeSlowly sends text one character at a time for inputs that drop
// keystrokes. There is no retry.
func (i *Interactor) TypeSlowly(ctx context.Context, target waiter.Target, text string) error {
	if text == "" {
		return nil
	}
	el, err := i.element(ctx, target)
	if err != nil {
		return err
	}
	for _, r := range text {
		if err := i.w.Sleep(ctx, i.cfg.CharDelay); err != nil {
			return err
		}
		if err := i.drv.SendKeys(ctx, el, string(r)); err != nil {
			return fmt.Errorf("typing %q one character at a time: %w", text, err)
		}
	}
	return nil
}
