package interact

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xkilldash9x/bolt/internal/driver"
	"github.com/xkilldash9x/bolt/internal/waiter"
	"go.uber.org/zap"
)

// ErrRetryBudgetExceeded is matched by every RetryBudgetError.
var ErrRetryBudgetExceeded = errors.New("maximum retry count exceeded")

// RetryBudgetError is returned when every refresh cycle of a recovery loop
// failed. Err is the failure of the final cycle.
type RetryBudgetError struct {
	Operation string
	Cycles    int
	Err       error
}

func (e *RetryBudgetError) Error() string {
	return fmt.Sprintf("%s: maximum retry count exceeded after %d refreshes: %v", e.Operation, e.Cycles, e.Err)
}

func (e *RetryBudgetError) Unwrap() []error { return []error{ErrRetryBudgetExceeded, e.Err} }

// Recovery stages, in escalation order.
const (
	StageScript  = "script"
	StageHover   = "hover"
	StageRefresh = "refresh"
)

const clickScript = `function() { this.click(); }`

// RobustClick clicks target on components where a native click is unreliable.
// It clicks through script first. A script failure escalates to hover then
// native click. Any other driver failure reloads the page, waits for anchor,
// re-resolves target and starts over, at most MaxRefreshCycles times. A zero
// anchor waits for the document to be ready instead.
func (i *Interactor) RobustClick(ctx context.Context, target waiter.Target, anchor driver.Locator) error {
	loc := target.Locator
	if loc.IsZero() && target.Element != nil {
		loc = target.Element.Locator()
	}

	el := target.Element
	for cycle := 0; ; cycle++ {
		err := i.robustAttempt(ctx, el, loc)
		if err == nil {
			i.metrics.ObserveOutcome("robust_click", Success.String())
			return nil
		}
		if ctx.Err() != nil || !driver.IsDriverError(err) {
			i.metrics.ObserveOutcome("robust_click", NonRetryableFailure.String())
			return err
		}
		if cycle == i.recovery.MaxRefreshCycles {
			i.metrics.ObserveOutcome("robust_click", RetriesExhausted.String())
			return &RetryBudgetError{Operation: "robust click " + target.String(), Cycles: cycle, Err: err}
		}

		if loc.IsZero() {
			return fmt.Errorf("cannot re-resolve %s after a refresh: %w", target, err)
		}

		i.metrics.IncRecoveryStage(StageRefresh)
		i.logger.Warn("Driver failure while clicking, refreshing the page and trying again.",
			zap.String("target", target.String()),
			zap.Int("cycle", cycle+1),
			zap.Error(err))
		if err := i.refreshAndSettle(ctx, anchor); err != nil && !driver.IsDriverError(err) {
			return err
		}
		// The old handle died with the reload.
		el = nil
	}
}

func (i *Interactor) robustAttempt(ctx context.Context, el driver.Element, loc driver.Locator) error {
	if el == nil {
		var err error
		if el, err = i.drv.FindElement(ctx, loc); err != nil {
			return err
		}
	}

	i.metrics.IncRecoveryStage(StageScript)
	err := i.drv.ExecuteScript(ctx, clickScript, el, nil)
	if err == nil || !driver.IsKind(err, driver.KindScript) {
		return err
	}

	i.metrics.IncRecoveryStage(StageHover)
	i.logger.Debug("Script click failed, hovering and clicking.", zap.String("element", el.String()), zap.Error(err))
	if err := i.drv.Hover(ctx, el); err != nil {
		return err
	}
	if _, err := i.w.Clickable(ctx, waiter.Elem(el), i.recovery.ClickableTimeout); err != nil {
		return err
	}
	return i.drv.Click(ctx, el)
}

// refreshAndSettle reloads the page and waits for it to stabilize.
func (i *Interactor) refreshAndSettle(ctx context.Context, anchor driver.Locator) error {
	if err := i.drv.Refresh(ctx); err != nil {
		return err
	}
	if err := i.w.Sleep(ctx, i.recovery.SettleDelay); err != nil {
		return err
	}
	if anchor.IsZero() {
		return i.w.PageReady(ctx, i.recovery.AnchorTimeout)
	}
	_, err := i.w.Visible(ctx, waiter.On(anchor), i.recovery.AnchorTimeout)
	return err
}

// ClickWithHover hovers, waits up to clickable for target, and clicks, trying
// again after a pause until it works. Resolved elements get 40 tries a second
// apart; locators are re-resolved and get 20 tries half a second apart.
func (i *Interactor) ClickWithHover(ctx context.Context, target waiter.Target, clickable time.Duration) error {
	tries, pause := 40, time.Second
	if target.Element == nil {
		tries, pause = 20, 500*time.Millisecond
	}
	var err error
	for n := 1; n <= tries; n++ {
		if err = i.hoverClick(ctx, target, clickable); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if n < tries {
			if serr := i.w.Sleep(ctx, pause); serr != nil {
				return serr
			}
		}
	}
	return fmt.Errorf("issue clicking %s after %d tries: %w", target, tries, err)
}

func (i *Interactor) hoverClick(ctx context.Context, target waiter.Target, clickable time.Duration) error {
	el, err := i.element(ctx, target)
	if err != nil {
		return err
	}
	if err := i.drv.Hover(ctx, el); err != nil {
		return err
	}
	if _, err := i.w.Clickable(ctx, waiter.Elem(el), clickable); err != nil {
		return err
	}
	return i.drv.Click(ctx, el)
}
