package waiter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xkilldash9x/bolt/internal/driver"
	"go.uber.org/zap"
)

// TextUnchangedError reports that an element kept its baseline text.
type TextUnchangedError struct {
	Target   string
	Baseline string
	Elapsed  time.Duration
}

func (e *TextUnchangedError) Error() string {
	return fmt.Sprintf("%s has not changed value from '%s' after %s", e.Target, e.Baseline, e.Elapsed)
}

func (e *TextUnchangedError) Kind() driver.ErrorKind { return driver.KindTimeout }

var bodyLocator = driver.CSS("body").Named("page body")

// Exists reports whether loc currently resolves to at least one element.
// It is a single query: zero matches is an answer, not an error, so there is
// nothing to retry. Driver failures are logged and reported as absent.
func (w *Waiter) Exists(ctx context.Context, loc driver.Locator) bool {
	defer w.sw.Track("exists")()
	els, err := w.drv.FindElements(ctx, loc)
	if err != nil {
		w.logger.Debug("Existence probe failed; treating as absent.", zap.String("locator", loc.String()), zap.Error(err))
		return false
	}
	return len(els) > 0
}

// ExistsAfterSettle gives the screen the configured settle delay to update,
// then probes once.
func (w *Waiter) ExistsAfterSettle(ctx context.Context, loc driver.Locator) bool {
	if err := w.Sleep(ctx, w.cfg.ExistenceSettle); err != nil {
		return false
	}
	return w.Exists(ctx, loc)
}

// ElementExists reports whether a resolved element is still usable, by reading its text.
func (w *Waiter) ElementExists(ctx context.Context, el driver.Element) bool {
	if el == nil {
		return false
	}
	_, err := w.drv.Text(ctx, el)
	return err == nil
}

// ExistsWithin polls once a second for up to limit for loc to exist.
func (w *Waiter) ExistsWithin(ctx context.Context, loc driver.Locator, limit time.Duration) error {
	defer w.sw.Track("exists")()
	for waited := time.Duration(0); waited < limit; waited += time.Second {
		if w.Exists(ctx, loc) {
			return nil
		}
		if err := w.Sleep(ctx, time.Second); err != nil {
			return err
		}
	}
	return fmt.Errorf("element %s still does not exist after waiting for %s: %w", loc, limit,
		driver.NewError(driver.KindNoSuchElement, "find element", loc.String(), nil))
}

// TextChangedFrom polls target's text every state poll interval for up to
// within, returning the new text as soon as it differs from baseline.
func (w *Waiter) TextChangedFrom(ctx context.Context, target Target, baseline string, within time.Duration) (string, error) {
	defer w.sw.Track(TextChanged.String())()
	start := w.clk.Now()
	text, err := PollUntil(ctx, w.clk, w.cfg.StatePollInterval, within, func(ctx context.Context) (string, bool, error) {
		el, err := w.resolve(ctx, target)
		if err != nil {
			return "", false, err
		}
		current, err := w.drv.Text(ctx, el)
		if err != nil {
			if driver.IsKind(err, driver.KindStale) {
				w.logger.Warn("Stale element while watching text, will try again.", zap.String("target", target.String()))
			}
			return "", false, err
		}
		return current, current != baseline, nil
	})

	var te *TimeoutError
	if errors.As(err, &te) {
		return "", &TextUnchangedError{Target: target.String(), Baseline: baseline, Elapsed: w.clk.Now().Sub(start)}
	}
	return text, err
}

// TextChangeOrTimeout returns once target's text changes or within elapses,
// whichever is first. It only fails when ctx is done.
func (w *Waiter) TextChangeOrTimeout(ctx context.Context, target Target, within time.Duration) error {
	el, err := w.resolve(ctx, target)
	if err != nil {
		return ctx.Err()
	}
	initial, err := w.drv.Text(ctx, el)
	if err != nil {
		return ctx.Err()
	}
	_, _ = w.TextChangedFrom(ctx, Elem(el), initial, within)
	return ctx.Err()
}

// WaitForTextInBody checks the page body for text twelve times, a state poll apart.
func (w *Waiter) WaitForTextInBody(ctx context.Context, text string) error {
	defer w.sw.Track("text in body")()
	if _, err := w.Present(ctx, bodyLocator, w.cfg.Brief); err != nil {
		return fmt.Errorf("cannot find 'body' region on the page: %w", err)
	}

	const checks = 12
	for i := 0; i < checks; i++ {
		if el, err := w.drv.FindElement(ctx, bodyLocator); err == nil {
			if body, err := w.drv.Text(ctx, el); err == nil && strings.Contains(body, text) {
				return nil
			}
		}
		if i < checks-1 {
			if err := w.Sleep(ctx, w.cfg.StatePollInterval); err != nil {
				return err
			}
		}
	}
	return fmt.Errorf("searching for string '%s' on the current page but it appears to not be present", text)
}

// WaitToVanish waits up to within, checking once a second, for el to stop
// being displayed. An element that is not there yet gets a second to appear.
func (w *Waiter) WaitToVanish(ctx context.Context, el driver.Element, within time.Duration) error {
	if !w.ElementExists(ctx, el) {
		if err := w.Sleep(ctx, time.Second); err != nil {
			return err
		}
	}
	_, err := w.await(ctx, Invisible, Elem(el), "", within, time.Second)
	var te *TimeoutError
	if errors.As(err, &te) {
		text, _ := w.drv.Text(ctx, el)
		return fmt.Errorf("%s not disappearing after %s. Current element text : %s: %w", el, within, text, err)
	}
	return err
}

// AcceptAlertIfPresent accepts an open dialog, if any. It reports whether one was accepted.
func (w *Waiter) AcceptAlertIfPresent(ctx context.Context) bool {
	if err := w.drv.AcceptAlert(ctx); err != nil {
		return false
	}
	w.logger.Info("Alert accepted.")
	return true
}
