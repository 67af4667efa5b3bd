package waiter

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/xkilldash9x/bolt/internal/clock"
	"github.com/xkilldash9x/bolt/internal/config"
	"github.com/xkilldash9x/bolt/internal/driver"
	"github.com/xkilldash9x/bolt/internal/observability"
	"github.com/xkilldash9x/bolt/internal/stopwatch"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Condition is the predicate a wait polls for.
type Condition int

const (
	Visible Condition = iota
	Invisible
	Present
	Clickable
	Enabled
	NotEnabled
	TextChanged
	TextContains
	TitleContains
	URLContains
	PageReady
)

func (c Condition) String() string {
	switch c {
	case Visible:
		return "visible"
	case Invisible:
		return "invisible"
	case Present:
		return "present"
	case Clickable:
		return "clickable"
	case Enabled:
		return "enabled"
	case NotEnabled:
		return "not enabled"
	case TextChanged:
		return "text changed"
	case TextContains:
		return "text contains"
	case TitleContains:
		return "title contains"
	case URLContains:
		return "url contains"
	case PageReady:
		return "page ready"
	default:
		return "unknown"
	}
}

// Target is what a wait looks at: a resolved element, or a locator that is
// re-resolved on every poll.
type Target struct {
	Locator driver.Locator
	Element driver.Element
}

// On targets a locator.
func On(loc driver.Locator) Target { return Target{Locator: loc} }

// Elem targets a resolved element.
func Elem(el driver.Element) Target { return Target{Element: el} }

func (t Target) String() string {
	if t.Element != nil {
		return t.Element.String()
	}
	return t.Locator.String()
}

// Waiter polls conditions against the browser. Every wait is accounted as
// waiting time on the stopwatch for as long as it runs.
type Waiter struct {
	drv      driver.Driver
	clk      clock.Clock
	sw       *stopwatch.Controller
	metrics  *observability.Metrics
	logger   *zap.Logger
	cfg      config.WaitConfig
	progress rate.Sometimes
}

// New creates a Waiter. sw and metrics may be nil.
func New(drv driver.Driver, clk clock.Clock, sw *stopwatch.Controller, metrics *observability.Metrics, logger *zap.Logger, cfg config.WaitConfig) *Waiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Waiter{
		drv:      drv,
		clk:      clk,
		sw:       sw,
		metrics:  metrics,
		logger:   logger.Named("Waiter"),
		cfg:      cfg,
		progress: rate.Sometimes{First: 1, Interval: 5 * time.Second},
	}
}

// Presets returns the configured wait durations.
func (w *Waiter) Presets() config.WaitConfig { return w.cfg }

// Driver returns the driver the waiter polls.
func (w *Waiter) Driver() driver.Driver { return w.drv }

// Clock returns the waiter's clock.
func (w *Waiter) Clock() clock.Clock { return w.clk }

// Track accounts the caller's work under category as waiting time until the
// returned func is called.
func (w *Waiter) Track(category string) func() { return w.sw.Track(category) }

// Sleep blocks for d, accounted as waiting time.
func (w *Waiter) Sleep(ctx context.Context, d time.Duration) error {
	defer w.sw.Track("sleep")()
	return w.clk.Sleep(ctx, d)
}

// Await polls cond against target until it holds or timeout elapses.
func (w *Waiter) Await(ctx context.Context, cond Condition, target Target, timeout time.Duration) error {
	_, err := w.await(ctx, cond, target, "", timeout, w.cfg.PollInterval)
	return err
}

// Visible waits for target to be rendered with a non-zero size and returns it.
func (w *Waiter) Visible(ctx context.Context, target Target, timeout time.Duration) (driver.Element, error) {
	return w.await(ctx, Visible, target, "", timeout, w.cfg.PollInterval)
}

// Invisible waits for target to be hidden or gone. A target that never
// existed satisfies it immediately.
func (w *Waiter) Invisible(ctx context.Context, target Target, timeout time.Duration) error {
	_, err := w.await(ctx, Invisible, target, "", timeout, w.cfg.PollInterval)
	return err
}

// Present waits for loc to match at least one element, visible or not.
func (w *Waiter) Present(ctx context.Context, loc driver.Locator, timeout time.Duration) (driver.Element, error) {
	return w.await(ctx, Present, On(loc), "", timeout, w.cfg.PollInterval)
}

// Clickable waits for target to be visible, enabled and not covered by another element.
func (w *Waiter) Clickable(ctx context.Context, target Target, timeout time.Duration) (driver.Element, error) {
	return w.await(ctx, Clickable, target, "", timeout, w.cfg.StatePollInterval)
}

// Enabled waits for target to become enabled.
func (w *Waiter) Enabled(ctx context.Context, target Target, timeout time.Duration) error {
	_, err := w.await(ctx, Enabled, target, "", timeout, w.cfg.StatePollInterval)
	return err
}

// NotEnabled waits for target to become disabled. A target that disappears counts as disabled.
func (w *Waiter) NotEnabled(ctx context.Context, target Target, timeout time.Duration) error {
	_, err := w.await(ctx, NotEnabled, target, "", timeout, w.cfg.StatePollInterval)
	return err
}

// TextContains waits for target's text to contain substr.
func (w *Waiter) TextContains(ctx context.Context, target Target, substr string, timeout time.Duration) (driver.Element, error) {
	return w.await(ctx, TextContains, target, substr, timeout, w.cfg.PollInterval)
}

// TitleContains waits for the page title to contain substr.
func (w *Waiter) TitleContains(ctx context.Context, substr string, timeout time.Duration) error {
	_, err := w.await(ctx, TitleContains, Target{}, substr, timeout, w.cfg.PollInterval)
	return err
}

// URLContains waits for the current URL to contain substr.
func (w *Waiter) URLContains(ctx context.Context, substr string, timeout time.Duration) error {
	w.logger.Info("Waiting for URL to contain the string.", zap.String("partial_url", substr))
	_, err := w.await(ctx, URLContains, Target{}, substr, timeout, w.cfg.PollInterval)
	return err
}

// PageReady waits for document.readyState to be "complete".
func (w *Waiter) PageReady(ctx context.Context, timeout time.Duration) error {
	_, err := w.await(ctx, PageReady, Target{}, "", timeout, w.cfg.PollInterval)
	return err
}

func (w *Waiter) await(ctx context.Context, cond Condition, target Target, arg string, timeout, interval time.Duration) (driver.Element, error) {
	if timeout <= 0 {
		return nil, &invalidWait{cond: cond, err: ErrInvalidTimeout, d: timeout}
	}
	defer w.sw.Track(cond.String())()

	start := w.clk.Now()
	el, err := PollUntil(ctx, w.clk, interval, timeout, func(ctx context.Context) (driver.Element, bool, error) {
		w.progress.Do(func() {
			w.logger.Debug("Polling condition.",
				zap.Stringer("condition", cond),
				zap.String("target", target.String()))
		})
		return w.check(ctx, cond, target, arg)
	})
	elapsed := clock.Since(w.clk, start)

	outcome := "satisfied"
	var te *TimeoutError
	switch {
	case errors.As(err, &te):
		te.Condition = cond
		te.Target = target.String()
		outcome = "timeout"
		w.logger.Debug("Condition not met before deadline.",
			zap.Stringer("condition", cond),
			zap.String("target", te.Target),
			zap.Duration("timeout", timeout))
	case err != nil:
		outcome = "error"
	}
	w.metrics.ObserveWait(cond.String(), outcome, elapsed)
	return el, err
}

type invalidWait struct {
	cond Condition
	err  error
	d    time.Duration
}

func (e *invalidWait) Error() string { return e.cond.String() + " wait: " + e.err.Error() + ": " + e.d.String() }
func (e *invalidWait) Unwrap() error { return e.err }

// resolve returns the element a poll should inspect.
func (w *Waiter) resolve(ctx context.Context, target Target) (driver.Element, error) {
	if target.Element != nil {
		return target.Element, nil
	}
	els, err := w.drv.FindElements(ctx, target.Locator)
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		return nil, driver.NewError(driver.KindNoSuchElement, "find element", target.Locator.String(), nil)
	}
	return els[0], nil
}

// check evaluates one poll. Conditions that absence satisfies turn transient
// errors into success; the rest leave them to PollUntil.
func (w *Waiter) check(ctx context.Context, cond Condition, target Target, arg string) (driver.Element, bool, error) {
	switch cond {
	case TitleContains:
		title, err := w.drv.Title(ctx)
		return nil, err == nil && strings.Contains(title, arg), err
	case URLContains:
		u, err := w.drv.CurrentURL(ctx)
		return nil, err == nil && strings.Contains(u, arg), err
	case PageReady:
		state, err := w.drv.ReadyState(ctx)
		return nil, err == nil && state == "complete", err
	}

	el, err := w.resolve(ctx, target)
	if err != nil {
		if (cond == Invisible || cond == NotEnabled) && driver.IsTransient(err) {
			return nil, true, nil
		}
		return nil, false, err
	}

	var ok bool
	switch cond {
	case Present:
		ok = true
	case Visible:
		ok, err = w.drv.IsDisplayed(ctx, el)
	case Invisible:
		var shown bool
		shown, err = w.drv.IsDisplayed(ctx, el)
		ok = !shown
	case Clickable:
		ok, err = w.clickable(ctx, el)
	case Enabled:
		ok, err = w.drv.IsEnabled(ctx, el)
	case NotEnabled:
		var enabled bool
		enabled, err = w.drv.IsEnabled(ctx, el)
		ok = !enabled
	case TextContains:
		var text string
		text, err = w.drv.Text(ctx, el)
		ok = strings.Contains(text, arg)
	}

	if err != nil {
		if (cond == Invisible || cond == NotEnabled) && driver.IsTransient(err) {
			return nil, true, nil
		}
		return nil, false, err
	}
	return el, ok, nil
}

func (w *Waiter) clickable(ctx context.Context, el driver.Element) (bool, error) {
	if shown, err := w.drv.IsDisplayed(ctx, el); err != nil || !shown {
		return false, err
	}
	if enabled, err := w.drv.IsEnabled(ctx, el); err != nil || !enabled {
		return false, err
	}
	obscured, err := w.drv.IsObscured(ctx, el)
	return err == nil && !obscured, err
}
