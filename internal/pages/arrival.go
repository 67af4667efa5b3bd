package pages

import (
	"context"
	"fmt"
	"time"

	"github.com/xkilldash9x/bolt/internal/config"
	"github.com/xkilldash9x/bolt/internal/driver"
	"github.com/xkilldash9x/bolt/internal/interact"
	"github.com/xkilldash9x/bolt/internal/observability"
	"github.com/xkilldash9x/bolt/internal/waiter"
	"go.uber.org/zap"
)

// Anchor is what proves a page has rendered: an element that becomes
// visible, or a title containing a substring. Locator wins when both are set.
type Anchor struct {
	Locator driver.Locator
	Title   string
}

func (a Anchor) String() string {
	if !a.Locator.IsZero() {
		return a.Locator.String()
	}
	return "title containing '" + a.Title + "'"
}

// Arrival confirms a page has loaded, refreshing while its anchor is missing.
type Arrival struct {
	w       *waiter.Waiter
	i       *interact.Interactor
	cfg     config.ArrivalConfig
	metrics *observability.Metrics
	logger  *zap.Logger
}

func NewArrival(w *waiter.Waiter, i *interact.Interactor, cfg config.ArrivalConfig, metrics *observability.Metrics, logger *zap.Logger) *Arrival {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Arrival{w: w, i: i, cfg: cfg, metrics: metrics, logger: logger}
}

// Confirm waits up to timeout for anchor. On a timeout it refreshes up to
// RefreshAttempts times, sleeping InterRefreshDelay before each refresh and
// waiting RefreshWait after it. When the anchor never shows, the last wait
// error is returned wrapped with the page name.
func (a *Arrival) Confirm(ctx context.Context, page string, anchor Anchor, timeout time.Duration) error {
	err := a.await(ctx, anchor, timeout)
	if err == nil {
		return nil
	}
	if !missing(ctx, err) {
		return err
	}
	a.logger.Info(page+" anchor not shown, refreshing until it is.", zap.Stringer("anchor", anchor), zap.Int("attempts", a.cfg.RefreshAttempts))

	for n := 1; n <= a.cfg.RefreshAttempts; n++ {
		if serr := a.w.Sleep(ctx, a.cfg.InterRefreshDelay); serr != nil {
			return serr
		}
		a.metrics.IncArrivalRefresh(page)
		if rerr := a.w.Driver().Refresh(ctx); rerr != nil {
			if ctx.Err() != nil {
				return rerr
			}
			a.logger.Warn("Refresh failed.", zap.Int("attempt", n), zap.Error(rerr))
		}
		err = a.await(ctx, anchor, a.cfg.RefreshWait)
		if err == nil {
			a.logger.Info(fmt.Sprintf("%s confirmed after %d refresh(es).", page, n))
			return nil
		}
		if !missing(ctx, err) {
			return err
		}
		a.logger.Debug("Anchor still missing after refresh.", zap.Int("attempt", n), zap.Error(err))
	}
	return fmt.Errorf("%s not loaded after %d refreshes: %w", page, a.cfg.RefreshAttempts, err)
}

func (a *Arrival) await(ctx context.Context, anchor Anchor, timeout time.Duration) error {
	if !anchor.Locator.IsZero() {
		_, err := a.w.Visible(ctx, waiter.On(anchor.Locator), timeout)
		return err
	}
	return a.w.TitleContains(ctx, anchor.Title, timeout)
}

// missing reports whether err means the anchor has not shown yet, as opposed
// to a failure a refresh cannot fix.
func missing(ctx context.Context, err error) bool {
	return ctx.Err() == nil && driver.IsKind(err, driver.KindTimeout, driver.KindNoSuchElement, driver.KindStale)
}

// Maintenance clicks through a maintenance interstitial when marker is on
// screen, then settles. It reports whether the interstitial was there.
func (a *Arrival) Maintenance(ctx context.Context, marker, cont driver.Locator) (bool, error) {
	if !a.w.Exists(ctx, marker) {
		return false, nil
	}
	a.logger.Warn("*** Scheduled maintenance page encountered. Trying to click Continue..... ***")
	if err := a.i.Click(ctx, waiter.On(cont)); err != nil {
		return true, fmt.Errorf("continuing past maintenance notice: %w", err)
	}
	return true, a.w.Sleep(ctx, a.cfg.MaintenanceSettle)
}

// SessionEnded clears a stale-session banner by refreshing until it is gone,
// then re-confirms anchor. It reports whether the banner was there.
func (a *Arrival) SessionEnded(ctx context.Context, page string, banner driver.Locator, anchor Anchor) (bool, error) {
	if !a.w.Exists(ctx, banner) {
		return false, nil
	}
	a.logger.Info("Session ended error box on page, refreshing until it disappears...")
	if err := a.w.RefreshUntilAbsent(ctx, banner, a.cfg.RefreshAttempts, "Session Ended error"); err != nil {
		return true, err
	}
	if !anchor.Locator.IsZero() && a.w.Exists(ctx, anchor.Locator) {
		return true, nil
	}
	return true, a.Confirm(ctx, page, anchor, a.w.Presets().Medium)
}
