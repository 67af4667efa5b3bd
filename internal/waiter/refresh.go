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

// ErrRefreshBudgetExceeded is wrapped by every refresh loop that gives up.
var ErrRefreshBudgetExceeded = errors.New("refresh budget exceeded")

func validAttempts(n int) error {
	if n < 1 {
		return fmt.Errorf("number of refreshes must be at least 1, got %d", n)
	}
	return nil
}

// RefreshUntilVisible refreshes the page and waits the medium preset for
// target, up to attempts times. When target never shows, the last timeout or
// missing-element error is returned as is.
func (w *Waiter) RefreshUntilVisible(ctx context.Context, target Target, attempts int, description string) (driver.Element, error) {
	if err := validAttempts(attempts); err != nil {
		return nil, err
	}
	defer w.sw.Track("refresh until visible")()

	var last error
	for i := 0; i < attempts; i++ {
		w.logger.Info("About to refresh page to wait for element to become visible.", zap.String("element", description), zap.Int("attempt", i+1))
		if err := w.drv.Refresh(ctx); err != nil {
			return nil, err
		}
		el, err := w.Visible(ctx, target, w.cfg.Medium)
		if err == nil {
			return el, nil
		}
		if !driver.IsKind(err, driver.KindTimeout, driver.KindNoSuchElement) {
			return nil, err
		}
		last = err
	}
	return nil, last
}

// RefreshUntilTitle refreshes until the title contains title, waiting the
// default preset after each refresh.
func (w *Waiter) RefreshUntilTitle(ctx context.Context, title string, attempts int, description string) error {
	if err := validAttempts(attempts); err != nil {
		return err
	}
	defer w.sw.Track("refresh until title")()

	var last error
	for i := 0; i < attempts; i++ {
		w.logger.Info("About to refresh page to wait for the page title.", zap.String("page", description), zap.String("title", title), zap.Int("attempt", i+1))
		if err := w.drv.Refresh(ctx); err != nil {
			return err
		}
		err := w.TitleContains(ctx, title, w.cfg.Default)
		if err == nil {
			return nil
		}
		if !driver.IsKind(err, driver.KindTimeout) {
			return err
		}
		last = err
	}
	return last
}

// RefreshUntilAbsent refreshes, lets the page settle, and probes until loc no
// longer exists. It always refreshes first.
func (w *Waiter) RefreshUntilAbsent(ctx context.Context, loc driver.Locator, attempts int, description string) error {
	return w.refreshUntilPresence(ctx, loc, attempts, description, false)
}

// RefreshUntilExists refreshes, lets the page settle, and probes until loc exists.
func (w *Waiter) RefreshUntilExists(ctx context.Context, loc driver.Locator, attempts int, description string) error {
	return w.refreshUntilPresence(ctx, loc, attempts, description, true)
}

func (w *Waiter) refreshUntilPresence(ctx context.Context, loc driver.Locator, attempts int, description string, want bool) error {
	if err := validAttempts(attempts); err != nil {
		return err
	}
	defer w.sw.Track("refresh until present")()

	for i := 0; i < attempts; i++ {
		w.logger.Info("About to refresh page to wait for element presence.",
			zap.String("element", description),
			zap.Bool("want_present", want),
			zap.Int("attempt", i+1))
		if err := w.drv.Refresh(ctx); err != nil {
			return err
		}
		// Right after a refresh most things do not exist yet.
		if err := w.Sleep(ctx, w.cfg.RefreshSettle); err != nil {
			return err
		}
		if w.Exists(ctx, loc) == want {
			return nil
		}
	}
	if want {
		return fmt.Errorf("%s does not exist after %d refreshes. Current element locator : %s: %w", description, attempts, loc.Query, ErrRefreshBudgetExceeded)
	}
	return fmt.Errorf("%s still exists after %d refreshes. Current element locator : %s: %w", description, attempts, loc.Query, ErrRefreshBudgetExceeded)
}

// RefreshUntilContainsText makes target visible (refreshing as needed), then
// refreshes every delay until its text contains one of texts. An empty texts
// only requires visibility.
func (w *Waiter) RefreshUntilContainsText(ctx context.Context, target Target, texts []string, attempts int, delay time.Duration, description string) error {
	if _, err := w.RefreshUntilVisible(ctx, target, attempts, description); err != nil {
		return err
	}
	if len(texts) == 0 {
		return nil
	}
	defer w.sw.Track("refresh until text")()

	var current string
	for i := 0; i < attempts; i++ {
		el, err := w.resolve(ctx, target)
		if err == nil {
			current, err = w.drv.Text(ctx, el)
		}
		if err != nil && !driver.IsTransient(err) {
			return err
		}
		for _, s := range texts {
			if err == nil && strings.Contains(current, s) {
				return nil
			}
		}
		if err := w.Sleep(ctx, delay); err != nil {
			return err
		}
		w.logger.Info("About to refresh page to wait for element to contain text.", zap.Strings("texts", texts))
		if err := w.drv.Refresh(ctx); err != nil {
			return err
		}
	}
	return fmt.Errorf("%s not containing text %q after %d refreshes. Current element text : %s: %w", description, texts, attempts, current, ErrRefreshBudgetExceeded)
}
