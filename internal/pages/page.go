// Package pages models the Salesforce pages a scenario drives. Each page
// composes the synchronization core: it confirms arrival through an anchor
// with refresh-on-timeout, clicks and types through the resilient
// interaction layer, and hands anything it cannot recover from to the
// exception handler.
package pages

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xkilldash9x/bolt/internal/classify"
	"github.com/xkilldash9x/bolt/internal/config"
	"github.com/xkilldash9x/bolt/internal/driver"
	"github.com/xkilldash9x/bolt/internal/interact"
	"github.com/xkilldash9x/bolt/internal/observability"
	"github.com/xkilldash9x/bolt/internal/scenario"
	"github.com/xkilldash9x/bolt/internal/waiter"
	"go.uber.org/zap"
)

// Page is a screen a scenario can arrive on and read from.
type Page interface {
	Name() string
	// ConfirmArrival blocks until the page's anchor shows, refreshing when it
	// does not. Unrecovered failures come back classified.
	ConfirmArrival(ctx context.Context) error
	// StoreDetails saves what later steps need from the page into sc.
	StoreDetails(ctx context.Context, sc *scenario.Context) error
}

// Deps is everything a page needs from the run.
type Deps struct {
	Waiter     *waiter.Waiter
	Interactor *interact.Interactor
	Handler    *classify.Handler
	Asserter   *classify.Asserter
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	Arrival    config.ArrivalConfig
	Target     config.TargetConfig
	Catalog    *Catalog
}

// Base holds the behaviour every page shares. Concrete pages embed it.
type Base struct {
	Deps
	name    string
	logger  *zap.Logger
	arrival *Arrival
}

func newBase(d Deps, name string) Base {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	logger := d.Logger.Named(name)
	return Base{
		Deps:    d,
		name:    name,
		logger:  logger,
		arrival: NewArrival(d.Waiter, d.Interactor, d.Arrival, d.Metrics, logger),
	}
}

func (b *Base) Name() string { return b.name }

// StoreDetails is the default for pages with nothing to store.
func (b *Base) StoreDetails(ctx context.Context, sc *scenario.Context) error {
	b.logger.Warn("StoreDetails is not implemented for this page.")
	return nil
}

// loc returns the catalog override for the named element, or def.
func (b *Base) loc(element string, def driver.Locator) driver.Locator {
	return b.Catalog.Lookup(b.name, element, def)
}

func (b *Base) handle(ctx context.Context, msg string, err error) error {
	return b.Handler.Handle(ctx, msg, err, b.name+"Page")
}

var storeRetryKinds = []driver.ErrorKind{driver.KindStale, driver.KindNoSuchElement}

// StoreDetailsWithRetries waits for the document to load and calls
// p.StoreDetails, retrying stale or missing elements after a short sleep.
func (b *Base) StoreDetailsWithRetries(ctx context.Context, p Page, sc *scenario.Context) error {
	attempts := b.Arrival.StoreAttempts
	var last error
	for n := 1; n <= attempts; n++ {
		b.logger.Info(fmt.Sprintf("About to store details : try %d of %d", n, attempts))
		err := b.Waiter.PageReady(ctx, b.Waiter.Presets().Default)
		if err == nil {
			err = p.StoreDetails(ctx, sc)
		}
		if err == nil {
			b.logger.Info(fmt.Sprintf("Successfully stored details on try %d of %d", n, attempts))
			return nil
		}
		if !driver.IsKind(err, storeRetryKinds...) || ctx.Err() != nil {
			return b.handle(ctx, "Page not stored", err)
		}
		last = err
		b.logger.Error(fmt.Sprintf("Failed to store details on try %d of %d", n, attempts), zap.Error(err))
		if n < attempts {
			if err := b.Waiter.Sleep(ctx, b.Arrival.StoreDelay); err != nil {
				return b.handle(ctx, "Page not stored", err)
			}
		}
	}
	return b.handle(ctx, "Page not stored", fmt.Errorf("%w storing details after %d tries: %w", interact.ErrRetryBudgetExceeded, attempts, last))
}

// ValidateMessageContains asserts the toast shown after a save contains message.
func (b *Base) ValidateMessageContains(ctx context.Context, message string) error {
	return b.validateText(ctx, b.loc("toast", ToastMessage), "ToastMessage contains >>> ", "Issue at Validating TOASTMESSAGE contains > ", message)
}

// ValidateErrorMessage asserts the page's error panel contains message.
func (b *Base) ValidateErrorMessage(ctx context.Context, message string) error {
	return b.validateText(ctx, b.loc("error", ErrorMessage), "Error Message contains >>> ", "Issue at Validating ERRORMESSAGE contains > ", message)
}

func (b *Base) validateText(ctx context.Context, loc driver.Locator, assertPrefix, failPrefix, message string) error {
	el, err := b.Waiter.Visible(ctx, waiter.On(loc), b.Waiter.Presets().Default)
	if err != nil {
		return b.handle(ctx, failPrefix+message, err)
	}
	text, err := b.Waiter.Driver().Text(ctx, el)
	if err != nil {
		return b.handle(ctx, failPrefix+message, err)
	}
	return b.Asserter.True(assertPrefix+message, strings.Contains(text, message))
}

// ValidateDOMContains asserts the page body contains message.
func (b *Base) ValidateDOMContains(ctx context.Context, message string) error {
	el, err := b.Waiter.Driver().FindElement(ctx, driver.CSS("body"))
	if err != nil {
		return b.handle(ctx, "Issue reading the page body", err)
	}
	text, err := b.Waiter.Driver().Text(ctx, el)
	if err != nil {
		return b.handle(ctx, "Issue reading the page body", err)
	}
	return b.Asserter.True("DOM contains message >> "+message, strings.Contains(text, message))
}

// EditObjectValidation asserts the Edit button is present exactly when can is true.
func (b *Base) EditObjectValidation(ctx context.Context, can bool) error {
	exists := b.Waiter.ExistsAfterSettle(ctx, b.loc("edit", EditButton))
	if can {
		return b.Asserter.True("Edit button in page should exist", exists)
	}
	return b.Asserter.True("Edit button in page should not exist", !exists)
}

// ObjectID reads the record id from the current URL.
func (b *Base) ObjectID(ctx context.Context) (string, error) {
	u, err := b.Waiter.Driver().CurrentURL(ctx)
	if err != nil {
		return "", err
	}
	b.logger.Debug("Reading object id.", zap.String("url", u))
	return ObjectIDFromLightningURL(u)
}

// objectClick waits up to timeout for loc to be present and clicks it through
// script, which Lightning menus and tabs accept when a native click does not.
func (b *Base) objectClick(ctx context.Context, loc driver.Locator, timeout time.Duration) error {
	el, err := b.Waiter.Present(ctx, loc, timeout)
	if err != nil {
		return err
	}
	return b.Interactor.ScriptClick(ctx, el)
}
