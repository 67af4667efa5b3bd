package pages

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/xkilldash9x/bolt/internal/driver"
	"github.com/xkilldash9x/bolt/internal/interact"
	"github.com/xkilldash9x/bolt/internal/scenario"
	"github.com/xkilldash9x/bolt/internal/waiter"
	"go.uber.org/zap"
)

// HomeTitle is the document title of the Lightning home page.
const HomeTitle = "Home | Salesforce"

// KeyInstanceURL is the scenario value holding the org's base URL.
const KeyInstanceURL = "instanceUrl"

var (
	homeLogo            = driver.CSS(".slds-global-header__logo").Named("Home page logo")
	maintenanceBox      = driver.XPath("//div[@id='alert']//span[text()='Scheduled Maintenance']").Named("Scheduled Maintenance notice")
	maintenanceContinue = driver.XPath("//div[@id='message']/form/p/a").Named("Scheduled Maintenance continue link")
	sessionEndedBanner  = driver.XPath("//h2/lightning-formatted-text[text()='Your session has ended']").Named("Session Ended error")
	globalSearch        = driver.XPath("//input[@title='Search Salesforce']").Named("Search Salesforce box")
)

const searchResultClickable = 7 * time.Second

// Home is the Lightning home page.
type Home struct {
	Base

	mu          sync.Mutex
	instanceURL string
}

func NewHome(d Deps) *Home {
	return &Home{Base: newBase(d, "Home")}
}

// ConfirmArrival clicks through a maintenance notice if one is up, gives the
// dashboard time to render, and waits for the logo, refreshing when it is
// missing. It then clears a stale-session banner and checks the title.
func (h *Home) ConfirmArrival(ctx context.Context) error {
	if err := h.confirm(ctx); err != nil {
		return h.handle(ctx, "Salesforce home page not loaded", err)
	}
	return nil
}

func (h *Home) confirm(ctx context.Context) error {
	if _, err := h.arrival.Maintenance(ctx, h.loc("maintenance", maintenanceBox), h.loc("maintenance_continue", maintenanceContinue)); err != nil {
		return err
	}
	if err := h.Waiter.Sleep(ctx, h.Arrival.InitialSettle); err != nil {
		return err
	}

	logo := Anchor{Locator: h.loc("logo", homeLogo)}
	if err := h.arrival.Confirm(ctx, h.name, logo, h.Waiter.Presets().Medium); err != nil {
		return err
	}

	current, err := h.Waiter.Driver().CurrentURL(ctx)
	if err != nil {
		return err
	}
	base, err := InstanceURL(current)
	if err != nil {
		return err
	}
	h.mu.Lock()
	h.instanceURL = base
	h.mu.Unlock()
	h.logger.Info("Instance URL = " + base)

	if _, err := h.arrival.SessionEnded(ctx, h.name, h.loc("session_ended", sessionEndedBanner), logo); err != nil {
		return err
	}

	err = h.Waiter.TitleContains(ctx, HomeTitle, h.Waiter.Presets().Default)
	if err == nil || !missing(ctx, err) {
		return err
	}
	h.logger.Info(fmt.Sprintf("Title not correct. Refreshing up to %d times.", h.Arrival.TitleRefreshAttempts))
	return h.Waiter.RefreshUntilTitle(ctx, HomeTitle, h.Arrival.TitleRefreshAttempts, "Home page title")
}

// InstanceURL is the org base URL seen on the last confirmed arrival, e.g.
// https://org.lightning.force.com/.
func (h *Home) InstanceURL() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.instanceURL
}

// StoreDetails saves the instance URL for later navigation.
func (h *Home) StoreDetails(ctx context.Context, sc *scenario.Context) error {
	u := h.InstanceURL()
	if u == "" {
		current, err := h.Waiter.Driver().CurrentURL(ctx)
		if err != nil {
			return err
		}
		if u, err = InstanceURL(current); err != nil {
			return err
		}
	}
	sc.Set(KeyInstanceURL, u)
	return nil
}

// SearchFor types term into global search and opens the matching suggestion.
func (h *Home) SearchFor(ctx context.Context, term string) error {
	box := h.loc("search", globalSearch)
	err := h.Interactor.Type(ctx, waiter.On(box), term, interact.WithoutSubmit())
	if err == nil {
		err = h.Interactor.Click(ctx, waiter.On(box))
	}
	var result driver.Element
	if err == nil {
		result, err = h.Waiter.Visible(ctx, waiter.On(SearchResultXPath(term)), h.Waiter.Presets().Short)
	}
	if err == nil {
		_, err = h.Waiter.Clickable(ctx, waiter.Elem(result), searchResultClickable)
	}
	if err == nil {
		err = h.Interactor.Click(ctx, waiter.Elem(result))
	}
	if err != nil {
		return h.handle(ctx, "Issue searching for: "+term, err)
	}
	h.logger.Debug("Opened search result.", zap.String("term", term))
	return nil
}
