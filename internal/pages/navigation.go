package pages

import (
	"context"
	"fmt"
	"time"

	"github.com/xkilldash9x/bolt/internal/driver"
	"github.com/xkilldash9x/bolt/internal/interact"
	"github.com/xkilldash9x/bolt/internal/waiter"
	"go.uber.org/zap"
)

var (
	waffleIcon          = driver.XPath("//div[@class='slds-icon-waffle']").Named("App Launcher")
	viewAllApps         = driver.XPath("//button[@class='slds-button'][contains(text(),'View All')]").Named("View All button")
	searchAppsBox       = driver.XPath("//input[contains(@placeholder,'Search apps')]").Named("Search apps box")
	appLauncherLinks    = driver.XPath("//p[@class='slds-truncate']").Named("App Launcher links")
	userMenuButton      = driver.XPath("//span/img[@title='User']").Named("User menu")
	logoutLink          = driver.XPath("//a[text()='Log Out']").Named("Log Out link")
	dismissNotification = driver.XPath("//div[@class='slds-notification-container unsCardQueue']//button[@title='Dismiss notification']").Named("Dismiss notification button")
)

const (
	navigationTries = 3
	logoutTries     = 3

	launcherSettle     = 2 * time.Second
	launcherRerender   = 10 * time.Second
	launcherGridRedraw = 5 * time.Second
	viewAllClickable   = 15 * time.Second
	appLinkClickable   = 5 * time.Second
	logoutClickable    = 10 * time.Second
	logoutRetryWait    = 5 * time.Second
)

// NavigationPanel is the header shared by every Lightning page: the App
// Launcher, the tab bar and the user menu.
type NavigationPanel struct {
	Base
}

func NewNavigationPanel(d Deps) *NavigationPanel {
	return &NavigationPanel{Base: newBase(d, "NavigationPanel")}
}

// ConfirmArrival waits for the Accounts tab.
func (n *NavigationPanel) ConfirmArrival(ctx context.Context) error {
	anchor := Anchor{Locator: n.loc("accounts_tab", TabXPath("Accounts"))}
	if err := n.arrival.Confirm(ctx, n.name, anchor, n.Waiter.Presets().Default); err != nil {
		return n.handle(ctx, "Navigation panel not loaded", err)
	}
	return nil
}

// ClickWaffleAndNavigate opens app through the App Launcher. A launcher that
// never lists any app is refreshed, up to three tries in all.
func (n *NavigationPanel) ClickWaffleAndNavigate(ctx context.Context, app string) error {
	available := false
	for try := 1; try <= navigationTries; try++ {
		n.logger.Info(fmt.Sprintf("Navigating to page using waffle icon : %s : try %d of %d", app, try, navigationTries))
		if err := n.launch(ctx, launcherRerender); err != nil {
			return n.handle(ctx, "Could not click app link "+app, err)
		}
		if err := n.Interactor.Type(ctx, waiter.On(n.loc("search_apps", searchAppsBox)), app, interact.WithoutSubmit()); err != nil {
			return n.handle(ctx, "Could not click app link "+app, err)
		}

		_, err := n.Waiter.Present(ctx, n.loc("app_links", appLauncherLinks), n.Waiter.Presets().Default)
		if err == nil {
			available = true
			break
		}
		if !missing(ctx, err) {
			return n.handle(ctx, "Could not click app link "+app, err)
		}
		if rerr := n.Waiter.Driver().Refresh(ctx); rerr != nil && ctx.Err() != nil {
			return n.handle(ctx, "Could not click app link "+app, rerr)
		}
		if serr := n.Waiter.Sleep(ctx, launcherRerender); serr != nil {
			return n.handle(ctx, "Could not click app link "+app, serr)
		}
		n.logger.Error(fmt.Sprintf("Could not launch page on try %d of %d", try, navigationTries), zap.Error(err))
	}
	if !available {
		return n.handle(ctx, "Could not click app link "+app, fmt.Errorf("%w trying to navigate to page %s", interact.ErrRetryBudgetExceeded, app))
	}

	if err := n.openAppLink(ctx, app); err != nil {
		return n.handle(ctx, "Could not click app link "+app, err)
	}
	n.logger.Info("Just clicked app link " + app)
	return nil
}

func (n *NavigationPanel) openAppLink(ctx context.Context, app string) error {
	links, err := n.Waiter.Driver().FindElements(ctx, n.loc("app_links", appLauncherLinks))
	if err != nil {
		return err
	}
	for _, link := range links {
		text, err := n.Waiter.Driver().Text(ctx, link)
		if err != nil || text != app {
			continue
		}
		if _, err := n.Waiter.Clickable(ctx, waiter.Elem(link), appLinkClickable); err != nil {
			return err
		}
		return n.Interactor.ScriptClick(ctx, link)
	}
	return driver.NewError(driver.KindNoSuchElement, "find app link", app, nil)
}

// ClickWaffleGrid opens the App Launcher's full list of apps.
func (n *NavigationPanel) ClickWaffleGrid(ctx context.Context) error {
	if err := n.launch(ctx, launcherGridRedraw); err != nil {
		return n.handle(ctx, "Could not find the app search page ", err)
	}
	return nil
}

// launch opens the App Launcher and its View All list and waits for the app
// search box. A driver failure on the way refreshes and tries again with
// hover clicks; a search box that does not show gets one more click after
// the page has had rerender to redraw.
func (n *NavigationPanel) launch(ctx context.Context, rerender time.Duration) error {
	waffle := n.loc("waffle", waffleIcon)
	viewAll := n.loc("view_all", viewAllApps)

	err := n.openLauncher(ctx, waffle, viewAll)
	if err != nil {
		if ctx.Err() != nil || !driver.IsDriverError(err) {
			return err
		}
		n.logger.Warn("Opening the App Launcher failed, refreshing and trying again.", zap.Error(err))
		if err := n.reopenLauncher(ctx, waffle, viewAll); err != nil {
			return err
		}
	}

	search := waiter.On(n.loc("search_apps", searchAppsBox))
	if err := n.Waiter.Sleep(ctx, time.Second); err != nil {
		return err
	}
	_, err = n.Waiter.Visible(ctx, search, n.Waiter.Presets().Short)
	if err == nil {
		return nil
	}
	if !driver.IsKind(err, driver.KindTimeout, driver.KindStale) || ctx.Err() != nil {
		return err
	}
	n.logger.Warn("Exception waiting for searchApps text box - retrying click of waffle", zap.Error(err))
	if err := n.Waiter.Sleep(ctx, rerender); err != nil {
		return err
	}
	if err := n.objectClick(ctx, waffle, n.Waiter.Presets().Default); err != nil {
		return err
	}
	_, err = n.Waiter.Visible(ctx, search, n.Waiter.Presets().Short)
	return err
}

func (n *NavigationPanel) openLauncher(ctx context.Context, waffle, viewAll driver.Locator) error {
	if err := n.objectClick(ctx, waffle, n.Waiter.Presets().Default); err != nil {
		return err
	}
	if err := n.Waiter.Sleep(ctx, launcherSettle); err != nil {
		return err
	}
	el, err := n.Waiter.Clickable(ctx, waiter.On(viewAll), viewAllClickable)
	if err != nil {
		return err
	}
	return n.Interactor.ScriptClick(ctx, el)
}

func (n *NavigationPanel) reopenLauncher(ctx context.Context, waffle, viewAll driver.Locator) error {
	if err := n.Waiter.Driver().Refresh(ctx); err != nil {
		return err
	}
	if err := n.Waiter.Sleep(ctx, launcherSettle); err != nil {
		return err
	}
	if _, err := n.Waiter.Visible(ctx, waiter.On(waffle), n.Waiter.Presets().Default); err != nil {
		return err
	}
	if err := n.Interactor.ClickWithHover(ctx, waiter.On(waffle), 10*time.Second); err != nil {
		return err
	}
	if err := n.Waiter.Sleep(ctx, time.Second); err != nil {
		return err
	}
	return n.Interactor.ClickWithHover(ctx, waiter.On(viewAll), 8*time.Second)
}

// ClickTab opens a tab in the navigation bar. Tabs sit on a component that
// swallows native clicks, so this goes through the escalating robust click
// with the App Launcher as the anchor to re-wait for after a refresh.
func (n *NavigationPanel) ClickTab(ctx context.Context, tab string) error {
	n.logger.Info("Navigating to page " + tab)
	target := waiter.On(n.loc("tab_"+tab, TabXPath(tab)))
	if err := n.Interactor.RobustClick(ctx, target, n.loc("waffle", waffleIcon)); err != nil {
		return n.handle(ctx, "Could not click tab "+tab, err)
	}
	n.logger.Info("Just clicked tab " + tab)
	return nil
}

// Logout signs the current user out through the user menu, up to three tries.
func (n *NavigationPanel) Logout(ctx context.Context) error {
	var last error
	for try := 1; try <= logoutTries; try++ {
		n.logger.Info(fmt.Sprintf("Logging out - attempt %d", try))
		if last = n.logoutOnce(ctx); last == nil {
			n.logger.Info("Successfully logged out")
			return nil
		}
		n.logger.Warn(fmt.Sprintf("Couldnt log out!!! >> %d/%d", try, logoutTries), zap.Error(last))
		if ctx.Err() != nil {
			break
		}
	}
	return n.handle(ctx, "Could not logout", last)
}

func (n *NavigationPanel) logoutOnce(ctx context.Context) error {
	// An "unsaved changes" dialog blocks everything else.
	n.Waiter.AcceptAlertIfPresent(ctx)

	menu := n.loc("user_menu", userMenuButton)
	logout := n.loc("logout", logoutLink)
	if err := n.objectClick(ctx, menu, n.Waiter.Presets().Default); err != nil {
		return err
	}

	el, err := n.Waiter.Clickable(ctx, waiter.On(logout), logoutClickable)
	if err == nil {
		err = n.Interactor.ScriptClick(ctx, el)
	}
	if err == nil {
		if err := n.Waiter.Sleep(ctx, time.Second); err != nil {
			return err
		}
		n.Waiter.AcceptAlertIfPresent(ctx)
		return nil
	}
	if ctx.Err() != nil {
		return err
	}

	n.logger.Warn("Logout Failed. Try again!!!", zap.Error(err))
	if !n.Waiter.ExistsAfterSettle(ctx, logout) {
		if err := n.objectClick(ctx, menu, n.Waiter.Presets().Default); err != nil {
			return err
		}
		if err := n.Waiter.Sleep(ctx, 2*time.Second); err != nil {
			return err
		}
	}
	if el, err = n.Waiter.Clickable(ctx, waiter.On(logout), logoutRetryWait); err != nil {
		return err
	}
	return n.Interactor.ScriptClick(ctx, el)
}

// ClearNotifications dismisses every visible notification card. Failures are
// logged and otherwise ignored. It returns how many were dismissed.
func (n *NavigationPanel) ClearNotifications(ctx context.Context) int {
	buttons, err := n.Waiter.Driver().FindElements(ctx, n.loc("dismiss_notification", dismissNotification))
	if err != nil {
		n.logger.Warn("Issue clearing notifications", zap.Error(err))
		return 0
	}
	if len(buttons) > 0 {
		n.logger.Info(fmt.Sprintf("%d notification messages found. Attempting to clear them.", len(buttons)))
	}
	cleared := 0
	for _, b := range buttons {
		if err := n.Waiter.Driver().Click(ctx, b); err != nil {
			n.logger.Warn("Issue clearing notifications", zap.Error(err))
			return cleared
		}
		cleared++
	}
	return cleared
}

// ValidatePageVisibility asserts whether the App Launcher lists app. When it
// should, the link is also opened.
func (n *NavigationPanel) ValidatePageVisibility(ctx context.Context, can bool, app string) error {
	link := AppLinkXPath(app)
	if !can {
		return n.Asserter.True(app+" page link should not exist", !n.Waiter.ExistsAfterSettle(ctx, link))
	}

	if _, err := n.Waiter.Visible(ctx, waiter.On(link), n.Waiter.Presets().Short); err != nil {
		if !missing(ctx, err) {
			return n.handle(ctx, "Issue checking whether "+app+" option exists", err)
		}
		n.logger.Warn("Couldnt locate the xpath of the "+app, zap.Error(err))
		if err := n.retryLauncher(ctx, link); err != nil {
			return n.handle(ctx, "Issue checking whether "+app+" option exists", err)
		}
	}
	if err := n.Asserter.True(app+" page link exists", n.Waiter.Exists(ctx, link)); err != nil {
		return err
	}
	el, err := n.Waiter.Clickable(ctx, waiter.On(link), n.Waiter.Presets().Default)
	if err == nil {
		err = n.Interactor.ScriptClick(ctx, el)
	}
	if err != nil {
		return n.handle(ctx, "Issue checking whether "+app+" option exists", err)
	}
	return nil
}

func (n *NavigationPanel) retryLauncher(ctx context.Context, link driver.Locator) error {
	if err := n.Waiter.Driver().Refresh(ctx); err != nil {
		return err
	}
	if _, err := n.Waiter.Clickable(ctx, waiter.On(n.loc("waffle", waffleIcon)), 20*time.Second); err != nil {
		return err
	}
	if err := n.launch(ctx, launcherGridRedraw); err != nil {
		return err
	}
	_, err := n.Waiter.Visible(ctx, waiter.On(link), n.Waiter.Presets().Short)
	return err
}
