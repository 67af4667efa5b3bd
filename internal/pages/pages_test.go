package pages

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xkilldash9x/bolt/internal/classify"
	"github.com/xkilldash9x/bolt/internal/driver"
	"github.com/xkilldash9x/bolt/internal/interact"
	"github.com/xkilldash9x/bolt/internal/mocks"
	"github.com/xkilldash9x/bolt/internal/scenario"
	"github.com/xkilldash9x/bolt/internal/waiter"
)

const lightningHome = "https://org.lightning.force.com/lightning/page/home"

func newScenario(t *testing.T) *scenario.Context {
	t.Helper()
	sc, err := scenario.NewContext("Smoke", []string{"@Smoke", "@SMK-001"}, epoch)
	require.NoError(t, err)
	return sc
}

func TestHome(t *testing.T) {
	ctx := context.Background()

	t.Run("arrival", func(t *testing.T) {
		f := newFixture(t)
		f.drv.SetURL(lightningHome)
		f.drv.SetTitle(HomeTitle)
		f.drv.Add(homeLogo, mocks.Visible(""))

		home := NewHome(f.deps)
		require.NoError(t, home.ConfirmArrival(ctx))
		assert.Equal(t, "https://org.lightning.force.com/", home.InstanceURL())
		assert.Equal(t, []time.Duration{5 * time.Second}, f.clk.Sleeps(), "only the initial settle")

		sc := newScenario(t)
		require.NoError(t, home.StoreDetailsWithRetries(ctx, home, sc))
		assert.Equal(t, "https://org.lightning.force.com/", sc.Value(KeyInstanceURL))
	})

	t.Run("maintenance notice first", func(t *testing.T) {
		f := newFixture(t)
		f.drv.SetURL(lightningHome)
		f.drv.SetTitle(HomeTitle)
		f.drv.Add(homeLogo, mocks.Visible(""))
		f.drv.Add(maintenanceBox, mocks.Visible("Scheduled Maintenance"))
		cont := f.drv.Add(maintenanceContinue, mocks.Visible("Continue"))

		require.NoError(t, NewHome(f.deps).ConfirmArrival(ctx))
		assert.Equal(t, 1, cont.Clicks)
		assert.Equal(t, []time.Duration{2 * time.Second, 5 * time.Second}, f.clk.Sleeps())
	})

	t.Run("title fixed by a refresh", func(t *testing.T) {
		f := newFixture(t)
		f.drv.SetURL(lightningHome)
		f.drv.SetTitle("Lightning Experience")
		f.drv.Add(homeLogo, mocks.Visible(""))
		f.drv.RefreshHook = func() error {
			f.drv.SetTitle(HomeTitle)
			return nil
		}

		require.NoError(t, NewHome(f.deps).ConfirmArrival(ctx))
		assert.Equal(t, 1, f.drv.Calls("refresh"))
	})

	t.Run("never loads", func(t *testing.T) {
		f := newFixture(t)
		f.drv.SetURL(lightningHome)

		err := NewHome(f.deps).ConfirmArrival(ctx)
		require.Error(t, err)
		assert.True(t, classify.IsSkip(err), "technical failures are skipped by default")

		var te *waiter.TimeoutError
		assert.ErrorAs(t, err, &te)
		assert.Equal(t, f.cfg.Arrival().RefreshAttempts, f.drv.Calls("refresh"))
		assert.Equal(t, 1, f.summary.FilterMessageSnippet("Salesforce home page not loaded").Len())
	})

	t.Run("search", func(t *testing.T) {
		f := newFixture(t)
		box := f.drv.Add(globalSearch, mocks.Visible(""))
		result := f.drv.Add(SearchResultXPath("Acme"), mocks.Visible("Acme"))

		require.NoError(t, NewHome(f.deps).SearchFor(ctx, "Acme"))
		assert.Equal(t, "Acme", box.Value)
		assert.Equal(t, 1, box.Clicks)
		assert.Equal(t, 1, result.Clicks)
	})
}

func TestLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("go to", func(t *testing.T) {
		f := newFixture(t)
		f.deps.Target.URL = "https://test.salesforce.com"
		require.NoError(t, NewLogin(f.deps, nil).GoTo(ctx))

		u, err := f.drv.CurrentURL(ctx)
		require.NoError(t, err)
		assert.Equal(t, "https://test.salesforce.com", u)
	})

	t.Run("no url", func(t *testing.T) {
		f := newFixture(t)
		f.deps.Target.URL = ""
		err := NewLogin(f.deps, nil).GoTo(ctx)
		assert.ErrorIs(t, err, ErrNoTargetURL)
		assert.Zero(t, f.drv.Calls("navigate"))
	})

	t.Run("signs out a leftover session", func(t *testing.T) {
		f := newFixture(t)
		f.drv.Add(usernameBox, &mocks.FakeElement{Displayed: true, Enabled: true, AppearAt: epoch.Add(70 * time.Second)})
		menu := f.drv.Add(userMenuButton, mocks.Visible(""))
		logout := f.drv.Add(logoutLink, mocks.Visible("Log Out"))

		login := NewLogin(f.deps, NewNavigationPanel(f.deps))
		require.NoError(t, login.ConfirmArrival(ctx))
		assert.Equal(t, 1, menu.Clicks)
		assert.Equal(t, 1, logout.Clicks)
	})

	t.Run("credentials", func(t *testing.T) {
		f := newFixture(t)
		f.deps.Target.Username = "admin@example.com"
		f.deps.Target.Password = "s3cret"
		user := f.drv.Add(usernameBox, mocks.Visible(""))
		pass := f.drv.Add(passwordBox, mocks.Visible(""))
		submit := f.drv.Add(loginButton, mocks.Visible(" Submit "))

		login := NewLogin(f.deps, nil)
		require.NoError(t, login.Login(ctx, "System Administrator"))
		assert.Equal(t, "admin@example.com", user.Value)
		assert.Equal(t, []string{"admin@example.com", driver.KeyTab}, user.Keys)
		assert.Equal(t, "s3cret", pass.Value)
		assert.Equal(t, []string{"s3cret", driver.KeyEscape}, pass.Keys)
		assert.Equal(t, 1, submit.Clicks)

		sc := newScenario(t)
		require.NoError(t, login.StoreDetails(ctx, sc))
		assert.Equal(t, "System Administrator", sc.Value(KeyUser))
	})

	t.Run("missing credentials", func(t *testing.T) {
		f := newFixture(t)
		f.deps.Target.Username = ""
		err := NewLogin(f.deps, nil).Login(ctx, "System Administrator")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "credentials for \"System Administrator\" are not configured")
		assert.Zero(t, f.drv.Calls("sendkeys"))
	})
}

// launcher puts a working App Launcher with the given apps on the page.
func launcher(f *fixture, apps ...string) (search *mocks.FakeElement, links []*mocks.FakeElement) {
	f.drv.Add(waffleIcon, mocks.Visible(""))
	f.drv.Add(viewAllApps, mocks.Visible("View All"))
	search = f.drv.Add(searchAppsBox, mocks.Visible(""))
	for _, app := range apps {
		links = append(links, f.drv.Add(appLauncherLinks, mocks.Visible(app)))
	}
	return search, links
}

func TestNavigationPanel(t *testing.T) {
	ctx := context.Background()

	t.Run("tab", func(t *testing.T) {
		f := newFixture(t)
		tab := f.drv.Add(TabXPath("Accounts"), mocks.Visible("Accounts"))
		require.NoError(t, NewNavigationPanel(f.deps).ClickTab(ctx, "Accounts"))
		assert.Equal(t, 1, tab.Clicks)
		assert.Zero(t, f.drv.Calls("refresh"))
	})

	t.Run("arrival", func(t *testing.T) {
		f := newFixture(t)
		f.drv.Add(TabXPath("Accounts"), mocks.Visible("Accounts"))
		require.NoError(t, NewNavigationPanel(f.deps).ConfirmArrival(ctx))
	})

	t.Run("app launcher", func(t *testing.T) {
		f := newFixture(t)
		search, links := launcher(f, "Sales", "Billing")

		require.NoError(t, NewNavigationPanel(f.deps).ClickWaffleAndNavigate(ctx, "Billing"))
		assert.Equal(t, "Billing", search.Value)
		assert.Zero(t, links[0].Clicks)
		assert.Equal(t, 1, links[1].Clicks)
		assert.Zero(t, f.drv.Calls("refresh"))
	})

	t.Run("app launcher lists nothing", func(t *testing.T) {
		f := newFixture(t)
		launcher(f)

		err := NewNavigationPanel(f.deps).ClickWaffleAndNavigate(ctx, "Billing")
		require.Error(t, err)
		assert.ErrorIs(t, err, interact.ErrRetryBudgetExceeded)
		assert.Contains(t, err.Error(), "maximum retry count exceeded trying to navigate to page Billing")
		assert.Equal(t, 3, f.drv.Calls("refresh"))
		assert.Equal(t, 3, f.countSleeps(10*time.Second))
	})

	t.Run("logout", func(t *testing.T) {
		f := newFixture(t)
		menu := f.drv.Add(userMenuButton, mocks.Visible(""))
		logout := f.drv.Add(logoutLink, mocks.Visible("Log Out"))
		f.drv.OpenAlert()

		require.NoError(t, NewNavigationPanel(f.deps).Logout(ctx))
		assert.Equal(t, 1, menu.Clicks)
		assert.Equal(t, 1, logout.Clicks)
	})

	t.Run("logout link never shows", func(t *testing.T) {
		f := newFixture(t)
		menu := f.drv.Add(userMenuButton, mocks.Visible(""))

		err := NewNavigationPanel(f.deps).Logout(ctx)
		require.Error(t, err)
		assert.True(t, classify.IsSkip(err))
		var te *waiter.TimeoutError
		assert.ErrorAs(t, err, &te)
		assert.Equal(t, 2*logoutTries, menu.Clicks, "the menu is reopened once per try")
	})

	t.Run("notifications", func(t *testing.T) {
		f := newFixture(t)
		a := f.drv.Add(dismissNotification, mocks.Visible(""))
		b := f.drv.Add(dismissNotification, mocks.Visible(""))

		assert.Equal(t, 2, NewNavigationPanel(f.deps).ClearNotifications(ctx))
		assert.Equal(t, 1, a.Clicks)
		assert.Equal(t, 1, b.Clicks)
	})

	t.Run("page visibility", func(t *testing.T) {
		f := newFixture(t)
		nav := NewNavigationPanel(f.deps)
		assert.NoError(t, nav.ValidatePageVisibility(ctx, false, "Billing"))

		link := f.drv.Add(AppLinkXPath("Billing"), mocks.Visible("Billing"))
		var ae *classify.AssertionError
		assert.ErrorAs(t, nav.ValidatePageVisibility(ctx, false, "Billing"), &ae)

		require.NoError(t, nav.ValidatePageVisibility(ctx, true, "Billing"))
		assert.Equal(t, 1, link.Clicks)
	})
}

type flakyPage struct {
	*NavigationPanel
	failures int
	calls    int
}

func (p *flakyPage) StoreDetails(ctx context.Context, sc *scenario.Context) error {
	p.calls++
	if p.calls <= p.failures {
		return driver.NewError(driver.KindStale, "text", "record name", nil)
	}
	sc.Set("record", "Acme")
	return nil
}

func TestStoreDetailsWithRetries(t *testing.T) {
	ctx := context.Background()

	t.Run("stale then stored", func(t *testing.T) {
		f := newFixture(t)
		p := &flakyPage{NavigationPanel: NewNavigationPanel(f.deps), failures: 2}
		sc := newScenario(t)

		require.NoError(t, p.StoreDetailsWithRetries(ctx, p, sc))
		assert.Equal(t, "Acme", sc.Value("record"))
		assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second}, f.clk.Sleeps())
	})

	t.Run("always stale", func(t *testing.T) {
		f := newFixture(t)
		p := &flakyPage{NavigationPanel: NewNavigationPanel(f.deps), failures: 10}

		err := p.StoreDetailsWithRetries(ctx, p, newScenario(t))
		assert.ErrorIs(t, err, interact.ErrRetryBudgetExceeded)
		assert.True(t, driver.IsKind(err, driver.KindStale))
		assert.Equal(t, 3, p.calls)
	})

	t.Run("other failures are not retried", func(t *testing.T) {
		f := newFixture(t)
		p := &flakyPage{NavigationPanel: NewNavigationPanel(f.deps)}
		f.drv.SetReadyState("loading")

		err := p.StoreDetailsWithRetries(ctx, p, newScenario(t))
		var te *waiter.TimeoutError
		assert.ErrorAs(t, err, &te)
		assert.Zero(t, p.calls)
	})
}

func TestValidations(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	nav := NewNavigationPanel(f.deps)

	f.drv.Add(ToastMessage, mocks.Visible(`Account "Acme" was created.`))
	assert.NoError(t, nav.ValidateMessageContains(ctx, "was created"))

	var ae *classify.AssertionError
	require.ErrorAs(t, nav.ValidateMessageContains(ctx, "was saved"), &ae)
	assert.Equal(t, "ToastMessage contains >>> was saved", ae.Description)

	f.drv.Add(driver.CSS("body"), mocks.Visible("Welcome to Acme"))
	assert.NoError(t, nav.ValidateDOMContains(ctx, "Welcome"))
	assert.True(t, errors.As(nav.ValidateDOMContains(ctx, "Goodbye"), &ae))

	assert.NoError(t, nav.EditObjectValidation(ctx, false))
	f.drv.Add(EditButton, mocks.Visible("Edit"))
	assert.NoError(t, nav.EditObjectValidation(ctx, true))

	f.drv.SetURL("https://org.lightning.force.com/lightning/r/Account/0019E00000rrJBNQA2/view")
	id, err := nav.ObjectID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "0019E00000rrJBNQA2", id)

	assert.NoError(t, nav.StoreDetails(ctx, newScenario(t)), "pages without details store nothing")
}
