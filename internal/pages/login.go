package pages

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/xkilldash9x/bolt/internal/driver"
	"github.com/xkilldash9x/bolt/internal/interact"
	"github.com/xkilldash9x/bolt/internal/scenario"
	"github.com/xkilldash9x/bolt/internal/waiter"
	"go.uber.org/zap"
)

// KeyUser is the scenario value holding the role last logged in.
const KeyUser = "user"

var (
	usernameBox = driver.CSS("#username").Named("username box")
	passwordBox = driver.CSS("#password").Named("password box")
	loginButton = driver.XPath("//button[text()=' Submit ']").Named("Submit button")
)

// ErrNoTargetURL is returned by GoTo when no org URL is configured.
var ErrNoTargetURL = errors.New("target url not specified")

// Login is the Salesforce sign-in page.
type Login struct {
	Base
	nav  *NavigationPanel
	user string
}

// NewLogin creates the login page. nav is used to sign out a session left
// over from an earlier scenario.
func NewLogin(d Deps, nav *NavigationPanel) *Login {
	return &Login{Base: newBase(d, "Login"), nav: nav, user: "Not Assigned"}
}

// GoTo opens the configured org URL.
func (l *Login) GoTo(ctx context.Context) error {
	url := l.Target.URL
	if url == "" {
		return l.handle(ctx, "Could not open the login page", ErrNoTargetURL)
	}
	l.logger.Info("Salesforce URL to launch = " + url)
	if err := l.Waiter.Driver().Navigate(ctx, url); err != nil {
		return l.handle(ctx, "Could not open the login page", err)
	}
	return nil
}

// ConfirmArrival waits for the username box. A browser still signed in from
// an earlier scenario lands past the login form, so on a timeout it logs out
// and waits again.
func (l *Login) ConfirmArrival(ctx context.Context) error {
	username := waiter.On(l.loc("username", usernameBox))
	_, err := l.Waiter.Visible(ctx, username, l.Waiter.Presets().Default)
	if err != nil {
		if !missing(ctx, err) {
			return l.handle(ctx, "Could not navigate to Login page", err)
		}
		l.logger.Info("Exception awaiting arrival on login page, attempting logging out....")
		if l.nav == nil {
			return l.handle(ctx, "Could not navigate to Login page", err)
		}
		if err := l.nav.Logout(ctx); err != nil {
			return err
		}
		if _, err := l.Waiter.Visible(ctx, username, l.Waiter.Presets().Default); err != nil {
			return l.handle(ctx, "Could not navigate to Login page", err)
		}
	}

	if pause := l.Arrival.LoginSessionWorkaround; pause > 0 {
		l.logger.Info(fmt.Sprintf("OVERNIGHT SUITE - sleeping for %s to work around Session-related errors", pause))
		if err := l.Waiter.Sleep(ctx, pause); err != nil {
			return err
		}
	}
	return nil
}

// Login signs in with the configured credentials. role only labels the
// session in logs and in the scenario values.
func (l *Login) Login(ctx context.Context, role string) error {
	l.user = role
	user, pass := l.Target.Username, l.Target.Password
	if user == "" || pass == "" {
		return l.handle(ctx, "Could not login to Salesforce", fmt.Errorf("credentials for %q are not configured", strings.TrimSpace(role)))
	}
	l.logger.Info("Logging in.", zap.String("role", role))

	err := l.Interactor.Type(ctx, waiter.On(l.loc("username", usernameBox)), user)
	if err == nil {
		err = l.Interactor.ClickWithHover(ctx, waiter.On(l.loc("submit", loginButton)), l.Waiter.Presets().Short)
	}
	if err == nil {
		err = l.Interactor.Type(ctx, waiter.On(l.loc("password", passwordBox)), pass, interact.SubmitWith(driver.KeyEscape))
	}
	if err != nil {
		return l.handle(ctx, "Could not login to Salesforce", err)
	}
	return nil
}

// StoreDetails records the role last logged in.
func (l *Login) StoreDetails(ctx context.Context, sc *scenario.Context) error {
	sc.Set(KeyUser, l.user)
	return nil
}
