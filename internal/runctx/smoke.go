package runctx

import (
	"context"
	"fmt"

	"github.com/xkilldash9x/bolt/internal/pages"
	"github.com/xkilldash9x/bolt/internal/scenario"
	"go.uber.org/zap"
)

// KeyHomeURL is the scenario value holding the home page URL after login.
const KeyHomeURL = "homeUrl"

// SmokeScenarios returns the built-in smoke run: log in, confirm the home
// page, optionally open app through the App Launcher, and log out. role only
// labels the session.
func (rc *RunContext) SmokeScenarios(role, app string) []scenario.Scenario {
	deps := rc.PageDeps()
	nav := pages.NewNavigationPanel(deps)
	login := pages.NewLogin(deps, nav)
	home := pages.NewHome(deps)
	sc := rc.Config.Scenario()

	steps := []scenario.Step{
		{Name: "open the login page", Run: func(ctx context.Context, _ *scenario.Context) error {
			return login.GoTo(ctx)
		}},
		{Name: "confirm the login page", Run: func(ctx context.Context, _ *scenario.Context) error {
			return login.ConfirmArrival(ctx)
		}},
		{Name: "log in as " + role, Run: func(ctx context.Context, s *scenario.Context) error {
			if err := login.Login(ctx, role); err != nil {
				return err
			}
			return login.StoreDetails(ctx, s)
		}},
		{Name: "confirm the home page", Run: func(ctx context.Context, _ *scenario.Context) error {
			return home.ConfirmArrival(ctx)
		}},
		{Name: "store home page details", Run: func(ctx context.Context, s *scenario.Context) error {
			if err := home.StoreDetailsWithRetries(ctx, home, s); err != nil {
				return err
			}
			_, err := s.StoreURL(ctx, rc.Driver, rc.Clock, rc.Logger, KeyHomeURL, sc.URLAttempts, sc.URLDelay)
			return err
		}},
	}
	if app != "" {
		steps = append(steps,
			scenario.Step{Name: "open " + app + " from the App Launcher", Run: func(ctx context.Context, _ *scenario.Context) error {
				return nav.ClickWaffleAndNavigate(ctx, app)
			}},
			scenario.Step{Name: "confirm the navigation panel", Run: func(ctx context.Context, _ *scenario.Context) error {
				nav.ClearNotifications(ctx)
				return nav.ConfirmArrival(ctx)
			}},
		)
	}
	steps = append(steps, scenario.Step{Name: "log out", Run: func(ctx context.Context, _ *scenario.Context) error {
		return nav.Logout(ctx)
	}})

	return []scenario.Scenario{{
		Name:  "Log in, land on home and log out",
		Tags:  []string{"@Smoke", "@SMK-001"},
		Steps: steps,
	}}
}

// Execute runs scenarios, closes the run and writes the configured JSON and
// JUnit reports. A report that could not be written is an error; failed
// scenarios are not, the caller decides with Report.OK.
func (rc *RunContext) Execute(ctx context.Context, scenarios []scenario.Scenario) (scenario.Report, error) {
	rc.Logger.Info(fmt.Sprintf("Running %d scenario(s).", len(scenarios)), zap.String("run_id", rc.ID.String()))
	results := rc.Runner.RunAll(ctx, scenarios)

	times, closeErr := rc.Close()
	if closeErr != nil {
		rc.Logger.Warn("Error during shutdown", zap.Error(closeErr))
	}
	report := scenario.NewReport(rc.ID.String(), rc.Clock.Now(), results, times)

	cfg := rc.Config.Scenario()
	if cfg.JSONReport != "" {
		if err := report.WriteJSON(cfg.JSONReport); err != nil {
			return report, fmt.Errorf("writing json report: %w", err)
		}
	}
	if cfg.JUnitReport != "" {
		if err := report.WriteJUnit(cfg.JUnitReport); err != nil {
			return report, fmt.Errorf("writing junit report: %w", err)
		}
	}

	rc.Summary.Info(fmt.Sprintf("Run %s finished: %d passed, %d failed, %d skipped", rc.ID, report.Passed, report.Failed, report.Skipped))
	return report, nil
}
