package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/xkilldash9x/bolt/internal/config"
	"github.com/xkilldash9x/bolt/internal/driver"
	"github.com/xkilldash9x/bolt/internal/observability"
	"github.com/xkilldash9x/bolt/internal/runctx"
	"github.com/xkilldash9x/bolt/internal/scenario"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// launchBrowser starts the browser a run drives. Tests swap in a fake.
var launchBrowser = func(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (driver.Driver, error) {
	return driver.Launch(ctx, cfg, logger)
}

// runOptions are the context options a run is built with. Tests add a fake clock.
var runOptions []runctx.Option

// newRunCmd creates the `run` command.
func newRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Runs the smoke scenarios against a Salesforce org",
		Long: `Launches Chrome, logs in to the org, confirms the home page, optionally opens an
app through the App Launcher, and logs out. JUnit and JSON reports are written to the
configured locations. The command fails when any scenario failed; skipped scenarios
do not count as failures.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFrom(cmd.Context())
			if err != nil {
				return err
			}
			report, err := runScenarios(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			cmd.Printf("Run %s complete: %d passed, %d failed, %d skipped.\n", report.RunID, report.Passed, report.Failed, report.Skipped)
			if report.Failed > 0 {
				return fmt.Errorf("%d of %d scenarios failed", report.Failed, len(report.Scenarios))
			}
			return nil
		},
	}

	runCmd.Flags().String("url", "", "Salesforce login URL. (Overrides config/env)")
	runCmd.Flags().String("app", "", "App to open through the App Launcher after login.")
	runCmd.Flags().Bool("headless", true, "Run Chrome without a window. (Overrides config/env)")
	runCmd.Flags().Bool("skip-technical-errors", true, "Mark scenarios that hit technical errors as skipped instead of failed.")
	runCmd.Flags().Bool("metrics", false, "Serve Prometheus metrics while the run is in progress.")
	return runCmd
}

// runScenarios launches the browser and runs the smoke scenarios while the
// metrics endpoint, when enabled, serves alongside. The endpoint stops when
// the scenarios finish.
func runScenarios(ctx context.Context, cfg *config.Config) (scenario.Report, error) {
	logger := observability.GetLogger()
	parent := ctx

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	drv, err := launchBrowser(ctx, cfg.Browser(), logger)
	if err != nil {
		return scenario.Report{}, fmt.Errorf("failed to launch browser: %w", err)
	}
	rc, err := runctx.New(cfg, drv, runOptions...)
	if err != nil {
		if c, ok := drv.(io.Closer); ok {
			_ = c.Close()
		}
		return scenario.Report{}, fmt.Errorf("failed to initialize run: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	if m := cfg.Metrics(); m.Enabled {
		logger.Info("Serving metrics.", zap.String("address", m.ListenAddress), zap.String("path", m.Path))
		g.Go(func() error {
			return rc.Metrics.Serve(gctx, m.ListenAddress, m.Path)
		})
	}

	var report scenario.Report
	g.Go(func() error {
		defer cancel()
		role := cfg.Target().Username
		var err error
		report, err = rc.Execute(gctx, rc.SmokeScenarios(role, cfg.Target().App))
		return err
	})

	if err := g.Wait(); err != nil {
		return report, err
	}
	// An interrupted run still writes its reports, then reports the interruption.
	return report, parent.Err()
}
