package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xkilldash9x/bolt/internal/clock"
	"github.com/xkilldash9x/bolt/internal/config"
	"github.com/xkilldash9x/bolt/internal/driver"
	"github.com/xkilldash9x/bolt/internal/mocks"
	"github.com/xkilldash9x/bolt/internal/pages"
	"github.com/xkilldash9x/bolt/internal/runctx"
	"go.uber.org/zap"
)

const runCatalog = `
pages:
  Login:
    username: {css: "#user"}
    password: {css: "#pw"}
    submit: {css: "#login"}
  Home:
    logo: {css: "#logo"}
  NavigationPanel:
    user_menu: {css: "#menu"}
    logout: {css: "#logout"}
`

// runFixture points a config file at a temp dir and swaps the browser for a
// fake driven by a fake clock.
type runFixture struct {
	dir     string
	drv     *mocks.FakeDriver
	visited []string
}

func newRunFixture(t *testing.T) *runFixture {
	t.Helper()
	dir := t.TempDir()
	catalog := filepath.Join(dir, "locators.yaml")
	require.NoError(t, os.WriteFile(catalog, []byte(runCatalog), 0o644))

	cfgYAML := fmt.Sprintf(`
logger:
  level: error
  log_file: %[1]s/bolt.log
  summary_file: %[1]s/run-summary.log
target:
  url: https://login.example.com
  username: admin@example.com
  password: s3cret
catalog:
  path: %[2]s
scenario:
  lock_file: %[1]s/LOCK
  screenshot_dir: %[1]s/screenshot
  json_report: %[1]s/bolt-summary.json
  junit_report: %[1]s/bolt-junit.xml
`, dir, catalog)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfgYAML), 0o644))

	clk := clock.NewFake(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	f := &runFixture{dir: dir, drv: mocks.NewFakeDriver(clk)}
	f.drv.NavigateHook = func(url string) error {
		f.visited = append(f.visited, url)
		return nil
	}

	prevLaunch, prevOpts := launchBrowser, runOptions
	launchBrowser = func(context.Context, config.BrowserConfig, *zap.Logger) (driver.Driver, error) {
		return f.drv, nil
	}
	runOptions = []runctx.Option{runctx.WithClock(clk)}
	t.Cleanup(func() { launchBrowser, runOptions = prevLaunch, prevOpts })
	return f
}

func (f *runFixture) configFlag() string {
	return "--config=" + filepath.Join(f.dir, "config.yaml")
}

func (f *runFixture) salesforce() {
	f.drv.Add(driver.CSS("#user"), mocks.Visible(""))
	f.drv.Add(driver.CSS("#pw"), mocks.Visible(""))
	f.drv.Add(driver.CSS("#login"), mocks.Visible("Log In"))
	f.drv.Add(driver.CSS("#logo"), mocks.Visible(""))
	f.drv.Add(driver.CSS("#menu"), mocks.Visible(""))
	f.drv.Add(driver.CSS("#logout"), mocks.Visible("Log Out"))
	f.drv.SetTitle(pages.HomeTitle)
}

func TestRunCmd(t *testing.T) {
	t.Run("passes", func(t *testing.T) {
		f := newRunFixture(t)
		f.salesforce()

		out, err := execute(t, "run", f.configFlag())
		require.NoError(t, err)
		assert.Contains(t, out, "1 passed, 0 failed, 0 skipped.")
		assert.Equal(t, []string{"https://login.example.com"}, f.visited)
		assert.FileExists(t, filepath.Join(f.dir, "bolt-summary.json"))
		assert.FileExists(t, filepath.Join(f.dir, "bolt-junit.xml"))
	})

	t.Run("url flag overrides the config file", func(t *testing.T) {
		f := newRunFixture(t)
		f.salesforce()

		_, err := execute(t, "run", f.configFlag(), "--url", "https://test.salesforce.com")
		require.NoError(t, err)
		assert.Equal(t, []string{"https://test.salesforce.com"}, f.visited)
	})

	t.Run("technical failure is skipped", func(t *testing.T) {
		f := newRunFixture(t)

		out, err := execute(t, "run", f.configFlag())
		require.NoError(t, err)
		assert.Contains(t, out, "0 passed, 0 failed, 1 skipped.")
	})

	t.Run("technical failure fails the run when skipping is off", func(t *testing.T) {
		f := newRunFixture(t)

		out, err := execute(t, "run", f.configFlag(), "--skip-technical-errors=false")
		assert.EqualError(t, err, "1 of 1 scenarios failed")
		assert.Contains(t, out, "0 passed, 1 failed, 0 skipped.")
	})

	t.Run("browser does not start", func(t *testing.T) {
		f := newRunFixture(t)
		launchBrowser = func(context.Context, config.BrowserConfig, *zap.Logger) (driver.Driver, error) {
			return nil, errors.New("chrome not found")
		}

		_, err := execute(t, "run", f.configFlag())
		assert.ErrorContains(t, err, "failed to launch browser: chrome not found")
	})

	t.Run("invalid configuration", func(t *testing.T) {
		f := newRunFixture(t)
		t.Setenv("BOLT_INTERACTION_CLICK_ATTEMPTS", "0")

		_, err := execute(t, "run", f.configFlag())
		assert.ErrorContains(t, err, "interaction.click_attempts must be at least 1")
	})
}

func TestRunScenarios_MissingCatalog(t *testing.T) {
	f := newRunFixture(t)
	cfg := config.NewDefaultConfig()
	cfg.CatalogCfg.Path = filepath.Join(f.dir, "missing.yaml")

	_, err := runScenarios(context.Background(), cfg)
	assert.ErrorContains(t, err, "failed to initialize run")
}
