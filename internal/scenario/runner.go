package scenario

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xkilldash9x/bolt/internal/classify"
	"github.com/xkilldash9x/bolt/internal/clock"
	"github.com/xkilldash9x/bolt/internal/config"
	"github.com/xkilldash9x/bolt/internal/driver"
	"github.com/xkilldash9x/bolt/internal/observability"
	"go.uber.org/zap"
)

const divider = "------------------------------------------------------------"

// Step is one action of a scenario. Returning an error ends the scenario.
type Step struct {
	Name string
	Run  func(ctx context.Context, sc *Context) error
}

// Scenario is a named, tagged sequence of steps.
type Scenario struct {
	Name  string
	Tags  []string
	Steps []Step
}

// Result is how one scenario went.
type Result struct {
	ID          string
	Name        string
	FeatureTag  string
	ScenarioTag string
	Status      Status
	Err         error
	FailedStep  string
	StepsRun    int
	Started     time.Time
	Duration    time.Duration
	Screenshot  string
}

// Runner executes scenarios one at a time against a single browser session.
type Runner struct {
	drv      driver.Driver
	clk      clock.Clock
	handler  *classify.Handler
	cfg      config.ScenarioConfig
	logger   *zap.Logger
	summary  *zap.Logger
	metrics  *observability.Metrics
	signaled *classify.Disposition
}

// NewRunner creates a Runner and registers it as handler's signaler.
// drv may be nil, in which case no screenshots are taken.
func NewRunner(drv driver.Driver, clk clock.Clock, handler *classify.Handler, cfg config.ScenarioConfig, logger, summary *zap.Logger, metrics *observability.Metrics) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if summary == nil {
		summary = zap.NewNop()
	}
	r := &Runner{
		drv:     drv,
		clk:     clk,
		handler: handler,
		cfg:     cfg,
		logger:  logger.Named("CucumberHooks"),
		summary: summary,
		metrics: metrics,
	}
	handler.SetSignaler(r)
	return r
}

// Signal records the disposition the handler chose for the running scenario.
func (r *Runner) Signal(d classify.Disposition, _ error) {
	r.signaled = &d
}

// RunAll runs every scenario in order. A cancelled ctx skips what is left.
func (r *Runner) RunAll(ctx context.Context, scenarios []Scenario) []Result {
	results := make([]Result, 0, len(scenarios))
	for _, s := range scenarios {
		if ctx.Err() != nil {
			r.logger.Warn("Run cancelled, not starting scenario.", zap.String("scenario", s.Name))
			break
		}
		results = append(results, r.Run(ctx, s))
	}
	return results
}

// Run executes s, stopping at the first failing step.
func (r *Runner) Run(ctx context.Context, s Scenario) Result {
	if err := r.waitForLock(ctx); err != nil {
		return Result{Name: s.Name, Status: Skipped, Err: err, Started: r.clk.Now()}
	}

	sc, err := NewContext(s.Name, s.Tags, r.clk.Now())
	if err != nil {
		r.logger.Error("Cannot start scenario.", zap.Error(err))
		return Result{Name: s.Name, Status: Failed, Err: err, Started: r.clk.Now()}
	}
	r.signaled = nil
	res := Result{
		ID:          sc.ID.String(),
		Name:        s.Name,
		FeatureTag:  sc.FeatureTag,
		ScenarioTag: sc.ScenarioTag,
		Status:      Passed,
		Started:     sc.StartedAt,
	}
	r.setUp(sc)

	sctx := classify.WithScenario(ctx, s.Name)
	for _, step := range s.Steps {
		res.StepsRun++
		r.logger.Debug("Running step.", zap.String("step", step.Name))
		if err := step.Run(sctx, sc); err != nil {
			res.FailedStep = step.Name
			res.Status, res.Err = r.dispose(sctx, step, err)
			break
		}
	}

	res.Duration = r.clk.Now().Sub(res.Started)
	r.tearDown(ctx, sc, &res)
	return res
}

func (r *Runner) dispose(ctx context.Context, step Step, err error) (Status, error) {
	if _, handled := classify.DispositionOf(err); !handled {
		err = r.handler.Handle(ctx, "Step '"+step.Name+"' failed", err, step.Name)
	}
	d, _ := classify.DispositionOf(err)
	if r.signaled != nil {
		d = *r.signaled
	}
	if d == classify.Skip {
		return Skipped, err
	}
	return Failed, err
}

func (r *Runner) setUp(sc *Context) {
	r.logger.Info(divider)
	r.logger.Info("Starting - " + sc.Name)
	r.logger.Info("  (Feature : " + sc.FeatureTag + " ,Scenario : " + sc.ScenarioTag + ") ")
	r.logger.Info(divider)

	r.summary.Info(divider)
	r.summary.Info(sc.Label() + " started")
}

func (r *Runner) tearDown(ctx context.Context, sc *Context, res *Result) {
	if res.Status != Passed && r.drv != nil {
		res.Screenshot = r.screenshot(ctx, sc)
	}

	r.logger.Info(divider)
	r.logger.Info(fmt.Sprintf("%s  (Feature : %s ,Scenario : %s) complete. Status - %s", sc.Name, sc.FeatureTag, sc.ScenarioTag, res.Status))
	r.logger.Info(divider)

	line := sc.Label() + " Status - " + res.Status.String()
	if res.Status == Passed {
		r.summary.Info(line)
	} else {
		r.summary.Error(line)
	}
	r.metrics.IncScenario(strings.ToLower(res.Status.String()))
}

// screenshot saves the current page. Failure is logged and otherwise ignored.
func (r *Runner) screenshot(ctx context.Context, sc *Context) string {
	path := ScreenshotPath(r.cfg.ScreenshotDir, sc.FeatureTag, sc.Name, r.clk.Now())
	r.logger.Info("Attempting to capture a screenshot at location " + path)

	// The scenario's own context may already be done; the capture still gets a go.
	sctx, cancel := context.WithTimeout(driver.Detach(ctx), 30*time.Second)
	defer cancel()
	png, err := r.drv.Screenshot(sctx)
	if err == nil {
		err = os.MkdirAll(filepath.Dir(path), 0o755)
	}
	if err == nil {
		err = os.WriteFile(path, png, 0o644)
	}
	if err != nil {
		r.logger.Error("Teardown error during screen capture", zap.Error(err))
		return ""
	}
	return path
}

// waitForLock pauses while the LOCK file exists, checking every poll interval.
func (r *Runner) waitForLock(ctx context.Context) error {
	if r.cfg.LockFile == "" {
		return nil
	}
	locked := false
	for {
		_, err := os.Stat(r.cfg.LockFile)
		if errors.Is(err, os.ErrNotExist) {
			break
		}
		if err != nil {
			return fmt.Errorf("checking lock file %s: %w", r.cfg.LockFile, err)
		}
		if !locked {
			locked = true
			r.logger.Warn("LOCK file exists so suite is paused. Polling until the file is removed", zap.String("path", r.cfg.LockFile))
		}
		if err := r.clk.Sleep(ctx, r.cfg.LockPollInterval); err != nil {
			return err
		}
	}
	if locked {
		r.logger.Info("LOCK file no longer exists so suite is continuing")
	}
	return nil
}

// ScreenshotPath is <dir>/<feature>_<name>_yyyyMMdd-HHmm_Error.png, with name
// made safe for a file system and cut to 40 characters.
func ScreenshotPath(dir, featureTag, name string, at time.Time) string {
	return filepath.Join(dir, featureTag+"_"+SanitizeFilename(name)+at.Format("_20060102-1504")+"_Error.png")
}

var filenameReplacer = strings.NewReplacer(
	"/", "_", ".", "_", ":", "", "<", "_", ">", "_",
	`\`, "_", "?", "", `"`, "", "|", "_", "*", "",
)

// SanitizeFilename replaces or drops characters that are unsafe in file
// names and truncates the result to 40 characters.
func SanitizeFilename(name string) string {
	s := filenameReplacer.Replace(name)
	if r := []rune(s); len(r) > 40 {
		s = string(r[:40])
	}
	return s
}
