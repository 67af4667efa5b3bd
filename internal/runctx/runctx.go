// Package runctx builds the objects one run shares: configuration, loggers,
// metrics, the clock and stopwatch, the browser driver, the synchronization
// core, the exception handler and the scenario runner. A RunContext is
// created once per run and passed down explicitly.
package runctx

import (
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/xkilldash9x/bolt/internal/classify"
	"github.com/xkilldash9x/bolt/internal/clock"
	"github.com/xkilldash9x/bolt/internal/config"
	"github.com/xkilldash9x/bolt/internal/driver"
	"github.com/xkilldash9x/bolt/internal/interact"
	"github.com/xkilldash9x/bolt/internal/observability"
	"github.com/xkilldash9x/bolt/internal/pages"
	"github.com/xkilldash9x/bolt/internal/scenario"
	"github.com/xkilldash9x/bolt/internal/stopwatch"
	"github.com/xkilldash9x/bolt/internal/waiter"
	"go.uber.org/zap"
)

// RunContext holds everything a run shares.
type RunContext struct {
	ID        uuid.UUID
	StartedAt time.Time

	Config    config.Interface
	Logger    *zap.Logger
	Summary   *zap.Logger
	Registry  *prometheus.Registry
	Metrics   *observability.Metrics
	Clock     clock.Clock
	Stopwatch *stopwatch.Controller
	Driver    driver.Driver

	Waiter     *waiter.Waiter
	Interactor *interact.Interactor
	Handler    *classify.Handler
	Asserter   *classify.Asserter
	Runner     *scenario.Runner
	Catalog    *pages.Catalog

	closed bool
}

type options struct {
	clk      clock.Clock
	logger   *zap.Logger
	summary  *zap.Logger
	registry *prometheus.Registry
}

// Option customizes New.
type Option func(*options)

// WithClock replaces the wall clock, e.g. with clock.NewFake in tests.
func WithClock(clk clock.Clock) Option { return func(o *options) { o.clk = clk } }

// WithLoggers replaces the global diagnostic and run-summary loggers.
func WithLoggers(logger, summary *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
		o.summary = summary
	}
}

// WithRegistry registers metrics against reg instead of a fresh registry.
func WithRegistry(reg *prometheus.Registry) Option { return func(o *options) { o.registry = reg } }

// New wires a run around drv. The stopwatch starts counting working time
// immediately; call Close when the run is over.
func New(cfg config.Interface, drv driver.Driver, opts ...Option) (*RunContext, error) {
	if cfg == nil {
		return nil, fmt.Errorf("runctx: config is required")
	}
	if drv == nil {
		return nil, fmt.Errorf("runctx: driver is required")
	}
	o := options{clk: clock.New()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = observability.GetLogger()
	}
	if o.summary == nil {
		o.summary = observability.GetSummaryLogger()
	}
	if o.registry == nil {
		o.registry = prometheus.NewRegistry()
	}

	catalog, err := pages.LoadCatalog(cfg.Catalog().Path)
	if err != nil {
		return nil, err
	}

	rc := &RunContext{
		ID:        uuid.New(),
		StartedAt: o.clk.Now(),
		Config:    cfg,
		Logger:    o.logger,
		Summary:   o.summary,
		Registry:  o.registry,
		Clock:     o.clk,
		Driver:    drv,
		Catalog:   catalog,
	}
	rc.Metrics = observability.NewMetrics(o.registry, cfg.Metrics().Namespace)
	rc.Stopwatch = stopwatch.New(o.clk, o.logger, rc.Metrics)
	rc.Stopwatch.Initialize()

	rc.Waiter = waiter.New(drv, o.clk, rc.Stopwatch, rc.Metrics, o.logger, cfg.Waits())
	rc.Interactor = interact.New(rc.Waiter, cfg.Interaction(), cfg.Recovery(), rc.Metrics, o.logger)
	rc.Handler = classify.NewHandler(cfg.Classification(), o.logger, o.summary, rc.Metrics, nil)
	rc.Asserter = classify.NewAsserter(o.logger, o.summary, cfg.Classification().OwnPackagePrefix)
	rc.Runner = scenario.NewRunner(drv, o.clk, rc.Handler, cfg.Scenario(), o.logger, o.summary, rc.Metrics)

	o.logger.Info("Run context ready.",
		zap.String("run_id", rc.ID.String()),
		zap.Int("catalog_overrides", catalog.Len()),
		zap.Bool("skip_technical_errors", rc.Handler.SkipTechnicalErrors()))
	return rc, nil
}

// PageDeps is what every page object is built from.
func (rc *RunContext) PageDeps() pages.Deps {
	return pages.Deps{
		Waiter:     rc.Waiter,
		Interactor: rc.Interactor,
		Handler:    rc.Handler,
		Asserter:   rc.Asserter,
		Metrics:    rc.Metrics,
		Logger:     rc.Logger,
		Arrival:    rc.Config.Arrival(),
		Target:     rc.Config.Target(),
		Catalog:    rc.Catalog,
	}
}

// Close stops the stopwatch, publishes its totals and closes the driver when
// it can be closed. It returns the stopwatch totals. Only the first call
// does anything.
func (rc *RunContext) Close() (stopwatch.Summary, error) {
	if rc.closed {
		return rc.Stopwatch.Snapshot(), nil
	}
	rc.closed = true
	times := rc.Stopwatch.Shutdown()
	if c, ok := rc.Driver.(io.Closer); ok {
		if err := c.Close(); err != nil {
			return times, fmt.Errorf("closing browser: %w", err)
		}
	}
	return times, nil
}
