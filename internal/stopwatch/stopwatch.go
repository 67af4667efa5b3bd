// Package stopwatch accounts for how a run splits its time between working
// (driving the browser, evaluating steps) and waiting (sleeps and polls).
package stopwatch

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/xkilldash9x/bolt/internal/clock"
	"github.com/xkilldash9x/bolt/internal/observability"
	"go.uber.org/zap"
)

const (
	Working = "working"
	Waiting = "waiting"
)

// watch accumulates elapsed time across any number of start/stop cycles.
type watch struct {
	elapsed    time.Duration
	lastStart  time.Time
	startCount int
	started    bool
}

func (w *watch) start(now time.Time) bool {
	if w.started {
		return false
	}
	w.started = true
	w.startCount++
	w.lastStart = now
	return true
}

func (w *watch) stop(now time.Time) bool {
	if !w.started {
		return false
	}
	w.started = false
	w.elapsed += now.Sub(w.lastStart)
	return true
}

func (w *watch) timer(now time.Time) Timer {
	t := Timer{Elapsed: w.elapsed, Count: w.startCount, Started: w.started}
	if w.started {
		t.Elapsed += now.Sub(w.lastStart)
	}
	return t
}

// Timer is a read-only view of one watch.
type Timer struct {
	Elapsed time.Duration `json:"elapsed"`
	Count   int           `json:"count"`
	Started bool          `json:"started"`
}

// Summary is a snapshot of every watch.
type Summary struct {
	Working    Timer            `json:"working"`
	Waiting    Timer            `json:"waiting"`
	Categories map[string]Timer `json:"categories,omitempty"`
}

// Controller owns the working/waiting pair and the category sub-timers.
// Outside Initialize and Shutdown exactly one of the pair is running.
// A nil *Controller is valid and accounts nothing.
type Controller struct {
	mu          sync.Mutex
	clk         clock.Clock
	logger      *zap.Logger
	metrics     *observability.Metrics
	working     *watch
	waiting     *watch
	depth       int
	categories  map[string]*watch
	initialized bool
}

// New creates an uninitialized controller.
func New(clk clock.Clock, logger *zap.Logger, metrics *observability.Metrics) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		clk:     clk,
		logger:  logger.Named("Stopwatch"),
		metrics: metrics,
	}
}

// Initialize resets all watches and starts the working watch.
func (c *Controller) Initialize() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.working = &watch{}
	c.waiting = &watch{}
	c.categories = make(map[string]*watch)
	c.depth = 0
	c.initialized = true
	c.start(c.working)
}

// start and stop implement the notification protocol: starting waiting stops
// working, and stopping waiting restarts working. Callers hold c.mu.
func (c *Controller) start(w *watch) {
	now := c.clk.Now()
	if !w.start(now) {
		return
	}
	if w != c.working {
		c.working.stop(now)
	}
	if w != c.waiting {
		c.waiting.stop(now)
	}
}

func (c *Controller) stop(w *watch) {
	now := c.clk.Now()
	if !w.stop(now) {
		return
	}
	if w != c.working && !c.working.started {
		c.working.start(now)
	}
}

// StartWaiting switches the pair to waiting. Calls nest; only the outermost
// call switches the pair.
func (c *Controller) StartWaiting() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.initialized {
		return
	}
	c.depth++
	if c.depth == 1 {
		c.start(c.waiting)
	}
}

// StopWaiting undoes one StartWaiting. The outermost call switches back to working.
func (c *Controller) StopWaiting() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.initialized || c.depth == 0 {
		return
	}
	c.depth--
	if c.depth == 0 {
		c.stop(c.waiting)
	}
}

// Track starts waiting and the named category, returning the func that stops
// both. Use it with defer so the watch stops however the timed call exits.
func (c *Controller) Track(category string) func() {
	if c == nil {
		return func() {}
	}
	c.StartWaiting()

	c.mu.Lock()
	var w *watch
	if c.initialized && category != "" {
		w = c.categories[category]
		if w == nil {
			w = &watch{}
			c.categories[category] = w
		}
		w.start(c.clk.Now())
	}
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			if w != nil {
				c.mu.Lock()
				w.stop(c.clk.Now())
				c.mu.Unlock()
			}
			c.StopWaiting()
		})
	}
}

// IsWorking reports whether the working watch is running.
func (c *Controller) IsWorking() bool {
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initialized && c.working.started
}

// IsWaiting reports whether the waiting watch is running.
func (c *Controller) IsWaiting() bool {
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initialized && c.waiting.started
}

// Snapshot returns current totals, including any running segment.
func (c *Controller) Snapshot() Summary {
	if c == nil {
		return Summary{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot()
}

func (c *Controller) snapshot() Summary {
	if !c.initialized && c.working == nil {
		return Summary{}
	}
	now := c.clk.Now()
	s := Summary{
		Working: c.working.timer(now),
		Waiting: c.waiting.timer(now),
	}
	if len(c.categories) > 0 {
		s.Categories = make(map[string]Timer, len(c.categories))
		for name, w := range c.categories {
			s.Categories[name] = w.timer(now)
		}
	}
	return s
}

// Shutdown stops every watch, logs the totals and publishes them as metrics.
// Calling it on a controller that was never initialized is a no-op.
func (c *Controller) Shutdown() Summary {
	if c == nil {
		return Summary{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.initialized {
		return c.snapshot()
	}

	now := c.clk.Now()
	c.waiting.stop(now)
	c.working.stop(now)
	for _, w := range c.categories {
		w.stop(now)
	}
	c.depth = 0
	c.initialized = false

	s := c.snapshot()
	c.logger.Info(fmt.Sprintf("Working time : %.3f seconds (Count : %d)", s.Working.Elapsed.Seconds(), s.Working.Count))
	c.logger.Info(fmt.Sprintf("Waiting time : %.3f seconds (Count : %d)", s.Waiting.Elapsed.Seconds(), s.Waiting.Count))

	names := make([]string, 0, len(s.Categories))
	for name := range s.Categories {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		t := s.Categories[name]
		c.logger.Debug("Category time",
			zap.String("category", name),
			zap.Duration("elapsed", t.Elapsed),
			zap.Int("count", t.Count))
		c.metrics.SetTime(name, t.Elapsed)
	}
	c.metrics.SetTime(Working, s.Working.Elapsed)
	c.metrics.SetTime(Waiting, s.Waiting.Elapsed)
	return s
}
