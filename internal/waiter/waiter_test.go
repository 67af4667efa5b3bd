package waiter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xkilldash9x/bolt/internal/clock"
	"github.com/xkilldash9x/bolt/internal/config"
	"github.com/xkilldash9x/bolt/internal/driver"
	"github.com/xkilldash9x/bolt/internal/mocks"
	"github.com/xkilldash9x/bolt/internal/observability"
	"github.com/xkilldash9x/bolt/internal/stopwatch"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

type fixture struct {
	w   *Waiter
	drv *mocks.FakeDriver
	clk *clock.Fake
	sw  *stopwatch.Controller
	reg *prometheus.Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clk := clock.NewFake(epoch)
	drv := mocks.NewFakeDriver(clk)
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg, "bolt")
	logger := zaptest.NewLogger(t)
	sw := stopwatch.New(clk, logger, metrics)
	sw.Initialize()
	w := New(drv, clk, sw, metrics, logger, config.NewDefaultConfig().Waits())
	return &fixture{w: w, drv: drv, clk: clk, sw: sw, reg: reg}
}

func (f *fixture) elapsed() time.Duration { return f.clk.Now().Sub(epoch) }

var saveButton = driver.XPath("//button[text()='Save']").Named("Save button")

func TestVisible(t *testing.T) {
	defer goleak.VerifyNone(t)

	t.Run("returns the element shortly after it shows", func(t *testing.T) {
		f := newFixture(t)
		el := mocks.Visible("Save")
		el.VisibleAt = epoch.Add(3 * time.Second)
		f.drv.Add(saveButton, el)

		got, err := f.w.Visible(context.Background(), On(saveButton), 10*time.Second)

		require.NoError(t, err)
		assert.Same(t, el, got)
		poll := f.w.Presets().PollInterval
		assert.GreaterOrEqual(t, f.elapsed(), 3*time.Second)
		assert.Less(t, f.elapsed(), 3*time.Second+poll)
	})

	t.Run("an element added mid-wait is found by re-resolving the locator", func(t *testing.T) {
		f := newFixture(t)
		el := mocks.Visible("Save")
		el.AppearAt = epoch.Add(time.Second)
		f.drv.Add(saveButton, el)

		_, err := f.w.Visible(context.Background(), On(saveButton), 5*time.Second)
		require.NoError(t, err)
	})

	t.Run("times out at the deadline with a classified error", func(t *testing.T) {
		f := newFixture(t)
		f.drv.Add(saveButton, &mocks.FakeElement{Displayed: false})

		_, err := f.w.Visible(context.Background(), On(saveButton), 7*time.Second)

		var te *TimeoutError
		require.ErrorAs(t, err, &te)
		assert.Equal(t, Visible, te.Condition)
		assert.Contains(t, te.Target, "Save button")
		assert.Equal(t, 7*time.Second, f.elapsed())
		assert.True(t, driver.IsKind(err, driver.KindTimeout))
		assert.Contains(t, err.Error(), "to be visible")
	})

	t.Run("a missing element is a timeout, not an immediate failure", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.w.Visible(context.Background(), On(saveButton), 2*time.Second)

		var te *TimeoutError
		require.ErrorAs(t, err, &te)
		assert.True(t, driver.IsKind(te.Last, driver.KindNoSuchElement))
		assert.Equal(t, 2*time.Second, f.elapsed())
	})

	t.Run("rejects a non-positive timeout without touching the driver", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.w.Visible(context.Background(), On(saveButton), 0)
		assert.ErrorIs(t, err, ErrInvalidTimeout)
		assert.Empty(t, f.drv.Log())
	})
}

func TestInvisible(t *testing.T) {
	t.Run("a target that never existed is satisfied at once", func(t *testing.T) {
		f := newFixture(t)
		err := f.w.Invisible(context.Background(), On(driver.CSS(".spinner")), 10*time.Second)
		require.NoError(t, err)
		assert.Zero(t, f.clk.Slept())
	})

	t.Run("waits for a displayed element to hide", func(t *testing.T) {
		f := newFixture(t)
		el := f.drv.Add(driver.CSS(".spinner"), mocks.Visible(""))
		el.HiddenAt = epoch.Add(2 * time.Second)

		err := f.w.Invisible(context.Background(), Elem(el), 10*time.Second)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, f.elapsed(), 2*time.Second)
	})

	t.Run("a stale element counts as gone", func(t *testing.T) {
		f := newFixture(t)
		loc := driver.CSS(".modal")
		el := f.drv.Add(loc, mocks.Visible(""))
		f.drv.Remove(loc)

		require.NoError(t, f.w.Invisible(context.Background(), Elem(el), time.Second))
	})
}

func TestClickable(t *testing.T) {
	t.Run("requires visible, enabled and unobscured", func(t *testing.T) {
		f := newFixture(t)
		el := mocks.Visible("Next")
		el.VisibleAt = epoch.Add(time.Second)
		f.drv.Add(saveButton, el)

		got, err := f.w.Clickable(context.Background(), On(saveButton), 5*time.Second)
		require.NoError(t, err)
		assert.Same(t, el, got)
	})

	t.Run("an overlay keeps it unclickable", func(t *testing.T) {
		f := newFixture(t)
		el := mocks.Visible("Next")
		el.Obscured = true
		f.drv.Add(saveButton, el)

		_, err := f.w.Clickable(context.Background(), On(saveButton), 3*time.Second)
		var te *TimeoutError
		require.ErrorAs(t, err, &te)
		assert.Equal(t, Clickable, te.Condition)
		assert.Zero(t, el.Clicks)
	})
}

func TestEnabledStates(t *testing.T) {
	f := newFixture(t)
	el := f.drv.Add(saveButton, &mocks.FakeElement{Displayed: true, Enabled: true})

	require.NoError(t, f.w.Enabled(context.Background(), Elem(el), time.Second))

	err := f.w.NotEnabled(context.Background(), Elem(el), time.Second)
	require.Error(t, err)

	f.drv.Remove(saveButton)
	assert.NoError(t, f.w.NotEnabled(context.Background(), On(saveButton), time.Second), "a vanished element counts as disabled")
}

func TestPageConditions(t *testing.T) {
	ctx := context.Background()

	t.Run("title", func(t *testing.T) {
		f := newFixture(t)
		f.drv.SetTitle("Home | Salesforce")
		require.NoError(t, f.w.TitleContains(ctx, "Home", time.Second))
		assert.Error(t, f.w.TitleContains(ctx, "Opportunities", time.Second))
	})

	t.Run("url", func(t *testing.T) {
		f := newFixture(t)
		f.drv.SetURL("https://example.lightning.force.com/lightning/r/Account/001xx/view")
		require.NoError(t, f.w.URLContains(ctx, "/lightning/r/Account", time.Second))
	})

	t.Run("ready state", func(t *testing.T) {
		f := newFixture(t)
		f.drv.SetReadyState("loading")
		err := f.w.PageReady(ctx, time.Second)
		assert.True(t, driver.IsKind(err, driver.KindTimeout))

		f.drv.SetReadyState("complete")
		assert.NoError(t, f.w.PageReady(ctx, time.Second))
	})

	t.Run("text contains", func(t *testing.T) {
		f := newFixture(t)
		el := f.drv.Add(saveButton, mocks.Visible(""))
		el.TextFunc = func(now time.Time) string {
			if now.Before(epoch.Add(time.Second)) {
				return "Saving..."
			}
			return "Saved"
		}
		_, err := f.w.TextContains(ctx, On(saveButton), "Saved", 5*time.Second)
		require.NoError(t, err)
	})
}

func TestWaitAccounting(t *testing.T) {
	t.Run("the stopwatch is back to working after a timeout", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.w.Visible(context.Background(), On(saveButton), 2*time.Second)
		require.Error(t, err)

		assert.True(t, f.sw.IsWorking())
		assert.False(t, f.sw.IsWaiting())
		snap := f.sw.Snapshot()
		assert.Equal(t, 2*time.Second, snap.Waiting.Elapsed)
		assert.Equal(t, 1, snap.Categories["visible"].Count)
	})

	t.Run("outcomes are recorded per condition", func(t *testing.T) {
		f := newFixture(t)
		f.drv.Add(saveButton, mocks.Visible("Save"))
		_, _ = f.w.Visible(context.Background(), On(saveButton), time.Second)
		_ = f.w.Invisible(context.Background(), On(saveButton), time.Second)

		n, err := testutil.GatherAndCount(f.reg, "bolt_waiter_waits_total")
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})

	t.Run("works without a stopwatch or metrics", func(t *testing.T) {
		clk := clock.NewFake(epoch)
		drv := mocks.NewFakeDriver(clk)
		w := New(drv, clk, nil, nil, nil, config.NewDefaultConfig().Waits())
		assert.NoError(t, w.Invisible(context.Background(), On(saveButton), time.Second))
	})
}

func TestWaitCancelled(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.w.Visible(ctx, On(saveButton), time.Minute)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.True(t, f.sw.IsWorking())
}
