package waiter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xkilldash9x/bolt/internal/driver"
	"github.com/xkilldash9x/bolt/internal/mocks"
)

func TestRefreshUntilVisible(t *testing.T) {
	ctx := context.Background()

	t.Run("shows up after the second refresh", func(t *testing.T) {
		f := newFixture(t)
		refreshes := 0
		f.drv.RefreshHook = func() error {
			refreshes++
			if refreshes == 2 {
				f.drv.Add(saveButton, mocks.Visible("Save"))
			}
			return nil
		}

		el, err := f.w.RefreshUntilVisible(ctx, On(saveButton), 5, "Save button")
		require.NoError(t, err)
		assert.NotNil(t, el)
		assert.Equal(t, 2, f.drv.Calls("refresh"))
		assert.Equal(t, f.w.Presets().Medium, f.elapsed(), "one full medium wait before the second refresh")
	})

	t.Run("returns the last timeout once the refreshes run out", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.w.RefreshUntilVisible(ctx, On(saveButton), 3, "Save button")

		var te *TimeoutError
		require.ErrorAs(t, err, &te)
		assert.Equal(t, 3, f.drv.Calls("refresh"))
		assert.Equal(t, 3*f.w.Presets().Medium, f.elapsed())
	})

	t.Run("a failing refresh ends the loop", func(t *testing.T) {
		f := newFixture(t)
		boom := driver.NewError(driver.KindDriver, "refresh", "", errors.New("target closed"))
		f.drv.RefreshHook = func() error { return boom }

		_, err := f.w.RefreshUntilVisible(ctx, On(saveButton), 3, "Save button")
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 1, f.drv.Calls("refresh"))
	})

	t.Run("needs at least one attempt", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.w.RefreshUntilVisible(ctx, On(saveButton), 0, "Save button")
		assert.Error(t, err)
		assert.Zero(t, f.drv.Calls("refresh"))
	})
}

func TestRefreshUntilTitle(t *testing.T) {
	f := newFixture(t)
	refreshes := 0
	f.drv.RefreshHook = func() error {
		refreshes++
		if refreshes == 3 {
			f.drv.SetTitle("Home | Salesforce")
		}
		return nil
	}

	require.NoError(t, f.w.RefreshUntilTitle(context.Background(), "Home | Salesforce", 5, "Home"))
	assert.Equal(t, 3, f.drv.Calls("refresh"))
}

func TestRefreshUntilPresence(t *testing.T) {
	ctx := context.Background()
	banner := driver.XPath("//div[@id='alert']//span[text()='Scheduled Maintenance']").Named("maintenance banner")

	t.Run("absent after the second refresh", func(t *testing.T) {
		f := newFixture(t)
		f.drv.Add(banner, mocks.Visible("Scheduled Maintenance"))
		refreshes := 0
		f.drv.RefreshHook = func() error {
			refreshes++
			if refreshes == 2 {
				f.drv.Remove(banner)
			}
			return nil
		}

		require.NoError(t, f.w.RefreshUntilAbsent(ctx, banner, 3, "maintenance banner"))
		settle := f.w.Presets().RefreshSettle
		assert.Equal(t, []time.Duration{settle, settle}, f.clk.Sleeps())
	})

	t.Run("always refreshes first even when already absent", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.w.RefreshUntilAbsent(ctx, banner, 3, "maintenance banner"))
		assert.Equal(t, 1, f.drv.Calls("refresh"))
	})

	t.Run("still there", func(t *testing.T) {
		f := newFixture(t)
		f.drv.Add(banner, mocks.Visible("Scheduled Maintenance"))

		err := f.w.RefreshUntilAbsent(ctx, banner, 3, "maintenance banner")
		assert.ErrorIs(t, err, ErrRefreshBudgetExceeded)
		assert.Contains(t, err.Error(), "still exists after 3 refreshes")
		assert.Equal(t, 3, f.drv.Calls("refresh"))
	})

	t.Run("exists", func(t *testing.T) {
		f := newFixture(t)
		f.drv.RefreshHook = func() error {
			f.drv.Add(saveButton, mocks.Visible("Save"))
			return nil
		}
		require.NoError(t, f.w.RefreshUntilExists(ctx, saveButton, 2, "Save button"))

		g := newFixture(t)
		err := g.w.RefreshUntilExists(ctx, saveButton, 2, "Save button")
		assert.ErrorIs(t, err, ErrRefreshBudgetExceeded)
		assert.Contains(t, err.Error(), "does not exist after 2 refreshes")
	})
}

func TestRefreshUntilContainsText(t *testing.T) {
	ctx := context.Background()

	t.Run("text arrives on a later refresh", func(t *testing.T) {
		f := newFixture(t)
		el := f.drv.Add(statusField, mocks.Visible("Draft"))
		refreshes := 0
		f.drv.RefreshHook = func() error {
			refreshes++
			if refreshes == 3 {
				el.TextValue = "Activated"
			}
			return nil
		}

		err := f.w.RefreshUntilContainsText(ctx, On(statusField), []string{"Active", "Activated"}, 5, time.Second, "Status field")
		require.NoError(t, err)
		assert.Equal(t, 3, f.drv.Calls("refresh"))
	})

	t.Run("no texts only needs visibility", func(t *testing.T) {
		f := newFixture(t)
		f.drv.Add(statusField, mocks.Visible("Draft"))
		require.NoError(t, f.w.RefreshUntilContainsText(ctx, On(statusField), nil, 5, time.Second, "Status field"))
		assert.Equal(t, 1, f.drv.Calls("refresh"))
	})

	t.Run("gives up", func(t *testing.T) {
		f := newFixture(t)
		f.drv.Add(statusField, mocks.Visible("Draft"))
		err := f.w.RefreshUntilContainsText(ctx, On(statusField), []string{"Activated"}, 2, time.Second, "Status field")
		assert.ErrorIs(t, err, ErrRefreshBudgetExceeded)
		assert.Contains(t, err.Error(), "Current element text : Draft")
	})
}
