// internal/driver/cdp_test.go
package driver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xkilldash9x/bolt/internal/config"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

// newTestCDP returns a driver whose actions are handed to fn instead of a browser.
func newTestCDP(t *testing.T, timeout time.Duration, fn runActionsFunc) *CDP {
	t.Helper()
	d := NewCDP(context.Background(), zaptest.NewLogger(t), timeout)
	d.runActionsFunc = fn
	return d
}

func testElement() Element {
	return &cdpElement{node: &cdp.Node{NodeID: 7, BackendNodeID: 11}, loc: XPath("//button"), index: 0}
}

func TestCDPPageActions(t *testing.T) {
	var captured [][]chromedp.Action
	d := newTestCDP(t, time.Second, func(ctx context.Context, actions ...chromedp.Action) error {
		captured = append(captured, actions)
		return nil
	})
	ctx := context.Background()

	require.NoError(t, d.Navigate(ctx, "https://example.my.salesforce.com"))
	require.NoError(t, d.Refresh(ctx))
	require.NoError(t, d.AcceptAlert(ctx))
	_, err := d.Title(ctx)
	require.NoError(t, err)
	_, err = d.CurrentURL(ctx)
	require.NoError(t, err)

	require.Len(t, captured, 5)
	for _, batch := range captured {
		assert.Len(t, batch, 1)
	}
}

func TestCDPFindElement(t *testing.T) {
	t.Run("zero matches is not an error for FindElements", func(t *testing.T) {
		d := newTestCDP(t, time.Second, func(ctx context.Context, actions ...chromedp.Action) error { return nil })
		els, err := d.FindElements(context.Background(), XPath("//nothing"))
		require.NoError(t, err)
		assert.Empty(t, els)
	})

	t.Run("zero matches is no such element for FindElement", func(t *testing.T) {
		d := newTestCDP(t, time.Second, func(ctx context.Context, actions ...chromedp.Action) error { return nil })
		_, err := d.FindElement(context.Background(), XPath("//nothing"))
		require.Error(t, err)
		assert.Equal(t, KindNoSuchElement, KindOf(err))
	})
}

func TestCDPErrorMapping(t *testing.T) {
	t.Run("protocol messages", func(t *testing.T) {
		tests := []struct {
			msg  string
			want ErrorKind
		}{
			{"No node with given id found (-32000)", KindStale},
			{"Node is detached from document", KindStale},
			{"Could not compute content quads.", KindNotInteractable},
			{"Node does not have a layout object", KindNotInteractable},
			{"No dialog is showing (-32602)", KindNoAlert},
			{"websocket: close 1006", KindDriver},
		}
		for _, tc := range tests {
			assert.Equal(t, tc.want, classifyCDPError(errors.New(tc.msg)), tc.msg)
		}
	})

	t.Run("script exceptions", func(t *testing.T) {
		exc := &runtime.ExceptionDetails{Text: "Uncaught"}
		assert.Equal(t, KindScript, classifyCDPError(exc))
	})

	t.Run("command timeout is a timeout", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		d := newTestCDP(t, 20*time.Millisecond, func(ctx context.Context, actions ...chromedp.Action) error {
			<-ctx.Done()
			return ctx.Err()
		})
		err := d.Click(context.Background(), testElement())
		require.Error(t, err)
		assert.Equal(t, KindTimeout, KindOf(err))
	})

	t.Run("caller cancellation is not a driver error", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		d := newTestCDP(t, time.Second, func(ctx context.Context, actions ...chromedp.Action) error {
			cancel()
			return ctx.Err()
		})
		err := d.Click(ctx, testElement())
		require.Error(t, err)
		assert.False(t, IsDriverError(err))
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("foreign element is stale", func(t *testing.T) {
		d := newTestCDP(t, time.Second, func(ctx context.Context, actions ...chromedp.Action) error { return nil })
		err := d.Click(context.Background(), &cdpElement{})
		assert.Equal(t, KindStale, KindOf(err))
	})
}

func TestCDPHover(t *testing.T) {
	var last []chromedp.Action
	calls := 0
	d := newTestCDP(t, time.Second, func(ctx context.Context, actions ...chromedp.Action) error {
		calls++
		last = actions
		return nil
	})

	require.NoError(t, d.Hover(context.Background(), testElement()))
	assert.Equal(t, 2, calls, "hover resolves the centre, then moves the pointer")
	require.Len(t, last, 1)
	move, ok := last[0].(*input.DispatchMouseEventParams)
	require.True(t, ok, "second batch should be a mouse event")
	assert.Equal(t, input.MouseMoved, move.Type)
}

func TestWrapElementFunction(t *testing.T) {
	wrapped := wrapElementFunction(`function() { this.click(); }`)
	assert.Contains(t, wrapped, "this.isConnected")
	assert.Contains(t, wrapped, staleMarker)
	assert.Contains(t, wrapped, "this.click()")
}

func TestExecAllocatorOptions(t *testing.T) {
	base := ExecAllocatorOptions(config.BrowserConfig{Headless: true})
	withArgs := ExecAllocatorOptions(config.BrowserConfig{
		Headless: true,
		Args:     []string{"--no-zygote", "lang=en-GB", ""},
	})
	headed := ExecAllocatorOptions(config.BrowserConfig{Headless: false, DisableGPU: true, WindowWidth: 1280, WindowHeight: 800})

	assert.Len(t, withArgs, len(base)+2, "empty args are ignored")
	assert.Len(t, headed, len(base)+2)
}

func TestCombineContext(t *testing.T) {
	defer goleak.VerifyNone(t)

	type key struct{}
	browserCtx := context.WithValue(context.Background(), key{}, "cdp-target")

	t.Run("operation cancellation propagates", func(t *testing.T) {
		opCtx, cancelOp := context.WithCancel(context.Background())
		combined, cancel := CombineContext(browserCtx, opCtx)
		defer cancel()

		assert.Equal(t, "cdp-target", combined.Value(key{}))
		cancelOp()
		select {
		case <-combined.Done():
		case <-time.After(time.Second):
			t.Fatal("combined context was not cancelled")
		}
	})

	t.Run("operation deadline is inherited", func(t *testing.T) {
		opCtx, cancelOp := context.WithTimeout(context.Background(), time.Minute)
		defer cancelOp()
		combined, cancel := CombineContext(browserCtx, opCtx)
		defer cancel()

		want, _ := opCtx.Deadline()
		got, ok := combined.Deadline()
		require.True(t, ok)
		assert.Equal(t, want, got)
	})

	t.Run("detach drops cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(browserCtx)
		cancel()
		detached := Detach(ctx)
		assert.NoError(t, detached.Err())
		assert.Nil(t, detached.Done())
		assert.Equal(t, "cdp-target", detached.Value(key{}))
	})
}
