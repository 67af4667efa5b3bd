// File: internal/mocks/driver.go
package mocks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/xkilldash9x/bolt/internal/clock"
	"github.com/xkilldash9x/bolt/internal/driver"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// -- Fake Driver --

// FakeElement is a scriptable element. Time-based fields are evaluated against
// the driver's clock, so a fake clock can make an element appear mid-wait.
type FakeElement struct {
	Displayed bool
	Enabled   bool
	Obscured  bool
	Stale     bool
	TextValue string
	// Value accumulates text sent with SendKeys; special keys are dropped.
	Value string
	Keys  []string

	// AppearAt and GoneAt bound when the element is found at all.
	AppearAt time.Time
	GoneAt   time.Time
	// VisibleAt and HiddenAt bound when a present element is displayed.
	VisibleAt time.Time
	HiddenAt  time.Time

	// TextFunc overrides TextValue when set.
	TextFunc func(now time.Time) string

	Clicks int
	Hovers int

	loc driver.Locator
	id  int
}

func (e *FakeElement) Locator() driver.Locator { return e.loc }
func (e *FakeElement) String() string          { return fmt.Sprintf("fake#%d %s", e.id, e.loc) }

func (e *FakeElement) present(now time.Time) bool {
	if !e.AppearAt.IsZero() && now.Before(e.AppearAt) {
		return false
	}
	if !e.GoneAt.IsZero() && !now.Before(e.GoneAt) {
		return false
	}
	return true
}

func (e *FakeElement) displayed(now time.Time) bool {
	if !e.present(now) {
		return false
	}
	if !e.VisibleAt.IsZero() && now.Before(e.VisibleAt) {
		return false
	}
	if !e.HiddenAt.IsZero() && !now.Before(e.HiddenAt) {
		return false
	}
	return e.Displayed
}

// Visible returns an element that is displayed and enabled, with the given text.
func Visible(text string) *FakeElement {
	return &FakeElement{Displayed: true, Enabled: true, TextValue: text}
}

// FakeDriver is an in-memory driver.Driver. Elements are registered per
// locator query; hooks inject failures per call.
type FakeDriver struct {
	mu    sync.Mutex
	clk   clock.Clock
	elems map[string][]*FakeElement
	next  int
	calls []string

	title      string
	url        string
	readyState string
	alertOpen  bool

	// Hooks run before the default behaviour; a non-nil error is returned as is.
	FindHook       func(loc driver.Locator) error
	ClickHook      func(el *FakeElement) error
	SendKeysHook   func(el *FakeElement, text string) error
	HoverHook      func(el *FakeElement) error
	RefreshHook    func() error
	NavigateHook   func(url string) error
	ScreenshotHook func() ([]byte, error)
	// ScriptHook returns the script's result, which is JSON round-tripped into res.
	ScriptHook func(script string, el *FakeElement) (any, error)
}

var _ driver.Driver = (*FakeDriver)(nil)

// NewFakeDriver returns an empty page at about:blank.
func NewFakeDriver(clk clock.Clock) *FakeDriver {
	return &FakeDriver{
		clk:        clk,
		elems:      make(map[string][]*FakeElement),
		url:        "about:blank",
		readyState: "complete",
	}
}

// Add registers el under loc and returns it.
func (d *FakeDriver) Add(loc driver.Locator, el *FakeElement) *FakeElement {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.next++
	el.loc = loc
	el.id = d.next
	d.elems[loc.Query] = append(d.elems[loc.Query], el)
	return el
}

// Remove drops every element under loc and marks them stale.
func (d *FakeDriver) Remove(loc driver.Locator) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, el := range d.elems[loc.Query] {
		el.Stale = true
	}
	delete(d.elems, loc.Query)
}

func (d *FakeDriver) SetTitle(title string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.title = title
}

func (d *FakeDriver) SetURL(url string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.url = url
}

func (d *FakeDriver) SetReadyState(state string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.readyState = state
}

func (d *FakeDriver) OpenAlert() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.alertOpen = true
}

// Calls counts recorded calls of op, e.g. "click" or "refresh".
func (d *FakeDriver) Calls(op string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, c := range d.calls {
		if c == op {
			n++
		}
	}
	return n
}

// Log returns every recorded call in order.
func (d *FakeDriver) Log() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.calls))
	copy(out, d.calls)
	return out
}

func (d *FakeDriver) record(op string) time.Time {
	d.calls = append(d.calls, op)
	return d.clk.Now()
}

func (d *FakeDriver) elem(op string, el driver.Element, now time.Time) (*FakeElement, error) {
	fe, ok := el.(*FakeElement)
	if !ok || fe == nil {
		return nil, driver.NewError(driver.KindStale, op, fmt.Sprint(el), errors.New("not a fake element"))
	}
	if fe.Stale || !fe.present(now) {
		return nil, driver.NewError(driver.KindStale, op, fe.String(), nil)
	}
	return fe, nil
}

func (d *FakeDriver) FindElements(ctx context.Context, loc driver.Locator) ([]driver.Element, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.record("find")
	if d.FindHook != nil {
		if err := d.FindHook(loc); err != nil {
			return nil, err
		}
	}
	var out []driver.Element
	for _, el := range d.elems[loc.Query] {
		if !el.Stale && el.present(now) {
			out = append(out, el)
		}
	}
	return out, nil
}

func (d *FakeDriver) FindElement(ctx context.Context, loc driver.Locator) (driver.Element, error) {
	els, err := d.FindElements(ctx, loc)
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		return nil, driver.NewError(driver.KindNoSuchElement, "find element", loc.String(), nil)
	}
	return els[0], nil
}

func (d *FakeDriver) Click(ctx context.Context, el driver.Element) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.record("click")
	fe, err := d.elem("click", el, now)
	if err != nil {
		return err
	}
	if d.ClickHook != nil {
		if err := d.ClickHook(fe); err != nil {
			return err
		}
	}
	if !fe.displayed(now) || fe.Obscured {
		return driver.NewError(driver.KindNotInteractable, "click", fe.String(), errors.New("element click intercepted"))
	}
	fe.Clicks++
	return nil
}

func (d *FakeDriver) SendKeys(ctx context.Context, el driver.Element, text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.record("sendkeys")
	fe, err := d.elem("send keys", el, now)
	if err != nil {
		return err
	}
	if d.SendKeysHook != nil {
		if err := d.SendKeysHook(fe, text); err != nil {
			return err
		}
	}
	if !fe.displayed(now) || !fe.Enabled {
		return driver.NewError(driver.KindNotInteractable, "send keys", fe.String(), nil)
	}
	fe.Keys = append(fe.Keys, text)
	switch text {
	case driver.KeyTab, driver.KeyEnter, driver.KeyEscape:
	default:
		fe.Value += text
	}
	return nil
}

func (d *FakeDriver) Clear(ctx context.Context, el driver.Element) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.record("clear")
	fe, err := d.elem("clear", el, now)
	if err != nil {
		return err
	}
	fe.Value = ""
	return nil
}

func (d *FakeDriver) Hover(ctx context.Context, el driver.Element) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.record("hover")
	fe, err := d.elem("hover", el, now)
	if err != nil {
		return err
	}
	if d.HoverHook != nil {
		if err := d.HoverHook(fe); err != nil {
			return err
		}
	}
	fe.Hovers++
	return nil
}

func (d *FakeDriver) IsDisplayed(ctx context.Context, el driver.Element) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.record("displayed")
	fe, err := d.elem("is displayed", el, now)
	if err != nil {
		return false, err
	}
	return fe.displayed(now), nil
}

func (d *FakeDriver) IsEnabled(ctx context.Context, el driver.Element) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.record("enabled")
	fe, err := d.elem("is enabled", el, now)
	if err != nil {
		return false, err
	}
	return fe.Enabled, nil
}

func (d *FakeDriver) IsObscured(ctx context.Context, el driver.Element) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.record("obscured")
	fe, err := d.elem("is obscured", el, now)
	if err != nil {
		return false, err
	}
	return fe.Obscured, nil
}

func (d *FakeDriver) Text(ctx context.Context, el driver.Element) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.record("text")
	fe, err := d.elem("text", el, now)
	if err != nil {
		return "", err
	}
	if fe.TextFunc != nil {
		return fe.TextFunc(now), nil
	}
	return fe.TextValue, nil
}

// ExecuteScript records "script". Without a hook, a script containing
// this.click() clicks the element regardless of overlays.
func (d *FakeDriver) ExecuteScript(ctx context.Context, script string, el driver.Element, res any) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.record("script")

	var fe *FakeElement
	if el != nil {
		var err error
		if fe, err = d.elem("execute script", el, now); err != nil {
			return err
		}
	}

	if d.ScriptHook != nil {
		v, err := d.ScriptHook(script, fe)
		if err != nil {
			return err
		}
		if res != nil && v != nil {
			raw, err := json.Marshal(v)
			if err != nil {
				return err
			}
			return json.Unmarshal(raw, res)
		}
		return nil
	}

	if fe != nil && strings.Contains(script, "this.click()") {
		fe.Clicks++
	}
	return nil
}

func (d *FakeDriver) Navigate(ctx context.Context, url string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("navigate")
	if d.NavigateHook != nil {
		if err := d.NavigateHook(url); err != nil {
			return err
		}
	}
	d.url = url
	return nil
}

// Refresh runs RefreshHook without holding the lock so the hook can
// reshape the page through Add and Remove.
func (d *FakeDriver) Refresh(ctx context.Context) error {
	d.mu.Lock()
	d.record("refresh")
	hook := d.RefreshHook
	d.mu.Unlock()
	if hook != nil {
		return hook()
	}
	return nil
}

func (d *FakeDriver) Title(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("title")
	return d.title, nil
}

func (d *FakeDriver) CurrentURL(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("url")
	return d.url, nil
}

func (d *FakeDriver) ReadyState(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("readystate")
	return d.readyState, nil
}

func (d *FakeDriver) AcceptAlert(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("alert")
	if !d.alertOpen {
		return driver.NewError(driver.KindNoAlert, "accept alert", "", nil)
	}
	d.alertOpen = false
	return nil
}

func (d *FakeDriver) Screenshot(ctx context.Context) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("screenshot")
	if d.ScreenshotHook != nil {
		return d.ScreenshotHook()
	}
	return []byte("\x89PNG fake"), nil
}
