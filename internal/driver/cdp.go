// internal/driver/cdp.go
package driver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const defaultCommandTimeout = 30 * time.Second

// Element functions run with this bound to the node. They are wrapped so a
// detached node reports itself as stale instead of silently answering.
const staleMarker = "__boltStale"

const (
	textFn = `function() {
		const t = (this.innerText !== undefined) ? this.innerText : this.textContent;
		return t || "";
	}`
	displayedFn = `function() {
		const rect = this.getBoundingClientRect();
		const style = window.getComputedStyle(this);
		return rect.width > 0 && rect.height > 0 &&
			style.display !== 'none' && style.visibility !== 'hidden' && style.opacity !== '0';
	}`
	enabledFn = `function() {
		return !this.disabled && this.getAttribute('aria-disabled') !== 'true';
	}`
	obscuredFn = `function() {
		const rect = this.getBoundingClientRect();
		const x = rect.left + rect.width / 2;
		const y = rect.top + rect.height / 2;
		const top = document.elementFromPoint(x, y);
		return !(top && (top === this || this.contains(top)));
	}`
	clearFn = `function() {
		this.focus();
		if ('value' in this) { this.value = ''; }
		else if (this.isContentEditable) { this.textContent = ''; }
		this.dispatchEvent(new Event('input', { bubbles: true }));
		this.dispatchEvent(new Event('change', { bubbles: true }));
	}`
	centerFn = `function() {
		this.scrollIntoView({ block: 'center', inline: 'center' });
		const rect = this.getBoundingClientRect();
		return { x: rect.left + rect.width / 2, y: rect.top + rect.height / 2 };
	}`
)

type runActionsFunc func(ctx context.Context, actions ...chromedp.Action) error

type cdpElement struct {
	node  *cdp.Node
	loc   Locator
	index int
}

func (e *cdpElement) Locator() Locator { return e.loc }

func (e *cdpElement) String() string {
	return fmt.Sprintf("%s[%d]", e.loc, e.index)
}

type callResult struct {
	Stale bool                `json:"__boltStale"`
	Value jsoniter.RawMessage `json:"value"`
}

type point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// CDP drives Chrome over the DevTools protocol through chromedp.
type CDP struct {
	ctx            context.Context // browser context carrying the CDP target
	cancel         context.CancelFunc
	logger         *zap.Logger
	timeout        time.Duration
	runActionsFunc runActionsFunc
}

var _ Driver = (*CDP)(nil)

// NewCDP wraps an existing chromedp browser context.
func NewCDP(browserCtx context.Context, logger *zap.Logger, commandTimeout time.Duration) *CDP {
	if logger == nil {
		logger = zap.NewNop()
	}
	if commandTimeout <= 0 {
		commandTimeout = defaultCommandTimeout
	}
	d := &CDP{
		ctx:     browserCtx,
		cancel:  func() {},
		logger:  logger.Named("CDPDriver"),
		timeout: commandTimeout,
	}
	d.runActionsFunc = d.runActions
	return d
}

// runActions executes actions against the browser, cancelled by either context.
func (d *CDP) runActions(ctx context.Context, actions ...chromedp.Action) error {
	combined, cancel := CombineContext(d.ctx, ctx)
	defer cancel()
	return chromedp.Run(combined, actions...)
}

// Close shuts down the browser if this driver launched it.
func (d *CDP) Close() error {
	d.cancel()
	return nil
}

func (d *CDP) run(ctx context.Context, op, target string, actions ...chromedp.Action) error {
	opCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	err := d.runActionsFunc(opCtx, actions...)
	if err == nil {
		return nil
	}
	// The caller gave up; that is not a driver condition and must not be retried.
	if ctx.Err() != nil {
		return fmt.Errorf("%s %s: %w", op, target, ctx.Err())
	}
	kind := classifyCDPError(err)
	if kind == KindTimeout && opCtx.Err() == context.DeadlineExceeded {
		d.logger.Debug("CDP command timed out.", zap.String("op", op), zap.Duration("timeout", d.timeout))
	}
	return NewError(kind, op, target, err)
}

// classifyCDPError maps protocol errors onto error kinds. The protocol only
// reports free-form messages, so the mapping is by message text.
func classifyCDPError(err error) ErrorKind {
	var k kinded
	if errors.As(err, &k) {
		return k.Kind()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var exc *runtime.ExceptionDetails
	if errors.As(err, &exc) {
		return KindScript
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg,
		"no node with given id",
		"could not find node with given id",
		"node is detached",
		"node with given id does not belong to the document",
		"cannot find context with specified id"):
		return KindStale
	case containsAny(msg,
		"could not compute content quads",
		"could not compute box model",
		"node does not have a layout object",
		"not interactable",
		"element is not visible",
		"invalid box model"):
		return KindNotInteractable
	case containsAny(msg, "no dialog is showing"):
		return KindNoAlert
	default:
		return KindDriver
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func (d *CDP) element(op string, el Element) (*cdpElement, error) {
	ce, ok := el.(*cdpElement)
	if !ok || ce == nil || ce.node == nil {
		return nil, NewError(KindStale, op, fmt.Sprint(el), errors.New("element was not resolved by this driver"))
	}
	return ce, nil
}

func wrapElementFunction(fn string) string {
	return fmt.Sprintf(`async function() {
		if (!this.isConnected) { return { %s: true }; }
		const fn = %s;
		const v = await fn.apply(this, arguments);
		return { value: v === undefined ? null : v };
	}`, staleMarker, fn)
}

func exceptionText(exc *runtime.ExceptionDetails) string {
	if exc.Exception != nil && exc.Exception.Description != "" {
		return strings.SplitN(exc.Exception.Description, "\n", 2)[0]
	}
	return exc.Text
}

// callOn invokes fn with this bound to el and decodes its result into res.
func (d *CDP) callOn(ctx context.Context, op string, el Element, fn string, res any) error {
	ce, err := d.element(op, el)
	if err != nil {
		return err
	}
	target := ce.String()

	var raw []byte
	var exc *runtime.ExceptionDetails
	action := chromedp.ActionFunc(func(ctx context.Context) error {
		obj, err := dom.ResolveNode().WithBackendNodeID(ce.node.BackendNodeID).Do(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = runtime.ReleaseObject(obj.ObjectID).Do(ctx) }()

		ret, ex, err := runtime.CallFunctionOn(wrapElementFunction(fn)).
			WithObjectID(obj.ObjectID).
			WithReturnByValue(true).
			WithAwaitPromise(true).
			Do(ctx)
		if err != nil {
			return err
		}
		exc = ex
		if ret != nil {
			raw = ret.Value
		}
		return nil
	})

	if err := d.run(ctx, op, target, action); err != nil {
		return err
	}
	if exc != nil {
		return NewError(KindScript, op, target, errors.New(exceptionText(exc)))
	}
	if len(raw) == 0 {
		return nil
	}

	var cr callResult
	if err := json.Unmarshal(raw, &cr); err != nil {
		return NewError(KindDriver, op, target, fmt.Errorf("failed to decode result: %w", err))
	}
	if cr.Stale {
		return NewError(KindStale, op, target, errors.New("element is no longer attached to the document"))
	}
	if res != nil && len(cr.Value) > 0 {
		if err := json.Unmarshal(cr.Value, res); err != nil {
			return NewError(KindDriver, op, target, fmt.Errorf("failed to decode result: %w", err))
		}
	}
	return nil
}

// -- Lookup --

func (d *CDP) FindElements(ctx context.Context, loc Locator) ([]Element, error) {
	by := chromedp.BySearch
	if loc.By == ByCSS {
		by = chromedp.ByQueryAll
	}

	var nodes []*cdp.Node
	if err := d.run(ctx, "find elements", loc.String(), chromedp.Nodes(loc.Query, &nodes, by, chromedp.AtLeast(0))); err != nil {
		return nil, err
	}

	out := make([]Element, 0, len(nodes))
	for i, n := range nodes {
		out = append(out, &cdpElement{node: n, loc: loc, index: i})
	}
	return out, nil
}

func (d *CDP) FindElement(ctx context.Context, loc Locator) (Element, error) {
	els, err := d.FindElements(ctx, loc)
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		return nil, NewError(KindNoSuchElement, "find element", loc.String(), nil)
	}
	return els[0], nil
}

// -- Element interaction --

func (d *CDP) Click(ctx context.Context, el Element) error {
	ce, err := d.element("click", el)
	if err != nil {
		return err
	}
	return d.run(ctx, "click", ce.String(), chromedp.MouseClickNode(ce.node))
}

func (d *CDP) SendKeys(ctx context.Context, el Element, text string) error {
	ce, err := d.element("send keys", el)
	if err != nil {
		return err
	}
	return d.run(ctx, "send keys", ce.String(), chromedp.KeyEventNode(ce.node, text))
}

func (d *CDP) Clear(ctx context.Context, el Element) error {
	return d.callOn(ctx, "clear", el, clearFn, nil)
}

func (d *CDP) Hover(ctx context.Context, el Element) error {
	var p point
	if err := d.callOn(ctx, "hover", el, centerFn, &p); err != nil {
		return err
	}
	return d.run(ctx, "hover", el.String(), input.DispatchMouseEvent(input.MouseMoved, p.X, p.Y))
}

func (d *CDP) IsDisplayed(ctx context.Context, el Element) (bool, error) {
	var ok bool
	err := d.callOn(ctx, "is displayed", el, displayedFn, &ok)
	return ok, err
}

func (d *CDP) IsEnabled(ctx context.Context, el Element) (bool, error) {
	var ok bool
	err := d.callOn(ctx, "is enabled", el, enabledFn, &ok)
	return ok, err
}

func (d *CDP) IsObscured(ctx context.Context, el Element) (bool, error) {
	var obscured bool
	err := d.callOn(ctx, "is obscured", el, obscuredFn, &obscured)
	return obscured, err
}

func (d *CDP) Text(ctx context.Context, el Element) (string, error) {
	var s string
	err := d.callOn(ctx, "text", el, textFn, &s)
	return s, err
}

// ExecuteScript runs script, which must be a JavaScript function expression.
func (d *CDP) ExecuteScript(ctx context.Context, script string, el Element, res any) error {
	if el != nil {
		return d.callOn(ctx, "execute script", el, script, res)
	}

	expr := fmt.Sprintf(`(async () => { const v = await (%s)(); return v === undefined ? null : v; })()`, script)
	var raw []byte
	err := d.run(ctx, "execute script", "", chromedp.Evaluate(expr, &raw, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
		return p.WithReturnByValue(true).WithAwaitPromise(true)
	}))
	if err != nil {
		return err
	}
	if res != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, res); err != nil {
			return NewError(KindDriver, "execute script", "", fmt.Errorf("failed to decode result: %w", err))
		}
	}
	return nil
}

// -- Page --

func (d *CDP) Navigate(ctx context.Context, url string) error {
	return d.run(ctx, "navigate", url, chromedp.Navigate(url))
}

func (d *CDP) Refresh(ctx context.Context) error {
	return d.run(ctx, "refresh", "", chromedp.Reload())
}

func (d *CDP) Title(ctx context.Context) (string, error) {
	var title string
	err := d.run(ctx, "title", "", chromedp.Title(&title))
	return title, err
}

func (d *CDP) CurrentURL(ctx context.Context) (string, error) {
	var loc string
	err := d.run(ctx, "current url", "", chromedp.Location(&loc))
	return loc, err
}

func (d *CDP) ReadyState(ctx context.Context) (string, error) {
	var state string
	err := d.run(ctx, "ready state", "", chromedp.Evaluate(`document.readyState`, &state))
	return state, err
}

func (d *CDP) AcceptAlert(ctx context.Context) error {
	return d.run(ctx, "accept alert", "", page.HandleJavaScriptDialog(true))
}

func (d *CDP) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	err := d.run(ctx, "screenshot", "", chromedp.CaptureScreenshot(&buf))
	return buf, err
}
