package interact

import (
	"context"
	"fmt"

	"github.com/xkilldash9x/bolt/internal/driver"
	"github.com/xkilldash9x/bolt/internal/waiter"
)

const (
	scrollIntoViewScript = `function() { this.scrollIntoView(true); }`
	// Lightning draws a ticked checkbox with an ::after pseudo-element whose
	// computed content is the empty string literal.
	checkboxAfterScript = `function() { return window.getComputedStyle(this, '::after').getPropertyValue('content'); }`
)

// ScriptClick clicks el through script, bypassing overlays and native event quirks.
func (i *Interactor) ScriptClick(ctx context.Context, el driver.Element) error {
	return i.drv.ExecuteScript(ctx, clickScript, el, nil)
}

// ScrollIntoView scrolls el to the top of the viewport.
func (i *Interactor) ScrollIntoView(ctx context.Context, el driver.Element) error {
	return i.drv.ExecuteScript(ctx, scrollIntoViewScript, el, nil)
}

// CheckboxChecked reports whether a Lightning checkbox is ticked.
func (i *Interactor) CheckboxChecked(ctx context.Context, el driver.Element) (bool, error) {
	var content string
	if err := i.drv.ExecuteScript(ctx, checkboxAfterScript, el, &content); err != nil {
		return false, fmt.Errorf("reading checkbox state of %s: %w", el, err)
	}
	return content == `""`, nil
}

// PressEscape sends Escape to el, typically to close a menu or modal.
func (i *Interactor) PressEscape(ctx context.Context, el driver.Element) error {
	return i.drv.SendKeys(ctx, el, driver.KeyEscape)
}

// PressEnter sends Enter to el.
func (i *Interactor) PressEnter(ctx context.Context, el driver.Element) error {
	return i.drv.SendKeys(ctx, el, driver.KeyEnter)
}

// HoverAndClick hovers over hover, waits for click to become clickable and clicks it.
func (i *Interactor) HoverAndClick(ctx context.Context, hover, click driver.Element) error {
	if _, err := i.w.Visible(ctx, waiter.Elem(hover), i.w.Presets().Default); err != nil {
		return err
	}
	if err := i.drv.Hover(ctx, hover); err != nil {
		return err
	}
	if _, err := i.w.Clickable(ctx, waiter.Elem(click), i.recovery.ClickableTimeout); err != nil {
		return err
	}
	return i.drv.Click(ctx, click)
}

// FirstVisible returns the first displayed element matching loc, or nil.
func (i *Interactor) FirstVisible(ctx context.Context, loc driver.Locator) (driver.Element, error) {
	els, err := i.drv.FindElements(ctx, loc)
	if err != nil {
		return nil, err
	}
	for _, el := range els {
		if shown, err := i.drv.IsDisplayed(ctx, el); err == nil && shown {
			return el, nil
		}
	}
	return nil, nil
}

// TextOfFirstAvailable returns the text of the first element in els whose
// text can be read and is not empty.
func (i *Interactor) TextOfFirstAvailable(ctx context.Context, els ...driver.Element) string {
	for _, el := range els {
		if el == nil {
			continue
		}
		if text, err := i.drv.Text(ctx, el); err == nil && text != "" {
			return text
		}
	}
	return ""
}
