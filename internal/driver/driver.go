// internal/driver/driver.go
package driver

import (
	"context"
	"fmt"
)

// Strategy selects how a locator query is evaluated.
type Strategy int

const (
	ByXPath Strategy = iota
	ByCSS
)

func (s Strategy) String() string {
	if s == ByCSS {
		return "css"
	}
	return "xpath"
}

// Locator is an unresolved, re-evaluatable reference to zero or more elements.
type Locator struct {
	By    Strategy `yaml:"by"`
	Query string   `yaml:"query"`
	// Description is a human label used in logs and errors.
	Description string `yaml:"description,omitempty"`
}

// XPath returns an XPath locator.
func XPath(query string) Locator { return Locator{By: ByXPath, Query: query} }

// CSS returns a CSS selector locator.
func CSS(query string) Locator { return Locator{By: ByCSS, Query: query} }

// Named returns a copy of l with a description attached.
func (l Locator) Named(description string) Locator {
	l.Description = description
	return l
}

func (l Locator) String() string {
	if l.Description != "" {
		return fmt.Sprintf("%s (%s %s)", l.Description, l.By, l.Query)
	}
	return fmt.Sprintf("%s %s", l.By, l.Query)
}

// IsZero reports whether l has no query.
func (l Locator) IsZero() bool { return l.Query == "" }

// Element is a resolved handle to a live element. It can go stale.
type Element interface {
	// Locator is the query the element was resolved from.
	Locator() Locator
	String() string
}

// Special keys accepted by SendKeys.
const (
	KeyTab    = "\t"
	KeyEnter  = "\r"
	KeyEscape = "\u001b"
)

// Driver is the browser capability the engine consumes. Implementations
// return *Error (or anything implementing Kind() ErrorKind) so callers can
// tell stale references, missing elements, timeouts and non-interactable
// elements apart.
type Driver interface {
	// FindElement returns the first match or a KindNoSuchElement error.
	FindElement(ctx context.Context, loc Locator) (Element, error)
	// FindElements returns every match. Zero matches is not an error.
	FindElements(ctx context.Context, loc Locator) ([]Element, error)

	Click(ctx context.Context, el Element) error
	SendKeys(ctx context.Context, el Element, text string) error
	Clear(ctx context.Context, el Element) error
	Hover(ctx context.Context, el Element) error

	IsDisplayed(ctx context.Context, el Element) (bool, error)
	IsEnabled(ctx context.Context, el Element) (bool, error)
	// IsObscured reports whether another element covers el's centre point.
	IsObscured(ctx context.Context, el Element) (bool, error)
	Text(ctx context.Context, el Element) (string, error)

	// ExecuteScript runs a JavaScript function. With a non-nil el the
	// function is called with this bound to the element. The JSON result
	// is decoded into res when res is non-nil.
	ExecuteScript(ctx context.Context, script string, el Element, res any) error

	Navigate(ctx context.Context, url string) error
	Refresh(ctx context.Context) error
	Title(ctx context.Context) (string, error)
	CurrentURL(ctx context.Context) (string, error)
	ReadyState(ctx context.Context) (string, error)
	// AcceptAlert accepts an open dialog or returns a KindNoAlert error.
	AcceptAlert(ctx context.Context) error
	Screenshot(ctx context.Context) ([]byte, error)
}
