// Package scenario runs scenarios step by step, wrapping each one in the
// hooks a suite needs: a pause while a LOCK file exists, start and end lines
// in the run summary, a screenshot when it does not pass, and reports.
package scenario

import (
	"context"
	"fmt"
	"maps"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xkilldash9x/bolt/internal/clock"
	"go.uber.org/zap"
)

// Status is how a scenario ended.
type Status int

const (
	Passed Status = iota
	Failed
	Skipped
)

func (s Status) String() string {
	switch s {
	case Passed:
		return "PASSED"
	case Failed:
		return "FAILED"
	case Skipped:
		return "SKIPPED"
	default:
		return "UNKNOWN"
	}
}

// Value keys every scenario starts with.
const (
	KeyAlternativeBillingSystem = "alternativeBillingSystem"
	KeyReApproval               = "reApproval"
	KeyIntegratedProduct        = "integratedProduct"
	KeyTaxable                  = "taxable"
)

// Context carries one scenario's identity and the values its steps share.
type Context struct {
	ID          uuid.UUID
	Name        string
	FeatureTag  string
	ScenarioTag string
	StartedAt   time.Time

	mu     sync.Mutex
	values map[string]string
}

// NewContext creates a context for a scenario. The first tag is the feature
// tag and the second the scenario tag.
func NewContext(name string, tags []string, now time.Time) (*Context, error) {
	if len(tags) < 2 {
		return nil, fmt.Errorf("scenario %q needs a feature tag and a scenario tag, got %d tag(s)", name, len(tags))
	}
	return &Context{
		ID:          uuid.New(),
		Name:        name,
		FeatureTag:  tags[0],
		ScenarioTag: tags[1],
		StartedAt:   now,
		values: map[string]string{
			KeyAlternativeBillingSystem: "False",
			KeyReApproval:               "False",
			KeyIntegratedProduct:        "False",
			KeyTaxable:                  "False",
		},
	}, nil
}

// Label is "<feature tag>:<scenario tag>", as used in the run summary.
func (c *Context) Label() string { return c.FeatureTag + ":" + c.ScenarioTag }

func (c *Context) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[key]
	return v, ok
}

// Value returns the value under key, or "".
func (c *Context) Value(key string) string {
	v, _ := c.Get(key)
	return v
}

func (c *Context) Set(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
}

// Values returns a copy of every value.
func (c *Context) Values() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return maps.Clone(c.values)
}

// URLSource reports the browser's current URL.
type URLSource interface {
	CurrentURL(ctx context.Context) (string, error)
}

// StoreURL saves the current URL under key. A freshly navigated page can
// report an empty URL for a moment, so it reads up to attempts times, delay
// apart, until the URL is not blank.
func (c *Context) StoreURL(ctx context.Context, src URLSource, clk clock.Clock, logger *zap.Logger, key string, attempts int, delay time.Duration) (string, error) {
	var url string
	for n := 0; n < attempts; n++ {
		if n > 0 {
			if err := clk.Sleep(ctx, delay); err != nil {
				return "", err
			}
		}
		u, err := src.CurrentURL(ctx)
		if err != nil {
			return "", fmt.Errorf("reading current url for %q: %w", key, err)
		}
		url = u
		c.Set(key, url)
		if strings.TrimSpace(url) != "" {
			break
		}
	}
	if logger != nil {
		logger.Info("Url stored as:\n" + key + ": " + url)
	}
	return url, nil
}
