package pages

import (
	"errors"
	"fmt"
	"os"

	"github.com/mitchellh/go-homedir"
	"github.com/xkilldash9x/bolt/internal/driver"
	"gopkg.in/yaml.v3"
)

// CatalogEntry is one locator override. Exactly one of XPath and CSS is set.
type CatalogEntry struct {
	XPath       string `yaml:"xpath,omitempty"`
	CSS         string `yaml:"css,omitempty"`
	Description string `yaml:"description,omitempty"`
}

func (e CatalogEntry) locator() driver.Locator {
	if e.CSS != "" {
		return driver.CSS(e.CSS)
	}
	return driver.XPath(e.XPath)
}

// Catalog overrides built-in page locators without a rebuild, for orgs whose
// layouts differ. Keys are page name, then element name:
//
//	pages:
//	  Home:
//	    logo:
//	      css: .slds-global-header__logo
//
// A nil *Catalog overrides nothing.
type Catalog struct {
	Pages map[string]map[string]CatalogEntry `yaml:"pages"`
}

// ParseCatalog decodes and validates a YAML catalog.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decoding locator catalog: %w", err)
	}
	var errs []error
	for page, entries := range c.Pages {
		for name, e := range entries {
			if (e.XPath == "") == (e.CSS == "") {
				errs = append(errs, fmt.Errorf("%s.%s: exactly one of xpath and css must be set", page, name))
			}
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("invalid locator catalog: %w", err)
	}
	return &c, nil
}

// LoadCatalog reads a catalog file. An empty path yields an empty catalog.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return &Catalog{}, nil
	}
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("expanding catalog path %q: %w", path, err)
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		return nil, fmt.Errorf("reading locator catalog: %w", err)
	}
	return ParseCatalog(data)
}

// Lookup returns the override for page/name, or def when there is none. An
// override without a description keeps def's.
func (c *Catalog) Lookup(page, name string, def driver.Locator) driver.Locator {
	if c == nil {
		return def
	}
	e, ok := c.Pages[page][name]
	if !ok {
		return def
	}
	desc := e.Description
	if desc == "" {
		desc = def.Description
	}
	return e.locator().Named(desc)
}

// Len counts the overrides.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	n := 0
	for _, entries := range c.Pages {
		n += len(entries)
	}
	return n
}
