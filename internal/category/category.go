// Package category holds per-source harvest configuration: how to discover detail
// pages and which selector map reads their fields.
package category

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/andybalholm/cascadia"
	"gopkg.in/yaml.v3"

	"github.com/user/event-harvest/internal/entity"
)

//go:embed defaults/categories.yaml
var defaultCategories []byte

// Strategy selects how listing pages are enumerated.
type Strategy string

const (
	Paginated      Strategy = "paginated"
	InfiniteScroll Strategy = "infinite_scroll"
)

const (
	PagePlaceholder     = "{page}"
	CategoryPlaceholder = "{category}"
	IDPlaceholder       = "{id}"
)

// PageRange enumerates listing pages start <= page < end of one sub-category.
type PageRange struct {
	Category string `yaml:"category"`
	Start    int    `yaml:"start"`
	End      int    `yaml:"end"`
}

// Handler recovers a detail id from an inline click handler such as goDetail('123').
type Handler struct {
	Name        string `yaml:"name"`
	URLTemplate string `yaml:"url_template"`
}

// LinkRule decides which anchors on a listing page point at detail pages.
type LinkRule struct {
	PathContains string   `yaml:"path_contains"`
	Handler      *Handler `yaml:"handler,omitempty"`
}

type Discovery struct {
	Strategy    Strategy    `yaml:"strategy"`
	URLTemplate string      `yaml:"url_template,omitempty"`
	Ranges      []PageRange `yaml:"ranges,omitempty"`
	SeedURL     string      `yaml:"seed_url,omitempty"`
	// BaseURL resolves relative hrefs; the listing page URL is used when empty.
	BaseURL string   `yaml:"base_url,omitempty"`
	Link    LinkRule `yaml:"link"`
	// Strip lists elements removed from listing pages before link extraction.
	Strip []string `yaml:"strip,omitempty"`
	// SkipPrefix drops that many leading links of the first listing page (pinned or promotional entries).
	SkipPrefix int `yaml:"skip_prefix,omitempty"`
}

// Category is one harvest source.
type Category struct {
	Name          string             `yaml:"name"`
	Columns       []string           `yaml:"columns"`
	ContentFields []string           `yaml:"content_fields"`
	Discovery     Discovery          `yaml:"discovery"`
	Selectors     entity.SelectorMap `yaml:"selectors"`
}

type file struct {
	Categories []Category `yaml:"categories"`
}

// Load reads categories from path, or the built-in set when path is empty.
func Load(path string) ([]Category, error) {
	if path == "" {
		return Parse(defaultCategories)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read categories: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a categories YAML document.
func Parse(data []byte) ([]Category, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode categories: %w", err)
	}
	if len(f.Categories) == 0 {
		return nil, errors.New("no categories defined")
	}
	seen := make(map[string]bool, len(f.Categories))
	for i := range f.Categories {
		c := &f.Categories[i]
		if len(c.Columns) == 0 {
			for _, r := range c.Selectors {
				c.Columns = append(c.Columns, r.Field)
			}
		}
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("category %q: %w", c.Name, err)
		}
		if seen[c.Name] {
			return nil, fmt.Errorf("category %q defined twice", c.Name)
		}
		seen[c.Name] = true
	}
	return f.Categories, nil
}

// Find returns the category with the given name.
func Find(cats []Category, name string) (Category, bool) {
	for _, c := range cats {
		if c.Name == name {
			return c, true
		}
	}
	return Category{}, false
}

func (c *Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return errors.New("name is required")
	}
	if n := len(c.ContentFields); n < 1 || n > 2 {
		return fmt.Errorf("content_fields must name one or two columns, got %d", n)
	}
	for _, f := range c.ContentFields {
		if !slices.Contains(c.Columns, f) {
			return fmt.Errorf("content field %q is not a column", f)
		}
	}
	if slices.Contains(c.Columns, entity.ContentField) {
		return fmt.Errorf("column %q is reserved for the merged content", entity.ContentField)
	}
	for _, r := range c.Selectors {
		if !slices.Contains(c.Columns, r.Field) {
			return fmt.Errorf("selector for unknown column %q", r.Field)
		}
		if err := validateRule(r); err != nil {
			return fmt.Errorf("selector %q: %w", r.Field, err)
		}
	}
	return c.Discovery.validate()
}

func validateRule(r entity.Rule) error {
	set := 0
	for _, s := range []string{r.Text, r.Attr, r.StyleAttr} {
		if s != "" {
			set++
		}
	}
	if set != 1 {
		return errors.New("exactly one of text, attr or styleAttr must be set")
	}
	if _, err := cascadia.Compile(r.Selector()); err != nil {
		return fmt.Errorf("invalid css selector: %w", err)
	}
	if r.Pattern != nil && r.Pattern.Prefix == "" {
		return errors.New("style pattern needs a prefix")
	}
	return nil
}

func (d *Discovery) validate() error {
	switch d.Strategy {
	case Paginated:
		if !strings.Contains(d.URLTemplate, PagePlaceholder) {
			return fmt.Errorf("paginated url_template must contain %s", PagePlaceholder)
		}
		if len(d.Ranges) == 0 {
			return errors.New("paginated discovery needs at least one range")
		}
		for _, r := range d.Ranges {
			if r.Start < 0 || r.End <= r.Start {
				return fmt.Errorf("invalid page range [%d, %d)", r.Start, r.End)
			}
		}
	case InfiniteScroll:
		if d.SeedURL == "" {
			return errors.New("infinite_scroll discovery needs seed_url")
		}
	default:
		return fmt.Errorf("unknown discovery strategy %q", d.Strategy)
	}
	if d.Link.PathContains == "" && d.Link.Handler == nil {
		return errors.New("link rule needs path_contains or handler")
	}
	if h := d.Link.Handler; h != nil {
		if h.Name == "" || !strings.Contains(h.URLTemplate, IDPlaceholder) {
			return fmt.Errorf("handler needs a name and a url_template containing %s", IDPlaceholder)
		}
	}
	if d.SkipPrefix < 0 {
		return errors.New("skip_prefix must not be negative")
	}
	for _, s := range d.Strip {
		if _, err := cascadia.Compile(s); err != nil {
			return fmt.Errorf("invalid strip selector %q: %w", s, err)
		}
	}
	return nil
}

// ListingURLs expands the paginated template into one URL per page per range, in range order.
func (d *Discovery) ListingURLs() []string {
	if d.Strategy == InfiniteScroll {
		return []string{d.SeedURL}
	}
	var urls []string
	for _, r := range d.Ranges {
		for p := r.Start; p < r.End; p++ {
			u := strings.ReplaceAll(d.URLTemplate, PagePlaceholder, strconv.Itoa(p))
			u = strings.ReplaceAll(u, CategoryPlaceholder, r.Category)
			urls = append(urls, u)
		}
	}
	return urls
}
