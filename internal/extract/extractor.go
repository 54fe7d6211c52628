// Package extract reads category fields from rendered detail pages.
//
// Missing selectors are not errors: a rule whose target element, attribute or style
// pattern is absent yields a null field, and the remaining fields are still read.
package extract

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/user/event-harvest/internal/entity"
)

const (
	defaultImageAttr = "src"
	defaultStyleAttr = "style"
)

// Extract parses the page snapshot and applies every rule of sm. The page is not modified.
func Extract(page *entity.Page, sm entity.SelectorMap) (*entity.Record, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		return nil, fmt.Errorf("parse html of %s: %w", page.URL, err)
	}
	return ExtractDocument(doc, entity.DetailURL(page.URL), sm), nil
}

// ExtractDocument applies sm to an already parsed document.
func ExtractDocument(doc *goquery.Document, u entity.DetailURL, sm entity.SelectorMap) *entity.Record {
	rec := entity.NewRecord(u)
	for _, rule := range sm {
		rec.Set(rule.Field, Field(doc.Selection, rule))
	}
	return rec
}

// Field resolves one rule against root. It returns nil for any miss.
func Field(root *goquery.Selection, rule entity.Rule) *string {
	kind := rule.Kind()
	if kind == "" {
		return nil
	}
	sel := root.Find(rule.Selector()).First()
	if sel.Length() == 0 {
		return nil
	}

	switch kind {
	case entity.RuleText:
		v := postProcess(NormalizeText(sel.Text()), rule.Remove, rule.StripSpaces)
		return &v

	case entity.RuleAttr:
		name := rule.Attribute
		if name == "" {
			name = defaultImageAttr
		}
		v, ok := sel.Attr(name)
		if !ok {
			return nil
		}
		return &v

	case entity.RuleStyleAttr:
		name := rule.Attribute
		if name == "" {
			name = defaultStyleAttr
		}
		style, ok := sel.Attr(name)
		if !ok {
			return nil
		}
		p := entity.DefaultStylePattern
		if rule.Pattern != nil {
			p = *rule.Pattern
		}
		v, ok := ParseStyleURL(style, p.Prefix, p.Suffix)
		if !ok {
			return nil
		}
		return &v
	}
	return nil
}
