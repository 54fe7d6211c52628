package discovery

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/user/event-harvest/internal/category"
	"github.com/user/event-harvest/internal/entity"
	"github.com/user/event-harvest/pkg/utils"
)

// handlerPattern matches name('id') or name("id") and captures id.
func handlerPattern(name string) *regexp.Regexp {
	return regexp.MustCompile(`\b` + regexp.QuoteMeta(name) + `\(\s*['"]?([^'",)\s]+)['"]?\s*[,)]`)
}

// ExtractLinks returns the detail URLs of a listing page in document order.
// An anchor qualifies through its resolved href or, failing that, through the
// configured click handler whose argument is substituted into the detail template.
func ExtractLinks(html, pageURL string, d category.Discovery) ([]entity.DetailURL, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse listing %s: %w", pageURL, err)
	}
	for _, s := range d.Strip {
		doc.Find(s).Remove()
	}

	rawBase := d.BaseURL
	if rawBase == "" {
		rawBase = pageURL
	}
	base, err := url.Parse(rawBase)
	if err != nil {
		return nil, fmt.Errorf("parse base url %q: %w", rawBase, err)
	}

	var re *regexp.Regexp
	if d.Link.Handler != nil {
		re = handlerPattern(d.Link.Handler.Name)
	}

	var out []entity.DetailURL
	doc.Find("a").Each(func(_ int, a *goquery.Selection) {
		href, hasHref := a.Attr("href")
		href = strings.TrimSpace(href)
		if hasHref && d.Link.PathContains != "" && !strings.HasPrefix(strings.ToLower(href), "javascript:") {
			if abs, err := utils.ToAbsoluteURL(base, href); err == nil && strings.Contains(abs, d.Link.PathContains) {
				out = append(out, entity.DetailURL(abs))
				return
			}
		}
		if re == nil {
			return
		}
		for _, script := range []string{a.AttrOr("onclick", ""), href} {
			if m := re.FindStringSubmatch(script); m != nil {
				u := strings.ReplaceAll(d.Link.Handler.URLTemplate, category.IDPlaceholder, url.QueryEscape(m[1]))
				out = append(out, entity.DetailURL(u))
				return
			}
		}
	})
	return out, nil
}

// SkipPrefix drops the first n entries, used for pinned or promotional items.
func SkipPrefix(urls []entity.DetailURL, n int) []entity.DetailURL {
	if n <= 0 {
		return urls
	}
	if n >= len(urls) {
		return nil
	}
	return urls[n:]
}

// Dedup removes repeated URLs, keeping the first occurrence in order.
func Dedup(urls []entity.DetailURL) []entity.DetailURL {
	seen := make(map[entity.DetailURL]struct{}, len(urls))
	out := make([]entity.DetailURL, 0, len(urls))
	for _, u := range urls {
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
