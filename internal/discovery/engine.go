// Package discovery enumerates the detail-page URLs of a category.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/user/event-harvest/internal/category"
	"github.com/user/event-harvest/internal/entity"
	"github.com/user/event-harvest/internal/repository"
	"github.com/user/event-harvest/pkg/metrics"
	"github.com/user/event-harvest/pkg/utils"
)

const (
	maxBackoff   = 30 * time.Second
	jitterFactor = 0.2
)

// Options tune retries and the scroll-to-stable loop.
type Options struct {
	MaxAttempts int
	Backoff     time.Duration
	// ScrollSettle is the pause between a scroll and the next height measurement.
	ScrollSettle time.Duration
	MaxScrolls   int
}

// FetchError is a listing page that could not be rendered or stabilized.
type FetchError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("listing %s failed after %d attempts: %v", e.URL, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Result is the frozen outcome of a discovery run.
type Result struct {
	URLs         []entity.DetailURL
	ListingPages int
	Skipped      []*FetchError
}

// Engine discovers detail URLs through one page fetcher it does not own.
type Engine struct {
	fetcher repository.PageFetcher
	opts    Options
	sleep   func(ctx context.Context, d time.Duration) error
}

func NewEngine(fetcher repository.PageFetcher, opts Options) *Engine {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if opts.MaxScrolls < 1 {
		opts.MaxScrolls = 1
	}
	return &Engine{fetcher: fetcher, opts: opts, sleep: sleepCtx}
}

// Discover enumerates listing pages of c, extracts detail links and returns the
// deduplicated URLs in first-seen order. The prefix slice applies to the links of the
// first listing page only, where pinned entries are shown; when that page is skipped
// nothing is sliced. Failing listing pages
// are retried with backoff and then skipped; only cancellation or a lost session
// aborts the run.
func (e *Engine) Discover(ctx context.Context, c category.Category) (*Result, error) {
	start := time.Now()
	defer func() {
		metrics.PhaseDuration.WithLabelValues(c.Name, "discovery").Observe(time.Since(start).Seconds())
	}()

	res := &Result{}
	var all []entity.DetailURL
	for i, listingURL := range c.Discovery.ListingURLs() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res.ListingPages++

		links, err := e.listing(ctx, c, listingURL)
		if err != nil {
			if isFatal(ctx, err) {
				return nil, err
			}
			var fe *FetchError
			if !errors.As(err, &fe) {
				fe = &FetchError{URL: listingURL, Attempts: 1, Err: err}
			}
			res.Skipped = append(res.Skipped, fe)
			metrics.PagesTotal.WithLabelValues(c.Name, "discovery", "skipped").Inc()
			slog.Warn("Skipping listing page", "category", c.Name, "url", listingURL, "error", err)
			continue
		}
		metrics.PagesTotal.WithLabelValues(c.Name, "discovery", "success").Inc()
		slog.Debug("Listing page scanned", "category", c.Name, "url", listingURL, "links", len(links))
		if i == 0 {
			links = SkipPrefix(links, c.Discovery.SkipPrefix)
		}
		all = append(all, links...)
	}

	res.URLs = Dedup(all)
	slog.Info("Discovery finished", "category", c.Name,
		"listing_pages", res.ListingPages, "skipped_pages", len(res.Skipped), "detail_urls", len(res.URLs))
	return res, nil
}

func (e *Engine) listing(ctx context.Context, c category.Category, listingURL string) ([]entity.DetailURL, error) {
	var lastErr error
	for attempt := 1; attempt <= e.opts.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := e.sleep(ctx, utils.Backoff(e.opts.Backoff, maxBackoff, attempt-1, jitterFactor)); err != nil {
				return nil, err
			}
		}
		links, err := e.listingOnce(ctx, c, listingURL)
		if err == nil {
			return links, nil
		}
		if isFatal(ctx, err) {
			return nil, err
		}
		lastErr = err
		slog.Debug("Listing attempt failed", "url", listingURL, "attempt", attempt, "error", err)
	}
	return nil, &FetchError{URL: listingURL, Attempts: e.opts.MaxAttempts, Err: lastErr}
}

func (e *Engine) listingOnce(ctx context.Context, c category.Category, listingURL string) ([]entity.DetailURL, error) {
	page, err := e.fetcher.Render(ctx, listingURL)
	if err != nil {
		return nil, err
	}
	defer e.fetcher.Release(page)

	if c.Discovery.Strategy == category.InfiniteScroll {
		if err := e.scrollToStable(ctx, page); err != nil {
			return nil, err
		}
		if err := e.fetcher.Refresh(ctx, page); err != nil {
			return nil, err
		}
	}
	return ExtractLinks(page.HTML, page.URL, c.Discovery)
}

// scrollToStable scrolls until two consecutive height measurements agree.
func (e *Engine) scrollToStable(ctx context.Context, page *entity.Page) error {
	prev, err := e.fetcher.MeasureHeight(ctx, page)
	if err != nil {
		return err
	}
	for i := 0; i < e.opts.MaxScrolls; i++ {
		if err := e.fetcher.ScrollToBottom(ctx, page); err != nil {
			return err
		}
		if err := e.sleep(ctx, e.opts.ScrollSettle); err != nil {
			return err
		}
		height, err := e.fetcher.MeasureHeight(ctx, page)
		if err != nil {
			return err
		}
		if height == prev {
			return nil
		}
		prev = height
	}
	slog.Warn("Scroll limit reached before the page stabilized", "url", page.URL, "max_scrolls", e.opts.MaxScrolls)
	return nil
}

// isFatal reports whether err ends the whole run: the caller's context is done or
// the rendering session is gone. Per-page timeouts are not fatal.
func isFatal(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, repository.ErrSessionClosed)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
