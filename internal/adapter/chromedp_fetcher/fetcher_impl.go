package chromedp_fetcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/user/event-harvest/internal/entity"
	"github.com/user/event-harvest/internal/repository"
	"github.com/user/event-harvest/pkg/utils"
)

const (
	scrollScript = `window.scrollTo(0, document.body.scrollHeight)`
	heightScript = `document.body.scrollHeight`
)

// FetcherOptions configures one headless Chrome session.
type FetcherOptions struct {
	Headless bool
	// ChromePath overrides the browser binary; empty uses the system lookup.
	ChromePath string
	// ImplicitWait bounds the wait for the document body after navigation.
	ImplicitWait    time.Duration
	PageLoadTimeout time.Duration
	UserAgent       string
	AcceptLanguage  string
}

type tab struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// ChromedpFetcher renders pages in tabs of a single Chrome process.
type ChromedpFetcher struct {
	opts          FetcherOptions
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc

	mu     sync.Mutex
	tabs   map[string]*tab
	nextID int
	closed bool
}

// NewFetcher launches the browser. The session outlives ctx; callers must Close it.
func NewFetcher(ctx context.Context, opts FetcherOptions) (*ChromedpFetcher, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(utils.UserAgent(opts.UserAgent)),
	)
	if opts.ChromePath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ChromePath))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, args ...any) {
		slog.Debug(fmt.Sprintf(format, args...))
	}))

	// An empty Run starts the browser process.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("start chrome: %w", err)
	}
	slog.Info("Chrome session started", "headless", opts.Headless)

	return &ChromedpFetcher{
		opts:          opts,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		tabs:          make(map[string]*tab),
	}, nil
}

// Factory opens a fresh Chrome session per call.
func Factory(opts FetcherOptions) repository.FetcherFactory {
	return func(ctx context.Context) (repository.PageFetcher, error) {
		return NewFetcher(ctx, opts)
	}
}

func (f *ChromedpFetcher) Render(ctx context.Context, url string) (*entity.Page, error) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil, repository.ErrSessionClosed
	}
	f.nextID++
	id := strconv.Itoa(f.nextID)
	f.mu.Unlock()

	tabCtx, tabCancel := chromedp.NewContext(f.browserCtx)
	t := &tab{ctx: tabCtx, cancel: tabCancel}

	// The first Run on a tab attaches the target and starts its event loop under the
	// ctx it is given, so it must be the tab's own ctx. A cancelled caller kills the tab.
	stop := context.AfterFunc(ctx, tabCancel)
	err := chromedp.Run(tabCtx)
	if !stop() && err == nil {
		err = ctx.Err()
	}
	if err != nil {
		tabCancel()
		return nil, f.renderError(ctx, url, err)
	}

	var html string
	err = f.run(ctx, t,
		network.Enable(),
		network.SetExtraHTTPHeaders(f.headers()),
		chromedp.Navigate(url),
		chromedp.ActionFunc(func(ctx context.Context) error {
			if f.opts.ImplicitWait <= 0 {
				return chromedp.WaitReady("body", chromedp.ByQuery).Do(ctx)
			}
			waitCtx, cancel := context.WithTimeout(ctx, f.opts.ImplicitWait)
			defer cancel()
			return chromedp.WaitReady("body", chromedp.ByQuery).Do(waitCtx)
		}),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		tabCancel()
		return nil, f.renderError(ctx, url, err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		tabCancel()
		return nil, repository.ErrSessionClosed
	}
	f.tabs[id] = t
	slog.Debug("Page rendered", "url", url, "page_id", id)
	return &entity.Page{ID: id, URL: url, HTML: html, RenderedAt: time.Now()}, nil
}

func (f *ChromedpFetcher) ScrollToBottom(ctx context.Context, page *entity.Page) error {
	t, err := f.tab(page)
	if err != nil {
		return err
	}
	return f.run(ctx, t, chromedp.Evaluate(scrollScript, nil))
}

func (f *ChromedpFetcher) MeasureHeight(ctx context.Context, page *entity.Page) (int64, error) {
	t, err := f.tab(page)
	if err != nil {
		return 0, err
	}
	var height int64
	if err := f.run(ctx, t, chromedp.Evaluate(heightScript, &height)); err != nil {
		return 0, err
	}
	return height, nil
}

func (f *ChromedpFetcher) Refresh(ctx context.Context, page *entity.Page) error {
	t, err := f.tab(page)
	if err != nil {
		return err
	}
	var html string
	if err := f.run(ctx, t, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return err
	}
	page.HTML = html
	return nil
}

// Release closes the page's tab.
func (f *ChromedpFetcher) Release(page *entity.Page) {
	if page == nil {
		return
	}
	f.mu.Lock()
	t, ok := f.tabs[page.ID]
	delete(f.tabs, page.ID)
	f.mu.Unlock()
	if ok {
		t.cancel()
	}
}

func (f *ChromedpFetcher) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	tabs := f.tabs
	f.tabs = nil
	f.mu.Unlock()

	for _, t := range tabs {
		t.cancel()
	}
	f.browserCancel()
	f.allocCancel()
	slog.Info("Chrome session closed")
	return nil
}

// run executes actions on an attached tab. The page load timeout and the caller's ctx
// bound the actions only; the tab ctx itself stays alive until Release or Close.
func (f *ChromedpFetcher) run(ctx context.Context, t *tab, actions ...chromedp.Action) error {
	return chromedp.Run(t.ctx, chromedp.ActionFunc(func(tabCtx context.Context) error {
		runCtx, cancel := context.WithTimeout(tabCtx, f.opts.PageLoadTimeout)
		defer cancel()
		stop := context.AfterFunc(ctx, cancel)
		defer stop()
		return chromedp.Tasks(actions).Do(runCtx)
	}))
}

func (f *ChromedpFetcher) headers() network.Headers {
	h := network.Headers{}
	if f.opts.AcceptLanguage != "" {
		h["Accept-Language"] = f.opts.AcceptLanguage
	}
	return h
}

func (f *ChromedpFetcher) tab(page *entity.Page) (*tab, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, repository.ErrSessionClosed
	}
	t, ok := f.tabs[page.ID]
	if !ok {
		return nil, fmt.Errorf("page %s: %w", page.ID, repository.ErrUnknownPage)
	}
	return t, nil
}

func (f *ChromedpFetcher) renderError(ctx context.Context, url string, err error) error {
	f.mu.Lock()
	closed := f.closed
	f.mu.Unlock()
	switch {
	case ctx.Err() != nil:
		return ctx.Err()
	case closed:
		return repository.ErrSessionClosed
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return fmt.Errorf("render %s: %w", url, repository.ErrRenderTimeout)
	default:
		return fmt.Errorf("render %s: %w: %w", url, repository.ErrRenderFailed, err)
	}
}
