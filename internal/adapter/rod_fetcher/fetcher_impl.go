// Package rod_fetcher renders pages with go-rod, an alternative to the chromedp session.
package rod_fetcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/user/event-harvest/internal/entity"
	"github.com/user/event-harvest/internal/repository"
	"github.com/user/event-harvest/pkg/utils"
)

const (
	scrollScript = `() => window.scrollTo(0, document.body.scrollHeight)`
	heightScript = `() => document.body.scrollHeight`
)

type FetcherOptions struct {
	Headless        bool
	ChromePath      string
	ImplicitWait    time.Duration
	PageLoadTimeout time.Duration
	UserAgent       string
	AcceptLanguage  string
}

type RodFetcher struct {
	opts     FetcherOptions
	launcher *launcher.Launcher
	browser  *rod.Browser

	mu     sync.Mutex
	pages  map[string]*rod.Page
	closed bool
}

// NewFetcher launches a browser and connects to it over the DevTools protocol.
func NewFetcher(ctx context.Context, opts FetcherOptions) (*RodFetcher, error) {
	l := launcher.New().
		Headless(opts.Headless).
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		NoSandbox(true)
	if opts.ChromePath != "" {
		l = l.Bin(opts.ChromePath)
	}
	l = l.Context(ctx)

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connect browser: %w", err)
	}
	slog.Info("Rod session started", "headless", opts.Headless)

	return &RodFetcher{
		opts:     opts,
		launcher: l,
		browser:  browser,
		pages:    make(map[string]*rod.Page),
	}, nil
}

// Factory opens a fresh browser per call.
func Factory(opts FetcherOptions) repository.FetcherFactory {
	return func(ctx context.Context) (repository.PageFetcher, error) {
		return NewFetcher(ctx, opts)
	}
}

func (f *RodFetcher) Render(ctx context.Context, url string) (*entity.Page, error) {
	if f.isClosed() {
		return nil, repository.ErrSessionClosed
	}

	p, err := f.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, f.renderError(ctx, url, err)
	}
	html, err := f.load(ctx, p, url)
	if err != nil {
		_ = p.Close()
		return nil, f.renderError(ctx, url, err)
	}

	id := string(p.TargetID)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		_ = p.Close()
		return nil, repository.ErrSessionClosed
	}
	f.pages[id] = p
	return &entity.Page{ID: id, URL: url, HTML: html, RenderedAt: time.Now()}, nil
}

func (f *RodFetcher) load(ctx context.Context, p *rod.Page, url string) (string, error) {
	err := p.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent:      utils.UserAgent(f.opts.UserAgent),
		AcceptLanguage: f.opts.AcceptLanguage,
	})
	if err != nil {
		return "", err
	}

	tp := p.Context(ctx).Timeout(f.opts.PageLoadTimeout)
	if err := tp.Navigate(url); err != nil {
		return "", err
	}
	if err := tp.WaitLoad(); err != nil {
		return "", err
	}
	if _, err := p.Context(ctx).Timeout(f.opts.ImplicitWait).Element("body"); err != nil {
		return "", err
	}
	return tp.HTML()
}

func (f *RodFetcher) ScrollToBottom(ctx context.Context, page *entity.Page) error {
	p, err := f.page(page)
	if err != nil {
		return err
	}
	_, err = f.bound(ctx, p).Eval(scrollScript)
	return err
}

func (f *RodFetcher) MeasureHeight(ctx context.Context, page *entity.Page) (int64, error) {
	p, err := f.page(page)
	if err != nil {
		return 0, err
	}
	res, err := f.bound(ctx, p).Eval(heightScript)
	if err != nil {
		return 0, err
	}
	return int64(res.Value.Int()), nil
}

func (f *RodFetcher) Refresh(ctx context.Context, page *entity.Page) error {
	p, err := f.page(page)
	if err != nil {
		return err
	}
	html, err := f.bound(ctx, p).HTML()
	if err != nil {
		return err
	}
	page.HTML = html
	return nil
}

func (f *RodFetcher) Release(page *entity.Page) {
	if page == nil {
		return
	}
	f.mu.Lock()
	p, ok := f.pages[page.ID]
	delete(f.pages, page.ID)
	f.mu.Unlock()
	if ok {
		if err := p.Close(); err != nil {
			slog.Debug("Failed to close page", "page_id", page.ID, "error", err)
		}
	}
}

func (f *RodFetcher) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	f.pages = nil
	f.mu.Unlock()

	err := f.browser.Close()
	f.launcher.Kill()
	slog.Info("Rod session closed")
	return err
}

func (f *RodFetcher) bound(ctx context.Context, p *rod.Page) *rod.Page {
	return p.Context(ctx).Timeout(f.opts.PageLoadTimeout)
}

func (f *RodFetcher) page(page *entity.Page) (*rod.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, repository.ErrSessionClosed
	}
	p, ok := f.pages[page.ID]
	if !ok {
		return nil, fmt.Errorf("page %s: %w", page.ID, repository.ErrUnknownPage)
	}
	return p, nil
}

func (f *RodFetcher) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *RodFetcher) renderError(ctx context.Context, url string, err error) error {
	switch {
	case ctx.Err() != nil:
		return ctx.Err()
	case f.isClosed():
		return repository.ErrSessionClosed
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("render %s: %w", url, repository.ErrRenderTimeout)
	default:
		return fmt.Errorf("render %s: %w: %w", url, repository.ErrRenderFailed, err)
	}
}
