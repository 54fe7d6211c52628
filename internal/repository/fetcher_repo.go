package repository

import (
	"context"
	"errors"

	"github.com/user/event-harvest/internal/entity"
)

var (
	ErrRenderTimeout = errors.New("page render timed out")
	ErrRenderFailed  = errors.New("page render failed")
	ErrSessionClosed = errors.New("rendering session is closed")
	ErrUnknownPage   = errors.New("unknown page handle")
)

// PageFetcher is the rendering session consumed by discovery and extraction.
// One fetcher owns one browser session; callers must Close it when their phase ends.
type PageFetcher interface {
	// Render loads url and returns a handle whose HTML reflects the fully rendered DOM.
	Render(ctx context.Context, url string) (*entity.Page, error)
	// ScrollToBottom scrolls the live page to the end of the document.
	ScrollToBottom(ctx context.Context, page *entity.Page) error
	// MeasureHeight returns the current document scroll height.
	MeasureHeight(ctx context.Context, page *entity.Page) (int64, error)
	// Refresh re-reads the live DOM into page.HTML.
	Refresh(ctx context.Context, page *entity.Page) error
	// Release frees resources held for a single page.
	Release(page *entity.Page)
	// Close tears down the session. Calling it more than once is safe.
	Close() error
}

// FetcherFactory opens a new rendering session.
type FetcherFactory func(ctx context.Context) (PageFetcher, error)
