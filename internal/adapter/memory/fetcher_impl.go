// Package memory serves pre-recorded pages through the PageFetcher port.
// It backs offline runs and every engine test.
package memory

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/user/event-harvest/internal/entity"
	"github.com/user/event-harvest/internal/repository"
)

const stageHeight = 1000

// Site is a set of recorded pages shared by every session opened from it.
type Site struct {
	mu       sync.Mutex
	stages   map[string][]string
	failures map[string]failure
	delay    time.Duration

	renders     map[string]int
	sessions    []*Fetcher
	inFlight    int
	maxInFlight int
	nextID      int
}

type failure struct {
	remaining int // -1 fails forever
	err       error
}

func NewSite() *Site {
	return &Site{
		stages:   make(map[string][]string),
		failures: make(map[string]failure),
		renders:  make(map[string]int),
	}
}

// Page records a static page.
func (s *Site) Page(url, html string) *Site {
	return s.ScrollPage(url, html)
}

// ScrollPage records a page whose DOM grows by one stage per scroll.
// The height stops changing once the last stage is reached.
func (s *Site) ScrollPage(url string, stages ...string) *Site {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stages[url] = stages
	return s
}

// Fail makes the next n renders of url return err; n < 0 fails every render.
func (s *Site) Fail(url string, n int, err error) *Site {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[url] = failure{remaining: n, err: err}
	return s
}

// Delay slows every render, used to observe concurrency.
func (s *Site) Delay(d time.Duration) *Site {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
	return s
}

// Open starts a new session.
func (s *Site) Open() *Fetcher {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := &Fetcher{site: s, open: make(map[string]*pageState)}
	s.sessions = append(s.sessions, f)
	return f
}

func (s *Site) Factory() repository.FetcherFactory {
	return func(context.Context) (repository.PageFetcher, error) {
		return s.Open(), nil
	}
}

func (s *Site) Sessions() []*Fetcher {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Fetcher(nil), s.sessions...)
}

func (s *Site) Renders(url string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.renders[url]
}

func (s *Site) MaxInFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxInFlight
}

type pageState struct {
	url   string
	stage int
}

// Fetcher is one session over a Site.
type Fetcher struct {
	site *Site

	mu         sync.Mutex
	open       map[string]*pageState
	closed     bool
	closeCalls int
}

func (f *Fetcher) Render(ctx context.Context, url string) (*entity.Page, error) {
	if f.isClosed() {
		return nil, repository.ErrSessionClosed
	}
	s := f.site

	s.mu.Lock()
	s.renders[url]++
	s.inFlight++
	if s.inFlight > s.maxInFlight {
		s.maxInFlight = s.inFlight
	}
	delay := s.delay
	fail, failing := s.failures[url]
	if failing && fail.remaining != 0 {
		if fail.remaining > 0 {
			fail.remaining--
			s.failures[url] = fail
		}
	} else {
		failing = false
	}
	stages, known := s.stages[url]
	s.nextID++
	id := strconv.Itoa(s.nextID)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.inFlight--
		s.mu.Unlock()
	}()

	if delay > 0 {
		t := time.NewTimer(delay)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		}
	}
	if failing {
		return nil, fmt.Errorf("render %s: %w", url, fail.err)
	}
	if !known || len(stages) == 0 {
		return nil, fmt.Errorf("render %s: no such page: %w", url, repository.ErrRenderFailed)
	}

	f.mu.Lock()
	f.open[id] = &pageState{url: url}
	f.mu.Unlock()
	return &entity.Page{ID: id, URL: url, HTML: stages[0], RenderedAt: time.Now()}, nil
}

func (f *Fetcher) ScrollToBottom(_ context.Context, page *entity.Page) error {
	st, stages, err := f.state(page)
	if err != nil {
		return err
	}
	f.mu.Lock()
	if st.stage < len(stages)-1 {
		st.stage++
	}
	f.mu.Unlock()
	return nil
}

func (f *Fetcher) MeasureHeight(_ context.Context, page *entity.Page) (int64, error) {
	st, _, err := f.state(page)
	if err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(st.stage+1) * stageHeight, nil
}

func (f *Fetcher) Refresh(_ context.Context, page *entity.Page) error {
	st, stages, err := f.state(page)
	if err != nil {
		return err
	}
	f.mu.Lock()
	page.HTML = stages[st.stage]
	f.mu.Unlock()
	return nil
}

func (f *Fetcher) Release(page *entity.Page) {
	if page == nil {
		return
	}
	f.mu.Lock()
	delete(f.open, page.ID)
	f.mu.Unlock()
}

func (f *Fetcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.closeCalls++
	f.open = make(map[string]*pageState)
	return nil
}

// Closed reports whether Close has been called at least once.
func (f *Fetcher) Closed() bool { return f.isClosed() }

// OpenPages counts rendered pages not yet released.
func (f *Fetcher) OpenPages() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.open)
}

func (f *Fetcher) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *Fetcher) state(page *entity.Page) (*pageState, []string, error) {
	f.mu.Lock()
	closed := f.closed
	st, ok := f.open[page.ID]
	f.mu.Unlock()
	if closed {
		return nil, nil, repository.ErrSessionClosed
	}
	if !ok {
		return nil, nil, fmt.Errorf("page %s: %w", page.ID, repository.ErrUnknownPage)
	}
	f.site.mu.Lock()
	stages := f.site.stages[st.url]
	f.site.mu.Unlock()
	return st, stages, nil
}
