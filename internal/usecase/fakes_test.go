package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/user/event-harvest/internal/entity"
	"github.com/user/event-harvest/internal/repository"
)

type fakeRecords struct {
	mu       sync.Mutex
	datasets []*entity.Dataset
}

func (f *fakeRecords) SaveDataset(_ context.Context, ds *entity.Dataset) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.datasets = append(f.datasets, ds)
	return nil
}

func (f *fakeRecords) FindByURL(_ context.Context, url string) (*entity.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ds := range f.datasets {
		for _, r := range ds.Rows {
			if string(r.DetailURL) == url {
				return r, nil
			}
		}
	}
	return nil, repository.ErrNotFound
}

type fakeVisited struct {
	mu      sync.Mutex
	urls    map[string]time.Duration
	removed []string
}

func newFakeVisited(urls ...string) *fakeVisited {
	v := &fakeVisited{urls: make(map[string]time.Duration)}
	for _, u := range urls {
		v.urls[u] = time.Hour
	}
	return v
}

func (f *fakeVisited) MarkVisited(_ context.Context, url string, expiry time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.urls[url] = expiry
	return nil
}

func (f *fakeVisited) IsVisited(_ context.Context, url string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.urls[url]
	return ok, nil
}

func (f *fakeVisited) RemoveVisited(_ context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.urls, url)
	f.removed = append(f.removed, url)
	return nil
}

type fakeFailed struct {
	mu      sync.Mutex
	saved   map[string]*entity.FailedURL
	due     []*entity.FailedURL
	deleted []string
}

func newFakeFailed(due ...*entity.FailedURL) *fakeFailed {
	return &fakeFailed{saved: make(map[string]*entity.FailedURL), due: due}
}

func (f *fakeFailed) SaveOrUpdate(_ context.Context, u *entity.FailedURL) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if prev, ok := f.saved[u.URL]; ok {
		u.RetryCount = prev.RetryCount + 1
	}
	f.saved[u.URL] = u
	return nil
}

func (f *fakeFailed) FindRetryable(_ context.Context, category string, limit int) ([]*entity.FailedURL, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entity.FailedURL
	for _, u := range f.due {
		if u.Category == category && len(out) < limit {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeFailed) Delete(_ context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.saved, url)
	f.deleted = append(f.deleted, url)
	return nil
}

type fakeQueue struct {
	mu   sync.Mutex
	jobs []*entity.HarvestJob
}

func (f *fakeQueue) Push(_ context.Context, job *entity.HarvestJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = append(f.jobs, job)
	return nil
}

func (f *fakeQueue) Pop(_ context.Context) (*entity.HarvestJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.jobs) == 0 {
		return nil, repository.ErrQueueEmpty
	}
	job := f.jobs[0]
	f.jobs = f.jobs[1:]
	return job, nil
}

func (f *fakeQueue) Size(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.jobs)), nil
}

type fakeStatus struct {
	mu       sync.Mutex
	statuses map[string]entity.HarvestStatus
}

func newFakeStatus() *fakeStatus {
	return &fakeStatus{statuses: make(map[string]entity.HarvestStatus)}
}

func (f *fakeStatus) Save(_ context.Context, s *entity.HarvestStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[s.Category] = *s
	return nil
}

func (f *fakeStatus) Get(_ context.Context, category string) (*entity.HarvestStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.statuses[category]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &s, nil
}
