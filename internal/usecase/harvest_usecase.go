package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/user/event-harvest/internal/aggregate"
	"github.com/user/event-harvest/internal/category"
	"github.com/user/event-harvest/internal/discovery"
	"github.com/user/event-harvest/internal/entity"
	"github.com/user/event-harvest/internal/extract"
	"github.com/user/event-harvest/internal/repository"
	"github.com/user/event-harvest/internal/vectorize"
	"github.com/user/event-harvest/pkg/metrics"
	"github.com/user/event-harvest/pkg/utils"
)

const (
	initialRetryBackoff = 5 * time.Minute
	maxRetryBackoff     = 24 * time.Hour
	jitterFactor        = 0.2 // +/- 20%
)

// DetailFetchError is a detail page that could not be rendered or parsed.
type DetailFetchError struct {
	URL entity.DetailURL
	Err error
}

func (e *DetailFetchError) Error() string {
	return fmt.Sprintf("detail %s: %v", e.URL, e.Err)
}

func (e *DetailFetchError) Unwrap() error { return e.Err }

// ItemResult is the outcome for one detail URL: a record or a typed failure.
type ItemResult struct {
	Index  int
	URL    entity.DetailURL
	Record *entity.Record
	Err    error
}

// BatchResult is a category run with partial-success semantics.
type BatchResult struct {
	Category         string
	Dataset          *entity.Dataset
	Discovered       int
	AlreadyHarvested int
	Items            []ItemResult
	SkippedPages     []*discovery.FetchError
	Dropped          int
	EmbedSkipped     []*vectorize.Error
}

// Failed returns the items whose detail page could not be harvested.
func (b *BatchResult) Failed() []ItemResult {
	var out []ItemResult
	for _, it := range b.Items {
		if it.Err != nil {
			out = append(out, it)
		}
	}
	return out
}

// Skipped counts items lost to errors: failed detail pages and rejected embeddings.
// Records removed by the completeness filter are reported separately in Dropped.
func (b *BatchResult) Skipped() int {
	return len(b.Failed()) + len(b.EmbedSkipped)
}

type HarvestOptions struct {
	Discovery     discovery.Options
	Workers       int
	RatePerSecond float64
	RateBurst     int
	Vectorize     bool
	Embed         vectorize.Options
	DedupTTL      time.Duration
}

// Harvester runs the discovery → extraction → cleaning → vectorization pipeline.
type Harvester interface {
	Harvest(ctx context.Context, c category.Category, force bool) (*BatchResult, error)
	RetryFailed(ctx context.Context, c category.Category, limit int) (*BatchResult, error)
}

type harvestUseCase struct {
	newFetcher repository.FetcherFactory
	embedder   repository.Embedder
	records    repository.RecordRepository
	failedURLs repository.FailedURLRepository
	visited    repository.VisitedRepository
	opts       HarvestOptions
	limiters   *hostLimiters
}

// Dependencies of the harvest pipeline. Only NewFetcher is required; nil repositories
// switch the matching bookkeeping off, and a nil Embedder requires Vectorize=false.
type HarvestDeps struct {
	NewFetcher repository.FetcherFactory
	Embedder   repository.Embedder
	Records    repository.RecordRepository
	FailedURLs repository.FailedURLRepository
	Visited    repository.VisitedRepository
}

// NewHarvester creates a new instance of the harvest use case.
func NewHarvester(deps HarvestDeps, opts HarvestOptions) (Harvester, error) {
	if deps.NewFetcher == nil {
		return nil, errors.New("harvester needs a fetcher factory")
	}
	if opts.Vectorize && deps.Embedder == nil {
		return nil, errors.New("vectorization enabled without an embedder")
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &harvestUseCase{
		newFetcher: deps.NewFetcher,
		embedder:   deps.Embedder,
		records:    deps.Records,
		failedURLs: deps.FailedURLs,
		visited:    deps.Visited,
		opts:       opts,
		limiters:   newHostLimiters(opts.RatePerSecond, opts.RateBurst),
	}, nil
}

// Harvest runs one category end to end. Per-page failures are collected in the result;
// an error is returned only for cancellation, a lost rendering session, a model
// dimension violation or a failed save.
func (uc *harvestUseCase) Harvest(ctx context.Context, c category.Category, force bool) (*BatchResult, error) {
	res := &BatchResult{Category: c.Name}

	found, err := uc.discover(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("discover %s: %w", c.Name, err)
	}
	res.Discovered = len(found.URLs)
	res.SkippedPages = found.Skipped

	urls, err := uc.filterVisited(ctx, found.URLs, force)
	if err != nil {
		return nil, err
	}
	res.AlreadyHarvested = len(found.URLs) - len(urls)

	if err := uc.process(ctx, c, urls, res); err != nil {
		return nil, err
	}
	slog.Info("Harvest finished", "category", c.Name,
		"discovered", res.Discovered, "already_harvested", res.AlreadyHarvested,
		"retained", len(res.Dataset.Rows), "dropped", res.Dropped, "skipped", res.Skipped())
	return res, nil
}

// RetryFailed re-harvests detail URLs of c whose retry time has come.
func (uc *harvestUseCase) RetryFailed(ctx context.Context, c category.Category, limit int) (*BatchResult, error) {
	res := &BatchResult{Category: c.Name}
	if uc.failedURLs == nil {
		res.Dataset = &entity.Dataset{Category: c.Name, Columns: aggregate.SchemaOf(c).MergedColumns()}
		return res, nil
	}
	due, err := uc.failedURLs.FindRetryable(ctx, c.Name, limit)
	if err != nil {
		return nil, fmt.Errorf("find retryable urls for %s: %w", c.Name, err)
	}
	urls := make([]entity.DetailURL, 0, len(due))
	for _, f := range due {
		urls = append(urls, entity.DetailURL(f.URL))
	}
	res.Discovered = len(urls)
	if err := uc.process(ctx, c, urls, res); err != nil {
		return nil, err
	}
	return res, nil
}

// discover owns its fetcher for the duration of the phase.
func (uc *harvestUseCase) discover(ctx context.Context, c category.Category) (*discovery.Result, error) {
	f, err := uc.newFetcher(ctx)
	if err != nil {
		return nil, fmt.Errorf("open fetcher: %w", err)
	}
	defer closeFetcher(f, c.Name, "discovery")
	return discovery.NewEngine(f, uc.opts.Discovery).Discover(ctx, c)
}

func (uc *harvestUseCase) filterVisited(ctx context.Context, urls []entity.DetailURL, force bool) ([]entity.DetailURL, error) {
	if uc.visited == nil {
		return urls, nil
	}
	out := make([]entity.DetailURL, 0, len(urls))
	for _, u := range urls {
		if force {
			if err := uc.visited.RemoveVisited(ctx, string(u)); err != nil {
				slog.Warn("Failed to remove visited key for forced harvest", "url", u, "error", err)
			}
			out = append(out, u)
			continue
		}
		seen, err := uc.visited.IsVisited(ctx, string(u))
		if err != nil {
			return nil, fmt.Errorf("check visited %s: %w", u, err)
		}
		if !seen {
			out = append(out, u)
		}
	}
	return out, nil
}

// process extracts, cleans, vectorizes and saves the given detail URLs into res.
func (uc *harvestUseCase) process(ctx context.Context, c category.Category, urls []entity.DetailURL, res *BatchResult) error {
	items, err := uc.extractAll(ctx, c, urls)
	if err != nil {
		return fmt.Errorf("extract %s: %w", c.Name, err)
	}
	res.Items = items

	records := make([]*entity.Record, 0, len(items))
	for _, it := range items {
		if it.Err == nil {
			records = append(records, it.Record)
		}
	}

	ds, stats := aggregate.Aggregate(aggregate.SchemaOf(c), records)
	res.Dataset = ds
	res.Dropped = stats.Dropped
	metrics.RecordsDropped.WithLabelValues(c.Name, "no_content").Add(float64(stats.Dropped))

	if uc.opts.Vectorize && len(ds.Rows) > 0 {
		vr, err := vectorize.Vectorize(ctx, uc.embedder, ds, uc.opts.Embed)
		if err != nil {
			return fmt.Errorf("vectorize %s: %w", c.Name, err)
		}
		res.EmbedSkipped = vr.Skipped
	}

	if uc.records != nil && len(ds.Rows) > 0 {
		if err := uc.records.SaveDataset(ctx, ds); err != nil {
			return fmt.Errorf("save dataset %s: %w", c.Name, err)
		}
	}

	rejected := make(map[entity.DetailURL]bool, len(res.EmbedSkipped))
	for _, e := range res.EmbedSkipped {
		rejected[e.DetailURL] = true
		uc.saveFailedURL(ctx, c.Name, e.DetailURL, e, "embedding")
	}
	for _, r := range records {
		if !rejected[r.DetailURL] {
			uc.clearFailedURL(ctx, r.DetailURL)
		}
	}
	// Only retained rows are remembered; dropped and rejected pages are fetched again.
	uc.markVisited(ctx, ds.Rows)
	return nil
}

// extractAll fetches detail pages on a bounded worker pool. Results are stitched back
// to the index of the URL that requested them. The first fatal error cancels the
// remaining work.
func (uc *harvestUseCase) extractAll(ctx context.Context, c category.Category, urls []entity.DetailURL) ([]ItemResult, error) {
	results := make([]ItemResult, len(urls))
	if len(urls) == 0 {
		return results, nil
	}

	f, err := uc.newFetcher(ctx)
	if err != nil {
		return nil, fmt.Errorf("open fetcher: %w", err)
	}
	defer closeFetcher(f, c.Name, "extraction")

	start := time.Now()
	defer func() {
		metrics.PhaseDuration.WithLabelValues(c.Name, "extraction").Observe(time.Since(start).Seconds())
	}()

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < min(uc.opts.Workers, len(urls)); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = uc.extractOne(ctx, f, c, i, urls[i])
				if err := results[i].Err; err != nil && isFatal(ctx, err) {
					cancel(err)
				}
			}
		}()
	}

feed:
	for i := range urls {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if ctx.Err() != nil {
		return nil, context.Cause(ctx)
	}
	return results, nil
}

func (uc *harvestUseCase) extractOne(ctx context.Context, f repository.PageFetcher, c category.Category, i int, u entity.DetailURL) ItemResult {
	item := ItemResult{Index: i, URL: u}

	if err := uc.limiters.Wait(ctx, string(u)); err != nil {
		item.Err = err
		return item
	}

	page, err := f.Render(ctx, string(u))
	if err == nil {
		item.Record, err = extract.Extract(page, c.Selectors)
		f.Release(page)
	}
	if err != nil {
		if isFatal(ctx, err) {
			item.Err = err
			return item
		}
		item.Err = &DetailFetchError{URL: u, Err: err}
		uc.handleDetailFailure(ctx, c.Name, u, err)
		return item
	}

	metrics.PagesTotal.WithLabelValues(c.Name, "extraction", "success").Inc()
	return item
}

func (uc *harvestUseCase) handleDetailFailure(ctx context.Context, categoryName string, u entity.DetailURL, cause error) {
	errorType := classify(cause)
	metrics.PagesTotal.WithLabelValues(categoryName, "extraction", "failure").Inc()
	slog.Error("Detail page failed, skipping", "category", categoryName, "url", u, "error_type", errorType, "error", cause)
	uc.saveFailedURL(ctx, categoryName, u, cause, errorType)
}

// saveFailedURL queues u for RetryFailed.
func (uc *harvestUseCase) saveFailedURL(ctx context.Context, categoryName string, u entity.DetailURL, cause error, errorType string) {
	if uc.failedURLs == nil {
		return
	}
	now := time.Now()
	failed := &entity.FailedURL{
		Category:             categoryName,
		URL:                  string(u),
		FailureReason:        cause.Error(),
		ErrorType:            errorType,
		LastAttemptTimestamp: now,
		NextRetryAt:          now.Add(utils.Backoff(initialRetryBackoff, maxRetryBackoff, 1, jitterFactor)),
	}
	if err := uc.failedURLs.SaveOrUpdate(ctx, failed); err != nil {
		slog.Error("Failed to save failed URL record", "url", u, "error", err)
	}
}

func (uc *harvestUseCase) clearFailedURL(ctx context.Context, u entity.DetailURL) {
	if uc.failedURLs == nil {
		return
	}
	if err := uc.failedURLs.Delete(ctx, string(u)); err != nil {
		slog.Warn("Failed to delete URL from failed_urls after a successful harvest", "url", u, "error", err)
	}
}

func (uc *harvestUseCase) markVisited(ctx context.Context, records []*entity.Record) {
	if uc.visited == nil || uc.opts.DedupTTL <= 0 {
		return
	}
	for _, r := range records {
		if err := uc.visited.MarkVisited(ctx, string(r.DetailURL), uc.opts.DedupTTL); err != nil {
			// The page may be harvested again next run; nothing else depends on the mark.
			slog.Warn("Failed to mark URL as visited", "url", r.DetailURL, "error", err)
		}
	}
}

func classify(err error) string {
	switch {
	case errors.Is(err, repository.ErrRenderTimeout):
		return "timeout"
	case errors.Is(err, repository.ErrRenderFailed):
		return "navigation"
	case errors.Is(err, repository.ErrUnknownPage):
		return "session"
	default:
		return "unknown"
	}
}

func isFatal(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, repository.ErrSessionClosed)
}

func closeFetcher(f repository.PageFetcher, categoryName, phase string) {
	if err := f.Close(); err != nil {
		slog.Warn("Failed to close fetcher", "category", categoryName, "phase", phase, "error", err)
	}
}
