// Package vectorize attaches content embeddings to cleaned datasets.
package vectorize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/user/event-harvest/internal/entity"
	"github.com/user/event-harvest/internal/repository"
	"github.com/user/event-harvest/pkg/metrics"
)

// ErrDimensionMismatch means the model returned a vector of unexpected length.
// It breaks the run-wide invariant and aborts vectorization.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Error is a record the embedding model rejected.
type Error struct {
	Index     int
	DetailURL entity.DetailURL
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("embed row %d (%s): %v", e.Index, e.DetailURL, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

type Options struct {
	BatchSize   int
	Parallelism int
}

// Result summarizes a vectorization pass.
type Result struct {
	Embedded  int
	Dimension int
	Skipped   []*Error
}

// Vectorize embeds the content of every row of ds, in place. Batches run in parallel;
// output order and values do not depend on batching. A batch the model rejects is
// retried row by row so one bad text only drops its own row.
func Vectorize(ctx context.Context, emb repository.Embedder, ds *entity.Dataset, opts Options) (*Result, error) {
	if opts.BatchSize < 1 {
		opts.BatchSize = 1
	}
	if opts.Parallelism < 1 {
		opts.Parallelism = 1
	}
	start := time.Now()
	defer func() {
		metrics.PhaseDuration.WithLabelValues(ds.Category, "vectorize").Observe(time.Since(start).Seconds())
	}()

	dim := emb.Dimension()
	texts := make([]string, len(ds.Rows))
	for i, r := range ds.Rows {
		texts[i], _ = r.Get(entity.ContentField)
	}

	vecs := make([][]float32, len(texts))
	errs := make([]error, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Parallelism)
	for lo := 0; lo < len(texts); lo += opts.BatchSize {
		hi := min(lo+opts.BatchSize, len(texts))
		g.Go(func() error {
			return embedBatch(gctx, emb, dim, texts, vecs, errs, lo, hi)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &Result{Dimension: dim}
	kept := ds.Rows[:0]
	for i, r := range ds.Rows {
		if errs[i] != nil {
			e := &Error{Index: i, DetailURL: r.DetailURL, Err: errs[i]}
			res.Skipped = append(res.Skipped, e)
			metrics.EmbeddingsTotal.WithLabelValues("failure").Inc()
			metrics.RecordsDropped.WithLabelValues(ds.Category, "embedding").Inc()
			slog.Warn("Dropping row the embedding model rejected", "category", ds.Category, "url", r.DetailURL, "error", errs[i])
			continue
		}
		r.Embedding = vecs[i]
		kept = append(kept, r)
		metrics.EmbeddingsTotal.WithLabelValues("success").Inc()
	}
	ds.Rows = kept
	res.Embedded = len(kept)
	return res, nil
}

func embedBatch(ctx context.Context, emb repository.Embedder, dim int, texts []string, vecs [][]float32, errs []error, lo, hi int) error {
	out, err := emb.Embed(ctx, texts[lo:hi])
	if err == nil {
		if len(out) != hi-lo {
			return fmt.Errorf("model returned %d vectors for %d texts: %w", len(out), hi-lo, ErrDimensionMismatch)
		}
		for i, v := range out {
			if len(v) != dim {
				return fmt.Errorf("row %d has %d values, want %d: %w", lo+i, len(v), dim, ErrDimensionMismatch)
			}
			vecs[lo+i] = v
		}
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if hi-lo == 1 {
		errs[lo] = err
		return nil
	}
	for i := lo; i < hi; i++ {
		if err := embedBatch(ctx, emb, dim, texts, vecs, errs, i, i+1); err != nil {
			return err
		}
	}
	return nil
}

// CheckDimension verifies every row of ds carries a vector of length dim.
func CheckDimension(ds *entity.Dataset, dim int) error {
	for i, r := range ds.Rows {
		if len(r.Embedding) != dim {
			return fmt.Errorf("row %d (%s) has %d values, want %d: %w", i, r.DetailURL, len(r.Embedding), dim, ErrDimensionMismatch)
		}
	}
	return nil
}
