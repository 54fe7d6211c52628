package vectorize

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/event-harvest/internal/adapter/embedding"
	"github.com/user/event-harvest/internal/entity"
)

// fakeEmbedder returns vectors whose first value is len(text). It can reject a text or
// return one vector of the wrong length.
type fakeEmbedder struct {
	dim     int
	reject  string
	wrongAt string

	mu      sync.Mutex
	batches [][]string
}

func (f *fakeEmbedder) Dimension() int { return f.dim }

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	f.batches = append(f.batches, append([]string(nil), texts...))
	f.mu.Unlock()

	out := make([][]float32, len(texts))
	for i, t := range texts {
		if f.reject != "" && t == f.reject {
			return nil, errors.New("malformed input")
		}
		n := f.dim
		if f.wrongAt != "" && t == f.wrongAt {
			n = f.dim + 1
		}
		v := make([]float32, n)
		v[0] = float32(len(t))
		out[i] = v
	}
	return out, nil
}

func dataset(contents ...*string) *entity.Dataset {
	ds := &entity.Dataset{Category: "test", Columns: []string{entity.ContentField}}
	for i, c := range contents {
		r := entity.NewRecord(entity.DetailURL(fmt.Sprintf("https://e/%d", i)))
		r.Set(entity.ContentField, c)
		ds.Rows = append(ds.Rows, r)
	}
	return ds
}

// TestVectorize_OrderAndDimension verifies one vector per row, in row order, all of the
// model's dimension.
func TestVectorize_OrderAndDimension(t *testing.T) {
	t.Parallel()

	ds := dataset(entity.StringPtr("a"), entity.StringPtr("bbb"), entity.StringPtr("cc"), entity.StringPtr("dddd"), entity.StringPtr("e"))
	res, err := Vectorize(context.Background(), &fakeEmbedder{dim: 4}, ds, Options{BatchSize: 2, Parallelism: 3})
	require.NoError(t, err)

	assert.Equal(t, 5, res.Embedded)
	assert.Empty(t, res.Skipped)
	require.NoError(t, CheckDimension(ds, 4))
	for i, want := range []float32{1, 3, 2, 4, 1} {
		assert.Equal(t, want, ds.Rows[i].Embedding[0], "row %d", i)
	}
	assert.True(t, ds.Vectorized())
}

// TestVectorize_BatchingInvariant verifies embeddings do not depend on batch size.
func TestVectorize_BatchingInvariant(t *testing.T) {
	t.Parallel()

	texts := []string{"서울 축제", "jazz", "", "전시회 안내", "musical night"}
	build := func() *entity.Dataset {
		ptrs := make([]*string, len(texts))
		for i := range texts {
			ptrs[i] = entity.StringPtr(texts[i])
		}
		return dataset(ptrs...)
	}

	h := embedding.NewHashingEmbedder(16)
	one, two := build(), build()
	_, err := Vectorize(context.Background(), h, one, Options{BatchSize: 1, Parallelism: 1})
	require.NoError(t, err)
	_, err = Vectorize(context.Background(), h, two, Options{BatchSize: 4, Parallelism: 2})
	require.NoError(t, err)

	for i := range texts {
		assert.Equal(t, one.Rows[i].Embedding, two.Rows[i].Embedding)
	}
}

// TestVectorize_NullContentUsesEmptyString verifies a null content is embedded as "".
func TestVectorize_NullContentUsesEmptyString(t *testing.T) {
	t.Parallel()

	f := &fakeEmbedder{dim: 2}
	ds := dataset(nil)
	_, err := Vectorize(context.Background(), f, ds, Options{BatchSize: 8, Parallelism: 1})
	require.NoError(t, err)
	require.Len(t, f.batches, 1)
	assert.Equal(t, []string{""}, f.batches[0])
	assert.Len(t, ds.Rows[0].Embedding, 2)
}

// TestVectorize_RejectedRowIsSkipped verifies a batch failure is isolated to the bad row.
func TestVectorize_RejectedRowIsSkipped(t *testing.T) {
	t.Parallel()

	ds := dataset(entity.StringPtr("ok1"), entity.StringPtr("bad"), entity.StringPtr("ok2"))
	res, err := Vectorize(context.Background(), &fakeEmbedder{dim: 3, reject: "bad"}, ds, Options{BatchSize: 3, Parallelism: 1})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Embedded)
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, 1, res.Skipped[0].Index)
	assert.Equal(t, entity.DetailURL("https://e/1"), res.Skipped[0].DetailURL)
	require.Len(t, ds.Rows, 2)
	assert.Equal(t, entity.DetailURL("https://e/0"), ds.Rows[0].DetailURL)
	assert.Equal(t, entity.DetailURL("https://e/2"), ds.Rows[1].DetailURL)
}

// TestVectorize_DimensionMismatchAborts verifies a wrong-length vector fails the stage.
func TestVectorize_DimensionMismatchAborts(t *testing.T) {
	t.Parallel()

	ds := dataset(entity.StringPtr("ok"), entity.StringPtr("odd"))
	_, err := Vectorize(context.Background(), &fakeEmbedder{dim: 3, wrongAt: "odd"}, ds, Options{BatchSize: 1, Parallelism: 2})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestVectorize_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ds := dataset(entity.StringPtr("x"))
	_, err := Vectorize(ctx, embedding.NewHashingEmbedder(4), ds, Options{BatchSize: 1, Parallelism: 1})
	assert.ErrorIs(t, err, context.Canceled)
}
