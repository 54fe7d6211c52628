package embedding

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestHashingEmbedder_FixedDimension verifies every vector, including the empty text's,
// has the configured length and non-empty vectors are unit length.
func TestHashingEmbedder_FixedDimension(t *testing.T) {
	t.Parallel()

	h := NewHashingEmbedder(64)
	vecs, err := h.Embed(context.Background(), []string{"서울 빛초롱 축제", "", "Jazz night at the park"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)

	for _, v := range vecs {
		assert.Len(t, v, 64)
	}
	assert.InDelta(t, 1.0, norm2(vecs[0]), 1e-5)
	assert.Zero(t, norm2(vecs[1]))
}

// TestHashingEmbedder_Deterministic verifies identical text yields identical vectors
// independent of the batch it arrives in.
func TestHashingEmbedder_Deterministic(t *testing.T) {
	t.Parallel()

	h := NewHashingEmbedder(32)
	batch, err := h.Embed(context.Background(), []string{"a b", "뮤지컬 공연"})
	require.NoError(t, err)
	single, err := h.Embed(context.Background(), []string{"뮤지컬 공연"})
	require.NoError(t, err)
	assert.Equal(t, batch[1], single[0])
}

func TestTokenize(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []string{"seoul", "빛초롱", "2024"}, Tokenize("Seoul, 빛초롱! (2024)"))
}

// TestHTTPEmbedder_RoundTrip verifies the request shape and response decoding.
func TestHTTPEmbedder_RoundTrip(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var req embedRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		out := make([][]float32, len(req.Inputs))
		for i, in := range req.Inputs {
			out[i] = []float32{float32(len(in)), 1}
		}
		_ = json.NewEncoder(w).Encode(out)
	}))
	defer srv.Close()

	e := NewHTTPEmbedder(srv.URL, 2, 5*time.Second)
	vecs, err := e.Embed(context.Background(), []string{"abc", ""})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{3, 1}, {0, 1}}, vecs)
	assert.Equal(t, 2, e.Dimension())
}

func TestHTTPEmbedder_ServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "input too long", http.StatusRequestEntityTooLarge)
	}))
	defer srv.Close()

	_, err := NewHTTPEmbedder(srv.URL, 2, time.Second).Embed(context.Background(), []string{"x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "413")
	assert.Contains(t, err.Error(), "input too long")
}

func norm2(v []float32) float64 {
	var s float64
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}
