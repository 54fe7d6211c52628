package embedding

import (
	"context"
	"math"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/text/unicode/norm"
)

// HashingEmbedder maps text into a fixed number of buckets by feature hashing.
// Words and in-word character bigrams are hashed, so Hangul compounds still overlap.
// Output is L2-normalized; the empty string maps to the zero vector.
type HashingEmbedder struct {
	dim int
}

func NewHashingEmbedder(dim int) *HashingEmbedder {
	return &HashingEmbedder{dim: dim}
}

func (h *HashingEmbedder) Dimension() int { return h.dim }

func (h *HashingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = h.Vector(t)
	}
	return out, nil
}

func (h *HashingEmbedder) Vector(text string) []float32 {
	v := make([]float32, h.dim)
	for _, tok := range Tokenize(text) {
		h.add(v, tok)
		runes := []rune(tok)
		for i := 0; i+1 < len(runes); i++ {
			h.add(v, string(runes[i:i+2]))
		}
	}

	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	scale := float32(1 / math.Sqrt(sum))
	for i := range v {
		v[i] *= scale
	}
	return v
}

func (h *HashingEmbedder) add(v []float32, feature string) {
	sum := xxhash.Sum64String(feature)
	idx := sum % uint64(h.dim)
	if sum>>63 == 1 {
		v[idx]--
	} else {
		v[idx]++
	}
}

// Tokenize lower-cases and NFC-normalizes text, then splits it on anything that is
// not a letter or digit.
func Tokenize(text string) []string {
	t := norm.NFC.String(strings.ToLower(text))
	return strings.FieldsFunc(t, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
