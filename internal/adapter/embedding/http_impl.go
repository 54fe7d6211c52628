// Package embedding provides repository.Embedder implementations.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

type embedRequest struct {
	Inputs   []string `json:"inputs"`
	Truncate bool     `json:"truncate"`
}

// HTTPEmbedder calls a text-embeddings-inference style server:
// POST {"inputs": [...]} returns one vector per input.
type HTTPEmbedder struct {
	endpoint string
	dim      int
	client   *http.Client
}

func NewHTTPEmbedder(endpoint string, dim int, timeout time.Duration) *HTTPEmbedder {
	return &HTTPEmbedder{
		endpoint: endpoint,
		dim:      dim,
		client:   &http.Client{Timeout: timeout},
	}
}

func (e *HTTPEmbedder) Dimension() int { return e.dim }

func (e *HTTPEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(embedRequest{Inputs: texts, Truncate: true})
	if err != nil {
		return nil, fmt.Errorf("encode embed request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embed request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("embed request: status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}

	var out [][]float32
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode embed response: %w", err)
	}
	return out, nil
}
