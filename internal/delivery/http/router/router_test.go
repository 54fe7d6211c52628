package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/user/event-harvest/internal/delivery/http/handler"
	"github.com/user/event-harvest/internal/entity"
)

type stubJobs struct{}

func (stubJobs) Submit(context.Context, string, bool) (string, error) { return "job", nil }

func (stubJobs) GetStatus(_ context.Context, c string) (*entity.HarvestStatus, error) {
	return &entity.HarvestStatus{Category: c, CurrentStatus: entity.StatusQueued}, nil
}

func (stubJobs) Categories() []string { return []string{"festival"} }

func TestRoutes(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(New(handler.NewHandler(stubJobs{}, nil)))
	t.Cleanup(srv.Close)

	tests := []struct {
		method, path, body string
		want               int
	}{
		{http.MethodGet, "/api/health", "", http.StatusOK},
		{http.MethodGet, "/api/categories", "", http.StatusOK},
		{http.MethodPost, "/api/harvest", `{"category":"festival"}`, http.StatusAccepted},
		{http.MethodGet, "/api/harvest", "", http.StatusMethodNotAllowed},
		{http.MethodGet, "/api/status?category=festival", "", http.StatusOK},
		{http.MethodGet, "/metrics", "", http.StatusOK},
		{http.MethodGet, "/nope", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		req, err := http.NewRequest(tt.method, srv.URL+tt.path, strings.NewReader(tt.body))
		assert.NoError(t, err)
		resp, err := http.DefaultClient.Do(req)
		if assert.NoError(t, err) {
			assert.Equal(t, tt.want, resp.StatusCode, "%s %s", tt.method, tt.path)
			resp.Body.Close()
		}
	}
}
