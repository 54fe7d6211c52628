package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/user/event-harvest/internal/delivery/http/request"
	"github.com/user/event-harvest/internal/delivery/http/response"
	"github.com/user/event-harvest/internal/entity"
	"github.com/user/event-harvest/internal/usecase"
)

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) error

type Handler struct {
	jobs   usecase.JobManager
	checks map[string]HealthCheck
}

func NewHandler(jobs usecase.JobManager, checks map[string]HealthCheck) *Handler {
	return &Handler{
		jobs:   jobs,
		checks: checks,
	}
}

func (h *Handler) HandleSubmitHarvest(w http.ResponseWriter, r *http.Request) {
	var req request.SubmitHarvestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Category == "" {
		h.writeJSONError(w, "category is required", http.StatusBadRequest)
		return
	}

	jobID, err := h.jobs.Submit(r.Context(), req.Category, req.Force)
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrUnknownCategory):
			h.writeJSONError(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, usecase.ErrHarvestPending):
			h.writeJSONError(w, err.Error(), http.StatusConflict)
		default:
			slog.Error("Failed to submit harvest", "category", req.Category, "error", err)
			h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	resp := response.SubmitHarvestResponse{
		Status:  "success",
		Message: "Category queued for harvesting",
		JobID:   jobID,
	}
	h.writeJSON(w, http.StatusAccepted, resp)
}

func (h *Handler) HandleGetHarvestStatus(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("category")
	if name == "" {
		h.writeJSONError(w, "category query parameter is required", http.StatusBadRequest)
		return
	}

	status, err := h.jobs.GetStatus(r.Context(), name)
	if err != nil {
		if errors.Is(err, usecase.ErrUnknownCategory) {
			h.writeJSONError(w, err.Error(), http.StatusNotFound)
			return
		}
		slog.Error("Failed to get harvest status", "category", name, "error", err)
		h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	if status.CurrentStatus == entity.StatusNotFound {
		h.writeJSONError(w, "No harvest recorded for the given category", http.StatusNotFound)
		return
	}

	h.writeJSON(w, http.StatusOK, response.HarvestStatusResponse{
		Category:      status.Category,
		JobID:         status.JobID,
		CurrentStatus: status.CurrentStatus,
		StartedAt:     status.StartedAt,
		FinishedAt:    status.FinishedAt,
		Discovered:    status.Discovered,
		Retained:      status.Retained,
		Skipped:       status.Skipped,
		FailureReason: status.FailureReason,
	})
}

func (h *Handler) HandleListCategories(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, response.CategoriesResponse{Categories: h.jobs.Categories()})
}

// HandleHealthCheck runs every dependency check and answers 503 when one fails.
func (h *Handler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := map[string]string{"status": "ok"}
	code := http.StatusOK
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			slog.Warn("Health check failed", "dependency", name, "error", err)
			resp[name] = err.Error()
			resp["status"] = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		resp[name] = "ok"
	}
	h.writeJSON(w, code, resp)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to write JSON response", "error", err)
	}
}

func (h *Handler) writeJSONError(w http.ResponseWriter, message string, status int) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
