package response

import "time"

type SubmitHarvestResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	JobID   string `json:"job_id"`
}

// HarvestStatusResponse is a DTO for the last run of a category, mirroring entity.HarvestStatus.
type HarvestStatusResponse struct {
	Category      string     `json:"category"`
	JobID         string     `json:"job_id,omitempty"`
	CurrentStatus string     `json:"current_status"` // "queued", "running", "completed", "failed"
	StartedAt     *time.Time `json:"started_at,omitempty"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
	Discovered    int        `json:"discovered"`
	Retained      int        `json:"retained"`
	Skipped       int        `json:"skipped"`
	FailureReason string     `json:"failure_reason,omitempty"`
}

type CategoriesResponse struct {
	Categories []string `json:"categories"`
}
