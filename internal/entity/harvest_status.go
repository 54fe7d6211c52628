package entity

import "time"

const (
	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusNotFound  = "not_found"
)

// HarvestJob is one queued request to harvest a category.
type HarvestJob struct {
	ID         string    `json:"id"`
	Category   string    `json:"category"`
	Force      bool      `json:"force"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// HarvestStatus is the last known state of a category run.
type HarvestStatus struct {
	Category      string     `json:"category"`
	JobID         string     `json:"job_id,omitempty"`
	CurrentStatus string     `json:"current_status"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
	Discovered    int        `json:"discovered"`
	Retained      int        `json:"retained"`
	Skipped       int        `json:"skipped"`
	FailureReason string     `json:"failure_reason,omitempty"`
}
