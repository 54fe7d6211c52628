package entity

import "time"

// FailedURL mirrors the `failed_urls` table: detail pages that could not be harvested.
type FailedURL struct {
	ID                   int64
	Category             string
	URL                  string
	FailureReason        string
	ErrorType            string
	LastAttemptTimestamp time.Time
	RetryCount           int
	NextRetryAt          time.Time
}
