package repository

import (
	"context"

	"github.com/user/event-harvest/internal/entity"
)

// FailedURLRepository tracks detail pages that failed to harvest.
type FailedURLRepository interface {
	// SaveOrUpdate creates or updates a record for a failed URL.
	SaveOrUpdate(ctx context.Context, failedURL *entity.FailedURL) error
	// FindRetryable returns up to limit URLs of a category that are due for a retry.
	FindRetryable(ctx context.Context, category string, limit int) ([]*entity.FailedURL, error)
	// Delete removes a failed URL record after a successful harvest.
	Delete(ctx context.Context, url string) error
}
