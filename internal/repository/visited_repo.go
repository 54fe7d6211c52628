package repository

import (
	"context"
	"time"
)

// VisitedRepository remembers recently harvested detail URLs.
type VisitedRepository interface {
	// MarkVisited marks a URL as harvested with a specific expiry time.
	MarkVisited(ctx context.Context, url string, expiry time.Duration) error
	// IsVisited checks if a URL has been harvested recently.
	IsVisited(ctx context.Context, url string) (bool, error)
	// RemoveVisited forgets a URL, used for forced re-harvests.
	RemoveVisited(ctx context.Context, url string) error
}
