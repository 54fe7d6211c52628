package repository

import (
	"context"

	"github.com/user/event-harvest/internal/entity"
)

// StatusRepository stores the latest run status per category.
type StatusRepository interface {
	Save(ctx context.Context, status *entity.HarvestStatus) error
	// Get returns ErrNotFound when the category has never been queued.
	Get(ctx context.Context, category string) (*entity.HarvestStatus, error)
}
