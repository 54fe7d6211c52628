package repository

import (
	"context"
	"errors"

	"github.com/user/event-harvest/internal/entity"
)

var ErrNotFound = errors.New("not found")

// RecordRepository persists cleaned dataset rows.
type RecordRepository interface {
	// SaveDataset upserts every row of the dataset keyed by its detail URL.
	SaveDataset(ctx context.Context, ds *entity.Dataset) error
	// FindByURL returns a stored record or ErrNotFound.
	FindByURL(ctx context.Context, url string) (*entity.Record, error)
}
