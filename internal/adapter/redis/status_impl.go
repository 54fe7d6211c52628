package redis

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/user/event-harvest/internal/entity"
	"github.com/user/event-harvest/internal/repository"
)

const statusKey = "harvest:status"

// StatusRepoImpl keeps the latest status per category in one Redis hash.
type StatusRepoImpl struct {
	client redis.Cmdable
}

func NewStatusRepo(client redis.Cmdable) *StatusRepoImpl {
	return &StatusRepoImpl{client: client}
}

func (r *StatusRepoImpl) Save(ctx context.Context, status *entity.HarvestStatus) error {
	payload, err := json.Marshal(status)
	if err != nil {
		return err
	}
	return r.client.HSet(ctx, statusKey, status.Category, payload).Err()
}

func (r *StatusRepoImpl) Get(ctx context.Context, category string) (*entity.HarvestStatus, error) {
	payload, err := r.client.HGet(ctx, statusKey, category).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var status entity.HarvestStatus
	if err := json.Unmarshal(payload, &status); err != nil {
		return nil, err
	}
	return &status, nil
}
