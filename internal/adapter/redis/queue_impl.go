package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/user/event-harvest/internal/entity"
	"github.com/user/event-harvest/internal/repository"
)

const harvestQueueKey = "harvest:queue"

// QueueRepoImpl is a FIFO of JSON-encoded jobs on a Redis list: LPUSH in, RPOP out.
type QueueRepoImpl struct {
	client redis.Cmdable
}

// NewQueueRepo creates a new instance of QueueRepoImpl.
func NewQueueRepo(client redis.Cmdable) *QueueRepoImpl {
	return &QueueRepoImpl{client: client}
}

func (r *QueueRepoImpl) Push(ctx context.Context, job *entity.HarvestJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job %s: %w", job.ID, err)
	}
	return r.client.LPush(ctx, harvestQueueKey, payload).Err()
}

func (r *QueueRepoImpl) Pop(ctx context.Context) (*entity.HarvestJob, error) {
	payload, err := r.client.RPop(ctx, harvestQueueKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, repository.ErrQueueEmpty
	}
	if err != nil {
		return nil, err
	}
	var job entity.HarvestJob
	if err := json.Unmarshal(payload, &job); err != nil {
		return nil, fmt.Errorf("decode queued job: %w", err)
	}
	return &job, nil
}

// Size returns the current number of items in the queue.
func (r *QueueRepoImpl) Size(ctx context.Context) (int64, error) {
	return r.client.LLen(ctx, harvestQueueKey).Result()
}
