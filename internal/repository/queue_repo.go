package repository

import (
	"context"
	"errors"

	"github.com/user/event-harvest/internal/entity"
)

var ErrQueueEmpty = errors.New("queue is empty")

// QueueRepository is a FIFO of pending harvest jobs.
type QueueRepository interface {
	Push(ctx context.Context, job *entity.HarvestJob) error
	// Pop returns ErrQueueEmpty when nothing is waiting.
	Pop(ctx context.Context) (*entity.HarvestJob, error)
	Size(ctx context.Context) (int64, error)
}
