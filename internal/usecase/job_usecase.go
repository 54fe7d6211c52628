package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/user/event-harvest/internal/category"
	"github.com/user/event-harvest/internal/entity"
	"github.com/user/event-harvest/internal/repository"
	"github.com/user/event-harvest/pkg/metrics"
	"github.com/user/event-harvest/pkg/utils"
)

var (
	ErrUnknownCategory = errors.New("unknown category")
	ErrHarvestPending  = errors.New("category is already queued or running and force is false")
)

// JobManager accepts harvest requests and reports their progress.
type JobManager interface {
	Submit(ctx context.Context, categoryName string, force bool) (string, error)
	GetStatus(ctx context.Context, categoryName string) (*entity.HarvestStatus, error)
	Categories() []string
}

// JobRunner executes queued harvest jobs.
type JobRunner interface {
	// ProcessJobFromQueue runs one job. It returns repository.ErrQueueEmpty when idle.
	ProcessJobFromQueue(ctx context.Context) error
}

// JobService is the queue-backed pair used by the HTTP server and its workers.
type JobService interface {
	JobManager
	JobRunner
}

// DatasetSink receives every dataset a queued job produces, e.g. to export files.
type DatasetSink func(ctx context.Context, ds *entity.Dataset) error

type jobUseCase struct {
	categories []category.Category
	harvester  Harvester
	queueRepo  repository.QueueRepository
	statusRepo repository.StatusRepository
	sink       DatasetSink
	now        func() time.Time
}

// NewJobUseCase wires the queue-backed job flow. sink may be nil.
func NewJobUseCase(
	categories []category.Category,
	harvester Harvester,
	queueRepo repository.QueueRepository,
	statusRepo repository.StatusRepository,
	sink DatasetSink,
) JobService {
	return &jobUseCase{
		categories: categories,
		harvester:  harvester,
		queueRepo:  queueRepo,
		statusRepo: statusRepo,
		sink:       sink,
		now:        time.Now,
	}
}

func (uc *jobUseCase) Categories() []string {
	names := make([]string, 0, len(uc.categories))
	for _, c := range uc.categories {
		names = append(names, c.Name)
	}
	return names
}

func (uc *jobUseCase) Submit(ctx context.Context, categoryName string, force bool) (string, error) {
	if _, ok := category.Find(uc.categories, categoryName); !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownCategory, categoryName)
	}

	current, err := uc.statusRepo.Get(ctx, categoryName)
	switch {
	case errors.Is(err, repository.ErrNotFound):
	case err != nil:
		return "", err
	case !force && (current.CurrentStatus == entity.StatusQueued || current.CurrentStatus == entity.StatusRunning):
		return current.JobID, ErrHarvestPending
	}

	now := uc.now()
	job := &entity.HarvestJob{
		ID:         utils.HashURL(fmt.Sprintf("%s@%d", categoryName, now.UnixNano())),
		Category:   categoryName,
		Force:      force,
		EnqueuedAt: now,
	}
	if err := uc.queueRepo.Push(ctx, job); err != nil {
		return "", err
	}
	uc.updateQueueGauge(ctx)

	status := &entity.HarvestStatus{Category: categoryName, JobID: job.ID, CurrentStatus: entity.StatusQueued}
	if err := uc.statusRepo.Save(ctx, status); err != nil {
		// The job is queued; the worker overwrites the status once it starts.
		slog.Error("Failed to save queued status", "category", categoryName, "job_id", job.ID, "error", err)
	}
	slog.Info("Harvest job queued", "category", categoryName, "job_id", job.ID, "force", force)
	return job.ID, nil
}

func (uc *jobUseCase) GetStatus(ctx context.Context, categoryName string) (*entity.HarvestStatus, error) {
	if _, ok := category.Find(uc.categories, categoryName); !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, categoryName)
	}
	status, err := uc.statusRepo.Get(ctx, categoryName)
	if errors.Is(err, repository.ErrNotFound) {
		return &entity.HarvestStatus{Category: categoryName, CurrentStatus: entity.StatusNotFound}, nil
	}
	return status, err
}

// ProcessJobFromQueue pops one job and runs it to completion, recording its status.
func (uc *jobUseCase) ProcessJobFromQueue(ctx context.Context) error {
	job, err := uc.queueRepo.Pop(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrQueueEmpty) {
			return err
		}
		return fmt.Errorf("failed to pop job from queue: %w", err)
	}
	uc.updateQueueGauge(ctx)

	c, ok := category.Find(uc.categories, job.Category)
	if !ok {
		// Categories may have changed between submit and pickup.
		slog.Error("Dropping job for unknown category", "category", job.Category, "job_id", job.ID)
		return nil
	}

	started := uc.now()
	status := &entity.HarvestStatus{Category: c.Name, JobID: job.ID, CurrentStatus: entity.StatusRunning, StartedAt: &started}
	uc.saveStatus(ctx, status)
	slog.Info("Processing harvest job", "category", c.Name, "job_id", job.ID)

	res, runErr := uc.harvester.Harvest(ctx, c, job.Force)
	if runErr == nil && uc.sink != nil {
		runErr = uc.sink(ctx, res.Dataset)
	}

	finished := uc.now()
	status.FinishedAt = &finished
	if runErr != nil {
		status.CurrentStatus = entity.StatusFailed
		status.FailureReason = runErr.Error()
		slog.Error("Harvest job failed", "category", c.Name, "job_id", job.ID, "error", runErr)
	} else {
		status.CurrentStatus = entity.StatusCompleted
		status.Discovered = res.Discovered
		status.Retained = len(res.Dataset.Rows)
		status.Skipped = res.Skipped()
		slog.Info("Harvest job completed", "category", c.Name, "job_id", job.ID,
			"duration", finished.Sub(started), "retained", status.Retained)
	}
	// Status writes must survive a cancelled worker context.
	uc.saveStatus(context.WithoutCancel(ctx), status)
	return nil
}

func (uc *jobUseCase) saveStatus(ctx context.Context, status *entity.HarvestStatus) {
	if err := uc.statusRepo.Save(ctx, status); err != nil {
		slog.Error("Failed to save harvest status", "category", status.Category, "status", status.CurrentStatus, "error", err)
	}
}

func (uc *jobUseCase) updateQueueGauge(ctx context.Context) {
	size, err := uc.queueRepo.Size(ctx)
	if err != nil {
		slog.Warn("Failed to read queue size", "error", err)
		return
	}
	metrics.JobsInQueue.Set(float64(size))
}
