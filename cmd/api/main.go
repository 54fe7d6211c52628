package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	redis_adapter "github.com/user/event-harvest/internal/adapter/redis"
	"github.com/user/event-harvest/internal/app"
	"github.com/user/event-harvest/internal/delivery/http/handler"
	"github.com/user/event-harvest/internal/delivery/http/router"
	"github.com/user/event-harvest/internal/entity"
	"github.com/user/event-harvest/internal/interchange"
	"github.com/user/event-harvest/internal/repository"
	"github.com/user/event-harvest/internal/usecase"
	"github.com/user/event-harvest/pkg/config"
	"github.com/user/event-harvest/pkg/logger"
)

const (
	idlePollInterval = 2 * time.Second
	shutdownTimeout  = 15 * time.Second
)

func main() {
	envFile := flag.String("env", "", "optional env file with configuration")
	flag.Parse()

	// --- Configuration ---
	cfg, err := config.Load(*envFile)
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	// --- Logger ---
	logger.Init(logger.Writer(os.Stdout, cfg.LogFile), logger.ParseLevel(cfg.LogLevel))
	slog.Info("Logger initialized", "level", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Connections ---
	rdb, err := app.Redis(ctx, cfg)
	if err != nil {
		slog.Error("Unable to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer rdb.Close()

	store, err := app.OpenStore(ctx, cfg)
	if err != nil {
		slog.Error("Unable to open record store", "driver", cfg.StoreDriver, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	cats, err := app.Categories(cfg, "")
	if err != nil {
		slog.Error("Unable to load categories", "error", err)
		os.Exit(1)
	}

	// --- Repositories ---
	visitedRepo := redis_adapter.NewVisitedRepo(rdb)
	queueRepo := redis_adapter.NewQueueRepo(rdb)
	statusRepo := redis_adapter.NewStatusRepo(rdb)

	// --- Use Cases ---
	harvester, err := usecase.NewHarvester(usecase.HarvestDeps{
		NewFetcher: app.FetcherFactory(cfg),
		Embedder:   app.Embedder(cfg),
		Records:    store.Records,
		FailedURLs: store.FailedURLs,
		Visited:    visitedRepo,
	}, app.HarvestOptions(cfg, true))
	if err != nil {
		slog.Error("Unable to build harvester", "error", err)
		os.Exit(1)
	}
	sink := func(_ context.Context, ds *entity.Dataset) error {
		csvPath, jsonPath, err := interchange.WriteFiles(cfg.OutputDir, ds)
		if err == nil {
			slog.Info("Dataset written", "category", ds.Category, "csv", csvPath, "json", jsonPath)
		}
		return err
	}
	jobs := usecase.NewJobUseCase(cats, harvester, queueRepo, statusRepo, sink)

	// --- Queue workers ---
	var wg sync.WaitGroup
	for i := 0; i < cfg.QueueWorkers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			runWorker(ctx, id, jobs)
		}(i)
	}
	slog.Info("Queue workers started", "count", cfg.QueueWorkers)

	// --- HTTP Server ---
	checks := map[string]handler.HealthCheck{
		"redis": func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	}
	if store.Ping != nil {
		checks[cfg.StoreDriver] = store.Ping
	}
	apiHandler := handler.NewHandler(jobs, checks)
	httpRouter := router.New(apiHandler)

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      httpRouter,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 35 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("Starting server", "port", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Could not listen on port", "port", cfg.ServerPort, "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server shutdown failed", "error", err)
	}
	wg.Wait()
	slog.Info("Shutdown complete")
}

// runWorker processes queued jobs until ctx is cancelled, polling while the queue is empty.
func runWorker(ctx context.Context, id int, runner usecase.JobRunner) {
	for {
		err := runner.ProcessJobFromQueue(ctx)
		switch {
		case err == nil:
			continue
		case errors.Is(err, repository.ErrQueueEmpty):
		default:
			slog.Error("Queue worker error", "worker", id, "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(idlePollInterval):
		}
	}
}
