// Package app builds the pipeline's adapters from configuration. Both commands share it.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/user/event-harvest/internal/adapter/chromedp_fetcher"
	"github.com/user/event-harvest/internal/adapter/embedding"
	"github.com/user/event-harvest/internal/adapter/postgres"
	"github.com/user/event-harvest/internal/adapter/rod_fetcher"
	"github.com/user/event-harvest/internal/adapter/sqlite"
	"github.com/user/event-harvest/internal/category"
	"github.com/user/event-harvest/internal/discovery"
	"github.com/user/event-harvest/internal/repository"
	"github.com/user/event-harvest/internal/usecase"
	"github.com/user/event-harvest/internal/vectorize"
	"github.com/user/event-harvest/pkg/config"
)

const embedRequestTimeout = 60 * time.Second

// Categories loads the category file named by override, then CATEGORIES_FILE, then the
// built-in set.
func Categories(cfg *config.Config, override string) ([]category.Category, error) {
	path := cfg.CategoriesFile
	if override != "" {
		path = override
	}
	return category.Load(path)
}

// FetcherFactory returns the browser session factory selected by FETCH_DRIVER.
func FetcherFactory(cfg *config.Config) repository.FetcherFactory {
	if cfg.FetchDriver == "rod" {
		return rod_fetcher.Factory(rod_fetcher.FetcherOptions{
			Headless:        cfg.Headless,
			ChromePath:      cfg.ChromePath,
			ImplicitWait:    cfg.ImplicitWait(),
			PageLoadTimeout: cfg.PageLoadTimeout(),
			UserAgent:       cfg.UserAgent,
			AcceptLanguage:  cfg.AcceptLanguage,
		})
	}
	return chromedp_fetcher.Factory(chromedp_fetcher.FetcherOptions{
		Headless:        cfg.Headless,
		ChromePath:      cfg.ChromePath,
		ImplicitWait:    cfg.ImplicitWait(),
		PageLoadTimeout: cfg.PageLoadTimeout(),
		UserAgent:       cfg.UserAgent,
		AcceptLanguage:  cfg.AcceptLanguage,
	})
}

// Embedder returns the model selected by EMBED_DRIVER.
func Embedder(cfg *config.Config) repository.Embedder {
	if cfg.EmbedDriver == "http" {
		return embedding.NewHTTPEmbedder(cfg.EmbedURL, cfg.EmbedDimension, embedRequestTimeout)
	}
	return embedding.NewHashingEmbedder(cfg.EmbedDimension)
}

func HarvestOptions(cfg *config.Config, vectorizeRows bool) usecase.HarvestOptions {
	return usecase.HarvestOptions{
		Discovery: discovery.Options{
			MaxAttempts:  cfg.DiscoveryMaxAttempts,
			Backoff:      cfg.DiscoveryBackoff(),
			ScrollSettle: cfg.ScrollSettle(),
			MaxScrolls:   cfg.MaxScrolls,
		},
		Workers:       cfg.MaxConcurrency,
		RatePerSecond: cfg.RatePerSecond,
		RateBurst:     cfg.RateBurst,
		Vectorize:     vectorizeRows,
		Embed: vectorize.Options{
			BatchSize:   cfg.EmbedBatchSize,
			Parallelism: cfg.EmbedParallelism,
		},
		DedupTTL: cfg.DedupTTL(),
	}
}

// Postgres opens a pool, checks it and migrates the schema.
func Postgres(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, cfg.PostgresURL())
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := postgres.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	slog.Info("PostgreSQL connection pool established")
	return pool, nil
}

func Redis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("unable to connect to redis: %w", err)
	}
	slog.Info("Redis connection established", "addr", cfg.RedisAddr)
	return rdb, nil
}

// Store is the record persistence selected by STORE_DRIVER. Records is nil for "none".
type Store struct {
	Records    repository.RecordRepository
	FailedURLs repository.FailedURLRepository
	Ping       func(ctx context.Context) error
	Close      func()
}

func OpenStore(ctx context.Context, cfg *config.Config) (*Store, error) {
	switch cfg.StoreDriver {
	case "postgres":
		pool, err := Postgres(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return &Store{
			Records:    postgres.NewRecordRepo(pool),
			FailedURLs: postgres.NewFailedURLRepo(pool),
			Ping:       pool.Ping,
			Close:      pool.Close,
		}, nil
	case "sqlite":
		repo, err := sqlite.NewRecordRepo(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite %s: %w", cfg.SQLitePath, err)
		}
		return &Store{
			Records: repo,
			Ping:    repo.Ping,
			Close:   func() { _ = repo.Close() },
		}, nil
	default:
		return &Store{Close: func() {}}, nil
	}
}
