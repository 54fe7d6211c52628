// Command harvest runs the event pipeline once for one or all categories and writes
// <category>.csv and <category>.json to the output directory.
//
// Configuration comes from the environment (optionally an env file via -env); flags
// override the run-specific parts:
//
//	harvest -category festival -out data
//	harvest -no-vectorize
//	harvest -fixtures testdata/site   # replay recorded pages instead of a browser
//	harvest -convert data/musical.csv # print a cleaned CSV as JSON
//
// The exit code is non-zero only for configuration problems or a fatal run error.
// Pages that fail individually are reported in the summary.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/user/event-harvest/internal/adapter/memory"
	redis_adapter "github.com/user/event-harvest/internal/adapter/redis"
	"github.com/user/event-harvest/internal/app"
	"github.com/user/event-harvest/internal/category"
	"github.com/user/event-harvest/internal/interchange"
	"github.com/user/event-harvest/internal/usecase"
	"github.com/user/event-harvest/pkg/config"
	"github.com/user/event-harvest/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

type options struct {
	envFile     string
	category    string
	outDir      string
	categories  string
	fixtures    string
	convert     string
	noVectorize bool
	force       bool
	dedup       bool
	retry       bool
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var o options
	fs := flag.NewFlagSet("harvest", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.envFile, "env", "", "optional env file with configuration")
	fs.StringVar(&o.category, "category", "", "harvest only this category (default: all)")
	fs.StringVar(&o.outDir, "out", "", "output directory (default: OUTPUT_DIR)")
	fs.StringVar(&o.categories, "categories", "", "category YAML file (default: CATEGORIES_FILE or built-in)")
	fs.StringVar(&o.fixtures, "fixtures", "", "directory of recorded pages to replay instead of a browser")
	fs.StringVar(&o.convert, "convert", "", "convert a dataset CSV to JSON on stdout and exit")
	fs.BoolVar(&o.noVectorize, "no-vectorize", false, "skip the embedding step")
	fs.BoolVar(&o.force, "force", false, "re-harvest detail pages seen within DEDUP_TTL_HOURS")
	fs.BoolVar(&o.dedup, "dedup", false, "skip recently harvested detail pages using Redis")
	fs.BoolVar(&o.retry, "retry-failed", false, "re-harvest due entries of failed_urls instead of discovering")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if o.convert != "" {
		return convert(o.convert, stdout, stderr)
	}

	cfg, err := config.Load(o.envFile)
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return 2
	}
	logger.Init(logger.Writer(stderr, cfg.LogFile), logger.ParseLevel(cfg.LogLevel))
	if o.outDir == "" {
		o.outDir = cfg.OutputDir
	}

	cats, err := app.Categories(cfg, o.categories)
	if err != nil {
		fmt.Fprintf(stderr, "categories: %v\n", err)
		return 2
	}
	if o.category != "" {
		c, ok := category.Find(cats, o.category)
		if !ok {
			fmt.Fprintf(stderr, "unknown category %q\n", o.category)
			return 2
		}
		cats = []category.Category{c}
	}

	deps := usecase.HarvestDeps{Embedder: app.Embedder(cfg)}
	if o.fixtures != "" {
		site, err := memory.LoadSite(o.fixtures)
		if err != nil {
			fmt.Fprintf(stderr, "fixtures: %v\n", err)
			return 2
		}
		deps.NewFetcher = site.Factory()
	} else {
		deps.NewFetcher = app.FetcherFactory(cfg)
	}

	store, err := app.OpenStore(ctx, cfg)
	if err != nil {
		fmt.Fprintf(stderr, "store: %v\n", err)
		return 1
	}
	defer store.Close()
	deps.Records = store.Records
	deps.FailedURLs = store.FailedURLs

	if o.dedup || o.force {
		rdb, err := app.Redis(ctx, cfg)
		if err != nil {
			fmt.Fprintf(stderr, "dedup: %v\n", err)
			return 1
		}
		defer rdb.Close()
		deps.Visited = redis_adapter.NewVisitedRepo(rdb)
	}

	h, err := usecase.NewHarvester(deps, app.HarvestOptions(cfg, !o.noVectorize))
	if err != nil {
		fmt.Fprintf(stderr, "harvester: %v\n", err)
		return 2
	}

	for _, c := range cats {
		var res *usecase.BatchResult
		if o.retry {
			res, err = h.RetryFailed(ctx, c, cfg.MaxConcurrency*50)
		} else {
			res, err = h.Harvest(ctx, c, o.force)
		}
		if err != nil {
			slog.Error("Harvest aborted", "category", c.Name, "error", err)
			fmt.Fprintf(stderr, "%s: %v\n", c.Name, err)
			return 1
		}
		csvPath, jsonPath, err := interchange.WriteFiles(o.outDir, res.Dataset)
		if err != nil {
			fmt.Fprintf(stderr, "%s: write output: %v\n", c.Name, err)
			return 1
		}
		printSummary(stdout, res, csvPath, jsonPath)
	}
	return 0
}

func printSummary(w io.Writer, res *usecase.BatchResult, csvPath, jsonPath string) {
	fmt.Fprintf(w, "%s: discovered=%d already_harvested=%d retained=%d dropped=%d skipped=%d skipped_pages=%d\n",
		res.Category, res.Discovered, res.AlreadyHarvested, len(res.Dataset.Rows), res.Dropped, res.Skipped(), len(res.SkippedPages))
	for _, it := range res.Failed() {
		fmt.Fprintf(w, "  failed %s: %v\n", it.URL, it.Err)
	}
	for _, e := range res.EmbedSkipped {
		fmt.Fprintf(w, "  not embedded %s: %v\n", e.DetailURL, e.Err)
	}
	fmt.Fprintf(w, "  wrote %s %s\n", csvPath, jsonPath)
}

func convert(path string, stdout, stderr io.Writer) int {
	f, err := os.Open(path)
	if err != nil {
		fmt.Fprintf(stderr, "open %q: %v\n", path, err)
		return 1
	}
	defer func() { _ = f.Close() }()
	if err := interchange.ConvertCSVToJSON(f, stdout); err != nil {
		fmt.Fprintf(stderr, "convert %q: %v\n", path, err)
		return 1
	}
	return 0
}
