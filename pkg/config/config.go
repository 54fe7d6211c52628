package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"time"

	"github.com/spf13/viper"
)

// Config holds the application configuration.
type Config struct {
	ServerPort string `mapstructure:"SERVER_PORT"`
	LogLevel   string `mapstructure:"LOG_LEVEL"`
	LogFile    string `mapstructure:"LOG_FILE"`

	PostgresHost     string `mapstructure:"POSTGRES_HOST"`
	PostgresPort     string `mapstructure:"POSTGRES_PORT"`
	PostgresUser     string `mapstructure:"POSTGRES_USER"`
	PostgresPassword string `mapstructure:"POSTGRES_PASSWORD"`
	PostgresDB       string `mapstructure:"POSTGRES_DB"`

	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	StoreDriver string `mapstructure:"STORE_DRIVER"` // none, postgres, sqlite
	SQLitePath  string `mapstructure:"SQLITE_PATH"`

	FetchDriver            string `mapstructure:"FETCH_DRIVER"` // chromedp, rod
	Headless               bool   `mapstructure:"HEADLESS"`
	ImplicitWaitSeconds    int    `mapstructure:"IMPLICIT_WAIT_SECONDS"`
	PageLoadTimeoutSeconds int    `mapstructure:"PAGE_LOAD_TIMEOUT_SECONDS"`
	ScrollSettleMS         int    `mapstructure:"SCROLL_SETTLE_MS"`
	MaxScrolls             int    `mapstructure:"MAX_SCROLLS"`
	ChromePath             string `mapstructure:"CHROME_PATH"`
	UserAgent              string `mapstructure:"USER_AGENT"`
	AcceptLanguage         string `mapstructure:"ACCEPT_LANGUAGE"`

	DiscoveryMaxAttempts int `mapstructure:"DISCOVERY_MAX_ATTEMPTS"`
	DiscoveryBackoffMS   int `mapstructure:"DISCOVERY_BACKOFF_MS"`

	MaxConcurrency int     `mapstructure:"MAX_CONCURRENCY"`
	RatePerSecond  float64 `mapstructure:"RATE_PER_SECOND"`
	RateBurst      int     `mapstructure:"RATE_BURST"`

	EmbedDriver      string `mapstructure:"EMBED_DRIVER"` // hashing, http
	EmbedURL         string `mapstructure:"EMBED_URL"`
	EmbedDimension   int    `mapstructure:"EMBED_DIMENSION"`
	EmbedBatchSize   int    `mapstructure:"EMBED_BATCH_SIZE"`
	EmbedParallelism int    `mapstructure:"EMBED_PARALLELISM"`

	CategoriesFile string `mapstructure:"CATEGORIES_FILE"`
	OutputDir      string `mapstructure:"OUTPUT_DIR"`
	DedupTTLHours  int    `mapstructure:"DEDUP_TTL_HOURS"`
	QueueWorkers   int    `mapstructure:"QUEUE_WORKERS"`
}

var defaults = map[string]any{
	"SERVER_PORT":               "8080",
	"LOG_LEVEL":                 "info",
	"LOG_FILE":                  "",
	"POSTGRES_HOST":             "localhost",
	"POSTGRES_PORT":             "5432",
	"POSTGRES_USER":             "user",
	"POSTGRES_PASSWORD":         "password",
	"POSTGRES_DB":               "harvest",
	"REDIS_ADDR":                "localhost:6379",
	"REDIS_PASSWORD":            "",
	"REDIS_DB":                  0,
	"STORE_DRIVER":              "none",
	"SQLITE_PATH":               "harvest.db",
	"FETCH_DRIVER":              "chromedp",
	"HEADLESS":                  true,
	"IMPLICIT_WAIT_SECONDS":     10,
	"PAGE_LOAD_TIMEOUT_SECONDS": 60,
	"SCROLL_SETTLE_MS":          1000,
	"MAX_SCROLLS":               200,
	"CHROME_PATH":               "",
	"USER_AGENT":                "",
	"ACCEPT_LANGUAGE":           "ko-KR,ko;q=0.9,en;q=0.8",
	"DISCOVERY_MAX_ATTEMPTS":    3,
	"DISCOVERY_BACKOFF_MS":      500,
	"MAX_CONCURRENCY":           4,
	"RATE_PER_SECOND":           2.0,
	"RATE_BURST":                1,
	"EMBED_DRIVER":              "hashing",
	"EMBED_URL":                 "",
	"EMBED_DIMENSION":           768,
	"EMBED_BATCH_SIZE":          32,
	"EMBED_PARALLELISM":         4,
	"CATEGORIES_FILE":           "",
	"OUTPUT_DIR":                "data",
	"DEDUP_TTL_HOURS":           48,
	"QUEUE_WORKERS":             1,
}

// Load reads configuration from an optional env file and the environment.
// A missing env file is not an error; environment variables always win.
func Load(envFile string) (*Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.AutomaticEnv()

	if envFile != "" {
		v.SetConfigFile(envFile)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !isNotExist(err) {
				return nil, fmt.Errorf("read %s: %w", envFile, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values the pipeline cannot run with.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case "none", "postgres", "sqlite":
	default:
		return fmt.Errorf("STORE_DRIVER: unsupported value %q", c.StoreDriver)
	}
	switch c.FetchDriver {
	case "chromedp", "rod":
	default:
		return fmt.Errorf("FETCH_DRIVER: unsupported value %q", c.FetchDriver)
	}
	switch c.EmbedDriver {
	case "hashing":
	case "http":
		if c.EmbedURL == "" {
			return errors.New("EMBED_URL is required when EMBED_DRIVER=http")
		}
	default:
		return fmt.Errorf("EMBED_DRIVER: unsupported value %q", c.EmbedDriver)
	}
	if c.MaxConcurrency < 1 {
		return errors.New("MAX_CONCURRENCY must be >= 1")
	}
	if c.RatePerSecond <= 0 || c.RateBurst < 1 {
		return errors.New("RATE_PER_SECOND must be > 0 and RATE_BURST >= 1")
	}
	if c.DiscoveryMaxAttempts < 1 {
		return errors.New("DISCOVERY_MAX_ATTEMPTS must be >= 1")
	}
	if c.EmbedDimension < 1 || c.EmbedBatchSize < 1 || c.EmbedParallelism < 1 {
		return errors.New("EMBED_DIMENSION, EMBED_BATCH_SIZE and EMBED_PARALLELISM must be >= 1")
	}
	if c.ImplicitWaitSeconds < 1 {
		return errors.New("IMPLICIT_WAIT_SECONDS must be >= 1")
	}
	if c.PageLoadTimeoutSeconds < 1 || c.ScrollSettleMS < 0 || c.MaxScrolls < 1 {
		return errors.New("fetcher timings are out of range")
	}
	return nil
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func (c *Config) PostgresURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.PostgresUser, c.PostgresPassword),
		Host:     net.JoinHostPort(c.PostgresHost, c.PostgresPort),
		Path:     c.PostgresDB,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

func (c *Config) ImplicitWait() time.Duration {
	return time.Duration(c.ImplicitWaitSeconds) * time.Second
}

func (c *Config) PageLoadTimeout() time.Duration {
	return time.Duration(c.PageLoadTimeoutSeconds) * time.Second
}

func (c *Config) ScrollSettle() time.Duration {
	return time.Duration(c.ScrollSettleMS) * time.Millisecond
}

func (c *Config) DiscoveryBackoff() time.Duration {
	return time.Duration(c.DiscoveryBackoffMS) * time.Millisecond
}

func (c *Config) DedupTTL() time.Duration {
	return time.Duration(c.DedupTTLHours) * time.Hour
}
