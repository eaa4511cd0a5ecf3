// Package config loads pokedex settings: built-in defaults, then an
// optional TOML file, then a .env file, then POKEDEX_* environment
// variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/Sternrassler/pokeapi-browser/pkg/logging"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "POKEDEX_"

// Config is the full application configuration.
type Config struct {
	API     APIConfig     `toml:"api"`
	Retry   RetryConfig   `toml:"retry"`
	Batch   BatchConfig   `toml:"batch"`
	Cache   CacheConfig   `toml:"cache"`
	Browse  BrowseConfig  `toml:"browse"`
	Log     LogConfig     `toml:"log"`
	Server  ServerConfig  `toml:"server"`
	History HistoryConfig `toml:"history"`
}

// APIConfig configures the upstream catalog.
type APIConfig struct {
	BaseURL   string `toml:"base_url"`
	UserAgent string `toml:"user_agent"`
	TimeoutMS int    `toml:"timeout_ms"`
}

// RetryConfig configures the fetch retry policy.
type RetryConfig struct {
	MaxAttempts       int     `toml:"max_attempts"`
	InitialBackoffMS  int     `toml:"initial_backoff_ms"`
	MaxBackoffMS      int     `toml:"max_backoff_ms"`
	BackoffMultiplier float64 `toml:"backoff_multiplier"`
	JitterFraction    float64 `toml:"jitter_fraction"`
}

// BatchConfig configures the detail scheduler.
type BatchConfig struct {
	ChunkSize           int `toml:"chunk_size"`
	MaxConcurrentChunks int `toml:"max_concurrent_chunks"`
	InterBatchDelayMS   int `toml:"inter_batch_delay_ms"`
	ListPageSize        int `toml:"list_page_size"`
}

// CacheConfig configures the response cache.
type CacheConfig struct {
	// RedisURL enables the shared Redis layer, e.g. "redis://localhost:6379/0".
	RedisURL   string `toml:"redis_url"`
	TTLSeconds int    `toml:"ttl_seconds"`
}

// BrowseConfig configures the browsing session.
type BrowseConfig struct {
	Limit        int `toml:"limit"`
	ItemsPerPage int `toml:"items_per_page"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `toml:"level"`
	Pretty bool   `toml:"pretty"`
}

// ServerConfig configures `pokedex serve`.
type ServerConfig struct {
	Addr           string   `toml:"addr"`
	AllowedOrigins []string `toml:"allowed_origins"`
}

// HistoryConfig configures the navigation history database.
type HistoryConfig struct {
	Path       string `toml:"path"`
	MaxEntries int    `toml:"max_entries"`
}

// Default returns the built-in configuration.
func Default() Config {
	historyPath := filepath.Join(".pokedex", "history.db")
	if home, err := os.UserHomeDir(); err == nil {
		historyPath = filepath.Join(home, ".pokedex", "history.db")
	}

	return Config{
		API: APIConfig{
			BaseURL:   "https://pokeapi.co/api/v2",
			UserAgent: "pokeapi-browser/0.1.0",
			TimeoutMS: 30000,
		},
		Retry: RetryConfig{
			MaxAttempts:       3,
			InitialBackoffMS:  1000,
			MaxBackoffMS:      5000,
			BackoffMultiplier: 2,
		},
		Batch: BatchConfig{
			ChunkSize:           50,
			MaxConcurrentChunks: 4,
			InterBatchDelayMS:   50,
			ListPageSize:        50,
		},
		Cache: CacheConfig{
			TTLSeconds: 86400,
		},
		Browse: BrowseConfig{
			Limit:        151,
			ItemsPerPage: 20,
		},
		Log: LogConfig{
			Level: "info",
		},
		Server: ServerConfig{
			Addr:           ":8080",
			AllowedOrigins: []string{"*"},
		},
		History: HistoryConfig{
			Path:       historyPath,
			MaxEntries: 1000,
		},
	}
}

// Load builds the configuration. path may be empty; a missing .env file is
// ignored. The result is validated.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type lookupFunc func(key string) (string, bool)

// applyEnv overrides fields from POKEDEX_<SECTION>_<KEY> variables.
func (c *Config) applyEnv(lookup lookupFunc) error {
	strs := map[string]*string{
		"API_BASE_URL":    &c.API.BaseURL,
		"API_USER_AGENT":  &c.API.UserAgent,
		"CACHE_REDIS_URL": &c.Cache.RedisURL,
		"LOG_LEVEL":       &c.Log.Level,
		"SERVER_ADDR":     &c.Server.Addr,
		"HISTORY_PATH":    &c.History.Path,
	}
	ints := map[string]*int{
		"API_TIMEOUT_MS":              &c.API.TimeoutMS,
		"RETRY_MAX_ATTEMPTS":          &c.Retry.MaxAttempts,
		"RETRY_INITIAL_BACKOFF_MS":    &c.Retry.InitialBackoffMS,
		"RETRY_MAX_BACKOFF_MS":        &c.Retry.MaxBackoffMS,
		"BATCH_CHUNK_SIZE":            &c.Batch.ChunkSize,
		"BATCH_MAX_CONCURRENT_CHUNKS": &c.Batch.MaxConcurrentChunks,
		"BATCH_INTER_BATCH_DELAY_MS":  &c.Batch.InterBatchDelayMS,
		"BATCH_LIST_PAGE_SIZE":        &c.Batch.ListPageSize,
		"CACHE_TTL_SECONDS":           &c.Cache.TTLSeconds,
		"BROWSE_LIMIT":                &c.Browse.Limit,
		"BROWSE_ITEMS_PER_PAGE":       &c.Browse.ItemsPerPage,
		"HISTORY_MAX_ENTRIES":         &c.History.MaxEntries,
	}
	floats := map[string]*float64{
		"RETRY_BACKOFF_MULTIPLIER": &c.Retry.BackoffMultiplier,
		"RETRY_JITTER_FRACTION":    &c.Retry.JitterFraction,
	}

	for key, dst := range strs {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = v
		}
	}
	for key, dst := range ints {
		if v, ok := lookup(EnvPrefix + key); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("invalid %s%s: %w", EnvPrefix, key, err)
			}
			*dst = n
		}
	}
	for key, dst := range floats {
		if v, ok := lookup(EnvPrefix + key); ok {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return fmt.Errorf("invalid %s%s: %w", EnvPrefix, key, err)
			}
			*dst = f
		}
	}
	if v, ok := lookup(EnvPrefix + "LOG_PRETTY"); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid %sLOG_PRETTY: %w", EnvPrefix, err)
		}
		c.Log.Pretty = b
	}
	if v, ok := lookup(EnvPrefix + "SERVER_ALLOWED_ORIGINS"); ok {
		c.Server.AllowedOrigins = nil
		for _, origin := range strings.Split(v, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				c.Server.AllowedOrigins = append(c.Server.AllowedOrigins, origin)
			}
		}
	}
	return nil
}

// Validate checks every section and reports all problems at once.
func (c Config) Validate() error {
	var errs []error

	if u, err := url.Parse(c.API.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("api.base_url must be an absolute URL (got %q)", c.API.BaseURL))
	}
	if c.API.UserAgent == "" {
		errs = append(errs, errors.New("api.user_agent is required"))
	}
	if c.API.TimeoutMS <= 0 {
		errs = append(errs, fmt.Errorf("api.timeout_ms must be > 0 (got %d)", c.API.TimeoutMS))
	}

	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("retry.max_attempts must be >= 1 (got %d)", c.Retry.MaxAttempts))
	}
	if c.Retry.InitialBackoffMS < 0 || c.Retry.MaxBackoffMS < 0 {
		errs = append(errs, errors.New("retry backoff must not be negative"))
	}
	if c.Retry.BackoffMultiplier < 1 {
		errs = append(errs, fmt.Errorf("retry.backoff_multiplier must be >= 1 (got %v)", c.Retry.BackoffMultiplier))
	}
	if c.Retry.JitterFraction < 0 || c.Retry.JitterFraction > 1 {
		errs = append(errs, fmt.Errorf("retry.jitter_fraction must be within [0, 1] (got %v)", c.Retry.JitterFraction))
	}

	if c.Batch.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("batch.chunk_size must be > 0 (got %d)", c.Batch.ChunkSize))
	}
	if c.Batch.MaxConcurrentChunks <= 0 {
		errs = append(errs, fmt.Errorf("batch.max_concurrent_chunks must be > 0 (got %d)", c.Batch.MaxConcurrentChunks))
	}
	if c.Batch.InterBatchDelayMS < 0 {
		errs = append(errs, fmt.Errorf("batch.inter_batch_delay_ms must be >= 0 (got %d)", c.Batch.InterBatchDelayMS))
	}
	if c.Batch.ListPageSize <= 0 {
		errs = append(errs, fmt.Errorf("batch.list_page_size must be > 0 (got %d)", c.Batch.ListPageSize))
	}

	if c.Cache.RedisURL != "" {
		if _, err := url.Parse(c.Cache.RedisURL); err != nil {
			errs = append(errs, fmt.Errorf("cache.redis_url: %w", err))
		}
	}
	if c.Cache.TTLSeconds <= 0 {
		errs = append(errs, fmt.Errorf("cache.ttl_seconds must be > 0 (got %d)", c.Cache.TTLSeconds))
	}

	if c.Browse.Limit <= 0 {
		errs = append(errs, fmt.Errorf("browse.limit must be > 0 (got %d)", c.Browse.Limit))
	}
	if c.Browse.ItemsPerPage <= 0 {
		errs = append(errs, fmt.Errorf("browse.items_per_page must be > 0 (got %d)", c.Browse.ItemsPerPage))
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}

	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.History.Path == "" {
		errs = append(errs, errors.New("history.path is required"))
	}

	return errors.Join(errs...)
}

// Timeout returns API.TimeoutMS as a duration.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.API.TimeoutMS) * time.Millisecond
}

// CacheTTL returns Cache.TTLSeconds as a duration.
func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLSeconds) * time.Second
}

// InitialBackoff returns Retry.InitialBackoffMS as a duration.
func (c Config) InitialBackoff() time.Duration {
	return time.Duration(c.Retry.InitialBackoffMS) * time.Millisecond
}

// MaxBackoff returns Retry.MaxBackoffMS as a duration.
func (c Config) MaxBackoff() time.Duration {
	return time.Duration(c.Retry.MaxBackoffMS) * time.Millisecond
}

// InterBatchDelay returns Batch.InterBatchDelayMS as a duration.
func (c Config) InterBatchDelay() time.Duration {
	return time.Duration(c.Batch.InterBatchDelayMS) * time.Millisecond
}
