package config

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/Sternrassler/pokeapi-browser/pkg/client"
	"github.com/Sternrassler/pokeapi-browser/pkg/logging"
	"github.com/Sternrassler/pokeapi-browser/pkg/pagination"
)

// ClientConfig converts the api, retry and cache sections. rdb may be nil.
func (c Config) ClientConfig(rdb *redis.Client) client.Config {
	return client.Config{
		BaseURL:   c.API.BaseURL,
		Redis:     rdb,
		UserAgent: c.API.UserAgent,
		Timeout:   c.Timeout(),
		CacheTTL:  c.CacheTTL(),
		Retry: client.RetryPolicy{
			MaxAttempts:       c.Retry.MaxAttempts,
			InitialBackoff:    c.InitialBackoff(),
			MaxBackoff:        c.MaxBackoff(),
			BackoffMultiplier: c.Retry.BackoffMultiplier,
			JitterFraction:    c.Retry.JitterFraction,
		},
	}
}

// PaginationConfig converts the batch section.
func (c Config) PaginationConfig() pagination.Config {
	return pagination.Config{
		ChunkSize:           c.Batch.ChunkSize,
		MaxConcurrentChunks: c.Batch.MaxConcurrentChunks,
		InterBatchDelay:     c.InterBatchDelay(),
	}
}

// LoggingConfig converts the log section. Output is left to logging's default.
func (c Config) LoggingConfig() logging.Config {
	cfg := logging.DefaultConfig()
	if level, err := logging.ParseLevel(c.Log.Level); err == nil {
		cfg.Level = level
	}
	cfg.Pretty = c.Log.Pretty
	return cfg
}

// RedisClient opens the configured Redis connection, or returns nil when
// cache.redis_url is empty.
func (c Config) RedisClient() (*redis.Client, error) {
	if c.Cache.RedisURL == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(c.Cache.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse cache.redis_url: %w", err)
	}
	return redis.NewClient(opts), nil
}
