package pagination

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig marks scheduler configuration errors.
var ErrInvalidConfig = errors.New("invalid batch configuration")

// ConfigurationError reports an unusable scheduler parameter.
// It is fatal and never retried.
type ConfigurationError struct {
	Field string
	Value any
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: %s = %v", ErrInvalidConfig, e.Field, e.Value)
}

func (e *ConfigurationError) Unwrap() error {
	return ErrInvalidConfig
}

// Config holds scheduler configuration
type Config struct {
	// ChunkSize is the number of identifiers per chunk
	ChunkSize int
	// MaxConcurrentChunks bounds how many chunks run together in one batch
	MaxConcurrentChunks int
	// InterBatchDelay is the pause between consecutive batches
	InterBatchDelay time.Duration
}

// DefaultConfig returns the default pacing: 50 per chunk, 4 chunks per
// batch, 50ms between batches.
func DefaultConfig() Config {
	return Config{
		ChunkSize:           50,
		MaxConcurrentChunks: 4,
		InterBatchDelay:     50 * time.Millisecond,
	}
}

// Validate returns a *ConfigurationError for the first unusable field.
func (c Config) Validate() error {
	switch {
	case c.ChunkSize <= 0:
		return &ConfigurationError{Field: "chunk_size", Value: c.ChunkSize}
	case c.MaxConcurrentChunks <= 0:
		return &ConfigurationError{Field: "max_concurrent_chunks", Value: c.MaxConcurrentChunks}
	case c.InterBatchDelay < 0:
		return &ConfigurationError{Field: "inter_batch_delay", Value: c.InterBatchDelay}
	}
	return nil
}
