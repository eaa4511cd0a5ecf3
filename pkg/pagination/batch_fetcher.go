package pagination

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/Sternrassler/pokeapi-browser/pkg/catalog"
	"github.com/Sternrassler/pokeapi-browser/pkg/logging"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// DetailFetcher is the interface the catalog client implements for single-record fetching
type DetailFetcher interface {
	GetJSON(ctx context.Context, endpoint string) (json.RawMessage, error)
}

// Scheduler resolves detail documents in paced, concurrent batches
type Scheduler struct {
	fetcher DetailFetcher
	config  Config
	sleep   func(ctx context.Context, d time.Duration) error
	logger  zerolog.Logger
}

var _ catalog.BatchFetcher = (*Scheduler)(nil)

// NewScheduler creates a new scheduler. An invalid config yields a *ConfigurationError.
func NewScheduler(fetcher DetailFetcher, config Config) (*Scheduler, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &Scheduler{
		fetcher: fetcher,
		config:  config,
		sleep:   sleepContext,
		logger:  logging.NewLogger(logging.ComponentScheduler),
	}, nil
}

// SetSleeper replaces the inter-batch sleep (for testing).
func (s *Scheduler) SetSleeper(fn func(ctx context.Context, d time.Duration) error) {
	s.sleep = fn
}

// Config returns the scheduler configuration.
func (s *Scheduler) Config() Config {
	return s.config
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// chunkBounds returns [start, end) pairs of contiguous chunks.
func chunkBounds(n, size int) [][2]int {
	bounds := make([][2]int, 0, (n+size-1)/size)
	for start := 0; start < n; start += size {
		bounds = append(bounds, [2]int{start, min(start+size, n)})
	}
	return bounds
}

// FetchAllDetails fetches /{resource}/{id} for every identifier and returns
// the documents in input order. Any failure fails the whole call.
func (s *Scheduler) FetchAllDetails(ctx context.Context, resource string, ids []catalog.Identifier) ([]json.RawMessage, error) {
	if len(ids) == 0 {
		return []json.RawMessage{}, nil
	}

	start := time.Now()
	results := make([]json.RawMessage, len(ids))
	chunks := chunkBounds(len(ids), s.config.ChunkSize)
	totalBatches := (len(chunks) + s.config.MaxConcurrentChunks - 1) / s.config.MaxConcurrentChunks

	s.logger.Info().
		Str("resource", resource).
		Int("identifiers", len(ids)).
		Int("chunks", len(chunks)).
		Int("batches", totalBatches).
		Msg("Starting batched detail fetch")

	for batch := 0; batch < totalBatches; batch++ {
		if batch > 0 {
			if err := ctx.Err(); err != nil {
				fetchFailuresTotal.WithLabelValues(resource).Inc()
				return nil, fmt.Errorf("fetch %s stopped before batch %d/%d: %w", resource, batch+1, totalBatches, err)
			}
			if s.config.InterBatchDelay > 0 {
				if err := s.sleep(ctx, s.config.InterBatchDelay); err != nil {
					fetchFailuresTotal.WithLabelValues(resource).Inc()
					return nil, fmt.Errorf("fetch %s stopped before batch %d/%d: %w", resource, batch+1, totalBatches, err)
				}
			}
		}

		first := batch * s.config.MaxConcurrentChunks
		last := min(first+s.config.MaxConcurrentChunks, len(chunks))
		if err := s.runBatch(ctx, resource, ids, results, chunks[first:last]); err != nil {
			fetchFailuresTotal.WithLabelValues(resource).Inc()
			s.logger.Warn().
				Err(err).
				Str("resource", resource).
				Int("batch", batch+1).
				Msg("Batch failed - aborting fetch")
			return nil, err
		}

		s.logger.Debug().
			Str("resource", resource).
			Int("batch", batch+1).
			Int("total", totalBatches).
			Int("chunks", last-first).
			Msg("Batch complete")
	}

	s.logger.Info().
		Str("resource", resource).
		Int("identifiers", len(ids)).
		Dur("duration", time.Since(start)).
		Msg("Fetch complete")

	return results, nil
}

// runBatch fetches every identifier of the given chunks concurrently,
// writing each document into its input slot.
func (s *Scheduler) runBatch(ctx context.Context, resource string, ids []catalog.Identifier, results []json.RawMessage, chunks [][2]int) error {
	batchStart := time.Now()
	batchesTotal.WithLabelValues(resource).Inc()
	chunksTotal.WithLabelValues(resource).Add(float64(len(chunks)))
	defer func() {
		batchDuration.WithLabelValues(resource).Observe(time.Since(batchStart).Seconds())
	}()

	// Plain Group: one failed fetch does not cancel its siblings.
	var g errgroup.Group
	for _, chunk := range chunks {
		for i := chunk[0]; i < chunk[1]; i++ {
			g.Go(func() error {
				endpoint := resource + "/" + url.PathEscape(string(ids[i]))
				doc, err := s.fetcher.GetJSON(ctx, endpoint)
				if err != nil {
					return fmt.Errorf("fetch %s %s: %w", resource, ids[i], err)
				}
				results[i] = doc
				return nil
			})
		}
	}
	return g.Wait()
}

// DetailFetcherFunc adapts a function to DetailFetcher.
type DetailFetcherFunc func(ctx context.Context, endpoint string) (json.RawMessage, error)

// GetJSON calls f.
func (f DetailFetcherFunc) GetJSON(ctx context.Context, endpoint string) (json.RawMessage, error) {
	return f(ctx, endpoint)
}
