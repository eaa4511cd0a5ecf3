// Package pagination resolves catalog records in bulk without overwhelming
// the upstream.
//
// List endpoints return `{count, next, previous, results}` envelopes of names;
// detail endpoints return one record per request. The ListWalker turns list
// pages into identifiers and the Scheduler resolves their detail documents.
//
// Example usage:
//
//	scheduler, err := pagination.NewScheduler(apiClient, pagination.DefaultConfig())
//	walker := pagination.NewListWalker(apiClient)
//	ids, err := walker.Names(ctx, "pokemon", 151)
//	docs, err := scheduler.FetchAllDetails(ctx, "pokemon", ids)
//
// The scheduler:
//   - Splits identifiers into contiguous chunks (default 50)
//   - Runs up to MaxConcurrentChunks chunks per batch (default 4), one request per identifier
//   - Waits InterBatchDelay between batches (default 50ms), never after the last
//   - Returns results in submission order regardless of completion order
//   - Fails the whole call when any identifier fails (no partial results)
//   - Checks for cancellation between batches only
package pagination
