package pagination

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Sternrassler/pokeapi-browser/pkg/catalog"
	"github.com/Sternrassler/pokeapi-browser/pkg/logging"
	"github.com/rs/zerolog"
)

// DefaultPageSize is the list page size used by ListWalker.
const DefaultPageSize = 50

// ListWalker pages through list envelopes.
type ListWalker struct {
	fetcher  DetailFetcher
	PageSize int
	logger   zerolog.Logger
}

// NewListWalker creates a walker with DefaultPageSize.
func NewListWalker(fetcher DetailFetcher) *ListWalker {
	return &ListWalker{
		fetcher:  fetcher,
		PageSize: DefaultPageSize,
		logger:   logging.NewLogger(logging.ComponentWalker),
	}
}

// Walk requests ?limit=PageSize&offset=O pages of resource until limit
// entries are collected or the envelope has no next page. limit <= 0 walks
// everything.
func (w *ListWalker) Walk(ctx context.Context, resource string, limit int) ([]catalog.NamedResource, error) {
	pageSize := w.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	var (
		out       []catalog.NamedResource
		lastCount = -1
	)
	for offset := 0; limit <= 0 || len(out) < limit; offset += pageSize {
		size := pageSize
		if limit > 0 {
			size = min(pageSize, limit-len(out))
		}

		body, err := w.fetcher.GetJSON(ctx, fmt.Sprintf("%s?limit=%d&offset=%d", resource, size, offset))
		if err != nil {
			return nil, fmt.Errorf("list %s at offset %d: %w", resource, offset, err)
		}
		listPagesTotal.WithLabelValues(resource).Inc()

		var envelope catalog.ListEnvelope
		if err := json.Unmarshal(body, &envelope); err != nil {
			return nil, fmt.Errorf("decode %s envelope: %w", resource, err)
		}

		if lastCount >= 0 && envelope.Count < lastCount {
			w.logger.Warn().
				Str("resource", resource).
				Int("previous_count", lastCount).
				Int("count", envelope.Count).
				Msg("List count decreased during walk")
		}
		lastCount = envelope.Count

		out = append(out, envelope.Results...)

		if envelope.Next == nil || len(envelope.Results) == 0 {
			break
		}
	}

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}

	w.logger.Debug().
		Str("resource", resource).
		Int("entries", len(out)).
		Int("count", lastCount).
		Msg("List walk complete")

	return out, nil
}

// Names walks resource and returns identifiers for the scheduler. The
// numeric id from each entry's URL is preferred; the name is used when the
// URL carries none.
func (w *ListWalker) Names(ctx context.Context, resource string, limit int) ([]catalog.Identifier, error) {
	entries, err := w.Walk(ctx, resource, limit)
	if err != nil {
		return nil, err
	}

	ids := make([]catalog.Identifier, 0, len(entries))
	for _, entry := range entries {
		if id, err := catalog.IDFromURL(entry.URL); err == nil {
			ids = append(ids, catalog.IDFromInt(id))
			continue
		}
		ids = append(ids, catalog.Identifier(entry.Name))
	}
	return ids, nil
}
