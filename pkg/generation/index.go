// Package generation maps species ids to the generation that introduced them.
package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/Sternrassler/pokeapi-browser/pkg/catalog"
	"github.com/Sternrassler/pokeapi-browser/pkg/logging"
	"github.com/Sternrassler/pokeapi-browser/pkg/pagination"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

var (
	indexBuildsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pokeapi_generation_index_builds_total",
		Help: "Total generation index builds by result",
	}, []string{"result"})

	indexSpecies = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pokeapi_generation_index_species",
		Help: "Number of species in the current generation index",
	})
)

// ListEndpoint is the listing the index is built from.
const ListEndpoint = "generation?limit=100"

const buildKey = "build"

// BuildTimeout bounds a shared index build. The build outlives the caller
// that started it, so it only ends on completion or this timeout.
var BuildTimeout = 2 * time.Minute

// Lookup is an immutable species id -> generation id map.
type Lookup struct {
	m map[int]int
}

// NewLookup copies m into a Lookup.
func NewLookup(m map[int]int) Lookup {
	copied := make(map[int]int, len(m))
	for k, v := range m {
		copied[k] = v
	}
	return Lookup{m: copied}
}

// GenerationOf returns the generation of a species id.
func (l Lookup) GenerationOf(id int) (int, bool) {
	gen, ok := l.m[id]
	return gen, ok
}

// Len returns the number of indexed species.
func (l Lookup) Len() int {
	return len(l.m)
}

type generationDocument struct {
	ID             int                     `json:"id"`
	Name           string                  `json:"name"`
	PokemonSpecies []catalog.NamedResource `json:"pokemon_species"`
}

// Index lazily builds and memoizes the species -> generation map.
type Index struct {
	lister  pagination.DetailFetcher
	details catalog.BatchFetcher
	logger  zerolog.Logger

	group  singleflight.Group
	mu     sync.RWMutex
	lookup *Lookup
	epoch  uint64
}

// NewIndex creates an index that lists generations through lister and
// resolves their details through details.
func NewIndex(lister pagination.DetailFetcher, details catalog.BatchFetcher) *Index {
	return &Index{
		lister:  lister,
		details: details,
		logger:  logging.NewLogger(logging.ComponentGeneration),
	}
}

// Lookup returns the memoized map, building it on first use. Concurrent
// first calls share one build; a failed build is not cached. A caller whose
// ctx ends stops waiting, but the build keeps running for the others.
func (x *Index) Lookup(ctx context.Context) (Lookup, error) {
	x.mu.RLock()
	if x.lookup != nil {
		l := *x.lookup
		x.mu.RUnlock()
		return l, nil
	}
	epoch := x.epoch
	x.mu.RUnlock()

	ch := x.group.DoChan(buildKey, func() (any, error) {
		bctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), BuildTimeout)
		defer cancel()

		l, err := x.build(bctx)
		if err != nil {
			indexBuildsTotal.WithLabelValues("error").Inc()
			return nil, err
		}
		indexBuildsTotal.WithLabelValues("success").Inc()
		indexSpecies.Set(float64(l.Len()))

		x.mu.Lock()
		// Drop builds started before an Invalidate.
		if x.epoch == epoch {
			x.lookup = &l
		}
		x.mu.Unlock()
		return l, nil
	})

	select {
	case <-ctx.Done():
		return Lookup{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Lookup{}, res.Err
		}
		return res.Val.(Lookup), nil
	}
}

// GenerationOf resolves one species id. ok is false when the id is not indexed.
func (x *Index) GenerationOf(ctx context.Context, id int) (gen int, ok bool, err error) {
	l, err := x.Lookup(ctx)
	if err != nil {
		return 0, false, err
	}
	gen, ok = l.GenerationOf(id)
	return gen, ok, nil
}

// Invalidate clears the memoized map; the next lookup rebuilds it.
func (x *Index) Invalidate() {
	x.mu.Lock()
	x.lookup = nil
	x.epoch++
	x.mu.Unlock()
	x.group.Forget(buildKey)
	indexSpecies.Set(0)

	x.logger.Debug().Msg("Generation index invalidated")
}

func (x *Index) build(ctx context.Context) (Lookup, error) {
	body, err := x.lister.GetJSON(ctx, ListEndpoint)
	if err != nil {
		return Lookup{}, fmt.Errorf("list generations: %w", err)
	}

	var envelope catalog.ListEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return Lookup{}, fmt.Errorf("decode generation list: %w", err)
	}

	ids := make([]catalog.Identifier, 0, len(envelope.Results))
	for _, entry := range envelope.Results {
		id, err := catalog.IDFromURL(entry.URL)
		if err != nil {
			ids = append(ids, catalog.Identifier(entry.Name))
			continue
		}
		ids = append(ids, catalog.IDFromInt(id))
	}

	docs, err := x.details.FetchAllDetails(ctx, "generation", ids)
	if err != nil {
		return Lookup{}, fmt.Errorf("fetch generations: %w", err)
	}

	m := make(map[int]int)
	skipped := 0
	for _, raw := range docs {
		var doc generationDocument
		if err := json.Unmarshal(raw, &doc); err != nil {
			return Lookup{}, fmt.Errorf("decode generation: %w", err)
		}
		for _, species := range doc.PokemonSpecies {
			speciesID, err := catalog.IDFromURL(species.URL)
			if err != nil {
				skipped++
				x.logger.Debug().
					Err(err).
					Int("generation", doc.ID).
					Str("species", species.Name).
					Msg("Skipping species with malformed URL")
				continue
			}
			m[speciesID] = doc.ID
		}
	}

	x.logger.Info().
		Int("generations", len(docs)).
		Int("species", len(m)).
		Int("skipped", skipped).
		Msg("Generation index built")

	return Lookup{m: m}, nil
}
