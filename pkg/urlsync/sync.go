package urlsync

import (
	"strings"
	"sync"

	"github.com/Sternrassler/pokeapi-browser/pkg/filter"
	"github.com/Sternrassler/pokeapi-browser/pkg/logging"
	"github.com/Sternrassler/pokeapi-browser/pkg/state"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var (
	urlWritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pokeapi_url_writes_total",
		Help: "Total state-to-URL writes by result",
	}, []string{"result"})

	navigationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pokeapi_url_navigations_total",
		Help: "Total URL-to-state navigations by result",
	}, []string{"result"})
)

// Synchronizer keeps a state.Store and a Location in step.
//
// State changes are written to the Location only when the canonical query
// differs from the last observed one. Navigate applies an external query to
// the store; the changes it causes are not written back.
type Synchronizer struct {
	store    *state.Store
	location Location
	codec    Codec
	logger   zerolog.Logger

	mu           sync.Mutex
	lastQuery    string
	applying     bool
	pendingStats *filter.StatRanges

	unsubscribe func()
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithCodec sets the codec, e.g. for a non-default page size.
func WithCodec(c Codec) Option {
	return func(s *Synchronizer) {
		s.codec = c
	}
}

// WithInitialQuery sets the query the location currently shows.
func WithInitialQuery(query string) Option {
	return func(s *Synchronizer) {
		s.lastQuery = strings.TrimPrefix(query, "?")
	}
}

// New subscribes a synchronizer to store. location may be nil, in which
// case queries are only tracked.
func New(store *state.Store, location Location, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		store:    store,
		location: location,
		codec:    DefaultCodec,
		logger:   logging.NewLogger(logging.ComponentURLSync),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.unsubscribe = store.Subscribe(s.onChange)
	return s
}

// Close stops observing the store.
func (s *Synchronizer) Close() {
	s.unsubscribe()
}

// Query returns the last observed canonical query.
func (s *Synchronizer) Query() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastQuery
}

// Navigate applies an external query to the store. It returns false when
// rawQuery equals the last observed query. Stat bounds are merged over the
// observed ranges once items are loaded; before that they are held back
// until the first item list arrives.
func (s *Synchronizer) Navigate(rawQuery string) bool {
	rawQuery = strings.TrimPrefix(rawQuery, "?")

	s.mu.Lock()
	if rawQuery == s.lastQuery {
		s.mu.Unlock()
		navigationsTotal.WithLabelValues("unchanged").Inc()
		return false
	}

	params := s.codec.FromSearchParams(ParseQuery(rawQuery))
	snap := s.store.Snapshot()
	if snap.Loaded {
		params.Filters.Stats = MergeStats(snap.OriginalStatRanges, params.Filters.Stats)
		s.pendingStats = nil
	} else {
		if params.Filters.Stats.IsUnconstrained() {
			s.pendingStats = nil
		} else {
			pending := params.Filters.Stats
			s.pendingStats = &pending
		}
		params.Filters.Stats = snap.Filters.Stats
	}
	s.applying = true
	s.mu.Unlock()

	s.store.ApplyQuery(params.QueryState())

	// An item list may have arrived while applying; its change was
	// suppressed, so held stat bounds are merged here instead.
	s.mu.Lock()
	var merged *filter.StatRanges
	if s.pendingStats != nil {
		if snap := s.store.Snapshot(); snap.Loaded {
			m := MergeStats(snap.OriginalStatRanges, *s.pendingStats)
			merged = &m
			s.pendingStats = nil
		}
	}
	s.mu.Unlock()
	if merged != nil {
		s.store.SetStatRanges(*merged)
	}

	s.mu.Lock()
	s.applying = false
	applied := s.store.Snapshot()
	deferred := s.pendingStats != nil
	if deferred {
		applied.Filters.Stats = MergeStats(applied.Filters.Stats, *s.pendingStats)
	}
	s.lastQuery = s.codec.CanonicalQuery(applied)
	s.mu.Unlock()

	navigationsTotal.WithLabelValues("applied").Inc()
	s.logger.Debug().
		Str("query", rawQuery).
		Bool("stats_deferred", deferred).
		Msg("Applied navigation")
	return true
}

// onChange mirrors query-affecting changes into the location.
func (s *Synchronizer) onChange(c state.Change) {
	if !c.Kind.AffectsQuery() {
		return
	}

	s.mu.Lock()
	if s.applying {
		s.mu.Unlock()
		return
	}

	snap := c.Snapshot
	if c.Kind == state.ItemsReplaced && s.pendingStats != nil {
		merged := MergeStats(c.Snapshot.OriginalStatRanges, *s.pendingStats)
		s.pendingStats = nil
		s.applying = true
		s.mu.Unlock()

		s.store.SetStatRanges(merged)
		s.logger.Debug().Msg("Applied deferred stat bounds")

		s.mu.Lock()
		s.applying = false
		snap = s.store.Snapshot()
	}
	query := s.codec.CanonicalQuery(snap)
	if query == s.lastQuery {
		s.mu.Unlock()
		urlWritesTotal.WithLabelValues("unchanged").Inc()
		return
	}
	s.lastQuery = query
	s.mu.Unlock()

	// Pushed outside the lock: a location may navigate back synchronously.
	if s.location == nil {
		return
	}
	if err := s.location.Push(query); err != nil {
		urlWritesTotal.WithLabelValues("error").Inc()
		s.logger.Warn().Err(err).Str("query", query).Msg("Failed to write query to location")
		return
	}
	urlWritesTotal.WithLabelValues("written").Inc()
}
