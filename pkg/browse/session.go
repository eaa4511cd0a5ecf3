// Package browse ties the catalog client, the batch scheduler, the
// generation index, the state store and URL synchronization into one
// browsing session.
package browse

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/pokeapi-browser/pkg/catalog"
	"github.com/Sternrassler/pokeapi-browser/pkg/filter"
	"github.com/Sternrassler/pokeapi-browser/pkg/generation"
	"github.com/Sternrassler/pokeapi-browser/pkg/logging"
	"github.com/Sternrassler/pokeapi-browser/pkg/pagination"
	"github.com/Sternrassler/pokeapi-browser/pkg/state"
	"github.com/Sternrassler/pokeapi-browser/pkg/urlsync"
)

// Resource is the catalog resource a session browses.
const Resource = "pokemon"

// DefaultLimit is the number of species loaded when Config.Limit is unset.
const DefaultLimit = 151

// ErrNotLoaded is returned by Select for ids that are not in the loaded list.
var ErrNotLoaded = errors.New("item not loaded")

// Config configures a Session.
type Config struct {
	// Limit caps how many list entries are resolved. Zero means DefaultLimit.
	Limit int

	// ListPageSize is the page size used while walking the list.
	ListPageSize int

	// ItemsPerPage is the default page window.
	ItemsPerPage int

	// Batch configures the detail scheduler.
	Batch pagination.Config
}

// DefaultConfig returns the default session configuration.
func DefaultConfig() Config {
	return Config{
		Limit:        DefaultLimit,
		ListPageSize: pagination.DefaultPageSize,
		ItemsPerPage: state.DefaultItemsPerPage,
		Batch:        pagination.DefaultConfig(),
	}
}

// PageView is one rendered page of the filtered and sorted catalog.
type PageView struct {
	Items        []catalog.Item  `json:"items"`
	Page         int             `json:"page"`
	ItemsPerPage int             `json:"items_per_page"`
	TotalItems   int             `json:"total_items"`
	TotalPages   int             `json:"total_pages"`
	Query        string          `json:"query"`
	Filters      filter.Spec     `json:"filters"`
	Sort         filter.SortSpec `json:"sort"`
	Loading      bool            `json:"loading"`
	Error        string          `json:"error,omitempty"`
	Selected     *catalog.Item   `json:"selected,omitempty"`
}

// Session is a single browsing session. It is safe for concurrent use.
type Session struct {
	walker    *pagination.ListWalker
	scheduler *pagination.Scheduler
	index     *generation.Index
	store     *state.Store
	sync      *urlsync.Synchronizer
	limit     int

	loadMu sync.Mutex
	logger zerolog.Logger

	// indexErr is the store error last written by a failed index build.
	errMu    sync.Mutex
	indexErr string
}

// New creates a session reading from fetcher. location receives query
// strings as the state changes and may be nil.
func New(fetcher pagination.DetailFetcher, cfg Config, location urlsync.Location) (*Session, error) {
	if fetcher == nil {
		return nil, errors.New("fetcher is required")
	}
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultLimit
	}
	if cfg.ItemsPerPage <= 0 {
		cfg.ItemsPerPage = state.DefaultItemsPerPage
	}

	scheduler, err := pagination.NewScheduler(fetcher, cfg.Batch)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	walker := pagination.NewListWalker(fetcher)
	if cfg.ListPageSize > 0 {
		walker.PageSize = cfg.ListPageSize
	}

	store := state.New(state.WithItemsPerPage(cfg.ItemsPerPage))
	codec := urlsync.Codec{ItemsPerPage: cfg.ItemsPerPage}

	return &Session{
		walker:    walker,
		scheduler: scheduler,
		index:     generation.NewIndex(fetcher, scheduler),
		store:     store,
		sync:      urlsync.New(store, location, urlsync.WithCodec(codec)),
		limit:     cfg.Limit,
		logger:    logging.NewLogger(logging.ComponentSession),
	}, nil
}

// Store returns the session's state store.
func (s *Session) Store() *state.Store {
	return s.store
}

// Scheduler returns the session's batch scheduler.
func (s *Session) Scheduler() *pagination.Scheduler {
	return s.scheduler
}

// Close detaches URL synchronization from the store.
func (s *Session) Close() {
	s.sync.Close()
}

// Load walks the species list and resolves every detail document. Errors
// are recorded in the store and returned. Concurrent calls are serialized.
func (s *Session) Load(ctx context.Context) error {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	s.store.SetLoading(true)

	ids, err := s.walker.Names(ctx, Resource, s.limit)
	if err != nil {
		return s.fail(fmt.Errorf("failed to list %s: %w", Resource, err))
	}

	items, err := catalog.FetchItems(ctx, s.scheduler, ids)
	if err != nil {
		return s.fail(fmt.Errorf("failed to load %s details: %w", Resource, err))
	}

	s.store.ReplaceItemList(items)
	s.logger.Info().Int("items", len(items)).Msg("Catalog loaded")
	return nil
}

func (s *Session) fail(err error) error {
	s.store.SetError(err.Error())
	s.logger.Error().Err(err).Msg("Catalog load failed")
	return err
}

// Reload drops the generation index and loads the catalog again.
func (s *Session) Reload(ctx context.Context) error {
	s.index.Invalidate()
	return s.Load(ctx)
}

// Navigate applies a query string to the session state. It reports whether
// anything was applied.
func (s *Session) Navigate(rawQuery string) bool {
	return s.sync.Navigate(rawQuery)
}

// Query returns the canonical query string of the current state.
func (s *Session) Query() string {
	return s.sync.Query()
}

// View filters, sorts and paginates the loaded items. The generation index
// is only built when a generation filter is active. The filtered count is
// written back to the store as the total item count.
func (s *Session) View(ctx context.Context) (PageView, error) {
	snap := s.store.Snapshot()

	var generationOf filter.GenerationFunc
	if len(snap.Filters.Generations) > 0 {
		lookup, err := s.index.Lookup(ctx)
		if err != nil {
			err = fmt.Errorf("failed to build generation index: %w", err)
			s.errMu.Lock()
			s.indexErr = err.Error()
			s.errMu.Unlock()
			s.store.SetError(err.Error())
			return PageView{}, err
		}
		generationOf = lookup.GenerationOf
	}
	snap = s.clearIndexError(snap)

	filtered := filter.Apply(snap.Items, snap.Filters, generationOf)
	sorted := filter.Sort(filtered, snap.Sort)
	page, totalPages := filter.Paginate(sorted, snap.Pagination.CurrentPage, snap.Pagination.ItemsPerPage)

	if snap.Loaded {
		s.store.SetTotalItems(len(filtered))
	}

	return PageView{
		Items:        page,
		Page:         snap.Pagination.CurrentPage,
		ItemsPerPage: snap.Pagination.ItemsPerPage,
		TotalItems:   len(filtered),
		TotalPages:   totalPages,
		Query:        s.sync.Query(),
		Filters:      snap.Filters,
		Sort:         snap.Sort,
		Loading:      snap.Loading,
		Error:        snap.Error,
		Selected:     snap.Selected,
	}, nil
}

// clearIndexError drops a store error left by an earlier failed index build.
// Load errors are kept until the next successful load.
func (s *Session) clearIndexError(snap state.Snapshot) state.Snapshot {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.indexErr == "" {
		return snap
	}
	stale := s.indexErr
	s.indexErr = ""
	if snap.Error != stale {
		return snap
	}
	s.store.SetError("")
	snap.Error = ""
	return snap
}

// Select opens the detail view for a loaded item.
func (s *Session) Select(id int) (catalog.Item, error) {
	if !s.store.OpenModal(id) {
		return catalog.Item{}, fmt.Errorf("%w: %d", ErrNotLoaded, id)
	}
	selected := s.store.Snapshot().Selected
	if selected == nil || selected.ID != id {
		return catalog.Item{}, fmt.Errorf("%w: %d", ErrNotLoaded, id)
	}
	return *selected, nil
}

// Deselect closes the detail view.
func (s *Session) Deselect() {
	s.store.CloseModal()
}
