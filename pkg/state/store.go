// Package state holds the browse state: the loaded item list, active
// filters, sort order, page window, loading/error flags and the selected
// item. All mutation goes through Store setters, each of which notifies
// observers exactly once when something actually changed.
package state

import (
	"slices"
	"sync"

	"github.com/Sternrassler/pokeapi-browser/pkg/catalog"
	"github.com/Sternrassler/pokeapi-browser/pkg/filter"
	"github.com/Sternrassler/pokeapi-browser/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// DefaultItemsPerPage is the initial page size.
const DefaultItemsPerPage = 20

var changesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "pokeapi_state_changes_total",
	Help: "Total state store changes by kind",
}, []string{"kind"})

// Store is the application state holder. It is safe for concurrent use.
type Store struct {
	mu sync.RWMutex

	items        []catalog.Item
	filters      filter.Spec
	original     filter.StatRanges
	sort         filter.SortSpec
	pagination   Pagination
	loading      bool
	loaded       bool
	errMsg       string
	selected     *catalog.Item
	itemsPerPage int

	observers  map[int]Observer
	nextObsID  int
	observerMu sync.Mutex

	logger zerolog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithItemsPerPage sets the initial and reset page size.
func WithItemsPerPage(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.itemsPerPage = n
		}
	}
}

// WithLogger sets the store logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New creates a store in its default state.
func New(opts ...Option) *Store {
	s := &Store{
		itemsPerPage: DefaultItemsPerPage,
		observers:    make(map[int]Observer),
		logger:       logging.NewLogger(logging.ComponentState),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.resetLocked()
	return s
}

func (s *Store) resetLocked() {
	s.items = nil
	s.filters = filter.Spec{}
	s.original = filter.StatRanges{}
	s.sort = filter.DefaultSort()
	s.pagination = Pagination{CurrentPage: 1, ItemsPerPage: s.itemsPerPage}
	s.loading = false
	s.loaded = false
	s.errMsg = ""
	s.selected = nil
}

// Subscribe registers an observer and returns its unsubscribe func.
func (s *Store) Subscribe(fn Observer) (unsubscribe func()) {
	s.observerMu.Lock()
	id := s.nextObsID
	s.nextObsID++
	s.observers[id] = fn
	s.observerMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.observerMu.Lock()
			delete(s.observers, id)
			s.observerMu.Unlock()
		})
	}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{
		Items:              s.items,
		Filters:            s.filters.Clone(),
		OriginalStatRanges: s.original,
		Sort:               s.sort,
		Pagination:         s.pagination,
		Loading:            s.loading,
		Loaded:             s.loaded,
		Error:              s.errMsg,
	}
	if s.selected != nil {
		selected := *s.selected
		snap.Selected = &selected
	}
	return snap
}

// mutate runs fn under the write lock. When fn reports a change, observers
// are notified once, after the lock is released.
func (s *Store) mutate(kind ChangeKind, fn func() bool) bool {
	s.mu.Lock()
	if !fn() {
		s.mu.Unlock()
		return false
	}
	change := Change{Kind: kind, Snapshot: s.snapshotLocked()}
	s.mu.Unlock()

	changesTotal.WithLabelValues(kind.String()).Inc()
	s.logger.Debug().Str("kind", kind.String()).Msg("State changed")

	s.observerMu.Lock()
	ids := make([]int, 0, len(s.observers))
	for id := range s.observers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	observers := make([]Observer, 0, len(ids))
	for _, id := range ids {
		observers = append(observers, s.observers[id])
	}
	s.observerMu.Unlock()

	for _, fn := range observers {
		fn(change)
	}
	return true
}

// setFilters replaces the filters and resets the page when they differ.
func (s *Store) setFilters(next filter.Spec) bool {
	if s.filters.Equal(next) {
		return false
	}
	s.filters = next
	s.pagination.CurrentPage = 1
	return true
}

// SetSearch sets the name search term.
func (s *Store) SetSearch(search string) {
	s.mutate(FiltersChanged, func() bool {
		next := s.filters.Clone()
		next.Search = search
		return s.setFilters(next)
	})
}

// SetTypes sets the type filter.
func (s *Store) SetTypes(types []string) {
	s.mutate(FiltersChanged, func() bool {
		next := s.filters.Clone()
		next.Types = slices.Clone(types)
		return s.setFilters(next)
	})
}

// SetGenerations sets the generation filter.
func (s *Store) SetGenerations(generations []int) {
	s.mutate(FiltersChanged, func() bool {
		next := s.filters.Clone()
		next.Generations = slices.Clone(generations)
		return s.setFilters(next)
	})
}

// SetAbilities sets the ability filter.
func (s *Store) SetAbilities(abilities []string) {
	s.mutate(FiltersChanged, func() bool {
		next := s.filters.Clone()
		next.Abilities = slices.Clone(abilities)
		return s.setFilters(next)
	})
}

// SetStatRange sets the range of one stat. Out-of-range stats are ignored.
func (s *Store) SetStatRange(stat catalog.Stat, r filter.StatRange) {
	if stat < 0 || stat >= catalog.NumStats {
		return
	}
	s.mutate(FiltersChanged, func() bool {
		next := s.filters.Clone()
		next.Stats[stat] = r
		return s.setFilters(next)
	})
}

// SetStatRanges sets every stat range.
func (s *Store) SetStatRanges(ranges filter.StatRanges) {
	s.mutate(FiltersChanged, func() bool {
		next := s.filters.Clone()
		next.Stats = ranges
		return s.setFilters(next)
	})
}

// SetFilters replaces all filters.
func (s *Store) SetFilters(spec filter.Spec) {
	s.mutate(FiltersChanged, func() bool {
		return s.setFilters(spec.Clone())
	})
}

// ClearFilters empties every filter and restores stats to the ranges
// observed in the last loaded item list.
func (s *Store) ClearFilters() {
	s.mutate(FiltersChanged, func() bool {
		return s.setFilters(filter.Spec{Stats: s.original})
	})
}

// SetSort sets the sort order. Invalid fields or directions are ignored.
func (s *Store) SetSort(spec filter.SortSpec) {
	if !spec.Field.Valid() || !spec.Direction.Valid() {
		s.logger.Warn().
			Str("field", string(spec.Field)).
			Str("direction", string(spec.Direction)).
			Msg("Ignoring invalid sort")
		return
	}
	s.mutate(SortChanged, func() bool {
		if s.sort == spec {
			return false
		}
		s.sort = spec
		return true
	})
}

// SetCurrentPage sets the 1-based page. Values below 1 become 1.
func (s *Store) SetCurrentPage(page int) {
	page = max(page, 1)
	s.mutate(PaginationChanged, func() bool {
		if s.pagination.CurrentPage == page {
			return false
		}
		s.pagination.CurrentPage = page
		return true
	})
}

// SetItemsPerPage sets the page size. Non-positive values are ignored.
func (s *Store) SetItemsPerPage(n int) {
	if n <= 0 {
		return
	}
	s.mutate(PaginationChanged, func() bool {
		if s.pagination.ItemsPerPage == n {
			return false
		}
		s.pagination.ItemsPerPage = n
		return true
	})
}

// SetTotalItems records the total item count.
func (s *Store) SetTotalItems(n int) {
	n = max(n, 0)
	s.mutate(PaginationChanged, func() bool {
		if s.pagination.TotalItems == n {
			return false
		}
		s.pagination.TotalItems = n
		return true
	})
}

// SetLoading sets the loading flag.
func (s *Store) SetLoading(loading bool) {
	s.mutate(LoadingChanged, func() bool {
		if s.loading == loading {
			return false
		}
		s.loading = loading
		return true
	})
}

// SetError records a user-visible error. An empty message clears it.
func (s *Store) SetError(msg string) {
	s.mutate(ErrorChanged, func() bool {
		changed := s.errMsg != msg
		s.errMsg = msg
		if msg != "" && s.loading {
			s.loading = false
			changed = true
		}
		return changed
	})
}

// ReplaceItemList swaps in a new item list. The observed per-stat ranges
// become both the current stat filter and the ranges ClearFilters restores.
// The page resets to 1 and any error is cleared. A selected item is
// refreshed from the new list, or deselected when its id is gone.
func (s *Store) ReplaceItemList(items []catalog.Item) {
	s.mutate(ItemsReplaced, func() bool {
		s.items = slices.Clone(items)
		ranges := filter.Observed(s.items)

		s.filters.Stats = ranges
		s.original = ranges
		s.pagination.TotalItems = len(s.items)
		s.pagination.CurrentPage = 1
		s.errMsg = ""
		s.loading = false
		s.loaded = true

		if s.selected != nil {
			s.selected = s.findLocked(s.selected.ID)
		}
		return true
	})
}

func (s *Store) findLocked(id int) *catalog.Item {
	for i := range s.items {
		if s.items[i].ID == id {
			item := s.items[i]
			return &item
		}
	}
	return nil
}

// OpenModal selects the item with the given id from the current list.
// It returns false, changing nothing, when no such item is loaded.
func (s *Store) OpenModal(id int) bool {
	return s.mutate(ModalChanged, func() bool {
		item := s.findLocked(id)
		if item == nil {
			return false
		}
		if s.selected != nil && s.selected.ID == id {
			return false
		}
		s.selected = item
		return true
	}) || s.isSelected(id)
}

func (s *Store) isSelected(id int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected != nil && s.selected.ID == id
}

// CloseModal clears the selection.
func (s *Store) CloseModal() {
	s.mutate(ModalChanged, func() bool {
		if s.selected == nil {
			return false
		}
		s.selected = nil
		return true
	})
}

// ApplyQuery sets filters, sort and page window in one change. Invalid sort
// values and non-positive page fields keep their current values. The page
// is taken as given rather than reset by the filter change.
func (s *Store) ApplyQuery(q QueryState) {
	s.mutate(QueryApplied, func() bool {
		changed := false
		if !s.filters.Equal(q.Filters) {
			s.filters = q.Filters.Clone()
			changed = true
		}
		if q.Sort.Field.Valid() && q.Sort.Direction.Valid() && s.sort != q.Sort {
			s.sort = q.Sort
			changed = true
		}
		if q.Page > 0 && s.pagination.CurrentPage != q.Page {
			s.pagination.CurrentPage = q.Page
			changed = true
		}
		if q.ItemsPerPage > 0 && s.pagination.ItemsPerPage != q.ItemsPerPage {
			s.pagination.ItemsPerPage = q.ItemsPerPage
			changed = true
		}
		return changed
	})
}

// Reset returns the store to its initial state.
func (s *Store) Reset() {
	s.mutate(StateReset, func() bool {
		s.resetLocked()
		return true
	})
}
