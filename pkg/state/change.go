package state

import (
	"github.com/Sternrassler/pokeapi-browser/pkg/catalog"
	"github.com/Sternrassler/pokeapi-browser/pkg/filter"
)

// ChangeKind identifies which part of the state a mutation touched.
type ChangeKind int

const (
	FiltersChanged ChangeKind = iota
	SortChanged
	PaginationChanged
	ItemsReplaced
	LoadingChanged
	ErrorChanged
	ModalChanged
	QueryApplied
	StateReset
)

var changeKindNames = map[ChangeKind]string{
	FiltersChanged:    "filters",
	SortChanged:       "sort",
	PaginationChanged: "pagination",
	ItemsReplaced:     "items",
	LoadingChanged:    "loading",
	ErrorChanged:      "error",
	ModalChanged:      "modal",
	QueryApplied:      "query",
	StateReset:        "reset",
}

func (k ChangeKind) String() string {
	if name, ok := changeKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// AffectsQuery reports whether the change can alter the serialized query.
func (k ChangeKind) AffectsQuery() bool {
	switch k {
	case FiltersChanged, SortChanged, PaginationChanged, ItemsReplaced, QueryApplied, StateReset:
		return true
	}
	return false
}

// Pagination is the visible page window.
type Pagination struct {
	CurrentPage  int `json:"current_page"`
	ItemsPerPage int `json:"items_per_page"`
	TotalItems   int `json:"total_items"`
}

// QueryState is the URL-representable part of the state.
type QueryState struct {
	Filters      filter.Spec
	Sort         filter.SortSpec
	Page         int
	ItemsPerPage int
}

// Snapshot is a read-only copy of the store. Items is shared with the
// store and must not be modified.
type Snapshot struct {
	Items              []catalog.Item
	Filters            filter.Spec
	OriginalStatRanges filter.StatRanges
	Sort               filter.SortSpec
	Pagination         Pagination
	Loading            bool
	Loaded             bool
	Error              string
	Selected           *catalog.Item
}

// Query returns the URL-representable part of the snapshot.
func (s Snapshot) Query() QueryState {
	return QueryState{
		Filters:      s.Filters.Clone(),
		Sort:         s.Sort,
		Page:         s.Pagination.CurrentPage,
		ItemsPerPage: s.Pagination.ItemsPerPage,
	}
}

// Change is emitted once per effective mutation.
type Change struct {
	Kind     ChangeKind
	Snapshot Snapshot
}

// Observer receives changes. It runs outside the store lock and may call
// back into the store.
type Observer func(Change)
