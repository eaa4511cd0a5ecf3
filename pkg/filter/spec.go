// Package filter implements the browse filter, sort and page slicing over
// catalog items. Every function is pure: inputs are never mutated.
package filter

import (
	"fmt"
	"slices"

	"github.com/Sternrassler/pokeapi-browser/pkg/catalog"
)

// StatRange is an inclusive [Min, Max] bound on one stat. The zero value
// {0, 0} means unconstrained.
type StatRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// IsUnconstrained reports whether r is the {0, 0} sentinel.
func (r StatRange) IsUnconstrained() bool {
	return r.Min == 0 && r.Max == 0
}

// Contains reports whether v lies in r. Unconstrained ranges contain everything.
func (r StatRange) Contains(v int) bool {
	return r.IsUnconstrained() || (v >= r.Min && v <= r.Max)
}

func (r StatRange) String() string {
	return fmt.Sprintf("%d-%d", r.Min, r.Max)
}

// StatRanges holds one range per stat.
type StatRanges [catalog.NumStats]StatRange

// IsUnconstrained reports whether every range is the sentinel.
func (s StatRanges) IsUnconstrained() bool {
	for _, r := range s {
		if !r.IsUnconstrained() {
			return false
		}
	}
	return true
}

// Observed returns the per-stat [min, max] over items. With no items every
// range is the sentinel.
func Observed(items []catalog.Item) StatRanges {
	var out StatRanges
	for i, item := range items {
		for stat, v := range item.Stats {
			if i == 0 {
				out[stat] = StatRange{Min: v, Max: v}
				continue
			}
			out[stat].Min = min(out[stat].Min, v)
			out[stat].Max = max(out[stat].Max, v)
		}
	}
	return out
}

// Spec is the set of active filters.
type Spec struct {
	Search      string     `json:"search"`
	Types       []string   `json:"types"`
	Generations []int      `json:"generations"`
	Abilities   []string   `json:"abilities"`
	Stats       StatRanges `json:"stats"`
}

// Clone returns a deep copy of s.
func (s Spec) Clone() Spec {
	s.Types = slices.Clone(s.Types)
	s.Generations = slices.Clone(s.Generations)
	s.Abilities = slices.Clone(s.Abilities)
	return s
}

// Equal reports whether two specs filter identically. Nil and empty sets are equal.
func (s Spec) Equal(o Spec) bool {
	return s.Search == o.Search &&
		equalSet(s.Types, o.Types) &&
		equalSet(s.Generations, o.Generations) &&
		equalSet(s.Abilities, o.Abilities) &&
		s.Stats == o.Stats
}

func equalSet[T comparable](a, b []T) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	return slices.Equal(a, b)
}

// SortField names the attribute items are ordered by.
type SortField string

const (
	SortByID   SortField = "id"
	SortByName SortField = "name"
)

// SortByStat returns the sort field for a stat.
func SortByStat(stat catalog.Stat) SortField {
	return SortField(stat.String())
}

// Valid reports whether f is id, name or a known stat.
func (f SortField) Valid() bool {
	if f == SortByID || f == SortByName {
		return true
	}
	_, ok := catalog.ParseStat(string(f))
	return ok
}

// Direction is the sort order.
type Direction string

const (
	Ascending  Direction = "asc"
	Descending Direction = "desc"
)

// Valid reports whether d is asc or desc.
func (d Direction) Valid() bool {
	return d == Ascending || d == Descending
}

// SortSpec selects the field and direction.
type SortSpec struct {
	Field     SortField `json:"field"`
	Direction Direction `json:"direction"`
}

// DefaultSort orders by id ascending.
func DefaultSort() SortSpec {
	return SortSpec{Field: SortByID, Direction: Ascending}
}
