package filter

import (
	"slices"
	"strings"

	"github.com/Sternrassler/pokeapi-browser/pkg/catalog"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// GenerationFunc resolves the generation of an item id.
type GenerationFunc func(id int) (gen int, ok bool)

// Apply returns the items matching spec, in input order. Categories are
// ANDed; values within a category are ORed. generationOf may be nil when
// spec has no generation filter; an unresolved generation fails a non-empty
// generation filter.
func Apply(items []catalog.Item, spec Spec, generationOf GenerationFunc) []catalog.Item {
	search := strings.ToLower(spec.Search)

	out := make([]catalog.Item, 0, len(items))
	for _, item := range items {
		if search != "" && !strings.Contains(strings.ToLower(item.Name), search) {
			continue
		}
		if len(spec.Types) > 0 && !item.HasAnyType(spec.Types) {
			continue
		}
		if len(spec.Abilities) > 0 && !item.HasAnyAbility(spec.Abilities) {
			continue
		}
		if len(spec.Generations) > 0 {
			if generationOf == nil {
				continue
			}
			gen, ok := generationOf(item.ID)
			if !ok || !slices.Contains(spec.Generations, gen) {
				continue
			}
		}
		if !statsMatch(item.Stats, spec.Stats) {
			continue
		}
		out = append(out, item)
	}
	return out
}

func statsMatch(values catalog.StatValues, ranges StatRanges) bool {
	for stat, r := range ranges {
		if !r.Contains(values[stat]) {
			return false
		}
	}
	return true
}

// Sort returns a stably sorted copy of items. Names compare with English
// collation, ignoring case.
func Sort(items []catalog.Item, spec SortSpec) []catalog.Item {
	out := slices.Clone(items)

	var cmp func(a, b catalog.Item) int
	switch spec.Field {
	case SortByName:
		collator := collate.New(language.English, collate.IgnoreCase)
		cmp = func(a, b catalog.Item) int {
			return collator.CompareString(a.Name, b.Name)
		}
	case SortByID, "":
		cmp = func(a, b catalog.Item) int {
			return a.ID - b.ID
		}
	default:
		stat, ok := catalog.ParseStat(string(spec.Field))
		if !ok {
			return out
		}
		cmp = func(a, b catalog.Item) int {
			return a.Stats[stat] - b.Stats[stat]
		}
	}

	if spec.Direction == Descending {
		asc := cmp
		cmp = func(a, b catalog.Item) int {
			return -asc(a, b)
		}
	}

	slices.SortStableFunc(out, cmp)
	return out
}

// Paginate returns the 1-based page of items and the total page count.
// Pages past the end are empty; there is always at least one page.
func Paginate(items []catalog.Item, page, perPage int) ([]catalog.Item, int) {
	if perPage <= 0 {
		perPage = len(items)
		if perPage == 0 {
			perPage = 1
		}
	}
	totalPages := max(1, (len(items)+perPage-1)/perPage)
	if page < 1 {
		page = 1
	}

	start := (page - 1) * perPage
	if start >= len(items) {
		return []catalog.Item{}, totalPages
	}
	end := min(start+perPage, len(items))
	return slices.Clone(items[start:end]), totalPages
}
