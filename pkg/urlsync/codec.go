// Package urlsync mirrors browse state into a query string and applies
// query strings back onto the state store without feedback loops.
package urlsync

import (
	"fmt"
	"net/url"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/Sternrassler/pokeapi-browser/pkg/catalog"
	"github.com/Sternrassler/pokeapi-browser/pkg/filter"
	"github.com/Sternrassler/pokeapi-browser/pkg/state"
)

// Query parameter names.
const (
	ParamSearch        = "search"
	ParamTypes         = "types"
	ParamGenerations   = "generations"
	ParamAbilities     = "abilities"
	ParamStats         = "stats"
	ParamSortField     = "sortField"
	ParamSortDirection = "sortDirection"
	ParamPage          = "page"
	ParamItemsPerPage  = "itemsPerPage"
)

// Params is the decoded form of a query string.
type Params struct {
	Filters      filter.Spec
	Sort         filter.SortSpec
	Page         int
	ItemsPerPage int
}

// QueryState converts p for state.Store.ApplyQuery.
func (p Params) QueryState() state.QueryState {
	return state.QueryState{
		Filters:      p.Filters,
		Sort:         p.Sort,
		Page:         p.Page,
		ItemsPerPage: p.ItemsPerPage,
	}
}

// Codec converts between state and query parameters. ItemsPerPage is the
// page size that is omitted from the query.
type Codec struct {
	ItemsPerPage int
}

// DefaultCodec uses the store's default page size.
var DefaultCodec = Codec{ItemsPerPage: state.DefaultItemsPerPage}

// ToSearchParams encodes with DefaultCodec.
func ToSearchParams(filters filter.Spec, sortSpec filter.SortSpec, pagination state.Pagination) url.Values {
	return DefaultCodec.ToSearchParams(filters, sortSpec, pagination)
}

// FromSearchParams decodes with DefaultCodec.
func FromSearchParams(values url.Values) Params {
	return DefaultCodec.FromSearchParams(values)
}

func (c Codec) itemsPerPage() int {
	if c.ItemsPerPage > 0 {
		return c.ItemsPerPage
	}
	return state.DefaultItemsPerPage
}

// ToSearchParams encodes the non-default parts of the state. The default
// state yields an empty map.
func (c Codec) ToSearchParams(filters filter.Spec, sortSpec filter.SortSpec, pagination state.Pagination) url.Values {
	values := url.Values{}

	if filters.Search != "" {
		values.Set(ParamSearch, filters.Search)
	}
	if len(filters.Types) > 0 {
		values.Set(ParamTypes, strings.Join(filters.Types, ","))
	}
	if len(filters.Generations) > 0 {
		gens := make([]string, len(filters.Generations))
		for i, g := range filters.Generations {
			gens[i] = strconv.Itoa(g)
		}
		values.Set(ParamGenerations, strings.Join(gens, ","))
	}
	if len(filters.Abilities) > 0 {
		values.Set(ParamAbilities, strings.Join(filters.Abilities, ","))
	}

	var stats []string
	for stat, r := range filters.Stats {
		if r.IsUnconstrained() {
			continue
		}
		stats = append(stats, fmt.Sprintf("%s:%d-%d", catalog.Stat(stat), r.Min, r.Max))
	}
	if len(stats) > 0 {
		values.Set(ParamStats, strings.Join(stats, ","))
	}

	def := filter.DefaultSort()
	if sortSpec.Field != "" && sortSpec.Field != def.Field {
		values.Set(ParamSortField, string(sortSpec.Field))
	}
	if sortSpec.Direction != "" && sortSpec.Direction != def.Direction {
		values.Set(ParamSortDirection, string(sortSpec.Direction))
	}

	if pagination.CurrentPage > 1 {
		values.Set(ParamPage, strconv.Itoa(pagination.CurrentPage))
	}
	if pagination.ItemsPerPage > 0 && pagination.ItemsPerPage != c.itemsPerPage() {
		values.Set(ParamItemsPerPage, strconv.Itoa(pagination.ItemsPerPage))
	}

	return values
}

// FromSearchParams decodes values. It never fails: each missing or
// malformed field falls back to its default, and malformed list or stat
// tokens are dropped.
func (c Codec) FromSearchParams(values url.Values) Params {
	p := Params{
		Sort:         filter.DefaultSort(),
		Page:         1,
		ItemsPerPage: c.itemsPerPage(),
	}

	p.Filters.Search = values.Get(ParamSearch)
	p.Filters.Types = splitList(values.Get(ParamTypes))
	p.Filters.Abilities = splitList(values.Get(ParamAbilities))

	for _, token := range splitList(values.Get(ParamGenerations)) {
		g, err := strconv.Atoi(token)
		if err != nil || g <= 0 || slices.Contains(p.Filters.Generations, g) {
			continue
		}
		p.Filters.Generations = append(p.Filters.Generations, g)
	}

	p.Filters.Stats = parseStats(values.Get(ParamStats))

	if field := filter.SortField(values.Get(ParamSortField)); field.Valid() {
		p.Sort.Field = field
	}
	if dir := filter.Direction(values.Get(ParamSortDirection)); dir.Valid() {
		p.Sort.Direction = dir
	}

	if page, err := strconv.Atoi(values.Get(ParamPage)); err == nil && page >= 1 {
		p.Page = page
	}
	if n, err := strconv.Atoi(values.Get(ParamItemsPerPage)); err == nil && n > 0 {
		p.ItemsPerPage = n
	}

	return p
}

// splitList splits a comma list, dropping blanks and duplicates.
func splitList(raw string) []string {
	var out []string
	for _, token := range strings.Split(raw, ",") {
		token = strings.TrimSpace(token)
		if token == "" || slices.Contains(out, token) {
			continue
		}
		out = append(out, token)
	}
	return out
}

// parseStats parses "name:min-max" tokens. Unknown names, non-numeric or
// inverted bounds and values outside 0-255 are dropped.
func parseStats(raw string) filter.StatRanges {
	var ranges filter.StatRanges
	for _, token := range splitList(raw) {
		name, bounds, ok := strings.Cut(token, ":")
		if !ok {
			continue
		}
		stat, ok := catalog.ParseStat(name)
		if !ok {
			continue
		}
		lo, hi, ok := strings.Cut(bounds, "-")
		if !ok {
			continue
		}
		minV, errMin := strconv.Atoi(lo)
		maxV, errMax := strconv.Atoi(hi)
		if errMin != nil || errMax != nil || minV < 0 || maxV > 255 || minV > maxV {
			continue
		}
		ranges[stat] = filter.StatRange{Min: minV, Max: maxV}
	}
	return ranges
}

// Encode renders values as a query string with sorted keys. Commas and
// colons are left unescaped.
func Encode(values url.Values) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		for _, v := range values[k] {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(k))
			b.WriteByte('=')
			b.WriteString(escapeValue(v))
		}
	}
	return b.String()
}

var valueUnescaper = strings.NewReplacer("%2C", ",", "%3A", ":")

func escapeValue(v string) string {
	return valueUnescaper.Replace(url.QueryEscape(v))
}

// ParseQuery parses a raw query string, with or without a leading '?'.
// Malformed pairs are skipped.
func ParseQuery(raw string) url.Values {
	values, _ := url.ParseQuery(strings.TrimPrefix(raw, "?"))
	if values == nil {
		values = url.Values{}
	}
	return values
}

// RelativeStats returns current with every range equal to its observed
// counterpart replaced by the sentinel.
func RelativeStats(current, observed filter.StatRanges) filter.StatRanges {
	out := current
	for i := range out {
		if out[i] == observed[i] {
			out[i] = filter.StatRange{}
		}
	}
	return out
}

// MergeStats overlays the constrained ranges of override onto base.
func MergeStats(base, override filter.StatRanges) filter.StatRanges {
	out := base
	for i, r := range override {
		if !r.IsUnconstrained() {
			out[i] = r
		}
	}
	return out
}

// CanonicalQuery is the query string for a snapshot. Stats equal to the
// observed ranges count as unconstrained.
func (c Codec) CanonicalQuery(snap state.Snapshot) string {
	filters := snap.Filters
	filters.Stats = RelativeStats(filters.Stats, snap.OriginalStatRanges)
	return Encode(c.ToSearchParams(filters, snap.Sort, snap.Pagination))
}
