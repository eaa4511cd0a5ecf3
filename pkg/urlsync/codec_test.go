package urlsync

import (
	"net/url"
	"testing"

	"github.com/Sternrassler/pokeapi-browser/pkg/catalog"
	"github.com/Sternrassler/pokeapi-browser/pkg/filter"
	"github.com/Sternrassler/pokeapi-browser/pkg/state"
	"github.com/stretchr/testify/assert"
)

func defaultPagination() state.Pagination {
	return state.Pagination{CurrentPage: 1, ItemsPerPage: state.DefaultItemsPerPage}
}

func TestToSearchParams_DefaultIsEmpty(t *testing.T) {
	values := ToSearchParams(filter.Spec{}, filter.DefaultSort(), defaultPagination())
	assert.Empty(t, values)
	assert.Equal(t, "", Encode(values))

	// Zero-valued sort and page size are defaults too
	assert.Empty(t, ToSearchParams(filter.Spec{Types: []string{}}, filter.SortSpec{}, state.Pagination{}))
}

func TestToSearchParams(t *testing.T) {
	filters := filter.Spec{
		Search:      "saur",
		Types:       []string{"grass", "poison"},
		Generations: []int{1, 3},
		Abilities:   []string{"overgrow"},
		Stats: filter.StatRanges{
			catalog.StatHP:    {Min: 80, Max: 120},
			catalog.StatSpeed: {Min: 0, Max: 50},
		},
	}
	sortSpec := filter.SortSpec{Field: filter.SortByStat(catalog.StatAttack), Direction: filter.Descending}
	pagination := state.Pagination{CurrentPage: 3, ItemsPerPage: 50, TotalItems: 900}

	values := ToSearchParams(filters, sortSpec, pagination)

	assert.Equal(t, url.Values{
		ParamSearch:        {"saur"},
		ParamTypes:         {"grass,poison"},
		ParamGenerations:   {"1,3"},
		ParamAbilities:     {"overgrow"},
		ParamStats:         {"hp:80-120,speed:0-50"},
		ParamSortField:     {"attack"},
		ParamSortDirection: {"desc"},
		ParamPage:          {"3"},
		ParamItemsPerPage:  {"50"},
	}, values)

	assert.Equal(t,
		"abilities=overgrow&generations=1,3&itemsPerPage=50&page=3&search=saur&sortDirection=desc&sortField=attack&stats=hp:80-120,speed:0-50&types=grass,poison",
		Encode(values))
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name       string
		filters    filter.Spec
		sort       filter.SortSpec
		pagination state.Pagination
	}{
		{
			name:       "search only",
			filters:    filter.Spec{Search: "mr. mime & co"},
			sort:       filter.DefaultSort(),
			pagination: defaultPagination(),
		},
		{
			name:       "name asc keeps default direction",
			filters:    filter.Spec{Types: []string{"fire"}},
			sort:       filter.SortSpec{Field: filter.SortByName, Direction: filter.Ascending},
			pagination: state.Pagination{CurrentPage: 2, ItemsPerPage: state.DefaultItemsPerPage},
		},
		{
			name: "everything",
			filters: filter.Spec{
				Search:      "a",
				Types:       []string{"water", "ice"},
				Generations: []int{2, 4},
				Abilities:   []string{"swift-swim"},
				Stats: filter.StatRanges{
					catalog.StatSpecialAttack:  {Min: 100, Max: 255},
					catalog.StatSpecialDefense: {Min: 0, Max: 10},
				},
			},
			sort:       filter.SortSpec{Field: filter.SortByID, Direction: filter.Descending},
			pagination: state.Pagination{CurrentPage: 7, ItemsPerPage: 100},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded := Encode(ToSearchParams(tt.filters, tt.sort, tt.pagination))
			got := FromSearchParams(ParseQuery(encoded))

			assert.True(t, tt.filters.Equal(got.Filters), "filters: want %+v, got %+v", tt.filters, got.Filters)
			assert.Equal(t, tt.sort, got.Sort)
			assert.Equal(t, tt.pagination.CurrentPage, got.Page)
			assert.Equal(t, tt.pagination.ItemsPerPage, got.ItemsPerPage)
		})
	}
}

func TestFromSearchParams_Defaults(t *testing.T) {
	got := FromSearchParams(url.Values{})

	assert.Equal(t, Params{
		Sort:         filter.DefaultSort(),
		Page:         1,
		ItemsPerPage: state.DefaultItemsPerPage,
	}, got)
}

func TestFromSearchParams_Malformed(t *testing.T) {
	got := FromSearchParams(ParseQuery(
		"?types=fire,,fire, water&generations=1,x,-2,3,1&stats=hp:80-120,speed:90,bogus:1-2,attack:9-3,defense:a-b,special-attack:0-300,special-defense:10-20" +
			"&sortField=weight&sortDirection=sideways&page=0&itemsPerPage=-5"))

	assert.Equal(t, []string{"fire", "water"}, got.Filters.Types)
	assert.Equal(t, []int{1, 3}, got.Filters.Generations)
	assert.Equal(t, filter.StatRanges{
		catalog.StatHP:             {Min: 80, Max: 120},
		catalog.StatSpecialDefense: {Min: 10, Max: 20},
	}, got.Filters.Stats)
	assert.Equal(t, filter.DefaultSort(), got.Sort)
	assert.Equal(t, 1, got.Page)
	assert.Equal(t, state.DefaultItemsPerPage, got.ItemsPerPage)
}

func TestFromSearchParams_PartialSort(t *testing.T) {
	got := FromSearchParams(ParseQuery("sortDirection=desc"))
	assert.Equal(t, filter.SortSpec{Field: filter.SortByID, Direction: filter.Descending}, got.Sort)
}

func TestParseQuery_TolerantOfGarbage(t *testing.T) {
	values := ParseQuery("search=%zz&page=2")
	assert.Equal(t, "2", values.Get(ParamPage))

	assert.NotNil(t, ParseQuery(""))
}

func TestCodec_CustomPageSize(t *testing.T) {
	codec := Codec{ItemsPerPage: 50}

	values := codec.ToSearchParams(filter.Spec{}, filter.DefaultSort(), state.Pagination{CurrentPage: 1, ItemsPerPage: 50})
	assert.Empty(t, values)

	assert.Equal(t, 50, codec.FromSearchParams(url.Values{}).ItemsPerPage)
}

func TestRelativeAndMergeStats(t *testing.T) {
	observed := filter.StatRanges{catalog.StatHP: {Min: 1, Max: 255}, catalog.StatSpeed: {Min: 5, Max: 200}}
	current := filter.StatRanges{catalog.StatHP: {Min: 80, Max: 120}, catalog.StatSpeed: {Min: 5, Max: 200}}

	rel := RelativeStats(current, observed)
	assert.Equal(t, filter.StatRanges{catalog.StatHP: {Min: 80, Max: 120}}, rel)

	assert.Equal(t, current, MergeStats(observed, rel))
}
