package filter

import (
	"testing"

	"github.com/Sternrassler/pokeapi-browser/pkg/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixtures() []catalog.Item {
	return []catalog.Item{
		{ID: 1, Name: "Bulbasaur", Types: []string{"grass", "poison"}, Abilities: []string{"overgrow"}, Stats: catalog.StatValues{45, 49, 49, 65, 65, 45}},
		{ID: 4, Name: "charmander", Types: []string{"fire"}, Abilities: []string{"blaze"}, Stats: catalog.StatValues{39, 52, 43, 60, 50, 65}},
		{ID: 7, Name: "squirtle", Types: []string{"water"}, Abilities: []string{"torrent"}, Stats: catalog.StatValues{44, 48, 65, 50, 64, 43}},
		{ID: 25, Name: "Pikachu", Types: []string{"electric"}, Abilities: []string{"static"}, Stats: catalog.StatValues{35, 55, 40, 50, 50, 90}},
		{ID: 152, Name: "chikorita", Types: []string{"grass"}, Abilities: []string{"overgrow"}, Stats: catalog.StatValues{45, 49, 65, 49, 65, 45}},
	}
}

func ids(items []catalog.Item) []int {
	out := make([]int, len(items))
	for i, item := range items {
		out[i] = item.ID
	}
	return out
}

func gen1(id int) (int, bool) {
	switch {
	case id <= 151:
		return 1, true
	case id <= 251:
		return 2, true
	}
	return 0, false
}

func TestApply(t *testing.T) {
	tests := []struct {
		name string
		spec Spec
		want []int
	}{
		{"empty spec is identity", Spec{}, []int{1, 4, 7, 25, 152}},
		{"search is case-insensitive substring", Spec{Search: "CHAR"}, []int{4}},
		{"search matches capitalised names", Spec{Search: "pika"}, []int{25}},
		{"types or within category", Spec{Types: []string{"fire", "water"}}, []int{4, 7}},
		{"types and abilities anded", Spec{Types: []string{"grass"}, Abilities: []string{"blaze"}}, []int{}},
		{"abilities", Spec{Abilities: []string{"overgrow"}}, []int{1, 152}},
		{"generations", Spec{Generations: []int{2}}, []int{152}},
		{"generations or", Spec{Generations: []int{1, 2}}, []int{1, 4, 7, 25, 152}},
		{"stat range inclusive", Spec{Stats: StatRanges{catalog.StatSpeed: {Min: 45, Max: 65}}}, []int{1, 4, 152}},
		{"two stat ranges", Spec{Stats: StatRanges{catalog.StatHP: {Min: 40, Max: 50}, catalog.StatDefense: {Min: 60, Max: 70}}}, []int{7, 152}},
		{"search plus stat", Spec{Search: "a", Stats: StatRanges{catalog.StatSpeed: {Min: 90, Max: 255}}}, []int{25}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Apply(fixtures(), tt.spec, gen1)
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestApply_EmptySetsAreIdentity(t *testing.T) {
	items := fixtures()
	got := Apply(items, Spec{Types: []string{}, Abilities: nil, Generations: []int{}}, nil)
	assert.Equal(t, items, got)
}

func TestApply_UnresolvedGenerationExcluded(t *testing.T) {
	items := append(fixtures(), catalog.Item{ID: 10001, Name: "deoxys-attack"})

	got := Apply(items, Spec{Generations: []int{1}}, gen1)
	assert.Equal(t, []int{1, 4, 7, 25}, ids(got))

	// Without a resolver, any generation filter excludes everything.
	assert.Empty(t, Apply(items, Spec{Generations: []int{1}}, nil))
}

func TestApply_DoesNotMutate(t *testing.T) {
	items := fixtures()
	before := fixtures()
	_ = Apply(items, Spec{Search: "a"}, nil)
	assert.Equal(t, before, items)
}

func TestSort(t *testing.T) {
	tests := []struct {
		name string
		spec SortSpec
		want []int
	}{
		{"default id asc", DefaultSort(), []int{1, 4, 7, 25, 152}},
		{"id desc", SortSpec{SortByID, Descending}, []int{152, 25, 7, 4, 1}},
		{"name asc ignores case", SortSpec{SortByName, Ascending}, []int{1, 4, 152, 25, 7}},
		{"name desc", SortSpec{SortByName, Descending}, []int{7, 25, 152, 4, 1}},
		{"speed asc stable on ties", SortSpec{SortByStat(catalog.StatSpeed), Ascending}, []int{7, 1, 152, 4, 25}},
		{"speed desc stable on ties", SortSpec{SortByStat(catalog.StatSpeed), Descending}, []int{25, 4, 1, 152, 7}},
		{"unknown field keeps order", SortSpec{"weight", Ascending}, []int{1, 4, 7, 25, 152}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(Sort(fixtures(), tt.spec)))
		})
	}
}

func TestSort_IdempotentAndNonMutating(t *testing.T) {
	items := fixtures()
	for _, field := range []SortField{SortByID, SortByName, SortByStat(catalog.StatHP), SortByStat(catalog.StatSpecialDefense)} {
		for _, dir := range []Direction{Ascending, Descending} {
			spec := SortSpec{field, dir}
			once := Sort(items, spec)
			assert.Equal(t, once, Sort(once, spec), "%s %s", field, dir)
		}
	}
	assert.Equal(t, fixtures(), items)
}

func TestPaginate(t *testing.T) {
	items := fixtures()

	page, total := Paginate(items, 1, 2)
	assert.Equal(t, []int{1, 4}, ids(page))
	assert.Equal(t, 3, total)

	page, _ = Paginate(items, 3, 2)
	assert.Equal(t, []int{152}, ids(page))

	page, total = Paginate(items, 9, 2)
	assert.Empty(t, page)
	assert.Equal(t, 3, total)

	page, total = Paginate(nil, 1, 20)
	assert.Empty(t, page)
	assert.Equal(t, 1, total)

	page, total = Paginate(items, 0, 0)
	assert.Len(t, page, 5)
	assert.Equal(t, 1, total)
}

func TestObserved(t *testing.T) {
	ranges := Observed(fixtures())
	assert.Equal(t, StatRange{Min: 35, Max: 45}, ranges[catalog.StatHP])
	assert.Equal(t, StatRange{Min: 43, Max: 90}, ranges[catalog.StatSpeed])

	assert.True(t, Observed(nil).IsUnconstrained())
}

func TestStatRange(t *testing.T) {
	require.True(t, StatRange{}.IsUnconstrained())
	assert.True(t, StatRange{}.Contains(255))
	assert.False(t, StatRange{Min: 0, Max: 10}.IsUnconstrained())
	assert.True(t, StatRange{Min: 0, Max: 10}.Contains(0))
	assert.False(t, StatRange{Min: 80, Max: 120}.Contains(121))
	assert.Equal(t, "80-120", StatRange{Min: 80, Max: 120}.String())
}

func TestSpec_EqualAndClone(t *testing.T) {
	a := Spec{Search: "x", Types: []string{"fire"}}
	b := a.Clone()
	assert.True(t, a.Equal(b))

	b.Types[0] = "water"
	assert.Equal(t, "fire", a.Types[0])
	assert.False(t, a.Equal(b))

	assert.True(t, Spec{Types: []string{}}.Equal(Spec{}))
}

func TestSortField_Valid(t *testing.T) {
	assert.True(t, SortByID.Valid())
	assert.True(t, SortByName.Valid())
	assert.True(t, SortField("special-attack").Valid())
	assert.False(t, SortField("weight").Valid())
	assert.True(t, Descending.Valid())
	assert.False(t, Direction("up").Valid())
}
