package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDFromURL(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    int
		wantErr bool
	}{
		{"trailing slash", "https://pokeapi.co/api/v2/pokemon-species/25/", 25, false},
		{"no trailing slash", "https://pokeapi.co/api/v2/generation/3", 3, false},
		{"relative", "/pokemon/151/", 151, false},
		{"name instead of id", "https://pokeapi.co/api/v2/pokemon/pikachu/", 0, true},
		{"zero", "https://pokeapi.co/api/v2/pokemon/0/", 0, true},
		{"negative", "https://pokeapi.co/api/v2/pokemon/-4/", 0, true},
		{"empty", "", 0, true},
		{"bad escape", "https://pokeapi.co/%zz", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := IDFromURL(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrParse))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

type stubFetcher struct {
	resource string
	ids      []Identifier
	docs     []json.RawMessage
	err      error
}

func (s *stubFetcher) FetchAllDetails(_ context.Context, resource string, ids []Identifier) ([]json.RawMessage, error) {
	s.resource = resource
	s.ids = ids
	return s.docs, s.err
}

func TestFetchItems(t *testing.T) {
	fetcher := &stubFetcher{docs: []json.RawMessage{json.RawMessage(bulbasaur)}}

	items, err := FetchItems(context.Background(), fetcher, []Identifier{IDFromInt(1)})
	require.NoError(t, err)
	assert.Equal(t, "pokemon", fetcher.resource)
	assert.Equal(t, []Identifier{"1"}, fetcher.ids)
	require.Len(t, items, 1)
	assert.Equal(t, "bulbasaur", items[0].Name)

	fetcher.err = errors.New("boom")
	_, err = FetchItems(context.Background(), fetcher, nil)
	assert.EqualError(t, err, "boom")
}
