package cache

import (
	"net/url"
	"testing"
)

func TestCacheKey_String(t *testing.T) {
	tests := []struct {
		name string
		key  CacheKey
		want string
	}{
		{
			name: "detail endpoint no params",
			key: CacheKey{
				Endpoint: "/api/v2/pokemon/25/",
			},
			want: "pokeapi:api/v2/pokemon/25",
		},
		{
			name: "list endpoint with query params (sorted)",
			key: CacheKey{
				Endpoint: "/api/v2/pokemon",
				QueryParams: url.Values{
					"offset": []string{"100"},
					"limit":  []string{"50"},
				},
			},
			want: "pokeapi:api/v2/pokemon:limit=50:offset=100",
		},
		{
			name: "multi-valued query param",
			key: CacheKey{
				Endpoint: "/api/v2/item",
				QueryParams: url.Values{
					"tag": []string{"a", "b"},
				},
			},
			want: "pokeapi:api/v2/item:tag=a,b",
		},
		{
			name: "empty endpoint",
			key:  CacheKey{},
			want: "pokeapi",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.key.String()
			if got != tt.want {
				t.Errorf("CacheKey.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestCacheKey_Determinism ensures same input always produces same key
func TestCacheKey_Determinism(t *testing.T) {
	key := CacheKey{
		Endpoint: "/api/v2/pokemon",
		QueryParams: url.Values{
			"limit":  []string{"50"},
			"offset": []string{"0"},
			"extra":  []string{"x"},
		},
	}

	first := key.String()
	for i := 0; i < 10; i++ {
		if result := key.String(); result != first {
			t.Errorf("result[%d] = %v, want %v (not deterministic)", i, result, first)
		}
	}
}
