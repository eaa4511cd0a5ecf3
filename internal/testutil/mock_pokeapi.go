// Package testutil provides testing utilities for the catalog client.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// APIPrefix is the path under which the mock serves the catalog.
const APIPrefix = "/api/v2"

// MockResponse defines the behavior for a mock endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// Pokemon is a fixture served by /pokemon/{id}.
type Pokemon struct {
	ID        int
	Name      string
	Types     []string
	Abilities []string
	// Stats in hp, attack, defense, special-attack, special-defense, speed order.
	Stats [6]int
}

var statNames = [6]string{"hp", "attack", "defense", "special-attack", "special-defense", "speed"}

// Generation is a fixture served by /generation/{id}.
type Generation struct {
	ID   int
	Name string
	// SpeciesIDs are rendered as pokemon-species URLs.
	SpeciesIDs []int
	// RawSpeciesURLs are appended verbatim, for malformed-URL cases.
	RawSpeciesURLs []string
}

// MockPokeAPI is a configurable mock catalog server for testing.
type MockPokeAPI struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)
	failures map[string][]int

	pokemon     map[int]Pokemon
	generations map[int]Generation

	// Tracking
	RequestCount      int
	ConditionalCount  int
	LastRequestHeader http.Header
	PathCounts        map[string]int
}

// NewMockPokeAPI creates a new mock catalog server.
func NewMockPokeAPI() *MockPokeAPI {
	mock := &MockPokeAPI{
		handlers:    make(map[string]func(w http.ResponseWriter, r *http.Request)),
		failures:    make(map[string][]int),
		pokemon:     make(map[int]Pokemon),
		generations: make(map[int]Generation),
		PathCounts:  make(map[string]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimSuffix(r.URL.Path, "/")

		mock.mu.Lock()
		mock.RequestCount++
		mock.PathCounts[path]++
		mock.LastRequestHeader = r.Header.Clone()

		if r.Header.Get("If-None-Match") != "" || r.Header.Get("If-Modified-Since") != "" {
			mock.ConditionalCount++
		}

		var failStatus int
		if queue := mock.failures[path]; len(queue) > 0 {
			failStatus = queue[0]
			mock.failures[path] = queue[1:]
		}
		handler, exists := mock.handlers[path]
		mock.mu.Unlock()

		if failStatus != 0 {
			w.WriteHeader(failStatus)
			fmt.Fprintf(w, `{"error": %q}`, http.StatusText(failStatus))
			return
		}

		if exists {
			handler(w, r)
			return
		}

		mock.defaultHandler(w, r, path)
	}))

	return mock
}

// URL returns the mock server root URL.
func (m *MockPokeAPI) URL() string {
	return m.server.URL
}

// BaseURL returns the catalog base URL (root + /api/v2).
func (m *MockPokeAPI) BaseURL() string {
	return m.server.URL + APIPrefix
}

// Close shuts down the mock server.
func (m *MockPokeAPI) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockPokeAPI) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.ConditionalCount = 0
	m.LastRequestHeader = nil
	m.PathCounts = make(map[string]int)
}

// SetHandler sets a custom handler for a path relative to the API prefix,
// e.g. "/pokemon/1".
func (m *MockPokeAPI) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[APIPrefix+strings.TrimSuffix(path, "/")] = handler
}

// SetResponse configures a fixed response for a path relative to the API prefix.
func (m *MockPokeAPI) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}

		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}

		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// FailNext makes the next len(statuses) requests to path answer with the
// given statuses before normal handling resumes.
func (m *MockPokeAPI) FailNext(path string, statuses ...int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := APIPrefix + strings.TrimSuffix(path, "/")
	m.failures[key] = append(m.failures[key], statuses...)
}

// AddPokemon registers fixtures served by the default handler.
func (m *MockPokeAPI) AddPokemon(pokemon ...Pokemon) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range pokemon {
		m.pokemon[p.ID] = p
	}
}

// AddGeneration registers a generation fixture.
func (m *MockPokeAPI) AddGeneration(gen Generation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generations[gen.ID] = gen
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockPokeAPI) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetConditionalCount returns the number of conditional requests.
func (m *MockPokeAPI) GetConditionalCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ConditionalCount
}

// GetLastRequestHeader returns the headers of the most recent request.
func (m *MockPokeAPI) GetLastRequestHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.LastRequestHeader
}

// GetPathCount returns the number of requests for a path relative to the API prefix.
func (m *MockPokeAPI) GetPathCount(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.PathCounts[APIPrefix+strings.TrimSuffix(path, "/")]
}

// defaultHandler serves registered fixtures with PokeAPI-shaped documents.
func (m *MockPokeAPI) defaultHandler(w http.ResponseWriter, r *http.Request, path string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")

	rest, ok := strings.CutPrefix(path, APIPrefix+"/")
	if !ok {
		http.NotFound(w, r)
		return
	}
	resource, key, hasKey := strings.Cut(rest, "/")

	var doc any
	m.mu.RLock()
	switch {
	case resource == "pokemon" && !hasKey:
		ids := make([]int, 0, len(m.pokemon))
		names := make(map[int]string, len(m.pokemon))
		for id, p := range m.pokemon {
			ids = append(ids, id)
			names[id] = p.Name
		}
		doc = m.envelope(r, "pokemon", ids, names)
	case resource == "pokemon":
		p, found := m.findPokemon(key)
		if found {
			doc = pokemonDoc(p)
		}
	case resource == "generation" && !hasKey:
		ids := make([]int, 0, len(m.generations))
		names := make(map[int]string, len(m.generations))
		for id, g := range m.generations {
			ids = append(ids, id)
			names[id] = g.Name
		}
		doc = m.envelope(r, "generation", ids, names)
	case resource == "generation":
		id, err := strconv.Atoi(key)
		if g, found := m.generations[id]; err == nil && found {
			doc = m.generationDoc(g)
		}
	}
	m.mu.RUnlock()

	if doc == nil {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error": "Not found"}`))
		return
	}

	if r.Header.Get("If-None-Match") == `"fixture-etag"` {
		w.Header().Set("Cache-Control", "max-age=300")
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("ETag", `"fixture-etag"`)
	w.Header().Set("Cache-Control", "max-age=300")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(doc)
}

func (m *MockPokeAPI) findPokemon(key string) (Pokemon, bool) {
	if id, err := strconv.Atoi(key); err == nil {
		p, ok := m.pokemon[id]
		return p, ok
	}
	for _, p := range m.pokemon {
		if p.Name == key {
			return p, true
		}
	}
	return Pokemon{}, false
}

func (m *MockPokeAPI) envelope(r *http.Request, resource string, ids []int, names map[int]string) map[string]any {
	sort.Ints(ids)

	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = 20
	}
	offset, err := strconv.Atoi(r.URL.Query().Get("offset"))
	if err != nil || offset < 0 {
		offset = 0
	}

	results := []map[string]string{}
	for i := offset; i < len(ids) && i < offset+limit; i++ {
		results = append(results, map[string]string{
			"name": names[ids[i]],
			"url":  fmt.Sprintf("%s/%s/%d/", m.BaseURL(), resource, ids[i]),
		})
	}

	var next, previous any
	if offset+limit < len(ids) {
		next = fmt.Sprintf("%s/%s?offset=%d&limit=%d", m.BaseURL(), resource, offset+limit, limit)
	}
	if offset > 0 {
		previous = fmt.Sprintf("%s/%s?offset=%d&limit=%d", m.BaseURL(), resource, max(offset-limit, 0), limit)
	}

	return map[string]any{
		"count":    len(ids),
		"next":     next,
		"previous": previous,
		"results":  results,
	}
}

func pokemonDoc(p Pokemon) map[string]any {
	types := make([]map[string]any, 0, len(p.Types))
	for i, t := range p.Types {
		types = append(types, map[string]any{
			"slot": i + 1,
			"type": map[string]string{"name": t, "url": ""},
		})
	}
	abilities := make([]map[string]any, 0, len(p.Abilities))
	for i, a := range p.Abilities {
		abilities = append(abilities, map[string]any{
			"slot":      i + 1,
			"is_hidden": false,
			"ability":   map[string]string{"name": a, "url": ""},
		})
	}
	stats := make([]map[string]any, 0, len(statNames))
	for i, name := range statNames {
		stats = append(stats, map[string]any{
			"base_stat": p.Stats[i],
			"effort":    0,
			"stat":      map[string]string{"name": name, "url": ""},
		})
	}
	return map[string]any{
		"id":        p.ID,
		"name":      p.Name,
		"types":     types,
		"abilities": abilities,
		"stats":     stats,
	}
}

func (m *MockPokeAPI) generationDoc(g Generation) map[string]any {
	species := make([]map[string]string, 0, len(g.SpeciesIDs)+len(g.RawSpeciesURLs))
	for _, id := range g.SpeciesIDs {
		species = append(species, map[string]string{
			"name": fmt.Sprintf("species-%d", id),
			"url":  fmt.Sprintf("%s/pokemon-species/%d/", m.BaseURL(), id),
		})
	}
	for _, raw := range g.RawSpeciesURLs {
		species = append(species, map[string]string{"name": "malformed", "url": raw})
	}
	return map[string]any{
		"id":              g.ID,
		"name":            g.Name,
		"pokemon_species": species,
	}
}

// NewHealthyResponse creates a standard 200 OK response.
func NewHealthyResponse(data string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       data,
		Headers: map[string]string{
			"ETag":          `"test-etag-123"`,
			"Cache-Control": "max-age=300",
			"Content-Type":  "application/json; charset=utf-8",
		},
	}
}

// NewNotModifiedResponse creates a 304 Not Modified response.
func NewNotModifiedResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusNotModified,
		Headers: map[string]string{
			"Cache-Control": "max-age=300",
		},
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"error": "Rate limit exceeded"}`,
		Headers: map[string]string{
			"Retry-After":  "30",
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "Internal server error"}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewNotFoundResponse creates a 404 Not Found response.
func NewNotFoundResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusNotFound,
		Body:       `{"error": "Not found"}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewConditionalHandler creates a handler that responds with 304 for conditional requests.
func NewConditionalHandler(etag string, data string) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")

		if r.Header.Get("If-None-Match") == etag {
			w.Header().Set("Expires", time.Now().Add(5*time.Minute).Format(http.TimeFormat))
			w.WriteHeader(http.StatusNotModified)
			return
		}

		w.Header().Set("ETag", etag)
		w.Header().Set("Expires", time.Now().Add(5*time.Minute).Format(http.TimeFormat))
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(data))
	}
}

// GeneratePokemon returns n fixtures with ids 1..n. Types alternate between
// grass and fire, and stats grow with the id (hp = id, speed = 2*id, capped at 255).
func GeneratePokemon(n int) []Pokemon {
	out := make([]Pokemon, 0, n)
	for id := 1; id <= n; id++ {
		typ := "grass"
		if id%2 == 0 {
			typ = "fire"
		}
		out = append(out, Pokemon{
			ID:        id,
			Name:      fmt.Sprintf("mon-%03d", id),
			Types:     []string{typ},
			Abilities: []string{"overgrow"},
			Stats:     [6]int{min(id, 255), 50, 50, 50, 50, min(2*id, 255)},
		})
	}
	return out
}
