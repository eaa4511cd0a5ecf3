//go:build integration

package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Sternrassler/pokeapi-browser/internal/testutil"
)

func setupTestRedis(t *testing.T) (string, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := redisC.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := redisC.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	cleanup := func() {
		redisC.Terminate(ctx)
	}

	return "redis://" + host + ":" + port.Port() + "/0", cleanup
}

func TestReadyEndpoint(t *testing.T) {
	redisURL, cleanup := setupTestRedis(t)
	defer cleanup()

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		t.Fatalf("Failed to parse Redis URL: %v", err)
	}
	redisClient := redis.NewClient(opts)

	handler := readyHandler(redisClient)

	t.Run("ready", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler(w, httptest.NewRequest("GET", "/ready", nil))

		body, _ := io.ReadAll(w.Result().Body)
		if w.Code != http.StatusOK {
			t.Errorf("Expected status 200, got %d", w.Code)
		}
		if string(body) != "OK" {
			t.Errorf("Expected body 'OK', got %s", string(body))
		}
	})

	t.Run("not_ready_redis_down", func(t *testing.T) {
		// Close Redis to simulate failure
		redisClient.Close()

		w := httptest.NewRecorder()
		handler(w, httptest.NewRequest("GET", "/ready", nil))

		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("Expected status 503, got %d", w.Code)
		}
	})
}

func TestSharedCacheAcrossApps(t *testing.T) {
	redisURL, cleanup := setupTestRedis(t)
	defer cleanup()

	mock := testutil.NewMockPokeAPI()
	defer mock.Close()
	mock.AddPokemon(testutil.GeneratePokemon(30)...)

	cfg := testConfig(t, mock)
	cfg.Cache.RedisURL = redisURL
	ctx := context.Background()

	first, err := newApp(cfg, nil)
	if err != nil {
		t.Fatalf("Failed to create first app: %v", err)
	}
	defer first.Close()

	if err := first.session.Load(ctx); err != nil {
		t.Fatalf("First load failed: %v", err)
	}
	requests := mock.GetRequestCount()
	if requests == 0 {
		t.Fatal("Expected upstream requests on first load")
	}

	// A second process shares the Redis layer and starts with an empty memory cache.
	second, err := newApp(cfg, nil)
	if err != nil {
		t.Fatalf("Failed to create second app: %v", err)
	}
	defer second.Close()

	if err := second.session.Load(ctx); err != nil {
		t.Fatalf("Second load failed: %v", err)
	}
	if got := mock.GetRequestCount(); got != requests {
		t.Errorf("Expected second load to be served from Redis, upstream requests went %d -> %d", requests, got)
	}

	view, err := second.session.View(ctx)
	if err != nil {
		t.Fatalf("View failed: %v", err)
	}
	if view.TotalItems != 30 {
		t.Errorf("Expected 30 items, got %d", view.TotalItems)
	}
}
