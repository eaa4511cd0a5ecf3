// Package client provides the resilient catalog fetcher: GET-only JSON
// requests with capped exponential backoff, response caching and upstream
// quota tracking.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/pokeapi-browser/pkg/cache"
	"github.com/Sternrassler/pokeapi-browser/pkg/logging"
	"github.com/Sternrassler/pokeapi-browser/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Prometheus metrics for catalog client operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pokeapi_requests_total",
		Help: "Total catalog requests by resource and status",
	}, []string{"resource", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pokeapi_request_duration_seconds",
		Help:    "Catalog request duration in seconds by resource",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10},
	}, []string{"resource"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pokeapi_errors_total",
		Help: "Total catalog errors by class",
	}, []string{"class"})

	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pokeapi_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	retryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pokeapi_retry_backoff_seconds",
		Help:    "Backoff duration for retries by error class",
		Buckets: []float64{0.5, 1, 2, 5, 10},
	}, []string{"error_class"})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pokeapi_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error class",
	}, []string{"error_class"})
)

// DefaultBaseURL is the public catalog API.
const DefaultBaseURL = "https://pokeapi.co/api/v2"

// Client is the catalog API client.
type Client struct {
	httpClient  *http.Client
	baseURL     *url.URL
	rateLimiter *ratelimit.Tracker
	cache       *cache.Manager
	config      Config
	logger      zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL of the catalog API, e.g. "https://pokeapi.co/api/v2"
	BaseURL string

	// Redis client shared by the response cache and quota tracker (optional)
	Redis *redis.Client

	// User-Agent header sent with every request
	UserAgent string

	// Timeout per HTTP attempt
	Timeout time.Duration

	// CacheTTL applies when a response carries no freshness headers
	CacheTTL time.Duration

	// Retry controls attempts and backoff
	Retry RetryPolicy
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(redis *redis.Client, userAgent string) Config {
	return Config{
		BaseURL:   DefaultBaseURL,
		Redis:     redis,
		UserAgent: userAgent,
		Timeout:   30 * time.Second,
		CacheTTL:  cache.DefaultTTL,
		Retry:     DefaultRetryPolicy(),
	}
}

// New creates a new catalog client.
func New(cfg Config) (*Client, error) {
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	baseURL, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/"))
	if err != nil || baseURL.Scheme == "" || baseURL.Host == "" {
		return nil, fmt.Errorf("base_url must be an absolute URL (got %q)", cfg.BaseURL)
	}

	if err := cfg.Retry.Validate(); err != nil {
		return nil, err
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	logger := logging.NewLogger(logging.ComponentClient)

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:     baseURL,
		rateLimiter: ratelimit.NewTracker(cfg.Redis, logger),
		cache:       cache.NewManager(cfg.Redis),
		config:      cfg,
		logger:      logger,
	}, nil
}

// resolve turns an endpoint into an absolute URL under the base URL.
// Absolute URLs (as found in list envelopes) are accepted when they share
// the base URL's host.
func (c *Client) resolve(endpoint string) (*url.URL, error) {
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		u, err := url.Parse(endpoint)
		if err != nil {
			return nil, fmt.Errorf("parse endpoint: %w", err)
		}
		if u.Host != c.baseURL.Host {
			return nil, fmt.Errorf("endpoint %q is outside %s", endpoint, c.baseURL.Host)
		}
		return u, nil
	}

	rel, err := url.Parse(strings.TrimPrefix(endpoint, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	u := *c.baseURL
	u.Path = c.baseURL.Path + "/" + rel.Path
	u.RawQuery = rel.RawQuery
	return &u, nil
}

// resourceOf returns the first path segment after the base path, used as a
// low-cardinality metrics label.
func (c *Client) resourceOf(u *url.URL) string {
	rest := strings.Trim(strings.TrimPrefix(u.Path, c.baseURL.Path), "/")
	resource, _, _ := strings.Cut(rest, "/")
	if resource == "" {
		return "root"
	}
	return resource
}

// GetJSON fetches endpoint and returns the raw JSON body. Fresh cache
// entries are served without a request; stale entries are revalidated.
// Failures are retried per the retry policy; the returned error wraps
// ErrRetryExhausted and the last *UpstreamError.
func (c *Client) GetJSON(ctx context.Context, endpoint string) (json.RawMessage, error) {
	reqURL, err := c.resolve(endpoint)
	if err != nil {
		return nil, err
	}
	resource := c.resourceOf(reqURL)

	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(resource).Observe(time.Since(startTime).Seconds())
	}()

	cacheKey := cache.CacheKey{
		Endpoint:    reqURL.Path,
		QueryParams: reqURL.Query(),
	}

	cachedEntry, err := c.cache.Get(ctx, cacheKey)
	if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
		c.logger.Warn().Err(err).Str("endpoint", reqURL.Path).Msg("Cache get error")
	}
	if cachedEntry != nil && !cachedEntry.IsExpired() {
		requestsTotal.WithLabelValues(resource, "cached").Inc()
		return cachedEntry.Data, nil
	}

	var body []byte
	err = c.config.Retry.Do(ctx, c.logger.With().Str("endpoint", reqURL.Path).Logger(), func(attempt int) error {
		data, err := c.attempt(ctx, reqURL, resource, cacheKey, cachedEntry)
		if err != nil {
			return err
		}
		body = data
		return nil
	})
	if err != nil {
		return nil, err
	}

	return body, nil
}

// attempt performs one HTTP round trip.
func (c *Client) attempt(ctx context.Context, reqURL *url.URL, resource string, cacheKey cache.CacheKey, cachedEntry *cache.CacheEntry) ([]byte, error) {
	endpoint := reqURL.Path

	allowed, err := c.rateLimiter.ShouldAllowRequest(ctx)
	if err != nil {
		return nil, &UpstreamError{ErrorClass: ErrorClassNetwork, Endpoint: endpoint, Message: "rate limit check", Err: err}
	}
	if !allowed {
		requestsTotal.WithLabelValues(resource, "rate_limited").Inc()
		errorsTotal.WithLabelValues(string(ErrorClassRateLimit)).Inc()
		return nil, &UpstreamError{
			StatusCode: http.StatusTooManyRequests,
			ErrorClass: ErrorClassRateLimit,
			Endpoint:   endpoint,
			Message:    "request blocked by quota tracker",
			Err:        ErrQuotaExhausted,
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, &UpstreamError{ErrorClass: ErrorClassNetwork, Endpoint: endpoint, Message: "create request", Err: err}
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	if cache.ShouldMakeConditionalRequest(cachedEntry) {
		cache.AddConditionalHeaders(req, cachedEntry)
		cache.ConditionalRequestsSent.Inc()
		c.logger.Debug().
			Str("endpoint", endpoint).
			Str("etag", cachedEntry.ETag).
			Msg("Making conditional request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("HTTP request failed")
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		requestsTotal.WithLabelValues(resource, "network_error").Inc()
		return nil, &UpstreamError{ErrorClass: ErrorClassNetwork, Endpoint: endpoint, Message: "transport failure", Err: err}
	}
	defer resp.Body.Close()

	if err := c.rateLimiter.UpdateFromHeaders(ctx, resp.Header); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to update rate limit from headers")
	}

	status := strconv.Itoa(resp.StatusCode)

	if resp.StatusCode == http.StatusNotModified && cachedEntry != nil {
		requestsTotal.WithLabelValues(resource, status).Inc()
		cache.NotModifiedResponses.Inc()
		c.logger.Debug().Str("endpoint", endpoint).Msg("304 Not Modified - using cache")

		newExpires := cache.ExpiresFromHeaders(resp.Header, c.config.CacheTTL)
		if err := c.cache.UpdateTTL(ctx, cacheKey, newExpires); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to update cache TTL")
		}
		return cachedEntry.Data, nil
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errClass := classifyStatus(resp.StatusCode)
		errorsTotal.WithLabelValues(string(errClass)).Inc()
		requestsTotal.WithLabelValues(resource, status).Inc()

		c.logger.Warn().
			Str("endpoint", endpoint).
			Int("status", resp.StatusCode).
			Str("error_class", string(errClass)).
			Msg("Catalog request error")

		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &UpstreamError{
			StatusCode: resp.StatusCode,
			ErrorClass: errClass,
			Endpoint:   endpoint,
			Message:    resp.Status,
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		return nil, &UpstreamError{StatusCode: resp.StatusCode, ErrorClass: ErrorClassNetwork, Endpoint: endpoint, Message: "read body", Err: err}
	}
	requestsTotal.WithLabelValues(resource, status).Inc()

	entry := cache.NewEntry(resp, body, c.config.CacheTTL)
	if err := c.cache.Set(ctx, cacheKey, entry); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to cache response")
	} else {
		c.logger.Debug().
			Str("endpoint", endpoint).
			Dur("ttl", entry.TTL()).
			Msg("Cached response")
	}

	return body, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// SetSleeper replaces the retry sleep (for testing).
func (c *Client) SetSleeper(sleep Sleeper) {
	c.config.Retry.Sleep = sleep
	c.rateLimiter.SetSleeper(sleep)
}

// GetCache returns the cache manager (for testing).
func (c *Client) GetCache() *cache.Manager {
	return c.cache
}

// RateLimiter returns the quota tracker.
func (c *Client) RateLimiter() *ratelimit.Tracker {
	return c.rateLimiter
}
