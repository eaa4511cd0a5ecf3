package ratelimit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Prometheus metrics for quota tracking.
var (
	quotaRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pokeapi_rate_limit_remaining",
		Help: "Requests remaining in the current upstream rate limit window",
	})

	rateLimitBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pokeapi_rate_limit_blocks_total",
		Help: "Total number of requests blocked due to an exhausted quota",
	})

	rateLimitThrottlesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pokeapi_rate_limit_throttles_total",
		Help: "Total number of requests throttled due to a low quota",
	})
)

// Response headers read by the tracker.
const (
	HeaderRemaining  = "X-RateLimit-Remaining"
	HeaderReset      = "X-RateLimit-Reset"
	HeaderRetryAfter = "Retry-After"
)

// DefaultThrottleDelay is the pause applied to each request in the warning band.
const DefaultThrottleDelay = 1 * time.Second

// Tracker monitors the upstream quota and gates requests. With a Redis client
// the state is shared across processes, otherwise it is kept in memory.
type Tracker struct {
	redis         *redis.Client
	logger        zerolog.Logger
	throttleDelay time.Duration
	sleep         func(ctx context.Context, d time.Duration) error

	mu    sync.Mutex
	local *RateLimitState
}

// NewTracker creates a new rate limit tracker. redisClient may be nil.
func NewTracker(redisClient *redis.Client, logger zerolog.Logger) *Tracker {
	return &Tracker{
		redis:         redisClient,
		logger:        logger,
		throttleDelay: DefaultThrottleDelay,
		sleep:         sleepContext,
	}
}

// SetSleeper replaces the throttling sleep (for testing).
func (t *Tracker) SetSleeper(fn func(ctx context.Context, d time.Duration) error) {
	t.sleep = fn
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// GetState retrieves the current quota state.
// Returns a default healthy state if nothing has been recorded yet.
func (t *Tracker) GetState(ctx context.Context) (*RateLimitState, error) {
	if t.redis == nil {
		t.mu.Lock()
		defer t.mu.Unlock()
		if t.local == nil {
			return DefaultState(), nil
		}
		copied := *t.local
		return &copied, nil
	}

	remaining, err := t.redis.Get(ctx, RedisKeyRemaining).Int()
	if err == redis.Nil {
		t.logger.Debug().Msg("No rate limit state in Redis, returning default healthy state")
		return DefaultState(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("get remaining: %w", err)
	}

	resetTimestamp, err := t.redis.Get(ctx, RedisKeyResetTimestamp).Int64()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("get reset timestamp: %w", err)
	}

	lastUpdateStr, err := t.redis.Get(ctx, RedisKeyLastUpdate).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("get last update: %w", err)
	}

	var lastUpdate time.Time
	if lastUpdateStr != "" {
		if err := json.Unmarshal([]byte(lastUpdateStr), &lastUpdate); err != nil {
			return nil, fmt.Errorf("parse last update: %w", err)
		}
	}

	state := &RateLimitState{
		Remaining:  remaining,
		ResetAt:    time.Unix(resetTimestamp, 0),
		LastUpdate: lastUpdate,
	}
	state.UpdateHealth()

	return state, nil
}

// parseRetryAfter accepts both Retry-After forms: delay seconds or an
// HTTP-date. Dates in the past reset immediately.
func parseRetryAfter(value string, now time.Time) (time.Time, error) {
	if seconds, err := strconv.Atoi(value); err == nil {
		return now.Add(time.Duration(seconds) * time.Second), nil
	}
	at, err := http.ParseTime(value)
	if err != nil {
		return time.Time{}, err
	}
	if at.Before(now) {
		return now, nil
	}
	return at, nil
}

// UpdateFromHeaders parses quota headers and records the new state.
// Responses without quota headers leave the state untouched.
func (t *Tracker) UpdateFromHeaders(ctx context.Context, headers http.Header) error {
	now := time.Now()
	state := &RateLimitState{LastUpdate: now}

	if retryAfter := headers.Get(HeaderRetryAfter); retryAfter != "" {
		resetAt, err := parseRetryAfter(retryAfter, now)
		if err != nil {
			return fmt.Errorf("parse %s header: %w", HeaderRetryAfter, err)
		}
		state.Remaining = 0
		state.ResetAt = resetAt
	} else {
		remainStr := headers.Get(HeaderRemaining)
		if remainStr == "" {
			return nil
		}

		remain, err := strconv.Atoi(remainStr)
		if err != nil {
			return fmt.Errorf("parse %s header: %w", HeaderRemaining, err)
		}

		resetStr := headers.Get(HeaderReset)
		if resetStr == "" {
			return fmt.Errorf("%s header missing", HeaderReset)
		}

		resetSeconds, err := strconv.Atoi(resetStr)
		if err != nil {
			return fmt.Errorf("parse %s header: %w", HeaderReset, err)
		}

		state.Remaining = remain
		state.ResetAt = now.Add(time.Duration(resetSeconds) * time.Second)
	}
	state.UpdateHealth()

	if err := t.store(ctx, state); err != nil {
		return err
	}

	quotaRemaining.Set(float64(state.Remaining))

	switch {
	case state.NeedsCriticalBlock():
		t.logger.Error().
			Int("remaining", state.Remaining).
			Time("reset_at", state.ResetAt).
			Msg("Upstream quota CRITICAL - requests will be blocked")
	case state.NeedsThrottling():
		t.logger.Warn().
			Int("remaining", state.Remaining).
			Time("reset_at", state.ResetAt).
			Msg("Upstream quota WARNING - requests will be throttled")
	default:
		t.logger.Debug().
			Int("remaining", state.Remaining).
			Time("reset_at", state.ResetAt).
			Bool("is_healthy", state.IsHealthy).
			Msg("Upstream quota state updated")
	}

	return nil
}

func (t *Tracker) store(ctx context.Context, state *RateLimitState) error {
	if t.redis == nil {
		t.mu.Lock()
		t.local = state
		t.mu.Unlock()
		return nil
	}

	lastUpdateJSON, err := json.Marshal(state.LastUpdate)
	if err != nil {
		return fmt.Errorf("marshal last update: %w", err)
	}

	pipe := t.redis.Pipeline()
	pipe.Set(ctx, RedisKeyRemaining, state.Remaining, 0)
	pipe.Set(ctx, RedisKeyResetTimestamp, state.ResetAt.Unix(), 0)
	pipe.Set(ctx, RedisKeyLastUpdate, lastUpdateJSON, 0)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store rate limit state in redis: %w", err)
	}
	return nil
}

// ShouldAllowRequest checks if a request should be allowed.
// Returns false while the quota is exhausted and the window has not reset.
// In the warning band it sleeps for the throttle delay before allowing.
func (t *Tracker) ShouldAllowRequest(ctx context.Context) (bool, error) {
	state, err := t.GetState(ctx)
	if err != nil {
		return false, fmt.Errorf("get rate limit state: %w", err)
	}

	if state.NeedsCriticalBlock() {
		t.logger.Error().
			Int("remaining", state.Remaining).
			Dur("wait_duration", state.TimeUntilReset()).
			Msg("Upstream quota critical - blocking request")

		rateLimitBlocksTotal.Inc()
		return false, nil
	}

	if state.NeedsThrottling() {
		t.logger.Warn().
			Int("remaining", state.Remaining).
			Msg("Upstream quota low - throttling request")

		rateLimitThrottlesTotal.Inc()
		if err := t.sleep(ctx, t.throttleDelay); err != nil {
			return false, err
		}
	}

	return true, nil
}
