// Package ratelimit tracks the upstream request quota and gates requests.
// It reads the X-RateLimit-Remaining / X-RateLimit-Reset headers and the
// Retry-After header of 429 responses so a batch load backs off before the
// catalog API starts refusing requests.
package ratelimit

import (
	"time"
)

// Redis keys for quota state shared between processes.
const (
	RedisKeyRemaining      = "pokeapi:rate_limit:remaining"
	RedisKeyResetTimestamp = "pokeapi:rate_limit:reset_timestamp"
	RedisKeyLastUpdate     = "pokeapi:rate_limit:last_update"
)

// Thresholds for rate limit decisions, in requests remaining.
const (
	// RemainingThresholdCritical blocks requests when remaining falls below this value.
	RemainingThresholdCritical = 5

	// RemainingThresholdWarning throttles requests when remaining falls below this value.
	RemainingThresholdWarning = 20

	// RemainingThresholdHealthy indicates normal operation.
	RemainingThresholdHealthy = 50
)

// RateLimitState represents the current upstream quota.
type RateLimitState struct {
	// Remaining is the number of requests left in the current window.
	Remaining int `json:"remaining"`

	// ResetAt is when the window resets.
	ResetAt time.Time `json:"reset_at"`

	// LastUpdate is when this state was last refreshed from response headers.
	LastUpdate time.Time `json:"last_update"`

	// IsHealthy is true when Remaining >= RemainingThresholdHealthy.
	IsHealthy bool `json:"is_healthy"`
}

// DefaultState is the assumed state before any quota header has been seen.
func DefaultState() *RateLimitState {
	return &RateLimitState{
		Remaining:  100,
		ResetAt:    time.Now().Add(60 * time.Second),
		LastUpdate: time.Now(),
		IsHealthy:  true,
	}
}

// IsStale returns true if the state data is older than the given duration.
func (s *RateLimitState) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}

// NeedsCriticalBlock returns true if requests should be blocked. A window
// that has already reset never blocks.
func (s *RateLimitState) NeedsCriticalBlock() bool {
	return s.Remaining < RemainingThresholdCritical && s.TimeUntilReset() > 0
}

// NeedsThrottling returns true if requests should be slowed down.
func (s *RateLimitState) NeedsThrottling() bool {
	return s.Remaining < RemainingThresholdWarning &&
		s.Remaining >= RemainingThresholdCritical &&
		s.TimeUntilReset() > 0
}

// TimeUntilReset returns the duration until the window resets.
// Returns 0 if the reset time has already passed.
func (s *RateLimitState) TimeUntilReset() time.Duration {
	duration := time.Until(s.ResetAt)
	if duration < 0 {
		return 0
	}
	return duration
}

// UpdateHealth updates the IsHealthy field based on current Remaining.
func (s *RateLimitState) UpdateHealth() {
	s.IsHealthy = s.Remaining >= RemainingThresholdHealthy
}
