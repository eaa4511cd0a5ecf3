package ratelimit

import (
	"testing"
	"time"
)

func TestRateLimitState_IsStale(t *testing.T) {
	tests := []struct {
		name     string
		state    *RateLimitState
		maxAge   time.Duration
		expected bool
	}{
		{
			name:     "fresh state",
			state:    &RateLimitState{LastUpdate: time.Now()},
			maxAge:   5 * time.Minute,
			expected: false,
		},
		{
			name:     "stale state",
			state:    &RateLimitState{LastUpdate: time.Now().Add(-10 * time.Minute)},
			maxAge:   5 * time.Minute,
			expected: true,
		},
		{
			name:     "just under max age",
			state:    &RateLimitState{LastUpdate: time.Now().Add(-4 * time.Minute)},
			maxAge:   5 * time.Minute,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := tt.state.IsStale(tt.maxAge); result != tt.expected {
				t.Errorf("IsStale() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestRateLimitState_NeedsCriticalBlock(t *testing.T) {
	future := time.Now().Add(time.Minute)
	past := time.Now().Add(-time.Minute)

	tests := []struct {
		name      string
		remaining int
		resetAt   time.Time
		expected  bool
	}{
		{name: "well above critical threshold", remaining: 50, resetAt: future, expected: false},
		{name: "at critical threshold", remaining: RemainingThresholdCritical, resetAt: future, expected: false},
		{name: "just below critical threshold", remaining: RemainingThresholdCritical - 1, resetAt: future, expected: true},
		{name: "zero remaining", remaining: 0, resetAt: future, expected: true},
		{name: "zero remaining after window reset", remaining: 0, resetAt: past, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := &RateLimitState{Remaining: tt.remaining, ResetAt: tt.resetAt}
			if result := state.NeedsCriticalBlock(); result != tt.expected {
				t.Errorf("NeedsCriticalBlock() = %v, want %v (remaining=%d)", result, tt.expected, tt.remaining)
			}
		})
	}
}

func TestRateLimitState_NeedsThrottling(t *testing.T) {
	future := time.Now().Add(time.Minute)

	tests := []struct {
		name      string
		remaining int
		resetAt   time.Time
		expected  bool
	}{
		{name: "healthy state", remaining: 50, resetAt: future, expected: false},
		{name: "at warning threshold", remaining: RemainingThresholdWarning, resetAt: future, expected: false},
		{name: "just below warning threshold", remaining: RemainingThresholdWarning - 1, resetAt: future, expected: true},
		{name: "at critical threshold", remaining: RemainingThresholdCritical, resetAt: future, expected: true},
		{name: "below critical threshold", remaining: RemainingThresholdCritical - 1, resetAt: future, expected: false},
		{name: "window already reset", remaining: 10, resetAt: time.Now().Add(-time.Second), expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := &RateLimitState{Remaining: tt.remaining, ResetAt: tt.resetAt}
			if result := state.NeedsThrottling(); result != tt.expected {
				t.Errorf("NeedsThrottling() = %v, want %v (remaining=%d)", result, tt.expected, tt.remaining)
			}
		})
	}
}

func TestRateLimitState_TimeUntilReset(t *testing.T) {
	state := &RateLimitState{ResetAt: time.Now().Add(5 * time.Minute)}
	if got := state.TimeUntilReset(); got < 5*time.Minute-time.Second || got > 5*time.Minute {
		t.Errorf("TimeUntilReset() = %v, want ~5m", got)
	}

	state = &RateLimitState{ResetAt: time.Now().Add(-5 * time.Minute)}
	if got := state.TimeUntilReset(); got != 0 {
		t.Errorf("TimeUntilReset() = %v, want 0 for past reset time", got)
	}
}

func TestRateLimitState_UpdateHealth(t *testing.T) {
	tests := []struct {
		remaining       int
		expectedHealthy bool
	}{
		{remaining: 100, expectedHealthy: true},
		{remaining: RemainingThresholdHealthy, expectedHealthy: true},
		{remaining: RemainingThresholdHealthy - 1, expectedHealthy: false},
		{remaining: 3, expectedHealthy: false},
	}

	for _, tt := range tests {
		state := &RateLimitState{Remaining: tt.remaining}
		state.UpdateHealth()

		if state.IsHealthy != tt.expectedHealthy {
			t.Errorf("UpdateHealth() set IsHealthy = %v, want %v (remaining=%d)",
				state.IsHealthy, tt.expectedHealthy, tt.remaining)
		}
	}
}

func TestThresholdConstants(t *testing.T) {
	if RemainingThresholdCritical >= RemainingThresholdWarning {
		t.Errorf("RemainingThresholdCritical (%d) must be less than RemainingThresholdWarning (%d)",
			RemainingThresholdCritical, RemainingThresholdWarning)
	}

	if RemainingThresholdWarning >= RemainingThresholdHealthy {
		t.Errorf("RemainingThresholdWarning (%d) must be less than RemainingThresholdHealthy (%d)",
			RemainingThresholdWarning, RemainingThresholdHealthy)
	}
}
