package client

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// fakeSleeper records requested waits without sleeping.
type fakeSleeper struct {
	mu     sync.Mutex
	sleeps []time.Duration
	err    error
}

func (f *fakeSleeper) Sleep(ctx context.Context, d time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sleeps = append(f.sleeps, d)
	if f.err != nil {
		return f.err
	}
	return ctx.Err()
}

func (f *fakeSleeper) Sleeps() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Duration(nil), f.sleeps...)
}

func testPolicy(sleeper *fakeSleeper) RetryPolicy {
	policy := DefaultRetryPolicy()
	policy.Sleep = sleeper.Sleep
	return policy
}

func TestDefaultRetryPolicy(t *testing.T) {
	policy := DefaultRetryPolicy()

	if policy.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", policy.MaxAttempts)
	}
	if policy.InitialBackoff != 1*time.Second {
		t.Errorf("InitialBackoff = %v, want 1s", policy.InitialBackoff)
	}
	if policy.MaxBackoff != 5*time.Second {
		t.Errorf("MaxBackoff = %v, want 5s", policy.MaxBackoff)
	}
	if policy.BackoffMultiplier != 2.0 {
		t.Errorf("BackoffMultiplier = %v, want 2.0", policy.BackoffMultiplier)
	}
	if policy.JitterFraction != 0 {
		t.Errorf("JitterFraction = %v, want 0", policy.JitterFraction)
	}
	if err := policy.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestRetryPolicy_Backoff(t *testing.T) {
	policy := DefaultRetryPolicy()

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 1 * time.Second},
		{1, 1 * time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 5 * time.Second},
		{10, 5 * time.Second},
	}

	for _, tt := range tests {
		if got := policy.Backoff(tt.attempt); got != tt.expected {
			t.Errorf("Backoff(%d) = %v, want %v", tt.attempt, got, tt.expected)
		}
	}
}

func TestRetryPolicy_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*RetryPolicy)
		wantErr bool
	}{
		{"default", func(*RetryPolicy) {}, false},
		{"single attempt", func(p *RetryPolicy) { p.MaxAttempts = 1 }, false},
		{"zero attempts", func(p *RetryPolicy) { p.MaxAttempts = 0 }, true},
		{"negative backoff", func(p *RetryPolicy) { p.InitialBackoff = -time.Second }, true},
		{"multiplier below one", func(p *RetryPolicy) { p.BackoffMultiplier = 0.5 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			policy := DefaultRetryPolicy()
			tt.mutate(&policy)
			err := policy.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRetryPolicy_Jitter(t *testing.T) {
	policy := DefaultRetryPolicy()
	policy.JitterFraction = 0.5

	for i := 0; i < 100; i++ {
		got := policy.jittered(2 * time.Second)
		if got < 1*time.Second || got > 3*time.Second {
			t.Fatalf("jittered(2s) = %v, want within [1s, 3s]", got)
		}
	}
}

func TestRetryPolicy_Do_Success(t *testing.T) {
	sleeper := &fakeSleeper{}
	callCount := 0

	err := testPolicy(sleeper).Do(context.Background(), zerolog.Nop(), func(int) error {
		callCount++
		return nil
	})

	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if callCount != 1 {
		t.Errorf("Expected 1 call, got %d", callCount)
	}
	if len(sleeper.Sleeps()) != 0 {
		t.Errorf("Expected no sleeps, got %v", sleeper.Sleeps())
	}
}

func TestRetryPolicy_Do_SuccessAfterRetry(t *testing.T) {
	sleeper := &fakeSleeper{}
	var attempts []int

	err := testPolicy(sleeper).Do(context.Background(), zerolog.Nop(), func(attempt int) error {
		attempts = append(attempts, attempt)
		if attempt < 3 {
			return &UpstreamError{StatusCode: 503, ErrorClass: ErrorClassServer}
		}
		return nil
	})

	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(attempts) != 3 || attempts[0] != 1 || attempts[2] != 3 {
		t.Errorf("attempts = %v, want [1 2 3]", attempts)
	}

	sleeps := sleeper.Sleeps()
	if len(sleeps) != 2 || sleeps[0] != 1*time.Second || sleeps[1] != 2*time.Second {
		t.Errorf("sleeps = %v, want [1s 2s]", sleeps)
	}
}

func TestRetryPolicy_Do_Exhausted(t *testing.T) {
	sleeper := &fakeSleeper{}
	callCount := 0
	lastErr := &UpstreamError{StatusCode: 404, ErrorClass: ErrorClassClient, Message: "404 Not Found"}

	err := testPolicy(sleeper).Do(context.Background(), zerolog.Nop(), func(int) error {
		callCount++
		return lastErr
	})

	if !errors.Is(err, ErrRetryExhausted) {
		t.Fatalf("Expected ErrRetryExhausted, got %v", err)
	}
	if callCount != 3 {
		t.Errorf("Expected 3 calls (client errors are retried too), got %d", callCount)
	}

	var upstream *UpstreamError
	if !errors.As(err, &upstream) || upstream != lastErr {
		t.Errorf("Expected last *UpstreamError to be wrapped, got %v", err)
	}

	// No sleep after the final attempt
	if got := len(sleeper.Sleeps()); got != 2 {
		t.Errorf("Expected 2 sleeps, got %d", got)
	}
}

func TestRetryPolicy_Do_ContextCancelled(t *testing.T) {
	sleeper := &fakeSleeper{err: context.Canceled}
	callCount := 0

	err := testPolicy(sleeper).Do(context.Background(), zerolog.Nop(), func(int) error {
		callCount++
		return errors.New("temporary error")
	})

	if !errors.Is(err, ErrContextCancelled) {
		t.Errorf("Expected ErrContextCancelled, got %v", err)
	}
	if callCount != 1 {
		t.Errorf("Expected 1 call before cancellation, got %d", callCount)
	}
}

func TestSleepContext(t *testing.T) {
	if err := SleepContext(context.Background(), time.Millisecond); err != nil {
		t.Errorf("SleepContext() = %v, want nil", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	if err := SleepContext(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("SleepContext() = %v, want context.Canceled", err)
	}
	if time.Since(start) > time.Second {
		t.Error("SleepContext should return immediately on a cancelled context")
	}
}
