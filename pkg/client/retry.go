package client

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/rs/zerolog"
)

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the real-time Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RetryPolicy holds the configuration for retry logic.
type RetryPolicy struct {
	// MaxAttempts is the maximum number of attempts (including the initial request).
	MaxAttempts int

	// InitialBackoff is the wait after the first failed attempt.
	InitialBackoff time.Duration

	// MaxBackoff caps every wait.
	MaxBackoff time.Duration

	// BackoffMultiplier is the multiplier for exponential backoff.
	BackoffMultiplier float64

	// JitterFraction spreads each wait by ±fraction. Zero disables jitter.
	JitterFraction float64

	// Sleep waits between attempts. Nil means SleepContext.
	Sleep Sleeper
}

// DefaultRetryPolicy returns the default policy: three attempts, waiting
// min(1s * 2^(attempt-1), 5s) between them.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:       3,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        5 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// Validate checks the policy for unusable values.
func (p RetryPolicy) Validate() error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("retry max_attempts must be >= 1 (got %d)", p.MaxAttempts)
	}
	if p.InitialBackoff < 0 || p.MaxBackoff < 0 {
		return fmt.Errorf("retry backoff must not be negative")
	}
	if p.BackoffMultiplier < 1 {
		return fmt.Errorf("retry backoff_multiplier must be >= 1 (got %v)", p.BackoffMultiplier)
	}
	return nil
}

// Backoff returns the wait after the given failed attempt (1-based), before jitter.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(p.InitialBackoff) * math.Pow(p.BackoffMultiplier, float64(attempt-1))
	if d > float64(p.MaxBackoff) {
		return p.MaxBackoff
	}
	return time.Duration(d)
}

func (p RetryPolicy) jittered(d time.Duration) time.Duration {
	if p.JitterFraction <= 0 {
		return d
	}
	j := time.Duration(float64(d) * (1 + p.JitterFraction*(rand.Float64()*2-1)))
	if j < 0 {
		return 0
	}
	return j
}

// Do runs fn until it succeeds or MaxAttempts is reached. Every failure is
// eligible for retry. After the last attempt the final error is returned
// wrapped with ErrRetryExhausted.
func (p RetryPolicy) Do(ctx context.Context, logger zerolog.Logger, fn func(attempt int) error) error {
	sleep := p.Sleep
	if sleep == nil {
		sleep = SleepContext
	}

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		err := fn(attempt)
		if err == nil {
			if attempt > 1 {
				logger.Info().
					Int("attempt", attempt).
					Msg("Request succeeded after retry")
			}
			return nil
		}
		lastErr = err
		errorClass := string(classOf(err))

		if attempt >= p.MaxAttempts {
			break
		}

		retriesTotal.WithLabelValues(errorClass).Inc()

		wait := p.jittered(p.Backoff(attempt))
		retryBackoffSeconds.WithLabelValues(errorClass).Observe(wait.Seconds())

		logger.Debug().
			Err(err).
			Str("error_class", errorClass).
			Int("attempt", attempt).
			Dur("backoff", wait).
			Msg("Retrying request after backoff")

		if err := sleep(ctx, wait); err != nil {
			logger.Warn().
				Str("error_class", errorClass).
				Int("attempt", attempt).
				Msg("Context cancelled during retry backoff")
			return fmt.Errorf("%w: %w", ErrContextCancelled, lastErr)
		}
	}

	errorClass := string(classOf(lastErr))
	retryExhaustedTotal.WithLabelValues(errorClass).Inc()
	logger.Warn().
		Err(lastErr).
		Str("error_class", errorClass).
		Int("max_attempts", p.MaxAttempts).
		Msg("Retry attempts exhausted")

	return fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, p.MaxAttempts, lastErr)
}
