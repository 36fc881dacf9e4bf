// Package utils provides retry logic with exponential backoff, JSON response
// helpers for the bridge API, and request ID plumbing. Use the retry helpers
// for the token store ping at startup and for the chat socket reconnect loop.
package utils

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrRetriesExhausted wraps the last error once MaxAttempts is reached.
var ErrRetriesExhausted = errors.New("retries exhausted")

// RetryFunc is a function that can be retried. It should return an error
// if the operation failed and nil on success.
type RetryFunc func() error

// RetryConfig holds configuration for retry behavior with exponential backoff.
type RetryConfig struct {
	MaxAttempts     int           // Maximum attempts including the first; <= 0 retries until ctx is done
	InitialDelay    time.Duration // Delay before the first retry
	MaxDelay        time.Duration // Upper bound for a single delay
	Multiplier      float64       // Exponential backoff multiplier
	Jitter          bool          // Add ±25% random jitter to delays
	RetryableErrors []error       // Errors that should trigger retry (nil = retry all), matched with errors.Is

	// OnRetry, when set, is called after a failed attempt and before the
	// wait. Use it for logging and metrics.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// StoreRetryConfig returns the configuration used when pinging the Redis
// token store during startup.
//
// Configuration:
//   - Max attempts: 5
//   - Initial delay: 50ms
//   - Max delay: 2s
//   - Multiplier: 2.0
//   - Jitter: enabled
func StoreRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  5,
		InitialDelay: 50 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// ReconnectRetryConfig returns an unbounded configuration for the chat
// socket: it keeps retrying until the context is cancelled, backing off up
// to maxDelay between attempts.
func ReconnectRetryConfig(maxDelay time.Duration) RetryConfig {
	if maxDelay <= 0 {
		maxDelay = 10 * time.Second
	}
	return RetryConfig{
		InitialDelay: 250 * time.Millisecond,
		MaxDelay:     maxDelay,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// Delay returns the wait after the given failed attempt (1-based):
// InitialDelay * Multiplier^(attempt-1), capped at MaxDelay, with ±25%
// jitter when enabled.
func (c RetryConfig) Delay(attempt int) time.Duration {
	multiplier := c.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}

	delay := float64(c.InitialDelay) * math.Pow(multiplier, float64(attempt-1))
	if c.MaxDelay > 0 && delay > float64(c.MaxDelay) {
		delay = float64(c.MaxDelay)
	}
	if c.Jitter {
		delay += delay * 0.25 * (2*rand.Float64() - 1)
	}
	return time.Duration(delay)
}

func (c RetryConfig) retryable(err error) bool {
	if len(c.RetryableErrors) == 0 {
		return true
	}
	for _, target := range c.RetryableErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Retry runs fn until it succeeds, returns a non-retryable error, runs
// out of attempts, or ctx is done.
//
// Example:
//
//	err := utils.Retry(ctx, utils.StoreRetryConfig(), func() error {
//	    return client.Ping(ctx).Err()
//	})
func Retry(ctx context.Context, config RetryConfig, fn RetryFunc) error {
	_, err := RetryWithResult(ctx, config, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// RetryWithResult is Retry for functions that produce a value.
//
// Returned errors:
//   - a non-retryable error from fn, unwrapped
//   - ctx.Err() wrapped, when ctx ends first
//   - ErrRetriesExhausted wrapping the last error
//
// Example:
//
//	ws, err := utils.RetryWithResult(ctx, utils.ReconnectRetryConfig(10*time.Second), dial)
func RetryWithResult[T any](ctx context.Context, config RetryConfig, fn func() (T, error)) (T, error) {
	var zero T

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, fmt.Errorf("retry cancelled: %w", err)
		}

		res, err := fn()
		if err == nil {
			if attempt > 1 {
				log.Debug().Int("attempt", attempt).Msg("Operation succeeded after retry")
			}
			return res, nil
		}

		if !config.retryable(err) {
			return zero, err
		}
		if config.MaxAttempts > 0 && attempt >= config.MaxAttempts {
			return zero, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempt, err)
		}

		delay := config.Delay(attempt)
		if config.OnRetry != nil {
			config.OnRetry(attempt, err, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-timer.C:
		}
	}
}
