package bybit

import (
	"context"
	"math"
	"time"
)

// RetryConfig holds configuration for the client's retry behavior
type RetryConfig struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	JitterEnabled bool
}

// DefaultRetryConfig returns the retry configuration used by new clients
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    3,
		InitialDelay:  time.Second,
		MaxDelay:      30 * time.Second,
		BackoffFactor: 2.0,
		JitterEnabled: true,
	}
}

// withRetry executes fn with exponential backoff for retryable API errors.
// Non-retryable errors (auth, validation, insufficient balance) fail fast.
func (c *Client) withRetry(ctx context.Context, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt <= c.retry.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt == c.retry.MaxRetries {
			break
		}
		if !IsRetryableError(err) {
			break
		}

		delay := c.calculateDelay(attempt)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return lastErr
}

// calculateDelay returns the backoff delay for a retry attempt
func (c *Client) calculateDelay(attempt int) time.Duration {
	delay := c.retry.InitialDelay
	if attempt > 0 {
		delay = time.Duration(float64(c.retry.InitialDelay) * math.Pow(c.retry.BackoffFactor, float64(attempt)))
	}

	if delay > c.retry.MaxDelay {
		delay = c.retry.MaxDelay
	}

	if c.retry.JitterEnabled {
		jitter := time.Duration(float64(delay) * 0.1 * (2*randFloat() - 1))
		delay += jitter
	}

	return delay
}

// randFloat returns a pseudo-random float between 0 and 1
func randFloat() float64 {
	return float64(time.Now().UnixNano()%1000) / 1000.0
}
