package messaging

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

// RetryConfig holds configuration for retry behavior.
type RetryConfig struct {
	MaxRetries    int           // Maximum number of retries
	InitialDelay  time.Duration // Initial delay before first retry
	MaxDelay      time.Duration // Maximum delay between retries
	Multiplier    float64       // Delay multiplier for exponential backoff
	Randomization float64       // Randomization factor (0-1)
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		Multiplier:    2.0,
		Randomization: 0.2,
	}
}

// NextDelay calculates the delay before retry number attempt (0-based).
// Returns 0 once MaxRetries is reached.
func (c RetryConfig) NextDelay(attempt int) time.Duration {
	if attempt >= c.MaxRetries {
		return 0
	}
	delay := float64(c.InitialDelay) * math.Pow(c.Multiplier, float64(attempt))
	if delay > float64(c.MaxDelay) {
		delay = float64(c.MaxDelay)
	}
	jitter := c.Randomization
	return time.Duration(delay * (1 - jitter + 2*jitter*rand.Float64()))
}

// Retry runs fn until it succeeds, the retries are used up or ctx is done.
// The last error is returned. An open circuit is not retried.
func (c RetryConfig) Retry(ctx context.Context, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; ; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		delay := c.NextDelay(attempt)
		if delay == 0 || errors.Is(err, ErrCircuitOpen) {
			return err
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
}
