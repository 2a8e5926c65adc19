// Package retry provides common retry logic with exponential backoff
// for event forwarding.
package retry

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/sirupsen/logrus"
)

// Config holds configuration for retry logic
type Config struct {
	MaxRetries    uint64 // retries after the initial attempt
	BaseDelay     time.Duration
	MaxDelay      time.Duration
	JitterPercent uint64
}

// ForwarderDefaults returns the backoff shape for HTTP forwarding,
// sized from the configured total attempt count.
func ForwarderDefaults(maxAttempts int) *Config {
	retries := 0
	if maxAttempts > 1 {
		retries = maxAttempts - 1
	}
	return &Config{
		MaxRetries:    uint64(retries),
		BaseDelay:     500 * time.Millisecond,
		MaxDelay:      10 * time.Second,
		JitterPercent: 10,
	}
}

// WithOperation performs a general operation with retry logic,
// treating every failure as transient.
func WithOperation(ctx context.Context, config *Config, operation func() error, operationName string) error {
	backoff := config.CreateBackoff()
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := operation()
		if err != nil {
			logrus.WithError(err).
				WithField("operation", operationName).
				Warn("Operation failed, retrying...")
			return retry.RetryableError(err)
		}
		return nil
	})
}

// WithClassifier performs an operation that decides itself which
// failures are worth retrying: the operation returns Retryable(err)
// for transient faults and a plain error to stop immediately.
func WithClassifier(ctx context.Context, config *Config, operation func(ctx context.Context) error) error {
	return retry.Do(ctx, config.CreateBackoff(), operation)
}

// Retryable marks an error as transient for WithClassifier.
func Retryable(err error) error {
	return retry.RetryableError(err)
}

// CreateBackoff creates a reusable backoff strategy from config
func (c *Config) CreateBackoff() retry.Backoff {
	backoff := retry.NewExponential(c.BaseDelay)
	backoff = retry.WithMaxRetries(c.MaxRetries, backoff)
	backoff = retry.WithCappedDuration(c.MaxDelay, backoff)
	backoff = retry.WithJitterPercent(c.JitterPercent, backoff)
	return backoff
}
