package retry

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"time"
)

// Config holds retry configuration. MaxRetries counts attempts after the
// first, so MaxRetries 0 means exactly one attempt.
type Config struct {
	MaxRetries int
	BaseDelay  time.Duration
}

// DefaultConfig returns a retry configuration suitable for transient
// HTTP failures.
func DefaultConfig() Config {
	return Config{
		MaxRetries: 3,
		BaseDelay:  1 * time.Second,
	}
}

// WithBackoff executes operation, retrying retryable failures with
// exponential backoff and jitter up to the configured budget.
func WithBackoff(ctx context.Context, config Config, operation func(context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		lastErr = operation(ctx)
		if lastErr == nil {
			return nil
		}

		if !isRetryable(lastErr) {
			return fmt.Errorf("retry: non-retryable error: %w", lastErr)
		}

		if attempt == config.MaxRetries {
			break
		}

		delay := config.BaseDelay * time.Duration(1<<attempt)
		if config.BaseDelay > 0 {
			delay += time.Duration(rand.Int63n(int64(config.BaseDelay)))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return fmt.Errorf("retry: operation failed after %d attempts: %w", config.MaxRetries+1, lastErr)
}

// isRetryable reports whether an error is worth retrying. Network-level
// failures and 5xx/429 status codes are; other 4xx codes are not.
// Unrecognized errors are retried.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())

	if strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "temporary failure") ||
		strings.Contains(errStr, "network") {
		return true
	}

	if strings.Contains(errStr, "status 5") ||
		strings.Contains(errStr, "status 429") {
		return true
	}

	if strings.Contains(errStr, "status 4") {
		return false
	}

	return true
}

// HTTPStatusRetryable reports whether an HTTP status code is retryable.
func HTTPStatusRetryable(statusCode int) bool {
	return statusCode >= 500 || statusCode == http.StatusTooManyRequests
}
