package backend

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// retry runs fn again while it fails with ErrUnavailable, with exponential backoff.
// Only idempotent operations may be retried.
func retry(ctx context.Context, retries int, base time.Duration, opName string, fn func() error) error {
	attempts := retries + 1
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err := fn()
		if err == nil {
			return nil
		}

		lastErr = err

		if !isTransient(err) || attempt == attempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(base * (1 << (attempt - 1))):
		}
	}

	if attempts == 1 || !isTransient(lastErr) {
		return lastErr
	}
	return fmt.Errorf("%s failed after %d attempts: %w", opName, attempts, lastErr)
}

func isTransient(err error) bool {
	return errors.Is(err, ErrUnavailable) && !errors.Is(err, context.Canceled)
}
