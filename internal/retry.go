package internal

import (
	"context"
	"time"
)

// Retry runs op up to attempts times with a fixed delay between tries.
// It is reserved for transient infrastructure failures (warm-up, cache
// round-trips); planning and validation are never retried through it.
func Retry(ctx context.Context, attempts int, delay time.Duration, op func() error) error {
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 0; i < attempts; i++ {
		if err = op(); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return err
}
