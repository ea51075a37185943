package scraper

import (
	"context"
	"fmt"
	"time"
)

// Retry calls fn until it succeeds, at most attempts+1 times, waiting delay
// between tries. attempts is the number of retries after the first call.
func Retry(ctx context.Context, attempts int, delay time.Duration, fn func(ctx context.Context) error) error {
	if attempts < 0 {
		attempts = 0
	}

	var err error
	for try := 0; try <= attempts; try++ {
		if try > 0 {
			t := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				t.Stop()
				return fmt.Errorf("retry cancelled after %d attempts: %w", try, err)
			case <-t.C:
			}
		}
		if err = fn(ctx); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return err
		}
	}
	return fmt.Errorf("failed after %d attempts: %w", attempts+1, err)
}
