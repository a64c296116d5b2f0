package retry

import (
	"context"
	"time"
)

// Do calls fn up to attempts times, sleeping backoff*attempt between tries.
// It stops early when fn succeeds, when retryable reports false for the
// returned error, or when ctx is done. The last error is returned.
func Do(ctx context.Context, attempts int, backoff time.Duration, retryable func(error) bool, fn func(ctx context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := range attempts {
		if err = fn(ctx); err == nil {
			return nil
		}
		if retryable != nil && !retryable(err) {
			return err
		}
		if i == attempts-1 {
			break
		}

		if backoff > 0 {
			t := time.NewTimer(backoff * time.Duration(i+1))
			select {
			case <-ctx.Done():
				t.Stop()
				return err
			case <-t.C:
			}
		} else if ctx.Err() != nil {
			return err
		}
	}
	return err
}
