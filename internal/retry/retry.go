package retry

import (
	"context"
	"time"
)

// Do runs fn until it succeeds, maxRetries is exhausted or ctx is done.
// The delay between attempts starts at baseDelay and doubles each time.
func Do(ctx context.Context, maxRetries int, baseDelay time.Duration, fn func(context.Context) error) error {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}

	delay := baseDelay
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if attempt >= maxRetries {
			return err
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay *= 2
	}
}

// Value is Do for calls that produce a result.
func Value[T any](ctx context.Context, maxRetries int, baseDelay time.Duration, fn func(context.Context) (T, error)) (T, error) {
	var out T
	err := Do(ctx, maxRetries, baseDelay, func(ctx context.Context) error {
		var err error
		out, err = fn(ctx)
		return err
	})
	return out, err
}
