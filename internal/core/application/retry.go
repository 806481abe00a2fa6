package application

import (
	"context"
	"time"

	"github.com/satsub/satsub/internal/core/ports"
)

// poll calls fn right away and then every interval until it reports done,
// returns an error or ctx is done.
func poll(
	ctx context.Context, interval time.Duration,
	fn func(ctx context.Context) (bool, error),
) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		done, err := fn(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// retryTransient calls fn up to attempts times, waiting delay in between, as
// long as it fails with a transient gateway error. Any other error is returned
// immediately.
func retryTransient(
	ctx context.Context, attempts int, delay time.Duration,
	onRetry func(attempt int, err error), fn func(ctx context.Context) error,
) error {
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(ctx); err == nil || !ports.IsTransient(err) {
			return err
		}
		if attempt == attempts {
			break
		}
		if onRetry != nil {
			onRetry(attempt, err)
		}
		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}
	return err
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
