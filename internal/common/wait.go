package common

import (
	"context"
	"errors"
	"time"
)

// ErrRetriesExhausted is returned by RetryUntil when a bounded retry gives up.
var ErrRetriesExhausted = errors.New("retries exhausted")

// Sleep blocks for d or until ctx is done, whichever comes first.
// It returns ctx.Err() when interrupted.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RetryUntil calls attempt until it reports done, sleeping interval between attempts.
//
// maxAttempts <= 0 means unbounded; the only exit is then done or ctx.
// It returns the attempt's error, ctx.Err() when cancelled, or
// ErrRetriesExhausted once maxAttempts attempts were not done.
func RetryUntil(ctx context.Context, interval time.Duration, maxAttempts int, attempt func(n int) (done bool, err error)) error {
	for n := 1; ; n++ {
		done, err := attempt(n)
		if err != nil || done {
			return err
		}
		if maxAttempts > 0 && n >= maxAttempts {
			return ErrRetriesExhausted
		}
		if err := Sleep(ctx, interval); err != nil {
			return err
		}
	}
}
