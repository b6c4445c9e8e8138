package retry

import (
	"context"
	"time"

	"github.com/tidalsync/core/pkg/errs"
)

// ExecuteSync retries fn up to policy.MaxAttempts times, sleeping between
// attempts per ComputeBackoff. It stops immediately on a non-retriable
// error (per errs.Kind.Retriable) or on context cancellation.
func ExecuteSync(ctx context.Context, params BackoffParams, policy BackoffPolicy, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		if attempt > 0 {
			attemptParams := params
			attemptParams.AttemptIndex = attempt
			delay := ComputeBackoff(attemptParams, policy)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if kind, ok := errs.KindOf(err); ok && !kind.Retriable() {
			return err
		}
	}

	return lastErr
}
