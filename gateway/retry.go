package gateway

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// CallWithRetry runs a gateway call and retries transient transport
// failures with exponential backoff. The operation must use a fixed
// idempotency key so that retries have at most one effect on the processor.
// Declined outcomes and non-transient errors stop the retry loop.
func CallWithRetry(ctx context.Context, maxElapsed time.Duration, operation func(ctx context.Context) (*Result, error)) (*Result, error) {
	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = maxElapsed

	var result *Result
	err := backoff.Retry(func() error {
		var err error
		result, err = operation(ctx)
		if err != nil {
			if IsTransient(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		return nil
	}, backoff.WithContext(policy, ctx))
	if err != nil {
		return nil, err
	}
	return result, nil
}
