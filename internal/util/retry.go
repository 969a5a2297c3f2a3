package util

import (
	"context"
	"time"

	"github.com/avast/retry-go/v4"
)

// FetchRetryOptions returns retry options for loading remote file content.
// Only the last attempt's error is returned so callers can inspect it directly.
func FetchRetryOptions(ctx context.Context, attempts uint) []retry.Option {
	logger := GetLogger("Retry")
	return []retry.Option{
		retry.Attempts(max(attempts, 1)),
		retry.Delay(100 * time.Millisecond),
		retry.MaxDelay(1 * time.Second),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			logger.Debug().Uint("attempt", n+1).Err(err).Msg("Retrying")
		}),
	}
}

// RetryWithResult executes fn with retry logic and returns the result.
func RetryWithResult[T any](ctx context.Context, fn func() (T, error), opts ...retry.Option) (T, error) {
	if len(opts) == 0 {
		opts = FetchRetryOptions(ctx, 3)
	}
	return retry.DoWithData(fn, opts...)
}

// Permanent marks err as not worth retrying
func Permanent(err error) error {
	return retry.Unrecoverable(err)
}
