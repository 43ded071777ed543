package warehouse

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"google.golang.org/api/googleapi"
)

// MaxRetries is the maximum number of attempts for a single warehouse query.
var MaxRetries = 5

func computeExponentialBackoff(attempt int) time.Duration {
	d := time.Duration(1<<uint(attempt-1)) * time.Second
	if d > time.Minute {
		d = time.Minute
	}
	return d
}

// retryableError reports whether a query failure is worth retrying: rate
// limit responses and server-side errors, nothing else.
func retryableError(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case 429, 500, 502, 503:
			return true
		}
	}
	return false
}

func withRetries(ctx context.Context, logger *slog.Logger, fn func(context.Context) error) error {
	var err error
	for attempt := 1; attempt <= MaxRetries; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(computeExponentialBackoff(attempt - 1)):
			}
		}
		err = fn(ctx)
		if err == nil || !retryableError(err) {
			return err
		}
		logger.Warn("transient warehouse error", "attempt", attempt, "err", err)
	}
	return err
}
