package warehouse

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"google.golang.org/api/googleapi"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRetryableError(t *testing.T) {
	assert := assert.New(t)

	assert.False(retryableError(nil))
	assert.False(retryableError(errors.New("plain failure")))
	assert.False(retryableError(&googleapi.Error{Code: 404}))
	assert.False(retryableError(&googleapi.Error{Code: 400}))
	assert.True(retryableError(&googleapi.Error{Code: 429}))
	assert.True(retryableError(&googleapi.Error{Code: 500}))
	assert.True(retryableError(&googleapi.Error{Code: 502}))
	assert.True(retryableError(&googleapi.Error{Code: 503}))

	// wrapped errors still match
	wrapped := errors.Join(errors.New("context"), &googleapi.Error{Code: 503})
	assert.True(retryableError(wrapped))
}

func TestComputeExponentialBackoff(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(time.Second, computeExponentialBackoff(1))
	assert.Equal(2*time.Second, computeExponentialBackoff(2))
	assert.Equal(4*time.Second, computeExponentialBackoff(3))
	assert.Equal(32*time.Second, computeExponentialBackoff(6))
	// capped
	assert.Equal(time.Minute, computeExponentialBackoff(7))
	assert.Equal(time.Minute, computeExponentialBackoff(12))
}

func TestWithRetriesStopsOnPermanentError(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	calls := 0
	perm := &googleapi.Error{Code: 400}
	err := withRetries(ctx, discardLogger(), func(ctx context.Context) error {
		calls++
		return perm
	})
	assert.ErrorIs(err, perm)
	assert.Equal(1, calls)
}

func TestWithRetriesSucceedsAfterTransient(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	calls := 0
	err := withRetries(ctx, discardLogger(), func(ctx context.Context) error {
		calls++
		if calls < 2 {
			return &googleapi.Error{Code: 503}
		}
		return nil
	})
	assert.NoError(err)
	assert.Equal(2, calls)
}

func TestWithRetriesHonorsContext(t *testing.T) {
	assert := assert.New(t)

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		// cancel while the helper sleeps between attempts
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	err := withRetries(ctx, discardLogger(), func(ctx context.Context) error {
		calls++
		return &googleapi.Error{Code: 503}
	})
	assert.ErrorIs(err, context.Canceled)
	assert.Equal(1, calls)
}
