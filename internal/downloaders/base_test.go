package downloaders

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/aristath/portfolio/internal/apperrors"
	"github.com/stretchr/testify/assert"
)

func TestIsTransient_HTTPStatusCodes(t *testing.T) {
	assert.True(t, isTransient(&HTTPStatusError{StatusCode: http.StatusTooManyRequests}))
	assert.True(t, isTransient(&HTTPStatusError{StatusCode: http.StatusBadGateway}))
	assert.True(t, isTransient(&HTTPStatusError{StatusCode: http.StatusServiceUnavailable}))
	assert.True(t, isTransient(&HTTPStatusError{StatusCode: http.StatusGatewayTimeout}))
	assert.False(t, isTransient(&HTTPStatusError{StatusCode: http.StatusNotFound}))
}

func TestIsTransient_TextualMarkers(t *testing.T) {
	assert.True(t, isTransient(errors.New("rate limit exceeded")))
	assert.True(t, isTransient(errors.New("too many requests")))
	assert.True(t, isTransient(errors.New("request timeout")))
	assert.False(t, isTransient(errors.New("unknown symbol")))
	assert.False(t, isTransient(nil))
}

func TestWithRetry_SucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	err := withRetry(context.Background(), RetryConfig{MaxRetries: 3, BaseDelay: 0}, func() error {
		attempts++
		if attempts < 3 {
			return errors.New("rate limit exceeded")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestWithRetry_StopsImmediatelyOnNonTransientError(t *testing.T) {
	attempts := 0
	err := withRetry(context.Background(), RetryConfig{MaxRetries: 3, BaseDelay: 0}, func() error {
		attempts++
		return errors.New("unknown symbol")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestWithRetry_ExhaustsRetriesAsProviderFatal(t *testing.T) {
	err := withRetry(context.Background(), RetryConfig{MaxRetries: 2, BaseDelay: 0}, func() error {
		return errors.New("rate limit exceeded")
	})
	assert.Error(t, err)
	assert.Equal(t, apperrors.ProviderFatal, apperrors.KindOf(err))
}
