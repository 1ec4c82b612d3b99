package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"network", NewNetworkError(errors.New("dial tcp: connection refused")), true},
		{"timeout", NewTimeoutError(), true},
		{"http 503", NewHTTPStatusError(503, ""), true},
		{"http 429", NewHTTPStatusError(429, ""), true},
		{"http 400", NewHTTPStatusError(400, ""), false},
		{"rpc error", NewRPCError("eth_call", 3, "execution reverted", nil), false},
		{"invalid response", NewInvalidResponseError("bad"), false},
		{"context canceled", context.Canceled, false},
		{"plain connection reset", errors.New("read: connection reset by peer"), true},
		{"plain other", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isRetryableError(tt.err))
		})
	}
}

func TestCalculateBackoffDelay(t *testing.T) {
	cfg := &RetryConfig{InitialDelay: 100, MaxDelay: 500, BackoffMultiplier: 2}

	assert.Equal(t, 100*time.Millisecond, calculateBackoffDelay(0, cfg))
	assert.Equal(t, 200*time.Millisecond, calculateBackoffDelay(1, cfg))
	assert.Equal(t, 400*time.Millisecond, calculateBackoffDelay(2, cfg))
	assert.Equal(t, 500*time.Millisecond, calculateBackoffDelay(3, cfg))
}

func TestWithRetry(t *testing.T) {
	cfg := &RetryConfig{MaxRetries: 2, InitialDelay: 1, MaxDelay: 1, BackoffMultiplier: 1}

	calls := 0
	err := withRetry(context.Background(), func() error {
		calls++
		return NewNetworkError(errors.New("down"))
	}, cfg)
	assert.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.True(t, IsClientError(err, ErrCodeNetwork))

	calls = 0
	err = withRetry(context.Background(), func() error {
		calls++
		return NewRPCError("eth_call", 3, "reverted", nil)
	}, cfg)
	assert.Error(t, err)
	assert.Equal(t, 1, calls)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = withRetry(ctx, func() error {
		return NewNetworkError(errors.New("down"))
	}, &RetryConfig{MaxRetries: 2, InitialDelay: 1000, MaxDelay: 1000, BackoffMultiplier: 1})
	assert.ErrorIs(t, err, context.Canceled)
}
