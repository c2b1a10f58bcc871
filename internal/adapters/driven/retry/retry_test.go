package retry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/scholar/internal/core/domain"
)

func fastPolicy(attempts int) Policy {
	return Policy{MaxAttempts: attempts, InitialBackoff: time.Millisecond, MaxBackoff: 4 * time.Millisecond}
}

func TestPolicy_Backoff(t *testing.T) {
	p := Policy{MaxAttempts: 5, InitialBackoff: 100 * time.Millisecond, MaxBackoff: 350 * time.Millisecond}

	assert.Equal(t, 100*time.Millisecond, p.Backoff(1))
	assert.Equal(t, 200*time.Millisecond, p.Backoff(2))
	assert.Equal(t, 350*time.Millisecond, p.Backoff(3))
	assert.Equal(t, 350*time.Millisecond, p.Backoff(10))
}

func TestPolicyFrom_Defaults(t *testing.T) {
	p := PolicyFrom(domain.RetrySettings{})
	assert.Equal(t, DefaultPolicy(), p)
}

func TestStatusError_Classification(t *testing.T) {
	tests := []struct {
		code      int
		transient bool
		sentinel  error
	}{
		{http.StatusTooManyRequests, true, domain.ErrUpstreamUnavailable},
		{http.StatusBadGateway, true, domain.ErrUpstreamUnavailable},
		{http.StatusUnauthorized, false, domain.ErrInvalidConfig},
		{http.StatusNotFound, false, domain.ErrInvalidConfig},
		{http.StatusBadRequest, false, domain.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.code), func(t *testing.T) {
			err := &StatusError{Service: "ollama", Code: tt.code}
			assert.Equal(t, tt.transient, err.Transient())
			assert.Equal(t, tt.transient, IsTransient(err))
			assert.ErrorIs(t, err, tt.sentinel)
		})
	}
}

func TestIsTransient(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.False(t, IsTransient(context.Canceled))
	assert.False(t, IsTransient(errors.New("bad json")))
	assert.True(t, IsTransient(fmt.Errorf("%w: connection refused", domain.ErrUpstreamUnavailable)))
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, 3*time.Second, ParseRetryAfter("3"))
	assert.Zero(t, ParseRetryAfter(""))
	assert.Zero(t, ParseRetryAfter("soon"))

	future := time.Now().Add(time.Hour).UTC().Format(http.TimeFormat)
	assert.Greater(t, ParseRetryAfter(future), 50*time.Minute)
}

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(4), nil, func(context.Context) error {
		calls++
		if calls < 3 {
			return &StatusError{Service: "test", Code: http.StatusServiceUnavailable}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_GivesUpWithUpstreamUnavailable(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(3), nil, func(context.Context) error {
		calls++
		return &StatusError{Service: "test", Code: http.StatusInternalServerError}
	})
	assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
	assert.Equal(t, 3, calls)
}

func TestDo_PermanentErrorStopsImmediately(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(5), nil, func(context.Context) error {
		calls++
		return &StatusError{Service: "test", Code: http.StatusBadRequest}
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Equal(t, 1, calls)
}

func TestDo_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, Policy{MaxAttempts: 10, InitialBackoff: time.Hour, MaxBackoff: time.Hour}, nil,
		func(context.Context) error {
			calls++
			cancel()
			return &StatusError{Service: "test", Code: http.StatusServiceUnavailable}
		})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestDo_RateLimitedRecordsBackoff(t *testing.T) {
	limiter := NewRateLimiter(0, 1)
	calls := 0
	err := Do(context.Background(), fastPolicy(2), limiter, func(context.Context) error {
		calls++
		if calls == 1 {
			return &StatusError{Service: "test", Code: http.StatusTooManyRequests, RetryAfter: 2 * time.Millisecond}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestRateLimiter(t *testing.T) {
	var nilLimiter *RateLimiter
	assert.True(t, nilLimiter.Allow())
	assert.NoError(t, nilLimiter.Wait(context.Background()))

	r := NewRateLimiter(1, 1)
	assert.True(t, r.Allow())
	assert.False(t, r.Allow())

	r = NewRateLimiter(0, 1)
	r.RecordRateLimitError(time.Hour)
	assert.False(t, r.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, r.Wait(ctx), context.DeadlineExceeded)
}
