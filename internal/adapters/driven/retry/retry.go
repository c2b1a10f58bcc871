// Package retry bounds retries of transient upstream failures.
//
// Adapters report failures as *StatusError or wrap transport errors with
// domain.ErrUpstreamUnavailable. Do retries those with exponential backoff
// and gives up with domain.ErrUpstreamUnavailable once the policy is spent.
package retry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/custodia-labs/scholar/internal/core/domain"
)

// Default policy values.
const (
	DefaultMaxAttempts    = 4
	DefaultInitialBackoff = 500 * time.Millisecond
	DefaultMaxBackoff     = 8 * time.Second
)

// Policy bounds the retry loop.
type Policy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultPolicy returns the default retry policy.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    DefaultMaxAttempts,
		InitialBackoff: DefaultInitialBackoff,
		MaxBackoff:     DefaultMaxBackoff,
	}
}

// PolicyFrom converts retry settings, filling zero fields with defaults.
func PolicyFrom(s domain.RetrySettings) Policy {
	p := Policy{
		MaxAttempts:    s.MaxAttempts,
		InitialBackoff: s.InitialBackoff,
		MaxBackoff:     s.MaxBackoff,
	}
	return p.withDefaults()
}

func (p Policy) withDefaults() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = DefaultInitialBackoff
	}
	if p.MaxBackoff < p.InitialBackoff {
		p.MaxBackoff = p.InitialBackoff
	}
	return p
}

// Backoff returns the delay before retry number attempt (1-based).
func (p Policy) Backoff(attempt int) time.Duration {
	p = p.withDefaults()
	d := p.InitialBackoff
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	return d
}

// StatusError is a non-2xx HTTP response from an upstream service.
type StatusError struct {
	Service    string
	Code       int
	Body       string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s error (status %d): %s", e.Service, e.Code, e.Body)
}

// Unwrap maps the status onto a domain sentinel.
func (e *StatusError) Unwrap() error {
	switch {
	case e.Transient():
		return domain.ErrUpstreamUnavailable
	case e.Code == http.StatusUnauthorized || e.Code == http.StatusForbidden || e.Code == http.StatusNotFound:
		return domain.ErrInvalidConfig
	default:
		return domain.ErrInvalidInput
	}
}

// Transient reports whether the request may succeed if repeated.
func (e *StatusError) Transient() bool {
	return e.Code == http.StatusTooManyRequests || e.Code == http.StatusRequestTimeout || e.Code >= 500
}

// NewStatusError builds a StatusError from a response and its body.
func NewStatusError(service string, resp *http.Response, body []byte) *StatusError {
	return &StatusError{
		Service:    service,
		Code:       resp.StatusCode,
		Body:       string(body),
		RetryAfter: ParseRetryAfter(resp.Header.Get("Retry-After")),
	}
}

// ParseRetryAfter reads a Retry-After header given in seconds or as an HTTP date.
func ParseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Transient()
	}
	return errors.Is(err, domain.ErrUpstreamUnavailable)
}

// Do calls fn until it succeeds, fails permanently, or the policy is spent.
// The limiter may be nil.
func Do(ctx context.Context, p Policy, limiter *RateLimiter, fn func(ctx context.Context) error) error {
	p = p.withDefaults()

	for attempt := 1; ; attempt++ {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if !IsTransient(err) {
			return err
		}
		if attempt >= p.MaxAttempts {
			if errors.Is(err, domain.ErrUpstreamUnavailable) {
				return fmt.Errorf("after %d attempts: %w", attempt, err)
			}
			return fmt.Errorf("%w: after %d attempts: %w", domain.ErrUpstreamUnavailable, attempt, err)
		}

		delay := p.Backoff(attempt)
		var se *StatusError
		if errors.As(err, &se) && se.Code == http.StatusTooManyRequests {
			limiter.RecordRateLimitError(se.RetryAfter)
			if se.RetryAfter > delay {
				delay = min(se.RetryAfter, p.MaxBackoff)
			}
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
