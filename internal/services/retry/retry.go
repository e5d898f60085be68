// Package retry holds the backoff policy shared by reelsmith's HTTP clients:
// exponential delays, Retry-After support and retry classification for
// 408/429/5xx responses and network timeouts.
package retry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"syscall"
	"time"
)

const (
	DefaultAttempts  = 5
	DefaultBaseDelay = 1 * time.Second
	DefaultMaxDelay  = 10 * time.Second
	maxErrorBody     = 4096
)

// StatusError reports a non-2xx HTTP response.
type StatusError struct {
	Service    string
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	service := e.Service
	if service == "" {
		service = "http"
	}
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("%s request: http %d", service, e.StatusCode)
	}
	return fmt.Sprintf("%s request: http %d: %s", service, e.StatusCode, body)
}

// CheckResponse returns a *StatusError for responses outside the 2xx range.
// The body is drained (up to a limit) into the error.
func CheckResponse(service string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	retryAfter, _ := ParseRetryAfter(resp.Header.Get("Retry-After"))
	return &StatusError{
		Service:    service,
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(body)),
		RetryAfter: retryAfter,
	}
}

// Policy decides whether and how long to wait between attempts.
type Policy struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
	// Sleeper replaces the real timer (useful for tests).
	Sleeper func(time.Duration)
	// Retryable marks additional errors as retryable.
	Retryable func(error) bool
	// Allow, when set, limits retries to errors it accepts. It runs before
	// Retryable and the status checks.
	Allow func(error) bool
}

// DefaultPolicy returns a policy with the package defaults.
func DefaultPolicy() Policy {
	return Policy{Attempts: DefaultAttempts, BaseDelay: DefaultBaseDelay, MaxDelay: DefaultMaxDelay}
}

// Do runs fn until it succeeds, returns a non-retryable error or attempts run
// out. The final error wraps the last failure.
func (p Policy) Do(ctx context.Context, op string, fn func(attempt int) error) error {
	attempts := p.attempts()
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := fn(attempt)
		if err == nil {
			return nil
		}
		delay, retry := p.Delay(ctx, err, attempt)
		if !retry {
			if attempt == 1 {
				return err
			}
			return fmt.Errorf("%s: failed after %d attempts: %w", op, attempt, err)
		}
		if err := p.Sleep(ctx, delay); err != nil {
			return err
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = errors.New("unknown retry failure")
	}
	return fmt.Errorf("%s: failed after %d attempts: %w", op, attempts, lastErr)
}

// Delay returns the wait before the next attempt and whether to retry at all.
func (p Policy) Delay(ctx context.Context, err error, attempt int) (time.Duration, bool) {
	if attempt >= p.attempts() || err == nil || ctx == nil || ctx.Err() != nil {
		return 0, false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return 0, false
	}
	if p.Allow != nil && !p.Allow(err) {
		return 0, false
	}
	if p.Retryable != nil && p.Retryable(err) {
		return p.Backoff(attempt), true
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		if !RetryableStatus(statusErr.StatusCode) {
			return 0, false
		}
		if statusErr.RetryAfter > 0 {
			return p.capDelay(statusErr.RetryAfter), true
		}
		return p.Backoff(attempt), true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return p.Backoff(attempt), true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return p.Backoff(attempt), true
	}
	return 0, false
}

// NotDelivered reports whether err shows the request never reached the
// provider's handler: a 429 rejection or a refused connection. Only those are
// safe to repeat for requests that create billable work.
func NotDelivered(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == http.StatusTooManyRequests
	}
	return errors.Is(err, syscall.ECONNREFUSED)
}

// RetryableStatus reports whether an HTTP status is worth retrying.
func RetryableStatus(code int) bool {
	return code == http.StatusRequestTimeout || code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

// Backoff returns base, base*2, base*4, ... capped at MaxDelay.
func (p Policy) Backoff(attempt int) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		return 0
	}
	maxDelay := p.MaxDelay
	if maxDelay <= 0 {
		maxDelay = DefaultMaxDelay
	}
	if attempt <= 0 {
		attempt = 1
	}
	delay := base
	for i := 1; i < attempt; i++ {
		if delay > maxDelay/2 {
			delay = maxDelay
			break
		}
		delay *= 2
	}
	return p.capDelay(delay)
}

// Sleep waits for delay or until ctx is done.
func (p Policy) Sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if p.Sleeper != nil {
		p.Sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (p Policy) attempts() int {
	if p.Attempts <= 0 {
		return 1
	}
	return p.Attempts
}

func (p Policy) capDelay(delay time.Duration) time.Duration {
	if delay < 0 {
		return 0
	}
	maxDelay := p.MaxDelay
	if maxDelay <= 0 {
		maxDelay = DefaultMaxDelay
	}
	if delay > maxDelay {
		return maxDelay
	}
	return delay
}

// ParseRetryAfter accepts delta-seconds or an HTTP date.
func ParseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		delay := time.Until(when)
		if delay < 0 {
			return 0, false
		}
		return delay, true
	}
	return 0, false
}
