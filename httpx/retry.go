package httpx

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/dwidge/table-api/httpx/backoff"
	"github.com/dwidge/table-api/observability"
	"go.uber.org/zap"
)

type RetryConfig struct {
	// MaxAttempts counts the initial request. Default: 3
	MaxAttempts int

	// Backoff computes the delay before each retry. Default: exponential with jitter
	Backoff backoff.Backoff

	// RetryableStatusCodes defines which HTTP status codes should be retried.
	// Default: 429, 500, 502, 503, 504
	RetryableStatusCodes []int

	// OnlyIdempotent disables retries for POST and PATCH
	OnlyIdempotent bool
}

func (r RetryConfig) withDefaults() RetryConfig {
	if r.MaxAttempts <= 0 {
		r.MaxAttempts = 3
	}
	if r.Backoff == nil {
		r.Backoff = backoff.NewExponentialBackoff()
	}
	if r.RetryableStatusCodes == nil {
		r.RetryableStatusCodes = []int{
			http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout,
		}
	}
	return r
}

func (r RetryConfig) shouldRetry(resp *http.Response, err error) bool {
	if err != nil {
		// a cancelled caller does not want another attempt
		return !errors.Is(err, context.Canceled)
	}
	for _, code := range r.RetryableStatusCodes {
		if resp.StatusCode == code {
			return true
		}
	}
	return false
}

func (c *Client) attempts(method string) int {
	if c.retry.OnlyIdempotent && !isIdempotent(method) {
		return 1
	}
	return c.retry.MaxAttempts
}

// execute runs req until it succeeds, fails permanently or runs out of
// attempts. It returns the number of retries made.
func (c *Client) execute(ctx context.Context, req *http.Request) (*http.Response, int, error) {
	var body []byte
	if req.Body != nil {
		var err error
		if body, err = io.ReadAll(req.Body); err != nil {
			return nil, 0, &RequestError{Err: err, Request: req, Cause: CauseInvalidRequest}
		}
		_ = req.Body.Close()
	}

	attempts := c.attempts(req.Method)
	host := req.URL.Host

	for attempt := 0; ; attempt++ {
		if body != nil {
			req.Body = io.NopCloser(bytes.NewReader(body))
		}

		start := time.Now()
		resp, err := c.transport.Do(ctx, req)
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		c.metrics.RecordRequestDuration(req.Method, host, status, time.Since(start))

		if !c.retry.shouldRetry(resp, err) {
			if err != nil {
				return nil, attempt, &RequestError{Err: err, Request: req, Retries: attempt, Cause: causeOf(err)}
			}
			return resp, attempt, nil
		}

		if attempt+1 >= attempts {
			if err != nil {
				cause := causeOf(err)
				if attempts > 1 {
					err = errors.Join(err, ErrMaxRetriesExceeded)
				}
				return nil, attempt, &RequestError{Err: err, Request: req, Retries: attempt, Cause: cause}
			}
			return resp, attempt, nil
		}

		if resp != nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
		}

		reason := observability.RetryReason(status)
		c.metrics.IncrementRetryAttempts(req.Method, host, reason)
		delay := c.retry.Backoff.Next(attempt)
		c.log.Debug("retrying request",
			zap.String("method", req.Method),
			zap.String("host", host),
			zap.String("reason", reason),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
		)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, attempt, &RequestError{Err: ctx.Err(), Request: req, Retries: attempt, Cause: causeOf(ctx.Err())}
		}
	}
}

// isIdempotent returns true if the HTTP method is idempotent.
func isIdempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodPut, http.MethodDelete,
		http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	default:
		return false
	}
}
