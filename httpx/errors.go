package httpx

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

var (
	// ErrMaxRetriesExceeded is joined to the last error once every attempt failed.
	ErrMaxRetriesExceeded = errors.New("max retry attempts exceeded")
)

// RequestError causes
const (
	CauseInvalidRequest = "invalid_request"
	CauseTimeout        = "timeout"
	CauseCanceled       = "canceled"
	CauseNetwork        = "network"
)

// RequestError provides context about a failed HTTP request.
type RequestError struct {
	// Err is the underlying error that caused the request to fail
	Err error

	// Request is the original HTTP request (may be nil if error occurred before request creation)
	Request *http.Request

	// Retries is the number of retry attempts that were made
	Retries int

	// Cause categorizes the error: "invalid_request", "timeout", "canceled" or "network"
	Cause string
}

func (e *RequestError) Error() string {
	if e.Request != nil {
		return fmt.Sprintf("httpx: %s %s failed: %s (cause: %s, retries: %d)",
			e.Request.Method,
			e.Request.URL.String(),
			e.Err.Error(),
			e.Cause,
			e.Retries,
		)
	}
	return fmt.Sprintf("httpx: request failed: %s (cause: %s, retries: %d)",
		e.Err.Error(),
		e.Cause,
		e.Retries,
	)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// Temporary reports whether retrying later may succeed
func (e *RequestError) Temporary() bool {
	return e.Cause == CauseTimeout || e.Cause == CauseNetwork
}

func causeOf(err error) string {
	if errors.Is(err, context.Canceled) {
		return CauseCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return CauseTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return CauseTimeout
	}
	return CauseNetwork
}
