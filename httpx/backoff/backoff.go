// Package backoff computes delays between retry attempts.
package backoff

import "time"

// Backoff returns the delay before retry number retry (0-indexed).
type Backoff interface {
	Next(retry int) time.Duration
}

// Func adapts a function to Backoff
type Func func(retry int) time.Duration

func (f Func) Next(retry int) time.Duration {
	return f(retry)
}
