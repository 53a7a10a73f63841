package backoff

import (
	"math"
	"math/rand/v2"
	"time"
)

// ExponentialBackoff waits Initial * Factor^retry, capped at Max. With Jitter
// the delay is drawn uniformly from [0, delay].
type ExponentialBackoff struct {
	Initial time.Duration
	Max     time.Duration
	// Default: 2.0
	Factor float64
	Jitter bool
}

func (e *ExponentialBackoff) Next(retry int) time.Duration {
	factor := e.Factor
	if factor == 0 {
		factor = 2.0
	}

	delay := float64(e.Initial) * math.Pow(factor, float64(retry))
	if e.Max > 0 && delay > float64(e.Max) {
		delay = float64(e.Max)
	}

	if e.Jitter {
		delay = rand.Float64() * delay
	}

	return time.Duration(delay)
}

// NewExponentialBackoff starts at 100ms, doubles up to 30s and applies jitter.
func NewExponentialBackoff() *ExponentialBackoff {
	return &ExponentialBackoff{
		Initial: 100 * time.Millisecond,
		Max:     30 * time.Second,
		Factor:  2.0,
		Jitter:  true,
	}
}
