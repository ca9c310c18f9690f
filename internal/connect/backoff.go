package connect

import (
	"math/rand"
	"time"
)

// Backoff samples a reconnect delay uniformly from [Min, Max].
type Backoff struct {
	Min time.Duration
	Max time.Duration
}

// DefaultBackoff provides conservative reconnect defaults.
func DefaultBackoff() Backoff {
	return Backoff{
		Min: 300 * time.Millisecond,
		Max: 5 * time.Second,
	}
}

// Next returns the delay to sleep before the next connection attempt.
func (b Backoff) Next() time.Duration {
	min := b.Min
	if min <= 0 {
		min = 100 * time.Millisecond
	}
	max := b.Max
	if max <= min {
		max = min
	}
	return min + time.Duration(rand.Float64()*float64(max-min))
}
