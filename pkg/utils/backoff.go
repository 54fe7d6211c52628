package utils

import (
	"math/rand/v2"
	"time"
)

// Backoff returns base * 2^(attempt-1) capped at max, spread by ±jitter (0.2 = 20%).
// The result never drops below base.
func Backoff(base, max time.Duration, attempt int, jitter float64) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := base
	for i := 1; i < attempt && d < max; i++ {
		d *= 2
	}
	if max > 0 && d > max {
		d = max
	}
	if jitter > 0 {
		spread := float64(d) * jitter
		d += time.Duration((rand.Float64()*2 - 1) * spread)
	}
	if d < base {
		d = base
	}
	return d
}
