// Package backoff computes the wait before each reconnection attempt.
//
// The n-th delay (0-based) is min(max, base*2^n), then moved by a random share
// of itself in [-factor, +factor]. Delays never go below zero.
package backoff

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

type Backoff struct {
	base, max time.Duration
	factor    float64

	// Rand returns a number in [0, 1). It defaults to math/rand and is
	// replaced in tests to pin the jitter.
	Rand func() float64

	mu      sync.Mutex
	attempt int
}

func New(base, max time.Duration, factor float64) *Backoff {
	if factor < 0 {
		factor = 0
	}
	if factor > 1 {
		factor = 1
	}
	if max < base {
		max = base
	}
	return &Backoff{base: base, max: max, factor: factor, Rand: rand.Float64}
}

// Duration returns the delay for the current attempt and moves to the next.
func (b *Backoff) Duration() time.Duration {
	b.mu.Lock()
	n := b.attempt
	b.attempt++
	b.mu.Unlock()

	return b.ForAttempt(n)
}

// ForAttempt returns the delay for attempt n without changing state.
func (b *Backoff) ForAttempt(n int) time.Duration {
	if b.base <= 0 {
		return 0
	}

	d := float64(b.base) * math.Pow(2, float64(n))
	if d > float64(b.max) || math.IsInf(d, 0) {
		d = float64(b.max)
	}

	if b.factor > 0 {
		r := rand.Float64
		if b.Rand != nil {
			r = b.Rand
		}
		d *= 1 + b.factor*(2*r()-1)
	}

	if d < 0 {
		return 0
	}
	return time.Duration(d)
}

func (b *Backoff) Attempt() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attempt
}

func (b *Backoff) Reset() {
	b.mu.Lock()
	b.attempt = 0
	b.mu.Unlock()
}
