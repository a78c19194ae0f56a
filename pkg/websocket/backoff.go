package websocket

import (
	"math/rand"
	"sync"
	"time"
)

const jitterPercent = 0.2

// Backoff produces exponentially growing reconnect delays with jitter,
// capped at a maximum.
type Backoff struct {
	initial time.Duration
	max     time.Duration
	mult    float64

	mu      sync.Mutex
	current time.Duration
}

// NewBackoff creates a backoff schedule. Non-positive or missing values
// fall back to one second initial, thirty seconds max, doubling.
func NewBackoff(initial, max time.Duration, mult float64) *Backoff {
	if initial <= 0 {
		initial = time.Second
	}
	if max <= 0 {
		max = 30 * time.Second
	}
	if mult < 1 {
		mult = 2.0
	}

	return &Backoff{
		initial: initial,
		max:     max,
		mult:    mult,
		current: initial,
	}
}

// Next returns the jittered delay for the current attempt and advances
// the schedule for the next one.
func (b *Backoff) Next() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	jittered := time.Duration(float64(b.current) * (1.0 + rand.Float64()*jitterPercent))

	next := time.Duration(float64(b.current) * b.mult)
	if next > b.max {
		next = b.max
	}
	b.current = next

	return jittered
}

// Reset restores the schedule to the initial delay.
func (b *Backoff) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.current = b.initial
}
