package runtime

import (
	"sync"
	"time"
)

// Bridge restart backoff bounds.
const (
	DefaultBackoffInitial = 1 * time.Second
	DefaultBackoffMax     = 16 * time.Second
)

// Backoff yields doubling delays capped at Max. Safe for concurrent use so
// Reset can be called from another service.
type Backoff struct {
	initial time.Duration
	max     time.Duration
	attempt int
	mu      sync.Mutex
}

// NewBackoff creates a backoff. Zero values select the bridge defaults.
func NewBackoff(initial, maxDelay time.Duration) *Backoff {
	if initial <= 0 {
		initial = DefaultBackoffInitial
	}
	if maxDelay <= 0 {
		maxDelay = DefaultBackoffMax
	}
	return &Backoff{initial: initial, max: maxDelay}
}

// Next returns the delay for the next restart and advances the attempt.
func (b *Backoff) Next() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	d := b.delay(b.attempt)
	b.attempt++
	return d
}

func (b *Backoff) delay(attempt int) time.Duration {
	d := b.initial
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= b.max {
			return b.max
		}
	}
	return d
}

// Reset starts the sequence over.
func (b *Backoff) Reset() {
	b.mu.Lock()
	b.attempt = 0
	b.mu.Unlock()
}

// Attempt returns how many delays have been handed out since the last reset.
func (b *Backoff) Attempt() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attempt
}
