package resilience

import (
	"sync"
	"time"
)

// Breaker is a two-state circuit breaker: Closed (calls allowed) or Open
// until a deadline. There is no distinct half-open state; once the
// deadline passes, the next Allow call returns true and clears the Open
// state, making that call the recovery probe.
type Breaker struct {
	mu    sync.Mutex
	until time.Time
	now   func() time.Time
}

// NewBreaker creates a Breaker in the Closed state using the wall clock.
func NewBreaker() *Breaker {
	return NewBreakerWithClock(time.Now)
}

// NewBreakerWithClock creates a Breaker using the given clock.
// Tests inject a fake clock to control deadline expiry.
func NewBreakerWithClock(now func() time.Time) *Breaker {
	return &Breaker{now: now}
}

// Allow reports whether a call may proceed. Once the Open deadline has
// elapsed it returns true and resets to Closed, no external reset needed.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.until.IsZero() {
		return true
	}
	if b.now().Before(b.until) {
		return false
	}
	b.until = time.Time{}
	return true
}

// Open short-circuits calls for the given duration.
func (b *Breaker) Open(d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.until = b.now().Add(d)
}
