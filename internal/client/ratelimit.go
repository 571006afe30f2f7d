// Package client implements the client-side subscription view model and the
// advisory rate limiting applied before sensitive actions reach the network.
package client

import (
	"sync"
	"time"
)

// Rate limiter defaults.
const (
	DefaultMaxAttempts = 5
	DefaultWindow      = 60 * time.Second
)

// RateLimiter is a process-local fixed-window guard keyed by an arbitrary
// string (e.g. subject id + action name). It throttles repeated sensitive
// actions before they reach the network. It is a UX and cost-control guard
// only, never a security boundary.
type RateLimiter struct {
	mu          sync.Mutex
	maxAttempts int
	window      time.Duration
	attempts    map[string][]time.Time

	now func() time.Time // injectable for tests
}

// NewRateLimiter creates a limiter allowing maxAttempts per window.
// Non-positive arguments fall back to the defaults.
func NewRateLimiter(maxAttempts int, window time.Duration) *RateLimiter {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &RateLimiter{
		maxAttempts: maxAttempts,
		window:      window,
		attempts:    make(map[string][]time.Time),
		now:         time.Now,
	}
}

// IsAllowed prunes expired attempts for the key, then reports whether
// another attempt fits in the trailing window. Allowed attempts are
// recorded; denied ones are not.
func (l *RateLimiter) IsAllowed(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	recent := l.attempts[key][:0]
	for _, t := range l.attempts[key] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= l.maxAttempts {
		l.attempts[key] = recent
		return false
	}

	l.attempts[key] = append(recent, now)
	return true
}

// Reset clears all recorded attempts for the key.
func (l *RateLimiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.attempts, key)
}
