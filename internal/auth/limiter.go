package auth

import (
	"sync"
	"time"
)

// RateLimiter decides whether a challenge request for an identifier is
// allowed. The policy is pluggable; the reference deployment simulated
// throttling with a digit rule, which is intentionally not reproduced here.
type RateLimiter interface {
	Allow(identifier string) bool
}

// WindowLimiter allows at most burst requests per identifier within a
// sliding window.
type WindowLimiter struct {
	mu     sync.Mutex
	window time.Duration
	burst  int
	seen   map[string][]time.Time
	now    func() time.Time
}

// NewWindowLimiter creates a limiter allowing burst requests per window.
func NewWindowLimiter(window time.Duration, burst int) *WindowLimiter {
	return &WindowLimiter{
		window: window,
		burst:  burst,
		seen:   make(map[string][]time.Time),
		now:    time.Now,
	}
}

// Allow records the request and reports whether it is within budget.
func (l *WindowLimiter) Allow(identifier string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.window)
	recent := l.seen[identifier][:0]
	for _, t := range l.seen[identifier] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= l.burst {
		l.seen[identifier] = recent
		return false
	}

	l.seen[identifier] = append(recent, l.now())
	return true
}
