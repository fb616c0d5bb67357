// Package ratelimit provides a fixed-window attempt limiter for
// security-sensitive client operations such as login and password reset.
// Entries live in process memory only; a restart clears all counters.
package ratelimit

import (
	"strings"
	"sync"
	"time"
)

const (
	// DefaultMaxAttempts is the number of attempts allowed per window.
	DefaultMaxAttempts = 5
	// DefaultWindow is the fixed window length.
	DefaultWindow = 15 * time.Minute
)

type entry struct {
	attemptCount int
	windowStart  time.Time
}

// Limiter counts attempts per key within a fixed window. A burst at the
// window boundary can exceed the nominal rate; that is an accepted trade-off
// for O(1) memory and no persistence requirement.
type Limiter struct {
	mu          sync.Mutex
	entries     map[string]*entry
	maxAttempts int
	window      time.Duration
	nowFunc     func() time.Time
}

// Option defines a function type to modify the Limiter instance.
type Option func(*Limiter)

// WithLimits overrides the attempt budget and window length.
func WithLimits(maxAttempts int, window time.Duration) Option {
	return func(l *Limiter) {
		l.maxAttempts = maxAttempts
		l.window = window
	}
}

// WithNowFunc sets the now time function (primarily for testing).
func WithNowFunc(now func() time.Time) Option {
	return func(l *Limiter) {
		l.nowFunc = now
	}
}

// New creates a Limiter with the default 5-attempts-per-15-minutes budget.
func New(options ...Option) *Limiter {
	l := &Limiter{
		entries:     make(map[string]*entry),
		maxAttempts: DefaultMaxAttempts,
		window:      DefaultWindow,
		nowFunc:     time.Now,
	}
	for _, opt := range options {
		opt(l)
	}
	return l
}

// Allow consumes one attempt for key and reports whether the operation may
// proceed. Once the budget is exhausted further calls are rejected without
// mutating the entry, so a rejected caller does not extend the lockout.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFunc()

	e, ok := l.entries[key]
	if !ok || now.Sub(e.windowStart) > l.window {
		l.entries[key] = &entry{attemptCount: 1, windowStart: now}
		return true
	}

	if e.attemptCount >= l.maxAttempts {
		return false
	}

	e.attemptCount++
	return true
}

// Remaining reports how many attempts are left for key in the current
// window. Unknown or expired keys return the full budget.
func (l *Limiter) Remaining(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if !ok || l.nowFunc().Sub(e.windowStart) > l.window {
		return l.maxAttempts
	}
	return l.maxAttempts - e.attemptCount
}

// Key builds the canonical limiter key for an operation and identifier,
// e.g. Key("login", "A@B.com") -> "login:a@b.com".
func Key(operation, identifier string) string {
	return operation + ":" + strings.ToLower(strings.TrimSpace(identifier))
}
