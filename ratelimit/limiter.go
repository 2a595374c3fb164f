// Package ratelimit bounds how often a subject may trigger an experience
// grant. It implements a per-subject fixed window: at most Events permits
// per Window, with the bucket resetting once its window elapses.
//
// State is process-local. A multi-instance deployment must move the bucket
// into the shared cache layer (windowed IncrBy per subject) to keep the
// N-per-window guarantee across instances.
package ratelimit

import (
	"sync"
	"time"
)

// DefaultEvents and DefaultWindow are the stock cooldown: a subject
// earns experience at most twice per minute.
const (
	DefaultEvents = 2
	DefaultWindow = time.Minute
)

// bucket tracks one subject's hits inside the current window.
type bucket struct {
	hits        int
	windowStart time.Time
}

// Limiter is a per-subject fixed-window rate limiter.
// All methods are safe for concurrent use; a single mutex guards the
// bucket map so concurrent TryAcquire calls for one subject serialize.
type Limiter struct {
	events int
	window time.Duration

	mu      sync.Mutex
	buckets map[int64]*bucket
	now     func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithNow overrides the clock. Tests use this to step time directly.
func WithNow(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

// New creates a Limiter permitting events hits per window per subject.
func New(events int, window time.Duration, opts ...Option) *Limiter {
	l := &Limiter{
		events:  events,
		window:  window,
		buckets: make(map[int64]*bucket),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// TryAcquire reports whether the subject may proceed and, if so, records
// the hit. An elapsed window resets the bucket before evaluation.
func (l *Limiter) TryAcquire(subjectID int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	b, ok := l.buckets[subjectID]
	if !ok {
		b = &bucket{windowStart: now}
		l.buckets[subjectID] = b
	} else if now.Sub(b.windowStart) >= l.window {
		b.hits = 0
		b.windowStart = now
	}

	if b.hits >= l.events {
		return false
	}
	b.hits++
	return true
}

// Prune drops buckets whose window has elapsed. The ledger's background
// worker calls this periodically so idle subjects do not accumulate.
func (l *Limiter) Prune() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0
	for id, b := range l.buckets {
		if now.Sub(b.windowStart) >= l.window {
			delete(l.buckets, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of live buckets. Used for diagnostics and tests.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// Window returns the configured window length.
func (l *Limiter) Window() time.Duration {
	return l.window
}
