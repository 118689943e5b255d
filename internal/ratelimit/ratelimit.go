// Package ratelimit provides a sliding-window call limiter.
package ratelimit

import (
	"sync"
	"time"
)

// Default limits for external judge calls.
const (
	DefaultLimit  = 10
	DefaultWindow = 60 * time.Second
)

// Window allows at most Limit calls in any trailing Window duration.
// It is safe for concurrent use and is meant to be shared by every caller
// of one external service.
type Window struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu    sync.Mutex
	calls []time.Time
}

// Option configures a Window.
type Option func(*Window)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(w *Window) {
		w.now = now
	}
}

// New creates a limiter. Non-positive values fall back to the defaults.
func New(limit int, window time.Duration, opts ...Option) *Window {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}
	w := &Window{limit: limit, window: window, now: time.Now}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Allow records a call and reports true if it fits in the window. A
// refused call is not recorded.
func (w *Window) Allow() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	w.evict(now)
	if len(w.calls) >= w.limit {
		return false
	}
	w.calls = append(w.calls, now)
	return true
}

// Remaining returns how many calls would currently be allowed.
func (w *Window) Remaining() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.evict(w.now())
	return w.limit - len(w.calls)
}

// RetryAfter returns how long until the next call would be allowed, or 0.
func (w *Window) RetryAfter() time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	w.evict(now)
	if len(w.calls) < w.limit {
		return 0
	}
	return w.calls[0].Add(w.window).Sub(now)
}

// evict drops calls that have left the window. Caller holds mu.
func (w *Window) evict(now time.Time) {
	cutoff := now.Add(-w.window)
	i := 0
	for i < len(w.calls) && !w.calls[i].After(cutoff) {
		i++
	}
	if i > 0 {
		w.calls = append(w.calls[:0], w.calls[i:]...)
	}
}
