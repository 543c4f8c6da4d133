// Package ratelimit implements a per-user sliding-window admission counter.
package ratelimit

import (
	"sync"
	"time"
)

// Limiter counts send attempts per user over a trailing time window.
//
// Every attempt is recorded, admitted or not, so a user who keeps sending
// while over the limit stays rejected until they slow down.
type Limiter struct {
	mu      sync.Mutex
	windows map[string][]time.Time // per-user attempt times, oldest first
	limit   int
	window  time.Duration
}

// New creates a limiter admitting at most limit attempts per window.
// Non-positive arguments fall back to 5 per second.
func New(limit int, window time.Duration) *Limiter {
	if limit <= 0 {
		limit = 5
	}
	if window <= 0 {
		window = time.Second
	}
	return &Limiter{
		windows: make(map[string][]time.Time),
		limit:   limit,
		window:  window,
	}
}

// Admit records an attempt by userID at now and reports whether it is within the limit.
func (l *Limiter) Admit(userID string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	times := append(l.windows[userID], now)
	times = l.prune(times, now)
	l.windows[userID] = times

	return len(times) <= l.limit
}

// prune drops leading entries older than the window relative to now.
func (l *Limiter) prune(times []time.Time, now time.Time) []time.Time {
	i := 0
	for i < len(times) && now.Sub(times[i]) > l.window {
		i++
	}
	if i == 0 {
		return times
	}
	// Copy down so the backing array does not grow without bound.
	n := copy(times, times[i:])
	return times[:n]
}

// Sweep forgets users whose every recorded attempt has left the window.
// It returns the number of users removed.
func (l *Limiter) Sweep(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for user, times := range l.windows {
		if len(times) == 0 || now.Sub(times[len(times)-1]) > l.window {
			delete(l.windows, user)
			removed++
		}
	}
	return removed
}

// Len returns the number of users currently tracked.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}
