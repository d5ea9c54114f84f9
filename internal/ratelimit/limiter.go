// Package ratelimit implements the per-viewer, per-broadcast message rate
// limiter in front of the AI reply pipeline.
//
// Two rules apply, checked in order:
//
//  1. Cooldown: a viewer must wait a configurable interval (default 3.5 s)
//     after their previous message in the same broadcast.
//  2. Sliding window: at most a configurable number of messages (default 10)
//     are accepted per rolling 60 seconds.
//
// The default [WindowStore] is in-process memory, which is only correct for a
// single-instance deployment — each replica would keep an independent view of
// the windows. Multi-instance deployments must supply a shared store.
package ratelimit

import (
	"sync"
	"time"
)

// window is the rolling observation period for the per-minute cap.
const window = 60 * time.Second

// minWindowRetry is the floor applied to the retry hint when the per-minute
// cap rejects a request, so clients never busy-loop on tiny waits.
const minWindowRetry = 1200 * time.Millisecond

// Decision is the outcome of a rate-limit check.
type Decision struct {
	// Allowed reports whether the request may proceed.
	Allowed bool

	// RetryAfter is how long the caller should wait before retrying.
	// Zero when Allowed is true.
	RetryAfter time.Duration
}

// WindowStore tracks request timestamps per key. Implementations must be
// safe for concurrent use.
type WindowStore interface {
	// Recent returns the recorded timestamps for key that are at or after
	// cutoff, oldest first.
	Recent(key string, cutoff time.Time) []time.Time

	// Record appends ts to key's window and prunes entries before cutoff.
	Record(key string, ts time.Time, cutoff time.Time)
}

// MemoryWindowStore is the in-process WindowStore. State is process-lifetime
// only and resets on restart.
type MemoryWindowStore struct {
	mu      sync.Mutex
	windows map[string][]time.Time
}

// NewMemoryWindowStore creates an empty in-process window store.
func NewMemoryWindowStore() *MemoryWindowStore {
	return &MemoryWindowStore{windows: make(map[string][]time.Time)}
}

// Recent implements [WindowStore].
func (s *MemoryWindowStore) Recent(key string, cutoff time.Time) []time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []time.Time
	for _, ts := range s.windows[key] {
		if !ts.Before(cutoff) {
			out = append(out, ts)
		}
	}
	return out
}

// Record implements [WindowStore]. Pruning happens lazily here so idle keys
// cost nothing.
func (s *MemoryWindowStore) Record(key string, ts time.Time, cutoff time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.windows[key][:0]
	for _, old := range s.windows[key] {
		if !old.Before(cutoff) {
			kept = append(kept, old)
		}
	}
	s.windows[key] = append(kept, ts)
}

// Limiter applies the cooldown and sliding-window rules over a [WindowStore].
// All methods are safe for concurrent use when the store is.
type Limiter struct {
	store        WindowStore
	cooldown     time.Duration
	maxPerMinute int
	now          func() time.Time
}

// Option is a functional option for [New].
type Option func(*Limiter)

// WithStore replaces the default in-memory window store, e.g. with a shared
// store for multi-instance deployments.
func WithStore(s WindowStore) Option {
	return func(l *Limiter) { l.store = s }
}

// WithNow overrides the clock. Intended for tests.
func WithNow(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// New creates a Limiter with the given cooldown and per-minute cap.
func New(cooldown time.Duration, maxPerMinute int, opts ...Option) *Limiter {
	l := &Limiter{
		store:        NewMemoryWindowStore(),
		cooldown:     cooldown,
		maxPerMinute: maxPerMinute,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Check applies both rules for the (userID, liveID) pair. On success the
// current timestamp is recorded in the window; rejected requests leave the
// window untouched.
func (l *Limiter) Check(userID, liveID string) Decision {
	now := l.now()
	cutoff := now.Add(-window)
	key := userID + ":" + liveID

	recent := l.store.Recent(key, cutoff)

	if n := len(recent); n > 0 {
		if since := now.Sub(recent[n-1]); since < l.cooldown {
			return Decision{RetryAfter: l.cooldown - since}
		}
	}

	if len(recent) >= l.maxPerMinute {
		retry := window - now.Sub(recent[0])
		if retry < minWindowRetry {
			retry = minWindowRetry
		}
		return Decision{RetryAfter: retry}
	}

	l.store.Record(key, now, cutoff)
	return Decision{Allowed: true}
}
