// Package ratelimit provides a per-identity sliding-window request limiter
// for the check-in path. State is instance-local: exceeding the nominal limit
// across instances only delays a caller, it never corrupts admission state.
package ratelimit

import (
	"sync"
	"time"
)

// Limiter admits at most max requests per identity within the trailing window.
type Limiter interface {
	// Allow reports whether the identity may proceed at time now, and if so
	// records the request against its window.
	Allow(identity string, now time.Time) bool
}

// sweepEvery is how many Allow calls pass between full sweeps of the log.
const sweepEvery = 256

// SlidingWindow is a sliding-window-log Limiter. Safe for concurrent use;
// two simultaneous calls for the same identity are serialized so the limit
// cannot be overshot.
type SlidingWindow struct {
	mu     sync.Mutex
	max    int
	window time.Duration
	log    map[string][]time.Time
	ops    int
}

// NewSlidingWindow returns a limiter admitting max requests per window.
// max <= 0 or window <= 0 fall back to 3 requests per minute, the product's
// check-in budget.
func NewSlidingWindow(max int, window time.Duration) *SlidingWindow {
	if max <= 0 {
		max = 3
	}
	if window <= 0 {
		window = time.Minute
	}
	return &SlidingWindow{
		max:    max,
		window: window,
		log:    make(map[string][]time.Time),
	}
}

// Allow prunes timestamps older than the window, then admits the request iff
// fewer than max remain. Admitted requests are appended to the identity's log.
// Every sweepEvery calls the whole log is swept and identities with no
// in-window timestamps are dropped, so memory stays bounded by the active set.
func (l *SlidingWindow) Allow(identity string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := now.Add(-l.window)
	l.ops++
	if l.ops >= sweepEvery {
		l.ops = 0
		l.sweepLocked(cutoff)
	}

	stamps := l.log[identity]
	kept := stamps[:0]
	for _, ts := range stamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= l.max {
		l.log[identity] = kept
		return false
	}

	l.log[identity] = append(kept, now)
	return true
}

// sweepLocked drops identities whose newest timestamp has left the window.
// Timestamps are appended in order, so the last entry is the newest.
func (l *SlidingWindow) sweepLocked(cutoff time.Time) {
	for id, stamps := range l.log {
		if len(stamps) == 0 || !stamps[len(stamps)-1].After(cutoff) {
			delete(l.log, id)
		}
	}
}

// Size returns the number of identities currently tracked. Test hook.
func (l *SlidingWindow) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.log)
}
