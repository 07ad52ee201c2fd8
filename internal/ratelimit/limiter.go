// Package ratelimit implements a sliding-window counter for gating abuse-prone
// write actions (report submission, comment posting) before they reach the
// notification pipeline.
//
// Unlike a fixed-bucket counter, only actions inside the trailing window count
// toward the limit: expired timestamps are evicted on every check and never
// count again. Window state is persisted through a Store after every
// successful admission so the count survives restarts.
//
// This limiter is an availability/UX affordance, not a security boundary.
// Server-side authorization remains the real enforcement; accordingly the
// limiter fails open on store read errors and never blocks a decision on a
// failed write.
package ratelimit

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Store persists window state per action key. Implementations must treat a
// missing key as an empty window.
type Store interface {
	Load(key string) ([]time.Time, error)
	Save(key string, stamps []time.Time) error
}

// Option configures optional Limiter behavior.
type Option func(*Limiter)

// WithClock injects the time source. Tests use this to drive the window.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// WithOnLimitExceeded registers a side-effect callback invoked once per
// rejected Allow call with the time until the window frees a slot.
func WithOnLimitExceeded(fn func(resetIn time.Duration)) Option {
	return func(l *Limiter) { l.onExceeded = fn }
}

// Limiter is a sliding-window counter for one action key. All methods are
// safe for concurrent use; checks for the same key serialize on an internal
// mutex so no admission is lost between concurrent callers.
type Limiter struct {
	store       Store
	key         string
	maxAttempts int
	window      time.Duration

	now        func() time.Time
	onExceeded func(resetIn time.Duration)

	mu     sync.Mutex
	stamps []time.Time
	loaded bool
}

// New constructs a Limiter for key admitting at most maxAttempts actions per
// trailing window. A blank key or non-positive maxAttempts yields a limiter
// that deterministically rejects everything — misconfiguration surfaces to
// the caller instead of panicking.
func New(store Store, key string, maxAttempts int, window time.Duration, opts ...Option) *Limiter {
	l := &Limiter{
		store:       store,
		key:         key,
		maxAttempts: maxAttempts,
		window:      window,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// misconfigured reports whether the limiter can never admit anything.
func (l *Limiter) misconfigured() bool {
	return l.key == "" || l.maxAttempts <= 0 || l.window <= 0
}

// load pulls persisted state on first use. A read or parse failure is logged
// and treated as an empty window (fail open): a broken local store must not
// lock users out of a non-critical limiter.
func (l *Limiter) load() {
	if l.loaded {
		return
	}
	l.loaded = true
	stamps, err := l.store.Load(l.key)
	if err != nil {
		log.Warn().Err(err).Str("key", l.key).Msg("rate limit state unreadable, starting empty")
		return
	}
	l.stamps = stamps
}

// evict drops timestamps older than now-window. Caller holds l.mu.
func (l *Limiter) evict(now time.Time) {
	cutoff := now.Add(-l.window)
	kept := l.stamps[:0]
	for _, ts := range l.stamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	l.stamps = kept
}

// Allow checks the window and, when below the limit, records the current
// instant and persists the new state. A rejected call is NOT recorded — being
// limited must not extend the limitation — and fires the onLimitExceeded
// callback once.
func (l *Limiter) Allow() bool {
	if l.misconfigured() {
		if l.onExceeded != nil {
			l.onExceeded(l.window)
		}
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.load()
	now := l.now()
	l.evict(now)

	if len(l.stamps) >= l.maxAttempts {
		reset := l.resetInLocked(now)
		if l.onExceeded != nil {
			l.onExceeded(reset)
		}
		return false
	}

	l.stamps = append(l.stamps, now)
	if err := l.store.Save(l.key, l.stamps); err != nil {
		// The in-memory decision stands; only durability across restarts
		// degrades for this key.
		log.Warn().Err(err).Str("key", l.key).Msg("rate limit state not persisted")
	}
	return true
}

// Limited reports whether the next Allow would be rejected, without mutating
// window state. Safe to poll for UI display.
func (l *Limiter) Limited() bool {
	return l.Remaining() == 0
}

// Remaining returns how many admissions are left in the current window,
// never negative, without mutating persisted state.
func (l *Limiter) Remaining() int {
	if l.misconfigured() {
		return 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.load()
	l.evict(l.now())
	if rem := l.maxAttempts - len(l.stamps); rem > 0 {
		return rem
	}
	return 0
}

// ResetIn returns the time until the oldest counted timestamp leaves the
// window. It is computed even when not limited so callers can render
// "N left, resets in M"; an empty window returns 0.
func (l *Limiter) ResetIn() time.Duration {
	if l.misconfigured() {
		return l.window
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.load()
	now := l.now()
	l.evict(now)
	return l.resetInLocked(now)
}

// resetInLocked computes windowMs - (now - oldest) for the surviving stamps.
// Caller holds l.mu and has already evicted.
func (l *Limiter) resetInLocked(now time.Time) time.Duration {
	if len(l.stamps) == 0 {
		return 0
	}
	oldest := l.stamps[0]
	for _, ts := range l.stamps[1:] {
		if ts.Before(oldest) {
			oldest = ts
		}
	}
	d := l.window - now.Sub(oldest)
	if d < 0 {
		return 0
	}
	return d
}
