package ratelimit

import (
	"sync"
	"time"
)

// gcEvery is the Get interval between idle-entry sweeps.
const gcEvery = 4096

// Registry hands out one shared Limiter per key so that every concurrent
// check for the same key serializes on the same window. Building a fresh
// Limiter per request would give each caller its own load/append/save
// cycle over the store, letting same-key requests race past the cap and
// overwrite each other's persisted window.
//
// All limiters share one store and one attempts/window policy; a registry
// covers one action class.
type Registry struct {
	store  Store
	max    int
	window time.Duration
	opts   []Option

	mu       sync.Mutex
	limiters map[string]*entry
	gets     int
}

type entry struct {
	lim      *Limiter
	lastSeen time.Time
}

// NewRegistry builds a registry over store with the given per-key policy.
// Options are applied to every limiter the registry creates.
func NewRegistry(store Store, maxAttempts int, window time.Duration, opts ...Option) *Registry {
	return &Registry{
		store:    store,
		max:      maxAttempts,
		window:   window,
		opts:     opts,
		limiters: make(map[string]*entry),
	}
}

// Get returns the shared limiter for key, creating it on first use. The
// in-memory window state survives between requests; evicted entries reload
// from the store, so eviction never forgets persisted attempts.
func (r *Registry) Get(key string) *Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.gets++
	if r.gets%gcEvery == 0 {
		r.sweep()
	}

	e, ok := r.limiters[key]
	if !ok {
		e = &entry{lim: New(r.store, key, r.max, r.window, r.opts...)}
		r.limiters[key] = e
	}
	e.lastSeen = time.Now()
	return e.lim
}

// sweep drops entries idle for longer than the window. Their persisted
// windows have fully expired, so a later Get rebuilds an equivalent
// limiter from the store. Caller holds r.mu.
func (r *Registry) sweep() {
	cutoff := time.Now().Add(-r.window)
	for key, e := range r.limiters {
		if e.lastSeen.Before(cutoff) {
			delete(r.limiters, key)
		}
	}
}
