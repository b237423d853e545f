// Package ratelimit holds per-key token buckets backed by
// golang.org/x/time/rate. It is shared by the HTTP middleware (keyed by
// client IP) and the bot dispatcher (keyed by Telegram user id).
//
// Buckets are created on demand. Idle buckets are evicted opportunistically
// every gcEvery lookups so memory stays bounded without a background
// goroutine. The limiter is process-local.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultTTL = 10 * time.Minute
	gcEvery    = 5000
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Keyed is a set of token buckets indexed by an arbitrary string key.
// It is safe for concurrent use.
type Keyed struct {
	rps   rate.Limit
	burst int
	ttl   time.Duration
	now   func() time.Time

	mu       sync.Mutex
	visitors map[string]*visitor
	lookups  uint64
}

// Option customizes a Keyed limiter.
type Option func(*Keyed)

// WithTTL sets how long an untouched bucket survives before eviction.
func WithTTL(d time.Duration) Option {
	return func(k *Keyed) {
		if d > 0 {
			k.ttl = d
		}
	}
}

// WithClock overrides the time source. Tests only.
func WithClock(now func() time.Time) Option {
	return func(k *Keyed) { k.now = now }
}

// New returns a limiter granting rps tokens per second per key with the
// given burst. Burst values <= 0 are coerced to 1.
func New(rps float64, burst int, opts ...Option) *Keyed {
	if burst <= 0 {
		burst = 1
	}
	k := &Keyed{
		rps:      rate.Limit(rps),
		burst:    burst,
		ttl:      defaultTTL,
		now:      time.Now,
		visitors: make(map[string]*visitor),
	}
	for _, o := range opts {
		o(k)
	}
	return k
}

// Allow consumes one token from key's bucket and reports whether one was
// available.
func (k *Keyed) Allow(key string) bool {
	return k.get(key).AllowN(k.now(), 1)
}

// Len returns the number of live buckets.
func (k *Keyed) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.visitors)
}

// get returns the bucket for key, creating it if absent. GC runs before the
// lookup so a stale bucket is evicted even when it is the one requested.
func (k *Keyed) get(key string) *rate.Limiter {
	now := k.now()

	k.mu.Lock()
	defer k.mu.Unlock()

	k.lookups++
	if k.lookups >= gcEvery {
		for id, v := range k.visitors {
			if now.Sub(v.lastSeen) >= k.ttl {
				delete(k.visitors, id)
			}
		}
		k.lookups = 0
	}

	if v, ok := k.visitors[key]; ok {
		v.lastSeen = now
		return v.limiter
	}
	lim := rate.NewLimiter(k.rps, k.burst)
	k.visitors[key] = &visitor{limiter: lim, lastSeen: now}
	return lim
}
