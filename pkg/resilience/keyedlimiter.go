package resilience

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// KeyedLimiter maintains one token bucket per key. The send pipeline uses
// it keyed by sender id; the HTTP layer uses it keyed by client IP.
type KeyedLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	expiry  time.Duration
	entries map[string]*limiterEntry
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewKeyedLimiter creates a limiter allowing limit events per second with
// the given burst per key. Idle keys are dropped after expiry.
func NewKeyedLimiter(limit rate.Limit, burst int, expiry time.Duration) *KeyedLimiter {
	kl := &KeyedLimiter{
		limit:   limit,
		burst:   burst,
		expiry:  expiry,
		entries: make(map[string]*limiterEntry),
	}
	go kl.cleanup()
	return kl
}

// Allow reports whether an event for key may proceed now.
func (kl *KeyedLimiter) Allow(key string) bool {
	return kl.get(key).Allow()
}

func (kl *KeyedLimiter) get(key string) *rate.Limiter {
	kl.mu.Lock()
	defer kl.mu.Unlock()

	e, ok := kl.entries[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(kl.limit, kl.burst)}
		kl.entries[key] = e
	}
	e.lastSeen = time.Now()
	return e.limiter
}

func (kl *KeyedLimiter) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		kl.mu.Lock()
		for k, e := range kl.entries {
			if time.Since(e.lastSeen) > kl.expiry {
				delete(kl.entries, k)
			}
		}
		kl.mu.Unlock()
	}
}
