package ratelimit

import (
	"sync"
	"time"
)

// Token buckets keyed by caller-chosen strings. Guards the manual
// refresh endpoint per bot in front of the coordinator's cooldown.
type bucket struct {
	tokens     float64
	capacity   float64
	refillRate float64 // tokens per second
	last       time.Time
}

type Limiter struct {
	mu        sync.Mutex
	m         map[string]*bucket
	lastPrune time.Time
}

const pruneAfter = 10 * time.Minute

func New() *Limiter {
	return &Limiter{m: make(map[string]*bucket), lastPrune: time.Now()}
}

// Allow returns true if one token can be consumed for key.
func (l *Limiter) Allow(key string, capacity, refillPerSec float64) bool {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.m[key]
	if !ok {
		b = &bucket{tokens: capacity, capacity: capacity, refillRate: refillPerSec, last: now}
		l.m[key] = b
	}

	elapsed := now.Sub(b.last).Seconds()
	if elapsed > 0 {
		b.tokens += elapsed * b.refillRate
		if b.tokens > b.capacity {
			b.tokens = b.capacity
		}
		b.last = now
	}

	if now.Sub(l.lastPrune) > pruneAfter {
		l.prune(now)
	}

	if b.tokens >= 1 {
		b.tokens -= 1
		return true
	}
	return false
}

// prune drops buckets idle long enough to be full again, so one-off
// keys don't pile up. Caller holds the lock.
func (l *Limiter) prune(now time.Time) {
	for key, b := range l.m {
		if now.Sub(b.last) > pruneAfter {
			delete(l.m, key)
		}
	}
	l.lastPrune = now
}
