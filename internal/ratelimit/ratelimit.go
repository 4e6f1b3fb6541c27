// Package ratelimit implements a continuous-refill token bucket, adapted
// from the teacher's per-endpoint-category Polymarket rate limiter into a
// per-principal limiter for the order admission REST surface.
package ratelimit

import (
	"sync"
	"time"
)

// TokenBucket is a token-bucket rate limiter with continuous refill.
type TokenBucket struct {
	mu       sync.Mutex
	tokens   float64
	capacity float64
	rate     float64
	lastTime time.Time
}

// NewTokenBucket creates a bucket with the given burst capacity and
// steady-state refill rate (tokens per second).
func NewTokenBucket(capacity, ratePerSecond float64) *TokenBucket {
	return &TokenBucket{
		tokens:   capacity,
		capacity: capacity,
		rate:     ratePerSecond,
		lastTime: time.Now(),
	}
}

// Allow attempts to take one token without blocking. Returns false if none
// are available, which callers turn into a 429 at the API boundary.
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(tb.lastTime).Seconds()
	tb.tokens += elapsed * tb.rate
	if tb.tokens > tb.capacity {
		tb.tokens = tb.capacity
	}
	tb.lastTime = now

	if tb.tokens >= 1 {
		tb.tokens--
		return true
	}
	return false
}

// PerPrincipal lazily creates one bucket per principal, sized uniformly.
type PerPrincipal struct {
	mu       sync.Mutex
	buckets  map[string]*TokenBucket
	capacity float64
	rate     float64
}

// NewPerPrincipal creates a limiter family sharing one capacity/rate.
func NewPerPrincipal(capacity, ratePerSecond float64) *PerPrincipal {
	return &PerPrincipal{
		buckets:  make(map[string]*TokenBucket),
		capacity: capacity,
		rate:     ratePerSecond,
	}
}

// Allow checks and consumes a token for principalID, creating its bucket on
// first use.
func (p *PerPrincipal) Allow(principalID string) bool {
	p.mu.Lock()
	b, ok := p.buckets[principalID]
	if !ok {
		b = NewTokenBucket(p.capacity, p.rate)
		p.buckets[principalID] = b
	}
	p.mu.Unlock()
	return b.Allow()
}
