// Package scheduler provides politeness pacing for crawl workers: a per-host
// minimum inter-request interval and an optional global request-rate ceiling.
package scheduler

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// HostRateLimiter spaces successive requests to the same host by at least the
// configured delay. It keeps a next-allowed timestamp per host; the map update
// happens under the lock, the sleep itself outside it, so requests to
// different hosts never block each other.
type HostRateLimiter struct {
	mu    sync.Mutex
	next  map[string]time.Time
	delay time.Duration

	// Injectable for deterministic tests.
	now   func() time.Time
	sleep func(time.Duration)
}

// NewHostRateLimiter creates a limiter with the given per-host delay.
// A zero or negative delay makes WaitTurn a no-op.
func NewHostRateLimiter(delay time.Duration) *HostRateLimiter {
	return &HostRateLimiter{
		next:  make(map[string]time.Time),
		delay: delay,
		now:   time.Now,
		sleep: time.Sleep,
	}
}

// WaitTurn blocks until a request to host is permitted, then reserves the
// caller's slot. Two concurrent calls for the same host are thereby spaced by
// at least the configured delay.
func (r *HostRateLimiter) WaitTurn(host string) {
	if r.delay <= 0 {
		return
	}
	r.mu.Lock()
	now := r.now()
	nextAllowed := r.next[host]
	var sleepFor time.Duration
	if nextAllowed.After(now) {
		sleepFor = nextAllowed.Sub(now)
	}
	base := now
	if nextAllowed.After(now) {
		base = nextAllowed
	}
	r.next[host] = base.Add(r.delay)
	r.mu.Unlock()
	if sleepFor > 0 {
		r.sleep(sleepFor)
	}
}

// GlobalLimiter caps the aggregate request rate across all hosts.
type GlobalLimiter struct {
	limiter *rate.Limiter
}

// NewGlobalLimiter creates a limiter allowing rps requests per second.
// A zero or negative rps returns nil, which disables the ceiling.
func NewGlobalLimiter(rps float64) *GlobalLimiter {
	if rps <= 0 {
		return nil
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return &GlobalLimiter{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Wait blocks until the next request is allowed under the global rate.
func (g *GlobalLimiter) Wait(ctx context.Context) error {
	if g == nil {
		return nil
	}
	return g.limiter.Wait(ctx)
}
