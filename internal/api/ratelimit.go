package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/ashureev/wms-askbot/internal/identity"
	"github.com/jonboulle/clockwork"
)

// RateLimiter implements a sliding-window limit per anonymous user.
// The key is the anon id only, not anon:tab, so opening more tabs does not
// raise the limit. A nil *RateLimiter allows everything.
type RateLimiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	limit    int
	window   time.Duration
	clock    clockwork.Clock
}

// NewRateLimiter creates a limiter allowing limit requests per window.
func NewRateLimiter(limit int, window time.Duration, clock clockwork.Clock) *RateLimiter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
		clock:    clock,
	}
}

// Allow checks if a request is allowed for the given key and records it.
func (r *RateLimiter) Allow(key string) bool {
	if r == nil || r.limit <= 0 {
		return true
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	recent := r.recent(key, now)
	if len(recent) >= r.limit {
		r.requests[key] = recent
		return false
	}

	r.requests[key] = append(recent, now)
	return true
}

// Start evicts idle keys every window until ctx ends.
func (r *RateLimiter) Start(ctx context.Context) {
	go func() {
		ticker := r.clock.NewTicker(r.window)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.Chan():
				r.evict()
			}
		}
	}()
}

func (r *RateLimiter) evict() {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	for key := range r.requests {
		if fresh := r.recent(key, now); len(fresh) == 0 {
			delete(r.requests, key)
		} else {
			r.requests[key] = fresh
		}
	}
}

// recent returns key's requests inside the window ending at now.
// Callers hold r.mu.
func (r *RateLimiter) recent(key string, now time.Time) []time.Time {
	cutoff := now.Add(-r.window)
	var fresh []time.Time
	for _, t := range r.requests[key] {
		if t.After(cutoff) {
			fresh = append(fresh, t)
		}
	}
	return fresh
}

func (r *RateLimiter) keys() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.requests)
}

// rateLimitKey identifies the caller for throttling.
func rateLimitKey(req *http.Request) string {
	if id := identity.AnonIDFromContext(req.Context()); id != "" {
		return id
	}
	return identity.IPFromRequest(req)
}
