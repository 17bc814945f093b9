package http

import (
	"sync"
	"sync/atomic"
	"time"
)

const (
	rateLimitPerWindow = 120
	rateLimitWindow    = time.Minute
	staleClientAfter   = 10 * time.Minute
)

// rateLimiter throttles mutating requests per client IP with a fixed
// window counter. State lives in memory; a restart resets all counters.
type rateLimiter struct {
	mu       sync.Mutex
	counters map[string]*windowCounter

	stopCleanup  chan struct{}
	shutdownOnce sync.Once
}

type windowCounter struct {
	windowStart time.Time
	seen        int
}

func newRateLimiter() *rateLimiter {
	rl := &rateLimiter{
		counters:    make(map[string]*windowCounter),
		stopCleanup: make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

// allow records one request from clientIP and reports whether it is
// still inside the per-window limit.
func (rl *rateLimiter) allow(clientIP string, metrics *securityMetrics) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	counter, ok := rl.counters[clientIP]
	if !ok || now.Sub(counter.windowStart) > rateLimitWindow {
		rl.counters[clientIP] = &windowCounter{windowStart: now, seen: 1}
		return true
	}

	counter.seen++
	if counter.seen > rateLimitPerWindow {
		if metrics != nil {
			atomic.AddInt64(&metrics.rateLimitHits, 1)
		}
		return false
	}
	return true
}

// cleanupLoop drops counters for clients that have gone quiet so the
// map doesn't grow without bound.
func (rl *rateLimiter) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.dropStale()
		case <-rl.stopCleanup:
			return
		}
	}
}

func (rl *rateLimiter) dropStale() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-staleClientAfter)
	for ip, counter := range rl.counters {
		if counter.windowStart.Before(cutoff) {
			delete(rl.counters, ip)
		}
	}
}

func (rl *rateLimiter) stop() {
	rl.shutdownOnce.Do(func() {
		close(rl.stopCleanup)
	})
}
