package http

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"
)

func TestRateLimiterAllowsUpToLimit(t *testing.T) {
	rl := newRateLimiter()
	defer rl.stop()
	metrics := &securityMetrics{}

	for i := 0; i < rateLimitPerWindow; i++ {
		if !rl.allow("10.0.0.1", metrics) {
			t.Fatalf("request %d denied, want all %d allowed", i+1, rateLimitPerWindow)
		}
	}
	if rl.allow("10.0.0.1", metrics) {
		t.Error("request over the limit allowed")
	}
	if got := atomic.LoadInt64(&metrics.rateLimitHits); got != 1 {
		t.Errorf("rateLimitHits = %d, want 1", got)
	}

	// A different client has its own counter.
	if !rl.allow("10.0.0.2", metrics) {
		t.Error("fresh client denied")
	}
}

func TestRateLimiterWindowReset(t *testing.T) {
	rl := newRateLimiter()
	defer rl.stop()

	for i := 0; i <= rateLimitPerWindow; i++ {
		rl.allow("10.0.0.1", nil)
	}
	if rl.allow("10.0.0.1", nil) {
		t.Fatal("exhausted client allowed within window")
	}

	rl.mu.Lock()
	rl.counters["10.0.0.1"].windowStart = time.Now().Add(-2 * rateLimitWindow)
	rl.mu.Unlock()

	if !rl.allow("10.0.0.1", nil) {
		t.Error("client denied after window expired")
	}
}

func TestRateLimiterDropStale(t *testing.T) {
	rl := newRateLimiter()
	defer rl.stop()

	for i := 0; i < 5; i++ {
		rl.allow(fmt.Sprintf("10.0.0.%d", i), nil)
	}

	rl.mu.Lock()
	rl.counters["10.0.0.0"].windowStart = time.Now().Add(-2 * staleClientAfter)
	rl.mu.Unlock()

	rl.dropStale()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if _, ok := rl.counters["10.0.0.0"]; ok {
		t.Error("stale counter survived cleanup")
	}
	if len(rl.counters) != 4 {
		t.Errorf("counters = %d, want 4", len(rl.counters))
	}
}
