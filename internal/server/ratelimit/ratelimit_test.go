package ratelimit

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

// clock is a settable time source for a Limiter.
type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func withClock(l *Limiter) *clock {
	c := &clock{t: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	l.now = c.now
	return c
}

func TestBucket_Take(t *testing.T) {
	start := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	b := newBucket(10, 1.0, start) // 10 tokens, 1 per second

	for i := 0; i < 10; i++ {
		if ok, _, _ := b.take(start); !ok {
			t.Errorf("Expected request %d to be allowed", i+1)
		}
	}
	ok, remaining, full := b.take(start)
	if ok {
		t.Error("Expected 11th request to be denied")
	}
	if remaining != 0 {
		t.Errorf("Expected 0 remaining, got %d", remaining)
	}
	if want := start.Add(10 * time.Second); !full.Equal(want) {
		t.Errorf("Expected bucket full at %v, got %v", want, full)
	}

	// one second refills one token
	if ok, _, _ := b.take(start.Add(time.Second)); !ok {
		t.Error("Expected request to be allowed after refill")
	}
	if ok, _, _ := b.take(start.Add(time.Second)); ok {
		t.Error("Expected request to be denied after spending the refilled token")
	}

	// refill never exceeds capacity
	_, remaining, _ = b.take(start.Add(time.Hour))
	if remaining != 9 {
		t.Errorf("Expected 9 remaining after a long idle, got %d", remaining)
	}
}

func TestLimiter_Allow(t *testing.T) {
	config := &Config{
		Enabled:       true,
		DefaultLimit:  10,
		DefaultWindow: time.Minute,
	}
	limiter := NewLimiter(config)
	defer limiter.Stop()

	clientID := "127.0.0.1"
	endpoint := "/test"
	method := "GET"

	withClock(limiter)

	// Should allow requests up to limit
	for i := 0; i < 10; i++ {
		allowed, rateInfo := limiter.Allow(clientID, endpoint, method)
		if !allowed {
			t.Errorf("Expected request %d to be allowed", i+1)
		}
		if rateInfo.Limit != 10 {
			t.Errorf("Expected limit 10, got %d", rateInfo.Limit)
		}
		if rateInfo.Remaining != 9-i {
			t.Errorf("Expected remaining %d, got %d", 9-i, rateInfo.Remaining)
		}
	}

	// 11th request should be denied
	allowed, rateInfo := limiter.Allow(clientID, endpoint, method)
	if allowed {
		t.Error("Expected 11th request to be denied")
	}
	if rateInfo.Remaining != 0 {
		t.Errorf("Expected remaining 0, got %d", rateInfo.Remaining)
	}
	// an empty bucket refills over the whole window
	if rateInfo.RetryAfter < 59*time.Second || rateInfo.RetryAfter > time.Minute {
		t.Errorf("Expected retry after about a minute, got %v", rateInfo.RetryAfter)
	}
}

func TestLimiter_Whitelist(t *testing.T) {
	config := &Config{
		Enabled:       true,
		DefaultLimit:  1,
		DefaultWindow: time.Minute,
		Whitelist:     map[string]bool{"127.0.0.1": true},
	}
	limiter := NewLimiter(config)
	defer limiter.Stop()

	// Whitelisted IP should always be allowed
	for i := 0; i < 100; i++ {
		allowed, rateInfo := limiter.Allow("127.0.0.1", "/test", "GET")
		if !allowed {
			t.Errorf("Expected whitelisted request %d to be allowed", i+1)
		}
		if rateInfo.Limit != 0 {
			t.Errorf("Expected limit 0 for whitelisted, got %d", rateInfo.Limit)
		}
	}
}

func TestLimiter_Disabled(t *testing.T) {
	config := &Config{
		Enabled: false,
	}
	limiter := NewLimiter(config)
	defer limiter.Stop()

	// When disabled, all requests should be allowed
	for i := 0; i < 100; i++ {
		allowed, rateInfo := limiter.Allow("127.0.0.1", "/test", "GET")
		if !allowed {
			t.Errorf("Expected request %d to be allowed when disabled", i+1)
		}
		if rateInfo.Limit != 0 {
			t.Errorf("Expected limit 0 when disabled, got %d", rateInfo.Limit)
		}
	}
}

func TestLimiter_EndpointSpecific(t *testing.T) {
	config := &Config{
		Enabled:       true,
		DefaultLimit:  1000,
		DefaultWindow: time.Minute,
		EndpointConfigs: []EndpointConfig{
			{Path: "/api/resumes/collect", Method: "POST", Limit: 5, Window: time.Hour, Burst: 5},
		},
	}
	limiter := NewLimiter(config)
	defer limiter.Stop()

	clientID := "127.0.0.1"

	// Test endpoint-specific limit (burst allows 5 immediately)
	for i := 0; i < 5; i++ {
		allowed, rateInfo := limiter.Allow(clientID, "/api/resumes/collect", "POST")
		if !allowed {
			t.Errorf("Expected request %d to be allowed", i+1)
		}
		if rateInfo.Limit != 5 {
			t.Errorf("Expected limit 5, got %d", rateInfo.Limit)
		}
	}

	// 6th request should be denied (limit reached)
	allowed, rateInfo := limiter.Allow(clientID, "/api/resumes/collect", "POST")
	if allowed {
		t.Error("Expected 6th request to be denied")
	}
	if rateInfo.Limit != 5 {
		t.Errorf("Expected limit 5, got %d", rateInfo.Limit)
	}

	// Different endpoint should use default limit
	allowed, rateInfo = limiter.Allow(clientID, "/api/resumes", "GET")
	if !allowed {
		t.Error("Expected different endpoint to be allowed")
	}
	if rateInfo.Limit != 1000 {
		t.Errorf("Expected default limit 1000, got %d", rateInfo.Limit)
	}
}

func TestLimiter_Concurrent(t *testing.T) {
	config := &Config{
		Enabled:       true,
		DefaultLimit:  100,
		DefaultWindow: time.Minute,
	}
	limiter := NewLimiter(config)
	defer limiter.Stop()

	clientID := "127.0.0.1"
	endpoint := "/test"
	method := "GET"

	var wg sync.WaitGroup
	allowedCount := 0
	var mu sync.Mutex

	// Make 200 concurrent requests (should only allow 100)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			allowed, _ := limiter.Allow(clientID, endpoint, method)
			if allowed {
				mu.Lock()
				allowedCount++
				mu.Unlock()
			}
		}()
	}

	wg.Wait()

	// Should have allowed exactly 100 requests
	if allowedCount != 100 {
		t.Errorf("Expected 100 allowed requests, got %d", allowedCount)
	}
}

func TestLimiter_Sweep(t *testing.T) {
	config := &Config{
		Enabled:       true,
		DefaultLimit:  10,
		DefaultWindow: time.Minute,
		IdleTTL:       time.Hour,
	}
	limiter := NewLimiter(config)
	defer limiter.Stop()
	c := withClock(limiter)

	for i := 0; i < 10; i++ {
		clientID := fmt.Sprintf("127.0.0.%d", i+1)
		if allowed, _ := limiter.Allow(clientID, "/test", "GET"); !allowed {
			t.Errorf("Expected request from %s to be allowed", clientID)
		}
	}

	// half the clients come back before the others go idle
	c.advance(40 * time.Minute)
	for i := 0; i < 5; i++ {
		limiter.Allow(fmt.Sprintf("127.0.0.%d", i+1), "/test", "GET")
	}
	c.advance(30 * time.Minute)

	if dropped := limiter.sweep(); dropped != 5 {
		t.Errorf("Expected 5 idle buckets dropped, got %d", dropped)
	}
	if len(limiter.buckets) != 5 {
		t.Errorf("Expected 5 buckets left, got %d", len(limiter.buckets))
	}

	limiter.Stop()
	limiter.Stop()
}

func TestLimiter_Burst(t *testing.T) {
	config := &Config{
		Enabled:       true,
		DefaultLimit:  10,
		DefaultWindow: time.Minute,
		EndpointConfigs: []EndpointConfig{
			{Path: "/burst", Method: "POST", Limit: 10, Window: time.Minute, Burst: 5},
		},
	}
	limiter := NewLimiter(config)
	defer limiter.Stop()

	clientID := "127.0.0.1"

	// Should allow burst of 5 requests immediately
	for i := 0; i < 5; i++ {
		allowed, _ := limiter.Allow(clientID, "/burst", "POST")
		if !allowed {
			t.Errorf("Expected burst request %d to be allowed", i+1)
		}
	}

	// 6th request should be denied (burst exhausted, no refill yet)
	allowed, _ := limiter.Allow(clientID, "/burst", "POST")
	if allowed {
		t.Error("Expected request after burst to be denied")
	}
}

func TestNewLimiter_NilConfig(t *testing.T) {
	limiter := NewLimiter(nil)
	defer limiter.Stop()

	if limiter == nil {
		t.Error("Expected limiter to be created with nil config")
	}

	// Should use defaults
	allowed, rateInfo := limiter.Allow("127.0.0.1", "/test", "GET")
	if !allowed {
		t.Error("Expected request to be allowed with default config")
	}
	if rateInfo.Limit != 1000 {
		t.Errorf("Expected default limit 1000, got %d", rateInfo.Limit)
	}
}

func TestLimiter_PatternSharesBucket(t *testing.T) {
	config := &Config{
		Enabled:       true,
		DefaultLimit:  1000,
		DefaultWindow: time.Minute,
		EndpointConfigs: []EndpointConfig{
			{Path: "/api/resumes/{id}/review", Method: "POST", Limit: 2, Window: time.Hour, Burst: 2},
		},
	}
	limiter := NewLimiter(config)
	defer limiter.Stop()

	clientID := "10.0.0.1"
	paths := []string{
		"/api/resumes/6f1c9a52-8f0a-4d57-9d0e-0c1d2e3f4a5b/review",
		"/api/resumes/0b7e4c11-2222-4a3b-8c9d-112233445566/review",
	}
	for _, p := range paths {
		if allowed, _ := limiter.Allow(clientID, p, "POST"); !allowed {
			t.Errorf("Expected %s to be allowed", p)
		}
	}

	allowed, rateInfo := limiter.Allow(clientID, "/api/resumes/aaaaaaaa-2222-4a3b-8c9d-112233445566/review", "POST")
	if allowed {
		t.Error("Expected third review across different ids to be denied")
	}
	if rateInfo.Limit != 2 {
		t.Errorf("Expected limit 2, got %d", rateInfo.Limit)
	}

	// Another client has its own bucket
	if allowed, _ := limiter.Allow("10.0.0.2", paths[0], "POST"); !allowed {
		t.Error("Expected other client to be allowed")
	}
}

func TestMatchEndpoint(t *testing.T) {
	configs := DefaultEndpointConfigs()

	tests := []struct {
		name      string
		path      string
		method    string
		wantPath  string
		wantLimit int
		wantNil   bool
	}{
		{name: "health is unlimited", path: "/health", method: "GET", wantLimit: 0},
		{name: "log stream is unlimited", path: "/api/logs/stream", method: "GET", wantLimit: 0},
		{name: "collect exact", path: "/api/resumes/collect", method: "POST", wantPath: "/api/resumes/collect", wantLimit: 10},
		{name: "review pattern", path: "/api/resumes/abc/review", method: "POST", wantPath: "/api/resumes/{id}/review", wantLimit: 60},
		{name: "status pattern", path: "/api/resumes/abc/status", method: "PATCH", wantPath: "/api/resumes/{id}/status", wantLimit: 120},
		{name: "delete prefix", path: "/api/resumes/abc/permanent", method: "DELETE", wantPath: "/api/resumes/", wantLimit: 120},
		{name: "method must match", path: "/api/resumes/abc/review", method: "GET", wantNil: true},
		{name: "pattern needs same depth", path: "/api/resumes/abc/review/extra", method: "POST", wantNil: true},
		{name: "empty segment does not match", path: "/api/resumes//review", method: "POST", wantNil: true},
		{name: "unknown read", path: "/api/job-postings", method: "GET", wantNil: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MatchEndpoint(tt.path, tt.method, configs)
			if tt.wantNil {
				if got != nil {
					t.Errorf("Expected no match, got %+v", got)
				}
				return
			}
			if got == nil {
				t.Fatal("Expected a match, got nil")
			}
			if got.Path != tt.wantPath {
				t.Errorf("Expected path %q, got %q", tt.wantPath, got.Path)
			}
			if got.Limit != tt.wantLimit {
				t.Errorf("Expected limit %d, got %d", tt.wantLimit, got.Limit)
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("RATE_LIMIT_DEFAULT_LIMIT", "42")
	t.Setenv("RATE_LIMIT_WHITELIST", "127.0.0.1, 10.0.0.9")
	t.Setenv("RATE_LIMIT_IDLE_TTL", "10m")

	config := LoadConfig(true)
	if !config.Enabled {
		t.Error("Expected config to be enabled")
	}
	if config.DefaultLimit != 42 {
		t.Errorf("Expected default limit 42, got %d", config.DefaultLimit)
	}
	if config.IdleTTL != 10*time.Minute {
		t.Errorf("Expected idle TTL 10m, got %v", config.IdleTTL)
	}
	if !config.Whitelist["10.0.0.9"] {
		t.Error("Expected 10.0.0.9 to be whitelisted")
	}
	if len(config.EndpointConfigs) == 0 {
		t.Error("Expected endpoint configs")
	}

	if LoadConfig(false).Enabled {
		t.Error("Expected disabled config")
	}
}
