package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"courier/pkg/ratelimit"
)

// failingStore always errors, simulating a broken backend.
type failingStore struct{}

func (s *failingStore) CheckAndAdd(ctx context.Context, key string, now, cutoff time.Time, limit int) (bool, int, error) {
	return false, 0, errors.New("store unavailable")
}

func (s *failingStore) Cleanup(ctx context.Context, cutoff time.Time) error {
	return errors.New("store unavailable")
}

func (s *failingStore) KeyCount(ctx context.Context) (int, error) {
	return 0, errors.New("store unavailable")
}

// failingExtractor cannot produce an IP.
type failingExtractor struct{}

func (e *failingExtractor) ExtractIP(r *http.Request) (string, error) {
	return "", errors.New("no address")
}

func newIPLimiter(limit int, window time.Duration) *IPRateLimiter {
	return NewIPRateLimiter(
		IPRateLimiterConfig{Limit: limit, Window: window, Enabled: true},
		&RemoteAddrExtractor{},
		ratelimit.NewMemoryStore(100),
		nil,
		nil,
	)
}

func hookRequest(remoteAddr string) *http.Request {
	req := httptest.NewRequest("GET", "/messages/unsubscribe/12/34/deadbeef/", nil)
	req.RemoteAddr = remoteAddr
	return req
}

func TestIPRateLimiter_AllowsWithinLimit(t *testing.T) {
	limiter := newIPLimiter(3, time.Minute)

	handler := limiter.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusFound)
	}))

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, hookRequest("203.0.113.7:443"))

		if rec.Code != http.StatusFound {
			t.Fatalf("Request %d: expected status %d, got %d", i+1, http.StatusFound, rec.Code)
		}

		if limit := rec.Header().Get("X-RateLimit-Limit"); limit != "3" {
			t.Errorf("Request %d: expected X-RateLimit-Limit '3', got %q", i+1, limit)
		}
		if typ := rec.Header().Get("X-RateLimit-Type"); typ != "ip" {
			t.Errorf("Request %d: expected X-RateLimit-Type 'ip', got %q", i+1, typ)
		}
	}
}

func TestIPRateLimiter_DeniesOverLimit(t *testing.T) {
	limiter := newIPLimiter(2, time.Minute)

	handler := limiter.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusFound)
	}))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, hookRequest("203.0.113.7:443"))
		if rec.Code != http.StatusFound {
			t.Fatalf("Request %d should be allowed, got %d", i+1, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, hookRequest("203.0.113.7:443"))

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("Expected status %d, got %d", http.StatusTooManyRequests, rec.Code)
	}

	if retryAfter := rec.Header().Get("Retry-After"); retryAfter == "" {
		t.Error("Expected Retry-After header on 429")
	}
	if remaining := rec.Header().Get("X-RateLimit-Remaining"); remaining != "0" {
		t.Errorf("Expected X-RateLimit-Remaining '0', got %q", remaining)
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode 429 body: %v", err)
	}
	if body["error"] != "rate_limit_exceeded" {
		t.Errorf("Expected error 'rate_limit_exceeded', got %v", body["error"])
	}
	if _, ok := body["retry_after"]; !ok {
		t.Error("Expected retry_after in 429 body")
	}
}

func TestIPRateLimiter_KeysPerIP(t *testing.T) {
	limiter := newIPLimiter(1, time.Minute)

	handler := limiter.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusFound)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, hookRequest("203.0.113.7:443"))
	if rec.Code != http.StatusFound {
		t.Fatalf("First IP should be allowed, got %d", rec.Code)
	}

	// A different IP has its own budget
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, hookRequest("203.0.113.8:443"))
	if rec.Code != http.StatusFound {
		t.Fatalf("Second IP should be allowed, got %d", rec.Code)
	}

	// The first IP is now exhausted
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, hookRequest("203.0.113.7:443"))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("First IP should be denied, got %d", rec.Code)
	}
}

func TestIPRateLimiter_Disabled(t *testing.T) {
	limiter := NewIPRateLimiter(
		IPRateLimiterConfig{Limit: 1, Window: time.Minute, Enabled: false},
		&RemoteAddrExtractor{},
		ratelimit.NewMemoryStore(100),
		nil,
		nil,
	)

	handler := limiter.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusFound)
	}))

	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, hookRequest("203.0.113.7:443"))

		if rec.Code != http.StatusFound {
			t.Fatalf("Disabled limiter must pass everything, got %d", rec.Code)
		}
		if limit := rec.Header().Get("X-RateLimit-Limit"); limit != "" {
			t.Errorf("Disabled limiter must not set headers, got %q", limit)
		}
	}
}

func TestIPRateLimiter_FailsOpenOnExtractionError(t *testing.T) {
	limiter := NewIPRateLimiter(
		IPRateLimiterConfig{Limit: 1, Window: time.Minute, Enabled: true},
		&failingExtractor{},
		ratelimit.NewMemoryStore(100),
		nil,
		nil,
	)

	handler := limiter.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusFound)
	}))

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, hookRequest("garbage"))

		if rec.Code != http.StatusFound {
			t.Fatalf("Extraction failure must fail open, got %d", rec.Code)
		}
	}
}

func TestIPRateLimiter_FailsOpenOnStoreError(t *testing.T) {
	limiter := NewIPRateLimiter(
		IPRateLimiterConfig{Limit: 1, Window: time.Minute, Enabled: true},
		&RemoteAddrExtractor{},
		&failingStore{},
		nil,
		nil,
	)

	nextCalled := 0
	handler := limiter.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nextCalled++
		w.WriteHeader(http.StatusFound)
	}))

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, hookRequest("203.0.113.7:443"))

		if rec.Code != http.StatusFound {
			t.Fatalf("Store failure must fail open, got %d", rec.Code)
		}
	}
	if nextCalled != 3 {
		t.Errorf("Expected next handler called 3 times, got %d", nextCalled)
	}
}

func TestDefaultIPRateLimiterConfig(t *testing.T) {
	config := DefaultIPRateLimiterConfig()

	if config.Limit != 60 {
		t.Errorf("Expected limit 60, got %d", config.Limit)
	}
	if config.Window != time.Minute {
		t.Errorf("Expected window 1m, got %v", config.Window)
	}
	if !config.Enabled {
		t.Error("Expected enabled by default")
	}
}
