package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"courier/pkg/security/csp"
)

func TestCSPMiddleware_SetsHeader(t *testing.T) {
	m := NewCSPMiddleware(CSPMiddlewareConfig{
		Enabled: true,
		Policy:  csp.StrictPolicy(),
	})

	handler := m.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/preferences", nil))

	got := rec.Header().Get("Content-Security-Policy")
	want := "default-src 'none'; connect-src 'self'; frame-ancestors 'none'; base-uri 'self'; form-action 'self'"
	if got != want {
		t.Errorf("Expected policy %q, got %q", want, got)
	}

	if ro := rec.Header().Get("Content-Security-Policy-Report-Only"); ro != "" {
		t.Errorf("Report-only header must not be set in enforcement mode, got %q", ro)
	}
}

func TestCSPMiddleware_NilPolicyDefaultsToStrict(t *testing.T) {
	m := NewCSPMiddleware(CSPMiddlewareConfig{Enabled: true})

	handler := m.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))

	if got := rec.Header().Get("Content-Security-Policy"); got == "" {
		t.Error("Expected strict default policy, got empty header")
	}
}

func TestCSPMiddleware_ReportOnly(t *testing.T) {
	m := NewCSPMiddleware(CSPMiddlewareConfig{
		Enabled:    true,
		Policy:     csp.StrictPolicy(),
		ReportOnly: true,
	})

	handler := m.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/preferences", nil))

	if got := rec.Header().Get("Content-Security-Policy-Report-Only"); got == "" {
		t.Error("Expected report-only header to be set")
	}
	if got := rec.Header().Get("Content-Security-Policy"); got != "" {
		t.Errorf("Enforcing header must not be set in report-only mode, got %q", got)
	}
}

func TestCSPMiddleware_Disabled(t *testing.T) {
	m := NewCSPMiddleware(CSPMiddlewareConfig{
		Enabled: false,
		Policy:  csp.StrictPolicy(),
	})

	nextCalled := false
	handler := m.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nextCalled = true
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/preferences", nil))

	if !nextCalled {
		t.Error("Next handler should be called when CSP is disabled")
	}
	if got := rec.Header().Get("Content-Security-Policy"); got != "" {
		t.Errorf("Disabled middleware must not set headers, got %q", got)
	}
}

func TestCSPMiddleware_EmptyPolicySkipsHeader(t *testing.T) {
	m := NewCSPMiddleware(CSPMiddlewareConfig{
		Enabled: true,
		Policy:  csp.NewBuilder(),
	})

	handler := m.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/preferences", nil))

	if got := rec.Header().Get("Content-Security-Policy"); got != "" {
		t.Errorf("Empty policy must not set headers, got %q", got)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, rec.Code)
	}
}
