package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
)

// testConfig trips at a 60% failure rate over at least five calls, with a
// short open timeout so half-open transitions stay testable.
func testConfig() Config {
	return Config{
		Name:             "test-circuit",
		MaxRequests:      3,
		Interval:         10 * time.Second,
		Timeout:          1 * time.Second,
		FailureThreshold: 0.6,
		MinRequests:      5,
	}
}

func TestNew(t *testing.T) {
	cb := New(testConfig())

	if cb == nil {
		t.Fatal("expected circuit breaker, got nil")
	}
	if cb.Name() != "test-circuit" {
		t.Errorf("expected name='test-circuit', got %q", cb.Name())
	}
	if cb.State() != gobreaker.StateClosed {
		t.Errorf("expected initial state=Closed, got %v", cb.State())
	}
}

func TestCircuitBreaker_Execute_Success(t *testing.T) {
	cb := New(testConfig())

	result, err := cb.Execute(func() (interface{}, error) {
		return "delivered", nil
	})

	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if result != "delivered" {
		t.Errorf("expected result='delivered', got %v", result)
	}
	if cb.State() != gobreaker.StateClosed {
		t.Errorf("expected state=Closed after success, got %v", cb.State())
	}
}

func TestCircuitBreaker_Execute_PassesErrorThrough(t *testing.T) {
	cb := New(testConfig())

	apiErr := errors.New("webhook returned 500")
	result, err := cb.Execute(func() (interface{}, error) {
		return nil, apiErr
	})

	if err != apiErr {
		t.Errorf("expected error=%v, got %v", apiErr, err)
	}
	if result != nil {
		t.Errorf("expected nil result, got %v", result)
	}
}

func TestCircuitBreaker_TripsOpen(t *testing.T) {
	cb := New(testConfig())

	// Four failures and one success: 80% over five calls clears both the
	// MinRequests floor and the 60% threshold once the next failure lands.
	apiErr := errors.New("webhook returned 500")
	for i := 0; i < 4; i++ {
		if _, err := cb.Execute(func() (interface{}, error) { return nil, apiErr }); err != apiErr {
			t.Errorf("call %d: expected api error, got %v", i, err)
		}
	}
	if _, err := cb.Execute(func() (interface{}, error) { return "ok", nil }); err != nil {
		t.Errorf("successful call failed: %v", err)
	}
	if _, err := cb.Execute(func() (interface{}, error) { return nil, apiErr }); err != apiErr {
		t.Errorf("expected api error, got %v", err)
	}

	if cb.State() != gobreaker.StateOpen {
		t.Fatalf("expected state=Open, got %v", cb.State())
	}
	if !cb.IsOpen() {
		t.Error("expected IsOpen()=true")
	}

	// While open, calls fail fast without reaching the messenger.
	called := false
	_, err := cb.Execute(func() (interface{}, error) {
		called = true
		return nil, nil
	})
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("expected ErrOpenState, got %v", err)
	}
	if called {
		t.Error("open circuit must not invoke the call")
	}
}

func TestCircuitBreaker_HalfOpenRecovers(t *testing.T) {
	cfg := testConfig()
	cfg.Timeout = 100 * time.Millisecond

	cb := New(cfg)

	apiErr := errors.New("webhook returned 500")
	for i := 0; i < 6; i++ {
		_, _ = cb.Execute(func() (interface{}, error) { return nil, apiErr })
	}
	if cb.State() != gobreaker.StateOpen {
		t.Fatalf("circuit should be open, got %v", cb.State())
	}

	// After the open timeout a probe call is admitted; success starts
	// closing the circuit.
	time.Sleep(150 * time.Millisecond)

	if _, err := cb.Execute(func() (interface{}, error) { return "ok", nil }); err != nil {
		t.Errorf("expected probe call to succeed, got %v", err)
	}
	if cb.State() == gobreaker.StateOpen {
		t.Errorf("circuit should not be open after successful probe, got %v", cb.State())
	}
}

func TestCircuitBreaker_BelowMinRequestsStaysClosed(t *testing.T) {
	cfg := testConfig()
	cfg.MinRequests = 10

	cb := New(cfg)

	apiErr := errors.New("webhook returned 500")
	for i := 0; i < 4; i++ {
		_, _ = cb.Execute(func() (interface{}, error) { return nil, apiErr })
	}

	// All failures, but not enough samples to judge the messenger.
	if cb.State() != gobreaker.StateClosed {
		t.Errorf("expected state=Closed below MinRequests, got %v", cb.State())
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("slack")

	if cfg.Name != "slack" {
		t.Errorf("expected Name='slack', got %q", cfg.Name)
	}
	if cfg.MaxRequests != 3 {
		t.Errorf("expected MaxRequests=3, got %d", cfg.MaxRequests)
	}
	if cfg.Timeout != 60*time.Second {
		t.Errorf("expected Timeout=60s, got %v", cfg.Timeout)
	}
	if cfg.FailureThreshold != 0.6 {
		t.Errorf("expected FailureThreshold=0.6, got %f", cfg.FailureThreshold)
	}
}

func TestWebhookConfig(t *testing.T) {
	cfg := WebhookConfig("discord")

	if cfg.Name != "discord" {
		t.Errorf("expected Name='discord', got %q", cfg.Name)
	}
	if cfg.MinRequests != 5 {
		t.Errorf("expected MinRequests=5, got %d", cfg.MinRequests)
	}
}

func TestTelegramAPIConfig(t *testing.T) {
	cfg := TelegramAPIConfig()

	if cfg.Name != "telegram-api" {
		t.Errorf("expected Name='telegram-api', got %q", cfg.Name)
	}
	if cfg.FailureThreshold != 0.7 {
		t.Errorf("expected FailureThreshold=0.7, got %f", cfg.FailureThreshold)
	}
	if cfg.Timeout != 120*time.Second {
		t.Errorf("expected Timeout=120s, got %v", cfg.Timeout)
	}
}
