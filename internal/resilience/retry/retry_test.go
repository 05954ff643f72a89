package retry

import (
	"context"
	"errors"
	"syscall"
	"testing"
	"time"
)

// fastConfig keeps test runs short; behavior under test does not depend on
// the actual delay values.
func fastConfig(attempts int) Config {
	return Config{
		MaxAttempts:    attempts,
		InitialDelay:   10 * time.Millisecond,
		MaxDelay:       100 * time.Millisecond,
		Multiplier:     2.0,
		JitterFraction: 0.1,
	}
}

func TestWithBackoff_FirstAttemptSucceeds(t *testing.T) {
	attempts := 0
	err := WithBackoff(context.Background(), fastConfig(3), func() error {
		attempts++
		return nil
	})

	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
}

func TestWithBackoff_RecoversFromServerErrors(t *testing.T) {
	attempts := 0
	err := WithBackoff(context.Background(), fastConfig(3), func() error {
		attempts++
		if attempts < 3 {
			return &HTTPError{StatusCode: 502, Message: "Bad Gateway"}
		}
		return nil
	})

	if err != nil {
		t.Errorf("expected recovery on third attempt, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestWithBackoff_GivesUpAfterMaxAttempts(t *testing.T) {
	attempts := 0
	apiErr := &HTTPError{StatusCode: 503, Message: "Service Unavailable"}
	err := WithBackoff(context.Background(), fastConfig(3), func() error {
		attempts++
		return apiErr
	})

	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
	if !errors.Is(err, apiErr) {
		t.Errorf("expected original error in chain, got %v", err)
	}
}

func TestWithBackoff_NonRetryableFailsFast(t *testing.T) {
	// A 4xx from the bot API means the request itself is wrong; repeating
	// it cannot help.
	attempts := 0
	apiErr := &HTTPError{StatusCode: 400, Message: "Bad Request: chat not found"}
	err := WithBackoff(context.Background(), fastConfig(3), func() error {
		attempts++
		return apiErr
	})

	if !errors.Is(err, apiErr) {
		t.Errorf("expected the original error back, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("expected a single attempt, got %d", attempts)
	}
}

func TestWithBackoff_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	err := WithBackoff(ctx, fastConfig(5), func() error {
		attempts++
		if attempts == 2 {
			cancel()
		}
		return &HTTPError{StatusCode: 500, Message: "Internal Server Error"}
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if attempts < 2 {
		t.Errorf("expected at least 2 attempts before cancel, got %d", attempts)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"nil error", nil, false},
		{"context canceled", context.Canceled, false},
		{"context deadline exceeded", context.DeadlineExceeded, false},
		{"bot API 500", &HTTPError{StatusCode: 500, Message: "Internal Server Error"}, true},
		{"bot API 502", &HTTPError{StatusCode: 502, Message: "Bad Gateway"}, true},
		{"bot API 429 flood control", &HTTPError{StatusCode: 429, Message: "Too Many Requests"}, true},
		{"request timeout 408", &HTTPError{StatusCode: 408, Message: "Request Timeout"}, true},
		{"bad request 400", &HTTPError{StatusCode: 400, Message: "Bad Request"}, false},
		{"not found 404", &HTTPError{StatusCode: 404, Message: "Not Found"}, false},
		{"connection refused", syscall.ECONNREFUSED, true},
		{"connection reset", syscall.ECONNRESET, true},
		{"connect timeout", syscall.ETIMEDOUT, true},
		{"network unreachable", syscall.ENETUNREACH, true},
		{"plain error", errors.New("template not found"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.retryable {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.retryable)
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.MaxAttempts != 3 {
		t.Errorf("expected MaxAttempts=3, got %d", cfg.MaxAttempts)
	}
	if cfg.InitialDelay != 1*time.Second {
		t.Errorf("expected InitialDelay=1s, got %v", cfg.InitialDelay)
	}
	if cfg.MaxDelay != 30*time.Second {
		t.Errorf("expected MaxDelay=30s, got %v", cfg.MaxDelay)
	}
}

func TestBotAPIConfig(t *testing.T) {
	cfg := BotAPIConfig()

	if cfg.MaxAttempts != 3 {
		t.Errorf("expected MaxAttempts=3, got %d", cfg.MaxAttempts)
	}
	if cfg.InitialDelay != 2*time.Second {
		t.Errorf("expected InitialDelay=2s, got %v", cfg.InitialDelay)
	}
}

func TestStartupConfig(t *testing.T) {
	cfg := StartupConfig()

	if cfg.MaxAttempts != 5 {
		t.Errorf("expected MaxAttempts=5, got %d", cfg.MaxAttempts)
	}
	if cfg.InitialDelay != 500*time.Millisecond {
		t.Errorf("expected InitialDelay=500ms, got %v", cfg.InitialDelay)
	}
	if cfg.MaxDelay != 5*time.Second {
		t.Errorf("expected MaxDelay=5s, got %v", cfg.MaxDelay)
	}
}

func TestHTTPError_Error(t *testing.T) {
	err := &HTTPError{StatusCode: 429, Message: "Too Many Requests: retry after 30"}

	if got := err.Error(); got != "HTTP 429: Too Many Requests: retry after 30" {
		t.Errorf("unexpected message %q", got)
	}
}

func TestAddJitter_StaysWithinBounds(t *testing.T) {
	duration := 100 * time.Millisecond

	varied := make(map[time.Duration]bool)
	for i := 0; i < 10; i++ {
		got := addJitter(duration, 0.2)
		if got < duration || got > time.Duration(float64(duration)*1.2) {
			t.Errorf("jitter out of bounds: %v", got)
		}
		varied[got] = true
	}

	if len(varied) < 2 {
		t.Error("expected jitter to vary across calls")
	}
}

func TestAddJitter_ZeroFraction(t *testing.T) {
	duration := 100 * time.Millisecond

	if got := addJitter(duration, 0); got != duration {
		t.Errorf("expected %v unchanged, got %v", duration, got)
	}
}
