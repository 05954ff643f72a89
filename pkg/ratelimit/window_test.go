package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"
)

// mockClock is a controllable Clock for window tests.
type mockClock struct {
	mu  sync.Mutex
	now time.Time
}

func newMockClock(t time.Time) *mockClock {
	return &mockClock{now: t}
}

func (c *mockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *mockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *mockClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func TestSlidingWindow_AllowWithinLimit(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := newMockClock(base)
	window := NewSlidingWindow(clock)
	store := NewMemoryStore(100)

	wantRemaining := []int{2, 1, 0}
	for i, want := range wantRemaining {
		decision, err := window.Allow(ctx, "client", store, 3, time.Minute)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !decision.Allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
		if decision.Remaining != want {
			t.Errorf("request %d: Remaining = %d, want %d", i+1, decision.Remaining, want)
		}
		if decision.Limit != 3 {
			t.Errorf("Limit = %d, want 3", decision.Limit)
		}
	}

	decision, err := window.Allow(ctx, "client", store, 3, time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Allowed {
		t.Fatal("fourth request should be denied")
	}
	if decision.RetryAfter != time.Minute {
		t.Errorf("RetryAfter = %v, want 1m", decision.RetryAfter)
	}
	if got := decision.ResetAt; !got.Equal(base.Add(time.Minute)) {
		t.Errorf("ResetAt = %v, want %v", got, base.Add(time.Minute))
	}
}

func TestSlidingWindow_WindowSlides(t *testing.T) {
	ctx := context.Background()
	clock := newMockClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	window := NewSlidingWindow(clock)
	store := NewMemoryStore(100)

	for i := 0; i < 2; i++ {
		if d, _ := window.Allow(ctx, "client", store, 2, time.Minute); !d.Allowed {
			t.Fatal("setup request denied")
		}
	}
	if d, _ := window.Allow(ctx, "client", store, 2, time.Minute); d.Allowed {
		t.Fatal("limit should be reached")
	}

	clock.Advance(61 * time.Second)

	decision, err := window.Allow(ctx, "client", store, 2, time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !decision.Allowed {
		t.Error("request after the window slid should be allowed")
	}
	if decision.Remaining != 1 {
		t.Errorf("Remaining = %d, want 1", decision.Remaining)
	}
}

func TestSlidingWindow_ClockSkewProtection(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := newMockClock(base)
	window := NewSlidingWindow(clock)
	store := NewMemoryStore(100)

	if d, _ := window.Allow(ctx, "client", store, 1, time.Minute); !d.Allowed {
		t.Fatal("setup request denied")
	}

	// The clock steps backwards. The last seen timestamp must be used so
	// the denial still points at a reset time in the client's future.
	clock.Set(base.Add(-2 * time.Minute))

	decision, err := window.Allow(ctx, "client", store, 1, time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Allowed {
		t.Error("request should be denied despite the clock step")
	}
	if !decision.ResetAt.Equal(base.Add(time.Minute)) {
		t.Errorf("ResetAt = %v, want %v", decision.ResetAt, base.Add(time.Minute))
	}
}

func TestSlidingWindow_PruneTracked(t *testing.T) {
	ctx := context.Background()
	clock := newMockClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	window := NewSlidingWindow(clock)
	store := NewMemoryStore(100)

	window.Allow(ctx, "a", store, 5, time.Minute)
	window.Allow(ctx, "b", store, 5, time.Minute)
	if got := window.TrackedKeys(); got != 2 {
		t.Fatalf("TrackedKeys = %d, want 2", got)
	}

	clock.Advance(10 * time.Minute)
	window.Allow(ctx, "c", store, 5, time.Minute)

	removed := window.PruneTracked(5 * time.Minute)
	if removed != 2 {
		t.Errorf("PruneTracked removed %d, want 2", removed)
	}
	if got := window.TrackedKeys(); got != 1 {
		t.Errorf("TrackedKeys = %d, want 1", got)
	}
}

func TestSlidingWindow_NilClockDefaults(t *testing.T) {
	window := NewSlidingWindow(nil)
	if window.clock == nil {
		t.Fatal("nil clock should fall back to the system clock")
	}
}
