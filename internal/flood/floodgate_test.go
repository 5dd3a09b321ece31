package flood

import (
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestFloodgate(t *testing.T, limit int) (*Floodgate, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	fg := New(limit)
	fg.mutex.Lock()
	fg.now = clock.Now
	fg.mutex.Unlock()
	t.Cleanup(fg.Stop)
	return fg, clock
}

func TestFloodgate_Allow_NormalUsage(t *testing.T) {
	fg, _ := newTestFloodgate(t, 3)

	for i := 0; i < 3; i++ {
		if !fg.Allow("control", "10.0.0.1") {
			t.Errorf("request %d should be allowed", i+1)
		}
	}
	if fg.Allow("control", "10.0.0.1") {
		t.Error("4th request should be blocked")
	}
}

func TestFloodgate_Allow_SlidingWindow(t *testing.T) {
	fg, clock := newTestFloodgate(t, 2)

	fg.Allow("control", "a")
	clock.Advance(30 * time.Second)
	fg.Allow("control", "a")

	if fg.Allow("control", "a") {
		t.Error("third request inside the window should be blocked")
	}

	// The first request leaves the window, the second does not.
	clock.Advance(31 * time.Second)
	if !fg.Allow("control", "a") {
		t.Error("request after the oldest one expired should be allowed")
	}
	if fg.Allow("control", "a") {
		t.Error("window should be full again")
	}
}

func TestFloodgate_Allow_PerClientPerScope(t *testing.T) {
	fg, _ := newTestFloodgate(t, 2)

	for i := 0; i < 2; i++ {
		if !fg.Allow("control", "a") {
			t.Errorf("control request %d from a should be allowed", i+1)
		}
		if !fg.Allow("playlist", "a") {
			t.Errorf("playlist request %d from a should be allowed", i+1)
		}
		if !fg.Allow("control", "b") {
			t.Errorf("control request %d from b should be allowed", i+1)
		}
	}

	tests := []struct{ scope, client string }{
		{"control", "a"},
		{"playlist", "a"},
		{"control", "b"},
	}
	for _, tt := range tests {
		if fg.Allow(tt.scope, tt.client) {
			t.Errorf("Allow(%q, %q) = true, want false", tt.scope, tt.client)
		}
	}
}

func TestFloodgate_RetryAfter(t *testing.T) {
	fg, clock := newTestFloodgate(t, 1)

	if got := fg.RetryAfter("control", "a"); got != 0 {
		t.Errorf("RetryAfter() for unknown client = %v, want 0", got)
	}

	fg.Allow("control", "a")
	clock.Advance(20 * time.Second)
	if got := fg.RetryAfter("control", "a"); got != 40*time.Second {
		t.Errorf("RetryAfter() = %v, want %v", got, 40*time.Second)
	}

	clock.Advance(41 * time.Second)
	if got := fg.RetryAfter("control", "a"); got != 0 {
		t.Errorf("RetryAfter() after expiry = %v, want 0", got)
	}
}

func TestFloodgate_GetStats(t *testing.T) {
	fg, _ := newTestFloodgate(t, 5)

	stats := fg.GetStats()
	if stats.ActiveClients != 0 {
		t.Errorf("ActiveClients = %d, want 0", stats.ActiveClients)
	}
	if stats.LimitPerMinute != 5 {
		t.Errorf("LimitPerMinute = %d, want 5", stats.LimitPerMinute)
	}
	if stats.WindowSeconds != 60 {
		t.Errorf("WindowSeconds = %d, want 60", stats.WindowSeconds)
	}

	fg.Allow("control", "a")
	fg.Allow("control", "b")
	fg.Allow("playlist", "a")

	if got := fg.GetStats().ActiveClients; got != 3 {
		t.Errorf("ActiveClients = %d, want 3", got)
	}
}

func TestFloodgate_EdgeCases(t *testing.T) {
	t.Run("Zero limit", func(t *testing.T) {
		fg, _ := newTestFloodgate(t, 0)
		if fg.Allow("control", "a") {
			t.Error("request should be blocked with zero limit")
		}
	})

	t.Run("Empty identifiers", func(t *testing.T) {
		fg, _ := newTestFloodgate(t, 1)
		if !fg.Allow("", "") {
			t.Error("first request with empty identifiers should be allowed")
		}
		if fg.Allow("", "") {
			t.Error("second request with empty identifiers should be blocked")
		}
	})

	t.Run("Stop twice", func(t *testing.T) {
		fg, _ := newTestFloodgate(t, 1)
		fg.Stop()
		fg.Stop()
	})
}

func TestFloodgate_Cleanup(t *testing.T) {
	fg, clock := newTestFloodgate(t, 1)

	fg.Allow("control", "a")
	clock.Advance(5 * time.Minute)
	fg.Allow("control", "b")
	clock.Advance(6 * time.Minute)

	fg.performCleanup()

	if got := fg.GetStats().ActiveClients; got != 1 {
		t.Errorf("ActiveClients after cleanup = %d, want 1", got)
	}
	if !fg.Allow("control", "a") {
		t.Error("cleaned up client should start fresh")
	}
}

func TestFloodgate_ConcurrentAccess(t *testing.T) {
	fg, _ := newTestFloodgate(t, 100)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				fg.Allow("control", "a")
				fg.GetStats()
			}
		}()
	}
	wg.Wait()

	// 50 requests under a limit of 100: every one was counted.
	if !fg.Allow("control", "a") {
		t.Error("51st request should be allowed")
	}
	fg.mutex.RLock()
	n := len(fg.entries["control:a"].timestamps)
	fg.mutex.RUnlock()
	if n != 51 {
		t.Errorf("recorded requests = %d, want 51", n)
	}
}
