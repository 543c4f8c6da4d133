package ratelimit

import (
	"testing"
	"time"
)

var epoch = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

// TestNewDefaults tests the fallback configuration
func TestNewDefaults(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		limit      int
		window     time.Duration
		wantLimit  int
		wantWindow time.Duration
	}{
		{"explicit values", 10, 2 * time.Second, 10, 2 * time.Second},
		{"zero limit", 0, time.Second, 5, time.Second},
		{"negative window", 3, -time.Second, 3, time.Second},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			l := New(tt.limit, tt.window)
			if l.limit != tt.wantLimit {
				t.Errorf("limit = %d, want %d", l.limit, tt.wantLimit)
			}
			if l.window != tt.wantWindow {
				t.Errorf("window = %v, want %v", l.window, tt.wantWindow)
			}
		})
	}
}

// TestAdmitBurst verifies five sends in a window pass and the sixth is rejected
func TestAdmitBurst(t *testing.T) {
	t.Parallel()

	l := New(5, time.Second)

	// six sends spread over 900ms
	for i := 0; i < 5; i++ {
		if !l.Admit("alice", epoch.Add(time.Duration(i)*180*time.Millisecond)) {
			t.Fatalf("send %d should be admitted", i+1)
		}
	}
	if l.Admit("alice", epoch.Add(900*time.Millisecond)) {
		t.Error("6th send inside one second should be rejected")
	}
}

// TestAdmitSlidingWindow verifies old attempts age out by wall-clock difference
func TestAdmitSlidingWindow(t *testing.T) {
	t.Parallel()

	l := New(5, time.Second)

	for i := 0; i < 5; i++ {
		if !l.Admit("alice", epoch) {
			t.Fatalf("send %d should be admitted", i+1)
		}
	}

	// Exactly one window later the old entries are not yet older than the window.
	if l.Admit("alice", epoch.Add(time.Second)) {
		t.Error("send at exactly +1s should still see the previous burst")
	}

	// Past the window, the burst at epoch is pruned; +1s remains.
	if !l.Admit("alice", epoch.Add(time.Second+time.Millisecond)) {
		t.Error("send after the window should be admitted")
	}
}

// TestAdmitRejectionsCount verifies rejected attempts keep the user limited
func TestAdmitRejectionsCount(t *testing.T) {
	t.Parallel()

	l := New(5, time.Second)
	now := epoch

	for i := 0; i < 5; i++ {
		l.Admit("alice", now)
	}

	// Keep sending every 100ms: the window never holds 5 or fewer entries.
	for i := 1; i <= 10; i++ {
		now = now.Add(100 * time.Millisecond)
		for j := 0; j < 5; j++ {
			if l.Admit("alice", now) {
				t.Fatalf("round %d send %d should be rejected", i, j)
			}
		}
	}
}

// TestAdmitSteadyRate verifies a user at five sends per second is never limited
func TestAdmitSteadyRate(t *testing.T) {
	t.Parallel()

	l := New(5, time.Second)

	for i := 0; i < 100; i++ {
		now := epoch.Add(time.Duration(i) * 201 * time.Millisecond)
		if !l.Admit("alice", now) {
			t.Fatalf("send %d at %v should be admitted", i, now.Sub(epoch))
		}
	}
}

// TestAdmitPerUser verifies users do not share windows
func TestAdmitPerUser(t *testing.T) {
	t.Parallel()

	l := New(5, time.Second)

	for i := 0; i < 6; i++ {
		l.Admit("alice", epoch)
	}
	if !l.Admit("bob", epoch) {
		t.Error("bob should not be limited by alice's sends")
	}
	if l.Len() != 2 {
		t.Errorf("Len() = %d, want 2", l.Len())
	}
}

// TestSweep tests eviction of idle users
func TestSweep(t *testing.T) {
	t.Parallel()

	l := New(5, time.Second)
	l.Admit("alice", epoch)
	l.Admit("bob", epoch.Add(1500*time.Millisecond))

	if removed := l.Sweep(epoch.Add(2 * time.Second)); removed != 1 {
		t.Errorf("Sweep() removed %d, want 1", removed)
	}
	if l.Len() != 1 {
		t.Errorf("Len() = %d, want 1", l.Len())
	}

	// bob's window survives and still counts toward his limit
	for i := 0; i < 4; i++ {
		if !l.Admit("bob", epoch.Add(2*time.Second)) {
			t.Fatalf("bob send %d should be admitted", i)
		}
	}
	if l.Admit("bob", epoch.Add(2*time.Second)) {
		t.Error("bob's 6th send in the window should be rejected")
	}
}

// BenchmarkAdmit benchmarks admission for a single user
func BenchmarkAdmit(b *testing.B) {
	l := New(5, time.Second)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		l.Admit("alice", epoch.Add(time.Duration(i)*time.Millisecond))
	}
}
