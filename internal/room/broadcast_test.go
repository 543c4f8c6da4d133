package room

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/luciancaetano/roomrelay"
	"github.com/luciancaetano/roomrelay/internal/conntest"
	"github.com/luciancaetano/roomrelay/internal/metrics"
	"github.com/luciancaetano/roomrelay/internal/protocol"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func fixedClock() time.Time {
	return time.Date(2025, 3, 4, 5, 6, 7, 890_000_000, time.UTC)
}

// TestBroadcastStampsAndExcludes tests user_id overwrite, timestamp and the excluded sender
func TestBroadcastStampsAndExcludes(t *testing.T) {
	t.Parallel()

	x := NewIndex()
	key := Key{"c", "r"}
	alice, bob, carol := conntest.New("a"), conntest.New("b"), conntest.New("c")
	x.Join(key, alice, "alice")
	x.Join(key, bob, "bob")
	x.Join(key, carol, "carol")

	b := NewBroadcaster(x, fixedClock, nil, nil)
	ev := protocol.NewPresence(roomrelay.EventUserJoined, "spoofed", "c", "r")
	out := b.Broadcast(key, ev, "alice", alice)

	if out.UserID != "alice" {
		t.Errorf("expected user_id alice, got %q", out.UserID)
	}
	if out.Timestamp != "2025-03-04T05:06:07.890Z" {
		t.Errorf("unexpected timestamp %q", out.Timestamp)
	}
	if len(alice.Frames()) != 0 {
		t.Errorf("excluded sender received %d frames", len(alice.Frames()))
	}

	for _, conn := range []*conntest.Recorder{bob, carol} {
		msg := conn.Last()
		if msg == nil {
			t.Fatalf("%s received nothing", conn.ID())
		}
		if msg["event"] != roomrelay.EventUserJoined || msg["user_id"] != "alice" {
			t.Errorf("%s got %v", conn.ID(), msg)
		}
		if _, ok := msg["payload"]; ok {
			t.Errorf("presence event carried a payload: %v", msg)
		}
	}

	if string(bob.Frames()[0]) != string(carol.Frames()[0]) {
		t.Error("recipients received different bytes")
	}
}

// TestBroadcastIncludesSender tests that a nil exclude reaches every member
func TestBroadcastIncludesSender(t *testing.T) {
	t.Parallel()

	x := NewIndex()
	key := Key{"c", "r"}
	alice := conntest.New("a")
	x.Join(key, alice, "alice")

	b := NewBroadcaster(x, fixedClock, nil, nil)
	b.Broadcast(key, protocol.NewBroadcast("hi", "", "c", "r"), "alice", nil)

	msg := alice.Last()
	if msg == nil || msg["payload"] != "hi" || msg["event"] != roomrelay.EventBroadcast {
		t.Fatalf("sender did not receive own broadcast: %v", msg)
	}
}

// TestBroadcastContinuesPastFailures tests fire-and-forget delivery
func TestBroadcastContinuesPastFailures(t *testing.T) {
	t.Parallel()

	x := NewIndex()
	key := Key{"c", "r"}
	dead, live := conntest.New("a"), conntest.New("b")
	dead.FailSends()
	x.Join(key, dead, "dead")
	x.Join(key, live, "live")

	m := metrics.New()
	b := NewBroadcaster(x, fixedClock, nil, m)
	b.Broadcast(key, protocol.NewBroadcast("x", "", "c", "r"), "live", nil)

	if len(live.Frames()) != 1 {
		t.Fatalf("live member got %d frames", len(live.Frames()))
	}
	if got := testutil.ToFloat64(m.DeliveryFailures()); got != 1 {
		t.Errorf("expected 1 failed delivery, got %v", got)
	}
	if got := testutil.ToFloat64(m.Deliveries()); got != 1 {
		t.Errorf("expected 1 delivery, got %v", got)
	}
}

// TestBroadcastEmptyRoom tests broadcasting into a room nobody joined
func TestBroadcastEmptyRoom(t *testing.T) {
	t.Parallel()

	b := NewBroadcaster(NewIndex(), fixedClock, nil, nil)
	out := b.Broadcast(Key{"c", "r"}, protocol.NewBroadcast("x", "", "c", "r"), "u", nil)
	if out.Timestamp == "" {
		t.Error("expected event to be stamped even with no recipients")
	}
}

// BenchmarkBroadcast benchmarks fan-out to a 100 member room
func BenchmarkBroadcast(b *testing.B) {
	x := NewIndex()
	key := Key{"c", "r"}
	for i := 0; i < 100; i++ {
		x.Join(key, discard(i), "u")
	}
	br := NewBroadcaster(x, fixedClock, nil, nil)
	ev := protocol.NewBroadcast("payload", "", "c", "r")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		br.Broadcast(key, ev, "u", nil)
	}
}

type discardConn struct {
	*conntest.Recorder
}

func (discardConn) Send(context.Context, []byte) error { return nil }

func discard(i int) roomrelay.Conn {
	return discardConn{conntest.New(strconv.Itoa(i))}
}
