package room

import (
	"testing"

	"github.com/luciancaetano/roomrelay/internal/conntest"
)

// TestIndexJoinIsIdempotent tests that joining twice leaves one membership
func TestIndexJoinIsIdempotent(t *testing.T) {
	t.Parallel()

	x := NewIndex()
	key := Key{Channel: "c", Room: "r"}
	conn := conntest.New("a")

	x.Join(key, conn, "alice")
	x.Join(key, conn, "alice")

	if got := len(x.Members(key)); got != 1 {
		t.Fatalf("expected 1 member, got %d", got)
	}
	if !x.Contains(key, conn) {
		t.Fatal("expected conn to be a member")
	}
}

// TestIndexLeave tests removal, absent removal and pruning of empty rooms
func TestIndexLeave(t *testing.T) {
	t.Parallel()

	x := NewIndex()
	key := Key{Channel: "c", Room: "r"}
	a, b := conntest.New("a"), conntest.New("b")

	x.Leave(key, a)
	if x.Rooms() != 0 {
		t.Fatalf("leaving an unknown room created it")
	}

	x.Join(key, a, "alice")
	x.Join(key, b, "bob")
	x.Leave(key, a)
	x.Leave(key, a)

	members := x.Members(key)
	if len(members) != 1 || members[0].ID() != "b" {
		t.Fatalf("unexpected members after leave: %v", members)
	}

	x.Leave(key, b)
	if x.Rooms() != 0 {
		t.Fatalf("expected empty room to be pruned, got %d rooms", x.Rooms())
	}
	if got := x.Members(key); len(got) != 0 {
		t.Fatalf("expected no members, got %d", len(got))
	}
}

// TestIndexRoomIsolation tests that the channel and room both partition membership
func TestIndexRoomIsolation(t *testing.T) {
	t.Parallel()

	x := NewIndex()
	a, b, c := conntest.New("a"), conntest.New("b"), conntest.New("c")

	x.Join(Key{"c1", "r1"}, a, "alice")
	x.Join(Key{"c1", "r2"}, b, "bob")
	x.Join(Key{"c2", "r1"}, c, "carol")

	tests := []struct {
		key  Key
		user string
		want bool
	}{
		{Key{"c1", "r1"}, "alice", true},
		{Key{"c1", "r1"}, "bob", false},
		{Key{"c1", "r2"}, "bob", true},
		{Key{"c2", "r1"}, "alice", false},
		{Key{"c2", "r1"}, "carol", true},
		{Key{"c3", "r1"}, "carol", false},
	}

	for _, tt := range tests {
		if got := x.HasUser(tt.key, tt.user); got != tt.want {
			t.Errorf("HasUser(%v, %q) = %v, want %v", tt.key, tt.user, got, tt.want)
		}
	}

	if x.Rooms() != 3 {
		t.Errorf("expected 3 rooms, got %d", x.Rooms())
	}
	if got := len(x.Conns()); got != 3 {
		t.Errorf("expected 3 joined conns, got %d", got)
	}
}

// TestIndexMembersSnapshot tests that a snapshot is unaffected by later changes
func TestIndexMembersSnapshot(t *testing.T) {
	t.Parallel()

	x := NewIndex()
	key := Key{"c", "r"}
	x.Join(key, conntest.New("a"), "alice")

	snap := x.Members(key)
	x.Join(key, conntest.New("b"), "bob")

	if len(snap) != 1 {
		t.Fatalf("snapshot changed size to %d", len(snap))
	}
}
