// Package room tracks which connections are joined to which room and fans
// messages out to them.
package room

import (
	"sync"

	"github.com/luciancaetano/roomrelay"
)

// Key identifies an isolated broadcast group.
type Key struct {
	Channel string
	Room    string
}

type member struct {
	conn   roomrelay.Conn
	userID string
}

// Index maps rooms to their joined connections.
// Membership is a set keyed by connection id; empty rooms are pruned.
type Index struct {
	mu    sync.RWMutex
	rooms map[Key]map[string]member
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{rooms: make(map[Key]map[string]member)}
}

// Join adds conn to the room under userID. Joining twice is a no-op apart
// from refreshing the recorded user id.
func (x *Index) Join(key Key, conn roomrelay.Conn, userID string) {
	x.mu.Lock()
	defer x.mu.Unlock()

	members := x.rooms[key]
	if members == nil {
		members = make(map[string]member)
		x.rooms[key] = members
	}
	members[conn.ID()] = member{conn: conn, userID: userID}
}

// Leave removes conn from the room. Removing an absent connection is a no-op.
func (x *Index) Leave(key Key, conn roomrelay.Conn) {
	x.mu.Lock()
	defer x.mu.Unlock()

	members, ok := x.rooms[key]
	if !ok {
		return
	}
	delete(members, conn.ID())
	if len(members) == 0 {
		delete(x.rooms, key)
	}
}

// Members returns a snapshot of the room's connections in no particular order.
func (x *Index) Members(key Key) []roomrelay.Conn {
	x.mu.RLock()
	defer x.mu.RUnlock()

	members := x.rooms[key]
	out := make([]roomrelay.Conn, 0, len(members))
	for _, m := range members {
		out = append(out, m.conn)
	}
	return out
}

// HasUser reports whether any connection in the room joined as userID.
func (x *Index) HasUser(key Key, userID string) bool {
	x.mu.RLock()
	defer x.mu.RUnlock()

	for _, m := range x.rooms[key] {
		if m.userID == userID {
			return true
		}
	}
	return false
}

// Contains reports whether conn is a member of the room.
func (x *Index) Contains(key Key, conn roomrelay.Conn) bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	_, ok := x.rooms[key][conn.ID()]
	return ok
}

// Rooms returns the number of non-empty rooms.
func (x *Index) Rooms() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.rooms)
}

// Conns returns every joined connection across all rooms.
func (x *Index) Conns() []roomrelay.Conn {
	x.mu.RLock()
	defer x.mu.RUnlock()

	var out []roomrelay.Conn
	for _, members := range x.rooms {
		for _, m := range members {
			out = append(out, m.conn)
		}
	}
	return out
}
