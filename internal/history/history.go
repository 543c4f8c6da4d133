// Package history keeps a bounded replay buffer of recent messages per room.
package history

import (
	"sync"

	"github.com/luciancaetano/roomrelay/internal/protocol"
	"github.com/luciancaetano/roomrelay/internal/room"
)

// Store holds one FIFO buffer per room. Buffers are created on first use and
// are never removed.
type Store struct {
	mu       sync.RWMutex
	buffers  map[room.Key][]protocol.Event
	capacity int
}

// New creates a store keeping at most capacity messages per room.
// A non-positive capacity falls back to 50.
func New(capacity int) *Store {
	if capacity <= 0 {
		capacity = 50
	}
	return &Store{
		buffers:  make(map[room.Key][]protocol.Event),
		capacity: capacity,
	}
}

// Append pushes event to the tail of the room's buffer, dropping the oldest
// entry when the buffer is over capacity.
func (s *Store) Append(key room.Key, event protocol.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	buf := append(s.buffers[key], event)
	if len(buf) > s.capacity {
		// Shift in place; append is the only growth point so one eviction suffices.
		n := copy(buf, buf[1:])
		buf = buf[:n]
	}
	s.buffers[key] = buf
}

// Read returns a copy of the room's buffer, oldest first. It never returns nil.
func (s *Store) Read(key room.Key) []protocol.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	buf := s.buffers[key]
	out := make([]protocol.Event, len(buf))
	copy(out, buf)
	return out
}

// Len returns the number of messages retained for the room.
func (s *Store) Len(key room.Key) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.buffers[key])
}

// Capacity returns the per-room limit.
func (s *Store) Capacity() int { return s.capacity }
