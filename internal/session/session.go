// Package session interprets inbound frames for each connection and drives the
// room index, history buffers and rate limiter.
package session

import "github.com/luciancaetano/roomrelay/internal/room"

// State is the lifecycle position of a connection session.
type State int

const (
	Unjoined State = iota
	Joined
	Closed
)

func (s State) String() string {
	switch s {
	case Unjoined:
		return "unjoined"
	case Joined:
		return "joined"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session is the per-connection state. Identity fields are empty until the
// connection joins a room.
type Session struct {
	ConnID     string
	UserID     string
	ChannelID  string
	RoomID     string
	Violations int
	State      State

	// set once the server has asked the transport to close the connection
	terminating bool
}

// Key returns the room the session is joined to.
func (s *Session) Key() room.Key {
	return room.Key{Channel: s.ChannelID, Room: s.RoomID}
}
