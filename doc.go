// Package roomrelay provides a WebSocket relay for chat rooms.
//
// Clients connect to a single endpoint, join one room identified by a channel
// id and a room id, and exchange text messages with every other member of that
// room. Late joiners receive the most recent messages of the room when they
// join. The relay keeps everything in memory; nothing survives a restart.
//
// # Quick Start
//
//	import (
//	    "github.com/luciancaetano/roomrelay/ws"
//	)
//
//	relay := ws.New(ws.DefaultConfig()) // :9003, endpoint /chat
//	if err := relay.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer relay.Stop(context.Background())
//
// The cmd/roomrelay binary does the same, reading its configuration from
// RELAY_* environment variables, and cmd/roomrelay-client is an interactive
// terminal client.
//
// # Protocol
//
// Every frame is a JSON object of at most 512 bytes. Inbound frames carry an
// action and exactly the fields listed:
//
//	{"action":"join","user_id":"alice","channel_id":"c1","room_id":"r1"}
//	{"action":"send","payload":"hi"}
//	{"action":"disconnect"}
//
// A successful join is answered with a join_ack that replays the room history:
//
//	{"action":"join_ack","channel_id":"c1","room_id":"r1","user_id":"alice","messages":[...],"timestamp":"2025-01-02T03:04:05.000Z"}
//
// Room members receive events, always stamped with the sender's user id:
//
//	{"event":"broadcast","payload":"hi","user_id":"bob","channel_id":"c1","room_id":"r1","timestamp":"..."}
//	{"event":"user_joined","user_id":"bob","channel_id":"c1","room_id":"r1","timestamp":"..."}
//	{"event":"disconnected","user_id":"bob","channel_id":"c1","room_id":"r1","timestamp":"..."}
//
// The sender of a broadcast does not receive its own message. Rejected frames
// are answered with send_nack or join_nack and a reason:
//
//	message_too_large, invalid_json, invalid_join_schema, invalid_send_schema,
//	invalid_disconnect_schema, not_in_room, rate_limited, unknown_action,
//	already_connected, already_joined
//
// # Rate Limiting
//
// Each user may send 5 messages in any trailing second. Rejected attempts
// count towards the window, so a client that keeps sending while limited stays
// limited. The window is kept per user id and survives reconnects; the
// violation counter is kept per connection, and a connection is closed with
// code 1008 after more than 20 rate_limited replies.
//
// Joining a room in which the same user id is already present is refused with
// already_connected and the new connection is closed.
//
// Handshakes are throttled server-wide with a token bucket (50/s, burst 100 by
// default); excess upgrade requests are answered with HTTP 429.
//
// # Concurrency
//
// The transport runs one read goroutine and one write goroutine per
// connection. All session, room, history and rate-limit state is owned by a
// single dispatcher goroutine, so frames are processed one at a time, in
// arrival order per connection. Outbound frames are queued per connection and
// never block the dispatcher: a client whose queue is full misses messages.
//
// # Important
//
//   - Configure CheckOrigin in production (ws.AllOrigins() accepts every origin)
//   - History is bounded to 50 messages per room and rooms are never persisted
//   - /healthz and /metrics are served next to the WebSocket endpoint
package roomrelay
