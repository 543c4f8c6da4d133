package roomrelay

import "context"

// Server defines the lifecycle of a relay server.
//
// A server accepts WebSocket connections on a single endpoint path and hands
// every connection event to a Handler.
//
// Example usage:
//
//	import "github.com/luciancaetano/roomrelay/ws"
//
//	relay := ws.New(ws.DefaultConfig())
//	if err := relay.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer relay.Stop(context.Background())
type Server interface {
	// Start starts listening for connections.
	// The server keeps running until Stop is called or the context is cancelled.
	//
	// Returns an error if the server is already running or if the network
	// address cannot be bound.
	Start(ctx context.Context) error

	// Stop closes every open connection and stops accepting new ones.
	//
	// Returns an error if the underlying listener fails to shut down.
	Stop(ctx context.Context) error

	// ConnCount returns the number of currently open connections.
	ConnCount() int
}

// Handler receives the events of every transport connection.
//
// The transport calls OnOpen once when a connection is established, OnMessage
// for every inbound frame in arrival order, and OnClose exactly once when the
// connection ends for any reason (client drop, network failure or
// server-initiated close).
//
// Example:
//
//	type echo struct{}
//
//	func (echo) OnOpen(conn roomrelay.Conn)  {}
//	func (echo) OnClose(conn roomrelay.Conn) {}
//	func (echo) OnMessage(conn roomrelay.Conn, frame []byte) {
//	    conn.Send(context.Background(), frame)
//	}
type Handler interface {
	// OnOpen is called after the WebSocket handshake completes and before
	// the first frame is read.
	OnOpen(conn Conn)

	// OnMessage is called with the raw bytes of one inbound frame.
	OnMessage(conn Conn, frame []byte)

	// OnClose is called once the connection is gone.
	// Sending to conn from OnClose always fails.
	OnClose(conn Conn)
}

// Conn represents one live client connection.
//
// Each connection has a unique identifier and its own lifecycle context, which
// is cancelled when the connection closes.
//
// Example usage:
//
//	if conn.IsAlive() {
//	    conn.Send(ctx, []byte(`{"action":"send_nack","reason":"rate_limited"}`))
//	}
type Conn interface {
	// ID returns a unique identifier for the connection.
	//
	// The ID is generated when the client connects and remains constant for
	// the lifetime of the connection.
	ID() string

	// RemoteAddr returns the client's remote network address,
	// for example "192.168.1.100:54321".
	RemoteAddr() string

	// Context returns the connection's lifecycle context.
	//
	// The context is cancelled when the connection closes.
	Context() context.Context

	// Send queues a text frame for delivery to the client.
	//
	// Send does not wait for the frame to be written. It returns an error if
	// the connection is closed, the context is cancelled or the outbound
	// queue is full.
	Send(ctx context.Context, data []byte) error

	// Close closes the connection gracefully.
	//
	// This is equivalent to calling CloseWithCode with a normal closure code.
	Close(ctx context.Context) error

	// CloseWithCode closes the connection with a specific WebSocket close code
	// and optional reason.
	//
	// Common close codes:
	//   - 1000: Normal closure
	//   - 1001: Endpoint going away
	//   - 1008: Policy violation
	CloseWithCode(ctx context.Context, code int, reason string) error

	// IsAlive returns true if the connection is still open.
	IsAlive() bool
}
