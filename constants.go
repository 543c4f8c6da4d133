package roomrelay

import "time"

// Transport defaults.
const (
	// Endpoint is the path WebSocket clients connect to.
	Endpoint = "/chat"

	// DefaultPort is the port used when none is configured.
	DefaultPort = 9003
)

// Limits enforced on every connection.
const (
	// MaxFrameSize is the largest inbound frame, in bytes, the relay will process.
	MaxFrameSize = 512

	// MaxHistory is the number of broadcast messages retained per room.
	MaxHistory = 50

	// RateLimitMessages is the number of sends a user may issue per RateLimitWindow.
	RateLimitMessages = 5

	// RateLimitWindow is the trailing window the rate limiter counts sends in.
	RateLimitWindow = time.Second

	// MaxRateLimitViolations is the number of rate-limit rejections a connection
	// may accumulate. The connection is closed once the count exceeds it.
	MaxRateLimitViolations = 20
)

// Inbound actions.
const (
	ActionJoin       = "join"
	ActionSend       = "send"
	ActionDisconnect = "disconnect"
)

// Outbound reply actions.
const (
	ActionJoinAck  = "join_ack"
	ActionJoinNack = "join_nack"
	ActionSendNack = "send_nack"
)

// Outbound room events.
const (
	EventBroadcast    = "broadcast"
	EventUserJoined   = "user_joined"
	EventDisconnected = "disconnected"
)

// Nack reasons
const (
	ReasonMessageTooLarge         = "message_too_large"
	ReasonInvalidJSON             = "invalid_json"
	ReasonInvalidJoinSchema       = "invalid_join_schema"
	ReasonInvalidSendSchema       = "invalid_send_schema"
	ReasonInvalidDisconnectSchema = "invalid_disconnect_schema"
	ReasonNotInRoom               = "not_in_room"
	ReasonRateLimited             = "rate_limited"
	ReasonUnknownAction           = "unknown_action"
	ReasonAlreadyConnected        = "already_connected"
	ReasonAlreadyJoined           = "already_joined"
)

// Connection errors
const (
	ErrConnectionClosed     = "connection is closed"
	ErrContextCancelled     = "connection context cancelled"
	ErrSendQueueFull        = "send queue is full"
	ErrServerAlreadyRunning = "server already running"
)

// Close reasons sent with the WebSocket close frame.
const (
	CloseReasonDisconnect  = "disconnect requested"
	CloseReasonRateLimited = "rate limit exceeded"
	CloseReasonDuplicate   = "user already connected"
	CloseReasonShutdown    = "server shutting down"
)
