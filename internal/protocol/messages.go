package protocol

import "github.com/luciancaetano/roomrelay"

// Nack rejects an inbound action.
type Nack struct {
	Action    string `json:"action"`
	Reason    string `json:"reason"`
	Timestamp string `json:"timestamp"`
}

// JoinAck confirms a join and replays the room history.
type JoinAck struct {
	Action    string  `json:"action"`
	ChannelID string  `json:"channel_id"`
	RoomID    string  `json:"room_id"`
	UserID    string  `json:"user_id"`
	Messages  []Event `json:"messages"`
	Timestamp string  `json:"timestamp"`
}

// Event is delivered to room members: a chat broadcast or a presence change.
// Payload is only set on broadcast events.
type Event struct {
	Event     string  `json:"event"`
	Payload   *string `json:"payload,omitempty"`
	UserID    string  `json:"user_id"`
	ChannelID string  `json:"channel_id"`
	RoomID    string  `json:"room_id"`
	Timestamp string  `json:"timestamp,omitempty"`
}

// NewSendNack builds a send_nack with the given reason.
func NewSendNack(reason, ts string) Nack {
	return Nack{Action: roomrelay.ActionSendNack, Reason: reason, Timestamp: ts}
}

// NewJoinNack builds a join_nack with the given reason.
func NewJoinNack(reason, ts string) Nack {
	return Nack{Action: roomrelay.ActionJoinNack, Reason: reason, Timestamp: ts}
}

// NewJoinAck builds a join_ack. A nil history is sent as an empty array.
func NewJoinAck(channelID, roomID, userID string, history []Event, ts string) JoinAck {
	if history == nil {
		history = []Event{}
	}
	return JoinAck{
		Action:    roomrelay.ActionJoinAck,
		ChannelID: channelID,
		RoomID:    roomID,
		UserID:    userID,
		Messages:  history,
		Timestamp: ts,
	}
}

// NewBroadcast builds a chat broadcast event.
func NewBroadcast(payload, userID, channelID, roomID string) Event {
	return Event{
		Event:     roomrelay.EventBroadcast,
		Payload:   &payload,
		UserID:    userID,
		ChannelID: channelID,
		RoomID:    roomID,
	}
}

// NewPresence builds a user_joined or disconnected event.
func NewPresence(kind, userID, channelID, roomID string) Event {
	return Event{
		Event:     kind,
		UserID:    userID,
		ChannelID: channelID,
		RoomID:    roomID,
	}
}
