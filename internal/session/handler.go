package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"github.com/luciancaetano/roomrelay"
	"github.com/luciancaetano/roomrelay/internal/history"
	"github.com/luciancaetano/roomrelay/internal/metrics"
	"github.com/luciancaetano/roomrelay/internal/protocol"
	"github.com/luciancaetano/roomrelay/internal/ratelimit"
	"github.com/luciancaetano/roomrelay/internal/room"
)

// Options configures a Handler. Zero values select the defaults.
type Options struct {
	Index         *room.Index
	History       *history.Store
	Limiter       *ratelimit.Limiter
	MaxViolations int
	Now           func() time.Time
	Logger        *slog.Logger
	Metrics       *metrics.Metrics
}

// Handler implements roomrelay.Handler. It is not safe for concurrent use:
// callers must deliver events one at a time (see the hub package).
type Handler struct {
	sessions map[string]*Session

	index         *room.Index
	history       *history.Store
	limiter       *ratelimit.Limiter
	broadcaster   *room.Broadcaster
	maxViolations int
	now           func() time.Time
	logger        *slog.Logger
	metrics       *metrics.Metrics
}

var _ roomrelay.Handler = (*Handler)(nil)

// New creates a handler.
func New(opts Options) *Handler {
	h := &Handler{
		sessions:      make(map[string]*Session),
		index:         opts.Index,
		history:       opts.History,
		limiter:       opts.Limiter,
		maxViolations: opts.MaxViolations,
		now:           opts.Now,
		logger:        opts.Logger,
		metrics:       opts.Metrics,
	}
	if h.index == nil {
		h.index = room.NewIndex()
	}
	if h.history == nil {
		h.history = history.New(roomrelay.MaxHistory)
	}
	if h.limiter == nil {
		h.limiter = ratelimit.New(roomrelay.RateLimitMessages, roomrelay.RateLimitWindow)
	}
	if h.maxViolations <= 0 {
		h.maxViolations = roomrelay.MaxRateLimitViolations
	}
	if h.now == nil {
		h.now = time.Now
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	h.broadcaster = room.NewBroadcaster(h.index, h.now, h.logger, h.metrics)
	return h
}

// Session returns a copy of the session for connID.
func (h *Handler) Session(connID string) (Session, bool) {
	s, ok := h.sessions[connID]
	if !ok {
		return Session{}, false
	}
	return *s, true
}

// Len returns the number of open sessions.
func (h *Handler) Len() int { return len(h.sessions) }

// OnOpen creates an unjoined session for conn.
func (h *Handler) OnOpen(conn roomrelay.Conn) {
	h.sessions[conn.ID()] = &Session{ConnID: conn.ID(), State: Unjoined}
	h.logger.Debug("session.open", "conn_id", conn.ID(), "remote", conn.RemoteAddr())
}

// OnMessage processes one inbound frame to completion.
func (h *Handler) OnMessage(conn roomrelay.Conn, frame []byte) {
	s, ok := h.sessions[conn.ID()]
	if !ok || s.State == Closed || s.terminating || !conn.IsAlive() {
		h.logger.Debug("session.frame_dropped", "conn_id", conn.ID())
		return
	}
	h.metrics.Frame()

	msg, err := protocol.Decode(frame)
	switch {
	case errors.Is(err, protocol.ErrFrameTooLarge):
		h.sendNack(conn, roomrelay.ActionSendNack, roomrelay.ReasonMessageTooLarge)
		return
	case err != nil:
		h.sendNack(conn, roomrelay.ActionSendNack, roomrelay.ReasonInvalidJSON)
		return
	}

	switch protocol.Action(msg) {
	case roomrelay.ActionJoin:
		h.handleJoin(conn, s, msg)
	case roomrelay.ActionSend:
		h.handleSend(conn, s, msg)
	case roomrelay.ActionDisconnect:
		h.handleDisconnect(conn, s, msg)
	default:
		h.logger.Warn("session.unknown_action", "conn_id", conn.ID(), "user_id", s.UserID)
		h.sendNack(conn, roomrelay.ActionSendNack, roomrelay.ReasonUnknownAction)
	}
}

// OnClose leaves the joined room, tells the remaining members and drops the session.
func (h *Handler) OnClose(conn roomrelay.Conn) {
	s, ok := h.sessions[conn.ID()]
	if !ok {
		return
	}
	delete(h.sessions, conn.ID())

	if s.State == Joined {
		key := s.Key()
		h.index.Leave(key, conn)
		h.metrics.SetRooms(h.index.Rooms())
		h.broadcaster.Broadcast(key,
			protocol.NewPresence(roomrelay.EventDisconnected, s.UserID, key.Channel, key.Room),
			s.UserID, nil)
		h.logger.Info("session.left", "conn_id", conn.ID(), "user_id", s.UserID,
			"channel_id", key.Channel, "room_id", key.Room)
	}
	s.State = Closed
	h.logger.Debug("session.close", "conn_id", conn.ID())
}

func (h *Handler) handleJoin(conn roomrelay.Conn, s *Session, msg map[string]any) {
	if !protocol.JoinSchema.Validate(msg) {
		h.sendNack(conn, roomrelay.ActionSendNack, roomrelay.ReasonInvalidJoinSchema)
		return
	}
	if s.State == Joined {
		h.sendNack(conn, roomrelay.ActionJoinNack, roomrelay.ReasonAlreadyJoined)
		return
	}

	userID := protocol.Str(msg, "user_id")
	key := room.Key{Channel: protocol.Str(msg, "channel_id"), Room: protocol.Str(msg, "room_id")}
	log := h.logger.With("conn_id", conn.ID(), "user_id", userID, "channel_id", key.Channel, "room_id", key.Room)

	if h.index.HasUser(key, userID) {
		log.Warn("session.join_rejected", "reason", roomrelay.ReasonAlreadyConnected)
		h.sendNack(conn, roomrelay.ActionJoinNack, roomrelay.ReasonAlreadyConnected)
		h.terminate(conn, s, websocket.ClosePolicyViolation, roomrelay.CloseReasonDuplicate)
		return
	}

	s.UserID, s.ChannelID, s.RoomID = userID, key.Channel, key.Room
	h.index.Join(key, conn, userID)
	h.metrics.SetRooms(h.index.Rooms())

	ack := protocol.NewJoinAck(key.Channel, key.Room, userID, h.history.Read(key), h.timestamp())
	h.send(conn, ack)
	s.State = Joined
	log.Info("session.joined")

	h.broadcaster.Broadcast(key,
		protocol.NewPresence(roomrelay.EventUserJoined, userID, key.Channel, key.Room),
		userID, conn)
}

func (h *Handler) handleSend(conn roomrelay.Conn, s *Session, msg map[string]any) {
	if !protocol.SendSchema.Validate(msg) {
		h.sendNack(conn, roomrelay.ActionSendNack, roomrelay.ReasonInvalidSendSchema)
		return
	}

	if !h.limiter.Admit(s.UserID, h.now()) {
		s.Violations++
		h.logger.Warn("session.rate_limited", "conn_id", conn.ID(), "user_id", s.UserID, "violations", s.Violations)
		h.sendNack(conn, roomrelay.ActionSendNack, roomrelay.ReasonRateLimited)
		if s.Violations > h.maxViolations {
			h.terminate(conn, s, websocket.ClosePolicyViolation, roomrelay.CloseReasonRateLimited)
		}
		return
	}

	if s.State != Joined {
		h.sendNack(conn, roomrelay.ActionSendNack, roomrelay.ReasonNotInRoom)
		return
	}

	key := s.Key()
	event := h.broadcaster.Broadcast(key,
		protocol.NewBroadcast(protocol.Str(msg, "payload"), s.UserID, key.Channel, key.Room),
		s.UserID, conn)
	h.history.Append(key, event)
}

func (h *Handler) handleDisconnect(conn roomrelay.Conn, s *Session, msg map[string]any) {
	if !protocol.DisconnectSchema.Validate(msg) {
		h.sendNack(conn, roomrelay.ActionSendNack, roomrelay.ReasonInvalidDisconnectSchema)
		return
	}
	h.logger.Info("session.disconnect_requested", "conn_id", conn.ID(), "user_id", s.UserID)
	h.terminate(conn, s, websocket.CloseNormalClosure, roomrelay.CloseReasonDisconnect)
}

// terminate asks the transport to close conn. Room cleanup happens in OnClose.
func (h *Handler) terminate(conn roomrelay.Conn, s *Session, code int, reason string) {
	s.terminating = true
	h.metrics.Terminated(reason)
	if err := conn.CloseWithCode(context.Background(), code, reason); err != nil {
		h.logger.Debug("session.close_failed", "conn_id", conn.ID(), "err", err)
	}
}

func (h *Handler) sendNack(conn roomrelay.Conn, action, reason string) {
	ts := h.timestamp()
	nack := protocol.NewSendNack(reason, ts)
	if action == roomrelay.ActionJoinNack {
		nack = protocol.NewJoinNack(reason, ts)
	}
	h.metrics.Nack(reason)
	h.send(conn, nack)
}

func (h *Handler) send(conn roomrelay.Conn, v any) {
	data, err := protocol.Encode(v)
	if err != nil {
		h.logger.Error("session.encode", "conn_id", conn.ID(), "err", err)
		return
	}
	if err := conn.Send(context.Background(), data); err != nil {
		h.logger.Debug("session.send_failed", "conn_id", conn.ID(), "err", err)
	}
}

func (h *Handler) timestamp() string {
	return protocol.FormatTimestamp(h.now())
}
