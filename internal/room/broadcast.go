package room

import (
	"context"
	"log/slog"
	"time"

	"github.com/luciancaetano/roomrelay"
	"github.com/luciancaetano/roomrelay/internal/metrics"
	"github.com/luciancaetano/roomrelay/internal/protocol"
)

// Broadcaster delivers events to every member of a room.
type Broadcaster struct {
	index   *Index
	now     func() time.Time
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewBroadcaster creates a broadcaster over index. A nil clock uses time.Now
// and a nil logger uses slog.Default(). m may be nil.
func NewBroadcaster(index *Index, now func() time.Time, logger *slog.Logger, m *metrics.Metrics) *Broadcaster {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{index: index, now: now, logger: logger, metrics: m}
}

// Broadcast stamps event once, sets its user_id to sender and sends the same
// encoded frame to every member of the room except exclude (which may be nil).
//
// Delivery is fire-and-forget: a failed send to one member is logged and does
// not stop delivery to the rest. The stamped event is returned.
func (b *Broadcaster) Broadcast(key Key, event protocol.Event, sender string, exclude roomrelay.Conn) protocol.Event {
	event.UserID = sender
	event.Timestamp = protocol.FormatTimestamp(b.now())

	data, err := protocol.Encode(event)
	if err != nil {
		b.logger.Error("broadcast.encode", "channel_id", key.Channel, "room_id", key.Room, "err", err)
		return event
	}

	var delivered, failed int
	for _, conn := range b.index.Members(key) {
		if exclude != nil && conn.ID() == exclude.ID() {
			continue
		}
		if err := conn.Send(context.Background(), data); err != nil {
			failed++
			b.logger.Debug("broadcast.send_failed",
				"conn_id", conn.ID(), "channel_id", key.Channel, "room_id", key.Room, "err", err)
			continue
		}
		delivered++
	}

	b.metrics.Broadcast(event.Event, delivered, failed)
	b.logger.Debug("broadcast",
		"event", event.Event, "user_id", sender, "channel_id", key.Channel, "room_id", key.Room,
		"delivered", delivered, "failed", failed)
	return event
}
