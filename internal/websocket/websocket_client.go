package websocket

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/luciancaetano/roomrelay"
)

const (
	sendBufferSize = 256
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
)

var (
	ErrConnectionClosed = errors.New(roomrelay.ErrConnectionClosed)
	ErrContextCancelled = errors.New(roomrelay.ErrContextCancelled)
	ErrSendQueueFull    = errors.New(roomrelay.ErrSendQueueFull)
)

// Client implements roomrelay.Conn over a gorilla connection.
type Client struct {
	id         string
	conn       *websocket.Conn
	remoteAddr string
	ctx        context.Context
	cancel     context.CancelFunc
	sendCh     chan []byte
	logger     *slog.Logger

	mu         sync.RWMutex
	closed     bool
	closeFrame []byte
}

// NewClient wraps conn and starts its write pump.
func NewClient(conn *websocket.Conn, remoteAddr string, logger *slog.Logger) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	if logger == nil {
		logger = slog.Default()
	}

	client := &Client{
		id:         uuid.New().String(),
		conn:       conn,
		remoteAddr: remoteAddr,
		ctx:        ctx,
		cancel:     cancel,
		sendCh:     make(chan []byte, sendBufferSize),
		logger:     logger,
	}
	client.logger = logger.With("conn_id", client.id)

	go client.writePump()

	return client
}

// ID returns a unique identifier for the connected client
func (c *Client) ID() string {
	return c.id
}

// RemoteAddr returns the client's remote network address
func (c *Client) RemoteAddr() string {
	return c.remoteAddr
}

// Context returns the client's lifecycle context. It is cancelled once the
// write pump has stopped.
func (c *Client) Context() context.Context {
	return c.ctx
}

// Send queues data as a text frame. It never blocks on a slow peer: when the
// queue is full ErrSendQueueFull is returned and the frame is dropped.
func (c *Client) Send(ctx context.Context, data []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return ErrConnectionClosed
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.ctx.Done():
		return ErrContextCancelled
	default:
	}

	select {
	case c.sendCh <- data:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// Close closes the client connection
func (c *Client) Close(ctx context.Context) error {
	return c.CloseWithCode(ctx, websocket.CloseNormalClosure, "")
}

// CloseWithCode stops accepting frames and closes the connection with code and
// reason once the frames already queued have been written.
func (c *Client) CloseWithCode(ctx context.Context, code int, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	c.closed = true
	c.closeFrame = websocket.FormatCloseMessage(code, reason)
	close(c.sendCh)
	return nil
}

// IsAlive returns true if the connection is still active
func (c *Client) IsAlive() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.closed
}

// writePump pumps messages from the send channel to the websocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.cancel()
	}()

	for {
		select {
		case message, ok := <-c.sendCh:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// closeFrame is set before sendCh is closed
				if err := c.conn.WriteControl(websocket.CloseMessage, c.closeFrame, time.Now().Add(time.Second)); err != nil {
					c.logger.Debug("ws.close_write_failed", "err", err)
				}
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Debug("ws.write_failed", "err", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
