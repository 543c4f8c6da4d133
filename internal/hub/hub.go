// Package hub serializes connection events onto a single goroutine.
//
// The transport calls the hub from one goroutine per connection; the hub queues
// every open, message and close event and hands them to the wrapped handler one
// at a time, so the handler's room, history and rate-limit state is only ever
// touched from the dispatch loop.
package hub

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/luciancaetano/roomrelay"
)

const (
	// DefaultQueueSize is the number of events buffered ahead of the dispatcher.
	DefaultQueueSize = 1024

	// DefaultSweepInterval is how often idle rate-limit windows are evicted.
	DefaultSweepInterval = time.Minute
)

// ErrAlreadyRunning is returned by Run when the dispatch loop was already started.
var ErrAlreadyRunning = errors.New("hub already running")

// Sweeper evicts idle state. It is called from the dispatch loop.
type Sweeper interface {
	Sweep(now time.Time) int
}

type eventKind int

const (
	eventOpen eventKind = iota
	eventMessage
	eventClose
)

type event struct {
	kind  eventKind
	conn  roomrelay.Conn
	frame []byte
}

// Options configures a Hub.
type Options struct {
	QueueSize     int
	Sweeper       Sweeper
	SweepInterval time.Duration
	Now           func() time.Time
	Logger        *slog.Logger
}

// Hub implements roomrelay.Handler on top of a handler that is not safe for
// concurrent use.
type Hub struct {
	handler       roomrelay.Handler
	events        chan event
	done          chan struct{}
	running       atomic.Bool
	sweeper       Sweeper
	sweepInterval time.Duration
	now           func() time.Time
	logger        *slog.Logger
}

var _ roomrelay.Handler = (*Hub)(nil)

// New wraps handler. Events are queued until Run is called.
func New(handler roomrelay.Handler, opts Options) *Hub {
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = DefaultSweepInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Hub{
		handler:       handler,
		events:        make(chan event, opts.QueueSize),
		done:          make(chan struct{}),
		sweeper:       opts.Sweeper,
		sweepInterval: opts.SweepInterval,
		now:           opts.Now,
		logger:        opts.Logger,
	}
}

// Run dispatches queued events until ctx is cancelled. Events still queued
// when ctx is cancelled are discarded.
func (h *Hub) Run(ctx context.Context) error {
	if !h.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer close(h.done)

	var sweep <-chan time.Time
	if h.sweeper != nil {
		ticker := time.NewTicker(h.sweepInterval)
		defer ticker.Stop()
		sweep = ticker.C
	}

	h.logger.Debug("hub.start")
	for {
		select {
		case <-ctx.Done():
			h.logger.Debug("hub.stop", "pending", len(h.events))
			return ctx.Err()
		case ev := <-h.events:
			h.dispatch(ev)
		case <-sweep:
			if n := h.sweeper.Sweep(h.now()); n > 0 {
				h.logger.Debug("hub.sweep", "evicted", n)
			}
		}
	}
}

// Wait blocks until Run has returned.
func (h *Hub) Wait() {
	<-h.done
}

func (h *Hub) dispatch(ev event) {
	switch ev.kind {
	case eventOpen:
		h.handler.OnOpen(ev.conn)
	case eventMessage:
		h.handler.OnMessage(ev.conn, ev.frame)
	case eventClose:
		h.handler.OnClose(ev.conn)
	}
}

// enqueue blocks while the queue is full. It is a no-op once Run has returned.
func (h *Hub) enqueue(ev event) {
	select {
	case <-h.done:
		return
	default:
	}
	select {
	case h.events <- ev:
	case <-h.done:
	}
}

func (h *Hub) OnOpen(conn roomrelay.Conn) {
	h.enqueue(event{kind: eventOpen, conn: conn})
}

func (h *Hub) OnMessage(conn roomrelay.Conn, frame []byte) {
	h.enqueue(event{kind: eventMessage, conn: conn, frame: frame})
}

func (h *Hub) OnClose(conn roomrelay.Conn) {
	h.enqueue(event{kind: eventClose, conn: conn})
}
