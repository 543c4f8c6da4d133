// Package ws assembles a ready-to-run room relay on top of the WebSocket transport.
package ws

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/luciancaetano/roomrelay"
	"github.com/luciancaetano/roomrelay/internal/history"
	"github.com/luciancaetano/roomrelay/internal/hub"
	"github.com/luciancaetano/roomrelay/internal/metrics"
	"github.com/luciancaetano/roomrelay/internal/ratelimit"
	"github.com/luciancaetano/roomrelay/internal/room"
	"github.com/luciancaetano/roomrelay/internal/session"
	"github.com/luciancaetano/roomrelay/internal/websocket"
)

type CheckOriginFn = websocket.CheckOriginFn
type ConnectLimitConfig = websocket.ConnectLimitConfig

// ErrServerAlreadyRunning is returned by Start on a relay that is already serving.
var ErrServerAlreadyRunning = websocket.ErrServerAlreadyRunning

// ErrStopped is returned by Start on a relay that has been stopped. A relay
// cannot be restarted; create a new one.
var ErrStopped = errors.New("relay stopped")

// Config configures a Relay. Zero values fall back to the package defaults.
type Config struct {
	// Addr is the listen address, e.g. ":9003"
	Addr string
	// Path is the WebSocket endpoint
	Path        string
	CheckOrigin CheckOriginFn

	// ConnectLimit throttles handshakes across the server
	ConnectLimit *ConnectLimitConfig
	// ReadLimit is the transport frame ceiling in bytes
	ReadLimit int64

	MaxHistory        int
	RateLimitMessages int
	RateLimitWindow   time.Duration
	MaxViolations     int
	SweepInterval     time.Duration

	// Metrics exposes Prometheus metrics at /metrics
	Metrics bool

	// Now is the clock used for timestamps and rate limiting
	Now    func() time.Time
	Logger *slog.Logger
}

// DefaultConfig returns the configuration the relay ships with: port 9003,
// endpoint /chat, 50 messages of history and 5 sends per second per user.
func DefaultConfig() Config {
	return Config{
		Addr:              fmt.Sprintf(":%d", roomrelay.DefaultPort),
		Path:              roomrelay.Endpoint,
		CheckOrigin:       AllOrigins(),
		ConnectLimit:      DefaultConnectLimitConfig(),
		ReadLimit:         websocket.DefaultReadLimit,
		MaxHistory:        roomrelay.MaxHistory,
		RateLimitMessages: roomrelay.RateLimitMessages,
		RateLimitWindow:   roomrelay.RateLimitWindow,
		MaxViolations:     roomrelay.MaxRateLimitViolations,
		SweepInterval:     hub.DefaultSweepInterval,
		Metrics:           true,
	}
}

// Relay is a room relay server. It implements roomrelay.Server.
type Relay struct {
	server *websocket.Server
	hub    *hub.Hub
	logger *slog.Logger

	mu        sync.Mutex
	stopHub   context.CancelFunc
	hubExited chan struct{}
	stopped   bool
}

var _ roomrelay.Server = (*Relay)(nil)

// New wires a relay from cfg.
func New(cfg Config) *Relay {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	var m *metrics.Metrics
	if cfg.Metrics {
		m = metrics.New()
	}

	limiter := ratelimit.New(cfg.RateLimitMessages, cfg.RateLimitWindow)
	handler := session.New(session.Options{
		Index:         room.NewIndex(),
		History:       history.New(cfg.MaxHistory),
		Limiter:       limiter,
		MaxViolations: cfg.MaxViolations,
		Now:           cfg.Now,
		Logger:        cfg.Logger,
		Metrics:       m,
	})
	h := hub.New(handler, hub.Options{
		Sweeper:       limiter,
		SweepInterval: cfg.SweepInterval,
		Now:           cfg.Now,
		Logger:        cfg.Logger,
	})

	return &Relay{
		server: websocket.New(&websocket.ServerConfig{
			Addr:         cfg.Addr,
			Path:         cfg.Path,
			CheckOrigin:  cfg.CheckOrigin,
			Handler:      h,
			ConnectLimit: cfg.ConnectLimit,
			ReadLimit:    cfg.ReadLimit,
			Logger:       cfg.Logger,
			Metrics:      m,
		}),
		hub:    h,
		logger: cfg.Logger,
	}
}

// Start begins accepting connections and then launches the dispatcher. Events
// from connections accepted in between are queued. A failed Start leaves the
// dispatcher untouched, so Start may be retried.
func (r *Relay) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return ErrStopped
	}
	if r.stopHub != nil {
		return ErrServerAlreadyRunning
	}

	if err := r.server.Start(ctx); err != nil {
		return err
	}

	hubCtx, cancel := context.WithCancel(context.Background())
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		if err := r.hub.Run(hubCtx); err != nil && hubCtx.Err() == nil {
			r.logger.Error("relay.hub", "err", err)
		}
	}()

	r.stopHub = cancel
	r.hubExited = exited
	return nil
}

// Stop closes every connection, stops accepting new ones and shuts the
// dispatcher down.
func (r *Relay) Stop(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	err := r.server.Stop(ctx)
	if r.stopHub != nil {
		r.stopHub()
		<-r.hubExited
		r.stopHub = nil
		r.stopped = true
	}
	return err
}

// ConnCount returns the number of open connections.
func (r *Relay) ConnCount() int {
	return r.server.ConnCount()
}

// Addr returns the address the relay is listening on.
func (r *Relay) Addr() string {
	return r.server.Addr()
}

// Handler returns the HTTP routes of the relay for embedding in another server.
// The dispatcher must be running, see Start.
func (r *Relay) Handler() http.Handler {
	return r.server.Handler()
}

// AllOrigins returns the default checkOrigin function that allows all origins
func AllOrigins() CheckOriginFn {
	return func(r *http.Request) bool {
		return true
	}
}

// AllowedOrigins returns a checkOrigin function accepting only the listed
// Origin header values. Requests without an Origin header are accepted.
func AllowedOrigins(origins ...string) CheckOriginFn {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := allowed[origin]
		return ok
	}
}

// DefaultConnectLimitConfig returns the default handshake throttle
func DefaultConnectLimitConfig() *ConnectLimitConfig {
	return websocket.DefaultConnectLimitConfig()
}

// NoConnectLimit returns a configuration with handshake throttling disabled
func NoConnectLimit() *ConnectLimitConfig {
	return websocket.NoConnectLimit()
}
