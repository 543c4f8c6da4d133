package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/luciancaetano/roomrelay"
	"github.com/luciancaetano/roomrelay/internal/metrics"
)

// DefaultReadLimit is the largest frame the transport will read. Frames above
// roomrelay.MaxFrameSize but within this limit still reach the handler so the
// client can be told why they were rejected.
const DefaultReadLimit int64 = 64 << 10

var ErrServerAlreadyRunning = errors.New(roomrelay.ErrServerAlreadyRunning)

// CheckOriginFn is a function that validates the origin of a WebSocket connection request.
// It receives the HTTP request and returns true if the origin is allowed, false otherwise.
type CheckOriginFn = func(r *http.Request) bool

type ServerConfig struct {
	Addr         string
	Path         string
	CheckOrigin  CheckOriginFn
	Handler      roomrelay.Handler
	ConnectLimit *ConnectLimitConfig
	ReadLimit    int64
	Logger       *slog.Logger
	Metrics      *metrics.Metrics
}

// ConnectLimitConfig throttles WebSocket upgrades across the whole server.
type ConnectLimitConfig struct {
	// PerSecond is the sustained number of handshakes accepted per second
	PerSecond rate.Limit
	// Burst is the token bucket capacity
	Burst int
	// Enabled determines if the limit is applied
	Enabled bool
}

// DefaultConnectLimitConfig allows 50 handshakes per second with a burst of 100.
func DefaultConnectLimitConfig() *ConnectLimitConfig {
	return &ConnectLimitConfig{
		PerSecond: 50,
		Burst:     100,
		Enabled:   true,
	}
}

// NoConnectLimit returns a configuration with handshake throttling disabled
func NoConnectLimit() *ConnectLimitConfig {
	return &ConnectLimitConfig{
		Enabled: false,
	}
}

// Server implements roomrelay.Server
type Server struct {
	addr      string
	path      string
	server    *http.Server
	listener  net.Listener
	clients   sync.Map // map[string]*Client
	handler   roomrelay.Handler
	limiter   *rate.Limiter
	readLimit int64
	logger    *slog.Logger
	metrics   *metrics.Metrics
	active    sync.WaitGroup

	mu       sync.RWMutex
	running  bool
	stopping bool
	upgrader websocket.Upgrader
}

var _ roomrelay.Server = (*Server)(nil)

// New creates a server that hands every connection event to cfg.Handler.
//
// Path defaults to roomrelay.Endpoint, ConnectLimit to
// DefaultConnectLimitConfig() and ReadLimit to DefaultReadLimit.
func New(cfg *ServerConfig) *Server {
	if cfg.Path == "" {
		cfg.Path = roomrelay.Endpoint
	}
	if cfg.ConnectLimit == nil {
		cfg.ConnectLimit = DefaultConnectLimitConfig()
	}
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = DefaultReadLimit
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	var limiter *rate.Limiter
	if cfg.ConnectLimit.Enabled {
		limiter = rate.NewLimiter(cfg.ConnectLimit.PerSecond, cfg.ConnectLimit.Burst)
	}

	return &Server{
		addr:      cfg.Addr,
		path:      cfg.Path,
		handler:   cfg.Handler,
		limiter:   limiter,
		readLimit: cfg.ReadLimit,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     cfg.CheckOrigin,
		},
	}
}

// Handler returns the HTTP routes served by the server: the WebSocket
// endpoint, /healthz and, when metrics are configured, /metrics.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(s.path, s.handleWebSocket)
	mux.HandleFunc("/healthz", s.handleHealth)
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics.Handler())
	}
	return mux
}

// Start starts listening and serving in the background.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrServerAlreadyRunning
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.listener = ln
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.running = true
	s.stopping = false
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	s.logger.Info("ws.listening", "addr", ln.Addr().String(), "path", s.path)

	// Check for immediate startup errors with a small timeout
	select {
	case err := <-errChan:
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return err
	case <-ctx.Done():
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(stopCtx)
	case <-time.After(100 * time.Millisecond):
		return nil
	}
}

// Stop stops accepting connections, closes every client and waits for their
// close events to be delivered or ctx to expire. It also closes clients
// accepted through Handler when the server was never started.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.stopping {
		s.mu.Unlock()
		return nil
	}
	wasRunning := s.running
	s.running = false
	s.stopping = true
	s.mu.Unlock()

	var shutdownErr error
	if wasRunning && s.server != nil {
		shutdownErr = s.server.Shutdown(ctx)
	}

	s.clients.Range(func(key, value interface{}) bool {
		if client, ok := value.(*Client); ok {
			client.CloseWithCode(ctx, websocket.CloseGoingAway, roomrelay.CloseReasonShutdown)
		}
		return true
	})

	drained := make(chan struct{})
	go func() {
		s.active.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-ctx.Done():
		s.logger.Warn("ws.stop_timeout", "open", s.ConnCount())
		if shutdownErr == nil {
			shutdownErr = ctx.Err()
		}
	}

	s.logger.Info("ws.stopped")
	return shutdownErr
}

// Addr returns the address the server is listening on, or the configured
// address before Start.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// ConnCount returns the number of open connections.
func (s *Server) ConnCount() int {
	n := 0
	s.clients.Range(func(_, _ interface{}) bool {
		n++
		return true
	})
	return n
}

func (s *Server) isStopping() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stopping
}

// reserve counts a handshake as active unless the server is stopping. Stop
// sets stopping under the same lock before it waits on active.
func (s *Server) reserve() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopping {
		return false
	}
	s.active.Add(1)
	return true
}

// handleWebSocket handles incoming WebSocket connections
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !s.reserve() {
		http.Error(w, roomrelay.CloseReasonShutdown, http.StatusServiceUnavailable)
		return
	}
	if s.limiter != nil && !s.limiter.Allow() {
		s.active.Done()
		s.metrics.HandshakeRejected()
		s.logger.Warn("ws.connect_limited", "remote", r.RemoteAddr)
		http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		return
	}

	// Upgrade replies to the client itself on failure
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.active.Done()
		s.logger.Debug("ws.upgrade_failed", "remote", r.RemoteAddr, "err", err)
		return
	}
	conn.SetReadLimit(s.readLimit)

	client := NewClient(conn, r.RemoteAddr, s.logger)
	s.clients.Store(client.ID(), client)
	s.metrics.ConnOpened()

	go s.handleClient(client)
}

// handleClient reads frames from client until the connection ends
func (s *Server) handleClient(client *Client) {
	defer func() {
		client.Close(context.Background())
		s.clients.Delete(client.ID())
		if s.handler != nil {
			s.handler.OnClose(client)
		}
		s.metrics.ConnClosed()
		s.active.Done()
	}()

	client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	if s.handler != nil {
		s.handler.OnOpen(client)
	}

	// a stop that raced the upgrade missed this client in its sweep
	if s.isStopping() {
		client.CloseWithCode(context.Background(), websocket.CloseGoingAway, roomrelay.CloseReasonShutdown)
	}

	for {
		_, data, err := client.conn.ReadMessage()
		if err != nil {
			switch {
			case errors.Is(err, websocket.ErrReadLimit):
				client.logger.Warn("ws.read_limit", "limit", s.readLimit)
			case websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure):
				client.logger.Warn("ws.unexpected_close", "err", err)
			default:
				client.logger.Debug("ws.read_done", "err", err)
			}
			return
		}

		client.conn.SetReadDeadline(time.Now().Add(pongWait))

		if s.handler != nil {
			s.handler.OnMessage(client, data)
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	status := http.StatusOK
	body := map[string]any{"status": "ok", "connections": s.ConnCount()}
	if s.isStopping() {
		status = http.StatusServiceUnavailable
		body["status"] = "stopping"
	}
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
