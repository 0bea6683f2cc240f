// Package server streams world snapshots to websocket viewers.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/zeusync/orca/internal/core/observability/log"
	"github.com/zeusync/orca/pkg/rvo"
)

// Server owns the HTTP listener and the set of connected viewers.
type Server struct {
	httpServer *http.Server
	listener   net.Listener

	sessions     sync.Map // map[string]*session
	sessionCount int64    // atomic

	running int32 // atomic bool
	closed  int32 // atomic bool

	// mu orders session registration against Stop so that workerGroup.Add
	// never runs concurrently with Wait.
	mu       sync.Mutex
	draining bool

	config  Config
	logger  log.Log
	limiter *rate.Limiter // nil when frames are not throttled

	workerGroup sync.WaitGroup
}

// Config holds server configuration
type Config struct {
	ListenAddr string
	MaxClients int

	// Frames queued per viewer before new ones are dropped.
	SendBuffer   int
	WriteTimeout time.Duration

	// MaxFrameRate caps broadcasts per second; 0 sends every frame.
	MaxFrameRate float64
}

// DefaultConfig returns default server configuration
func DefaultConfig() Config {
	return Config{
		ListenAddr:   "127.0.0.1:8080",
		MaxClients:   256,
		SendBuffer:   16,
		WriteTimeout: 5 * time.Second,
	}
}

// NewServer creates a snapshot server. A nil logger disables logging.
func NewServer(config Config, logger log.Log) *Server {
	defaults := DefaultConfig()
	if config.MaxClients <= 0 {
		config.MaxClients = defaults.MaxClients
	}
	if config.SendBuffer <= 0 {
		config.SendBuffer = defaults.SendBuffer
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = defaults.WriteTimeout
	}
	if logger == nil {
		logger = log.NewNop()
	}

	s := &Server{
		config: config,
		logger: logger.With(log.String("component", "server")),
	}

	if config.MaxFrameRate > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(config.MaxFrameRate), 1)
	}

	s.logger.Info("Server created",
		log.String("listen_addr", config.ListenAddr),
		log.Int("max_clients", config.MaxClients))

	return s
}

// Handler returns the HTTP handler serving /ws.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	return mux
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start(_ context.Context) error {
	if atomic.LoadInt32(&s.closed) == 1 {
		return ErrServerClosed
	}

	if !atomic.CompareAndSwapInt32(&s.running, 0, 1) {
		return ErrServerAlreadyRunning
	}

	listener, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		atomic.StoreInt32(&s.running, 0)
		s.logger.Error("Failed to create listener", log.Error(err))
		return fmt.Errorf("%w: %v", ErrListenerFailed, err)
	}

	s.mu.Lock()
	s.draining = false
	s.mu.Unlock()

	s.listener = listener
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.workerGroup.Add(1)
	go func() {
		defer s.workerGroup.Done()
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server failed", log.Error(err))
		}
	}()

	s.logger.Info("Server listening", log.String("addr", listener.Addr().String()))

	return nil
}

// Addr is the bound listener address, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop shuts down the listener, disconnects every viewer and waits for
// their loops to exit. Viewers arriving meanwhile are turned away.
func (s *Server) Stop(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.running, 1, 0) {
		return ErrServerNotRunning
	}

	s.logger.Info("Stopping server")

	s.mu.Lock()
	s.draining = true
	s.mu.Unlock()

	err := s.httpServer.Shutdown(ctx)

	// Shutdown does not track hijacked connections.
	s.sessions.Range(func(_, value any) bool {
		value.(*session).close()
		return true
	})

	s.workerGroup.Wait()

	s.logger.Info("Server stopped")

	return err
}

// Close stops the server if needed and prevents restarts.
func (s *Server) Close() error {
	if !atomic.CompareAndSwapInt32(&s.closed, 0, 1) {
		return nil
	}

	if atomic.LoadInt32(&s.running) == 1 {
		return s.Stop(context.Background())
	}
	return nil
}

// Clients is the number of connected viewers.
func (s *Server) Clients() int {
	return int(atomic.LoadInt64(&s.sessionCount))
}

// Broadcast queues a snapshot for every viewer. Viewers whose buffer is
// full skip this frame, and so does everyone when the frame rate cap is
// exceeded.
func (s *Server) Broadcast(snap rvo.Snapshot) error {
	if s.limiter != nil && !s.limiter.Allow() {
		return nil
	}

	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	s.sessions.Range(func(_, value any) bool {
		sess := value.(*session)
		if !sess.enqueue(payload) {
			sess.logger.Debug("Dropping frame for slow client", log.Float64("time", snap.Time))
		}
		return true
	})
	return nil
}
