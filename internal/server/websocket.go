package server

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/zeusync/orca/internal/core/observability/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

type session struct {
	id     string
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	once   sync.Once
	logger log.Log
}

func (c *session) enqueue(payload []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

func (c *session) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.isDraining() {
		http.Error(w, ErrServerStopping.Error(), http.StatusServiceUnavailable)
		return
	}

	if int(atomic.LoadInt64(&s.sessionCount)) >= s.config.MaxClients {
		s.logger.Warn("Maximum clients reached, rejecting connection",
			log.String("remote_addr", r.RemoteAddr))
		http.Error(w, ErrMaxClientsReached.Error(), http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Websocket upgrade failed", log.Error(err))
		return
	}

	id := uuid.NewString()
	sess := &session{
		id:     id,
		conn:   conn,
		send:   make(chan []byte, s.config.SendBuffer),
		done:   make(chan struct{}),
		logger: s.logger.With(log.String("client_id", id)),
	}

	if !s.register(sess) {
		sess.logger.Debug("Server stopping, dropping upgraded connection")
		_ = conn.Close()
		return
	}

	sess.logger.Info("Client connected",
		log.String("remote_addr", conn.RemoteAddr().String()),
		log.Int64("total_clients", atomic.LoadInt64(&s.sessionCount)))

	go s.writeLoop(sess)

	defer s.workerGroup.Done()
	s.readLoop(sess)
}

func (s *Server) isDraining() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draining
}

// register adds sess and accounts for its read and write loops, unless
// Stop has already begun.
func (s *Server) register(sess *session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.draining {
		return false
	}

	s.sessions.Store(sess.id, sess)
	atomic.AddInt64(&s.sessionCount, 1)
	s.workerGroup.Add(2)
	return true
}

// readLoop only drains control frames; viewers never send data.
func (s *Server) readLoop(sess *session) {
	defer func() {
		s.sessions.Delete(sess.id)
		atomic.AddInt64(&s.sessionCount, -1)
		sess.close()

		sess.logger.Info("Client disconnected",
			log.Int64("total_clients", atomic.LoadInt64(&s.sessionCount)))
	}()

	for {
		if _, _, err := sess.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) writeLoop(sess *session) {
	defer s.workerGroup.Done()

	for {
		select {
		case <-sess.done:
			return
		case payload := <-sess.send:
			_ = sess.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
			if err := sess.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				sess.logger.Debug("Failed to write snapshot", log.Error(err))
				sess.close()
				return
			}
		}
	}
}
