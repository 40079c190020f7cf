// Package cookserver exposes cooking sessions over a websocket.
//
// Each websocket connection drives at most one controller.Session at a
// time. Clients send JSON text frames (connect, utterance, event, image,
// tick, reset, disconnect) and receive outcome, state and error frames.
// Outcomes of the session's own timers are pushed as they happen.
package cookserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/haivivi/cookguide/pkg/controller"
	"github.com/haivivi/cookguide/pkg/memlog"
)

// ErrSessionInUse is returned when a client connects to a session id that
// another connection holds.
var ErrSessionInUse = errors.New("cookserver: session in use")

// SessionFactory creates the session for id. onOutcome must be passed to
// controller.Config.OnOutcome.
type SessionFactory func(id string, onOutcome func(controller.Outcome)) (*controller.Session, error)

// Config configures a Server.
type Config struct {
	NewSession SessionFactory

	// ReadLimit bounds client frames, camera images included. Defaults to
	// 8 MiB.
	ReadLimit int64

	// PingInterval defaults to 20s; WriteTimeout to 5s.
	PingInterval time.Duration
	WriteTimeout time.Duration

	// QueueSize bounds client commands waiting for the session. Defaults
	// to controller.DefaultQueueSize.
	QueueSize int

	// CheckOrigin defaults to accepting every origin.
	CheckOrigin func(r *http.Request) bool

	Logger *slog.Logger
}

// Server is an http.Handler serving /ws and /healthz.
type Server struct {
	cfg      Config
	upgrader websocket.Upgrader
	mux      *http.ServeMux

	mu       sync.Mutex
	sessions map[string]*controller.Session
}

func New(cfg Config) *Server {
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = 8 << 20
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 20 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = controller.DefaultQueueSize
	}
	if cfg.CheckOrigin == nil {
		cfg.CheckOrigin = func(*http.Request) bool { return true }
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	s := &Server{
		cfg:      cfg,
		upgrader: websocket.Upgrader{CheckOrigin: cfg.CheckOrigin},
		mux:      http.NewServeMux(),
		sessions: make(map[string]*controller.Session),
	}
	s.mux.HandleFunc("GET /ws", s.handleWS)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Sessions returns the number of attached sessions.
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Close closes every attached session without clearing its memory.
func (s *Server) Close() error {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*controller.Session)
	s.mu.Unlock()
	for _, sess := range sessions {
		// nil is a slot reserved by a connect in progress.
		if sess != nil {
			sess.Close()
		}
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{
		"status":   "ok",
		"sessions": s.Sessions(),
	}); err != nil {
		s.cfg.Logger.Error("cookserver: encode health", "error", err)
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.cfg.Logger.Warn("cookserver: upgrade failed", "error", err)
		return
	}
	c := newConn(s, ws)
	if err := c.serve(r.Context()); err != nil && !isClosed(err) {
		s.cfg.Logger.Warn("cookserver: connection ended", "remote", r.RemoteAddr, "error", err)
	}
}

// attach creates and registers the session for id.
func (s *Server) attach(id string, onOutcome func(controller.Outcome)) (*controller.Session, error) {
	if s.cfg.NewSession == nil {
		return nil, fmt.Errorf("cookserver: no session factory")
	}
	if id == "" {
		id = uuid.NewString()
	}
	if err := memlog.ValidateSession(id); err != nil {
		return nil, err
	}
	s.mu.Lock()
	if _, ok := s.sessions[id]; ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrSessionInUse, id)
	}
	s.sessions[id] = nil
	s.mu.Unlock()

	sess, err := s.cfg.NewSession(id, onOutcome)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		delete(s.sessions, id)
		return nil, err
	}
	s.sessions[id] = sess
	return sess, nil
}

// detach closes the session and forgets it.
func (s *Server) detach(sess *controller.Session) {
	s.mu.Lock()
	if s.sessions[sess.ID()] == sess {
		delete(s.sessions, sess.ID())
	}
	s.mu.Unlock()
	sess.Close()
}

func isClosed(err error) bool {
	return errors.Is(err, context.Canceled) ||
		websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived)
}
