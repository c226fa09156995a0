// Package net carries the router protocol over websockets.
package net

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/skyrts/backend/internal/config"
	"go.uber.org/zap"
)

// Gauge tracks connected sessions. prometheus.Gauge satisfies it.
type Gauge interface {
	Inc()
	Dec()
}

// Server upgrades HTTP requests to websocket Sessions. New and dead
// sessions are communicated to the game loop via channels.
type Server struct {
	http     *http.Server
	listener net.Listener
	upgrader websocket.Upgrader
	opts     SessionOptions
	newConns chan *Session
	deadCh   chan uuid.UUID
	gauge    Gauge
	log      *zap.Logger
}

func NewServer(cfg config.NetworkConfig, gauge Gauge, log *zap.Logger) *Server {
	s := &Server{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		opts: SessionOptions{
			InSize:       cfg.InQueueSize,
			OutSize:      cfg.OutQueueSize,
			WriteTimeout: cfg.WriteTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			MaxMessage:   cfg.MaxMessage,
		},
		newConns: make(chan *Session, 16),
		deadCh:   make(chan uuid.UUID, 16),
		gauge:    gauge,
		log:      log,
	}
	path := cfg.Path
	if path == "" {
		path = "/"
	}
	mux := http.NewServeMux()
	mux.Handle(path, s)
	s.http = &http.Server{Handler: mux}
	return s
}

// ServeHTTP upgrades the request and hands the session to the game loop.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.String("remote", r.RemoteAddr), zap.Error(err))
		return
	}
	sess := NewSession(conn, s.opts, s.log)
	sess.onClose = s.NotifyDead

	if s.gauge != nil {
		s.gauge.Inc()
	}
	select {
	case s.newConns <- sess:
	default:
		s.log.Warn("session queue full, refusing controller", zap.String("remote", sess.Remote))
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "busy"))
		conn.Close()
		if s.gauge != nil {
			s.gauge.Dec()
		}
		return
	}
	sess.Start()
	s.log.Info("controller connected",
		zap.String("session", sess.ID.String()),
		zap.String("remote", sess.Remote))
}

// Listen binds addr. Serve must be called afterwards.
func (s *Server) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.listener = ln
	return nil
}

// Serve runs the HTTP server until Shutdown. Run it in its own goroutine.
func (s *Server) Serve() error {
	if err := s.http.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// NewSessions returns the channel of newly connected sessions.
func (s *Server) NewSessions() <-chan *Session {
	return s.newConns
}

// NotifyDead reports a dead session to the game loop.
func (s *Server) NotifyDead(id uuid.UUID) {
	if s.gauge != nil {
		s.gauge.Dec()
	}
	select {
	case s.deadCh <- id:
	default:
		s.log.Warn("dead session queue full", zap.String("session", id.String()))
	}
}

// DeadSessions returns the channel of dead session ids.
func (s *Server) DeadSessions() <-chan uuid.UUID {
	return s.deadCh
}

// Shutdown stops accepting connections. Open sessions are left to the
// game loop to close.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// Addr returns the listener's address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}
