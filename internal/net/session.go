package net

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/skyrts/backend/internal/protocol"
	"go.uber.org/zap"
)

// Session is one controller connection. Network I/O runs in dedicated
// goroutines; the backend is driven only from the game loop.
type Session struct {
	ID   uuid.UUID
	conn *websocket.Conn

	InQueue  chan *protocol.MultiMessage // game loop reads decoded frames from here
	OutQueue chan []byte                 // writer goroutine reads from here

	Remote string

	outBuf []*protocol.MultiMessage // game loop only

	writeTimeout time.Duration
	readTimeout  time.Duration

	onClose   func(uuid.UUID)
	closeCh   chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool

	log *zap.Logger
}

type SessionOptions struct {
	InSize       int
	OutSize      int
	WriteTimeout time.Duration
	ReadTimeout  time.Duration
	MaxMessage   int64
}

func NewSession(conn *websocket.Conn, opts SessionOptions, log *zap.Logger) *Session {
	id := uuid.New()
	if opts.MaxMessage > 0 {
		conn.SetReadLimit(opts.MaxMessage)
	}
	return &Session{
		ID:           id,
		conn:         conn,
		InQueue:      make(chan *protocol.MultiMessage, opts.InSize),
		OutQueue:     make(chan []byte, opts.OutSize),
		Remote:       conn.RemoteAddr().String(),
		writeTimeout: opts.WriteTimeout,
		readTimeout:  opts.ReadTimeout,
		closeCh:      make(chan struct{}),
		log:          log.With(zap.String("session", id.String())),
	}
}

// Start launches the reader and writer goroutines.
func (s *Session) Start() {
	go s.readLoop()
	go s.writeLoop()
}

// Send buffers a message until FlushOutput. Game loop only.
func (s *Session) Send(m *protocol.MultiMessage) {
	if s.closed.Load() || m == nil || m.Empty() {
		return
	}
	s.outBuf = append(s.outBuf, m)
}

// FlushOutput encodes the buffered messages and hands them to the writer.
// A full OutQueue disconnects the session.
func (s *Session) FlushOutput() {
	defer func() { s.outBuf = s.outBuf[:0] }()
	for _, m := range s.outBuf {
		data, err := protocol.Encode(m)
		if err != nil {
			s.log.Error("encode outbound message", zap.Error(err))
			continue
		}
		select {
		case s.OutQueue <- data:
		default:
			s.log.Warn("output queue full, dropping slow controller")
			s.Close()
			return
		}
	}
}

// Close shuts the session down. Frames already queued are still written
// before the connection closes. Safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.closeCh)
		if s.onClose != nil {
			s.onClose(s.ID)
		}
	})
}

func (s *Session) IsClosed() bool {
	return s.closed.Load()
}

// readLoop decodes frames and pushes them onto InQueue. Frames that fail to
// decode are answered with a non-fatal error and skipped.
func (s *Session) readLoop() {
	defer s.Close()

	for {
		if s.readTimeout > 0 {
			s.conn.SetReadDeadline(time.Now().Add(s.readTimeout))
		}
		kind, payload, err := s.conn.ReadMessage()
		if err != nil {
			if !s.closed.Load() && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug("read error", zap.Error(err))
			}
			return
		}
		if kind != websocket.TextMessage && kind != websocket.BinaryMessage {
			continue
		}

		msg, err := protocol.Decode(payload)
		if err != nil {
			s.log.Warn("discarding malformed frame", zap.Int("len", len(payload)), zap.Error(err))
			s.reject(err)
			continue
		}

		// Block until the loop catches up; frames are never dropped.
		select {
		case s.InQueue <- msg:
		case <-s.closeCh:
			return
		}
	}
}

func (s *Session) reject(err error) {
	reply := &protocol.MultiMessage{}
	reply.Push(protocol.Packet{
		Src:   protocol.Backend,
		Dest:  protocol.Core,
		Error: &protocol.Error{Description: err.Error()},
	})
	data, err := protocol.Encode(reply)
	if err != nil {
		return
	}
	select {
	case s.OutQueue <- data:
	default:
	}
}

// writeLoop writes queued frames to the websocket. It owns closing the
// connection, which also unblocks readLoop.
func (s *Session) writeLoop() {
	defer s.conn.Close()

	for {
		select {
		case data := <-s.OutQueue:
			if !s.write(data) {
				s.Close()
				return
			}
		case <-s.closeCh:
			s.drain()
			return
		}
	}
}

// drain writes what is left in OutQueue, then the close frame.
func (s *Session) drain() {
	for {
		select {
		case data := <-s.OutQueue:
			if !s.write(data) {
				return
			}
		default:
			s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			return
		}
	}
}

func (s *Session) write(data []byte) bool {
	if s.writeTimeout > 0 {
		s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		if !s.closed.Load() {
			s.log.Debug("write error", zap.Error(err))
		}
		return false
	}
	return true
}
