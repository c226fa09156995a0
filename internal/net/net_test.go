package net

import (
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/skyrts/backend/internal/config"
	"github.com/skyrts/backend/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countGauge struct{ n atomic.Int64 }

func (g *countGauge) Inc() { g.n.Add(1) }
func (g *countGauge) Dec() { g.n.Add(-1) }

func testConfig() config.NetworkConfig {
	return config.NetworkConfig{
		Path:         "/ws",
		InQueueSize:  4,
		OutQueueSize: 4,
		WriteTimeout: time.Second,
		ReadTimeout:  5 * time.Second,
		MaxMessage:   1 << 20,
	}
}

func dial(t *testing.T, srv *Server) (*websocket.Conn, *Session) {
	t.Helper()
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	select {
	case sess := <-srv.NewSessions():
		return conn, sess
	case <-time.After(2 * time.Second):
		t.Fatal("no session")
	}
	return nil, nil
}

func readMessage(t *testing.T, conn *websocket.Conn) *protocol.MultiMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	m, err := protocol.Decode(data)
	require.NoError(t, err)
	return m
}

func TestSessionRoundTrip(t *testing.T) {
	srv := NewServer(testConfig(), nil, zap.NewNop())
	conn, sess := dial(t, srv)
	defer sess.Close()

	reset := true
	out := &protocol.MultiMessage{}
	out.Push(protocol.Packet{Src: protocol.Core, Dest: protocol.Backend, ResetEnv: &reset})
	data, err := protocol.Encode(out)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))

	select {
	case m := <-sess.InQueue:
		require.Len(t, m.Packets, 1)
		assert.Equal(t, "reset_env", m.Packets[0].Kind())
	case <-time.After(2 * time.Second):
		t.Fatal("frame not delivered")
	}

	reply := &protocol.MultiMessage{}
	reply.Push(protocol.Packet{Src: protocol.Backend, Dest: protocol.Viz, VizInit: &protocol.VizInit{}})
	sess.Send(reply)
	sess.Send(&protocol.MultiMessage{})
	sess.FlushOutput()

	got := readMessage(t, conn)
	require.Len(t, got.Packets, 1)
	assert.Equal(t, protocol.Viz, got.Packets[0].Dest)
	assert.NotNil(t, got.Packets[0].VizInit)
}

func TestMalformedFrameIsRejected(t *testing.T) {
	srv := NewServer(testConfig(), nil, zap.NewNop())
	conn, sess := dial(t, srv)
	defer sess.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	got := readMessage(t, conn)
	require.Len(t, got.Packets, 1)
	require.NotNil(t, got.Packets[0].Error)
	assert.False(t, got.Packets[0].Error.Fatal)
	assert.Empty(t, sess.InQueue)
	assert.False(t, sess.IsClosed())
}

func TestDisconnectIsReported(t *testing.T) {
	gauge := &countGauge{}
	srv := NewServer(testConfig(), gauge, zap.NewNop())
	conn, sess := dial(t, srv)
	assert.Equal(t, int64(1), gauge.n.Load())

	require.NoError(t, conn.Close())
	select {
	case id := <-srv.DeadSessions():
		assert.Equal(t, sess.ID, id)
	case <-time.After(2 * time.Second):
		t.Fatal("dead session not reported")
	}
	assert.True(t, sess.IsClosed())
	assert.Equal(t, int64(0), gauge.n.Load())

	sess.Close()
	sess.Send(&protocol.MultiMessage{Packets: []protocol.Packet{{VizInit: &protocol.VizInit{}}}})
	assert.Empty(t, sess.outBuf)
}
