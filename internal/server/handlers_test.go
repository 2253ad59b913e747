package server

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/jonathanprocter/practice-intelligently-sub010/internal/config"
	"github.com/jonathanprocter/practice-intelligently-sub010/internal/realtime"
)

// testServerConfig uses generous limits so only the test that tightens a
// limit ever hits it.
func testServerConfig() *config.Config {
	return &config.Config{
		Port:                "0",
		MaxConnections:      100,
		MaxConnectionsPerIP: 100,
		HandshakesPerSecond: 1000,
		HandshakeBurst:      1000,
	}
}

func newTestServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()
	if cfg == nil {
		cfg = testServerConfig()
	}

	hub := realtime.NewHub(realtime.Config{
		BatchInterval:     20 * time.Millisecond,
		MaxBatchSize:      50,
		ThrottleInterval:  5 * time.Millisecond,
		HeartbeatInterval: time.Hour,
		MaxQueueDepth:     1000,
		StatsInterval:     time.Hour,
	}, nil, nil, nil, clockwork.NewRealClock())
	t.Cleanup(hub.Stop)

	return NewServer(cfg, hub, nil)
}

// startTestServer exposes the full route table over a real listener so
// WebSocket handshakes go through the same path production traffic does.
func startTestServer(t *testing.T, srv *Server) string {
	t.Helper()
	ts := httptest.NewServer(srv.echo)
	t.Cleanup(ts.Close)
	return ts.URL
}

func dialWS(t *testing.T, serverURL, principal string) *ws.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(serverURL, "http") + "/ws?principal=" + principal
	conn, _, err := ws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readFrame reads one server frame and splits the envelope.
func readFrame(t *testing.T, conn *ws.Conn) (string, json.RawMessage) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var env struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(data, &env))
	return env.Type, env.Data
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	for range 200 {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal(msg)
}
