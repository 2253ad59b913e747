package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/jonathanprocter/practice-intelligently-sub010/internal/domain"
	apperrors "github.com/jonathanprocter/practice-intelligently-sub010/internal/errors"
	"github.com/jonathanprocter/practice-intelligently-sub010/internal/metrics"
	"github.com/jonathanprocter/practice-intelligently-sub010/internal/realtime"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Auth is carried by the principal, not the origin
	},
}

func (s *Server) handleWebSocket(c echo.Context) error {
	ip := c.RealIP()

	if !s.ipLimiter.AllowHandshake(ip) {
		metrics.ConnectionsRejectedTotal.WithLabelValues("rate_limit").Inc()
		return apperrors.RateLimitedError("too many connection attempts").WithContext("ip", ip)
	}
	if !s.limiter.Acquire() {
		metrics.ConnectionsRejectedTotal.WithLabelValues("capacity").Inc()
		return apperrors.UnavailableError("server at capacity")
	}
	if !s.ipLimiter.Acquire(ip) {
		s.limiter.Release()
		metrics.ConnectionsRejectedTotal.WithLabelValues("ip_limit").Inc()
		return apperrors.RateLimitedError("too many connections from this address").WithContext("ip", ip)
	}

	release := func() {
		s.ipLimiter.Release(ip)
		s.limiter.Release()
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		release()
		// The upgrader has already written its own handshake response.
		slog.Warn("WebSocket upgrade failed", "ip", ip, "error", err)
		return nil
	}

	// The principal is an opaque tenant/user identifier supplied by the
	// caller; authentication happens upstream.
	principal := c.QueryParam("principal")

	connectionID, err := s.hub.Register(conn, principal)
	if err != nil {
		slog.Error("Failed to register connection", "error", err)
		_ = conn.Close()
		release()
		return nil
	}
	metrics.ConnectionsAcceptedTotal.Inc()

	defer func() {
		s.hub.Unregister(connectionID)
		release()
	}()

	// Read pump: blocks until the connection closes. Every inbound frame
	// counts as activity; malformed frames are dropped, never fatal.
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		s.hub.Touch(connectionID, true)
		s.dispatchFrame(connectionID, data)
	}

	return nil
}

// dispatchFrame handles one client-to-server control frame.
func (s *Server) dispatchFrame(connectionID string, data []byte) {
	var frame realtime.InboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		metrics.ProtocolErrorsTotal.Inc()
		slog.Warn("Dropping malformed frame", "connection_id", connectionID, "error", err)
		return
	}

	switch frame.Type {
	case realtime.FrameJoin:
		if frame.Room == "" {
			metrics.ProtocolErrorsTotal.Inc()
			slog.Warn("Dropping join frame without room", "connection_id", connectionID)
			return
		}
		s.hub.Join(connectionID, frame.Room)
	case realtime.FrameLeave:
		if frame.Room == "" {
			metrics.ProtocolErrorsTotal.Inc()
			slog.Warn("Dropping leave frame without room", "connection_id", connectionID)
			return
		}
		s.hub.Leave(connectionID, frame.Room)
	case realtime.FrameBroadcast:
		if frame.Room == "" {
			metrics.ProtocolErrorsTotal.Inc()
			slog.Warn("Dropping broadcast frame without room", "connection_id", connectionID)
			return
		}
		s.hub.BroadcastToRoom(frame.Room, domain.OutboundMessage{
			Type:    realtime.FrameBroadcast,
			Payload: frame.Data,
		}, connectionID)
	case realtime.FrameMetrics:
		s.hub.RequestMetrics(connectionID)
	default:
		metrics.ProtocolErrorsTotal.Inc()
		slog.Warn("Dropping frame with unknown type", "connection_id", connectionID, "frame_type", frame.Type)
	}
}
