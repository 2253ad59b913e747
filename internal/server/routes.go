package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	// Observability endpoints
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Statistics query for operators and the business layer
	s.echo.GET("/api/stats", s.handleStats)

	// WebSocket handshake
	s.echo.GET("/ws", s.handleWebSocket)
}
