package server

import (
	"time"

	"github.com/labstack/echo/v4"
)

// handleStats returns aggregate message/batch counts and per-connection
// metric snapshots.
func (s *Server) handleStats(c echo.Context) error {
	snap := s.hub.Snapshot()
	return c.JSON(200, map[string]any{
		"stats":         snap,
		"capacity":      s.limiter.Current(),
		"capacityLimit": s.config.MaxConnections,
		"uptimeSeconds": time.Since(s.startTime).Seconds(),
	})
}
