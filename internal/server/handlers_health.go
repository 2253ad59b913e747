package server

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/jonathanprocter/practice-intelligently-sub010/internal/version"
)

func (s *Server) handleLiveness(c echo.Context) error {
	return c.JSON(200, map[string]any{
		"status":  "ok",
		"uptime":  time.Since(s.startTime).Seconds(),
		"version": version.Get(),
	})
}

func (s *Server) handleReadiness(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	// The hub must answer; a stuck actor means we cannot serve clients.
	if s.hub.ClientCount() < 0 {
		return c.JSON(503, map[string]any{
			"status":       "unhealthy",
			"failed_check": "hub",
		})
	}

	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			return c.JSON(503, map[string]any{
				"status":       "unhealthy",
				"failed_check": "redis",
				"error":        err.Error(),
			})
		}
	}

	return c.JSON(200, map[string]string{"status": "ready"})
}
