package server

import (
	"context"
	"fmt"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	goredis "github.com/redis/go-redis/v9"

	"github.com/jonathanprocter/practice-intelligently-sub010/internal/config"
	apperrors "github.com/jonathanprocter/practice-intelligently-sub010/internal/errors"
	"github.com/jonathanprocter/practice-intelligently-sub010/internal/logging"
	"github.com/jonathanprocter/practice-intelligently-sub010/internal/realtime"
)

type Server struct {
	echo      *echo.Echo
	config    *config.Config
	hub       *realtime.Hub
	limiter   *GlobalConnectionLimiter
	ipLimiter *IPConnectionLimiter
	redis     *goredis.Client // nil when the bridge is disabled
	startTime time.Time
}

// NewServer wires the HTTP surface. redisClient may be nil; readiness then
// skips the redis check.
func NewServer(cfg *config.Config, hub *realtime.Hub, redisClient *goredis.Client) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(correlationMiddleware())
	e.Use(apperrors.Middleware())

	srv := &Server{
		echo:      e,
		config:    cfg,
		hub:       hub,
		limiter:   NewGlobalConnectionLimiter(cfg.MaxConnections),
		ipLimiter: NewIPConnectionLimiter(cfg.MaxConnectionsPerIP, cfg.HandshakesPerSecond, cfg.HandshakeBurst),
		redis:     redisClient,
		startTime: time.Now(),
	}

	srv.registerRoutes()

	return srv
}

// correlationMiddleware tags each request with a short id that the logging
// handler picks up from the context, so log lines for one request can be
// grouped.
func correlationMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := logging.NewCorrelationID()
			ctx := logging.WithCorrelationID(c.Request().Context(), id)
			c.SetRequest(c.Request().WithContext(ctx))
			c.Response().Header().Set("X-Correlation-ID", id)
			return next(c)
		}
	}
}

func (s *Server) Start() error {
	return s.echo.Start(fmt.Sprintf(":%s", s.config.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
