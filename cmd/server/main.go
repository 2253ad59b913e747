package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"

	"github.com/jonathanprocter/practice-intelligently-sub010/internal/config"
	"github.com/jonathanprocter/practice-intelligently-sub010/internal/domain"
	"github.com/jonathanprocter/practice-intelligently-sub010/internal/logging"
	"github.com/jonathanprocter/practice-intelligently-sub010/internal/realtime"
	"github.com/jonathanprocter/practice-intelligently-sub010/internal/redis"
	"github.com/jonathanprocter/practice-intelligently-sub010/internal/server"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupRedis(ctx context.Context, cfg *config.Config) *goredis.Client {
	client, err := redis.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

func runGracefulShutdown(srv *server.Server, hub *realtime.Hub, bridge *redis.Bridge) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		hub.Stop()

		if bridge != nil {
			bridge.Close()
		}

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port)

	hubConfig := realtime.Config{
		BatchInterval:     cfg.BatchInterval,
		MaxBatchSize:      cfg.MaxBatchSize,
		ThrottleInterval:  cfg.ThrottleInterval,
		HeartbeatInterval: cfg.HeartbeatInterval,
		MaxQueueDepth:     cfg.MaxQueueDepth,
		StatsInterval:     cfg.StatsInterval,
	}

	onConnect := func(connectionID, principal string) {
		slog.Info("Client connected", "connection_id", connectionID, "principal", principal)
	}
	onDisconnect := func(connectionID, principal, reason string) {
		slog.Info("Client disconnected", "connection_id", connectionID, "principal", principal, "reason", reason)
	}

	// The bridge needs the hub and the hub needs the relay; construct the
	// hub first with no relay, then attach the bridge-backed hub via a
	// forwarding relay resolved at dispatch time.
	var bridge *redis.Bridge
	var relay domain.RoomRelay
	if cfg.RedisURL != "" {
		relay = relayFunc(func(room string, message domain.OutboundMessage) {
			if bridge != nil {
				bridge.PublishRoom(room, message)
			}
		})
	}

	hub := realtime.NewHub(hubConfig, relay, onConnect, onDisconnect, clock)

	var redisClient *goredis.Client
	if cfg.RedisURL != "" {
		redisClient = setupRedis(context.Background(), cfg)
		defer func() { _ = redisClient.Close() }()

		bridge = redis.NewBridge(redisClient, hub, uuid.NewString())
		if err := bridge.Start(context.Background()); err != nil {
			slog.Error("Failed to start broadcast bridge", "error", err)
			os.Exit(1)
		}
		slog.Info("Cross-instance broadcast bridge started")
	}

	srv := server.NewServer(cfg, hub, redisClient)

	done := runGracefulShutdown(srv, hub, bridge)

	slog.Info("Server starting", "port", cfg.Port)
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}

// relayFunc adapts a function to domain.RoomRelay.
type relayFunc func(room string, message domain.OutboundMessage)

func (f relayFunc) PublishRoom(room string, message domain.OutboundMessage) {
	f(room, message)
}
