package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv    string `env:"APP_ENV" default:"development"`
	Port      string `env:"PORT" default:"8080"`
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`

	// RedisURL enables the cross-instance broadcast bridge when set.
	RedisURL string `env:"REDIS_URL"`

	// Delivery tunables.
	BatchInterval     time.Duration `env:"BATCH_INTERVAL" default:"100ms"`
	MaxBatchSize      int           `env:"MAX_BATCH_SIZE" default:"50"`
	ThrottleInterval  time.Duration `env:"THROTTLE_INTERVAL" default:"50ms"`
	HeartbeatInterval time.Duration `env:"HEARTBEAT_INTERVAL" default:"30s"`
	MaxQueueDepth     int           `env:"MAX_QUEUE_DEPTH" default:"1000"`
	StatsInterval     time.Duration `env:"STATS_INTERVAL" default:"60s"`

	// Handshake limits.
	MaxConnections      int64   `env:"MAX_CONNECTIONS" default:"10000"`
	MaxConnectionsPerIP int     `env:"MAX_CONNECTIONS_PER_IP" default:"100"`
	HandshakesPerSecond float64 `env:"HANDSHAKES_PER_SECOND" default:"10"`
	HandshakeBurst      int     `env:"HANDSHAKE_BURST" default:"20"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	positive := map[string]time.Duration{
		"BATCH_INTERVAL":     cfg.BatchInterval,
		"THROTTLE_INTERVAL":  cfg.ThrottleInterval,
		"HEARTBEAT_INTERVAL": cfg.HeartbeatInterval,
		"STATS_INTERVAL":     cfg.StatsInterval,
	}
	for name, d := range positive {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %v", name, d)
		}
	}

	if cfg.MaxBatchSize < 1 {
		return fmt.Errorf("MAX_BATCH_SIZE must be at least 1, got %d", cfg.MaxBatchSize)
	}
	if cfg.MaxQueueDepth < cfg.MaxBatchSize {
		return fmt.Errorf("MAX_QUEUE_DEPTH (%d) must be at least MAX_BATCH_SIZE (%d)", cfg.MaxQueueDepth, cfg.MaxBatchSize)
	}
	if cfg.MaxConnections < 1 {
		return fmt.Errorf("MAX_CONNECTIONS must be at least 1, got %d", cfg.MaxConnections)
	}
	if cfg.MaxConnectionsPerIP < 1 {
		return fmt.Errorf("MAX_CONNECTIONS_PER_IP must be at least 1, got %d", cfg.MaxConnectionsPerIP)
	}
	if cfg.HandshakesPerSecond <= 0 {
		return fmt.Errorf("HANDSHAKES_PER_SECOND must be positive, got %v", cfg.HandshakesPerSecond)
	}

	return nil
}
