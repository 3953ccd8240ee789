// Package config reads service configuration from the environment so main
// stays lean. Every knob has a development default; FromEnv fails only on
// values that cannot be parsed.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	strutil "qplace/pkg/platform/strings"
)

// ResultCacheTTL bounds how long cached placement results stay valid.
var ResultCacheTTL = 15 * time.Minute

// Config aggregates all service-level configuration.
type Config struct {
	HTTP      HTTPConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Auth      AuthConfig
	Scheduler SchedulerConfig
	Placement PlacementConfig
}

// HTTPConfig captures HTTP server level configuration.
type HTTPConfig struct {
	Addr            string
	ShutdownTimeout time.Duration
}

// PostgresConfig captures the job store connection settings. An empty DSN
// means postgres is not configured and the memory store is used instead.
type PostgresConfig struct {
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
	ConnLifetime time.Duration
}

// RedisConfig captures the result cache connection settings. An empty URL
// means redis is not configured and caching is skipped.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig captures the event stream settings. Empty brokers means
// events are not published.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// AuthConfig captures token issue and validation settings.
type AuthConfig struct {
	SigningKey       string
	ClientID         string
	ClientSecretHash string
	TokenTTL         time.Duration
}

// SchedulerConfig captures the external pulse scheduler endpoint.
type SchedulerConfig struct {
	URL     string
	Timeout time.Duration
}

// PlacementConfig carries the placement pipeline defaults.
type PlacementConfig struct {
	Strategy string
	Trials   int
	Workers  int
	DtInner  float64
	DtInter  float64
}

// FromEnv builds a Config from environment variables.
func FromEnv() (Config, error) {
	cfg := Config{
		HTTP: HTTPConfig{
			Addr:            getenv("QPLACE_HTTP_ADDR", ":8080"),
			ShutdownTimeout: 10 * time.Second,
		},
		Postgres: PostgresConfig{
			DSN:          os.Getenv("QPLACE_POSTGRES_DSN"),
			MaxOpenConns: 10,
			MaxIdleConns: 5,
			ConnLifetime: 30 * time.Minute,
		},
		Redis: RedisConfig{
			URL:          os.Getenv("QPLACE_REDIS_URL"),
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: KafkaConfig{
			Topic: getenv("QPLACE_KAFKA_TOPIC", "qplace.jobs"),
		},
		Auth: AuthConfig{
			SigningKey:       os.Getenv("QPLACE_AUTH_SIGNING_KEY"),
			ClientID:         getenv("QPLACE_AUTH_CLIENT_ID", "qplace-client"),
			ClientSecretHash: os.Getenv("QPLACE_AUTH_CLIENT_SECRET_HASH"),
			TokenTTL:         time.Hour,
		},
		Scheduler: SchedulerConfig{
			URL:     os.Getenv("QPLACE_SCHEDULER_URL"),
			Timeout: 10 * time.Second,
		},
		Placement: PlacementConfig{
			Strategy: getenv("QPLACE_STRATEGY", "graph_partition"),
			Trials:   4,
			Workers:  2,
			DtInner:  5e-8,
			DtInter:  5e-7,
		},
	}

	if brokers := os.Getenv("QPLACE_KAFKA_BROKERS"); brokers != "" {
		cfg.Kafka.Brokers = strutil.DedupeAndTrim(strings.Split(brokers, ","))
	}
	if cfg.Auth.SigningKey == "" {
		// Development fallback; production must set QPLACE_AUTH_SIGNING_KEY.
		cfg.Auth.SigningKey = "dev-secret-key-change-in-production"
	}

	var err error
	if cfg.Placement.Trials, err = getenvInt("QPLACE_TRIALS", cfg.Placement.Trials); err != nil {
		return Config{}, err
	}
	if cfg.Placement.Workers, err = getenvInt("QPLACE_WORKERS", cfg.Placement.Workers); err != nil {
		return Config{}, err
	}
	if cfg.Placement.DtInner, err = getenvFloat("QPLACE_DT_INNER", cfg.Placement.DtInner); err != nil {
		return Config{}, err
	}
	if cfg.Placement.DtInter, err = getenvFloat("QPLACE_DT_INTER", cfg.Placement.DtInter); err != nil {
		return Config{}, err
	}
	if cfg.Auth.TokenTTL, err = getenvDuration("QPLACE_AUTH_TOKEN_TTL", cfg.Auth.TokenTTL); err != nil {
		return Config{}, err
	}
	if cfg.HTTP.ShutdownTimeout, err = getenvDuration("QPLACE_SHUTDOWN_TIMEOUT", cfg.HTTP.ShutdownTimeout); err != nil {
		return Config{}, err
	}
	if cfg.Placement.Trials < 1 {
		return Config{}, fmt.Errorf("QPLACE_TRIALS must be at least 1, got %d", cfg.Placement.Trials)
	}
	if cfg.Placement.Workers < 1 {
		return Config{}, fmt.Errorf("QPLACE_WORKERS must be at least 1, got %d", cfg.Placement.Workers)
	}
	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return n, nil
}

func getenvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return f, nil
}

func getenvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}
