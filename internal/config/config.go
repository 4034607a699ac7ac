package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the relay process configuration, loaded from the environment.
type Config struct {
	AppEnv            string
	AppName           string
	DBHost            string
	DBPort            string
	DBUser            string
	DBPassword        string
	DBName            string
	DBSSLMode         string
	RedisHost         string
	RedisPort         string
	RedisPassword     string
	RedisDB           int
	RedisPoolSize     int
	RedisMinIdleConns int
	RedisMaxRetries   int
	WSPort            string
	MetricsPort       string
	LogLevel          string
	AllowedOrigins    string

	// RelayChannel is the Redis pub/sub channel bridging the HTTP API
	// process(es) and the relay.
	RelayChannel string

	// HandshakeTimeout is how long an unauthenticated connection may stay
	// open. Zero disables the timeout.
	HandshakeTimeout time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		AppEnv:         os.Getenv("APP_ENV"),
		AppName:        os.Getenv("APP_NAME"),
		DBHost:         os.Getenv("DB_HOST"),
		DBPort:         os.Getenv("DB_PORT"),
		DBUser:         os.Getenv("DB_USER"),
		DBPassword:     os.Getenv("DB_PASSWORD"),
		DBName:         os.Getenv("DB_NAME"),
		DBSSLMode:      os.Getenv("DB_SSL_MODE"),
		RedisHost:      os.Getenv("REDIS_HOST"),
		RedisPort:      os.Getenv("REDIS_PORT"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		WSPort:         os.Getenv("WS_PORT"),
		MetricsPort:    os.Getenv("METRICS_PORT"),
		LogLevel:       os.Getenv("LOG_LEVEL"),
		AllowedOrigins: os.Getenv("ALLOWED_ORIGINS"),
		RelayChannel:   os.Getenv("RELAY_CHANNEL"),
	}
	if cfg.AppName == "" {
		cfg.AppName = "loqui-relay"
	}
	if cfg.DBSSLMode == "" {
		cfg.DBSSLMode = "disable"
	}
	if cfg.WSPort == "" {
		cfg.WSPort = "8090"
	}
	if cfg.MetricsPort == "" {
		cfg.MetricsPort = "9090"
	}
	if cfg.RelayChannel == "" {
		cfg.RelayChannel = "loqui:relay:events"
	}

	var err error
	if v := os.Getenv("REDIS_DB"); v != "" {
		cfg.RedisDB, err = strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
		}
	}
	if v := os.Getenv("REDIS_POOL_SIZE"); v != "" {
		cfg.RedisPoolSize, err = strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_POOL_SIZE: %w", err)
		}
	}
	if v := os.Getenv("REDIS_MIN_IDLE_CONNS"); v != "" {
		cfg.RedisMinIdleConns, err = strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_MIN_IDLE_CONNS: %w", err)
		}
	}
	if v := os.Getenv("REDIS_MAX_RETRIES"); v != "" {
		cfg.RedisMaxRetries, err = strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_MAX_RETRIES: %w", err)
		}
	}
	cfg.HandshakeTimeout = 30 * time.Second
	if v := os.Getenv("HANDSHAKE_TIMEOUT"); v != "" {
		cfg.HandshakeTimeout, err = time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid HANDSHAKE_TIMEOUT: %w", err)
		}
	}

	if cfg.DBHost == "" || cfg.DBPort == "" || cfg.DBUser == "" || cfg.DBName == "" || cfg.RedisHost == "" || cfg.RedisPort == "" {
		return nil, fmt.Errorf("missing required environment variables")
	}
	return cfg, nil
}
