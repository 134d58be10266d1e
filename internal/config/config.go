// Package config provides configuration management for the application.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to environment variable overrides, e.g. STREAMSAVE_SERVER_PORT.
const EnvPrefix = "STREAMSAVE"

// Config holds all configuration for the application.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type Config struct {
	RabbitMQ RabbitMQConfig
	Logging  LoggingConfig
	Server   ServerConfig
	Resolver ResolverConfig
	Dispatch DispatchConfig
	Redis    RedisConfig
	Cache    CacheConfig
	Download DownloadConfig
	Metrics  MetricsConfig
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port            int
	ShutdownTimeout time.Duration
}

// ResolverConfig points the resolution client at the resolution service.
type ResolverConfig struct {
	BaseURL string
	Timeout time.Duration
}

// DispatchConfig bounds the coordinator's waits.
type DispatchConfig struct {
	ResolveTimeout time.Duration
	ScanTimeout    time.Duration
}

// RedisConfig enables the resolution cache and persistent counters. An empty URL
// disables both.
type RedisConfig struct {
	URL string
}

// CacheConfig controls resolution caching.
type CacheConfig struct {
	TTL time.Duration
}

// RabbitMQConfig contains RabbitMQ connection and exchange configuration for download
// events.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type RabbitMQConfig struct {
	Enabled    bool
	Host       string
	User       string
	Password   string
	Exchange   string
	Queue      string
	RoutingKey string
	Port       int
}

// DownloadConfig configures the host download folder.
type DownloadConfig struct {
	Dir string
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level string
	File  string
}

// MetricsConfig toggles the /metrics endpoint.
type MetricsConfig struct {
	Enabled bool
}

// Load loads configuration from file and environment variables.
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Set defaults
	setDefaults()

	// Read environment variables
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Try to read config file
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found, use defaults and env vars
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects settings the services cannot start with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", c.Server.Port)
	}
	if c.Dispatch.ResolveTimeout <= 0 || c.Dispatch.ScanTimeout <= 0 {
		return fmt.Errorf("dispatch timeouts must be positive")
	}
	if c.Resolver.BaseURL == "" {
		return fmt.Errorf("resolver.baseurl is required")
	}
	return nil
}

func setDefaults() {
	// Server
	viper.SetDefault("server.port", 4000)
	viper.SetDefault("server.shutdowntimeout", 30*time.Second)

	// Resolution
	viper.SetDefault("resolver.baseurl", "http://localhost:4000")
	viper.SetDefault("resolver.timeout", 20*time.Second)
	viper.SetDefault("dispatch.resolvetimeout", 8*time.Second)
	viper.SetDefault("dispatch.scantimeout", 5*time.Second)

	// Redis
	viper.SetDefault("redis.url", "")
	viper.SetDefault("cache.ttl", 5*time.Minute)

	// RabbitMQ
	viper.SetDefault("rabbitmq.enabled", false)
	viper.SetDefault("rabbitmq.host", "localhost")
	viper.SetDefault("rabbitmq.port", 5672)
	viper.SetDefault("rabbitmq.user", "guest")
	viper.SetDefault("rabbitmq.password", "guest")
	viper.SetDefault("rabbitmq.exchange", "streamsave.downloads")
	viper.SetDefault("rabbitmq.queue", "streamsave.downloads.accepted")
	viper.SetDefault("rabbitmq.routingkey", "download.accepted")

	// Downloads
	viper.SetDefault("download.dir", "./downloads")

	// Logging
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.file", "")

	// Metrics
	viper.SetDefault("metrics.enabled", true)
}
