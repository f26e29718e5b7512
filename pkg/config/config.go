// Package config loads and validates the watcher configuration from an
// optional YAML file with environment-variable overrides. It provides typed
// structs for every subsystem (Server, Redis, Scanner, Reporter, Kafka, etc.).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/heartbeat-watcher/pkg/errors"
	"gopkg.in/yaml.v3"
)

// DefaultHealthcheckKey is the sorted set holding one score per entity.
const DefaultHealthcheckKey = "entity_healthchecks"

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Redis    RedisConfig    `yaml:"redis"`
	Scanner  ScannerConfig  `yaml:"scanner"`
	Reporter ReporterConfig `yaml:"reporter"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Postgres PostgresConfig `yaml:"postgres"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds HTTP listener settings. Zero timeouts mean unbounded.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	RequestTimeout  time.Duration `yaml:"requestTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// Addr returns the host:port pair the listener binds to.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// RedisConfig holds the store connection parameters.
type RedisConfig struct {
	URL      string `yaml:"url"`
	Key      string `yaml:"key"`
	PoolSize int    `yaml:"poolSize"`
}

// ScannerConfig controls the staleness scan loop.
type ScannerConfig struct {
	StaleThreshold time.Duration `yaml:"staleThreshold"`
	CheckInterval  time.Duration `yaml:"checkInterval"`
}

// ReporterConfig holds the logging API endpoint stale batches are posted to.
type ReporterConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// KafkaConfig holds broker and topic settings. An empty broker list
// disables both the heartbeat consumer and the stale-event producer.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// Enabled reports whether any broker is configured.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	Heartbeats    string `yaml:"heartbeats"`
	StaleEntities string `yaml:"staleEntities"`
}

// PostgresConfig holds the optional report audit database. An empty DSN
// disables auditing.
type PostgresConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// Enabled reports whether a DSN is configured.
func (p PostgresConfig) Enabled() bool {
	return p.DSN != ""
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided), applies environment-variable
// overrides and validates the result. Any failure wraps ErrInvalidConfig.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: reading config file %s: %v", apperrors.ErrInvalidConfig, path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: parsing config file %s: %v", apperrors.ErrInvalidConfig, path, err)
		}
	}
	if err := applyEnvOverrides(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required settings and value ranges.
func (c *Config) Validate() error {
	var missing []string
	if c.Redis.URL == "" {
		missing = append(missing, "REDIS_URL")
	}
	if c.Reporter.URL == "" {
		missing = append(missing, "LOGGING_API_URL")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing required setting(s): %s", apperrors.ErrInvalidConfig, strings.Join(missing, ", "))
	}
	if c.Scanner.StaleThreshold < 0 {
		return fmt.Errorf("%w: stale threshold must not be negative, got %v", apperrors.ErrInvalidConfig, c.Scanner.StaleThreshold)
	}
	if c.Scanner.CheckInterval <= 0 {
		return fmt.Errorf("%w: check interval must be positive, got %v", apperrors.ErrInvalidConfig, c.Scanner.CheckInterval)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: invalid port %d", apperrors.ErrInvalidConfig, c.Server.Port)
	}
	if c.Redis.Key == "" {
		return fmt.Errorf("%w: redis key must not be empty", apperrors.ErrInvalidConfig)
	}
	return nil
}

// defaultConfig returns a Config with the documented defaults. Required
// settings (store and logging API URLs) are left empty.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ShutdownTimeout: 15 * time.Second,
		},
		Redis: RedisConfig{
			Key:      DefaultHealthcheckKey,
			PoolSize: 10,
		},
		Scanner: ScannerConfig{
			StaleThreshold: 30 * time.Second,
			CheckInterval:  10 * time.Second,
		},
		Kafka: KafkaConfig{
			ConsumerGroup: "heartbeat-watcher",
			Topics: KafkaTopics{
				Heartbeats:    "entity-heartbeats",
				StaleEntities: "entity-stale",
			},
		},
		Postgres: PostgresConfig{
			MaxOpenConns:    5,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

type lookupFunc func(key string) (string, bool)

// applyEnvOverrides reads the watcher's environment variables and overrides
// the corresponding config fields. Unparseable values are errors.
func applyEnvOverrides(cfg *Config, lookup lookupFunc) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		if !ok || v == "" {
			return "", false
		}
		return v, true
	}

	if v, ok := get("WATCHER_HOST"); ok {
		cfg.Server.Host = v
	}
	if v, ok := get("WATCHER_PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return envError("WATCHER_PORT", err)
		}
		cfg.Server.Port = port
	}
	if v, ok := get("WATCHER_REQUEST_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return envError("WATCHER_REQUEST_TIMEOUT", err)
		}
		cfg.Server.RequestTimeout = d
	}
	if v, ok := get("REDIS_URL"); ok {
		cfg.Redis.URL = v
	}
	if v, ok := get("REDIS_KEY"); ok {
		cfg.Redis.Key = v
	}
	if v, ok := get("REDIS_POOL_SIZE"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return envError("REDIS_POOL_SIZE", err)
		}
		cfg.Redis.PoolSize = n
	}
	if v, ok := get("LOGGING_API_URL"); ok {
		cfg.Reporter.URL = v
	}
	if v, ok := get("REPORTER_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return envError("REPORTER_TIMEOUT", err)
		}
		cfg.Reporter.Timeout = d
	}
	if v, ok := get("STALE_THRESHOLD_SECONDS"); ok {
		d, err := parseSeconds(v)
		if err != nil {
			return envError("STALE_THRESHOLD_SECONDS", err)
		}
		cfg.Scanner.StaleThreshold = d
	}
	if v, ok := get("CHECK_INTERVAL_SECONDS"); ok {
		d, err := parseSeconds(v)
		if err != nil {
			return envError("CHECK_INTERVAL_SECONDS", err)
		}
		cfg.Scanner.CheckInterval = d
	}
	if v, ok := get("KAFKA_BROKERS"); ok {
		cfg.Kafka.Brokers = splitList(v)
	}
	if v, ok := get("KAFKA_CONSUMER_GROUP"); ok {
		cfg.Kafka.ConsumerGroup = v
	}
	if v, ok := get("KAFKA_HEARTBEAT_TOPIC"); ok {
		cfg.Kafka.Topics.Heartbeats = v
	}
	if v, ok := get("KAFKA_STALE_TOPIC"); ok {
		cfg.Kafka.Topics.StaleEntities = v
	}
	if v, ok := get("POSTGRES_DSN"); ok {
		cfg.Postgres.DSN = v
	}
	if v, ok := get("LOG_LEVEL"); ok {
		cfg.Logging.Level = v
	}
	if v, ok := get("LOG_FORMAT"); ok {
		cfg.Logging.Format = v
	}
	if v, ok := get("METRICS_ENABLED"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return envError("METRICS_ENABLED", err)
		}
		cfg.Metrics.Enabled = b
	}
	if v, ok := get("METRICS_PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return envError("METRICS_PORT", err)
		}
		cfg.Metrics.Port = port
	}
	return nil
}

// parseSeconds parses a non-negative whole number of seconds.
func parseSeconds(v string) (time.Duration, error) {
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return 0, err
	}
	return time.Duration(n) * time.Second, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func envError(name string, err error) error {
	return fmt.Errorf("%w: %s: %v", apperrors.ErrInvalidConfig, name, err)
}
