package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/heartbeat-watcher/pkg/errors"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) lookupFunc {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestDefaultsWithRequiredEnv(t *testing.T) {
	cfg := defaultConfig()
	err := applyEnvOverrides(cfg, envMap(map[string]string{
		"REDIS_URL":       "redis://localhost:6379/0",
		"LOGGING_API_URL": "http://logger:5000/log-failure",
	}))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	require.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
	require.Equal(t, 30*time.Second, cfg.Scanner.StaleThreshold)
	require.Equal(t, 10*time.Second, cfg.Scanner.CheckInterval)
	require.Equal(t, DefaultHealthcheckKey, cfg.Redis.Key)
	require.False(t, cfg.Kafka.Enabled())
	require.False(t, cfg.Postgres.Enabled())
}

func TestEnvOverrides(t *testing.T) {
	cfg := defaultConfig()
	err := applyEnvOverrides(cfg, envMap(map[string]string{
		"WATCHER_HOST":            "127.0.0.1",
		"WATCHER_PORT":            "9000",
		"REDIS_URL":               "redis://cache:6379",
		"LOGGING_API_URL":         "http://logger/log",
		"STALE_THRESHOLD_SECONDS": "120",
		"CHECK_INTERVAL_SECONDS":  "5",
		"KAFKA_BROKERS":           "k1:9092, k2:9092,",
		"REPORTER_TIMEOUT":        "3s",
	}))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	require.Equal(t, "127.0.0.1:9000", cfg.Server.Addr())
	require.Equal(t, 2*time.Minute, cfg.Scanner.StaleThreshold)
	require.Equal(t, 5*time.Second, cfg.Scanner.CheckInterval)
	require.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	require.True(t, cfg.Kafka.Enabled())
	require.Equal(t, 3*time.Second, cfg.Reporter.Timeout)
}

func TestMissingRequiredSettings(t *testing.T) {
	cfg := defaultConfig()
	require.NoError(t, applyEnvOverrides(cfg, envMap(nil)))

	err := cfg.Validate()
	require.ErrorIs(t, err, apperrors.ErrInvalidConfig)
	require.Contains(t, err.Error(), "REDIS_URL")
	require.Contains(t, err.Error(), "LOGGING_API_URL")
}

func TestUnparseableEnvIsFatal(t *testing.T) {
	for _, key := range []string{"WATCHER_PORT", "STALE_THRESHOLD_SECONDS", "CHECK_INTERVAL_SECONDS", "METRICS_ENABLED"} {
		t.Run(key, func(t *testing.T) {
			cfg := defaultConfig()
			err := applyEnvOverrides(cfg, envMap(map[string]string{key: "not-a-number"}))
			require.ErrorIs(t, err, apperrors.ErrInvalidConfig)
			require.Contains(t, err.Error(), key)
		})
	}
}

func TestNegativeSecondsRejected(t *testing.T) {
	cfg := defaultConfig()
	err := applyEnvOverrides(cfg, envMap(map[string]string{"STALE_THRESHOLD_SECONDS": "-5"}))
	require.ErrorIs(t, err, apperrors.ErrInvalidConfig)
}

func TestZeroIntervalRejected(t *testing.T) {
	cfg := defaultConfig()
	require.NoError(t, applyEnvOverrides(cfg, envMap(map[string]string{
		"REDIS_URL":              "redis://localhost:6379",
		"LOGGING_API_URL":        "http://logger/log",
		"CHECK_INTERVAL_SECONDS": "0",
	})))
	require.ErrorIs(t, cfg.Validate(), apperrors.ErrInvalidConfig)
}

func TestZeroThresholdAllowed(t *testing.T) {
	cfg := defaultConfig()
	require.NoError(t, applyEnvOverrides(cfg, envMap(map[string]string{
		"REDIS_URL":               "redis://localhost:6379",
		"LOGGING_API_URL":         "http://logger/log",
		"STALE_THRESHOLD_SECONDS": "0",
	})))
	require.NoError(t, cfg.Validate())
	require.Zero(t, cfg.Scanner.StaleThreshold)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watcher.yaml")
	data := []byte(`
server:
  port: 8181
redis:
  url: redis://localhost:6379/1
  key: custom_healthchecks
reporter:
  url: http://logger/log-failure
scanner:
  staleThreshold: 45s
  checkInterval: 15s
`)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	t.Setenv("WATCHER_PORT", "")
	t.Setenv("REDIS_URL", "")
	t.Setenv("LOGGING_API_URL", "")
	t.Setenv("STALE_THRESHOLD_SECONDS", "")
	t.Setenv("CHECK_INTERVAL_SECONDS", "")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 8181, cfg.Server.Port)
	require.Equal(t, "custom_healthchecks", cfg.Redis.Key)
	require.Equal(t, 45*time.Second, cfg.Scanner.StaleThreshold)
	require.Equal(t, 15*time.Second, cfg.Scanner.CheckInterval)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.ErrorIs(t, err, apperrors.ErrInvalidConfig)
}
