//go:build e2e

// Package e2e contains end-to-end tests against a running watcher backed by
// real Redis.
//
// Prerequisites:
//   - Redis running
//   - cmd/watcher running with a short STALE_THRESHOLD_SECONDS (e.g. 2) and
//     CHECK_INTERVAL_SECONDS (e.g. 1)
//   - cmd/mockapi running as the LOGGING_API_URL target
//
// Run with:
//
//	go test -v -tags=e2e -timeout=120s ./test/e2e/...
package e2e

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// ---------------------------------------------------------------------------
// Config
// ---------------------------------------------------------------------------

type e2eConfig struct {
	WatcherURL     string
	RedisURL       string
	StaleThreshold time.Duration
	CheckInterval  time.Duration
}

func loadE2EConfig() e2eConfig {
	return e2eConfig{
		WatcherURL:     envOrDefault("E2E_WATCHER_URL", "http://localhost:8080"),
		RedisURL:       envOrDefault("E2E_REDIS_URL", "redis://localhost:6379"),
		StaleThreshold: time.Duration(envOrDefaultInt("E2E_STALE_THRESHOLD_SECONDS", 2)) * time.Second,
		CheckInterval:  time.Duration(envOrDefaultInt("E2E_CHECK_INTERVAL_SECONDS", 1)) * time.Second,
	}
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

// TestWatcherHealth verifies the probes respond.
func TestWatcherHealth(t *testing.T) {
	cfg := loadE2EConfig()
	client := &http.Client{Timeout: 5 * time.Second}

	for _, path := range []string{"/health/live", "/health/ready"} {
		t.Run(path, func(t *testing.T) {
			resp, err := client.Get(cfg.WatcherURL + path)
			if err != nil {
				t.Skipf("watcher unavailable: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				body, _ := io.ReadAll(resp.Body)
				t.Errorf("expected 200, got %d: %s", resp.StatusCode, body)
			}
		})
	}
}

// TestSilentEntityIsEvicted pings a unique entity once, then waits for the
// scanner to report and remove it from Redis.
func TestSilentEntityIsEvicted(t *testing.T) {
	cfg := loadE2EConfig()
	client := &http.Client{Timeout: 5 * time.Second}
	if _, err := client.Get(cfg.WatcherURL + "/health/live"); err != nil {
		t.Skipf("watcher unavailable: %v", err)
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		t.Fatalf("parsing redis url: %v", err)
	}
	rdb := redis.NewClient(opts)
	defer rdb.Close()
	ctx := context.Background()

	entityID := fmt.Sprintf("e2e-%d", time.Now().UnixNano())
	resp, err := client.Post(cfg.WatcherURL+"/healthcheck/"+entityID, "", nil)
	if err != nil {
		t.Fatalf("healthcheck request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	if _, err := rdb.ZScore(ctx, "entity_healthchecks", entityID).Result(); err != nil {
		t.Fatalf("heartbeat not stored: %v", err)
	}

	deadline := time.Now().Add(cfg.StaleThreshold + 5*cfg.CheckInterval + 5*time.Second)
	for time.Now().Before(deadline) {
		time.Sleep(cfg.CheckInterval)
		_, err := rdb.ZScore(ctx, "entity_healthchecks", entityID).Result()
		if err == redis.Nil {
			t.Logf("entity %s evicted", entityID)
			return
		}
		if err != nil {
			t.Fatalf("reading score: %v", err)
		}
	}
	t.Fatalf("entity %s still present after the scan deadline", entityID)
}

// TestActiveEntityIsKept keeps pinging an entity past the threshold and
// checks it is never evicted.
func TestActiveEntityIsKept(t *testing.T) {
	cfg := loadE2EConfig()
	client := &http.Client{Timeout: 5 * time.Second}
	if _, err := client.Get(cfg.WatcherURL + "/health/live"); err != nil {
		t.Skipf("watcher unavailable: %v", err)
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		t.Fatalf("parsing redis url: %v", err)
	}
	rdb := redis.NewClient(opts)
	defer rdb.Close()
	ctx := context.Background()

	entityID := fmt.Sprintf("e2e-active-%d", time.Now().UnixNano())
	end := time.Now().Add(2*cfg.StaleThreshold + 2*cfg.CheckInterval)
	for time.Now().Before(end) {
		resp, err := client.Post(cfg.WatcherURL+"/healthcheck/"+entityID, "", nil)
		if err != nil {
			t.Fatalf("healthcheck request failed: %v", err)
		}
		resp.Body.Close()
		time.Sleep(cfg.StaleThreshold / 4)
	}

	if _, err := rdb.ZScore(ctx, "entity_healthchecks", entityID).Result(); err != nil {
		t.Fatalf("active entity missing: %v", err)
	}
	rdb.ZRem(ctx, "entity_healthchecks", entityID)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
