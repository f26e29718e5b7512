// Command watcher starts the heartbeat watcher.
//
// Entities signal liveness with POST /healthcheck/{entityId}; each heartbeat
// overwrites the entity's last-seen score in a Redis sorted set. A background
// scanner periodically reports entities silent past the stale threshold to
// the logging API and evicts them once the report is acknowledged.
// Optional: heartbeats over Kafka, stale events published to Kafka, and a
// PostgreSQL audit of every report.
//
// Usage:
//
//	REDIS_URL=redis://localhost:6379 LOGGING_API_URL=http://localhost:5000/log-failure \
//	    go run ./cmd/watcher [-config watcher.yaml]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/heartbeat-watcher/internal/audit"
	"github.com/Adithya-Monish-Kumar-K/heartbeat-watcher/internal/events"
	"github.com/Adithya-Monish-Kumar-K/heartbeat-watcher/internal/heartbeat"
	"github.com/Adithya-Monish-Kumar-K/heartbeat-watcher/internal/ingestion/consumer"
	"github.com/Adithya-Monish-Kumar-K/heartbeat-watcher/internal/ingestion/handler"
	"github.com/Adithya-Monish-Kumar-K/heartbeat-watcher/internal/reporter"
	"github.com/Adithya-Monish-Kumar-K/heartbeat-watcher/internal/scanner"
	"github.com/Adithya-Monish-Kumar-K/heartbeat-watcher/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/heartbeat-watcher/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/heartbeat-watcher/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/heartbeat-watcher/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/heartbeat-watcher/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/heartbeat-watcher/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/heartbeat-watcher/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/heartbeat-watcher/pkg/redis"
	"golang.org/x/sync/errgroup"
)

// main loads configuration, connects to Redis, wires the ingestion endpoint
// and the stale scanner, and runs both until SIGINT/SIGTERM. Any startup
// failure exits with status 1.
func main() {
	configPath := flag.String("config", "", "optional path to a YAML config file")
	flag.Parse()
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting heartbeat watcher",
		"addr", cfg.Server.Addr(),
		"stale_threshold", cfg.Scanner.StaleThreshold,
		"check_interval", cfg.Scanner.CheckInterval,
	)

	if err := run(cfg); err != nil {
		slog.Error("watcher failed", "error", err)
		os.Exit(1)
	}
	slog.Info("heartbeat watcher stopped")
}

func run(cfg *config.Config) error {
	m := metrics.New(nil)

	rdb, err := pkgredis.NewClient(cfg.Redis)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer rdb.Close()
	slog.Info("connected to redis", "key", cfg.Redis.Key)

	store := heartbeat.NewRedisStore(rdb, cfg.Redis.Key)
	recorder := heartbeat.NewRecorder(store, m)

	checker := health.NewChecker(0)
	checker.Register("redis", health.PingCheck(store.Ping))

	mux := http.NewServeMux()
	handler.New(recorder).Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var observers []scanner.Observer
	if cfg.Kafka.Enabled() {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.StaleEntities)
		defer producer.Close()
		publisher := events.NewPublisher(producer, m)
		observers = append(observers, publisher)
		checker.Register("kafka", publisher.Check)
		slog.Info("kafka stale-event producer initialized", "topic", cfg.Kafka.Topics.StaleEntities)
	}
	if cfg.Postgres.Enabled() {
		db, err := postgres.New(cfg.Postgres)
		if err != nil {
			return fmt.Errorf("connecting to postgres: %w", err)
		}
		defer db.Close()
		auditStore := audit.NewStore(db)
		if err := auditStore.EnsureSchema(context.Background()); err != nil {
			return err
		}
		observers = append(observers, auditStore)
		checker.Register("postgres", health.PingCheck(db.Ping))
		mux.HandleFunc("GET /api/v1/reports", audit.NewHandler(auditStore).Reports)
		slog.Info("report audit enabled")
	}

	httpClient := &http.Client{Timeout: cfg.Reporter.Timeout}
	scan := scanner.New(store, reporter.New(cfg.Reporter.URL, httpClient), scanner.Config{
		StaleThreshold: cfg.Scanner.StaleThreshold,
		CheckInterval:  cfg.Scanner.CheckInterval,
		Observers:      observers,
		Metrics:        m,
	})

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.RequestTimeout)(chain)
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	ln, err := net.Listen("tcp", server.Addr)
	if err != nil {
		return fmt.Errorf("binding listener: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("healthcheck listener running", "addr", ln.Addr().String())
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
		return nil
	})
	if cfg.Metrics.Enabled {
		g.Go(func() error {
			if err := metrics.Serve(ctx, cfg.Metrics.Port); err != nil {
				slog.Error("metrics unavailable", "error", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		scan.Start(ctx)
		<-ctx.Done()
		scan.Stop()
		return nil
	})
	if cfg.Kafka.Enabled() {
		c := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.Heartbeats, consumer.HandleHeartbeat(recorder))
		g.Go(func() error {
			if err := c.Run(ctx); err != nil {
				slog.Error("heartbeat consumer error", "error", err)
			}
			return nil
		})
		slog.Info("kafka heartbeat consumer started", "topic", cfg.Kafka.Topics.Heartbeats)
	}

	return g.Wait()
}
