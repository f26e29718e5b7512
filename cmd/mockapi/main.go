// Command mockapi is a stand-in for the external logging API. It accepts
// stale-entity reports on POST /log-failure and logs them.
//
// Usage:
//
//	go run ./cmd/mockapi [-port 5000] [-fail]
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/heartbeat-watcher/internal/reporter"
	"github.com/Adithya-Monish-Kumar-K/heartbeat-watcher/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/heartbeat-watcher/pkg/middleware"
)

func main() {
	port := flag.Int("port", 5000, "listen port")
	fail := flag.Bool("fail", false, "answer every report with 500 to exercise retries")
	flag.Parse()

	logger.Setup("info", "text")

	mux := http.NewServeMux()
	mux.Handle("POST /log-failure", logFailure(*fail))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      middleware.RequestID(mux),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	slog.Info("mock logging api listening", "addr", server.Addr, "fail", *fail)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

// logFailure logs JSON reports and answers 200, or 400 for non-JSON bodies.
func logFailure(fail bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromContext(r.Context())
		if mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type")); err != nil || mt != "application/json" {
			http.Error(w, "Bad Request: JSON expected", http.StatusBadRequest)
			return
		}
		var payload reporter.Payload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			http.Error(w, "Bad Request: JSON expected", http.StatusBadRequest)
			return
		}
		if fail {
			log.Warn("rejecting stale report", "stale_entities", payload.StaleEntities)
			http.Error(w, "simulated failure", http.StatusInternalServerError)
			return
		}
		log.Info("received stale entities", "count", len(payload.StaleEntities), "stale_entities", payload.StaleEntities)
		w.Write([]byte("Logged"))
	}
}
