// Package middleware holds the HTTP middleware wrapped around the watcher's
// mux: request ids, Prometheus instrumentation and an optional per-request
// timeout.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/heartbeat-watcher/pkg/metrics"
)

// Metrics records request count, latency and in-flight requests, labelled
// by route rather than raw path.
func Metrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m.HTTPRequestsInFlight.Inc()
			defer m.HTTPRequestsInFlight.Dec()

			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)

			route := routeLabel(r.URL.Path)
			m.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(sw.status)).Inc()
			m.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (sw *statusWriter) WriteHeader(code int) {
	if !sw.wroteHeader {
		sw.status = code
		sw.wroteHeader = true
	}
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *statusWriter) Write(b []byte) (int, error) {
	sw.wroteHeader = true
	return sw.ResponseWriter.Write(b)
}

var fixedRoutes = map[string]bool{
	"/health/live":    true,
	"/health/ready":   true,
	"/api/v1/reports": true,
}

// routeLabel keeps label cardinality bounded: every entity shares one
// heartbeat label and unknown paths collapse into "other".
func routeLabel(path string) string {
	switch {
	case strings.HasPrefix(path, "/healthcheck/"):
		return "/healthcheck/{entityId}"
	case fixedRoutes[path]:
		return path
	default:
		return "other"
	}
}
