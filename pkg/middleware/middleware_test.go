package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/heartbeat-watcher/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/heartbeat-watcher/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestRequestIDGeneratedAndPropagated(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logger.RequestIDFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/healthcheck/job-1", nil))

	require.NotEmpty(t, seen)
	require.Equal(t, seen, rec.Header().Get(RequestIDHeader))
}

func TestRequestIDReusesIncoming(t *testing.T) {
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	req := httptest.NewRequest(http.MethodPost, "/healthcheck/job-1", nil)
	req.Header.Set(RequestIDHeader, "abc-123")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
}

func TestTimeoutDisabledPassesThrough(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hasDeadline := r.Context().Deadline()
		require.False(t, hasDeadline)
		w.WriteHeader(http.StatusOK)
	})
	rec := httptest.NewRecorder()
	Timeout(0)(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestTimeoutAnswers504(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	})
	rec := httptest.NewRecorder()
	Timeout(20*time.Millisecond)(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusGatewayTimeout, rec.Code)
}

func TestTimeoutHandlerWritingAfterDeadline(t *testing.T) {
	writeErrs := make(chan error, 50)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
		time.Sleep(10 * time.Millisecond)
		for i := 0; i < 100; i++ {
			w.Header().Set("X-Late", "yes")
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, err := w.Write([]byte(`{"error":"late"}`))
		writeErrs <- err
	})
	h := Timeout(5 * time.Millisecond)(next)

	for i := 0; i < 50; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusGatewayTimeout, rec.Code)
		require.Empty(t, rec.Header().Get("X-Late"))
		require.JSONEq(t, `{"error":"request timeout"}`, rec.Body.String())
	}
	for i := 0; i < 50; i++ {
		require.ErrorIs(t, <-writeErrs, http.ErrHandlerTimeout)
	}
}

func TestTimeoutForwardsFastResponse(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Entity", "job-1")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte("ok"))
	})
	rec := httptest.NewRecorder()
	Timeout(time.Second)(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, "job-1", rec.Header().Get("X-Entity"))
	require.Equal(t, "ok", rec.Body.String())
}

func TestMetricsCollapsesEntityPaths(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	h := Metrics(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for _, id := range []string{"a", "b", "c"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/healthcheck/"+id, nil))
	}

	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != "http_requests_total" {
			continue
		}
		require.Len(t, mf.GetMetric(), 1)
		require.Equal(t, 3.0, mf.GetMetric()[0].GetCounter().GetValue())
		return
	}
	t.Fatal("http_requests_total not gathered")
}

func TestRouteLabel(t *testing.T) {
	require.Equal(t, "/healthcheck/{entityId}", routeLabel("/healthcheck/job%2F1"))
	require.Equal(t, "/health/ready", routeLabel("/health/ready"))
	require.Equal(t, "other", routeLabel("/wp-admin/setup.php"))
}
