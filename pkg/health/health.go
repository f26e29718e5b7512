// Package health runs dependency checks for the watcher's probes. Redis is
// the only hard dependency: a down check fails readiness, while a degraded
// one (an optional sink that is struggling) is reported but keeps the
// instance in rotation.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"
)

type Status string

const (
	StatusUp       Status = "up"
	StatusDegraded Status = "degraded"
	StatusDown     Status = "down"
)

var severity = map[Status]int{StatusUp: 0, StatusDegraded: 1, StatusDown: 2}

// Check probes one dependency.
type Check func(ctx context.Context) ComponentHealth

type ComponentHealth struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// Report is the worst component status plus every component's result.
type Report struct {
	Status     Status                     `json:"status"`
	Components map[string]ComponentHealth `json:"components"`
	Timestamp  time.Time                  `json:"timestamp"`
}

// PingCheck is down whenever ping fails.
func PingCheck(ping func(ctx context.Context) error) Check {
	return func(ctx context.Context) ComponentHealth {
		if err := ping(ctx); err != nil {
			return ComponentHealth{Status: StatusDown, Message: err.Error()}
		}
		return ComponentHealth{Status: StatusUp}
	}
}

// Checker holds named checks. Register everything before serving probes.
type Checker struct {
	names   []string
	checks  map[string]Check
	timeout time.Duration
}

// NewChecker bounds each readiness run by timeout; zero means 5s.
func NewChecker(timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Checker{checks: make(map[string]Check), timeout: timeout}
}

func (c *Checker) Register(name string, check Check) {
	if _, ok := c.checks[name]; !ok {
		c.names = append(c.names, name)
		sort.Strings(c.names)
	}
	c.checks[name] = check
}

// Run executes every check in parallel.
func (c *Checker) Run(ctx context.Context) Report {
	results := make([]ComponentHealth, len(c.names))
	var wg sync.WaitGroup
	for i, name := range c.names {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start := time.Now()
			results[i] = c.checks[name](ctx)
			results[i].Latency = time.Since(start).Round(time.Millisecond).String()
		}()
	}
	wg.Wait()

	report := Report{
		Status:     StatusUp,
		Components: make(map[string]ComponentHealth, len(results)),
		Timestamp:  time.Now().UTC(),
	}
	for i, name := range c.names {
		report.Components[name] = results[i]
		if severity[results[i].Status] > severity[report.Status] {
			report.Status = results[i].Status
		}
	}
	return report
}

// LiveHandler answers 200 while the process is serving.
func (c *Checker) LiveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
	}
}

// ReadyHandler answers 503 when any check is down.
func (c *Checker) ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), c.timeout)
		defer cancel()
		report := c.Run(ctx)
		status := http.StatusOK
		if report.Status == StatusDown {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, report)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
