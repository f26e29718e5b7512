// Package scanner runs the staleness scan: on a fixed interval it queries
// the heartbeat store for entities silent past the threshold, reports them
// to the logging API and, only after a successful report, range-deletes
// everything at or below the threshold it queried with.
//
// The loop is level-triggered. A failed report leaves the records in place
// and they are reported again on the next tick, with no backoff and no
// retry ceiling.
package scanner

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/heartbeat-watcher/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/heartbeat-watcher/pkg/tracing"
)

// Store is the part of the heartbeat store the scanner needs.
type Store interface {
	QueryStale(ctx context.Context, threshold int64) ([]string, error)
	EvictStale(ctx context.Context, threshold int64) (int64, error)
}

// Reporter delivers a non-empty stale batch.
type Reporter interface {
	Report(ctx context.Context, entityIDs []string) error
}

// Observer is notified after every cycle that found a non-empty batch,
// whether or not it was delivered. Observer errors are logged and never
// change the cycle's outcome.
type Observer interface {
	ObserveCycle(ctx context.Context, c Cycle) error
}

// Cycle summarises one scan cycle.
type Cycle struct {
	TraceID       string
	StartedAt     time.Time
	Threshold     int64
	StaleEntities []string
	Reported      bool
	Evicted       int64
}

// Config controls the scanner. StaleThreshold and CheckInterval are
// truncated to whole seconds.
type Config struct {
	StaleThreshold time.Duration
	CheckInterval  time.Duration
	Observers      []Observer
	Metrics        *metrics.Metrics
	// Now defaults to time.Now.
	Now func() time.Time
}

// Scanner is a single periodic task. Only one should run against a store.
type Scanner struct {
	store     Store
	reporter  Reporter
	threshold int64
	interval  time.Duration
	observers []Observer
	metrics   *metrics.Metrics
	now       func() time.Time
	logger    *slog.Logger

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates a scanner but does not start it.
func New(store Store, reporter Reporter, cfg Config) *Scanner {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	interval := cfg.CheckInterval.Truncate(time.Second)
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Scanner{
		store:     store,
		reporter:  reporter,
		threshold: int64(cfg.StaleThreshold / time.Second),
		interval:  interval,
		observers: cfg.Observers,
		metrics:   cfg.Metrics,
		now:       now,
		logger:    slog.Default().With("component", "stale-scanner"),
		done:      make(chan struct{}),
	}
}

// Start launches the scan loop. The first cycle runs immediately, then once
// per interval. A tick that arrives while a cycle is still running is
// dropped. Start is a no-op after the first call.
func (s *Scanner) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	ctx, s.cancel = context.WithCancel(ctx)
	go s.loop(ctx)
	s.logger.Info("stale scanner started",
		"stale_threshold_seconds", s.threshold,
		"check_interval", s.interval,
	)
}

// Stop cancels the loop and waits for the in-flight cycle to return. It is
// safe to call more than once, and before Start.
func (s *Scanner) Stop() {
	s.mu.Lock()
	started, cancel := s.started, s.cancel
	s.mu.Unlock()
	if !started {
		return
	}
	cancel()
	<-s.done
}

// Done is closed once the loop has exited.
func (s *Scanner) Done() <-chan struct{} {
	return s.done
}

func (s *Scanner) loop(ctx context.Context) {
	defer close(s.done)

	s.tick(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("stale scanner stopped", "reason", ctx.Err())
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick is the only place a failed cycle is logged.
func (s *Scanner) tick(ctx context.Context) {
	cycle, err := s.RunCycle(ctx)
	if err == nil || ctx.Err() != nil {
		return
	}
	s.logger.Error("scan cycle failed",
		"trace_id", cycle.TraceID,
		"kind", KindOf(err).String(),
		"stale_count", len(cycle.StaleEntities),
		"error", err,
	)
}

// RunCycle performs one query/report/evict pass. The threshold computed at
// the start is reused for eviction, so a heartbeat that lands between the
// query and the delete with a newer timestamp survives, even though the
// entity was already included in the report.
func (s *Scanner) RunCycle(ctx context.Context) (Cycle, error) {
	started := s.now()
	ctx, span := tracing.Start(ctx, "scan_cycle")
	cycle := Cycle{
		TraceID:   span.TraceID,
		StartedAt: started,
		Threshold: started.Unix() - s.threshold,
	}
	span.Set("threshold", cycle.Threshold)
	log := s.logger.With("trace_id", span.TraceID)
	defer func() {
		span.End()
		s.observeDuration(span.Duration)
		level := slog.LevelDebug
		if len(cycle.StaleEntities) > 0 {
			level = slog.LevelInfo
		}
		span.Log(ctx, s.logger, level)
	}()

	qctx, qspan := tracing.Start(ctx, "query_stale")
	ids, err := s.store.QueryStale(qctx, cycle.Threshold)
	qspan.End()
	if err != nil {
		s.countCycle("query_error")
		return cycle, &CycleError{Kind: ErrorKindQuery, Err: err}
	}
	if len(ids) == 0 {
		s.countCycle("empty")
		return cycle, nil
	}
	cycle.StaleEntities = ids
	span.Set("stale_count", len(ids))
	if s.metrics != nil {
		s.metrics.StaleEntitiesFound.Observe(float64(len(ids)))
	}
	log.Info("stale entities found, reporting", "count", len(ids), "threshold", cycle.Threshold)

	rctx, rspan := tracing.Start(ctx, "report")
	err = s.reporter.Report(rctx, ids)
	rspan.End()
	if err != nil {
		s.countReport("failure")
		s.countCycle("report_error")
		s.notify(ctx, cycle)
		return cycle, &CycleError{Kind: ErrorKindReport, Err: err}
	}
	s.countReport("success")
	cycle.Reported = true

	ectx, espan := tracing.Start(ctx, "evict_stale")
	evicted, err := s.store.EvictStale(ectx, cycle.Threshold)
	espan.End()
	if err != nil {
		s.countCycle("evict_error")
		s.notify(ctx, cycle)
		return cycle, &CycleError{Kind: ErrorKindEvict, Err: err}
	}
	cycle.Evicted = evicted
	span.Set("evicted", evicted)
	if s.metrics != nil {
		s.metrics.EntitiesEvicted.Add(float64(evicted))
	}
	s.countCycle("evicted")
	log.Info("stale entities reported and evicted", "reported", len(ids), "evicted", evicted)
	s.notify(ctx, cycle)
	return cycle, nil
}

func (s *Scanner) notify(ctx context.Context, c Cycle) {
	for _, o := range s.observers {
		if err := o.ObserveCycle(ctx, c); err != nil {
			s.logger.Warn("cycle observer failed", "trace_id", c.TraceID, "error", err)
		}
	}
}

func (s *Scanner) countCycle(outcome string) {
	if s.metrics != nil {
		s.metrics.ScanCyclesTotal.WithLabelValues(outcome).Inc()
	}
}

func (s *Scanner) countReport(status string) {
	if s.metrics != nil {
		s.metrics.ReportsTotal.WithLabelValues(status).Inc()
	}
}

func (s *Scanner) observeDuration(d time.Duration) {
	if s.metrics != nil {
		s.metrics.ScanDuration.Observe(d.Seconds())
	}
}
