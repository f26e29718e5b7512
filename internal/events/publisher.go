// Package events publishes one Kafka event per reported stale entity so
// downstream consumers can react without polling the logging API.
package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/heartbeat-watcher/internal/scanner"
	"github.com/Adithya-Monish-Kumar-K/heartbeat-watcher/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/heartbeat-watcher/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/heartbeat-watcher/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/heartbeat-watcher/pkg/resilience"
)

// StaleEvent is the Kafka message value, keyed by entity id.
type StaleEvent struct {
	EntityID   string    `json:"entity_id"`
	Threshold  int64     `json:"threshold"`
	TraceID    string    `json:"trace_id"`
	ReportedAt time.Time `json:"reported_at"`
}

// BatchPublisher is satisfied by *kafka.Producer.
type BatchPublisher interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

// Publisher is a scanner.Observer. It publishes only batches the logging
// API acknowledged, behind a circuit breaker.
type Publisher struct {
	producer BatchPublisher
	breaker  *resilience.CircuitBreaker
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewPublisher wraps producer. m may be nil.
func NewPublisher(producer BatchPublisher, m *metrics.Metrics) *Publisher {
	cfg := resilience.CircuitBreakerConfig{
		FailureThreshold: 3,
		ResetTimeout:     time.Minute,
	}
	if m != nil {
		cfg.OnStateChange = func(name string, to resilience.State) {
			m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		}
	}
	return &Publisher{
		producer: producer,
		breaker:  resilience.NewCircuitBreaker("kafka-stale-events", cfg),
		metrics:  m,
		logger:   slog.Default().With("component", "stale-event-publisher"),
	}
}

func (p *Publisher) ObserveCycle(ctx context.Context, c scanner.Cycle) error {
	if !c.Reported || len(c.StaleEntities) == 0 {
		return nil
	}
	batch := make([]kafka.Event, 0, len(c.StaleEntities))
	reportedAt := c.StartedAt.UTC()
	for _, id := range c.StaleEntities {
		batch = append(batch, kafka.Event{
			Key: id,
			Value: StaleEvent{
				EntityID:   id,
				Threshold:  c.Threshold,
				TraceID:    c.TraceID,
				ReportedAt: reportedAt,
			},
		})
	}

	err := p.breaker.Execute(func() error {
		return p.producer.PublishBatch(ctx, batch)
	})
	if err != nil {
		p.count("failure", len(batch))
		return fmt.Errorf("publishing stale events: %w", err)
	}
	p.count("success", len(batch))
	p.logger.Debug("stale events published", "count", len(batch), "trace_id", c.TraceID)
	return nil
}

// Check reports the publisher degraded while its breaker is not closed.
// Kafka is optional, so it never reports down.
func (p *Publisher) Check(ctx context.Context) health.ComponentHealth {
	if state := p.breaker.State(); state != resilience.StateClosed {
		return health.ComponentHealth{Status: health.StatusDegraded, Message: "circuit " + state.String()}
	}
	return health.ComponentHealth{Status: health.StatusUp}
}

func (p *Publisher) count(status string, n int) {
	if p.metrics != nil {
		p.metrics.StaleEventsPublished.WithLabelValues(status).Add(float64(n))
	}
}

var _ scanner.Observer = (*Publisher)(nil)
