package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/heartbeat-watcher/pkg/config"
	"github.com/segmentio/kafka-go"
)

var jsonHeader = kafka.Header{Key: "content-type", Value: []byte("application/json")}

// Event is one record to publish. Key picks the partition, so events for the
// same entity stay ordered.
type Event struct {
	Key   string
	Value any
}

// Producer writes JSON events to a single topic. Writes are synchronous and
// acknowledged by all in-sync replicas.
type Producer struct {
	writer *kafka.Writer
	logger *slog.Logger
}

func NewProducer(cfg config.KafkaConfig, topic string) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			BatchTimeout:           10 * time.Millisecond,
			MaxAttempts:            3,
			RequiredAcks:           kafka.RequireAll,
			WriteTimeout:           10 * time.Second,
			AllowAutoTopicCreation: true,
		},
		logger: slog.Default().With("component", "kafka-producer", "topic", topic),
	}
}

// PublishBatch encodes every event before writing any, then writes them in
// one call. A single encoding failure publishes nothing.
func (p *Producer) PublishBatch(ctx context.Context, events []Event) error {
	if len(events) == 0 {
		return nil
	}
	messages, err := encode(events)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, messages...); err != nil {
		p.logger.Error("failed to publish batch", "count", len(messages), "error", err)
		return fmt.Errorf("publishing batch to kafka: %w", err)
	}
	p.logger.Debug("batch published", "count", len(messages))
	return nil
}

func encode(events []Event) ([]kafka.Message, error) {
	messages := make([]kafka.Message, len(events))
	for i, event := range events {
		value, err := json.Marshal(event.Value)
		if err != nil {
			return nil, fmt.Errorf("marshaling event %q: %w", event.Key, err)
		}
		messages[i] = kafka.Message{
			Key:     []byte(event.Key),
			Value:   value,
			Headers: []kafka.Header{jsonHeader},
		}
	}
	return messages, nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
