// Package consumer records heartbeats delivered over Kafka. It is an
// alternate transport to the HTTP endpoint and shares its Recorder.
package consumer

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/heartbeat-watcher/internal/heartbeat"
	apperrors "github.com/Adithya-Monish-Kumar-K/heartbeat-watcher/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/heartbeat-watcher/pkg/kafka"
)

// Message is the optional JSON body of a heartbeat message. When absent or
// empty, the message key names the entity.
type Message struct {
	EntityID string `json:"entity_id"`
}

// Recorder writes one heartbeat stamped with the current time.
type Recorder interface {
	Record(ctx context.Context, entityID string) (int64, error)
}

// HandleHeartbeat returns a kafka.MessageHandler that records one heartbeat
// per message. Malformed messages are logged and skipped. Store failures are
// returned so the consumer logs the message as dropped; the entity's next
// heartbeat refreshes it.
func HandleHeartbeat(rec Recorder) kafka.MessageHandler {
	logger := slog.Default().With("component", "heartbeat-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		entityID := string(key)
		if len(value) > 0 {
			msg, err := kafka.DecodeJSON[Message](value)
			if err != nil {
				logger.Warn("skipping malformed heartbeat message", "key", entityID, "error", err)
				return nil
			}
			if msg.EntityID != "" {
				entityID = msg.EntityID
			}
		}
		if _, err := rec.Record(ctx, entityID); err != nil {
			if errors.Is(err, apperrors.ErrInvalidInput) {
				logger.Warn("skipping invalid heartbeat message", "error", err)
				return nil
			}
			return err
		}
		return nil
	}
}

var _ Recorder = (*heartbeat.Recorder)(nil)
