package heartbeat

import (
	"context"
	"log/slog"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/heartbeat-watcher/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/heartbeat-watcher/pkg/metrics"
)

// maxEntityIDLength bounds identifiers accepted from any transport.
const maxEntityIDLength = 512

// Recorder stamps heartbeats with the current time and writes them to the
// store. It is shared by every ingestion transport.
type Recorder struct {
	store   Store
	metrics *metrics.Metrics
	now     func() time.Time
	logger  *slog.Logger
}

// NewRecorder creates a Recorder. m may be nil.
func NewRecorder(store Store, m *metrics.Metrics) *Recorder {
	return &Recorder{
		store:   store,
		metrics: m,
		now:     time.Now,
		logger:  slog.Default().With("component", "heartbeat-recorder"),
	}
}

// WithClock replaces the time source. Intended for tests.
func (r *Recorder) WithClock(now func() time.Time) *Recorder {
	r.now = now
	return r
}

// Record validates entityID and upserts its last-seen timestamp, returning
// the timestamp written.
func (r *Recorder) Record(ctx context.Context, entityID string) (int64, error) {
	if err := ValidateEntityID(entityID); err != nil {
		return 0, err
	}
	ts := r.now().Unix()
	if err := r.store.RecordHeartbeat(ctx, entityID, ts); err != nil {
		r.observe("error")
		return 0, err
	}
	r.observe("ok")
	r.logger.Debug("heartbeat recorded", "entity_id", entityID, "timestamp", ts)
	return ts, nil
}

func (r *Recorder) observe(status string) {
	if r.metrics != nil {
		r.metrics.HeartbeatsTotal.WithLabelValues(status).Inc()
	}
}

// ValidateEntityID rejects empty and oversized identifiers. Anything else is
// an opaque id compared by exact match.
func ValidateEntityID(entityID string) error {
	if entityID == "" {
		return apperrors.Invalid("validating entity id", "entity id is required")
	}
	if len(entityID) > maxEntityIDLength {
		return apperrors.Invalid("validating entity id", "entity id must be at most %d bytes", maxEntityIDLength)
	}
	return nil
}
