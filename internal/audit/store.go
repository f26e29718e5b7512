// Package audit records every stale batch the scanner found, delivered or
// not, in PostgreSQL. It keeps report outcomes only; heartbeat history is not
// stored.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/heartbeat-watcher/internal/scanner"
	"github.com/Adithya-Monish-Kumar-K/heartbeat-watcher/pkg/postgres"
)

const schema = `CREATE TABLE IF NOT EXISTS stale_reports (
	id          BIGSERIAL PRIMARY KEY,
	trace_id    TEXT        NOT NULL,
	entities    JSONB       NOT NULL,
	threshold   BIGINT      NOT NULL,
	delivered   BOOLEAN     NOT NULL,
	evicted     BIGINT      NOT NULL DEFAULT 0,
	reported_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

const reportedAtIndex = `CREATE INDEX IF NOT EXISTS stale_reports_reported_at_idx
	ON stale_reports (reported_at DESC)`

// Report is one audited scan cycle.
type Report struct {
	ID         int64     `json:"id"`
	TraceID    string    `json:"trace_id"`
	Entities   []string  `json:"entities"`
	Threshold  int64     `json:"threshold"`
	Delivered  bool      `json:"delivered"`
	Evicted    int64     `json:"evicted"`
	ReportedAt time.Time `json:"reported_at"`
}

// Store persists stale-report outcomes.
type Store struct {
	db     *postgres.Client
	logger *slog.Logger
}

// NewStore creates a new audit store.
func NewStore(db *postgres.Client) *Store {
	return &Store{
		db:     db,
		logger: slog.Default().With("component", "audit-store"),
	}
}

// EnsureSchema creates the stale_reports table and its index if they do not
// exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	return s.db.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, schema); err != nil {
			return fmt.Errorf("creating stale_reports table: %w", err)
		}
		if _, err := tx.ExecContext(ctx, reportedAtIndex); err != nil {
			return fmt.Errorf("creating stale_reports index: %w", err)
		}
		return nil
	})
}

// ObserveCycle inserts one row for the cycle's batch.
func (s *Store) ObserveCycle(ctx context.Context, c scanner.Cycle) error {
	entities, err := json.Marshal(c.StaleEntities)
	if err != nil {
		return fmt.Errorf("marshaling entities: %w", err)
	}
	_, err = s.db.DB.ExecContext(ctx,
		`INSERT INTO stale_reports (trace_id, entities, threshold, delivered, evicted, reported_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		c.TraceID, entities, c.Threshold, c.Reported, c.Evicted, c.StartedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("saving stale report: %w", err)
	}
	s.logger.Debug("stale report audited", "trace_id", c.TraceID, "delivered", c.Reported)
	return nil
}

// Recent returns the last limit reports, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Report, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT id, trace_id, entities, threshold, delivered, evicted, reported_at
		FROM stale_reports ORDER BY reported_at DESC, id DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing stale reports: %w", err)
	}
	defer rows.Close()

	reports := make([]Report, 0, limit)
	for rows.Next() {
		var r Report
		var entities []byte
		if err := rows.Scan(&r.ID, &r.TraceID, &entities, &r.Threshold, &r.Delivered, &r.Evicted, &r.ReportedAt); err != nil {
			return nil, fmt.Errorf("scanning stale report row: %w", err)
		}
		if err := json.Unmarshal(entities, &r.Entities); err != nil {
			s.logger.Warn("skipping corrupt stale report", "id", r.ID, "error", err)
			continue
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

var _ scanner.Observer = (*Store)(nil)
