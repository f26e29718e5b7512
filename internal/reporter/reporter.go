// Package reporter delivers stale batches to the external logging API as a
// single JSON POST. Delivery succeeds only on a 2xx response; everything
// else, transport failures included, is reported as one kind of failure.
package reporter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	apperrors "github.com/Adithya-Monish-Kumar-K/heartbeat-watcher/pkg/errors"
)

// Payload is the JSON body sent to the logging API.
type Payload struct {
	StaleEntities []string `json:"stale_entities"`
}

// StatusError is returned when the logging API answers outside 2xx.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("logging api returned HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("logging api returned HTTP %d: %s", e.StatusCode, e.Body)
}

func (e *StatusError) Unwrap() error {
	return apperrors.ErrReportFailed
}

// HTTPReporter posts stale batches to a fixed URL.
type HTTPReporter struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

// New creates a reporter for url. A nil client uses http.DefaultClient.
func New(url string, client *http.Client) *HTTPReporter {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPReporter{
		url:    url,
		client: client,
		logger: slog.Default().With("component", "reporter"),
	}
}

// Report sends one request carrying entityIDs. A nil error means the API
// acknowledged the batch.
func (r *HTTPReporter) Report(ctx context.Context, entityIDs []string) error {
	body, err := json.Marshal(Payload{StaleEntities: entityIDs})
	if err != nil {
		return fmt.Errorf("%w: marshaling payload: %v", apperrors.ErrReportFailed, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: building request: %v", apperrors.ErrReportFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", apperrors.ErrReportFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return &StatusError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(snippet))}
	}
	io.Copy(io.Discard, resp.Body)

	r.logger.Debug("stale batch delivered", "count", len(entityIDs), "status", resp.StatusCode)
	return nil
}
