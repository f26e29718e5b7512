// Package handler exposes the HTTP heartbeat endpoint.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	apperrors "github.com/Adithya-Monish-Kumar-K/heartbeat-watcher/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/heartbeat-watcher/pkg/logger"
)

// Recorder writes one heartbeat stamped with the current time.
type Recorder interface {
	Record(ctx context.Context, entityID string) (int64, error)
}

type Handler struct {
	recorder Recorder
	logger   *slog.Logger
}

func New(recorder Recorder) *Handler {
	return &Handler{
		recorder: recorder,
		logger:   slog.Default().With("component", "ingestion-handler"),
	}
}

// Register mounts the heartbeat route on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /healthcheck/{entityId}", h.Healthcheck)
}

// Healthcheck records a heartbeat for the entity named in the path. Store
// failures become a 500 for this request only.
func (h *Handler) Healthcheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)
	entityID := r.PathValue("entityId")

	ts, err := h.recorder.Record(ctx, entityID)
	if err != nil {
		statusCode := apperrors.HTTPStatusCode(err)
		log.Error("failed to record heartbeat",
			"entity_id", entityID,
			"error", err,
			"status_code", statusCode,
		)
		h.writeError(w, statusCode, http.StatusText(statusCode))
		return
	}
	log.Info("received healthcheck", "entity_id", entityID, "timestamp", ts)
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
