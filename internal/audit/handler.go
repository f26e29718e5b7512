package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"golang.org/x/sync/singleflight"
)

const (
	defaultLimit = 20
	maxLimit     = 500
)

// Lister returns recent audited reports.
type Lister interface {
	Recent(ctx context.Context, limit int) ([]Report, error)
}

// Handler serves audited reports. Concurrent requests for the same limit
// share one query.
type Handler struct {
	lister Lister
	group  singleflight.Group
	logger *slog.Logger
}

func NewHandler(lister Lister) *Handler {
	return &Handler{
		lister: lister,
		logger: slog.Default().With("component", "audit-handler"),
	}
}

// Reports serves GET /api/v1/reports?limit=N.
func (h *Handler) Reports(w http.ResponseWriter, r *http.Request) {
	limit := defaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxLimit)
	}
	// The query is shared, so one caller going away must not fail the rest.
	ctx := context.WithoutCancel(r.Context())
	v, err, shared := h.group.Do(strconv.Itoa(limit), func() (any, error) {
		return h.lister.Recent(ctx, limit)
	})
	if err != nil {
		h.logger.Error("listing stale reports failed", "error", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	if shared {
		h.logger.Debug("reports query shared", "limit", limit)
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"reports": v.([]Report)})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}
