package handlers

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/docuflow/llm-router/utils"
)

// HealthHandler serves the service liveness endpoint.
type HealthHandler struct {
	db        *sql.DB
	startTime time.Time
	version   string
}

// NewHealthHandler creates a new HealthHandler. db may be nil.
func NewHealthHandler(db *sql.DB, version string) *HealthHandler {
	return &HealthHandler{
		db:        db,
		startTime: time.Now(),
		version:   version,
	}
}

// HealthStatus is the liveness response body.
type HealthStatus struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	UptimeS  int64  `json:"uptime_s"`
	Database string `json:"database,omitempty"`
}

// HandleHealthz handles GET /healthz. Degraded database connectivity is
// reported but does not fail the check; routing works without a store.
func (h *HealthHandler) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	status := HealthStatus{
		Status:  "ok",
		Version: h.version,
		UptimeS: int64(time.Since(h.startTime).Seconds()),
	}

	if h.db != nil {
		if err := h.db.PingContext(r.Context()); err != nil {
			status.Database = "unreachable"
		} else {
			status.Database = "ok"
		}
	}

	_ = utils.WriteJSON(w, http.StatusOK, status)
}
