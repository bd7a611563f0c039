package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/docuflow/llm-router/repositories"
	"github.com/docuflow/llm-router/utils"
)

// DecisionHandler serves recorded routing decisions.
type DecisionHandler struct {
	repo   repositories.DecisionRepository
	logger *zap.Logger
}

// NewDecisionHandler creates a new DecisionHandler. repo may be nil when
// no decision store is configured.
func NewDecisionHandler(repo repositories.DecisionRepository, logger *zap.Logger) *DecisionHandler {
	return &DecisionHandler{repo: repo, logger: logger}
}

// HandleList handles GET /api/v1/decisions.
func (h *DecisionHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		_ = utils.WriteNotFound(w, "Decision store not configured")
		return
	}

	q := r.URL.Query()
	filter := repositories.DecisionFilter{
		Tenant:   q.Get("tenant"),
		Provider: q.Get("provider"),
		Outcome:  q.Get("outcome"),
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}

	decisions, err := h.repo.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list routing decisions", zap.Error(err))
		_ = utils.WriteInternalServerError(w, "Failed to list decisions")
		return
	}

	_ = utils.WriteOK(w, decisions)
}
