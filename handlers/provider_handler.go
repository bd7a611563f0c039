package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/docuflow/llm-router/middleware"
	"github.com/docuflow/llm-router/services/inference"
	"github.com/docuflow/llm-router/utils"
)

// ProviderHandler serves the provider listing and health endpoints.
type ProviderHandler struct {
	service *inference.Service
	logger  *zap.Logger
}

// NewProviderHandler creates a new ProviderHandler
func NewProviderHandler(service *inference.Service, logger *zap.Logger) *ProviderHandler {
	return &ProviderHandler{service: service, logger: logger}
}

// HandleList handles GET /api/v1/providers. The listing is already
// filtered by the caller's policy and never includes credentials.
func (h *ProviderHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenant := middleware.GetTenantFromContext(ctx)
	role := middleware.GetRoleFromContext(ctx)

	summaries, err := h.service.ProviderSummaries(tenant, role)
	if err != nil {
		h.logger.Error("failed to list providers", zap.Error(err))
		_ = utils.WriteInternalServerError(w, "Failed to list providers")
		return
	}

	_ = utils.WriteOK(w, summaries)
}

// HandleHealth handles GET /api/v1/providers/health.
func (h *ProviderHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenant := middleware.GetTenantFromContext(ctx)
	role := middleware.GetRoleFromContext(ctx)

	snapshot, err := h.service.HealthSnapshot(ctx, tenant, role)
	if err != nil {
		h.logger.Error("failed to snapshot provider health", zap.Error(err))
		_ = utils.WriteInternalServerError(w, "Failed to check provider health")
		return
	}

	_ = utils.WriteOK(w, snapshot)
}
