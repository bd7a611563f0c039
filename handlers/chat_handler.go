package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/docuflow/llm-router/middleware"
	"github.com/docuflow/llm-router/services/inference"
	"github.com/docuflow/llm-router/services/providers"
	"github.com/docuflow/llm-router/utils"
)

// ChatRequest is the inbound chat DTO. Either Messages or Prompt must
// be present; System and Prompt are folded into the message list before
// the request reaches an adapter.
type ChatRequest struct {
	Messages []ChatMessage    `json:"messages" validate:"omitempty,min=1,dive"`
	Prompt   string           `json:"prompt"`
	System   string           `json:"system"`
	Model    string           `json:"model"`
	Tools    []providers.Tool `json:"tools,omitempty"`
	TimeoutS int              `json:"timeout_s" validate:"omitempty,gte=0,lte=600"`
}

// ChatMessage is one turn of the inbound conversation.
type ChatMessage struct {
	Role    string `json:"role" validate:"required,oneof=system user assistant tool"`
	Content string `json:"content" validate:"required"`
	Name    string `json:"name,omitempty"`
}

// ChatHandler handles chat routing requests
type ChatHandler struct {
	service  *inference.Service
	validate *validator.Validate
	logger   *zap.Logger
}

// NewChatHandler creates a new ChatHandler
func NewChatHandler(service *inference.Service, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{
		service:  service,
		validate: validator.New(),
		logger:   logger,
	}
}

// HandleChat handles POST /api/v1/chat. The response is always 200 with
// an inference.Result body; router internals never surface as HTTP
// errors, only malformed requests do.
func (h *ChatHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenant := middleware.GetTenantFromContext(ctx)
	role := middleware.GetRoleFromContext(ctx)

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}

	if err := h.validate.Struct(&req); err != nil {
		_ = utils.WriteBadRequest(w, "Validation failed", validationDetails(err))
		return
	}
	if len(req.Messages) == 0 && req.Prompt == "" {
		_ = utils.WriteBadRequest(w, "Either messages or prompt is required", nil)
		return
	}

	genReq := &providers.GenerateRequest{
		Prompt:  req.Prompt,
		System:  req.System,
		Model:   req.Model,
		Tools:   req.Tools,
		Timeout: time.Duration(req.TimeoutS) * time.Second,
	}
	for _, m := range req.Messages {
		genReq.Messages = append(genReq.Messages, providers.ChatMessage{
			Role:    m.Role,
			Content: m.Content,
			Name:    m.Name,
		})
	}

	result := h.service.ChatWithFallback(ctx, tenant, role, genReq)

	h.logger.Info("chat request handled",
		zap.String("tenant", tenant),
		zap.String("role", role),
		zap.Bool("ok", result.OK),
		zap.String("provider", result.Provider))

	_ = utils.WriteJSON(w, http.StatusOK, result)
}

// validationDetails flattens validator errors into a details map.
func validationDetails(err error) map[string]interface{} {
	details := make(map[string]interface{})
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			details[fe.Field()] = fe.Tag()
		}
	}
	return details
}
