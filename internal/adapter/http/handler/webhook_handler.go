package handler

import (
	"payflow-gateway/internal/adapter/http/dto"
	"payflow-gateway/internal/adapter/http/middleware"
	"payflow-gateway/internal/core/ports"
	"payflow-gateway/pkg/apperror"
	"payflow-gateway/pkg/response"

	"github.com/gin-gonic/gin"
)

// WebhookHandler exposes delivery history on the key-authenticated API.
type WebhookHandler struct {
	webhookSvc ports.WebhookService
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(webhookSvc ports.WebhookService) *WebhookHandler {
	return &WebhookHandler{webhookSvc: webhookSvc}
}

// Logs handles GET /v1/webhooks/logs.
func (h *WebhookHandler) Logs(c *gin.Context) {
	merchant, ok := middleware.MerchantFromContext(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidCredentials())
		return
	}

	logs, err := h.webhookSvc.Logs(c.Request.Context(), merchant.ID, webhookLogPageSize)
	if err != nil {
		response.Error(c, err)
		return
	}

	out := make([]dto.WebhookLogResponse, 0, len(logs))
	for i := range logs {
		out = append(out, dto.ToWebhookLogResponse(&logs[i]))
	}
	response.OK(c, out)
}
