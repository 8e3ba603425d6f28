package handler

import (
	"net/http"

	"payflow-gateway/internal/adapter/http/dto"
	"payflow-gateway/internal/adapter/http/middleware"
	"payflow-gateway/internal/core/domain"
	"payflow-gateway/internal/core/ports"
	"payflow-gateway/pkg/apperror"
	"payflow-gateway/pkg/response"

	"github.com/gin-gonic/gin"
)

// webhookLogPageSize bounds the delivery log listing.
const webhookLogPageSize = 50

// MerchantHandler handles the merchant dashboard endpoints.
type MerchantHandler struct {
	merchantSvc ports.MerchantService
	keystore    ports.KeyStoreService
	webhookSvc  ports.WebhookService
}

// NewMerchantHandler creates a new MerchantHandler.
func NewMerchantHandler(merchantSvc ports.MerchantService, keystore ports.KeyStoreService, webhookSvc ports.WebhookService) *MerchantHandler {
	return &MerchantHandler{merchantSvc: merchantSvc, keystore: keystore, webhookSvc: webhookSvc}
}

// dashboardUser returns the JWT principal set by the auth middleware.
func dashboardUser(c *gin.Context) (*domain.User, bool) {
	user, ok := middleware.UserFromContext(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return nil, false
	}
	return user, true
}

// Create handles POST /merchants. The response is the only place
// the webhook secret appears in plaintext.
func (h *MerchantHandler) Create(c *gin.Context) {
	user, ok := dashboardUser(c)
	if !ok {
		return
	}

	var req dto.CreateMerchantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	merchant, err := h.merchantSvc.CreateMerchant(c.Request.Context(), user.ID, ports.CreateMerchantRequest{
		BusinessName:  req.BusinessName,
		BusinessEmail: req.BusinessEmail,
		Website:       req.Website,
		WebhookURL:    req.WebhookURL,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.ToMerchantResponse(merchant, true))
}

// Get handles GET /merchants/me.
func (h *MerchantHandler) Get(c *gin.Context) {
	user, ok := dashboardUser(c)
	if !ok {
		return
	}

	merchant, err := h.merchantSvc.GetByUser(c.Request.Context(), user.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.ToMerchantResponse(merchant, false))
}

// Update handles PATCH /merchants/me.
func (h *MerchantHandler) Update(c *gin.Context) {
	user, ok := dashboardUser(c)
	if !ok {
		return
	}

	var req dto.UpdateMerchantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	merchant, err := h.merchantSvc.UpdateProfile(c.Request.Context(), user.ID, ports.UpdateMerchantRequest{
		BusinessName: req.BusinessName,
		Website:      req.Website,
		WebhookURL:   req.WebhookURL,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.ToMerchantResponse(merchant, false))
}

// CheckoutQR handles GET /merchants/me/qr-code. Returns a PNG
// encoding the merchant's hosted checkout URL.
func (h *MerchantHandler) CheckoutQR(c *gin.Context) {
	user, ok := dashboardUser(c)
	if !ok {
		return
	}

	png, err := h.merchantSvc.CheckoutQRCode(c.Request.Context(), user.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Data(http.StatusOK, "image/png", png)
}

// IssueKey handles POST /merchants/me/keys. The key secret appears
// exactly once, in this response.
func (h *MerchantHandler) IssueKey(c *gin.Context) {
	user, ok := dashboardUser(c)
	if !ok {
		return
	}

	var req dto.IssueKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	merchant, err := h.merchantSvc.GetByUser(c.Request.Context(), user.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	issued, err := h.keystore.IssueKey(c.Request.Context(), merchant.ID, req.Label)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.ToIssuedKeyResponse(issued))
}

// ListKeys handles GET /merchants/me/keys.
func (h *MerchantHandler) ListKeys(c *gin.Context) {
	user, ok := dashboardUser(c)
	if !ok {
		return
	}

	merchant, err := h.merchantSvc.GetByUser(c.Request.Context(), user.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	keys, err := h.keystore.ListKeys(c.Request.Context(), merchant.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	out := make([]dto.ApiKeyResponse, 0, len(keys))
	for i := range keys {
		out = append(out, dto.ToApiKeyResponse(&keys[i]))
	}
	response.OK(c, out)
}

// RevokeKey handles DELETE /merchants/me/keys/:key_id.
func (h *MerchantHandler) RevokeKey(c *gin.Context) {
	user, ok := dashboardUser(c)
	if !ok {
		return
	}

	merchant, err := h.merchantSvc.GetByUser(c.Request.Context(), user.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	if err := h.keystore.RevokeKey(c.Request.Context(), merchant.ID, c.Param("key_id")); err != nil {
		response.Error(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// WebhookLogs handles GET /merchants/me/webhook-logs.
func (h *MerchantHandler) WebhookLogs(c *gin.Context) {
	user, ok := dashboardUser(c)
	if !ok {
		return
	}

	merchant, err := h.merchantSvc.GetByUser(c.Request.Context(), user.ID)
	if err != nil {
		response.Error(c, err)
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
