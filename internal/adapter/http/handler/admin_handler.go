package handler

import (
	"payflow-gateway/internal/adapter/http/dto"
	"payflow-gateway/internal/core/ports"
	"payflow-gateway/pkg/response"

	"github.com/gin-gonic/gin"
)

// AdminHandler handles the admin analytics endpoints.
type AdminHandler struct {
	reportingSvc ports.ReportingService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(reportingSvc ports.ReportingService) *AdminHandler {
	return &AdminHandler{reportingSvc: reportingSvc}
}

// Stats handles GET /admin/stats.
func (h *AdminHandler) Stats(c *gin.Context) {
	stats, err := h.reportingSvc.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.ToStatsResponse(stats))
}

// Flagged handles GET /admin/flagged.
func (h *AdminHandler) Flagged(c *gin.Context) {
	payments, err := h.reportingSvc.Flagged(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	out := make([]dto.PaymentResponse, 0, len(payments))
	for i := range payments {
		out = append(out, dto.ToPaymentResponse(&payments[i], ""))
	}
	response.OK(c, out)
}
