package handler

import (
	"payflow-gateway/internal/adapter/http/dto"
	"payflow-gateway/internal/core/ports"
	"payflow-gateway/pkg/apperror"
	"payflow-gateway/pkg/response"

	"github.com/gin-gonic/gin"
)

// PaymentHandler handles the merchant-facing payment API.
type PaymentHandler struct {
	paymentSvc ports.PaymentService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(paymentSvc ports.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentSvc: paymentSvc}
}

// Get handles GET /v1/payments/:payment_ref.
func (h *PaymentHandler) Get(c *gin.Context) {
	merchant, ok := apiMerchant(c)
	if !ok {
		return
	}

	payment, err := h.paymentSvc.GetPayment(c.Request.Context(), merchant.ID, c.Param("payment_ref"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.ToPaymentResponse(payment, ""))
}

// Capture handles POST /v1/payments/:payment_ref/capture. Capturing an
// already captured payment returns it unchanged.
func (h *PaymentHandler) Capture(c *gin.Context) {
	merchant, ok := apiMerchant(c)
	if !ok {
		return
	}

	payment, err := h.paymentSvc.Capture(c.Request.Context(), merchant.ID, c.Param("payment_ref"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.ToPaymentResponse(payment, ""))
}

// CreateRefund handles POST /v1/payments/:payment_ref/refund. Replays
// of a previously seen idempotency key return the stored refund.
func (h *PaymentHandler) CreateRefund(c *gin.Context) {
	merchant, ok := apiMerchant(c)
	if !ok {
		return
	}

	var req dto.CreateRefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	refund, replayed, err := h.paymentSvc.Refund(c.Request.Context(), merchant.ID, c.Param("payment_ref"), ports.RefundRequest{
		Amount:         req.Amount,
		Reason:         req.Reason,
		Notes:          req.Notes,
		IdempotencyKey: idempotencyKey(c),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	if replayed {
		c.Header(HeaderIdempotencyReplayed, "true")
		response.OK(c, dto.ToRefundResponse(refund))
		return
	}
	response.Created(c, dto.ToRefundResponse(refund))
}

// ListRefunds handles GET /v1/payments/:payment_ref/refunds.
func (h *PaymentHandler) ListRefunds(c *gin.Context) {
	merchant, ok := apiMerchant(c)
	if !ok {
		return
	}

	refunds, err := h.paymentSvc.ListRefunds(c.Request.Context(), merchant.ID, c.Param("payment_ref"))
	if err != nil {
		response.Error(c, err)
		return
	}

	out := make([]dto.RefundResponse, 0, len(refunds))
	for i := range refunds {
		out = append(out, dto.ToRefundResponse(&refunds[i]))
	}
	response.OK(c, out)
}
