package handler

import (
	"payflow-gateway/internal/adapter/http/dto"
	"payflow-gateway/internal/core/domain"
	"payflow-gateway/internal/core/ports"
	"payflow-gateway/pkg/apperror"
	"payflow-gateway/pkg/response"

	"github.com/gin-gonic/gin"
)

// CheckoutHandler handles the public hosted-checkout endpoints. These are
// unauthenticated: the order reference is the capability.
type CheckoutHandler struct {
	checkoutSvc ports.CheckoutService
}

// NewCheckoutHandler creates a new CheckoutHandler.
func NewCheckoutHandler(checkoutSvc ports.CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{checkoutSvc: checkoutSvc}
}

// Info handles GET /pay/:order_ref/merchant.
func (h *CheckoutHandler) Info(c *gin.Context) {
	info, err := h.checkoutSvc.MerchantInfo(c.Request.Context(), c.Param("order_ref"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, info)
}

// Pay handles POST /pay/:order_ref. A declined payment is still
// a 201: the attempt was recorded, its status says what happened.
func (h *CheckoutHandler) Pay(c *gin.Context) {
	var req dto.PaymentAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	orderRef := c.Param("order_ref")
	payment, err := h.checkoutSvc.SubmitPayment(c.Request.Context(), orderRef, ports.PaymentAttemptRequest{
		Method:     domain.PaymentMethod(req.Method),
		VPA:        req.VPA,
		CardNumber: req.CardNumber,
		CardExpiry: req.CardExpiry,
		CardCVV:    req.CardCVV,
		CardName:   req.CardName,
		Email:      req.Email,
		Contact:    req.Contact,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.ToPaymentResponse(payment, orderRef))
}
