package handler

import (
	"payflow-gateway/internal/adapter/http/dto"
	"payflow-gateway/internal/adapter/http/middleware"
	"payflow-gateway/internal/core/domain"
	"payflow-gateway/internal/core/ports"
	"payflow-gateway/pkg/apperror"
	"payflow-gateway/pkg/response"

	"github.com/gin-gonic/gin"
)

const (
	// HeaderIdempotencyKey carries the client's idempotency key.
	HeaderIdempotencyKey = "X-Idempotency-Key"
	// HeaderIdempotencyReplayed marks a replayed response.
	HeaderIdempotencyReplayed = "X-Idempotency-Replayed"
)

// OrderHandler handles the merchant-facing order API.
type OrderHandler struct {
	orderSvc ports.OrderService
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(orderSvc ports.OrderService) *OrderHandler {
	return &OrderHandler{orderSvc: orderSvc}
}

// apiMerchant returns the merchant set by the key authentication middleware.
func apiMerchant(c *gin.Context) (*domain.Merchant, bool) {
	merchant, ok := middleware.MerchantFromContext(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidCredentials())
		return nil, false
	}
	return merchant, true
}

// idempotencyKey reads the idempotency header, nil when absent.
func idempotencyKey(c *gin.Context) *string {
	if key := c.GetHeader(HeaderIdempotencyKey); key != "" {
		return &key
	}
	return nil
}

// Create handles POST /v1/orders. Replays of a previously seen
// idempotency key return the stored order with a marker header.
func (h *OrderHandler) Create(c *gin.Context) {
	merchant, ok := apiMerchant(c)
	if !ok {
		return
	}

	var req dto.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	order, replayed, err := h.orderSvc.CreateOrder(c.Request.Context(), merchant.ID, ports.CreateOrderRequest{
		Amount:         req.Amount,
		Currency:       req.Currency,
		Receipt:        req.Receipt,
		Notes:          req.Notes,
		AutoCapture:    req.AutoCapture,
		IdempotencyKey: idempotencyKey(c),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	if replayed {
		c.Header(HeaderIdempotencyReplayed, "true")
		response.OK(c, dto.ToOrderResponse(order))
		return
	}
	response.Created(c, dto.ToOrderResponse(order))
}

// Get handles GET /v1/orders/:order_ref.
func (h *OrderHandler) Get(c *gin.Context) {
	merchant, ok := apiMerchant(c)
	if !ok {
		return
	}

	order, err := h.orderSvc.GetOrder(c.Request.Context(), merchant.ID, c.Param("order_ref"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.ToOrderResponse(order))
}

// List handles GET /v1/orders.
func (h *OrderHandler) List(c *gin.Context) {
	merchant, ok := apiMerchant(c)
	if !ok {
		return
	}

	orders, err := h.orderSvc.ListOrders(c.Request.Context(), merchant.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	out := make([]dto.OrderResponse, 0, len(orders))
	for i := range orders {
		out = append(out, dto.ToOrderResponse(&orders[i]))
	}
	response.OK(c, out)
}

// ListPayments handles GET /v1/orders/:order_ref/payments.
func (h *OrderHandler) ListPayments(c *gin.Context) {
	merchant, ok := apiMerchant(c)
	if !ok {
		return
	}

	orderRef := c.Param("order_ref")
	payments, err := h.orderSvc.ListOrderPayments(c.Request.Context(), merchant.ID, orderRef)
	if err != nil {
		response.Error(c, err)
		return
	}

	out := make([]dto.PaymentResponse, 0, len(payments))
	for i := range payments {
		out = append(out, dto.ToPaymentResponse(&payments[i], orderRef))
	}
	response.OK(c, out)
}
