package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// OrderStatus represents the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusCreated   OrderStatus = "created"
	OrderStatusAttempted OrderStatus = "attempted"
	OrderStatusPaid      OrderStatus = "paid"
)

// Order is a merchant's declared intent to collect a specified amount.
// Amounts are integers in minor currency units (paise for INR).
type Order struct {
	ID             uuid.UUID   `json:"id"`
	OrderRef       string      `json:"order_ref"`
	MerchantID     uuid.UUID   `json:"merchant_id"`
	Amount         int64       `json:"amount"`
	Currency       string      `json:"currency"`
	Receipt        *string     `json:"receipt,omitempty"`
	Notes          *string     `json:"notes,omitempty"`
	Status         OrderStatus `json:"status"`
	Attempts       int         `json:"attempts"`
	AutoCapture    bool        `json:"auto_capture"`
	IdempotencyKey *string     `json:"-"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// AcceptsPayment returns true if a new payment attempt is allowed.
func (o *Order) AcceptsPayment() bool {
	return o.Status == OrderStatusCreated || o.Status == OrderStatusAttempted
}

// BuildOrderIdempotencyKey builds the cache key used to store/replay an
// order created under the given merchant idempotency key.
func BuildOrderIdempotencyKey(merchantID uuid.UUID, key string) string {
	return fmt.Sprintf("%s:%s", merchantID, key)
}

// BuildRefundIdempotencyKey builds the cache key used to store/replay a
// refund created under the given payment idempotency key.
func BuildRefundIdempotencyKey(paymentID uuid.UUID, key string) string {
	return fmt.Sprintf("%s:refund:%s", paymentID, key)
}
