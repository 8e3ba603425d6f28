package domain

import (
	"time"

	"github.com/google/uuid"
)

// Webhook event names emitted on state transitions.
const (
	EventPaymentCaptured = "payment.captured"
	EventPaymentFailed   = "payment.failed"
	EventOrderPaid       = "order.paid"
	EventRefundProcessed = "refund.processed"
)

// WebhookEventStatus represents the delivery state of an outbox row.
type WebhookEventStatus string

const (
	WebhookEventStatusPending   WebhookEventStatus = "pending"
	WebhookEventStatusDelivered WebhookEventStatus = "delivered"
	WebhookEventStatusFailed    WebhookEventStatus = "failed"
)

// WebhookEvent is a durable outbox row. It is appended in the same
// transaction that advances order/payment/refund state and drained by
// the dispatcher workers. Delivery is at-least-once.
type WebhookEvent struct {
	ID               int64              `json:"id"`
	MerchantID       uuid.UUID          `json:"merchant_id"`
	Event            string             `json:"event"`
	Payload          []byte             `json:"payload"` // JSON body POSTed to the merchant
	Status           WebhookEventStatus `json:"status"`
	Attempts         int                `json:"attempts"`
	NextAttemptAt    time.Time          `json:"next_attempt_at"`
	LastResponseCode *int               `json:"last_response_code,omitempty"`
	LastResponseBody *string            `json:"last_response_body,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

// Terminal returns true once the row will no longer be retried.
func (e *WebhookEvent) Terminal() bool {
	return e.Status == WebhookEventStatusDelivered || e.Status == WebhookEventStatusFailed
}

// WebhookDeliveryLog records one delivery attempt for an outbox row.
type WebhookDeliveryLog struct {
	ID           uuid.UUID `json:"id"`
	EventID      int64     `json:"event_id"`
	MerchantID   uuid.UUID `json:"merchant_id"`
	WebhookURL   string    `json:"webhook_url"`
	Event        string    `json:"event"`
	Attempt      int       `json:"attempt"`
	HTTPStatus   *int      `json:"http_status,omitempty"`
	Success      bool      `json:"success"`
	ResponseBody *string   `json:"response_body,omitempty"` // Truncated
	Error        *string   `json:"error,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
