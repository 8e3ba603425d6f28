package domain

import (
	"time"

	"github.com/google/uuid"
)

// RefundStatus represents the outcome of a refund.
type RefundStatus string

const (
	RefundStatusProcessed RefundStatus = "processed"
	RefundStatusFailed    RefundStatus = "failed"
)

// Refund is a reversal of a captured payment, in whole or in part.
// The sum of processed refunds never exceeds the payment amount.
type Refund struct {
	ID        uuid.UUID    `json:"id"`
	RefundRef string       `json:"refund_ref"`
	PaymentID uuid.UUID    `json:"payment_id"`
	Amount    int64        `json:"amount"`
	Reason    *string      `json:"reason,omitempty"`
	Notes     *string      `json:"notes,omitempty"`
	Status    RefundStatus `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
}
