package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of audited action.
type AuditAction string

const (
	AuditActionRegister       AuditAction = "REGISTER"
	AuditActionLogin          AuditAction = "LOGIN"
	AuditActionOrderCreate    AuditAction = "ORDER_CREATE"
	AuditActionPaymentCapture AuditAction = "PAYMENT_CAPTURE"
	AuditActionRefund         AuditAction = "REFUND"
	AuditActionCheckoutPay    AuditAction = "CHECKOUT_PAY"
	AuditActionKeyIssue       AuditAction = "KEY_ISSUE"
	AuditActionKeyRevoke      AuditAction = "KEY_REVOKE"
	AuditActionMerchantUpdate AuditAction = "MERCHANT_UPDATE"
)

// AuditLog records a single audited action in the system.
type AuditLog struct {
	ID           uuid.UUID   `json:"id"`
	MerchantID   *uuid.UUID  `json:"merchant_id,omitempty"`
	Action       AuditAction `json:"action"`
	ResourceType string      `json:"resource_type"`
	ResourceID   string      `json:"resource_id,omitempty"`
	Details      string      `json:"details,omitempty"` // JSON string
	IPAddress    string      `json:"ip_address"`
	CreatedAt    time.Time   `json:"created_at"`
}
