package dto

import (
	"time"

	"payflow-gateway/internal/core/domain"
	"payflow-gateway/internal/core/ports"
)

// RegisterRequest is the request body for account registration.
type RegisterRequest struct {
	Name     string `json:"name" binding:"max=100"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8,max=128"`
	Role     string `json:"role" binding:"required"`
}

// LoginRequest is the request body for login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse is the response body for successful login.
type LoginResponse struct {
	Token  string `json:"token"`
	Expiry int64  `json:"expiry"` // Unix timestamp
}

// ChangePasswordRequest is the request body for password changes.
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=8,max=128"`
}

// UserResponse is the public view of a user account.
type UserResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	CreatedAt string `json:"created_at"`
}

// CreateMerchantRequest is the request body for merchant onboarding.
type CreateMerchantRequest struct {
	BusinessName  string  `json:"business_name" binding:"required,min=1,max=100"`
	BusinessEmail string  `json:"business_email" binding:"required,email"`
	Website       *string `json:"website,omitempty" binding:"omitempty,safe_url"`
	WebhookURL    *string `json:"webhook_url,omitempty" binding:"omitempty,safe_url"`
}

// UpdateMerchantRequest is the request body for profile updates.
// Omitted fields are left unchanged.
type UpdateMerchantRequest struct {
	BusinessName *string `json:"business_name,omitempty" binding:"omitempty,min=1,max=100"`
	Website      *string `json:"website,omitempty" binding:"omitempty,safe_url"`
	WebhookURL   *string `json:"webhook_url,omitempty" binding:"omitempty,safe_url"`
}

// MerchantResponse is the merchant profile view. The webhook secret is
// only included at creation time.
type MerchantResponse struct {
	ID            string  `json:"id"`
	BusinessName  string  `json:"business_name"`
	BusinessEmail string  `json:"business_email"`
	Website       *string `json:"website,omitempty"`
	WebhookURL    *string `json:"webhook_url,omitempty"`
	WebhookSecret string  `json:"webhook_secret,omitempty"`
	CreatedAt     string  `json:"created_at"`
}

// IssueKeyRequest is the request body for API key issuance.
type IssueKeyRequest struct {
	Label string `json:"label" binding:"max=100"`
}

// IssuedKeyResponse returns the key pair. The secret appears exactly once.
type IssuedKeyResponse struct {
	KeyID     string `json:"key_id"`
	KeySecret string `json:"key_secret"`
	Label     string `json:"label"`
	CreatedAt string `json:"created_at"`
}

// ApiKeyResponse is the list view of a key. No secret material.
type ApiKeyResponse struct {
	KeyID      string  `json:"key_id"`
	Label      string  `json:"label"`
	Active     bool    `json:"active"`
	CreatedAt  string  `json:"created_at"`
	LastUsedAt *string `json:"last_used_at,omitempty"`
}

// CreateOrderRequest is the request body for order creation. The
// idempotency key travels in the X-Idempotency-Key header.
type CreateOrderRequest struct {
	Amount      int64   `json:"amount" binding:"required,gt=0"`
	Currency    string  `json:"currency" binding:"required,currency"`
	Receipt     *string `json:"receipt,omitempty" binding:"omitempty,max=100"`
	Notes       *string `json:"notes,omitempty"`
	AutoCapture *bool   `json:"auto_capture,omitempty"`
}

// OrderResponse is the order view returned to merchants.
type OrderResponse struct {
	OrderRef    string  `json:"order_ref"`
	Amount      int64   `json:"amount"`
	Currency    string  `json:"currency"`
	Receipt     *string `json:"receipt,omitempty"`
	Notes       *string `json:"notes,omitempty"`
	Status      string  `json:"status"`
	Attempts    int     `json:"attempts"`
	AutoCapture bool    `json:"auto_capture"`
	CreatedAt   string  `json:"created_at"`
}

// PaymentAttemptRequest is the request body from the hosted checkout.
type PaymentAttemptRequest struct {
	Method     string  `json:"method" binding:"required"`
	VPA        *string `json:"vpa,omitempty"`
	CardNumber *string `json:"card_number,omitempty"`
	CardExpiry *string `json:"card_expiry,omitempty"`
	CardCVV    *string `json:"card_cvv,omitempty"`
	CardName   *string `json:"card_name,omitempty"`
	Email      *string `json:"email,omitempty" binding:"omitempty,email"`
	Contact    *string `json:"contact,omitempty" binding:"omitempty,max=20"`
}

// PaymentResponse is the payment view. Card data is already masked.
type PaymentResponse struct {
	PaymentRef  string   `json:"payment_ref"`
	OrderRef    string   `json:"order_ref,omitempty"`
	Amount      int64    `json:"amount"`
	Currency    string   `json:"currency"`
	Method      string   `json:"method"`
	VPA         *string  `json:"vpa,omitempty"`
	CardLast4   *string  `json:"card_last4,omitempty"`
	CardNetwork *string  `json:"card_network,omitempty"`
	Status      string   `json:"status"`
	IsFlagged   bool     `json:"is_flagged"`
	FraudRules  []string `json:"fraud_rules,omitempty"`
	ErrorCode   *string  `json:"error_code,omitempty"`
	ErrorReason *string  `json:"error_reason,omitempty"`
	CreatedAt   string   `json:"created_at"`
}

// CreateRefundRequest is the request body for refund creation. The
// idempotency key travels in the X-Idempotency-Key header.
type CreateRefundRequest struct {
	Amount *int64  `json:"amount,omitempty" binding:"omitempty,gt=0"`
	Reason *string `json:"reason,omitempty" binding:"omitempty,max=255"`
	Notes  *string `json:"notes,omitempty"`
}

// RefundResponse is the refund view.
type RefundResponse struct {
	RefundRef string  `json:"refund_ref"`
	Amount    int64   `json:"amount"`
	Reason    *string `json:"reason,omitempty"`
	Notes     *string `json:"notes,omitempty"`
	Status    string  `json:"status"`
	CreatedAt string  `json:"created_at"`
}

// WebhookLogResponse is one delivery attempt in the merchant's log view.
type WebhookLogResponse struct {
	EventID      int64   `json:"event_id"`
	Event        string  `json:"event"`
	WebhookURL   string  `json:"webhook_url"`
	Attempt      int     `json:"attempt"`
	HTTPStatus   *int    `json:"http_status,omitempty"`
	Success      bool    `json:"success"`
	ResponseBody *string `json:"response_body,omitempty"`
	Error        *string `json:"error,omitempty"`
	CreatedAt    string  `json:"created_at"`
}

// StatsResponse is the admin stats view.
type StatsResponse struct {
	TotalPayments int64 `json:"total_payments"`
	Captured      int64 `json:"captured"`
	Failed        int64 `json:"failed"`
	Flagged       int64 `json:"flagged"`
	GrossVolume   int64 `json:"gross_volume"`
}

// --- Mappers ---

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// ToUserResponse converts a domain user.
func ToUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:        u.ID.String(),
		Name:      u.Name,
		Email:     u.Email,
		Role:      string(u.Role),
		CreatedAt: formatTime(u.CreatedAt),
	}
}

// ToMerchantResponse converts a domain merchant. includeSecret is true
// only on the creation response.
func ToMerchantResponse(m *domain.Merchant, includeSecret bool) MerchantResponse {
	resp := MerchantResponse{
		ID:            m.ID.String(),
		BusinessName:  m.BusinessName,
		BusinessEmail: m.BusinessEmail,
		Website:       m.Website,
		WebhookURL:    m.WebhookURL,
		CreatedAt:     formatTime(m.CreatedAt),
	}
	if includeSecret {
		resp.WebhookSecret = m.WebhookSecret
	}
	return resp
}

// ToIssuedKeyResponse converts freshly minted key material.
func ToIssuedKeyResponse(k *ports.IssuedKey) IssuedKeyResponse {
	return IssuedKeyResponse{
		KeyID:     k.KeyID,
		KeySecret: k.KeySecret,
		Label:     k.Key.Label,
		CreatedAt: formatTime(k.Key.CreatedAt),
	}
}

// ToApiKeyResponse converts a stored key row.
func ToApiKeyResponse(k *domain.ApiKey) ApiKeyResponse {
	resp := ApiKeyResponse{
		KeyID:     k.KeyID,
		Label:     k.Label,
		Active:    k.Active,
		CreatedAt: formatTime(k.CreatedAt),
	}
	if k.LastUsedAt != nil {
		s := formatTime(*k.LastUsedAt)
		resp.LastUsedAt = &s
	}
	return resp
}

// ToOrderResponse converts a domain order.
func ToOrderResponse(o *domain.Order) OrderResponse {
	return OrderResponse{
		OrderRef:    o.OrderRef,
		Amount:      o.Amount,
		Currency:    o.Currency,
		Receipt:     o.Receipt,
		Notes:       o.Notes,
		Status:      string(o.Status),
		Attempts:    o.Attempts,
		AutoCapture: o.AutoCapture,
		CreatedAt:   formatTime(o.CreatedAt),
	}
}

// ToPaymentResponse converts a domain payment. orderRef may be empty
// when the caller did not resolve the order.
func ToPaymentResponse(p *domain.Payment, orderRef string) PaymentResponse {
	return PaymentResponse{
		PaymentRef:  p.PaymentRef,
		OrderRef:    orderRef,
		Amount:      p.Amount,
		Currency:    p.Currency,
		Method:      string(p.Method),
		VPA:         p.VPA,
		CardLast4:   p.CardLast4,
		CardNetwork: p.CardNetwork,
		Status:      string(p.Status),
		IsFlagged:   p.IsFlagged,
		FraudRules:  p.FraudRules,
		ErrorCode:   p.ErrorCode,
		ErrorReason: p.ErrorReason,
		CreatedAt:   formatTime(p.CreatedAt),
	}
}

// ToRefundResponse converts a domain refund.
func ToRefundResponse(r *domain.Refund) RefundResponse {
	return RefundResponse{
		RefundRef: r.RefundRef,
		Amount:    r.Amount,
		Reason:    r.Reason,
		Notes:     r.Notes,
		Status:    string(r.Status),
		CreatedAt: formatTime(r.CreatedAt),
	}
}

// ToWebhookLogResponse converts a delivery log row.
func ToWebhookLogResponse(l *domain.WebhookDeliveryLog) WebhookLogResponse {
	return WebhookLogResponse{
		EventID:      l.EventID,
		Event:        l.Event,
		WebhookURL:   l.WebhookURL,
		Attempt:      l.Attempt,
		HTTPStatus:   l.HTTPStatus,
		Success:      l.Success,
		ResponseBody: l.ResponseBody,
		Error:        l.Error,
		CreatedAt:    formatTime(l.CreatedAt),
	}
}

// ToStatsResponse converts aggregated counters.
func ToStatsResponse(s *ports.PaymentStats) StatsResponse {
	return StatsResponse{
		TotalPayments: s.TotalPayments,
		Captured:      s.Captured,
		Failed:        s.Failed,
		Flagged:       s.Flagged,
		GrossVolume:   s.GrossVolume,
	}
}
