package domain

import (
	"time"

	"github.com/google/uuid"
)

// PaymentMethod is the instrument used to satisfy an order.
type PaymentMethod string

const (
	PaymentMethodUPI        PaymentMethod = "upi"
	PaymentMethodCard       PaymentMethod = "card"
	PaymentMethodNetbanking PaymentMethod = "netbanking"
	PaymentMethodWallet     PaymentMethod = "wallet"
)

// ValidPaymentMethod reports whether m is an accepted method.
func ValidPaymentMethod(m PaymentMethod) bool {
	switch m {
	case PaymentMethodUPI, PaymentMethodCard, PaymentMethodNetbanking, PaymentMethodWallet:
		return true
	}
	return false
}

// PaymentStatus represents the lifecycle state of a payment.
type PaymentStatus string

const (
	PaymentStatusCreated           PaymentStatus = "created"
	PaymentStatusAuthorized        PaymentStatus = "authorized"
	PaymentStatusCaptured          PaymentStatus = "captured"
	PaymentStatusFailed            PaymentStatus = "failed"
	PaymentStatusRefunded          PaymentStatus = "refunded"
	PaymentStatusPartiallyRefunded PaymentStatus = "partially_refunded"
)

// Payment is a customer's attempt to satisfy an order via one method.
// Sensitive instrument fields are masked before persistence: only the
// card's last four digits and detected network are stored.
type Payment struct {
	ID          uuid.UUID     `json:"id"`
	PaymentRef  string        `json:"payment_ref"`
	OrderID     uuid.UUID     `json:"order_id"`
	MerchantID  uuid.UUID     `json:"merchant_id"`
	Amount      int64         `json:"amount"`
	Currency    string        `json:"currency"`
	Method      PaymentMethod `json:"method"`
	VPA         *string       `json:"vpa,omitempty"`
	CardLast4   *string       `json:"card_last4,omitempty"`
	CardNetwork *string       `json:"card_network,omitempty"`
	CardName    *string       `json:"card_name,omitempty"`
	Email       *string       `json:"email,omitempty"`
	Contact     *string       `json:"contact,omitempty"`
	Status      PaymentStatus `json:"status"`
	IsFlagged   bool          `json:"is_flagged"`
	FraudRules  []string      `json:"fraud_rules,omitempty"`
	ErrorCode   *string       `json:"error_code,omitempty"`
	ErrorReason *string       `json:"error_reason,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// Succeeded returns true if the payment reached a post-capture state.
func (p *Payment) Succeeded() bool {
	return p.Status == PaymentStatusCaptured ||
		p.Status == PaymentStatusRefunded ||
		p.Status == PaymentStatusPartiallyRefunded
}

// Blocking returns true if this payment prevents further attempts on
// its order. Every non-failed payment blocks.
func (p *Payment) Blocking() bool {
	return p.Status != PaymentStatusFailed
}

// Refundable returns true if a further refund may be created.
func (p *Payment) Refundable() bool {
	return p.Status == PaymentStatusCaptured || p.Status == PaymentStatusPartiallyRefunded
}

// DetectCardNetwork maps the leading digit of a card number to its network.
// Unknown prefixes return an empty string.
func DetectCardNetwork(cardNumber string) string {
	if cardNumber == "" {
		return ""
	}
	switch cardNumber[0] {
	case '4':
		return "Visa"
	case '5':
		return "Mastercard"
	case '6':
		return "RuPay"
	case '3':
		return "Amex"
	}
	return ""
}

// MaskCard returns the last four digits of a card number.
func MaskCard(cardNumber string) string {
	if len(cardNumber) <= 4 {
		return cardNumber
	}
	return cardNumber[len(cardNumber)-4:]
}
