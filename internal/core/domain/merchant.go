package domain

import (
	"time"

	"github.com/google/uuid"
)

// Merchant represents a registered merchant profile.
// A user of role merchant owns at most one merchant row.
type Merchant struct {
	ID            uuid.UUID `json:"id"`
	UserID        uuid.UUID `json:"user_id"`
	BusinessName  string    `json:"business_name"`
	BusinessEmail string    `json:"business_email"`
	Website       *string   `json:"website,omitempty"`
	WebhookURL    *string   `json:"webhook_url,omitempty"`
	WebhookSecret string    `json:"-"` // Never expose
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// HasWebhook returns true if the merchant configured a delivery endpoint.
func (m *Merchant) HasWebhook() bool {
	return m.WebhookURL != nil && *m.WebhookURL != ""
}
