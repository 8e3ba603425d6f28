package domain

import (
	"time"

	"github.com/google/uuid"
)

// ApiKey is a merchant API credential. The plaintext secret is returned
// exactly once at issuance; only its hash is persisted.
type ApiKey struct {
	ID            uuid.UUID  `json:"id"`
	MerchantID    uuid.UUID  `json:"merchant_id"`
	KeyID         string     `json:"key_id"`
	KeySecretHash string     `json:"-"` // Never expose
	Label         string     `json:"label"`
	Active        bool       `json:"active"`
	CreatedAt     time.Time  `json:"created_at"`
	LastUsedAt    *time.Time `json:"last_used_at,omitempty"`
}
