package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role determines which route groups a user may access.
type Role string

const (
	RoleUser     Role = "user"
	RoleMerchant Role = "merchant"
	RoleAdmin    Role = "admin"
)

// ValidRole reports whether r is one of the accepted roles.
func ValidRole(r Role) bool {
	return r == RoleUser || r == RoleMerchant || r == RoleAdmin
}

// User represents a dashboard account.
type User struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Never expose
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}
