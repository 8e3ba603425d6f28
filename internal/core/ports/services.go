package ports

import (
	"context"
	"time"

	"payflow-gateway/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ReferenceService generates opaque public references (pf_order_..., pf_pay_...).
type ReferenceService interface {
	OrderRef() (string, error)
	PaymentRef() (string, error)
	RefundRef() (string, error)
	KeyID() (string, error)
	KeySecret() (string, error)
	WebhookSecret() (string, error)
}

// SignatureService handles HMAC-SHA256 signing and verification of webhook bodies.
type SignatureService interface {
	Sign(secret string, body []byte) string
	Verify(secret string, body []byte, signature string) bool
}

// HashService handles password and key-secret hashing.
type HashService interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext string, hash string) (bool, error)
}

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(user *domain.User) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	Email string
	Role  domain.Role
}

// CachedKey is the value stored in the key cache: the credential row
// plus its merchant, so authentication can skip the database on hot keys.
// The secret is still verified against the cached hash on every request.
type CachedKey struct {
	Key      domain.ApiKey   `json:"key"`
	Merchant domain.Merchant `json:"merchant"`
}

// KeyCache is the Redis-layer key_id lookup (fast path, TTL-bounded).
type KeyCache interface {
	Get(ctx context.Context, keyID string) (*CachedKey, error) // nil on miss
	Set(ctx context.Context, keyID string, value *CachedKey, ttl time.Duration) error
	Delete(ctx context.Context, keyID string) error
}

// IdempotencyCache is the Redis-layer idempotency check (fast path).
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // Returns cached response JSON or nil
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// FraudAttempt is the slice of a payment attempt the fraud engine inspects.
type FraudAttempt struct {
	MerchantID uuid.UUID
	Amount     int64
	Method     domain.PaymentMethod
	VPA        string
}

// FraudEngine evaluates a payment attempt against recent history.
type FraudEngine interface {
	Evaluate(attempt FraudAttempt, history []domain.Payment) domain.FraudResult
}

// AuthorizeRequest is the input to the pluggable authorization step.
type AuthorizeRequest struct {
	PaymentRef string
	Amount     int64
	Method     domain.PaymentMethod
	Fraud      domain.FraudResult
}

// AuthorizeResult is the authorizer's verdict.
type AuthorizeResult struct {
	Approved    bool
	ErrorCode   string
	ErrorReason string
}

// Authorizer decides whether a payment attempt is authorized.
// Implementations must not be called while a database transaction is open.
type Authorizer interface {
	Authorize(ctx context.Context, req AuthorizeRequest) AuthorizeResult
}

// --- Service Ports (Business Logic) ---

// AuthService defines user registration and session logic.
type AuthService interface {
	Register(ctx context.Context, req RegisterUserRequest) (*domain.User, error)
	Login(ctx context.Context, email, password string) (string, time.Time, error) // token, expiry, error
	ChangePassword(ctx context.Context, email, oldPassword, newPassword string) error
	GetUser(ctx context.Context, email string) (*domain.User, error)
}

// RegisterUserRequest holds input for user registration.
type RegisterUserRequest struct {
	Name     string
	Email    string
	Password string
	Role     domain.Role
}

// MerchantService defines merchant profile logic.
type MerchantService interface {
	CreateMerchant(ctx context.Context, userID uuid.UUID, req CreateMerchantRequest) (*domain.Merchant, error)
	GetByUser(ctx context.Context, userID uuid.UUID) (*domain.Merchant, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, req UpdateMerchantRequest) (*domain.Merchant, error)
	CheckoutQRCode(ctx context.Context, userID uuid.UUID) ([]byte, error) // PNG bytes
}

// CreateMerchantRequest holds input for merchant profile creation.
type CreateMerchantRequest struct {
	BusinessName  string
	BusinessEmail string
	Website       *string
	WebhookURL    *string
}

// UpdateMerchantRequest holds the mutable merchant profile fields.
// Nil fields are left unchanged.
type UpdateMerchantRequest struct {
	BusinessName *string
	Website      *string
	WebhookURL   *string
}

// IssuedKey is the one-time key material returned at issuance.
type IssuedKey struct {
	KeyID     string
	KeySecret string // Plaintext, shown only at issuance
	Key       *domain.ApiKey
}

// KeyStoreService issues, resolves and revokes merchant API credentials.
type KeyStoreService interface {
	IssueKey(ctx context.Context, merchantID uuid.UUID, label string) (*IssuedKey, error)
	// ResolveKey authenticates key_id:key_secret and returns the owning
	// merchant. All failure modes collapse into one credentials error.
	ResolveKey(ctx context.Context, keyID, keySecret string) (*domain.Merchant, error)
	RevokeKey(ctx context.Context, merchantID uuid.UUID, keyID string) error
	ListKeys(ctx context.Context, merchantID uuid.UUID) ([]domain.ApiKey, error)
}

// CreateOrderRequest holds validated input for order creation.
type CreateOrderRequest struct {
	Amount         int64
	Currency       string
	Receipt        *string
	Notes          *string
	AutoCapture    *bool // nil = default true
	IdempotencyKey *string
}

// OrderService defines the merchant-facing order operations.
type OrderService interface {
	// CreateOrder persists a new order, or replays the stored one when the
	// idempotency key was seen before. The bool reports a replay.
	CreateOrder(ctx context.Context, merchantID uuid.UUID, req CreateOrderRequest) (*domain.Order, bool, error)
	GetOrder(ctx context.Context, merchantID uuid.UUID, orderRef string) (*domain.Order, error)
	ListOrders(ctx context.Context, merchantID uuid.UUID) ([]domain.Order, error)
	ListOrderPayments(ctx context.Context, merchantID uuid.UUID, orderRef string) ([]domain.Payment, error)
}

// PaymentAttemptRequest holds input from the hosted checkout.
type PaymentAttemptRequest struct {
	Method     domain.PaymentMethod
	VPA        *string
	CardNumber *string
	CardExpiry *string
	CardCVV    *string
	CardName   *string
	Email      *string
	Contact    *string
}

// CheckoutInfo is the public display payload for the hosted checkout page.
type CheckoutInfo struct {
	BusinessName string             `json:"business_name"`
	Amount       int64              `json:"amount"`
	Currency     string             `json:"currency"`
	OrderStatus  domain.OrderStatus `json:"order_status"`
}

// CheckoutService defines the public hosted-checkout operations.
type CheckoutService interface {
	MerchantInfo(ctx context.Context, orderRef string) (*CheckoutInfo, error)
	SubmitPayment(ctx context.Context, orderRef string, req PaymentAttemptRequest) (*domain.Payment, error)
}

// RefundRequest holds validated input for refund creation.
type RefundRequest struct {
	Amount         *int64 // nil = full remaining amount
	Reason         *string
	Notes          *string
	IdempotencyKey *string
}

// PaymentService defines the merchant-facing payment operations.
type PaymentService interface {
	GetPayment(ctx context.Context, merchantID uuid.UUID, paymentRef string) (*domain.Payment, error)
	Capture(ctx context.Context, merchantID uuid.UUID, paymentRef string) (*domain.Payment, error)
	// Refund creates a refund, or replays the stored one when the client
	// supplied an idempotency key seen before. The bool reports a replay.
	Refund(ctx context.Context, merchantID uuid.UUID, paymentRef string, req RefundRequest) (*domain.Refund, bool, error)
	ListRefunds(ctx context.Context, merchantID uuid.UUID, paymentRef string) ([]domain.Refund, error)
}

// WebhookService appends outbox rows and exposes delivery history.
type WebhookService interface {
	// Enqueue appends an outbox row inside the caller's transaction.
	Enqueue(ctx context.Context, tx pgx.Tx, merchantID uuid.UUID, event string, payload any) error
	Logs(ctx context.Context, merchantID uuid.UUID, limit int) ([]domain.WebhookDeliveryLog, error)
}

// ReportingService defines the admin read-only analytics.
type ReportingService interface {
	Stats(ctx context.Context) (*PaymentStats, error)
	Flagged(ctx context.Context) ([]domain.Payment, error)
}

// AuditService records audit trail entries for write operations.
// Implementations must not block the request path.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}
