package ports

import (
	"context"
	"time"

	"payflow-gateway/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// UserRepository defines persistence operations for dashboard users.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
}

// MerchantRepository defines persistence operations for merchants.
type MerchantRepository interface {
	Create(ctx context.Context, merchant *domain.Merchant) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Merchant, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Merchant, error)
	Update(ctx context.Context, merchant *domain.Merchant) error
}

// ApiKeyRepository defines persistence operations for merchant API keys.
type ApiKeyRepository interface {
	Create(ctx context.Context, key *domain.ApiKey) error
	GetByKeyID(ctx context.Context, keyID string) (*domain.ApiKey, error)
	ListByMerchant(ctx context.Context, merchantID uuid.UUID) ([]domain.ApiKey, error)
	Revoke(ctx context.Context, merchantID uuid.UUID, keyID string) (bool, error)
	TouchLastUsed(ctx context.Context, keyID string, at time.Time) error
}

// OrderRepository defines persistence operations for orders.
// Methods accepting pgx.Tx are used inside transaction blocks for pessimistic locking.
type OrderRepository interface {
	Create(ctx context.Context, tx pgx.Tx, order *domain.Order) error
	GetByRef(ctx context.Context, orderRef string) (*domain.Order, error)
	GetByRefForUpdate(ctx context.Context, tx pgx.Tx, orderRef string) (*domain.Order, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Order, error)
	GetByIdempotencyKey(ctx context.Context, merchantID uuid.UUID, key string) (*domain.Order, error)
	ListByMerchant(ctx context.Context, merchantID uuid.UUID, limit int) ([]domain.Order, error)
	UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.OrderStatus) error
	IncrementAttempts(ctx context.Context, tx pgx.Tx, id uuid.UUID) error
}

// PaymentRepository defines persistence operations for payments.
type PaymentRepository interface {
	Create(ctx context.Context, tx pgx.Tx, payment *domain.Payment) error
	GetByRef(ctx context.Context, paymentRef string) (*domain.Payment, error)
	GetByRefForUpdate(ctx context.Context, tx pgx.Tx, paymentRef string) (*domain.Payment, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]domain.Payment, error)
	// GetBlockingByOrder returns the order's non-failed payment, if any,
	// locking it for the duration of the transaction.
	GetBlockingByOrder(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) (*domain.Payment, error)
	UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.PaymentStatus, errorCode, errorReason *string) error
	// RecentByMerchant returns the merchant's payments created at or after since,
	// newest first. Used as fraud history.
	RecentByMerchant(ctx context.Context, merchantID uuid.UUID, since time.Time) ([]domain.Payment, error)
	ListFlagged(ctx context.Context, limit int) ([]domain.Payment, error)
	GetStats(ctx context.Context) (*PaymentStats, error)
}

// PaymentStats holds aggregated gateway-wide counters for the admin views.
type PaymentStats struct {
	TotalPayments int64
	Captured      int64
	Failed        int64
	Flagged       int64
	GrossVolume   int64 // Sum of captured payment amounts, minor units
}

// RefundRepository defines persistence operations for refunds.
type RefundRepository interface {
	Create(ctx context.Context, tx pgx.Tx, refund *domain.Refund) error
	ListByPayment(ctx context.Context, paymentID uuid.UUID) ([]domain.Refund, error)
	// SumProcessed totals the payment's processed refunds inside the
	// caller's transaction so the cap check cannot race.
	SumProcessed(ctx context.Context, tx pgx.Tx, paymentID uuid.UUID) (int64, error)
}

// WebhookRepository defines persistence for the outbox and delivery logs.
type WebhookRepository interface {
	Enqueue(ctx context.Context, tx pgx.Tx, event *domain.WebhookEvent) error
	// ClaimPending leases up to limit due pending rows, skipping rows
	// already claimed by other workers.
	ClaimPending(ctx context.Context, limit int) ([]domain.WebhookEvent, error)
	MarkDelivered(ctx context.Context, id int64, responseCode int, responseBody string) error
	MarkRetry(ctx context.Context, id int64, attempts int, nextAttemptAt time.Time, responseCode *int, responseBody string) error
	MarkFailed(ctx context.Context, id int64, responseCode *int, responseBody string) error
	CreateDeliveryLog(ctx context.Context, log *domain.WebhookDeliveryLog) error
	ListLogsByMerchant(ctx context.Context, merchantID uuid.UUID, limit int) ([]domain.WebhookDeliveryLog, error)
}

// AuditRepository persists audit log entries.
type AuditRepository interface {
	Create(ctx context.Context, entry *domain.AuditLog) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
