package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"payflow-gateway/internal/core/domain"
	"payflow-gateway/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// PaymentRepo implements ports.PaymentRepository.
type PaymentRepo struct {
	pool Pool
}

// NewPaymentRepo creates a new PaymentRepo.
func NewPaymentRepo(pool Pool) *PaymentRepo {
	return &PaymentRepo{pool: pool}
}

const paymentColumns = `id, payment_ref, order_id, merchant_id, amount, currency, method, vpa, card_last4, card_network, card_name, email, contact, status, is_flagged, fraud_rules, error_code, error_reason, created_at, updated_at`

// Create inserts a new payment within a database transaction.
func (r *PaymentRepo) Create(ctx context.Context, tx pgx.Tx, p *domain.Payment) error {
	query := `INSERT INTO payments (id, payment_ref, order_id, merchant_id, amount, currency, method, vpa, card_last4, card_network, card_name, email, contact, status, is_flagged, fraud_rules, error_code, error_reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`

	_, err := tx.Exec(ctx, query,
		p.ID, p.PaymentRef, p.OrderID, p.MerchantID, p.Amount, p.Currency,
		p.Method, p.VPA, p.CardLast4, p.CardNetwork, p.CardName,
		p.Email, p.Contact, p.Status, p.IsFlagged, p.FraudRules,
		p.ErrorCode, p.ErrorReason, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

// GetByRef fetches a payment by its public reference.
func (r *PaymentRepo) GetByRef(ctx context.Context, paymentRef string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE payment_ref = $1`
	return scanPayment(r.pool.QueryRow(ctx, query, paymentRef))
}

// GetByRefForUpdate fetches a payment by reference with a row lock.
func (r *PaymentRepo) GetByRefForUpdate(ctx context.Context, tx pgx.Tx, paymentRef string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE payment_ref = $1 FOR UPDATE`
	return scanPayment(tx.QueryRow(ctx, query, paymentRef))
}

// ListByOrder returns the order's payment attempts, newest first.
func (r *PaymentRepo) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE order_id = $1 ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return collectPayments(rows)
}

// GetBlockingByOrder returns the order's non-failed payment, locking it
// for the duration of the transaction.
func (r *PaymentRepo) GetBlockingByOrder(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments
		WHERE order_id = $1 AND status != 'failed'
		LIMIT 1 FOR UPDATE`
	return scanPayment(tx.QueryRow(ctx, query, orderID))
}

// UpdateStatus updates a payment's status within a database transaction.
func (r *PaymentRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.PaymentStatus, errorCode, errorReason *string) error {
	query := `UPDATE payments SET status = $1, error_code = $2, error_reason = $3, updated_at = $4 WHERE id = $5`

	tag, err := tx.Exec(ctx, query, status, errorCode, errorReason, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update payment status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("payment not found: %s", id)
	}
	return nil
}

// RecentByMerchant returns the merchant's payments created at or after
// since, newest first.
func (r *PaymentRepo) RecentByMerchant(ctx context.Context, merchantID uuid.UUID, since time.Time) ([]domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments
		WHERE merchant_id = $1 AND created_at >= $2
		ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, merchantID, since)
	if err != nil {
		return nil, fmt.Errorf("recent payments: %w", err)
	}
	return collectPayments(rows)
}

// ListFlagged returns the most recently flagged payments.
func (r *PaymentRepo) ListFlagged(ctx context.Context, limit int) ([]domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments
		WHERE is_flagged ORDER BY created_at DESC LIMIT $1`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list flagged payments: %w", err)
	}
	return collectPayments(rows)
}

// GetStats retrieves gateway-wide payment counters.
func (r *PaymentRepo) GetStats(ctx context.Context) (*ports.PaymentStats, error) {
	query := `SELECT
		COUNT(*) AS total,
		COUNT(*) FILTER (WHERE status IN ('captured', 'refunded', 'partially_refunded')) AS captured,
		COUNT(*) FILTER (WHERE status = 'failed') AS failed,
		COUNT(*) FILTER (WHERE is_flagged) AS flagged,
		COALESCE(SUM(amount) FILTER (WHERE status IN ('captured', 'refunded', 'partially_refunded')), 0) AS gross_volume
		FROM payments`

	stats := &ports.PaymentStats{}
	err := r.pool.QueryRow(ctx, query).Scan(
		&stats.TotalPayments, &stats.Captured, &stats.Failed,
		&stats.Flagged, &stats.GrossVolume,
	)
	if err != nil {
		return nil, fmt.Errorf("get payment stats: %w", err)
	}
	return stats, nil
}

func scanPayment(row pgx.Row) (*domain.Payment, error) {
	p := &domain.Payment{}
	if err := scanPaymentFields(row, p); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan payment: %w", err)
	}
	return p, nil
}

func scanPaymentFields(row pgx.Row, p *domain.Payment) error {
	return row.Scan(
		&p.ID, &p.PaymentRef, &p.OrderID, &p.MerchantID, &p.Amount, &p.Currency,
		&p.Method, &p.VPA, &p.CardLast4, &p.CardNetwork, &p.CardName,
		&p.Email, &p.Contact, &p.Status, &p.IsFlagged, &p.FraudRules,
		&p.ErrorCode, &p.ErrorReason, &p.CreatedAt, &p.UpdatedAt,
	)
}

func collectPayments(rows pgx.Rows) ([]domain.Payment, error) {
	defer rows.Close()

	var payments []domain.Payment
	for rows.Next() {
		var p domain.Payment
		if err := scanPaymentFields(rows, &p); err != nil {
			return nil, fmt.Errorf("scan payment row: %w", err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payment rows: %w", err)
	}
	return payments, nil
}
