package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"payflow-gateway/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// OrderRepo implements ports.OrderRepository.
type OrderRepo struct {
	pool Pool
}

// NewOrderRepo creates a new OrderRepo.
func NewOrderRepo(pool Pool) *OrderRepo {
	return &OrderRepo{pool: pool}
}

const orderColumns = `id, order_ref, merchant_id, amount, currency, receipt, notes, status, attempts, auto_capture, idempotency_key, created_at, updated_at`

// Create inserts a new order within a database transaction.
func (r *OrderRepo) Create(ctx context.Context, tx pgx.Tx, o *domain.Order) error {
	query := `INSERT INTO orders (id, order_ref, merchant_id, amount, currency, receipt, notes, status, attempts, auto_capture, idempotency_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := tx.Exec(ctx, query,
		o.ID, o.OrderRef, o.MerchantID, o.Amount, o.Currency,
		o.Receipt, o.Notes, o.Status, o.Attempts, o.AutoCapture,
		o.IdempotencyKey, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// GetByRef fetches an order by its public reference.
func (r *OrderRepo) GetByRef(ctx context.Context, orderRef string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE order_ref = $1`
	return scanOrder(r.pool.QueryRow(ctx, query, orderRef))
}

// GetByRefForUpdate fetches an order by reference with a row lock.
func (r *OrderRepo) GetByRefForUpdate(ctx context.Context, tx pgx.Tx, orderRef string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE order_ref = $1 FOR UPDATE`
	return scanOrder(tx.QueryRow(ctx, query, orderRef))
}

// GetByIDForUpdate fetches an order by UUID with a row lock.
func (r *OrderRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 FOR UPDATE`
	return scanOrder(tx.QueryRow(ctx, query, id))
}

// GetByIdempotencyKey fetches the order previously created under the
// merchant's idempotency key.
func (r *OrderRepo) GetByIdempotencyKey(ctx context.Context, merchantID uuid.UUID, key string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE merchant_id = $1 AND idempotency_key = $2`
	return scanOrder(r.pool.QueryRow(ctx, query, merchantID, key))
}

// ListByMerchant returns the merchant's orders, newest first.
func (r *OrderRepo) ListByMerchant(ctx context.Context, merchantID uuid.UUID, limit int) ([]domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE merchant_id = $1 ORDER BY created_at DESC LIMIT $2`

	rows, err := r.pool.Query(ctx, query, merchantID, limit)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		var o domain.Order
		if err := scanOrderFields(rows, &o); err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}
	return orders, nil
}

// UpdateStatus updates an order's status within a database transaction.
func (r *OrderRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.OrderStatus) error {
	query := `UPDATE orders SET status = $1, updated_at = $2 WHERE id = $3`

	tag, err := tx.Exec(ctx, query, status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("order not found: %s", id)
	}
	return nil
}

// IncrementAttempts bumps the order's attempt counter.
func (r *OrderRepo) IncrementAttempts(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	query := `UPDATE orders SET attempts = attempts + 1, updated_at = $1 WHERE id = $2`

	tag, err := tx.Exec(ctx, query, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("increment order attempts: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("order not found: %s", id)
	}
	return nil
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	o := &domain.Order{}
	if err := scanOrderFields(row, o); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}
	return o, nil
}

func scanOrderFields(row pgx.Row, o *domain.Order) error {
	return row.Scan(
		&o.ID, &o.OrderRef, &o.MerchantID, &o.Amount, &o.Currency,
		&o.Receipt, &o.Notes, &o.Status, &o.Attempts, &o.AutoCapture,
		&o.IdempotencyKey, &o.CreatedAt, &o.UpdatedAt,
	)
}
