package postgres

import (
	"context"
	"testing"
	"time"

	"payflow-gateway/internal/core/domain"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOrder(merchantID uuid.UUID) *domain.Order {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.Order{
		ID:          uuid.New(),
		OrderRef:    "pf_order_0123456789abcdef0123",
		MerchantID:  merchantID,
		Amount:      25_000,
		Currency:    "INR",
		Receipt:     strPtr("rcpt-42"),
		Status:      domain.OrderStatusCreated,
		AutoCapture: true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func orderTestColumns() []string {
	return []string{"id", "order_ref", "merchant_id", "amount", "currency", "receipt", "notes",
		"status", "attempts", "auto_capture", "idempotency_key", "created_at", "updated_at"}
}

func orderRow(o *domain.Order) *pgxmock.Rows {
	return pgxmock.NewRows(orderTestColumns()).AddRow(
		o.ID, o.OrderRef, o.MerchantID, o.Amount, o.Currency,
		o.Receipt, o.Notes, o.Status, o.Attempts, o.AutoCapture,
		o.IdempotencyKey, o.CreatedAt, o.UpdatedAt,
	)
}

func TestOrderRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewOrderRepo(mock)
	o := newTestOrder(uuid.New())

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO orders").
		WithArgs(
			o.ID, o.OrderRef, o.MerchantID, o.Amount, o.Currency,
			o.Receipt, o.Notes, o.Status, o.Attempts, o.AutoCapture,
			o.IdempotencyKey, o.CreatedAt, o.UpdatedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.Create(context.Background(), tx, o)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepo_GetByRef(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewOrderRepo(mock)
	o := newTestOrder(uuid.New())

	mock.ExpectQuery("SELECT .+ FROM orders WHERE order_ref").
		WithArgs(o.OrderRef).
		WillReturnRows(orderRow(o))

	result, err := repo.GetByRef(context.Background(), o.OrderRef)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, o.OrderRef, result.OrderRef)
	assert.Equal(t, o.Amount, result.Amount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepo_GetByRef_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewOrderRepo(mock)

	mock.ExpectQuery("SELECT .+ FROM orders WHERE order_ref").
		WithArgs("pf_order_missing").
		WillReturnRows(pgxmock.NewRows(orderTestColumns()))

	result, err := repo.GetByRef(context.Background(), "pf_order_missing")
	assert.NoError(t, err)
	assert.Nil(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepo_GetByRefForUpdate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewOrderRepo(mock)
	o := newTestOrder(uuid.New())

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM orders WHERE order_ref = .+ FOR UPDATE").
		WithArgs(o.OrderRef).
		WillReturnRows(orderRow(o))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	result, err := repo.GetByRefForUpdate(context.Background(), tx, o.OrderRef)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, o.ID, result.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepo_GetByIdempotencyKey(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewOrderRepo(mock)
	o := newTestOrder(uuid.New())
	key := "create-1"
	o.IdempotencyKey = &key

	mock.ExpectQuery("SELECT .+ FROM orders WHERE merchant_id = .+ AND idempotency_key").
		WithArgs(o.MerchantID, key).
		WillReturnRows(orderRow(o))

	result, err := repo.GetByIdempotencyKey(context.Background(), o.MerchantID, key)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, &key, result.IdempotencyKey)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepo_ListByMerchant(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewOrderRepo(mock)
	merchantID := uuid.New()
	o1 := newTestOrder(merchantID)
	o2 := newTestOrder(merchantID)

	rows := orderRow(o1).AddRow(
		o2.ID, o2.OrderRef, o2.MerchantID, o2.Amount, o2.Currency,
		o2.Receipt, o2.Notes, o2.Status, o2.Attempts, o2.AutoCapture,
		o2.IdempotencyKey, o2.CreatedAt, o2.UpdatedAt,
	)

	mock.ExpectQuery("SELECT .+ FROM orders WHERE merchant_id .+ ORDER BY created_at DESC").
		WithArgs(merchantID, 20).
		WillReturnRows(rows)

	orders, err := repo.ListByMerchant(context.Background(), merchantID, 20)
	require.NoError(t, err)
	assert.Len(t, orders, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepo_UpdateStatus(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewOrderRepo(mock)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE orders SET status").
		WithArgs(domain.OrderStatusPaid, pgxmock.AnyArg(), id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.UpdateStatus(context.Background(), tx, id, domain.OrderStatusPaid)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepo_IncrementAttempts(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewOrderRepo(mock)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE orders SET attempts = attempts").
		WithArgs(pgxmock.AnyArg(), id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.IncrementAttempts(context.Background(), tx, id)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
