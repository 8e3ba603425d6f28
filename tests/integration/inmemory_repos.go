package integration

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"payflow-gateway/internal/core/domain"
	"payflow-gateway/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// --- In-Memory User Repo ---

type inMemoryUserRepo struct {
	mu    sync.RWMutex
	users map[uuid.UUID]*domain.User
}

func newInMemoryUserRepo() *inMemoryUserRepo {
	return &inMemoryUserRepo{users: make(map[uuid.UUID]*domain.User)}
}

func (r *inMemoryUserRepo) Create(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Email == user.Email {
			return fmt.Errorf("email already exists")
		}
	}
	r.users[user.ID] = user
	return nil
}

func (r *inMemoryUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	return u, nil
}

func (r *inMemoryUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (r *inMemoryUserRepo) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return fmt.Errorf("user not found")
	}
	u.PasswordHash = passwordHash
	return nil
}

// --- In-Memory Merchant Repo ---

type inMemoryMerchantRepo struct {
	mu        sync.RWMutex
	merchants map[uuid.UUID]*domain.Merchant
}

func newInMemoryMerchantRepo() *inMemoryMerchantRepo {
	return &inMemoryMerchantRepo{merchants: make(map[uuid.UUID]*domain.Merchant)}
}

func (r *inMemoryMerchantRepo) Create(ctx context.Context, m *domain.Merchant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.merchants[m.ID] = m
	return nil
}

func (r *inMemoryMerchantRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Merchant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.merchants[id]
	if !ok {
		return nil, nil
	}
	return m, nil
}

func (r *inMemoryMerchantRepo) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Merchant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range r.merchants {
		if m.UserID == userID {
			return m, nil
		}
	}
	return nil, nil
}

func (r *inMemoryMerchantRepo) Update(ctx context.Context, m *domain.Merchant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.merchants[m.ID]; !ok {
		return fmt.Errorf("merchant not found")
	}
	r.merchants[m.ID] = m
	return nil
}

// --- In-Memory API Key Repo ---

type inMemoryKeyRepo struct {
	mu   sync.RWMutex
	keys map[string]*domain.ApiKey // by key_id
}

func newInMemoryKeyRepo() *inMemoryKeyRepo {
	return &inMemoryKeyRepo{keys: make(map[string]*domain.ApiKey)}
}

func (r *inMemoryKeyRepo) Create(ctx context.Context, key *domain.ApiKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys[key.KeyID] = key
	return nil
}

func (r *inMemoryKeyRepo) GetByKeyID(ctx context.Context, keyID string) (*domain.ApiKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	k, ok := r.keys[keyID]
	if !ok {
		return nil, nil
	}
	return k, nil
}

func (r *inMemoryKeyRepo) ListByMerchant(ctx context.Context, merchantID uuid.UUID) ([]domain.ApiKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.ApiKey
	for _, k := range r.keys {
		if k.MerchantID == merchantID {
			result = append(result, *k)
		}
	}
	return result, nil
}

func (r *inMemoryKeyRepo) Revoke(ctx context.Context, merchantID uuid.UUID, keyID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k, ok := r.keys[keyID]
	if !ok || k.MerchantID != merchantID || !k.Active {
		return false, nil
	}
	k.Active = false
	return true, nil
}

func (r *inMemoryKeyRepo) TouchLastUsed(ctx context.Context, keyID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if k, ok := r.keys[keyID]; ok {
		k.LastUsedAt = &at
	}
	return nil
}

// --- In-Memory Order Repo ---

type inMemoryOrderRepo struct {
	mu     sync.RWMutex
	orders map[uuid.UUID]*domain.Order
}

func newInMemoryOrderRepo() *inMemoryOrderRepo {
	return &inMemoryOrderRepo{orders: make(map[uuid.UUID]*domain.Order)}
}

func (r *inMemoryOrderRepo) Create(ctx context.Context, tx pgx.Tx, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[order.ID] = order
	return nil
}

func (r *inMemoryOrderRepo) GetByRef(ctx context.Context, orderRef string) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, o := range r.orders {
		if o.OrderRef == orderRef {
			return o, nil
		}
	}
	return nil, nil
}

func (r *inMemoryOrderRepo) GetByRefForUpdate(ctx context.Context, tx pgx.Tx, orderRef string) (*domain.Order, error) {
	return r.GetByRef(ctx, orderRef)
}

func (r *inMemoryOrderRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, nil
	}
	return o, nil
}

func (r *inMemoryOrderRepo) GetByIdempotencyKey(ctx context.Context, merchantID uuid.UUID, key string) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, o := range r.orders {
		if o.MerchantID == merchantID && o.IdempotencyKey != nil && *o.IdempotencyKey == key {
			return o, nil
		}
	}
	return nil, nil
}

func (r *inMemoryOrderRepo) ListByMerchant(ctx context.Context, merchantID uuid.UUID, limit int) ([]domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.Order
	for _, o := range r.orders {
		if o.MerchantID == merchantID {
			result = append(result, *o)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *inMemoryOrderRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.OrderStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return fmt.Errorf("order not found")
	}
	o.Status = status
	o.UpdatedAt = time.Now()
	return nil
}

func (r *inMemoryOrderRepo) IncrementAttempts(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return fmt.Errorf("order not found")
	}
	o.Attempts++
	return nil
}

// --- In-Memory Payment Repo ---

type inMemoryPaymentRepo struct {
	mu       sync.RWMutex
	payments map[uuid.UUID]*domain.Payment
}

func newInMemoryPaymentRepo() *inMemoryPaymentRepo {
	return &inMemoryPaymentRepo{payments: make(map[uuid.UUID]*domain.Payment)}
}

func (r *inMemoryPaymentRepo) Create(ctx context.Context, tx pgx.Tx, payment *domain.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payments[payment.ID] = payment
	return nil
}

func (r *inMemoryPaymentRepo) GetByRef(ctx context.Context, paymentRef string) (*domain.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.payments {
		if p.PaymentRef == paymentRef {
			return p, nil
		}
	}
	return nil, nil
}

func (r *inMemoryPaymentRepo) GetByRefForUpdate(ctx context.Context, tx pgx.Tx, paymentRef string) (*domain.Payment, error) {
	return r.GetByRef(ctx, paymentRef)
}

func (r *inMemoryPaymentRepo) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]domain.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.Payment
	for _, p := range r.payments {
		if p.OrderID == orderID {
			result = append(result, *p)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (r *inMemoryPaymentRepo) GetBlockingByOrder(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) (*domain.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.payments {
		if p.OrderID == orderID && p.Status != domain.PaymentStatusFailed {
			return p, nil
		}
	}
	return nil, nil
}

func (r *inMemoryPaymentRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.PaymentStatus, errorCode, errorReason *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[id]
	if !ok {
		return fmt.Errorf("payment not found")
	}
	p.Status = status
	p.ErrorCode = errorCode
	p.ErrorReason = errorReason
	p.UpdatedAt = time.Now()
	return nil
}

func (r *inMemoryPaymentRepo) RecentByMerchant(ctx context.Context, merchantID uuid.UUID, since time.Time) ([]domain.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.Payment
	for _, p := range r.payments {
		if p.MerchantID == merchantID && !p.CreatedAt.Before(since) {
			result = append(result, *p)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

func (r *inMemoryPaymentRepo) ListFlagged(ctx context.Context, limit int) ([]domain.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.Payment
	for _, p := range r.payments {
		if p.IsFlagged {
			result = append(result, *p)
		}
	}
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *inMemoryPaymentRepo) GetStats(ctx context.Context) (*ports.PaymentStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stats := &ports.PaymentStats{}
	for _, p := range r.payments {
		stats.TotalPayments++
		switch p.Status {
		case domain.PaymentStatusCaptured, domain.PaymentStatusPartiallyRefunded, domain.PaymentStatusRefunded:
			stats.Captured++
			stats.GrossVolume += p.Amount
		case domain.PaymentStatusFailed:
			stats.Failed++
		}
		if p.IsFlagged {
			stats.Flagged++
		}
	}
	return stats, nil
}

// --- In-Memory Refund Repo ---

type inMemoryRefundRepo struct {
	mu      sync.RWMutex
	refunds map[uuid.UUID]*domain.Refund
}

func newInMemoryRefundRepo() *inMemoryRefundRepo {
	return &inMemoryRefundRepo{refunds: make(map[uuid.UUID]*domain.Refund)}
}

func (r *inMemoryRefundRepo) Create(ctx context.Context, tx pgx.Tx, refund *domain.Refund) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refunds[refund.ID] = refund
	return nil
}

func (r *inMemoryRefundRepo) ListByPayment(ctx context.Context, paymentID uuid.UUID) ([]domain.Refund, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.Refund
	for _, rf := range r.refunds {
		if rf.PaymentID == paymentID {
			result = append(result, *rf)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (r *inMemoryRefundRepo) SumProcessed(ctx context.Context, tx pgx.Tx, paymentID uuid.UUID) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var sum int64
	for _, rf := range r.refunds {
		if rf.PaymentID == paymentID && rf.Status == domain.RefundStatusProcessed {
			sum += rf.Amount
		}
	}
	return sum, nil
}

// --- In-Memory Webhook Repo ---

type inMemoryWebhookRepo struct {
	mu     sync.RWMutex
	nextID int64
	events map[int64]*domain.WebhookEvent
	logs   []domain.WebhookDeliveryLog
}

func newInMemoryWebhookRepo() *inMemoryWebhookRepo {
	return &inMemoryWebhookRepo{events: make(map[int64]*domain.WebhookEvent)}
}

func (r *inMemoryWebhookRepo) Enqueue(ctx context.Context, tx pgx.Tx, event *domain.WebhookEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	event.ID = r.nextID
	event.Status = domain.WebhookEventStatusPending
	r.events[event.ID] = event
	return nil
}

func (r *inMemoryWebhookRepo) ClaimPending(ctx context.Context, limit int) ([]domain.WebhookEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.WebhookEvent
	for _, e := range r.events {
		if e.Status == domain.WebhookEventStatusPending && !e.NextAttemptAt.After(time.Now()) {
			result = append(result, *e)
			if len(result) >= limit {
				break
			}
		}
	}
	return result, nil
}

func (r *inMemoryWebhookRepo) MarkDelivered(ctx context.Context, id int64, responseCode int, responseBody string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.events[id]
	if !ok {
		return fmt.Errorf("event not found")
	}
	e.Status = domain.WebhookEventStatusDelivered
	e.LastResponseCode = &responseCode
	e.LastResponseBody = &responseBody
	return nil
}

func (r *inMemoryWebhookRepo) MarkRetry(ctx context.Context, id int64, attempts int, nextAttemptAt time.Time, responseCode *int, responseBody string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.events[id]
	if !ok {
		return fmt.Errorf("event not found")
	}
	e.Attempts = attempts
	e.NextAttemptAt = nextAttemptAt
	e.LastResponseCode = responseCode
	e.LastResponseBody = &responseBody
	return nil
}

func (r *inMemoryWebhookRepo) MarkFailed(ctx context.Context, id int64, responseCode *int, responseBody string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.events[id]
	if !ok {
		return fmt.Errorf("event not found")
	}
	e.Status = domain.WebhookEventStatusFailed
	e.LastResponseCode = responseCode
	e.LastResponseBody = &responseBody
	return nil
}

func (r *inMemoryWebhookRepo) CreateDeliveryLog(ctx context.Context, log *domain.WebhookDeliveryLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, *log)
	return nil
}

func (r *inMemoryWebhookRepo) ListLogsByMerchant(ctx context.Context, merchantID uuid.UUID, limit int) ([]domain.WebhookDeliveryLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.WebhookDeliveryLog
	for i := len(r.logs) - 1; i >= 0 && len(result) < limit; i-- {
		if r.logs[i].MerchantID == merchantID {
			result = append(result, r.logs[i])
		}
	}
	return result, nil
}

// --- In-Memory Transactor (no-op tx) ---

type inMemoryTransactor struct{}

func newInMemoryTransactor() *inMemoryTransactor {
	return &inMemoryTransactor{}
}

func (t *inMemoryTransactor) Begin(ctx context.Context) (pgx.Tx, error) {
	return &noopTx{}, nil
}

// noopTx is a no-op pgx.Tx implementation for in-memory testing.
type noopTx struct{}

func (t *noopTx) Begin(ctx context.Context) (pgx.Tx, error) { return t, nil }
func (t *noopTx) Commit(ctx context.Context) error          { return nil }
func (t *noopTx) Rollback(ctx context.Context) error        { return nil }
func (t *noopTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *noopTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *noopTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (t *noopTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *noopTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (t *noopTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (t *noopTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}
func (t *noopTx) Conn() *pgx.Conn { return nil }
