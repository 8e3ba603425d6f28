package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"payflow-gateway/internal/core/domain"
	"payflow-gateway/internal/core/ports"
	"payflow-gateway/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	orderIdemTTL  = 24 * time.Hour
	maxNotesLen   = 4096
	listOrdersCap = 100
)

var supportedCurrencies = map[string]bool{
	"INR": true,
	"USD": true,
	"EUR": true,
}

// OrderService implements ports.OrderService.
type OrderService struct {
	orderRepo   ports.OrderRepository
	paymentRepo ports.PaymentRepository
	transactor  ports.DBTransactor
	refs        ports.ReferenceService
	idemCache   ports.IdempotencyCache
	log         zerolog.Logger
}

// NewOrderService creates a new order service. idemCache may be nil.
func NewOrderService(
	orderRepo ports.OrderRepository,
	paymentRepo ports.PaymentRepository,
	transactor ports.DBTransactor,
	refs ports.ReferenceService,
	idemCache ports.IdempotencyCache,
	log zerolog.Logger,
) *OrderService {
	return &OrderService{
		orderRepo:   orderRepo,
		paymentRepo: paymentRepo,
		transactor:  transactor,
		refs:        refs,
		idemCache:   idemCache,
		log:         log,
	}
}

// CreateOrder validates the request and persists a new order. When the
// merchant supplies an idempotency key already seen, the stored order is
// returned instead and the bool is true.
func (s *OrderService) CreateOrder(ctx context.Context, merchantID uuid.UUID, req ports.CreateOrderRequest) (*domain.Order, bool, error) {
	if req.Amount <= 0 {
		return nil, false, apperror.ErrInvalidAmount()
	}
	if !supportedCurrencies[req.Currency] {
		return nil, false, apperror.ErrInvalidCurrency(req.Currency)
	}
	if req.Notes != nil && len(*req.Notes) > maxNotesLen {
		return nil, false, apperror.Validation("notes must not exceed 4096 bytes")
	}

	if req.IdempotencyKey != nil && *req.IdempotencyKey != "" {
		if order, err := s.replayOrder(ctx, merchantID, *req.IdempotencyKey); err != nil {
			return nil, false, err
		} else if order != nil {
			if !orderMatchesRequest(order, req) {
				return nil, false, apperror.ErrIdempotencyKeyReused()
			}
			return order, true, nil
		}
	}

	orderRef, err := s.refs.OrderRef()
	if err != nil {
		return nil, false, apperror.InternalError(fmt.Errorf("generate order ref: %w", err))
	}

	autoCapture := true
	if req.AutoCapture != nil {
		autoCapture = *req.AutoCapture
	}

	now := time.Now().UTC()
	order := &domain.Order{
		ID:             uuid.New(),
		OrderRef:       orderRef,
		MerchantID:     merchantID,
		Amount:         req.Amount,
		Currency:       req.Currency,
		Receipt:        req.Receipt,
		Notes:          req.Notes,
		Status:         domain.OrderStatusCreated,
		AutoCapture:    autoCapture,
		IdempotencyKey: req.IdempotencyKey,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, false, apperror.ErrDatabaseError(err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.orderRepo.Create(ctx, dbTx, order); err != nil {
		return nil, false, apperror.ErrDatabaseError(err)
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, false, apperror.ErrDatabaseError(err)
	}

	if req.IdempotencyKey != nil && *req.IdempotencyKey != "" {
		s.cacheOrder(ctx, merchantID, *req.IdempotencyKey, order)
	}

	s.log.Info().
		Str("order_ref", order.OrderRef).
		Str("merchant_id", merchantID.String()).
		Int64("amount", order.Amount).
		Str("currency", order.Currency).
		Msg("order created")
	return order, false, nil
}

// orderMatchesRequest reports whether a replayed create carries the same
// body as the order originally stored under the idempotency key. A reused
// key with a differing body is a conflict, not a replay.
func orderMatchesRequest(order *domain.Order, req ports.CreateOrderRequest) bool {
	if order.Amount != req.Amount || order.Currency != req.Currency {
		return false
	}
	if !strPtrEqual(order.Receipt, req.Receipt) || !strPtrEqual(order.Notes, req.Notes) {
		return false
	}
	autoCapture := true
	if req.AutoCapture != nil {
		autoCapture = *req.AutoCapture
	}
	return order.AutoCapture == autoCapture
}

func strPtrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// replayOrder checks the cache then the database for a prior order
// created under the same idempotency key. Cache failures fall through to
// the database.
func (s *OrderService) replayOrder(ctx context.Context, merchantID uuid.UUID, key string) (*domain.Order, error) {
	cacheKey := domain.BuildOrderIdempotencyKey(merchantID, key)

	if s.idemCache != nil {
		cached, err := s.idemCache.Get(ctx, cacheKey)
		if err != nil {
			s.log.Warn().Err(err).Msg("idempotency cache read failed")
		} else if cached != nil {
			var order domain.Order
			if err := json.Unmarshal(cached, &order); err == nil {
				return &order, nil
			}
			s.log.Warn().Err(err).Msg("idempotency cache entry corrupt")
		}
	}

	order, err := s.orderRepo.GetByIdempotencyKey(ctx, merchantID, key)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if order == nil {
		return nil, nil
	}
	s.cacheOrder(ctx, merchantID, key, order)
	return order, nil
}

func (s *OrderService) cacheOrder(ctx context.Context, merchantID uuid.UUID, key string, order *domain.Order) {
	if s.idemCache == nil {
		return
	}
	body, err := json.Marshal(order)
	if err != nil {
		return
	}
	cacheKey := domain.BuildOrderIdempotencyKey(merchantID, key)
	if err := s.idemCache.Set(ctx, cacheKey, body, orderIdemTTL); err != nil {
		s.log.Warn().Err(err).Msg("idempotency cache write failed")
	}
}

// GetOrder loads one of the merchant's orders by reference. Another
// merchant's order is indistinguishable from a missing one.
func (s *OrderService) GetOrder(ctx context.Context, merchantID uuid.UUID, orderRef string) (*domain.Order, error) {
	order, err := s.orderRepo.GetByRef(ctx, orderRef)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if order == nil || order.MerchantID != merchantID {
		return nil, apperror.ErrNotFound("order")
	}
	return order, nil
}

// ListOrders returns the merchant's most recent orders, newest first.
func (s *OrderService) ListOrders(ctx context.Context, merchantID uuid.UUID) ([]domain.Order, error) {
	orders, err := s.orderRepo.ListByMerchant(ctx, merchantID, listOrdersCap)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	return orders, nil
}

// ListOrderPayments returns every payment attempt made against the order.
func (s *OrderService) ListOrderPayments(ctx context.Context, merchantID uuid.UUID, orderRef string) ([]domain.Payment, error) {
	order, err := s.GetOrder(ctx, merchantID, orderRef)
	if err != nil {
		return nil, err
	}
	payments, err := s.paymentRepo.ListByOrder(ctx, order.ID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	return payments, nil
}
