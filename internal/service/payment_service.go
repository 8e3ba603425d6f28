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

const refundIdemTTL = 24 * time.Hour

// PaymentService implements ports.PaymentService: the merchant-facing
// capture and refund operations.
type PaymentService struct {
	paymentRepo ports.PaymentRepository
	orderRepo   ports.OrderRepository
	refundRepo  ports.RefundRepository
	transactor  ports.DBTransactor
	refs        ports.ReferenceService
	webhooks    ports.WebhookService
	idemCache   ports.IdempotencyCache
	log         zerolog.Logger
}

// NewPaymentService creates a new payment service. idemCache may be nil.
func NewPaymentService(
	paymentRepo ports.PaymentRepository,
	orderRepo ports.OrderRepository,
	refundRepo ports.RefundRepository,
	transactor ports.DBTransactor,
	refs ports.ReferenceService,
	webhooks ports.WebhookService,
	idemCache ports.IdempotencyCache,
	log zerolog.Logger,
) *PaymentService {
	return &PaymentService{
		paymentRepo: paymentRepo,
		orderRepo:   orderRepo,
		refundRepo:  refundRepo,
		transactor:  transactor,
		refs:        refs,
		webhooks:    webhooks,
		idemCache:   idemCache,
		log:         log,
	}
}

// GetPayment loads one of the merchant's payments by reference. Another
// merchant's payment is indistinguishable from a missing one.
func (s *PaymentService) GetPayment(ctx context.Context, merchantID uuid.UUID, paymentRef string) (*domain.Payment, error) {
	payment, err := s.paymentRepo.GetByRef(ctx, paymentRef)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if payment == nil || payment.MerchantID != merchantID {
		return nil, apperror.ErrNotFound("payment")
	}
	return payment, nil
}

// Capture settles an authorized payment and marks the order paid.
// Capturing an already-captured payment returns it unchanged.
func (s *PaymentService) Capture(ctx context.Context, merchantID uuid.UUID, paymentRef string) (*domain.Payment, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	payment, err := s.paymentRepo.GetByRefForUpdate(ctx, dbTx, paymentRef)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if payment == nil || payment.MerchantID != merchantID {
		return nil, apperror.ErrNotFound("payment")
	}

	if payment.Status == domain.PaymentStatusCaptured {
		return payment, nil
	}
	if payment.Status != domain.PaymentStatusAuthorized {
		return nil, apperror.ErrInvalidTransition(string(payment.Status), string(domain.PaymentStatusCaptured))
	}

	order, err := s.orderRepo.GetByIDForUpdate(ctx, dbTx, payment.OrderID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if order == nil {
		return nil, apperror.InternalError(fmt.Errorf("order %s missing for payment %s", payment.OrderID, paymentRef))
	}

	if err := s.paymentRepo.UpdateStatus(ctx, dbTx, payment.ID, domain.PaymentStatusCaptured, nil, nil); err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if err := s.orderRepo.UpdateStatus(ctx, dbTx, order.ID, domain.OrderStatusPaid); err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}

	payment.Status = domain.PaymentStatusCaptured
	payment.UpdatedAt = time.Now().UTC()
	order.Status = domain.OrderStatusPaid

	if err := s.webhooks.Enqueue(ctx, dbTx, merchantID, domain.EventPaymentCaptured, payment); err != nil {
		return nil, err
	}
	if err := s.webhooks.Enqueue(ctx, dbTx, merchantID, domain.EventOrderPaid, order); err != nil {
		return nil, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}

	s.log.Info().
		Str("payment_ref", paymentRef).
		Str("order_ref", order.OrderRef).
		Str("merchant_id", merchantID.String()).
		Msg("payment captured")
	return payment, nil
}

// Refund reverses part or all of a captured payment. The cap (sum of
// processed refunds never exceeds the payment amount) is rechecked inside
// the transaction. With an idempotency key seen before, the stored refund
// is returned and the bool is true.
func (s *PaymentService) Refund(ctx context.Context, merchantID uuid.UUID, paymentRef string, req ports.RefundRequest) (*domain.Refund, bool, error) {
	if req.Amount != nil && *req.Amount <= 0 {
		return nil, false, apperror.ErrInvalidAmount()
	}

	payment, err := s.GetPayment(ctx, merchantID, paymentRef)
	if err != nil {
		return nil, false, err
	}

	if req.IdempotencyKey != nil && *req.IdempotencyKey != "" {
		if refund := s.replayRefund(ctx, payment.ID, *req.IdempotencyKey); refund != nil {
			return refund, true, nil
		}
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, false, apperror.ErrDatabaseError(err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	payment, err = s.paymentRepo.GetByRefForUpdate(ctx, dbTx, paymentRef)
	if err != nil {
		return nil, false, apperror.ErrDatabaseError(err)
	}
	if payment == nil || payment.MerchantID != merchantID {
		return nil, false, apperror.ErrNotFound("payment")
	}
	if !payment.Refundable() {
		return nil, false, apperror.ErrInvalidTransition(string(payment.Status), string(domain.PaymentStatusRefunded))
	}

	refunded, err := s.refundRepo.SumProcessed(ctx, dbTx, payment.ID)
	if err != nil {
		return nil, false, apperror.ErrDatabaseError(err)
	}
	remaining := payment.Amount - refunded

	amount := remaining
	if req.Amount != nil {
		amount = *req.Amount
	}
	if amount > remaining {
		return nil, false, apperror.ErrRefundExceedsCaptured()
	}

	refundRef, err := s.refs.RefundRef()
	if err != nil {
		return nil, false, apperror.InternalError(fmt.Errorf("generate refund ref: %w", err))
	}

	refund := &domain.Refund{
		ID:        uuid.New(),
		RefundRef: refundRef,
		PaymentID: payment.ID,
		Amount:    amount,
		Reason:    req.Reason,
		Notes:     req.Notes,
		Status:    domain.RefundStatusProcessed,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.refundRepo.Create(ctx, dbTx, refund); err != nil {
		return nil, false, apperror.ErrDatabaseError(err)
	}

	newStatus := domain.PaymentStatusPartiallyRefunded
	if refunded+amount == payment.Amount {
		newStatus = domain.PaymentStatusRefunded
	}
	if err := s.paymentRepo.UpdateStatus(ctx, dbTx, payment.ID, newStatus, nil, nil); err != nil {
		return nil, false, apperror.ErrDatabaseError(err)
	}

	if err := s.webhooks.Enqueue(ctx, dbTx, merchantID, domain.EventRefundProcessed, refund); err != nil {
		return nil, false, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, false, apperror.ErrDatabaseError(err)
	}

	if req.IdempotencyKey != nil && *req.IdempotencyKey != "" {
		s.cacheRefund(ctx, payment.ID, *req.IdempotencyKey, refund)
	}

	s.log.Info().
		Str("refund_ref", refund.RefundRef).
		Str("payment_ref", paymentRef).
		Int64("amount", amount).
		Str("payment_status", string(newStatus)).
		Msg("refund processed")
	return refund, false, nil
}

// replayRefund returns the cached refund for the key, or nil. Cache
// failures are treated as misses.
func (s *PaymentService) replayRefund(ctx context.Context, paymentID uuid.UUID, key string) *domain.Refund {
	if s.idemCache == nil {
		return nil
	}
	cached, err := s.idemCache.Get(ctx, domain.BuildRefundIdempotencyKey(paymentID, key))
	if err != nil {
		s.log.Warn().Err(err).Msg("refund idempotency cache read failed")
		return nil
	}
	if cached == nil {
		return nil
	}
	var refund domain.Refund
	if err := json.Unmarshal(cached, &refund); err != nil {
		s.log.Warn().Err(err).Msg("refund idempotency cache entry corrupt")
		return nil
	}
	return &refund
}

func (s *PaymentService) cacheRefund(ctx context.Context, paymentID uuid.UUID, key string, refund *domain.Refund) {
	if s.idemCache == nil {
		return
	}
	body, err := json.Marshal(refund)
	if err != nil {
		return
	}
	if err := s.idemCache.Set(ctx, domain.BuildRefundIdempotencyKey(paymentID, key), body, refundIdemTTL); err != nil {
		s.log.Warn().Err(err).Msg("refund idempotency cache write failed")
	}
}

// ListRefunds returns the payment's refunds, newest first.
func (s *PaymentService) ListRefunds(ctx context.Context, merchantID uuid.UUID, paymentRef string) ([]domain.Refund, error) {
	payment, err := s.GetPayment(ctx, merchantID, paymentRef)
	if err != nil {
		return nil, err
	}
	refunds, err := s.refundRepo.ListByPayment(ctx, payment.ID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	return refunds, nil
}
