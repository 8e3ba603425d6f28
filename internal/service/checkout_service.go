package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"payflow-gateway/internal/core/domain"
	"payflow-gateway/internal/core/ports"
	"payflow-gateway/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// fraudWindow is how far back payment history feeds the fraud rules.
const fraudWindow = 60 * time.Second

// CheckoutService implements ports.CheckoutService: the public,
// unauthenticated surface customers hit from the hosted checkout page.
type CheckoutService struct {
	orderRepo    ports.OrderRepository
	paymentRepo  ports.PaymentRepository
	merchantRepo ports.MerchantRepository
	transactor   ports.DBTransactor
	refs         ports.ReferenceService
	fraud        ports.FraudEngine
	authorizer   ports.Authorizer
	webhooks     ports.WebhookService
	log          zerolog.Logger
}

// NewCheckoutService creates a new checkout service.
func NewCheckoutService(
	orderRepo ports.OrderRepository,
	paymentRepo ports.PaymentRepository,
	merchantRepo ports.MerchantRepository,
	transactor ports.DBTransactor,
	refs ports.ReferenceService,
	fraud ports.FraudEngine,
	authorizer ports.Authorizer,
	webhooks ports.WebhookService,
	log zerolog.Logger,
) *CheckoutService {
	return &CheckoutService{
		orderRepo:    orderRepo,
		paymentRepo:  paymentRepo,
		merchantRepo: merchantRepo,
		transactor:   transactor,
		refs:         refs,
		fraud:        fraud,
		authorizer:   authorizer,
		webhooks:     webhooks,
		log:          log,
	}
}

// MerchantInfo returns the display payload for the checkout page: the
// business name and what is being charged. Nothing sensitive leaves here.
func (s *CheckoutService) MerchantInfo(ctx context.Context, orderRef string) (*ports.CheckoutInfo, error) {
	order, err := s.orderRepo.GetByRef(ctx, orderRef)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if order == nil {
		return nil, apperror.ErrNotFound("order")
	}

	merchant, err := s.merchantRepo.GetByID(ctx, order.MerchantID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if merchant == nil {
		return nil, apperror.ErrNotFound("order")
	}

	return &ports.CheckoutInfo{
		BusinessName: merchant.BusinessName,
		Amount:       order.Amount,
		Currency:     order.Currency,
		OrderStatus:  order.Status,
	}, nil
}

// SubmitPayment runs one payment attempt against the order: fraud
// evaluation, authorization, then the state transition inside a single
// transaction. The authorizer is called before the transaction opens so
// no lock is held across it.
func (s *CheckoutService) SubmitPayment(ctx context.Context, orderRef string, req ports.PaymentAttemptRequest) (*domain.Payment, error) {
	if err := validateAttempt(req); err != nil {
		return nil, err
	}

	order, err := s.orderRepo.GetByRef(ctx, orderRef)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if order == nil {
		return nil, apperror.ErrNotFound("order")
	}
	if !order.AcceptsPayment() {
		return nil, apperror.ErrOrderNotPayable()
	}

	history, err := s.paymentRepo.RecentByMerchant(ctx, order.MerchantID, time.Now().UTC().Add(-fraudWindow))
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}

	attempt := ports.FraudAttempt{
		MerchantID: order.MerchantID,
		Amount:     order.Amount,
		Method:     req.Method,
	}
	if req.VPA != nil {
		attempt.VPA = *req.VPA
	}
	fraudResult := s.fraud.Evaluate(attempt, history)

	paymentRef, err := s.refs.PaymentRef()
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("generate payment ref: %w", err))
	}

	verdict := s.authorizer.Authorize(ctx, ports.AuthorizeRequest{
		PaymentRef: paymentRef,
		Amount:     order.Amount,
		Method:     req.Method,
		Fraud:      fraudResult,
	})

	payment := buildPayment(order, paymentRef, req, fraudResult)

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	// Re-read under lock: the pre-check above can race a concurrent attempt.
	order, err = s.orderRepo.GetByRefForUpdate(ctx, dbTx, orderRef)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if order == nil {
		return nil, apperror.ErrNotFound("order")
	}
	if !order.AcceptsPayment() {
		return nil, apperror.ErrOrderNotPayable()
	}

	blocking, err := s.paymentRepo.GetBlockingByOrder(ctx, dbTx, order.ID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if blocking != nil {
		return nil, apperror.ErrPaymentExists()
	}

	if verdict.Approved {
		payment.Status = domain.PaymentStatusAuthorized
		if order.AutoCapture {
			payment.Status = domain.PaymentStatusCaptured
		}
	} else {
		payment.Status = domain.PaymentStatusFailed
		if verdict.ErrorCode != "" {
			code := verdict.ErrorCode
			payment.ErrorCode = &code
		}
		if verdict.ErrorReason != "" {
			reason := verdict.ErrorReason
			payment.ErrorReason = &reason
		}
	}

	if err := s.paymentRepo.Create(ctx, dbTx, payment); err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if err := s.orderRepo.IncrementAttempts(ctx, dbTx, order.ID); err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}

	orderStatus := domain.OrderStatusAttempted
	if payment.Status == domain.PaymentStatusCaptured {
		orderStatus = domain.OrderStatusPaid
	}
	if err := s.orderRepo.UpdateStatus(ctx, dbTx, order.ID, orderStatus); err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}

	switch payment.Status {
	case domain.PaymentStatusCaptured:
		if err := s.webhooks.Enqueue(ctx, dbTx, order.MerchantID, domain.EventPaymentCaptured, payment); err != nil {
			return nil, err
		}
		order.Status = orderStatus
		if err := s.webhooks.Enqueue(ctx, dbTx, order.MerchantID, domain.EventOrderPaid, order); err != nil {
			return nil, err
		}
	case domain.PaymentStatusFailed:
		if err := s.webhooks.Enqueue(ctx, dbTx, order.MerchantID, domain.EventPaymentFailed, payment); err != nil {
			return nil, err
		}
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}

	s.log.Info().
		Str("payment_ref", payment.PaymentRef).
		Str("order_ref", orderRef).
		Str("method", string(payment.Method)).
		Str("status", string(payment.Status)).
		Bool("flagged", payment.IsFlagged).
		Msg("payment attempt processed")
	return payment, nil
}

// validateAttempt enforces method-specific required fields. VPA shape is
// the fraud engine's concern, not a validation failure.
func validateAttempt(req ports.PaymentAttemptRequest) error {
	if !domain.ValidPaymentMethod(req.Method) {
		return apperror.ErrInvalidMethod(string(req.Method))
	}
	switch req.Method {
	case domain.PaymentMethodUPI:
		if req.VPA == nil || strings.TrimSpace(*req.VPA) == "" {
			return apperror.Validation("vpa is required for upi payments")
		}
	case domain.PaymentMethodCard:
		if req.CardNumber == nil || strings.TrimSpace(*req.CardNumber) == "" {
			return apperror.Validation("card_number is required for card payments")
		}
		if req.CardExpiry == nil || strings.TrimSpace(*req.CardExpiry) == "" {
			return apperror.Validation("card_expiry is required for card payments")
		}
		if req.CardCVV == nil || strings.TrimSpace(*req.CardCVV) == "" {
			return apperror.Validation("card_cvv is required for card payments")
		}
	}
	return nil
}

// buildPayment assembles the payment row. Card numbers are reduced to
// their last four digits and detected network; the CVV and expiry are
// never stored.
func buildPayment(order *domain.Order, paymentRef string, req ports.PaymentAttemptRequest, fraud domain.FraudResult) *domain.Payment {
	now := time.Now().UTC()
	payment := &domain.Payment{
		ID:         uuid.New(),
		PaymentRef: paymentRef,
		OrderID:    order.ID,
		MerchantID: order.MerchantID,
		Amount:     order.Amount,
		Currency:   order.Currency,
		Method:     req.Method,
		Email:      req.Email,
		Contact:    req.Contact,
		Status:     domain.PaymentStatusCreated,
		IsFlagged:  fraud.IsFlagged,
		FraudRules: fraud.Rules,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	switch req.Method {
	case domain.PaymentMethodUPI:
		payment.VPA = req.VPA
	case domain.PaymentMethodCard:
		last4 := domain.MaskCard(strings.TrimSpace(*req.CardNumber))
		payment.CardLast4 = &last4
		if network := domain.DetectCardNetwork(strings.TrimSpace(*req.CardNumber)); network != "" {
			payment.CardNetwork = &network
		}
		payment.CardName = req.CardName
	}
	return payment
}
