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
	qrcode "github.com/skip2/go-qrcode"
)

// MerchantService implements ports.MerchantService.
type MerchantService struct {
	merchantRepo ports.MerchantRepository
	refs         ports.ReferenceService
	frontendURL  string
	log          zerolog.Logger
}

// NewMerchantService creates a new merchant profile service.
func NewMerchantService(
	merchantRepo ports.MerchantRepository,
	refs ports.ReferenceService,
	frontendURL string,
	log zerolog.Logger,
) *MerchantService {
	return &MerchantService{
		merchantRepo: merchantRepo,
		refs:         refs,
		frontendURL:  strings.TrimRight(frontendURL, "/"),
		log:          log,
	}
}

// CreateMerchant creates the user's merchant profile. A user owns at
// most one merchant row; a second create fails.
func (s *MerchantService) CreateMerchant(ctx context.Context, userID uuid.UUID, req ports.CreateMerchantRequest) (*domain.Merchant, error) {
	if strings.TrimSpace(req.BusinessName) == "" {
		return nil, apperror.Validation("business_name is required")
	}
	if strings.TrimSpace(req.BusinessEmail) == "" {
		return nil, apperror.Validation("business_email is required")
	}

	existing, err := s.merchantRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("check merchant: %w", err))
	}
	if existing != nil {
		return nil, apperror.ErrMerchantExists()
	}

	webhookSecret, err := s.refs.WebhookSecret()
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("generate webhook secret: %w", err))
	}

	now := time.Now().UTC()
	merchant := &domain.Merchant{
		ID:            uuid.New(),
		UserID:        userID,
		BusinessName:  strings.TrimSpace(req.BusinessName),
		BusinessEmail: strings.ToLower(strings.TrimSpace(req.BusinessEmail)),
		Website:       req.Website,
		WebhookURL:    req.WebhookURL,
		WebhookSecret: webhookSecret,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.merchantRepo.Create(ctx, merchant); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create merchant: %w", err))
	}

	s.log.Info().
		Str("merchant_id", merchant.ID.String()).
		Str("business_name", merchant.BusinessName).
		Msg("merchant created")
	return merchant, nil
}

// GetByUser loads the merchant profile owned by the user.
func (s *MerchantService) GetByUser(ctx context.Context, userID uuid.UUID) (*domain.Merchant, error) {
	merchant, err := s.merchantRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("find merchant: %w", err))
	}
	if merchant == nil {
		return nil, apperror.ErrNotFound("merchant")
	}
	return merchant, nil
}

// UpdateProfile applies the non-nil fields and persists.
func (s *MerchantService) UpdateProfile(ctx context.Context, userID uuid.UUID, req ports.UpdateMerchantRequest) (*domain.Merchant, error) {
	merchant, err := s.GetByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if req.BusinessName != nil {
		if strings.TrimSpace(*req.BusinessName) == "" {
			return nil, apperror.Validation("business_name cannot be empty")
		}
		merchant.BusinessName = strings.TrimSpace(*req.BusinessName)
	}
	if req.Website != nil {
		merchant.Website = req.Website
	}
	if req.WebhookURL != nil {
		merchant.WebhookURL = req.WebhookURL
	}
	merchant.UpdatedAt = time.Now().UTC()

	if err := s.merchantRepo.Update(ctx, merchant); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update merchant: %w", err))
	}
	return merchant, nil
}

// CheckoutQRCode renders the merchant's hosted-checkout URL as a PNG.
func (s *MerchantService) CheckoutQRCode(ctx context.Context, userID uuid.UUID) ([]byte, error) {
	merchant, err := s.GetByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	checkoutURL := fmt.Sprintf("%s/checkout/%s", s.frontendURL, merchant.ID)
	png, err := qrcode.Encode(checkoutURL, qrcode.Medium, 256)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("encode qr: %w", err))
	}
	return png, nil
}
