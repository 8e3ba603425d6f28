package service

import (
	"context"

	"payflow-gateway/internal/core/domain"
	"payflow-gateway/internal/core/ports"
	"payflow-gateway/pkg/apperror"
)

const flaggedListCap = 100

// ReportingService implements ports.ReportingService: the admin-only
// read views over gateway activity.
type ReportingService struct {
	paymentRepo ports.PaymentRepository
}

// NewReportingService creates a new reporting service.
func NewReportingService(paymentRepo ports.PaymentRepository) *ReportingService {
	return &ReportingService{paymentRepo: paymentRepo}
}

// Stats returns gateway-wide payment counters and captured volume.
func (s *ReportingService) Stats(ctx context.Context) (*ports.PaymentStats, error) {
	stats, err := s.paymentRepo.GetStats(ctx)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	return stats, nil
}

// Flagged returns the most recent payments the fraud rules flagged.
func (s *ReportingService) Flagged(ctx context.Context) ([]domain.Payment, error) {
	payments, err := s.paymentRepo.ListFlagged(ctx, flaggedListCap)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	return payments, nil
}
