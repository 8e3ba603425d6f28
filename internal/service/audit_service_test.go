package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"payflow-gateway/internal/core/domain"
	"payflow-gateway/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.uber.org/mock/gomock"
)

func TestAuditService_Log_PersistsToRepo(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := mocks.NewMockAuditRepository(ctrl)
	svc := NewAuditService(mockRepo, zerolog.Nop())

	done := make(chan struct{})
	mockRepo.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, entry *domain.AuditLog) error {
			if entry.Action != domain.AuditActionRefund {
				t.Errorf("expected REFUND, got %s", entry.Action)
			}
			close(done)
			return nil
		},
	)

	merchantID := uuid.New()
	svc.Log(context.Background(), &domain.AuditLog{
		ID:           uuid.New(),
		MerchantID:   &merchantID,
		Action:       domain.AuditActionRefund,
		ResourceType: "payment",
		ResourceID:   "pf_pay_123",
		IPAddress:    "127.0.0.1",
		CreatedAt:    time.Now(),
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("audit entry was not persisted")
	}
}

func TestAuditService_Log_NilRepoOnlyLogs(t *testing.T) {
	svc := NewAuditService(nil, zerolog.Nop())

	// Must not panic without a repository.
	svc.Log(context.Background(), &domain.AuditLog{
		ID:        uuid.New(),
		Action:    domain.AuditActionLogin,
		IPAddress: "127.0.0.1",
		CreatedAt: time.Now(),
	})
}

func TestAuditService_Log_RepoErrorIsSwallowed(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := mocks.NewMockAuditRepository(ctrl)
	svc := NewAuditService(mockRepo, zerolog.Nop())

	done := make(chan struct{})
	mockRepo.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, entry *domain.AuditLog) error {
			close(done)
			return errors.New("insert failed")
		},
	)

	svc.Log(context.Background(), &domain.AuditLog{
		ID:        uuid.New(),
		Action:    domain.AuditActionKeyRevoke,
		IPAddress: "127.0.0.1",
		CreatedAt: time.Now(),
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("repository was not called")
	}
}
