package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"payflow-gateway/internal/core/domain"
	"payflow-gateway/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// fakeHTTPClient returns canned responses and records the last request.
type fakeHTTPClient struct {
	status  int
	body    string
	err     error
	lastReq *http.Request
}

func (c *fakeHTTPClient) Do(req *http.Request) (*http.Response, error) {
	c.lastReq = req
	if c.err != nil {
		return nil, c.err
	}
	return &http.Response{
		StatusCode: c.status,
		Body:       io.NopCloser(strings.NewReader(c.body)),
	}, nil
}

func webhookURL(u string) *string { return &u }

// ==================== Enqueue Tests ====================

func TestWebhookService_Enqueue(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	webhookRepo := mocks.NewMockWebhookRepository(ctrl)
	svc := NewWebhookService(webhookRepo, zerolog.Nop())

	ctx := context.Background()
	merchantID := uuid.New()
	tx := &mockTx{}

	webhookRepo.EXPECT().Enqueue(ctx, tx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ any, row *domain.WebhookEvent) error {
			assert.Equal(t, merchantID, row.MerchantID)
			assert.Equal(t, domain.EventPaymentCaptured, row.Event)
			assert.Equal(t, domain.WebhookEventStatusPending, row.Status)

			var body webhookBody
			require.NoError(t, json.Unmarshal(row.Payload, &body))
			assert.Equal(t, domain.EventPaymentCaptured, body.Event)
			return nil
		})

	err := svc.Enqueue(ctx, tx, merchantID, domain.EventPaymentCaptured, map[string]string{
		"payment_ref": "pf_pay_1",
	})
	require.NoError(t, err)
}

func TestWebhookService_Logs(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	webhookRepo := mocks.NewMockWebhookRepository(ctrl)
	svc := NewWebhookService(webhookRepo, zerolog.Nop())

	ctx := context.Background()
	merchantID := uuid.New()

	webhookRepo.EXPECT().ListLogsByMerchant(ctx, merchantID, 20).Return([]domain.WebhookDeliveryLog{
		{Event: domain.EventOrderPaid, Success: true},
	}, nil)

	logs, err := svc.Logs(ctx, merchantID, 20)
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

// ==================== Dispatcher Tests ====================

type dispatcherTestDeps struct {
	dispatcher   *Dispatcher
	webhookRepo  *mocks.MockWebhookRepository
	merchantRepo *mocks.MockMerchantRepository
	client       *fakeHTTPClient
	ctrl         *gomock.Controller
}

func setupDispatcher(t *testing.T, client *fakeHTTPClient) *dispatcherTestDeps {
	ctrl := gomock.NewController(t)
	d := &dispatcherTestDeps{
		webhookRepo:  mocks.NewMockWebhookRepository(ctrl),
		merchantRepo: mocks.NewMockMerchantRepository(ctrl),
		client:       client,
		ctrl:         ctrl,
	}
	d.dispatcher = NewDispatcher(
		d.webhookRepo,
		d.merchantRepo,
		NewHMACSignatureService(),
		client,
		DispatcherConfig{Workers: 1, MaxAttempts: 3},
		zerolog.Nop(),
	)
	return d
}

func pendingEvent(merchantID uuid.UUID, attempts int) *domain.WebhookEvent {
	return &domain.WebhookEvent{
		ID:         7,
		MerchantID: merchantID,
		Event:      domain.EventPaymentCaptured,
		Payload:    []byte(`{"event":"payment.captured"}`),
		Status:     domain.WebhookEventStatusPending,
		Attempts:   attempts,
	}
}

func TestDispatcher_Deliver_Success(t *testing.T) {
	client := &fakeHTTPClient{status: 200, body: "ok"}
	d := setupDispatcher(t, client)
	defer d.ctrl.Finish()

	ctx := context.Background()
	merchantID := uuid.New()
	event := pendingEvent(merchantID, 0)

	d.merchantRepo.EXPECT().GetByID(ctx, merchantID).Return(&domain.Merchant{
		ID:            merchantID,
		WebhookURL:    webhookURL("https://merchant.example/hooks"),
		WebhookSecret: "whsecret",
	}, nil)
	d.webhookRepo.EXPECT().MarkDelivered(ctx, int64(7), 200, "ok").Return(nil)
	d.webhookRepo.EXPECT().CreateDeliveryLog(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, logEntry *domain.WebhookDeliveryLog) error {
			assert.True(t, logEntry.Success)
			assert.Equal(t, 1, logEntry.Attempt)
			return nil
		})

	d.dispatcher.Deliver(ctx, event)

	require.NotNil(t, client.lastReq)
	assert.Equal(t, "https://merchant.example/hooks", client.lastReq.URL.String())
	assert.Equal(t, domain.EventPaymentCaptured, client.lastReq.Header.Get("X-PayFlow-Event"))

	// The signature covers the exact stored payload bytes.
	sig := NewHMACSignatureService().Sign("whsecret", event.Payload)
	assert.Equal(t, sig, client.lastReq.Header.Get("X-PayFlow-Signature"))
}

func TestDispatcher_Deliver_Non2xxSchedulesRetry(t *testing.T) {
	client := &fakeHTTPClient{status: 500, body: "boom"}
	d := setupDispatcher(t, client)
	defer d.ctrl.Finish()

	ctx := context.Background()
	merchantID := uuid.New()

	d.merchantRepo.EXPECT().GetByID(ctx, merchantID).Return(&domain.Merchant{
		ID:         merchantID,
		WebhookURL: webhookURL("https://merchant.example/hooks"),
	}, nil)
	d.webhookRepo.EXPECT().CreateDeliveryLog(ctx, gomock.Any()).Return(nil)
	d.webhookRepo.EXPECT().
		MarkRetry(ctx, int64(7), 1, gomock.Any(), gomock.Any(), "boom").
		Return(nil)

	d.dispatcher.Deliver(ctx, pendingEvent(merchantID, 0))
}

func TestDispatcher_Deliver_NetworkErrorSchedulesRetry(t *testing.T) {
	client := &fakeHTTPClient{err: errors.New("connection refused")}
	d := setupDispatcher(t, client)
	defer d.ctrl.Finish()

	ctx := context.Background()
	merchantID := uuid.New()

	d.merchantRepo.EXPECT().GetByID(ctx, merchantID).Return(&domain.Merchant{
		ID:         merchantID,
		WebhookURL: webhookURL("https://merchant.example/hooks"),
	}, nil)
	d.webhookRepo.EXPECT().CreateDeliveryLog(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, logEntry *domain.WebhookDeliveryLog) error {
			require.NotNil(t, logEntry.Error)
			assert.Contains(t, *logEntry.Error, "connection refused")
			return nil
		})
	d.webhookRepo.EXPECT().
		MarkRetry(ctx, int64(7), 1, gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil)

	d.dispatcher.Deliver(ctx, pendingEvent(merchantID, 0))
}

func TestDispatcher_Deliver_MaxAttemptsMarksFailed(t *testing.T) {
	client := &fakeHTTPClient{status: 500, body: "boom"}
	d := setupDispatcher(t, client)
	defer d.ctrl.Finish()

	ctx := context.Background()
	merchantID := uuid.New()

	d.merchantRepo.EXPECT().GetByID(ctx, merchantID).Return(&domain.Merchant{
		ID:         merchantID,
		WebhookURL: webhookURL("https://merchant.example/hooks"),
	}, nil)
	d.webhookRepo.EXPECT().CreateDeliveryLog(ctx, gomock.Any()).Return(nil)
	// Attempts=2 going in, MaxAttempts=3: this third failure is terminal.
	d.webhookRepo.EXPECT().MarkFailed(ctx, int64(7), gomock.Any(), "boom").Return(nil)

	d.dispatcher.Deliver(ctx, pendingEvent(merchantID, 2))
}

func TestDispatcher_Deliver_NoWebhookURLIsTerminal(t *testing.T) {
	client := &fakeHTTPClient{status: 200}
	d := setupDispatcher(t, client)
	defer d.ctrl.Finish()

	ctx := context.Background()
	merchantID := uuid.New()

	d.merchantRepo.EXPECT().GetByID(ctx, merchantID).Return(&domain.Merchant{
		ID: merchantID,
	}, nil)
	d.webhookRepo.EXPECT().
		MarkFailed(ctx, int64(7), nil, "no webhook_url configured").
		Return(nil)

	d.dispatcher.Deliver(ctx, pendingEvent(merchantID, 0))
	assert.Nil(t, client.lastReq, "no HTTP request is made without a webhook_url")
}

// ==================== Backoff Tests ====================

func TestBackoff(t *testing.T) {
	assert.Equal(t, 2*time.Second, Backoff(1))
	assert.Equal(t, 4*time.Second, Backoff(2))
	assert.Equal(t, 128*time.Second, Backoff(7))
	assert.Equal(t, 600*time.Second, Backoff(10))
	assert.Equal(t, 600*time.Second, Backoff(30))
}
