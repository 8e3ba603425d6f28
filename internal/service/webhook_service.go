package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"payflow-gateway/internal/core/domain"
	"payflow-gateway/internal/core/ports"
	"payflow-gateway/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// webhookBody is the JSON structure POSTed to merchant webhook_url.
type webhookBody struct {
	Event     string `json:"event"`
	CreatedAt string `json:"created_at"`
	Payload   any    `json:"payload"`
}

// WebhookService implements ports.WebhookService: it appends outbox rows
// inside state transactions and reads delivery history. Delivery itself
// is the dispatcher's job.
type WebhookService struct {
	webhookRepo ports.WebhookRepository
	log         zerolog.Logger
}

// NewWebhookService creates a new webhook service.
func NewWebhookService(webhookRepo ports.WebhookRepository, log zerolog.Logger) *WebhookService {
	return &WebhookService{webhookRepo: webhookRepo, log: log}
}

// Enqueue serializes the event body and appends an outbox row inside the
// caller's transaction. The body bytes stored here are the exact bytes
// signed and delivered later.
func (s *WebhookService) Enqueue(ctx context.Context, tx pgx.Tx, merchantID uuid.UUID, event string, payload any) error {
	body, err := json.Marshal(webhookBody{
		Event:     event,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		return apperror.InternalError(fmt.Errorf("marshal webhook body: %w", err))
	}

	row := &domain.WebhookEvent{
		MerchantID:    merchantID,
		Event:         event,
		Payload:       body,
		Status:        domain.WebhookEventStatusPending,
		NextAttemptAt: time.Now().UTC(),
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.webhookRepo.Enqueue(ctx, tx, row); err != nil {
		return apperror.InternalError(fmt.Errorf("enqueue webhook: %w", err))
	}
	return nil
}

// Logs returns the merchant's most recent delivery attempts.
func (s *WebhookService) Logs(ctx context.Context, merchantID uuid.UUID, limit int) ([]domain.WebhookDeliveryLog, error) {
	logs, err := s.webhookRepo.ListLogsByMerchant(ctx, merchantID, limit)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	return logs, nil
}

// Dispatcher drains the outbox with a pool of workers. Each worker
// claims due pending rows, signs the stored body with the merchant's
// webhook secret and POSTs it. Delivery is at-least-once.
type Dispatcher struct {
	webhookRepo    ports.WebhookRepository
	merchantRepo   ports.MerchantRepository
	sigSvc         ports.SignatureService
	httpClient     HTTPClient
	fallbackSecret string
	workers        int
	pollInterval   time.Duration
	maxAttempts    int
	log            zerolog.Logger
}

// DispatcherConfig tunes the worker pool.
type DispatcherConfig struct {
	Workers        int
	PollInterval   time.Duration
	MaxAttempts    int
	FallbackSecret string // Used when the merchant has no webhook secret
}

// NewDispatcher creates an outbox dispatcher.
func NewDispatcher(
	webhookRepo ports.WebhookRepository,
	merchantRepo ports.MerchantRepository,
	sigSvc ports.SignatureService,
	httpClient HTTPClient,
	cfg DispatcherConfig,
	log zerolog.Logger,
) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 8
	}
	return &Dispatcher{
		webhookRepo:    webhookRepo,
		merchantRepo:   merchantRepo,
		sigSvc:         sigSvc,
		httpClient:     httpClient,
		fallbackSecret: cfg.FallbackSecret,
		workers:        cfg.Workers,
		pollInterval:   cfg.PollInterval,
		maxAttempts:    cfg.MaxAttempts,
		log:            log,
	}
}

// Start launches the worker pool. Workers exit when ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	for i := 0; i < d.workers; i++ {
		go d.worker(ctx, i)
	}
}

func (d *Dispatcher) worker(ctx context.Context, id int) {
	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.log.Debug().Int("worker", id).Msg("webhook worker stopping")
			return
		case <-ticker.C:
			d.drainOnce(ctx)
		}
	}
}

// drainOnce claims one batch of due rows and delivers them.
func (d *Dispatcher) drainOnce(ctx context.Context) {
	events, err := d.webhookRepo.ClaimPending(ctx, 10)
	if err != nil {
		d.log.Error().Err(err).Msg("webhook: claim failed")
		return
	}
	for i := range events {
		d.Deliver(ctx, &events[i])
	}
}

// Deliver attempts one delivery of an outbox row and records the outcome.
func (d *Dispatcher) Deliver(ctx context.Context, event *domain.WebhookEvent) {
	attempt := event.Attempts + 1

	merchant, err := d.merchantRepo.GetByID(ctx, event.MerchantID)
	if err != nil {
		d.log.Error().Err(err).Int64("event_id", event.ID).Msg("webhook: merchant lookup failed")
		d.recordFailure(ctx, event, attempt, "", nil, fmt.Sprintf("merchant lookup: %v", err))
		return
	}
	if merchant == nil || !merchant.HasWebhook() {
		// Nothing to deliver to. Terminal, not retried.
		if err := d.webhookRepo.MarkFailed(ctx, event.ID, nil, "no webhook_url configured"); err != nil {
			d.log.Error().Err(err).Int64("event_id", event.ID).Msg("webhook: mark failed")
		}
		return
	}

	secret := merchant.WebhookSecret
	if secret == "" {
		secret = d.fallbackSecret
	}
	signature := d.sigSvc.Sign(secret, event.Payload)

	status, body, deliverErr := d.post(ctx, *merchant.WebhookURL, event, signature)

	logEntry := &domain.WebhookDeliveryLog{
		ID:         uuid.New(),
		EventID:    event.ID,
		MerchantID: event.MerchantID,
		WebhookURL: *merchant.WebhookURL,
		Event:      event.Event,
		Attempt:    attempt,
		CreatedAt:  time.Now().UTC(),
	}
	if status != 0 {
		logEntry.HTTPStatus = &status
	}
	if body != "" {
		truncated := truncate(body, 512)
		logEntry.ResponseBody = &truncated
	}

	if deliverErr == nil && status >= 200 && status < 300 {
		logEntry.Success = true
		if err := d.webhookRepo.MarkDelivered(ctx, event.ID, status, truncate(body, 512)); err != nil {
			d.log.Error().Err(err).Int64("event_id", event.ID).Msg("webhook: mark delivered")
		}
		if err := d.webhookRepo.CreateDeliveryLog(ctx, logEntry); err != nil {
			d.log.Error().Err(err).Int64("event_id", event.ID).Msg("webhook: log attempt")
		}
		d.log.Info().
			Int64("event_id", event.ID).
			Str("event", event.Event).
			Int("attempt", attempt).
			Int("status", status).
			Msg("webhook delivered")
		return
	}

	errMsg := fmt.Sprintf("http status %d", status)
	if deliverErr != nil {
		errMsg = deliverErr.Error()
	}
	logEntry.Error = &errMsg
	if err := d.webhookRepo.CreateDeliveryLog(ctx, logEntry); err != nil {
		d.log.Error().Err(err).Int64("event_id", event.ID).Msg("webhook: log attempt")
	}
	d.recordFailureRow(ctx, event, attempt, status, truncate(body, 512))
}

func (d *Dispatcher) recordFailure(ctx context.Context, event *domain.WebhookEvent, attempt int, url string, status *int, errMsg string) {
	logEntry := &domain.WebhookDeliveryLog{
		ID:         uuid.New(),
		EventID:    event.ID,
		MerchantID: event.MerchantID,
		WebhookURL: url,
		Event:      event.Event,
		Attempt:    attempt,
		HTTPStatus: status,
		Error:      &errMsg,
		CreatedAt:  time.Now().UTC(),
	}
	if err := d.webhookRepo.CreateDeliveryLog(ctx, logEntry); err != nil {
		d.log.Error().Err(err).Int64("event_id", event.ID).Msg("webhook: log attempt")
	}
	d.recordFailureRow(ctx, event, attempt, 0, "")
}

func (d *Dispatcher) recordFailureRow(ctx context.Context, event *domain.WebhookEvent, attempt, status int, body string) {
	var code *int
	if status != 0 {
		code = &status
	}
	if attempt >= d.maxAttempts {
		if err := d.webhookRepo.MarkFailed(ctx, event.ID, code, body); err != nil {
			d.log.Error().Err(err).Int64("event_id", event.ID).Msg("webhook: mark failed")
		}
		d.log.Warn().
			Int64("event_id", event.ID).
			Str("event", event.Event).
			Int("attempt", attempt).
			Msg("webhook abandoned after max attempts")
		return
	}

	next := time.Now().UTC().Add(Backoff(attempt))
	if err := d.webhookRepo.MarkRetry(ctx, event.ID, attempt, next, code, body); err != nil {
		d.log.Error().Err(err).Int64("event_id", event.ID).Msg("webhook: mark retry")
	}
	d.log.Warn().
		Int64("event_id", event.ID).
		Str("event", event.Event).
		Int("attempt", attempt).
		Time("next_attempt_at", next).
		Msg("webhook delivery failed, will retry")
}

// post delivers the exact stored body bytes with the signature headers.
func (d *Dispatcher) post(ctx context.Context, url string, event *domain.WebhookEvent, signature string) (int, string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, bytes.NewReader(event.Payload))
	if err != nil {
		return 0, "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-PayFlow-Signature", signature)
	req.Header.Set("X-PayFlow-Event", event.Event)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	buf := make([]byte, 512)
	n, _ := resp.Body.Read(buf)
	return resp.StatusCode, string(buf[:n]), nil
}

// Backoff returns the retry delay after the given attempt count:
// min(600, 2^attempts) seconds.
func Backoff(attempts int) time.Duration {
	secs := int64(600)
	if attempts < 10 {
		if v := int64(1) << uint(attempts); v < secs {
			secs = v
		}
	}
	return time.Duration(secs) * time.Second
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
