package postgres

import (
	"context"
	"fmt"
	"time"

	"payflow-gateway/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// claimLease is how long a claimed outbox row stays invisible to other
// workers. It must exceed the delivery timeout.
const claimLease = time.Minute

// WebhookRepo implements ports.WebhookRepository: the durable outbox
// plus per-attempt delivery logs.
type WebhookRepo struct {
	pool Pool
}

// NewWebhookRepo creates a new WebhookRepo.
func NewWebhookRepo(pool Pool) *WebhookRepo {
	return &WebhookRepo{pool: pool}
}

const webhookEventColumns = `id, merchant_id, event, payload, status, attempts, next_attempt_at, last_response_code, last_response_body, created_at, updated_at`

// Enqueue appends an outbox row inside the caller's transaction, so the
// event commits atomically with the state change that caused it.
func (r *WebhookRepo) Enqueue(ctx context.Context, tx pgx.Tx, e *domain.WebhookEvent) error {
	query := `INSERT INTO webhook_events (merchant_id, event, payload, status, attempts, next_attempt_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		RETURNING id`

	err := tx.QueryRow(ctx, query,
		e.MerchantID, e.Event, e.Payload, e.Status,
		e.Attempts, e.NextAttemptAt, e.CreatedAt,
	).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("enqueue webhook event: %w", err)
	}
	return nil
}

// ClaimPending leases up to limit due pending rows. Claimed rows have
// their next_attempt_at pushed forward so concurrent workers skip them.
func (r *WebhookRepo) ClaimPending(ctx context.Context, limit int) ([]domain.WebhookEvent, error) {
	query := `UPDATE webhook_events
		SET next_attempt_at = $1, updated_at = $1
		WHERE id IN (
			SELECT id FROM webhook_events
			WHERE status = 'pending' AND next_attempt_at <= $2
			ORDER BY next_attempt_at
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + webhookEventColumns

	now := time.Now().UTC()
	rows, err := r.pool.Query(ctx, query, now.Add(claimLease), now, limit)
	if err != nil {
		return nil, fmt.Errorf("claim webhook events: %w", err)
	}
	defer rows.Close()

	var events []domain.WebhookEvent
	for rows.Next() {
		var e domain.WebhookEvent
		if err := rows.Scan(
			&e.ID, &e.MerchantID, &e.Event, &e.Payload, &e.Status,
			&e.Attempts, &e.NextAttemptAt, &e.LastResponseCode,
			&e.LastResponseBody, &e.CreatedAt, &e.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan webhook event row: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate webhook event rows: %w", err)
	}
	return events, nil
}

// MarkDelivered records a successful delivery.
func (r *WebhookRepo) MarkDelivered(ctx context.Context, id int64, responseCode int, responseBody string) error {
	query := `UPDATE webhook_events
		SET status = 'delivered', attempts = attempts + 1,
			last_response_code = $1, last_response_body = $2, updated_at = $3
		WHERE id = $4`

	if _, err := r.pool.Exec(ctx, query, responseCode, responseBody, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("mark webhook delivered: %w", err)
	}
	return nil
}

// MarkRetry records a failed attempt and schedules the next one.
func (r *WebhookRepo) MarkRetry(ctx context.Context, id int64, attempts int, nextAttemptAt time.Time, responseCode *int, responseBody string) error {
	query := `UPDATE webhook_events
		SET attempts = $1, next_attempt_at = $2,
			last_response_code = $3, last_response_body = $4, updated_at = $5
		WHERE id = $6`

	if _, err := r.pool.Exec(ctx, query, attempts, nextAttemptAt, responseCode, responseBody, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("mark webhook retry: %w", err)
	}
	return nil
}

// MarkFailed moves the event to its terminal failed state.
func (r *WebhookRepo) MarkFailed(ctx context.Context, id int64, responseCode *int, responseBody string) error {
	query := `UPDATE webhook_events
		SET status = 'failed', attempts = attempts + 1,
			last_response_code = $1, last_response_body = $2, updated_at = $3
		WHERE id = $4`

	if _, err := r.pool.Exec(ctx, query, responseCode, responseBody, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("mark webhook failed: %w", err)
	}
	return nil
}

// CreateDeliveryLog records one delivery attempt.
func (r *WebhookRepo) CreateDeliveryLog(ctx context.Context, l *domain.WebhookDeliveryLog) error {
	query := `INSERT INTO webhook_delivery_logs (id, event_id, merchant_id, webhook_url, event, attempt, http_status, success, response_body, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.pool.Exec(ctx, query,
		l.ID, l.EventID, l.MerchantID, l.WebhookURL, l.Event,
		l.Attempt, l.HTTPStatus, l.Success, l.ResponseBody, l.Error, l.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert delivery log: %w", err)
	}
	return nil
}

// ListLogsByMerchant returns the merchant's delivery attempts, newest first.
func (r *WebhookRepo) ListLogsByMerchant(ctx context.Context, merchantID uuid.UUID, limit int) ([]domain.WebhookDeliveryLog, error) {
	query := `SELECT id, event_id, merchant_id, webhook_url, event, attempt, http_status, success, response_body, error, created_at
		FROM webhook_delivery_logs
		WHERE merchant_id = $1
		ORDER BY created_at DESC LIMIT $2`

	rows, err := r.pool.Query(ctx, query, merchantID, limit)
	if err != nil {
		return nil, fmt.Errorf("list delivery logs: %w", err)
	}
	defer rows.Close()

	var logs []domain.WebhookDeliveryLog
	for rows.Next() {
		var l domain.WebhookDeliveryLog
		if err := rows.Scan(
			&l.ID, &l.EventID, &l.MerchantID, &l.WebhookURL, &l.Event,
			&l.Attempt, &l.HTTPStatus, &l.Success, &l.ResponseBody, &l.Error, &l.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan delivery log row: %w", err)
		}
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate delivery log rows: %w", err)
	}
	return logs, nil
}
