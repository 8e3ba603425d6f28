package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"payflow-gateway/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ApiKeyRepo implements ports.ApiKeyRepository.
type ApiKeyRepo struct {
	pool Pool
}

// NewApiKeyRepo creates a new ApiKeyRepo.
func NewApiKeyRepo(pool Pool) *ApiKeyRepo {
	return &ApiKeyRepo{pool: pool}
}

const apiKeyColumns = `id, merchant_id, key_id, key_secret_hash, label, active, created_at, last_used_at`

// Create inserts a new API key.
func (r *ApiKeyRepo) Create(ctx context.Context, k *domain.ApiKey) error {
	query := `INSERT INTO api_keys (id, merchant_id, key_id, key_secret_hash, label, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.pool.Exec(ctx, query,
		k.ID, k.MerchantID, k.KeyID, k.KeySecretHash, k.Label, k.Active, k.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert api key: %w", err)
	}
	return nil
}

// GetByKeyID fetches a key by its public key_id.
func (r *ApiKeyRepo) GetByKeyID(ctx context.Context, keyID string) (*domain.ApiKey, error) {
	query := `SELECT ` + apiKeyColumns + ` FROM api_keys WHERE key_id = $1`
	return scanApiKey(r.pool.QueryRow(ctx, query, keyID))
}

// ListByMerchant returns the merchant's keys, newest first.
func (r *ApiKeyRepo) ListByMerchant(ctx context.Context, merchantID uuid.UUID) ([]domain.ApiKey, error) {
	query := `SELECT ` + apiKeyColumns + ` FROM api_keys WHERE merchant_id = $1 ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, merchantID)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()

	var keys []domain.ApiKey
	for rows.Next() {
		var k domain.ApiKey
		if err := rows.Scan(
			&k.ID, &k.MerchantID, &k.KeyID, &k.KeySecretHash,
			&k.Label, &k.Active, &k.CreatedAt, &k.LastUsedAt,
		); err != nil {
			return nil, fmt.Errorf("scan api key row: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate api key rows: %w", err)
	}
	return keys, nil
}

// Revoke deactivates the merchant's key. The merchant filter stops one
// merchant from revoking another's key.
func (r *ApiKeyRepo) Revoke(ctx context.Context, merchantID uuid.UUID, keyID string) (bool, error) {
	query := `UPDATE api_keys SET active = FALSE WHERE merchant_id = $1 AND key_id = $2 AND active`

	tag, err := r.pool.Exec(ctx, query, merchantID, keyID)
	if err != nil {
		return false, fmt.Errorf("revoke api key: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// TouchLastUsed bumps the key's last_used_at timestamp.
func (r *ApiKeyRepo) TouchLastUsed(ctx context.Context, keyID string, at time.Time) error {
	query := `UPDATE api_keys SET last_used_at = $1 WHERE key_id = $2`

	if _, err := r.pool.Exec(ctx, query, at, keyID); err != nil {
		return fmt.Errorf("touch api key: %w", err)
	}
	return nil
}

func scanApiKey(row pgx.Row) (*domain.ApiKey, error) {
	k := &domain.ApiKey{}
	err := row.Scan(
		&k.ID, &k.MerchantID, &k.KeyID, &k.KeySecretHash,
		&k.Label, &k.Active, &k.CreatedAt, &k.LastUsedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan api key: %w", err)
	}
	return k, nil
}
