package service

import (
	"context"
	"time"

	"payflow-gateway/internal/core/domain"
	"payflow-gateway/internal/core/ports"
	"payflow-gateway/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const keyCacheTTL = 60 * time.Second

// dummyHash is compared against when the key_id is unknown so lookup
// timing does not reveal key existence. bcrypt hash of an unused value.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// KeyStoreService issues, resolves and revokes merchant API credentials.
type KeyStoreService struct {
	keyRepo      ports.ApiKeyRepository
	merchantRepo ports.MerchantRepository
	refs         ports.ReferenceService
	hasher       ports.HashService
	cache        ports.KeyCache
	log          zerolog.Logger
}

// NewKeyStoreService creates a new key store. cache may be nil.
func NewKeyStoreService(
	keyRepo ports.ApiKeyRepository,
	merchantRepo ports.MerchantRepository,
	refs ports.ReferenceService,
	hasher ports.HashService,
	cache ports.KeyCache,
	log zerolog.Logger,
) *KeyStoreService {
	return &KeyStoreService{
		keyRepo:      keyRepo,
		merchantRepo: merchantRepo,
		refs:         refs,
		hasher:       hasher,
		cache:        cache,
		log:          log,
	}
}

// IssueKey mints a new key pair for the merchant. The plaintext secret
// is returned exactly once; only its hash is persisted.
func (s *KeyStoreService) IssueKey(ctx context.Context, merchantID uuid.UUID, label string) (*ports.IssuedKey, error) {
	keyID, err := s.refs.KeyID()
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	secret, err := s.refs.KeySecret()
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	secretHash, err := s.hasher.Hash(secret)
	if err != nil {
		return nil, apperror.InternalError(err)
	}

	key := &domain.ApiKey{
		ID:            uuid.New(),
		MerchantID:    merchantID,
		KeyID:         keyID,
		KeySecretHash: secretHash,
		Label:         label,
		Active:        true,
		CreatedAt:     time.Now().UTC(),
	}

	if err := s.keyRepo.Create(ctx, key); err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}

	s.log.Info().
		Str("key_id", keyID).
		Str("merchant_id", merchantID.String()).
		Msg("api key issued")

	return &ports.IssuedKey{KeyID: keyID, KeySecret: secret, Key: key}, nil
}

// ResolveKey authenticates key_id:key_secret and returns the owning
// merchant. Unknown, inactive and wrong-secret all fail identically.
func (s *KeyStoreService) ResolveKey(ctx context.Context, keyID, keySecret string) (*domain.Merchant, error) {
	key, merchant, err := s.lookup(ctx, keyID)
	if err != nil {
		return nil, err
	}

	if key == nil || !key.Active {
		// Burn a hash comparison so the miss is not observable by timing.
		_, _ = s.hasher.Verify(keySecret, dummyHash)
		return nil, apperror.ErrInvalidCredentials()
	}

	ok, err := s.hasher.Verify(keySecret, key.KeySecretHash)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if !ok {
		return nil, apperror.ErrInvalidCredentials()
	}

	// Best-effort; auth does not depend on the bump landing.
	if err := s.keyRepo.TouchLastUsed(ctx, keyID, time.Now().UTC()); err != nil {
		s.log.Warn().Err(err).Str("key_id", keyID).Msg("last_used_at bump failed")
	}

	return merchant, nil
}

func (s *KeyStoreService) lookup(ctx context.Context, keyID string) (*domain.ApiKey, *domain.Merchant, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, keyID)
		if err != nil {
			s.log.Warn().Err(err).Msg("key cache read failed")
		} else if cached != nil {
			key := cached.Key
			merchant := cached.Merchant
			return &key, &merchant, nil
		}
	}

	key, err := s.keyRepo.GetByKeyID(ctx, keyID)
	if err != nil {
		return nil, nil, apperror.ErrDatabaseError(err)
	}
	if key == nil {
		return nil, nil, nil
	}

	merchant, err := s.merchantRepo.GetByID(ctx, key.MerchantID)
	if err != nil {
		return nil, nil, apperror.ErrDatabaseError(err)
	}
	if merchant == nil {
		return nil, nil, nil
	}

	if s.cache != nil && key.Active {
		entry := &ports.CachedKey{Key: *key, Merchant: *merchant}
		if err := s.cache.Set(ctx, keyID, entry, keyCacheTTL); err != nil {
			s.log.Warn().Err(err).Msg("key cache write failed")
		}
	}

	return key, merchant, nil
}

// RevokeKey flips active=false and drops the cache entry so the key
// fails authentication on the next request.
func (s *KeyStoreService) RevokeKey(ctx context.Context, merchantID uuid.UUID, keyID string) error {
	revoked, err := s.keyRepo.Revoke(ctx, merchantID, keyID)
	if err != nil {
		return apperror.ErrDatabaseError(err)
	}
	if !revoked {
		return apperror.ErrNotFound("api key")
	}

	if s.cache != nil {
		if err := s.cache.Delete(ctx, keyID); err != nil {
			s.log.Warn().Err(err).Str("key_id", keyID).Msg("key cache invalidation failed")
		}
	}

	s.log.Info().
		Str("key_id", keyID).
		Str("merchant_id", merchantID.String()).
		Msg("api key revoked")
	return nil
}

// ListKeys returns the merchant's keys. Secrets are never recoverable.
func (s *KeyStoreService) ListKeys(ctx context.Context, merchantID uuid.UUID) ([]domain.ApiKey, error) {
	keys, err := s.keyRepo.ListByMerchant(ctx, merchantID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	return keys, nil
}
