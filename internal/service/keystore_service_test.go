package service

import (
	"context"
	"testing"

	"payflow-gateway/internal/core/domain"
	"payflow-gateway/internal/core/ports"
	"payflow-gateway/internal/core/ports/mocks"
	"payflow-gateway/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type keyStoreTestDeps struct {
	svc          *KeyStoreService
	keyRepo      *mocks.MockApiKeyRepository
	merchantRepo *mocks.MockMerchantRepository
	refs         *mocks.MockReferenceService
	hasher       *mocks.MockHashService
	cache        *mocks.MockKeyCache
	ctrl         *gomock.Controller
}

func setupKeyStoreService(t *testing.T) *keyStoreTestDeps {
	ctrl := gomock.NewController(t)
	d := &keyStoreTestDeps{
		keyRepo:      mocks.NewMockApiKeyRepository(ctrl),
		merchantRepo: mocks.NewMockMerchantRepository(ctrl),
		refs:         mocks.NewMockReferenceService(ctrl),
		hasher:       mocks.NewMockHashService(ctrl),
		cache:        mocks.NewMockKeyCache(ctrl),
		ctrl:         ctrl,
	}
	d.svc = NewKeyStoreService(
		d.keyRepo, d.merchantRepo, d.refs, d.hasher, d.cache, zerolog.Nop(),
	)
	return d
}

// ==================== IssueKey Tests ====================

func TestKeyStoreService_IssueKey(t *testing.T) {
	d := setupKeyStoreService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	merchantID := uuid.New()

	d.refs.EXPECT().KeyID().Return("pf_key_abcd1234", nil)
	d.refs.EXPECT().KeySecret().Return("pf_sec_plaintext", nil)
	d.hasher.EXPECT().Hash("pf_sec_plaintext").Return("secret-hash", nil)
	d.keyRepo.EXPECT().Create(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, key *domain.ApiKey) error {
			assert.Equal(t, "secret-hash", key.KeySecretHash)
			assert.True(t, key.Active)
			return nil
		})

	issued, err := d.svc.IssueKey(ctx, merchantID, "production")
	require.NoError(t, err)
	assert.Equal(t, "pf_key_abcd1234", issued.KeyID)
	assert.Equal(t, "pf_sec_plaintext", issued.KeySecret, "plaintext secret is returned exactly once")
	assert.Equal(t, "production", issued.Key.Label)
}

// ==================== ResolveKey Tests ====================

func TestKeyStoreService_ResolveKey_CacheHit(t *testing.T) {
	d := setupKeyStoreService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	merchantID := uuid.New()
	cached := &ports.CachedKey{
		Key: domain.ApiKey{
			KeyID:         "pf_key_1",
			MerchantID:    merchantID,
			KeySecretHash: "secret-hash",
			Active:        true,
		},
		Merchant: domain.Merchant{ID: merchantID, BusinessName: "Acme"},
	}

	d.cache.EXPECT().Get(ctx, "pf_key_1").Return(cached, nil)
	d.hasher.EXPECT().Verify("secret", "secret-hash").Return(true, nil)
	d.keyRepo.EXPECT().TouchLastUsed(ctx, "pf_key_1", gomock.Any()).Return(nil)

	merchant, err := d.svc.ResolveKey(ctx, "pf_key_1", "secret")
	require.NoError(t, err)
	assert.Equal(t, "Acme", merchant.BusinessName)
}

func TestKeyStoreService_ResolveKey_CacheMissPopulatesCache(t *testing.T) {
	d := setupKeyStoreService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	merchantID := uuid.New()
	key := &domain.ApiKey{
		KeyID:         "pf_key_1",
		MerchantID:    merchantID,
		KeySecretHash: "secret-hash",
		Active:        true,
	}

	d.cache.EXPECT().Get(ctx, "pf_key_1").Return(nil, nil)
	d.keyRepo.EXPECT().GetByKeyID(ctx, "pf_key_1").Return(key, nil)
	d.merchantRepo.EXPECT().GetByID(ctx, merchantID).Return(&domain.Merchant{ID: merchantID}, nil)
	d.cache.EXPECT().Set(ctx, "pf_key_1", gomock.Any(), keyCacheTTL).Return(nil)
	d.hasher.EXPECT().Verify("secret", "secret-hash").Return(true, nil)
	d.keyRepo.EXPECT().TouchLastUsed(ctx, "pf_key_1", gomock.Any()).Return(nil)

	merchant, err := d.svc.ResolveKey(ctx, "pf_key_1", "secret")
	require.NoError(t, err)
	assert.Equal(t, merchantID, merchant.ID)
}

func TestKeyStoreService_ResolveKey_UnknownKeyBurnsHash(t *testing.T) {
	d := setupKeyStoreService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()

	d.cache.EXPECT().Get(ctx, "pf_key_missing").Return(nil, nil)
	d.keyRepo.EXPECT().GetByKeyID(ctx, "pf_key_missing").Return(nil, nil)
	// The dummy comparison still runs so unknown keys are not
	// distinguishable from wrong secrets by timing.
	d.hasher.EXPECT().Verify("secret", dummyHash).Return(false, nil)

	merchant, err := d.svc.ResolveKey(ctx, "pf_key_missing", "secret")
	assert.Nil(t, merchant)
	assertAppError(t, err, apperror.CodeUnauthenticated)
}

func TestKeyStoreService_ResolveKey_RevokedKey(t *testing.T) {
	d := setupKeyStoreService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	merchantID := uuid.New()

	d.cache.EXPECT().Get(ctx, "pf_key_1").Return(nil, nil)
	d.keyRepo.EXPECT().GetByKeyID(ctx, "pf_key_1").Return(&domain.ApiKey{
		KeyID:         "pf_key_1",
		MerchantID:    merchantID,
		KeySecretHash: "secret-hash",
		Active:        false,
	}, nil)
	d.merchantRepo.EXPECT().GetByID(ctx, merchantID).Return(&domain.Merchant{ID: merchantID}, nil)
	d.hasher.EXPECT().Verify("secret", dummyHash).Return(false, nil)

	merchant, err := d.svc.ResolveKey(ctx, "pf_key_1", "secret")
	assert.Nil(t, merchant)
	assertAppError(t, err, apperror.CodeUnauthenticated)
}

func TestKeyStoreService_ResolveKey_WrongSecret(t *testing.T) {
	d := setupKeyStoreService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	merchantID := uuid.New()

	d.cache.EXPECT().Get(ctx, "pf_key_1").Return(&ports.CachedKey{
		Key: domain.ApiKey{
			KeyID:         "pf_key_1",
			MerchantID:    merchantID,
			KeySecretHash: "secret-hash",
			Active:        true,
		},
		Merchant: domain.Merchant{ID: merchantID},
	}, nil)
	d.hasher.EXPECT().Verify("wrong", "secret-hash").Return(false, nil)

	merchant, err := d.svc.ResolveKey(ctx, "pf_key_1", "wrong")
	assert.Nil(t, merchant)
	assertAppError(t, err, apperror.CodeUnauthenticated)
}

// ==================== RevokeKey Tests ====================

func TestKeyStoreService_RevokeKey_Success(t *testing.T) {
	d := setupKeyStoreService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	merchantID := uuid.New()

	d.keyRepo.EXPECT().Revoke(ctx, merchantID, "pf_key_1").Return(true, nil)
	d.cache.EXPECT().Delete(ctx, "pf_key_1").Return(nil)

	err := d.svc.RevokeKey(ctx, merchantID, "pf_key_1")
	require.NoError(t, err)
}

func TestKeyStoreService_RevokeKey_NotFound(t *testing.T) {
	d := setupKeyStoreService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	merchantID := uuid.New()

	d.keyRepo.EXPECT().Revoke(ctx, merchantID, "pf_key_x").Return(false, nil)

	err := d.svc.RevokeKey(ctx, merchantID, "pf_key_x")
	assertAppError(t, err, apperror.CodeNotFound)
}

// ==================== ListKeys Tests ====================

func TestKeyStoreService_ListKeys(t *testing.T) {
	d := setupKeyStoreService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	merchantID := uuid.New()

	d.keyRepo.EXPECT().ListByMerchant(ctx, merchantID).Return([]domain.ApiKey{
		{KeyID: "pf_key_1", Active: true},
		{KeyID: "pf_key_2", Active: false},
	}, nil)

	keys, err := d.svc.ListKeys(ctx, merchantID)
	require.NoError(t, err)
	assert.Len(t, keys, 2)
}
