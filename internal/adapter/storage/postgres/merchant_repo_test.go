package postgres

import (
	"context"
	"testing"
	"time"

	"payflow-gateway/internal/core/domain"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func newTestMerchant() *domain.Merchant {
	return &domain.Merchant{
		ID:            uuid.New(),
		UserID:        uuid.New(),
		BusinessName:  "Test Shop",
		BusinessEmail: "billing@testshop.example",
		Website:       strPtr("https://testshop.example"),
		WebhookURL:    strPtr("https://testshop.example/hooks"),
		WebhookSecret: "whsec",
		CreatedAt:     time.Now().UTC().Truncate(time.Microsecond),
		UpdatedAt:     time.Now().UTC().Truncate(time.Microsecond),
	}
}

func merchantTestColumns() []string {
	return []string{"id", "user_id", "business_name", "business_email", "website", "webhook_url", "webhook_secret", "created_at", "updated_at"}
}

func merchantRow(m *domain.Merchant) *pgxmock.Rows {
	return pgxmock.NewRows(merchantTestColumns()).AddRow(
		m.ID, m.UserID, m.BusinessName, m.BusinessEmail,
		m.Website, m.WebhookURL, m.WebhookSecret,
		m.CreatedAt, m.UpdatedAt,
	)
}

func TestMerchantRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewMerchantRepo(mock)
	m := newTestMerchant()

	mock.ExpectExec("INSERT INTO merchants").
		WithArgs(m.ID, m.UserID, m.BusinessName, m.BusinessEmail,
			m.Website, m.WebhookURL, m.WebhookSecret,
			m.CreatedAt, m.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = repo.Create(context.Background(), m)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMerchantRepo_GetByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewMerchantRepo(mock)
	m := newTestMerchant()

	mock.ExpectQuery("SELECT .+ FROM merchants WHERE id").
		WithArgs(m.ID).
		WillReturnRows(merchantRow(m))

	result, err := repo.GetByID(context.Background(), m.ID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, m.ID, result.ID)
	assert.Equal(t, m.BusinessName, result.BusinessName)
	assert.Equal(t, m.WebhookSecret, result.WebhookSecret)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMerchantRepo_GetByID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewMerchantRepo(mock)

	mock.ExpectQuery("SELECT .+ FROM merchants WHERE id").
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(merchantTestColumns()))

	result, err := repo.GetByID(context.Background(), uuid.New())
	assert.NoError(t, err)
	assert.Nil(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMerchantRepo_GetByUserID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewMerchantRepo(mock)
	m := newTestMerchant()

	mock.ExpectQuery("SELECT .+ FROM merchants WHERE user_id").
		WithArgs(m.UserID).
		WillReturnRows(merchantRow(m))

	result, err := repo.GetByUserID(context.Background(), m.UserID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, m.UserID, result.UserID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMerchantRepo_Update(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewMerchantRepo(mock)
	m := newTestMerchant()

	mock.ExpectExec("UPDATE merchants").
		WithArgs(m.BusinessName, m.Website, m.WebhookURL, m.UpdatedAt, m.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err = repo.Update(context.Background(), m)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMerchantRepo_Update_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewMerchantRepo(mock)
	m := newTestMerchant()

	mock.ExpectExec("UPDATE merchants").
		WithArgs(m.BusinessName, m.Website, m.WebhookURL, m.UpdatedAt, m.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = repo.Update(context.Background(), m)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
