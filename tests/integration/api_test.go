package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	httpHandler "payflow-gateway/internal/adapter/http/handler"
	redisStorage "payflow-gateway/internal/adapter/storage/redis"
	"payflow-gateway/internal/service"
	"payflow-gateway/internal/service/fraud"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// testApp builds a full application stack over in-memory repos and a
// miniredis-backed cache layer. This exercises the real HTTP layer,
// middleware, handlers, services and Redis stores end-to-end.

type testApp struct {
	server *httptest.Server
	redis  *miniredis.Miniredis
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})

	// Redis stores
	idemCache := redisStorage.NewIdempotencyCache(rdb)
	keyCache := redisStorage.NewKeyCache(rdb)
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)

	// Core services with real implementations
	log := zerolog.Nop()
	hashSvc := service.NewBcryptHashService(bcrypt.MinCost)
	tokenSvc := service.NewJWTTokenService("integration-test-secret-0123456789ab", time.Hour, "payflow-test")
	refs := service.NewRandReferenceService()
	fraudEngine := fraud.NewEngine()
	authorizer := service.NewSimAuthorizer(1.0, 1) // always approves

	// In-memory repos
	userRepo := newInMemoryUserRepo()
	merchantRepo := newInMemoryMerchantRepo()
	keyRepo := newInMemoryKeyRepo()
	orderRepo := newInMemoryOrderRepo()
	paymentRepo := newInMemoryPaymentRepo()
	refundRepo := newInMemoryRefundRepo()
	webhookRepo := newInMemoryWebhookRepo()
	transactor := newInMemoryTransactor()

	// Business services
	authSvc := service.NewAuthService(userRepo, hashSvc, tokenSvc, log)
	merchantSvc := service.NewMerchantService(merchantRepo, refs, "http://localhost:3000", log)
	keystoreSvc := service.NewKeyStoreService(keyRepo, merchantRepo, refs, hashSvc, keyCache, log)
	orderSvc := service.NewOrderService(orderRepo, paymentRepo, transactor, refs, idemCache, log)
	webhookSvc := service.NewWebhookService(webhookRepo, log)
	paymentSvc := service.NewPaymentService(paymentRepo, orderRepo, refundRepo, transactor, refs, webhookSvc, idemCache, log)
	checkoutSvc := service.NewCheckoutService(orderRepo, paymentRepo, merchantRepo, transactor, refs, fraudEngine, authorizer, webhookSvc, log)
	reportingSvc := service.NewReportingService(paymentRepo)

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		AuthSvc:        authSvc,
		MerchantSvc:    merchantSvc,
		KeyStoreSvc:    keystoreSvc,
		OrderSvc:       orderSvc,
		PaymentSvc:     paymentSvc,
		CheckoutSvc:    checkoutSvc,
		WebhookSvc:     webhookSvc,
		ReportingSvc:   reportingSvc,
		TokenSvc:       tokenSvc,
		RateLimitStore: rateLimitStore,
		Logger:         log,
	})

	server := httptest.NewServer(router)
	return &testApp{server: server, redis: mr}
}

func (a *testApp) close() {
	a.server.Close()
	a.redis.Close()
}

// request fires one HTTP call against the test server and decodes the
// JSON body. Pass configure to set auth headers.
func (a *testApp) request(t *testing.T, method, path string, body any, configure func(*http.Request)) (int, map[string]any) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, a.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if configure != nil {
		configure(req)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp.StatusCode, decoded
}

func bearer(token string) func(*http.Request) {
	return func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

func basic(keyID, keySecret string) func(*http.Request) {
	return func(req *http.Request) {
		req.SetBasicAuth(keyID, keySecret)
	}
}

// registerMerchant walks the dashboard onboarding: register, login,
// create the merchant profile, issue an API key. Returns the key pair.
func registerMerchant(t *testing.T, app *testApp, email string) (keyID, keySecret string) {
	t.Helper()

	code, _ := app.request(t, http.MethodPost, "/auth/register", map[string]any{
		"name":     "Alice",
		"email":    email,
		"password": "supersecret",
		"role":     "merchant",
	}, nil)
	require.Equal(t, http.StatusCreated, code)

	code, body := app.request(t, http.MethodPost, "/auth/login-json", map[string]any{
		"email":    email,
		"password": "supersecret",
	}, nil)
	require.Equal(t, http.StatusOK, code)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)

	code, _ = app.request(t, http.MethodPost, "/merchants", map[string]any{
		"business_name":  "Acme Stores",
		"business_email": email,
	}, bearer(token))
	require.Equal(t, http.StatusCreated, code)

	code, body = app.request(t, http.MethodPost, "/merchants/me/keys", map[string]any{
		"label": "test key",
	}, bearer(token))
	require.Equal(t, http.StatusCreated, code)
	keyID, _ = body["key_id"].(string)
	keySecret, _ = body["key_secret"].(string)
	require.NotEmpty(t, keyID)
	require.NotEmpty(t, keySecret)
	return keyID, keySecret
}

// --- Integration Tests ---

func TestIntegration_HealthCheck(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	code, body := app.request(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", body["status"])
}

func TestIntegration_RegisterAndLogin(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	code, body := app.request(t, http.MethodPost, "/auth/register", map[string]any{
		"name":     "Alice",
		"email":    "alice@example.com",
		"password": "supersecret",
		"role":     "merchant",
	}, nil)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "alice@example.com", body["email"])

	code, body = app.request(t, http.MethodPost, "/auth/login-json", map[string]any{
		"email":    "alice@example.com",
		"password": "supersecret",
	}, nil)
	require.Equal(t, http.StatusOK, code)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)

	code, body = app.request(t, http.MethodGet, "/auth/me", nil, bearer(token))
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "alice@example.com", body["email"])
}

func TestIntegration_LoginWrongPassword(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	code, _ := app.request(t, http.MethodPost, "/auth/register", map[string]any{
		"name":     "Alice",
		"email":    "alice@example.com",
		"password": "supersecret",
		"role":     "merchant",
	}, nil)
	require.Equal(t, http.StatusCreated, code)

	code, _ = app.request(t, http.MethodPost, "/auth/login-json", map[string]any{
		"email":    "alice@example.com",
		"password": "not-the-password",
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestIntegration_OrderRequiresAuth(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	code, _ := app.request(t, http.MethodPost, "/v1/orders", map[string]any{
		"amount":   50_000,
		"currency": "INR",
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = app.request(t, http.MethodPost, "/v1/orders", map[string]any{
		"amount":   50_000,
		"currency": "INR",
	}, basic("pf_key_bogus", "pf_sec_bogus"))
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestIntegration_FullPaymentFlow(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	keyID, keySecret := registerMerchant(t, app, "alice@example.com")

	// Create an order over the key-authenticated API.
	code, body := app.request(t, http.MethodPost, "/v1/orders", map[string]any{
		"amount":   50_000,
		"currency": "INR",
		"receipt":  "rcpt-42",
	}, basic(keyID, keySecret))
	require.Equal(t, http.StatusCreated, code)
	orderRef, _ := body["order_ref"].(string)
	require.NotEmpty(t, orderRef)
	assert.Equal(t, "created", body["status"])

	// The public checkout page sees the business name and amount.
	code, body = app.request(t, http.MethodGet, "/pay/"+orderRef+"/merchant", nil, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Acme Stores", body["business_name"])
	assert.Equal(t, float64(50_000), body["amount"])

	// Pay. The sim authorizer approves everything, and orders
	// auto-capture by default.
	code, body = app.request(t, http.MethodPost, "/pay/"+orderRef, map[string]any{
		"method": "upi",
		"vpa":    "alice@upi",
	}, nil)
	require.Equal(t, http.StatusCreated, code)
	paymentRef, _ := body["payment_ref"].(string)
	require.NotEmpty(t, paymentRef)
	assert.Equal(t, "captured", body["status"])

	// The order is now paid and a second attempt is rejected.
	code, body = app.request(t, http.MethodGet, "/v1/orders/"+orderRef, nil, basic(keyID, keySecret))
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "paid", body["status"])

	code, _ = app.request(t, http.MethodPost, "/pay/"+orderRef, map[string]any{
		"method": "upi",
		"vpa":    "alice@upi",
	}, nil)
	assert.Equal(t, http.StatusConflict, code)

	// Refund part of the captured payment.
	code, body = app.request(t, http.MethodPost, fmt.Sprintf("/v1/payments/%s/refund", paymentRef), map[string]any{
		"amount": 10_000,
	}, basic(keyID, keySecret))
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "processed", body["status"])

	code, body = app.request(t, http.MethodGet, "/v1/payments/"+paymentRef, nil, basic(keyID, keySecret))
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "partially_refunded", body["status"])
}

func TestIntegration_IdempotentOrderCreate(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	keyID, keySecret := registerMerchant(t, app, "alice@example.com")

	withKey := func(req *http.Request) {
		req.SetBasicAuth(keyID, keySecret)
		req.Header.Set("X-Idempotency-Key", "create-1")
	}

	code, body := app.request(t, http.MethodPost, "/v1/orders", map[string]any{
		"amount":   50_000,
		"currency": "INR",
	}, withKey)
	require.Equal(t, http.StatusCreated, code)
	first, _ := body["order_ref"].(string)
	require.NotEmpty(t, first)

	// Replaying the same key returns the stored order, not a new one.
	code, body = app.request(t, http.MethodPost, "/v1/orders", map[string]any{
		"amount":   50_000,
		"currency": "INR",
	}, withKey)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, first, body["order_ref"])
}

func TestIntegration_CheckoutUnknownOrder(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	code, _ := app.request(t, http.MethodGet, "/pay/pf_order_missing/merchant", nil, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestIntegration_RevokedKeyStopsAuthenticating(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	keyID, keySecret := registerMerchant(t, app, "alice@example.com")

	// Key works, and the login is repeated to confirm the cache path.
	for i := 0; i < 2; i++ {
		code, _ := app.request(t, http.MethodGet, "/v1/orders", nil, basic(keyID, keySecret))
		require.Equal(t, http.StatusOK, code)
	}

	// Revoke over the dashboard API.
	code, body := app.request(t, http.MethodPost, "/auth/login-json", map[string]any{
		"email":    "alice@example.com",
		"password": "supersecret",
	}, nil)
	require.Equal(t, http.StatusOK, code)
	token, _ := body["token"].(string)

	code, _ = app.request(t, http.MethodDelete, "/merchants/me/keys/"+keyID, nil, bearer(token))
	require.Equal(t, http.StatusNoContent, code)

	code, _ = app.request(t, http.MethodGet, "/v1/orders", nil, basic(keyID, keySecret))
	assert.Equal(t, http.StatusUnauthorized, code)
}
