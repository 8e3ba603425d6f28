package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"payflow-gateway/config"
	httpHandler "payflow-gateway/internal/adapter/http/handler"
	pgStorage "payflow-gateway/internal/adapter/storage/postgres"
	redisStorage "payflow-gateway/internal/adapter/storage/redis"
	"payflow-gateway/internal/core/ports"
	"payflow-gateway/internal/service"
	"payflow-gateway/internal/service/fraud"
	"payflow-gateway/migrations"
	"payflow-gateway/pkg/logger"
)

const bcryptCost = 12

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Msg("Starting PayFlow gateway")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// Apply schema migrations
	if err := pgStorage.Migrate(ctx, pool, migrations.FS, log); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply migrations")
	}

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// Initialize repositories
	userRepo := pgStorage.NewUserRepo(pool)
	merchantRepo := pgStorage.NewMerchantRepo(pool)
	apiKeyRepo := pgStorage.NewApiKeyRepo(pool)
	orderRepo := pgStorage.NewOrderRepo(pool)
	paymentRepo := pgStorage.NewPaymentRepo(pool)
	refundRepo := pgStorage.NewRefundRepo(pool)
	webhookRepo := pgStorage.NewWebhookRepo(pool)
	auditRepo := pgStorage.NewAuditRepository(pool)
	transactor := pgStorage.NewTransactor(pool)

	// Initialize Redis stores
	idempotencyCache := redisStorage.NewIdempotencyCache(rdb)
	keyCache := redisStorage.NewKeyCache(rdb)
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)

	// Initialize core services
	refs := service.NewRandReferenceService()
	sigSvc := service.NewHMACSignatureService()
	hashSvc := service.NewBcryptHashService(bcryptCost)
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)

	// Initialize business services
	authSvc := service.NewAuthService(userRepo, hashSvc, tokenSvc, log)
	merchantSvc := service.NewMerchantService(merchantRepo, refs, cfg.Gateway.FrontendURL, log)
	keystoreSvc := service.NewKeyStoreService(apiKeyRepo, merchantRepo, refs, hashSvc, keyCache, log)
	webhookSvc := service.NewWebhookService(webhookRepo, log)
	orderSvc := service.NewOrderService(orderRepo, paymentRepo, transactor, refs, idempotencyCache, log)
	paymentSvc := service.NewPaymentService(paymentRepo, orderRepo, refundRepo, transactor, refs, webhookSvc, idempotencyCache, log)
	fraudEngine := fraud.NewEngine()
	authorizer := service.NewSimAuthorizer(cfg.Gateway.AuthorizerSuccessRate, cfg.Gateway.AuthorizerSeed)
	checkoutSvc := service.NewCheckoutService(orderRepo, paymentRepo, merchantRepo, transactor, refs, fraudEngine, authorizer, webhookSvc, log)
	reportingSvc := service.NewReportingService(paymentRepo)
	auditSvc := service.NewAuditService(auditRepo, log)

	// Start the webhook outbox dispatcher
	dispatcher := service.NewDispatcher(
		webhookRepo,
		merchantRepo,
		sigSvc,
		&http.Client{Timeout: 10 * time.Second},
		service.DispatcherConfig{
			Workers:        cfg.Gateway.DispatcherWorkers,
			PollInterval:   cfg.Gateway.DispatcherPoll,
			MaxAttempts:    cfg.Gateway.WebhookMaxAttempts,
			FallbackSecret: cfg.Gateway.WebhookSigningSecret,
		},
		log,
	)
	dispatcher.Start(ctx)

	// Initialize health checkers
	pgHealth := pgStorage.NewHealthCheck(pool)
	redisHealth := redisStorage.NewHealthCheck(rdb)

	// Load OpenAPI spec for Swagger UI
	if specBytes, err := os.ReadFile("docs/api/openapi.yaml"); err == nil {
		httpHandler.SetSwaggerSpec(specBytes)
		log.Info().Msg("OpenAPI spec loaded for Swagger UI at /swagger")
	} else {
		log.Warn().Err(err).Msg("OpenAPI spec not found, Swagger UI will be unavailable")
	}

	// Setup Gin router with all routes
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
		AuditSvc:       auditSvc,
		RateLimitStore: rateLimitStore,
		HealthCheckers: []ports.HealthChecker{pgHealth, redisHealth},
		FrontendURL:    cfg.Gateway.FrontendURL,
		Logger:         log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	// Stop dispatcher workers, then drain in-flight HTTP requests.
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
