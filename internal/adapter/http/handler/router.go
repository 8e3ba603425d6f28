package handler

import (
	"payflow-gateway/internal/adapter/http/middleware"
	redisStore "payflow-gateway/internal/adapter/storage/redis"
	"payflow-gateway/internal/core/domain"
	"payflow-gateway/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	AuthSvc        ports.AuthService
	MerchantSvc    ports.MerchantService
	KeyStoreSvc    ports.KeyStoreService
	OrderSvc       ports.OrderService
	PaymentSvc     ports.PaymentService
	CheckoutSvc    ports.CheckoutService
	WebhookSvc     ports.WebhookService
	ReportingSvc   ports.ReportingService
	TokenSvc       ports.TokenService
	AuditSvc       ports.AuditService         // nil = audit trail disabled
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	FrontendURL    string // "" = CORS disabled
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	if deps.FrontendURL != "" {
		r.Use(middleware.CORS(deps.FrontendURL))
	}
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit
	if deps.AuditSvc != nil {
		r.Use(middleware.AuditTrail(deps.AuditSvc))
	}

	// Health check (verifies PostgreSQL + Redis)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	// Swagger documentation
	swagger := r.Group("/swagger")
	{
		swagger.GET("", SwaggerUI)
		swagger.GET("/spec", SwaggerSpec)
	}

	// Rate limit rules
	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	// --- Public hosted checkout ---
	checkoutHandler := NewCheckoutHandler(deps.CheckoutSvc)
	pay := r.Group("/pay/:order_ref")
	{
		pay.GET("/merchant", rl("checkout"), checkoutHandler.Info)
		pay.POST("", rl("checkout"), checkoutHandler.Pay)
	}

	// --- Key-authenticated merchant API ---
	basicAuth := middleware.BasicAuth(deps.KeyStoreSvc, deps.Logger)
	orderHandler := NewOrderHandler(deps.OrderSvc)
	paymentHandler := NewPaymentHandler(deps.PaymentSvc)
	webhookHandler := NewWebhookHandler(deps.WebhookSvc)

	orders := r.Group("/v1/orders", basicAuth)
	{
		orders.POST("", rl("orders"), orderHandler.Create)
		orders.GET("", rl("orders"), orderHandler.List)
		orders.GET("/:order_ref", rl("orders"), orderHandler.Get)
		orders.GET("/:order_ref/payments", rl("orders"), orderHandler.ListPayments)
	}

	payments := r.Group("/v1/payments", basicAuth)
	{
		payments.GET("/:payment_ref", rl("orders"), paymentHandler.Get)
		payments.POST("/:payment_ref/capture", rl("orders"), paymentHandler.Capture)
		payments.POST("/:payment_ref/refund", rl("refunds"), paymentHandler.CreateRefund)
		payments.GET("/:payment_ref/refunds", rl("orders"), paymentHandler.ListRefunds)
	}

	r.GET("/v1/webhooks/logs", basicAuth, rl("orders"), webhookHandler.Logs)

	// --- Dashboard API (JWT-authenticated) ---
	authHandler := NewAuthHandler(deps.AuthSvc)
	auth := r.Group("/auth")
	{
		auth.POST("/register", rl("auth_register"), authHandler.Register)
		auth.POST("/login-json", rl("auth_login"), authHandler.Login)
	}

	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.AuthSvc, deps.Logger)
	authed := r.Group("/auth", jwtAuth)
	{
		authed.GET("/me", rl("dashboard"), authHandler.Me)
		authed.POST("/change-password", rl("dashboard"), authHandler.ChangePassword)
	}

	merchantHandler := NewMerchantHandler(deps.MerchantSvc, deps.KeyStoreSvc, deps.WebhookSvc)
	merchants := r.Group("/merchants", jwtAuth, middleware.RequireRole(domain.RoleMerchant, domain.RoleAdmin))
	{
		merchants.POST("", rl("dashboard"), merchantHandler.Create)
		merchants.GET("/me", rl("dashboard"), merchantHandler.Get)
		merchants.PATCH("/me", rl("dashboard"), merchantHandler.Update)
		merchants.GET("/me/qr-code", rl("dashboard"), merchantHandler.CheckoutQR)
		merchants.POST("/me/keys", rl("dashboard"), merchantHandler.IssueKey)
		merchants.GET("/me/keys", rl("dashboard"), merchantHandler.ListKeys)
		merchants.DELETE("/me/keys/:key_id", rl("dashboard"), merchantHandler.RevokeKey)
		merchants.GET("/me/webhook-logs", rl("dashboard"), merchantHandler.WebhookLogs)
	}

	adminHandler := NewAdminHandler(deps.ReportingSvc)
	admin := r.Group("/admin", jwtAuth, middleware.RequireRole(domain.RoleAdmin))
	{
		admin.GET("/stats", rl("dashboard"), adminHandler.Stats)
		admin.GET("/flagged", rl("dashboard"), adminHandler.Flagged)
	}

	return r
}
