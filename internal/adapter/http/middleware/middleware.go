package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"payflow-gateway/internal/core/domain"
	"payflow-gateway/internal/core/ports"
	"payflow-gateway/pkg/apperror"
	"payflow-gateway/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// Context keys
	CtxMerchant   = "merchant"
	CtxMerchantID = "merchant_id"
	CtxUser       = "user"
	CtxUserID     = "user_id"
	CtxRole       = "role"
)

// BasicAuth authenticates merchant API requests with a key_id:key_secret
// pair in the Authorization header. The resolved merchant is attached to
// the request context.
func BasicAuth(keystore ports.KeyStoreService, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		keyID, keySecret, ok := c.Request.BasicAuth()
		if !ok || keyID == "" || keySecret == "" {
			c.Header("WWW-Authenticate", `Basic realm="payflow"`)
			response.Error(c, apperror.ErrInvalidCredentials())
			c.Abort()
			return
		}

		merchant, err := keystore.ResolveKey(c.Request.Context(), keyID, keySecret)
		if err != nil {
			var appErr *apperror.AppError
			if errors.As(err, &appErr) && appErr.HTTPStatus < http.StatusInternalServerError {
				c.Header("WWW-Authenticate", `Basic realm="payflow"`)
			} else {
				log.Error().Err(err).Msg("api key resolution failed")
			}
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(CtxMerchant, merchant)
		c.Set(CtxMerchantID, merchant.ID)
		c.Next()
	}
}

// JWTAuth validates a Bearer token for dashboard routes and attaches the
// authenticated user to the request context.
func JWTAuth(tokenSvc ports.TokenService, authSvc ports.AuthService, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			response.Error(c, apperror.ErrInvalidToken())
			c.Abort()
			return
		}

		claims, err := tokenSvc.Validate(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			response.Error(c, apperror.ErrInvalidToken())
			c.Abort()
			return
		}

		user, err := authSvc.GetUser(c.Request.Context(), claims.Email)
		if err != nil {
			log.Error().Err(err).Msg("failed to load token subject")
			response.Error(c, apperror.ErrInvalidToken())
			c.Abort()
			return
		}

		c.Set(CtxUser, user)
		c.Set(CtxUserID, user.ID)
		c.Set(CtxRole, user.Role)
		c.Next()
	}
}

// RequireRole rejects requests whose authenticated user does not hold one
// of the given roles. Must run after JWTAuth.
func RequireRole(roles ...domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		val, exists := c.Get(CtxRole)
		if !exists {
			response.Error(c, apperror.ErrForbidden())
			c.Abort()
			return
		}
		role, ok := val.(domain.Role)
		if !ok {
			response.Error(c, apperror.ErrForbidden())
			c.Abort()
			return
		}
		for _, r := range roles {
			if role == r {
				c.Next()
				return
			}
		}
		response.Error(c, apperror.ErrForbidden())
		c.Abort()
	}
}

// MerchantFromContext returns the merchant set by BasicAuth.
func MerchantFromContext(c *gin.Context) (*domain.Merchant, bool) {
	val, exists := c.Get(CtxMerchant)
	if !exists {
		return nil, false
	}
	m, ok := val.(*domain.Merchant)
	return m, ok
}

// UserFromContext returns the user set by JWTAuth.
func UserFromContext(c *gin.Context) (*domain.User, bool) {
	val, exists := c.Get(CtxUser)
	if !exists {
		return nil, false
	}
	u, ok := val.(*domain.User)
	return u, ok
}

// MaxBodySize caps request body size.
func MaxBodySize(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}

// RequestID attaches a request ID to every request. An incoming
// X-Request-ID header is honoured so upstream proxies can correlate;
// otherwise a fresh UUID is generated. The ID is echoed in the
// response header and stored in the context for response envelopes.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

// CORS allows the hosted checkout frontend to call the gateway from the
// browser. Only the configured frontend origin is permitted.
func CORS(frontendURL string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && origin == frontendURL {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID, X-Idempotency-Key")
			c.Header("Access-Control-Max-Age", "600")
			c.Header("Vary", "Origin")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// RequestLogger logs every HTTP request with a status-dependent level.
func RequestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		status := c.Writer.Status()

		event := log.Info()
		if status >= http.StatusInternalServerError {
			event = log.Error()
		} else if status >= http.StatusBadRequest {
			event = log.Warn()
		}

		event.
			Str("request_id", c.GetString("request_id")).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", latency).
			Str("client_ip", c.ClientIP()).
			Msg("http request")
	}
}

// Recovery creates a panic recovery middleware.
func Recovery(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Str("path", c.Request.URL.Path).Msg("panic recovered")
				response.Error(c, apperror.InternalError(fmt.Errorf("panic: %v", r)))
				c.Abort()
			}
		}()
		c.Next()
	}
}
