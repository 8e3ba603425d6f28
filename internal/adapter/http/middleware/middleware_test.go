package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"payflow-gateway/internal/core/domain"
	"payflow-gateway/internal/core/ports"
	"payflow-gateway/internal/core/ports/mocks"
	"payflow-gateway/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// ==================== BasicAuth Tests ====================

func basicAuthRouter(keystore ports.KeyStoreService) *gin.Engine {
	router := gin.New()
	router.GET("/v1/orders", BasicAuth(keystore, zerolog.Nop()), func(c *gin.Context) {
		merchant, ok := MerchantFromContext(c)
		if !ok {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "merchant missing from context"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"merchant_id": merchant.ID})
	})
	return router
}

func TestBasicAuth_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	keystore := mocks.NewMockKeyStoreService(ctrl)
	merchantID := uuid.New()
	keystore.EXPECT().
		ResolveKey(gomock.Any(), "pf_key_1", "pf_sec_1").
		Return(&domain.Merchant{ID: merchantID}, nil)

	router := basicAuthRouter(keystore)

	req := httptest.NewRequest(http.MethodGet, "/v1/orders", nil)
	req.SetBasicAuth("pf_key_1", "pf_sec_1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), merchantID.String())
}

func TestBasicAuth_MissingHeader(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	router := basicAuthRouter(mocks.NewMockKeyStoreService(ctrl))

	req := httptest.NewRequest(http.MethodGet, "/v1/orders", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Header().Get("WWW-Authenticate"), "payflow")
}

func TestBasicAuth_BadCredentials(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	keystore := mocks.NewMockKeyStoreService(ctrl)
	keystore.EXPECT().
		ResolveKey(gomock.Any(), "pf_key_1", "wrong").
		Return(nil, apperror.ErrInvalidCredentials())

	router := basicAuthRouter(keystore)

	req := httptest.NewRequest(http.MethodGet, "/v1/orders", nil)
	req.SetBasicAuth("pf_key_1", "wrong")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

// ==================== JWTAuth Tests ====================

func jwtRouter(tokenSvc ports.TokenService, authSvc ports.AuthService, roles ...domain.Role) *gin.Engine {
	router := gin.New()
	handlers := []gin.HandlerFunc{JWTAuth(tokenSvc, authSvc, zerolog.Nop())}
	if len(roles) > 0 {
		handlers = append(handlers, RequireRole(roles...))
	}
	handlers = append(handlers, func(c *gin.Context) {
		user, _ := UserFromContext(c)
		c.JSON(http.StatusOK, gin.H{"email": user.Email})
	})
	router.GET("/dashboard/me", handlers...)
	return router
}

func TestJWTAuth_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	tokenSvc := mocks.NewMockTokenService(ctrl)
	authSvc := mocks.NewMockAuthService(ctrl)

	tokenSvc.EXPECT().Validate("good-token").Return(&ports.TokenClaims{
		Email: "alice@example.com",
		Role:  domain.RoleMerchant,
	}, nil)
	authSvc.EXPECT().GetUser(gomock.Any(), "alice@example.com").Return(&domain.User{
		ID:    uuid.New(),
		Email: "alice@example.com",
		Role:  domain.RoleMerchant,
	}, nil)

	router := jwtRouter(tokenSvc, authSvc)

	req := httptest.NewRequest(http.MethodGet, "/dashboard/me", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "alice@example.com")
}

func TestJWTAuth_MissingBearer(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	router := jwtRouter(mocks.NewMockTokenService(ctrl), mocks.NewMockAuthService(ctrl))

	req := httptest.NewRequest(http.MethodGet, "/dashboard/me", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestJWTAuth_InvalidToken(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	tokenSvc := mocks.NewMockTokenService(ctrl)
	tokenSvc.EXPECT().Validate("bad-token").Return(nil, apperror.ErrInvalidToken())

	router := jwtRouter(tokenSvc, mocks.NewMockAuthService(ctrl))

	req := httptest.NewRequest(http.MethodGet, "/dashboard/me", nil)
	req.Header.Set("Authorization", "Bearer bad-token")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

// ==================== RequireRole Tests ====================

func TestRequireRole_Allowed(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	tokenSvc := mocks.NewMockTokenService(ctrl)
	authSvc := mocks.NewMockAuthService(ctrl)

	tokenSvc.EXPECT().Validate("admin-token").Return(&ports.TokenClaims{
		Email: "admin@example.com",
		Role:  domain.RoleAdmin,
	}, nil)
	authSvc.EXPECT().GetUser(gomock.Any(), "admin@example.com").Return(&domain.User{
		ID:    uuid.New(),
		Email: "admin@example.com",
		Role:  domain.RoleAdmin,
	}, nil)

	router := jwtRouter(tokenSvc, authSvc, domain.RoleAdmin)

	req := httptest.NewRequest(http.MethodGet, "/dashboard/me", nil)
	req.Header.Set("Authorization", "Bearer admin-token")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireRole_Forbidden(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	tokenSvc := mocks.NewMockTokenService(ctrl)
	authSvc := mocks.NewMockAuthService(ctrl)

	tokenSvc.EXPECT().Validate("merchant-token").Return(&ports.TokenClaims{
		Email: "alice@example.com",
		Role:  domain.RoleMerchant,
	}, nil)
	authSvc.EXPECT().GetUser(gomock.Any(), "alice@example.com").Return(&domain.User{
		ID:    uuid.New(),
		Email: "alice@example.com",
		Role:  domain.RoleMerchant,
	}, nil)

	router := jwtRouter(tokenSvc, authSvc, domain.RoleAdmin)

	req := httptest.NewRequest(http.MethodGet, "/dashboard/me", nil)
	req.Header.Set("Authorization", "Bearer merchant-token")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

// ==================== MaxBodySize Tests ====================

func TestMaxBodySize(t *testing.T) {
	router := gin.New()
	router.POST("/echo", MaxBodySize(16), func(c *gin.Context) {
		var body map[string]any
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "too large"})
			return
		}
		c.JSON(http.StatusOK, body)
	})

	small := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(`{"a":1}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, small)
	assert.Equal(t, http.StatusOK, w.Code)

	big := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(`{"a":"`+strings.Repeat("x", 64)+`"}`))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, big)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

// ==================== Recovery Tests ====================

func TestRecovery_UsesErrorEnvelope(t *testing.T) {
	router := gin.New()
	router.Use(Recovery(zerolog.Nop()))
	router.GET("/boom", func(c *gin.Context) {
		panic("kaboom")
	})

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, apperror.CodeInternal, body.Error.Code)
	assert.NotContains(t, body.Error.Message, "kaboom")
}

// ==================== RequestID Tests ====================

func TestRequestID_Generated(t *testing.T) {
	router := gin.New()
	router.Use(RequestID())
	router.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("request_id"))
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	id := w.Header().Get("X-Request-ID")
	assert.NotEmpty(t, id)
	assert.Equal(t, id, w.Body.String())
}

func TestRequestID_HonoursIncomingHeader(t *testing.T) {
	router := gin.New()
	router.Use(RequestID())
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Request-ID", "req-abc-123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "req-abc-123", w.Header().Get("X-Request-ID"))
}

// ==================== CORS Tests ====================

func TestCORS_AllowsFrontendOrigin(t *testing.T) {
	router := gin.New()
	router.Use(CORS("https://pay.example.com"))
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "https://pay.example.com")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "https://pay.example.com", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_RejectsOtherOrigins(t *testing.T) {
	router := gin.New()
	router.Use(CORS("https://pay.example.com"))
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCORS_PreflightShortCircuits(t *testing.T) {
	router := gin.New()
	router.Use(CORS("https://pay.example.com"))
	router.POST("/pay/pf_order_1", func(c *gin.Context) {
		t.Fatal("handler must not run on preflight")
	})

	req := httptest.NewRequest(http.MethodOptions, "/pay/pf_order_1", nil)
	req.Header.Set("Origin", "https://pay.example.com")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "POST")
}
