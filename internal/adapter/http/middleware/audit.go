package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"payflow-gateway/internal/core/domain"
	"payflow-gateway/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AuditTrail creates an audit middleware that records successful write
// operations. Route patterns are matched after the handler runs so the
// response status is known.
func AuditTrail(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Only audit successful write operations (status 2xx)
		if c.Writer.Status() < 200 || c.Writer.Status() >= 300 {
			return
		}
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			return
		}

		action, resourceType, resourceID := mapRouteToAction(c)
		if action == "" {
			return
		}

		var merchantID *uuid.UUID
		if mid, exists := c.Get(CtxMerchantID); exists {
			if id, ok := mid.(uuid.UUID); ok {
				merchantID = &id
			}
		}

		details, _ := json.Marshal(map[string]interface{}{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
			"status": c.Writer.Status(),
		})

		auditSvc.Log(c.Request.Context(), &domain.AuditLog{
			ID:           uuid.New(),
			MerchantID:   merchantID,
			Action:       action,
			ResourceType: resourceType,
			ResourceID:   resourceID,
			IPAddress:    c.ClientIP(),
			Details:      string(details),
			CreatedAt:    time.Now(),
		})
	}
}

func mapRouteToAction(c *gin.Context) (domain.AuditAction, string, string) {
	route := c.FullPath()
	method := c.Request.Method

	switch {
	case route == "/auth/register" && method == http.MethodPost:
		return domain.AuditActionRegister, "user", ""
	case route == "/auth/login-json" && method == http.MethodPost:
		return domain.AuditActionLogin, "session", ""
	case route == "/v1/orders" && method == http.MethodPost:
		return domain.AuditActionOrderCreate, "order", ""
	case route == "/v1/payments/:payment_ref/capture" && method == http.MethodPost:
		return domain.AuditActionPaymentCapture, "payment", c.Param("payment_ref")
	case route == "/v1/payments/:payment_ref/refund" && method == http.MethodPost:
		return domain.AuditActionRefund, "payment", c.Param("payment_ref")
	case route == "/pay/:order_ref" && method == http.MethodPost:
		return domain.AuditActionCheckoutPay, "order", c.Param("order_ref")
	case route == "/merchants/me" && method == http.MethodPatch:
		return domain.AuditActionMerchantUpdate, "merchant", ""
	case route == "/merchants/me/keys" && method == http.MethodPost:
		return domain.AuditActionKeyIssue, "api_key", ""
	case route == "/merchants/me/keys/:key_id" && method == http.MethodDelete:
		return domain.AuditActionKeyRevoke, "api_key", c.Param("key_id")
	}
	return "", "", ""
}
