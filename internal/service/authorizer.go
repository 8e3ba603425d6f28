package service

import (
	"context"
	"math/rand"
	"slices"
	"sync"

	"payflow-gateway/internal/core/domain"
	"payflow-gateway/internal/core/ports"
)

// SimAuthorizer implements ports.Authorizer with a configurable success
// rate. It stands in for an acquiring bank; no network call is made.
type SimAuthorizer struct {
	successRate float64
	mu          sync.Mutex
	rng         *rand.Rand
}

// NewSimAuthorizer creates a simulator authorizing successRate of
// attempts (0.0 to 1.0). The seed makes runs reproducible in tests.
func NewSimAuthorizer(successRate float64, seed int64) *SimAuthorizer {
	return &SimAuthorizer{
		successRate: successRate,
		rng:         rand.New(rand.NewSource(seed)),
	}
}

// Authorize returns the simulated verdict. UPI attempts flagged for a
// malformed VPA are declined outright; other fraud flags pass through
// to the random draw.
func (a *SimAuthorizer) Authorize(_ context.Context, req ports.AuthorizeRequest) ports.AuthorizeResult {
	if req.Method == domain.PaymentMethodUPI && slices.Contains(req.Fraud.Rules, domain.FraudRuleInvalidVPA) {
		return ports.AuthorizeResult{
			Approved:    false,
			ErrorCode:   "BAD_REQUEST_ERROR",
			ErrorReason: "invalid VPA",
		}
	}

	a.mu.Lock()
	draw := a.rng.Float64()
	a.mu.Unlock()

	if draw < a.successRate {
		return ports.AuthorizeResult{Approved: true}
	}
	return ports.AuthorizeResult{
		Approved:    false,
		ErrorCode:   "PAYMENT_DECLINED",
		ErrorReason: "payment declined by issuer",
	}
}
