package fraud

import (
	"testing"

	"payflow-gateway/internal/core/domain"
	"payflow-gateway/internal/core/ports"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func paymentsOf(amounts ...int64) []domain.Payment {
	out := make([]domain.Payment, 0, len(amounts))
	for _, a := range amounts {
		out = append(out, domain.Payment{Amount: a})
	}
	return out
}

func cardAttempt(amount int64) ports.FraudAttempt {
	return ports.FraudAttempt{
		MerchantID: uuid.New(),
		Amount:     amount,
		Method:     domain.PaymentMethodCard,
	}
}

func TestEngine_CleanAttempt(t *testing.T) {
	engine := NewEngine()

	result := engine.Evaluate(cardAttempt(1000), nil)

	assert.False(t, result.IsFlagged)
	assert.Empty(t, result.Rules)
}

func TestEngine_HighValue(t *testing.T) {
	engine := NewEngine()

	// At the threshold: not flagged
	result := engine.Evaluate(cardAttempt(50_000), nil)
	assert.NotContains(t, result.Rules, domain.FraudRuleHighValue)

	// One above: flagged
	result = engine.Evaluate(cardAttempt(50_001), nil)
	assert.True(t, result.IsFlagged)
	assert.Contains(t, result.Rules, domain.FraudRuleHighValue)
}

func TestEngine_DuplicateAmount(t *testing.T) {
	engine := NewEngine()

	history := paymentsOf(999, 1500)

	result := engine.Evaluate(cardAttempt(1500), history)
	assert.Contains(t, result.Rules, domain.FraudRuleDuplicateAmount)

	result = engine.Evaluate(cardAttempt(1501), history)
	assert.NotContains(t, result.Rules, domain.FraudRuleDuplicateAmount)
}

func TestEngine_HighFrequency(t *testing.T) {
	engine := NewEngine()

	// Exactly 5 prior attempts: not flagged
	result := engine.Evaluate(cardAttempt(1), paymentsOf(2, 3, 4, 5, 6))
	assert.NotContains(t, result.Rules, domain.FraudRuleHighFrequency)

	// 6 prior attempts: flagged
	result = engine.Evaluate(cardAttempt(1), paymentsOf(2, 3, 4, 5, 6, 7))
	assert.Contains(t, result.Rules, domain.FraudRuleHighFrequency)
}

func TestEngine_InvalidVPA(t *testing.T) {
	engine := NewEngine()

	upi := func(vpa string) ports.FraudAttempt {
		return ports.FraudAttempt{Amount: 100, Method: domain.PaymentMethodUPI, VPA: vpa}
	}

	valid := []string{"alice@okbank", "bob.smith@upi", "a1@in", "x_y-z@bank"}
	for _, vpa := range valid {
		result := engine.Evaluate(upi(vpa), nil)
		assert.NotContains(t, result.Rules, domain.FraudRuleInvalidVPA, "vpa %q should be valid", vpa)
	}

	invalid := []string{"", "noat", "a@b", "@bank", "alice@", "alice@bank1", "spa ce@bank"}
	for _, vpa := range invalid {
		result := engine.Evaluate(upi(vpa), nil)
		assert.Contains(t, result.Rules, domain.FraudRuleInvalidVPA, "vpa %q should be invalid", vpa)
	}

	// Card attempts never trip the VPA rule
	result := engine.Evaluate(ports.FraudAttempt{Amount: 100, Method: domain.PaymentMethodCard, VPA: ""}, nil)
	assert.NotContains(t, result.Rules, domain.FraudRuleInvalidVPA)
}

func TestEngine_Velocity(t *testing.T) {
	engine := NewEngine()

	// Attempt plus history at the threshold: not flagged
	result := engine.Evaluate(cardAttempt(10_000), paymentsOf(100_000, 90_000))
	assert.NotContains(t, result.Rules, domain.FraudRuleVelocity)

	// One above the threshold: flagged
	result = engine.Evaluate(cardAttempt(10_001), paymentsOf(100_000, 90_000))
	assert.Contains(t, result.Rules, domain.FraudRuleVelocity)
}

func TestEngine_MultipleRules(t *testing.T) {
	engine := NewEngine()

	history := paymentsOf(60_000, 60_000, 60_000, 60_000, 60_000, 60_000)
	result := engine.Evaluate(cardAttempt(60_000), history)

	assert.True(t, result.IsFlagged)
	assert.ElementsMatch(t, []string{
		domain.FraudRuleHighValue,
		domain.FraudRuleDuplicateAmount,
		domain.FraudRuleHighFrequency,
		domain.FraudRuleVelocity,
	}, result.Rules)
}

func TestEngineWithRules_Custom(t *testing.T) {
	always := Rule{
		Name:  "always",
		Match: func(ports.FraudAttempt, []domain.Payment) bool { return true },
	}
	engine := NewEngineWithRules([]Rule{always})

	result := engine.Evaluate(cardAttempt(1), nil)
	assert.True(t, result.IsFlagged)
	assert.Equal(t, []string{"always"}, result.Rules)
}
