package fraud

import (
	"regexp"

	"payflow-gateway/internal/core/domain"
	"payflow-gateway/internal/core/ports"
)

// Thresholds in minor currency units.
const (
	highValueThreshold = 50_000
	velocityThreshold  = 200_000
	frequencyThreshold = 5
)

var vpaPattern = regexp.MustCompile(`(?i)^[a-z0-9._-]{2,}@[a-z]{2,}$`)

// DefaultRules returns the production rule set in evaluation order.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name: domain.FraudRuleHighValue,
			Match: func(attempt ports.FraudAttempt, _ []domain.Payment) bool {
				return attempt.Amount > highValueThreshold
			},
		},
		{
			Name: domain.FraudRuleDuplicateAmount,
			Match: func(attempt ports.FraudAttempt, history []domain.Payment) bool {
				for _, p := range history {
					if p.Amount == attempt.Amount {
						return true
					}
				}
				return false
			},
		},
		{
			Name: domain.FraudRuleHighFrequency,
			Match: func(_ ports.FraudAttempt, history []domain.Payment) bool {
				return len(history) > frequencyThreshold
			},
		},
		{
			Name: domain.FraudRuleInvalidVPA,
			Match: func(attempt ports.FraudAttempt, _ []domain.Payment) bool {
				if attempt.Method != domain.PaymentMethodUPI {
					return false
				}
				return !vpaPattern.MatchString(attempt.VPA)
			},
		},
		{
			Name: domain.FraudRuleVelocity,
			Match: func(attempt ports.FraudAttempt, history []domain.Payment) bool {
				total := attempt.Amount
				for _, p := range history {
					total += p.Amount
				}
				return total > velocityThreshold
			},
		},
	}
}
