package domain

// Fraud rule names stored on flagged payments.
const (
	FraudRuleHighValue       = "high_value"
	FraudRuleDuplicateAmount = "duplicate_amount"
	FraudRuleHighFrequency   = "high_frequency"
	FraudRuleInvalidVPA      = "invalid_vpa"
	FraudRuleVelocity        = "velocity"
)

// FraudResult is the outcome of evaluating a payment attempt against
// the rule set. Flagged attempts are not auto-declined.
type FraudResult struct {
	IsFlagged bool     `json:"is_flagged"`
	Rules     []string `json:"rules"`
}
