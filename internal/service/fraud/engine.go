package fraud

import (
	"payflow-gateway/internal/core/domain"
	"payflow-gateway/internal/core/ports"
)

// Rule is one named fraud predicate over a payment attempt and the
// merchant's recent payment history.
type Rule struct {
	Name  string
	Match func(attempt ports.FraudAttempt, history []domain.Payment) bool
}

// Engine implements ports.FraudEngine as a fold over an ordered rule set.
type Engine struct {
	rules []Rule
}

// NewEngine creates an engine with the default rule set.
func NewEngine() *Engine {
	return &Engine{rules: DefaultRules()}
}

// NewEngineWithRules creates an engine with a custom rule set.
func NewEngineWithRules(rules []Rule) *Engine {
	return &Engine{rules: rules}
}

// Evaluate runs every rule and collects the hits. Flagged attempts are
// not declined here; the result decorates the payment row.
func (e *Engine) Evaluate(attempt ports.FraudAttempt, history []domain.Payment) domain.FraudResult {
	var hits []string
	for _, rule := range e.rules {
		if rule.Match(attempt, history) {
			hits = append(hits, rule.Name)
		}
	}
	return domain.FraudResult{
		IsFlagged: len(hits) > 0,
		Rules:     hits,
	}
}
