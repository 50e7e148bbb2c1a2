// Package policy evaluates configurable rules over the outcome of a failed
// payment attempt to decide what the customer may do next. Rules are
// govaluate expressions compiled once at construction and checked in
// priority order; the first match wins.
package policy

import (
	"fmt"
	"sort"

	"github.com/Knetic/govaluate"
)

// Decision is the action set a matched rule (or the default) permits.
type Decision struct {
	AllowRetry       bool // retry with the same method, subject to the rate limiter
	RequireNewMethod bool // retry only after changing card or method
	EscalateSupport  bool // surface the contact-support action prominently
	Reason           string
}

// Rule is one configurable policy expression. Parameters available to the
// expression: code, retryable, attempt_count, remaining_attempts, amount.
type Rule struct {
	ID         string
	Expression string
	Priority   int // lower evaluates first
	Decision   Decision
}

// Enforcer holds the compiled rule set.
type Enforcer struct {
	rules []compiledRule
}

type compiledRule struct {
	rule Rule
	expr *govaluate.EvaluableExpression
}

// NewEnforcer compiles the rules, failing on any invalid expression.
func NewEnforcer(rules []Rule) (*Enforcer, error) {
	compiled := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		if r.Expression == "" {
			return nil, fmt.Errorf("policy rule %q has an empty expression", r.ID)
		}
		expr, err := govaluate.NewEvaluableExpression(r.Expression)
		if err != nil {
			return nil, fmt.Errorf("failed to compile rule %q: %w", r.ID, err)
		}
		compiled = append(compiled, compiledRule{rule: r, expr: expr})
	}
	sort.SliceStable(compiled, func(i, j int) bool {
		return compiled[i].rule.Priority < compiled[j].rule.Priority
	})
	return &Enforcer{rules: compiled}, nil
}

// Params is the evaluation input for one failed attempt.
type Params struct {
	Code              string
	Retryable         bool
	AttemptCount      int
	RemainingAttempts int
	Amount            int64
}

func (p Params) values() map[string]any {
	return map[string]any{
		"code":               p.Code,
		"retryable":          p.Retryable,
		"attempt_count":      p.AttemptCount,
		"remaining_attempts": p.RemainingAttempts,
		"amount":             p.Amount,
	}
}

// Evaluate returns the first matching rule's decision. When no rule
// matches, the default decision derives from the failure's retryable flag.
// A rule whose evaluation errors is skipped; a misconfigured rule must not
// block a payment decision.
func (e *Enforcer) Evaluate(p Params) Decision {
	values := p.values()
	for _, cr := range e.rules {
		out, err := cr.expr.Evaluate(values)
		if err != nil {
			continue
		}
		matched, ok := out.(bool)
		if !ok || !matched {
			continue
		}
		d := cr.rule.Decision
		if d.Reason == "" {
			d.Reason = "rule " + cr.rule.ID
		}
		return d
	}
	return Decision{
		AllowRetry:       p.Retryable && p.RemainingAttempts > 0,
		RequireNewMethod: !p.Retryable,
		Reason:           "default",
	}
}
