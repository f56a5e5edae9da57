package cost

import (
	"context"

	"github.com/logs2metrics/l2m/internal/domain/rule"
)

// DefaultLogRetentionDays is the assumed retention of the source logs
const DefaultLogRetentionDays = 30

// Estimator projects the cost of converting logs into a metric
type Estimator interface {
	// Estimate fetches live volume and cardinality statistics for the rule's source
	Estimate(ctx context.Context, r *rule.Rule, logRetentionDays int) (CostEstimate, error)
}

// Evaluator runs the pre-creation guardrail checks
type Evaluator interface {
	// Evaluate never fails; engine errors degrade to a zero estimate
	Evaluate(ctx context.Context, r *rule.Rule) *GuardrailsReport
}
