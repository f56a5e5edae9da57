package backend

import (
	"context"

	"github.com/logs2metrics/l2m/internal/domain/rule"
)

// MetricsBackend manages the external resources backing one rule
type MetricsBackend interface {
	// Provision creates the retention policy, destination index and job.
	// Partial failures are cleaned up and reported in the result.
	Provision(ctx context.Context, r *rule.Rule) ProvisionResult

	// Deprovision stops and removes the job and index; errors are logged only
	Deprovision(ctx context.Context, r *rule.Rule)

	// GetStatus reads the live job state; it never returns an error
	GetStatus(ctx context.Context, r *rule.Rule) BackendStatus

	// Validate checks that the rule can be provisioned
	Validate(ctx context.Context, r *rule.Rule) ValidationResult
}
