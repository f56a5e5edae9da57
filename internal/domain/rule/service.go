package rule

import "context"

// CreateOptions tunes rule creation
type CreateOptions struct {
	// SkipGuardrails stores the rule even when policy checks fail
	SkipGuardrails bool
}

// HealthCheck inspects the live backend of an active rule and reports the
// reason when it is unhealthy
type HealthCheck func(ctx context.Context, r *Rule) (reason string, unhealthy bool)

// Service defines the interface for rule lifecycle management.
// Every status-changing call for a given rule ID is serialized.
type Service interface {
	// Create validates, gates and stores a rule; active rules are provisioned
	Create(ctx context.Context, r *Rule, opts CreateOptions) (*Rule, error)

	// GetByID retrieves a rule
	GetByID(ctx context.Context, id int64) (*Rule, error)

	// List retrieves rules with filters and pagination
	List(ctx context.Context, filter Filter, limit, offset int) ([]*Rule, int64, error)

	// Update applies a patch and drives the backend through the state machine
	Update(ctx context.Context, id int64, patch Patch) (*Rule, error)

	// Delete deprovisions an active or failed rule and removes it
	Delete(ctx context.Context, id int64) error

	// ReconcileHealth runs check on a still-active rule and moves it to error
	// when unhealthy, unless the rule changed while check was running
	ReconcileHealth(ctx context.Context, id int64, check HealthCheck) (bool, error)
}
