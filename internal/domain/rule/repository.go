package rule

import "context"

// Repository defines the interface for rule persistence
type Repository interface {
	// Create stores a new rule and returns its ID
	Create(ctx context.Context, r *Rule) (int64, error)

	// GetByID retrieves a rule by ID
	GetByID(ctx context.Context, id int64) (*Rule, error)

	// Update replaces the stored configuration and status of a rule
	Update(ctx context.Context, r *Rule) error

	// UpdateStatus sets only the status and its reason
	UpdateStatus(ctx context.Context, id int64, status Status, reason string) error

	// Delete removes a rule
	Delete(ctx context.Context, id int64) error

	// List retrieves all rules matching the filter
	List(ctx context.Context, filter Filter) ([]*Rule, error)

	// ListWithPagination retrieves a page of rules and the total count
	ListWithPagination(ctx context.Context, filter Filter, limit, offset int) ([]*Rule, int64, error)
}
