package planchange

import "context"

// Repository defines the interface for plan change persistence operations
type Repository interface {
	// Create creates a new plan change
	Create(ctx context.Context, change *PlanChange) error

	// Get retrieves a plan change by ID
	Get(ctx context.Context, id string) (*PlanChange, error)

	// Update updates an existing plan change
	Update(ctx context.Context, change *PlanChange) error

	// GetLiveForSubscription returns the single live (not applied, not
	// deleted) plan change for the subscription, or ErrNotFound.
	GetLiveForSubscription(ctx context.Context, subscriptionID string) (*PlanChange, error)

	// ListLiveForSubscription returns all live plan changes for the
	// subscription, newest first. More than one indicates older changes that
	// must be superseded when the newest is applied.
	ListLiveForSubscription(ctx context.Context, subscriptionID string) ([]*PlanChange, error)
}
