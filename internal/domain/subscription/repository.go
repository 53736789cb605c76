package subscription

import (
	"context"
	"time"
)

// Repository defines the interface for subscription persistence operations
type Repository interface {
	// Create creates a new subscription
	Create(ctx context.Context, sub *Subscription) error

	// Get retrieves a subscription by ID
	Get(ctx context.Context, id string) (*Subscription, error)

	// Update updates an existing subscription
	Update(ctx context.Context, sub *Subscription) error

	// ListOverdueCandidates returns alive, non-test subscriptions whose next
	// charge is at or before asOf, paginated for the discovery sweep. It is a
	// coarse filter: the eligibility evaluator makes the final decision.
	ListOverdueCandidates(ctx context.Context, asOf time.Time, limit, offset int) ([]*Subscription, error)
}
