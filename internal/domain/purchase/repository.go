package purchase

import (
	"context"
)

// Repository defines the interface for purchase persistence operations
type Repository interface {
	// Create creates a new purchase
	Create(ctx context.Context, p *Purchase) error

	// Get retrieves a purchase by ID
	Get(ctx context.Context, id string) (*Purchase, error)

	// Update updates an existing purchase
	Update(ctx context.Context, p *Purchase) error

	// GetOriginalForSubscription returns the purchase that created the
	// subscription.
	GetOriginalForSubscription(ctx context.Context, subscriptionID string) (*Purchase, error)

	// GetLatestSuccessfulCharge returns the most recent successful charge
	// purchase for the subscription, including the original purchase. It
	// anchors the current billing period.
	GetLatestSuccessfulCharge(ctx context.Context, subscriptionID string) (*Purchase, error)

	// GetLatestCharge returns the most recent non-original charge purchase
	// for the subscription regardless of state, or ErrNotFound.
	GetLatestCharge(ctx context.Context, subscriptionID string) (*Purchase, error)

	// HasInProgressCharge reports whether a non-original charge purchase is
	// currently in progress for the subscription.
	HasInProgressCharge(ctx context.Context, subscriptionID string) (bool, error)

	// CountSuccessfulCharges counts successful charge purchases for the
	// subscription, including the original purchase.
	CountSuccessfulCharges(ctx context.Context, subscriptionID string) (int, error)

	// GetAuthorizationForPreorder returns the authorization purchase backing
	// the preorder.
	GetAuthorizationForPreorder(ctx context.Context, preorderID string) (*Purchase, error)

	// ListForPreorder returns all purchases linked to the preorder, newest
	// first.
	ListForPreorder(ctx context.Context, preorderID string) ([]*Purchase, error)
}
