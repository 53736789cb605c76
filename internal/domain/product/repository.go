package product

import (
	"context"

	"github.com/renewly/renewly/internal/types"
)

// Repository defines the interface for product catalog lookups
type Repository interface {
	// Get retrieves a product by ID
	Get(ctx context.Context, id string) (*Product, error)

	// GetTierPrice returns the nominal price for a tier/recurrence of the
	// product, or ErrNotFound when the combination is not offered.
	GetTierPrice(ctx context.Context, productID, tierID string, recurrence types.BillingPeriod) (*TierPrice, error)

	// GetOfferCode retrieves an offer code by ID
	GetOfferCode(ctx context.Context, id string) (*OfferCode, error)
}
