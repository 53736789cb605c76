package product

import (
	"time"

	ierr "github.com/renewly/renewly/internal/errors"
	"github.com/renewly/renewly/internal/types"
)

// Product is the seller-side collaborator of the billing core. Only the
// attributes billing decisions depend on are modeled here.
type Product struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	SellerID string `json:"seller_id"`

	// ReleaseAt is set for preorder products; captures are only allowed once
	// the release window has opened.
	ReleaseAt *time.Time `json:"release_at,omitempty"`

	SellerSuspendedForFraud bool `json:"seller_suspended_for_fraud"`

	types.BaseModel
}

// IsInChargeableReleaseWindow reports whether preorder captures may run.
func (p *Product) IsInChargeableReleaseWindow(now time.Time) bool {
	return p.ReleaseAt != nil && !p.ReleaseAt.After(now)
}

// TierPrice is the nominal price of one tier/recurrence combination.
type TierPrice struct {
	ProductID         string              `json:"product_id"`
	TierID            string              `json:"tier_id"`
	Recurrence        types.BillingPeriod `json:"recurrence"`
	PriceCents        int64               `json:"price_cents"`
	FlatFeeApplicable bool                `json:"flat_fee_applicable"`
}

// OfferCode is a discount applied to a subscription's agreed price. A
// duration-limited offer only discounts the first DurationInBillingCycles
// charges.
type OfferCode struct {
	ID            string `json:"id"`
	DiscountCents int64  `json:"discount_cents"`

	// DurationInBillingCycles limits how many charges the discount covers.
	// Nil means the discount applies for the life of the subscription.
	DurationInBillingCycles *int `json:"duration_in_billing_cycles,omitempty"`
}

// IsElapsed reports whether the discount no longer applies given how many
// successful charges the subscription has accumulated.
func (o *OfferCode) IsElapsed(successfulCharges int) bool {
	return o.DurationInBillingCycles != nil && successfulCharges >= *o.DurationInBillingCycles
}

// DiscountFor returns the discount for the next charge, zero when elapsed.
func (o *OfferCode) DiscountFor(successfulCharges int) int64 {
	if o.IsElapsed(successfulCharges) {
		return 0
	}
	return o.DiscountCents
}

// Validate validates the offer code
func (o *OfferCode) Validate() error {
	if o.DiscountCents < 0 {
		return ierr.NewError("discount cannot be negative").Mark(ierr.ErrValidation)
	}
	if o.DurationInBillingCycles != nil && *o.DurationInBillingCycles <= 0 {
		return ierr.NewError("offer duration must be positive").Mark(ierr.ErrValidation)
	}
	return nil
}
