package planchange

import (
	"time"

	ierr "github.com/renewly/renewly/internal/errors"
	"github.com/renewly/renewly/internal/types"
)

// PlanChange is a pending, dated mutation of a subscription's tier,
// recurrence and price. It is consumed exactly once at the charge boundary on
// or after its effective date.
type PlanChange struct {
	ID             string `json:"id"`
	SubscriptionID string `json:"subscription_id"`

	TierID              string              `json:"tier_id"`
	Recurrence          types.BillingPeriod `json:"recurrence"`
	PerceivedPriceCents int64               `json:"perceived_price_cents"`

	// EffectiveOn is a date; the change applies to the first charge on or
	// after it.
	EffectiveOn time.Time `json:"effective_on"`

	Applied   bool       `json:"applied"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`

	// ForProductPriceChange distinguishes system-initiated price propagation
	// from a user-initiated upgrade or downgrade.
	ForProductPriceChange bool `json:"for_product_price_change"`

	types.BaseModel
}

// IsLive reports whether the change is still waiting to be applied.
func (c *PlanChange) IsLive() bool {
	return !c.Applied && c.DeletedAt == nil
}

// IsEffective reports whether the change's effective date has been reached.
// EffectiveOn is compared at date granularity.
func (c *PlanChange) IsEffective(now time.Time) bool {
	y, m, d := now.UTC().Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	ey, em, ed := c.EffectiveOn.UTC().Date()
	effective := time.Date(ey, em, ed, 0, 0, 0, 0, time.UTC)
	return !effective.After(today)
}

// MarkApplied consumes the change: applied and soft-deleted in one step so it
// can never be picked up again.
func (c *PlanChange) MarkApplied(now time.Time) {
	t := now.UTC()
	c.Applied = true
	c.DeletedAt = &t
	c.UpdatedAt = t
}

// MarkDeleted soft-deletes a superseded change without applying it.
func (c *PlanChange) MarkDeleted(now time.Time) {
	t := now.UTC()
	c.DeletedAt = &t
	c.UpdatedAt = t
}

// Validate validates the plan change
func (c *PlanChange) Validate() error {
	if c.ID == "" {
		return ierr.NewError("plan change id is required").Mark(ierr.ErrValidation)
	}
	if c.SubscriptionID == "" {
		return ierr.NewError("subscription_id is required").Mark(ierr.ErrValidation)
	}
	if c.TierID == "" {
		return ierr.NewError("tier_id is required").Mark(ierr.ErrValidation)
	}
	if err := c.Recurrence.Validate(); err != nil {
		return err
	}
	if c.EffectiveOn.IsZero() {
		return ierr.NewError("effective_on is required").Mark(ierr.ErrValidation)
	}
	return nil
}
