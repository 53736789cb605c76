package purchase

import (
	"time"

	ierr "github.com/renewly/renewly/internal/errors"
	"github.com/renewly/renewly/internal/types"
)

// Purchase records a single billing event. Every charge attempt creates
// exactly one purchase row; retries never reuse an existing row.
type Purchase struct {
	ID             string `json:"id"`
	SubscriptionID string `json:"subscription_id,omitempty"`
	PreorderID     string `json:"preorder_id,omitempty"`
	BuyerID        string `json:"buyer_id"`

	Kind  types.PurchaseKind  `json:"kind"`
	State types.PurchaseState `json:"state"`

	SucceededAt *time.Time `json:"succeeded_at,omitempty"`
	FailedAt    *time.Time `json:"failed_at,omitempty"`

	// IsOriginalSubscriptionPurchase marks the purchase that created the
	// subscription; it anchors the first billing period.
	IsOriginalSubscriptionPurchase bool `json:"is_original_subscription_purchase"`

	DisplayedPriceCents int64  `json:"displayed_price_cents"`
	ErrorCode           string `json:"error_code,omitempty"`

	// Processor-side authorization intent backing this purchase, when one
	// exists.
	IntentID   string           `json:"intent_id,omitempty"`
	IntentType types.IntentType `json:"intent_type,omitempty"`

	// PreUpgradeTierID is set on membership upgrade purchases so an abandoned
	// upgrade can roll the subscription's tier back.
	PreUpgradeTierID string `json:"pre_upgrade_tier_id,omitempty"`

	types.BaseModel
}

// IsTerminal reports whether the purchase can no longer change state.
func (p *Purchase) IsTerminal() bool {
	return p.State.IsTerminal()
}

// IsCharge reports whether the purchase represents an actual charge attempt
// against the subscription, as opposed to an authorization-only purchase.
func (p *Purchase) IsCharge() bool {
	return p.Kind == types.PurchaseKindClassic ||
		p.Kind == types.PurchaseKindPreorderCharge ||
		p.Kind == types.PurchaseKindMembershipUpgrade
}

// MarkSuccessful transitions the purchase to successful.
func (p *Purchase) MarkSuccessful(now time.Time) {
	t := now.UTC()
	p.State = types.PurchaseStateSuccessful
	p.SucceededAt = &t
	p.UpdatedAt = t
}

// MarkFailed transitions the purchase to failed, recording the processor's
// error code when there is one.
func (p *Purchase) MarkFailed(now time.Time, errorCode string) {
	t := now.UTC()
	p.State = types.PurchaseStateFailed
	p.FailedAt = &t
	p.ErrorCode = errorCode
	p.UpdatedAt = t
}

// Validate validates the purchase
func (p *Purchase) Validate() error {
	if p.ID == "" {
		return ierr.NewError("purchase id is required").Mark(ierr.ErrValidation)
	}
	if err := p.Kind.Validate(); err != nil {
		return err
	}
	if err := p.State.Validate(); err != nil {
		return err
	}
	if p.SubscriptionID == "" && p.PreorderID == "" {
		return ierr.NewError("purchase must belong to a subscription or a preorder").
			Mark(ierr.ErrValidation)
	}
	return nil
}
