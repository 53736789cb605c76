package preorder

import (
	"time"

	ierr "github.com/renewly/renewly/internal/errors"
	"github.com/renewly/renewly/internal/types"
)

// Preorder is a product sale authorized before release and captured at
// release. The preorder row is never duplicated; each capture attempt creates
// a new purchase instead.
type Preorder struct {
	ID        string              `json:"id"`
	ProductID string              `json:"product_id"`
	BuyerID   string              `json:"buyer_id"`
	State     types.PreorderState `json:"state"`

	PriceCents int64 `json:"price_cents"`

	types.BaseModel
}

// TransitionTo moves the preorder to the target state, enforcing the state
// machine.
func (p *Preorder) TransitionTo(target types.PreorderState, now time.Time) error {
	if !p.State.CanTransitionTo(target) {
		return ierr.NewErrorf("preorder cannot transition from %s to %s", p.State, target).
			WithReportableDetails(map[string]any{
				"preorder_id": p.ID,
				"from":        p.State,
				"to":          target,
			}).
			Mark(ierr.ErrInvalidOperation)
	}
	p.State = target
	p.UpdatedAt = now.UTC()
	return nil
}

// IsChargeable reports whether a capture may be attempted.
func (p *Preorder) IsChargeable() bool {
	return p.State == types.PreorderStateAuthorizationSuccessful
}

// Validate validates the preorder
func (p *Preorder) Validate() error {
	if p.ID == "" {
		return ierr.NewError("preorder id is required").Mark(ierr.ErrValidation)
	}
	if p.ProductID == "" {
		return ierr.NewError("product_id is required").Mark(ierr.ErrValidation)
	}
	if err := p.State.Validate(); err != nil {
		return err
	}
	if p.PriceCents < 0 {
		return ierr.NewError("price cannot be negative").Mark(ierr.ErrValidation)
	}
	return nil
}
