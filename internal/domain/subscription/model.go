package subscription

import (
	"time"

	ierr "github.com/renewly/renewly/internal/errors"
	"github.com/renewly/renewly/internal/types"
)

// Subscription is the authoritative state of a recurring billing agreement.
// It is never physically deleted, only marked terminal through one of the
// cancelled/failed/ended markers.
type Subscription struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`
	BuyerID   string `json:"buyer_id"`

	// Period is the billing interval; StartedAt anchors the first period.
	Period    types.BillingPeriod `json:"period"`
	StartedAt time.Time           `json:"started_at"`

	// ChargeOccurrenceCount caps the total number of charges for fixed-length
	// plans. Nil means the subscription recurs until cancelled.
	ChargeOccurrenceCount *int `json:"charge_occurrence_count,omitempty"`

	FreeTrialEndsAt *time.Time `json:"free_trial_ends_at,omitempty"`
	CancelledAt     *time.Time `json:"cancelled_at,omitempty"`
	FailedAt        *time.Time `json:"failed_at,omitempty"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	IsTest          bool       `json:"is_test"`

	// Current agreed price. PerceivedPriceCents is what the buyer agreed to
	// pay per period, after any offer code discount.
	TierID              string              `json:"tier_id"`
	Recurrence          types.BillingPeriod `json:"recurrence"`
	PerceivedPriceCents int64               `json:"perceived_price_cents"`
	FlatFeeApplicable   bool                `json:"flat_fee_applicable"`
	OfferCodeID         string              `json:"offer_code_id,omitempty"`

	// PaymentMethodID is the processor-side payment method charged each
	// period.
	PaymentMethodID string `json:"payment_method_id,omitempty"`

	types.BaseModel
}

// IsAlive reports whether the subscription is still billable. A subscription
// cancelled effective in the future counts as alive until that time.
func (s *Subscription) IsAlive(now time.Time) bool {
	if s.FailedAt != nil || s.EndedAt != nil {
		return false
	}
	if s.CancelledAt != nil && !s.CancelledAt.After(now) {
		return false
	}
	return true
}

// IsPendingCancellation reports whether the subscription is cancelled
// effective at a future time but still alive now.
func (s *Subscription) IsPendingCancellation(now time.Time) bool {
	return s.CancelledAt != nil && s.CancelledAt.After(now) &&
		s.FailedAt == nil && s.EndedAt == nil
}

// IsFixedLength reports whether the subscription has a capped number of
// charges.
func (s *Subscription) IsFixedLength() bool {
	return s.ChargeOccurrenceCount != nil
}

// HasReachedChargeLimit reports whether a fixed-length subscription has been
// charged its full number of occurrences.
func (s *Subscription) HasReachedChargeLimit(successfulCharges int) bool {
	return s.IsFixedLength() && successfulCharges >= *s.ChargeOccurrenceCount
}

// MarkFailed marks the subscription terminally failed (dunning exhausted).
func (s *Subscription) MarkFailed(now time.Time) {
	t := now.UTC()
	s.FailedAt = &t
	s.UpdatedAt = t
}

// MarkEnded marks a fixed-length subscription as completed.
func (s *Subscription) MarkEnded(now time.Time) {
	t := now.UTC()
	s.EndedAt = &t
	s.UpdatedAt = t
}

// Validate validates the subscription
func (s *Subscription) Validate() error {
	if s.ID == "" {
		return ierr.NewError("subscription id is required").Mark(ierr.ErrValidation)
	}
	if s.ProductID == "" {
		return ierr.NewError("product_id is required").Mark(ierr.ErrValidation)
	}
	if err := s.Period.Validate(); err != nil {
		return err
	}
	if s.PerceivedPriceCents < 0 {
		return ierr.NewError("perceived price cannot be negative").Mark(ierr.ErrValidation)
	}
	if s.ChargeOccurrenceCount != nil && *s.ChargeOccurrenceCount <= 0 {
		return ierr.NewError("charge occurrence count must be positive").Mark(ierr.ErrValidation)
	}
	return nil
}
