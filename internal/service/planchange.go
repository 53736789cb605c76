package service

import (
	"context"
	"time"

	"github.com/renewly/renewly/internal/domain/planchange"
	"github.com/renewly/renewly/internal/domain/subscription"
	ierr "github.com/renewly/renewly/internal/errors"
)

// PlanChangeService applies a pending plan change atomically at the charge
// boundary. ApplyIfEffective must run inside the caller's transaction so a
// failure rolls back the plan change together with any purchase mutation
// from the same attempt.
type PlanChangeService struct {
	ServiceParams
}

// NewPlanChangeService creates a new plan change service
func NewPlanChangeService(params ServiceParams) *PlanChangeService {
	return &PlanChangeService{ServiceParams: params}
}

// ApplyResult describes what applying a plan change did.
type ApplyResult struct {
	Applied         bool   `json:"applied"`
	TierChanged     bool   `json:"tier_changed"`
	FinancialChange bool   `json:"financial_change"`
	PlanChangeID    string `json:"plan_change_id,omitempty"`
}

// ApplyIfEffective applies the subscription's live plan change when its
// effective date has been reached, recomputing the agreed price from the
// target tier's nominal price minus any active offer code discount. The
// subscription is mutated in place and persisted.
func (s *PlanChangeService) ApplyIfEffective(ctx context.Context, sub *subscription.Subscription, now time.Time) (*ApplyResult, error) {
	change, err := s.PlanChangeRepo.GetLiveForSubscription(ctx, sub.ID)
	if err != nil {
		if ierr.IsNotFound(err) {
			return &ApplyResult{}, nil
		}
		return nil, err
	}

	if !change.IsEffective(now) {
		return &ApplyResult{}, nil
	}

	tierPrice, err := s.ProductRepo.GetTierPrice(ctx, sub.ProductID, change.TierID, change.Recurrence)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Plan change targets a tier/recurrence the product does not offer").
			WithReportableDetails(map[string]any{
				"plan_change_id": change.ID,
				"tier_id":        change.TierID,
				"recurrence":     change.Recurrence,
			}).
			Mark(ierr.ErrInvalidOperation)
	}

	successfulCharges, err := s.PurchaseRepo.CountSuccessfulCharges(ctx, sub.ID)
	if err != nil {
		return nil, err
	}

	newPrice, err := nominalPriceMinusDiscount(ctx, s.ServiceParams, sub, tierPrice, successfulCharges)
	if err != nil {
		return nil, err
	}

	tierChanged := sub.TierID != change.TierID
	result := &ApplyResult{
		Applied:      true,
		TierChanged:  tierChanged,
		PlanChangeID: change.ID,
	}

	if newPrice == sub.PerceivedPriceCents {
		// Intentionally non-fatal: the change is consumed as pure tier and
		// recurrence bookkeeping, and monitoring is told instead of raising.
		s.Reporter.ReportMessage(ctx, "subscription plan change applied but price has not changed", map[string]string{
			"subscription_id": sub.ID,
			"plan_change_id":  change.ID,
		})
	} else {
		result.FinancialChange = true
		sub.PerceivedPriceCents = newPrice

		original, err := s.PurchaseRepo.GetOriginalForSubscription(ctx, sub.ID)
		if err != nil {
			return nil, err
		}
		original.DisplayedPriceCents = newPrice
		original.UpdatedAt = now.UTC()
		if err := s.PurchaseRepo.Update(ctx, original); err != nil {
			return nil, err
		}
	}

	sub.TierID = change.TierID
	sub.Recurrence = change.Recurrence
	sub.Period = change.Recurrence
	sub.FlatFeeApplicable = tierPrice.FlatFeeApplicable
	sub.UpdatedAt = now.UTC()
	if err := s.SubRepo.Update(ctx, sub); err != nil {
		return nil, err
	}

	change.MarkApplied(now)
	if err := s.PlanChangeRepo.Update(ctx, change); err != nil {
		return nil, err
	}

	if err := s.deleteSupersededChanges(ctx, sub.ID, change.ID, now); err != nil {
		return nil, err
	}

	if tierChanged {
		original, err := s.PurchaseRepo.GetOriginalForSubscription(ctx, sub.ID)
		if err != nil {
			return nil, err
		}
		if err := s.Notifier.ScheduleTierContent(ctx, change.TierID, original.ID); err != nil {
			return nil, err
		}
	}

	s.Logger.Infow("applied subscription plan change",
		"subscription_id", sub.ID,
		"plan_change_id", change.ID,
		"tier_changed", tierChanged,
		"financial_change", result.FinancialChange,
		"new_price_cents", sub.PerceivedPriceCents)

	return result, nil
}

// deleteSupersededChanges soft-deletes any remaining live plan changes for
// the subscription after one has been applied.
func (s *PlanChangeService) deleteSupersededChanges(ctx context.Context, subscriptionID, appliedID string, now time.Time) error {
	live, err := s.PlanChangeRepo.ListLiveForSubscription(ctx, subscriptionID)
	if err != nil {
		return err
	}
	for _, stale := range live {
		if stale.ID == appliedID {
			continue
		}
		stale.MarkDeleted(now)
		if err := s.PlanChangeRepo.Update(ctx, stale); err != nil {
			return err
		}
	}
	return nil
}

// SchedulePriceChange creates a system-initiated plan change propagating a
// product price update, replacing any earlier live change for the
// subscription.
func (s *PlanChangeService) SchedulePriceChange(ctx context.Context, sub *subscription.Subscription, newPriceCents int64, effectiveOn time.Time) (*planchange.PlanChange, error) {
	change := &planchange.PlanChange{
		ID:                    planChangeID(),
		SubscriptionID:        sub.ID,
		TierID:                sub.TierID,
		Recurrence:            sub.Recurrence,
		PerceivedPriceCents:   newPriceCents,
		EffectiveOn:           effectiveOn,
		ForProductPriceChange: true,
	}
	if err := change.Validate(); err != nil {
		return nil, err
	}

	now := s.Clock.Now()
	change.BaseModel = baseModelAt(now)

	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		if err := s.PlanChangeRepo.Create(ctx, change); err != nil {
			return err
		}
		return s.deleteSupersededChanges(ctx, sub.ID, change.ID, now)
	})
	if err != nil {
		return nil, err
	}

	s.Mailer.SendPlanChangePriceNotice(ctx, sub.ID, formatCents(newPriceCents))
	return change, nil
}
