package service

import (
	"context"
	"time"

	"github.com/renewly/renewly/internal/domain/subscription"
	ierr "github.com/renewly/renewly/internal/errors"
	"github.com/renewly/renewly/internal/types"
)

// EligibilityService decides whether a subscription is due for a charge. It
// is a pure predicate over the current ledger snapshot: it never mutates
// state.
type EligibilityService struct {
	ServiceParams
}

// NewEligibilityService creates a new eligibility service
func NewEligibilityService(params ServiceParams) *EligibilityService {
	return &EligibilityService{ServiceParams: params}
}

// Evaluate returns the charge decision for the subscription at now.
func (s *EligibilityService) Evaluate(ctx context.Context, sub *subscription.Subscription, now time.Time) (types.ChargeDecision, error) {
	now = now.UTC()

	if sub.IsTest {
		return types.NotDue(types.SkipReasonTestSubscription), nil
	}

	if !sub.IsAlive(now) {
		return types.NotDue(types.SkipReasonNotAlive), nil
	}

	successfulCharges, err := s.PurchaseRepo.CountSuccessfulCharges(ctx, sub.ID)
	if err != nil {
		return types.ChargeDecision{}, err
	}

	if sub.HasReachedChargeLimit(successfulCharges) {
		return types.NotDue(types.SkipReasonChargeLimitReached), nil
	}

	prod, err := s.ProductRepo.Get(ctx, sub.ProductID)
	if err != nil {
		return types.ChargeDecision{}, err
	}
	if prod.SellerSuspendedForFraud {
		return types.NotDue(types.SkipReasonSellerSuspended), nil
	}

	inProgress, err := s.PurchaseRepo.HasInProgressCharge(ctx, sub.ID)
	if err != nil {
		return types.ChargeDecision{}, err
	}
	if inProgress {
		return types.Blocked(types.SkipReasonChargeInProgress), nil
	}

	// A subscription discounted to zero stays free only while the discount
	// holds; once a time-limited offer elapses the nominal price controls.
	amount, err := chargeAmountCents(ctx, s.ServiceParams, sub, successfulCharges)
	if err != nil {
		return types.ChargeDecision{}, err
	}
	if amount == 0 {
		return types.NotDue(types.SkipReasonFreeSubscription), nil
	}

	dueAt, anchor, err := s.NextChargeDue(ctx, sub)
	if err != nil {
		return types.ChargeDecision{}, err
	}

	// A successful non-original charge inside the current period means this
	// period is already settled: a concurrent invocation must no-op.
	if anchor != nil && !anchor.IsOriginalSubscriptionPurchase &&
		anchor.SucceededAt != nil && now.Before(dueAt) {
		return types.Blocked(types.SkipReasonAlreadyChargedInPeriod), nil
	}

	if now.Before(dueAt) {
		return types.NotDue(types.SkipReasonNotOverdue), nil
	}

	return types.Due(), nil
}

// NextChargeDue computes when the subscription's next charge falls due and
// returns the purchase anchoring the current period. The boundary itself
// counts as due.
func (s *EligibilityService) NextChargeDue(ctx context.Context, sub *subscription.Subscription) (time.Time, *anchorPurchase, error) {
	latest, err := s.PurchaseRepo.GetLatestSuccessfulCharge(ctx, sub.ID)
	if err != nil && !ierr.IsNotFound(err) {
		return time.Time{}, nil, err
	}

	var anchorAt time.Time
	var anchor *anchorPurchase
	if latest != nil && latest.SucceededAt != nil {
		anchorAt = *latest.SucceededAt
		anchor = &anchorPurchase{
			ID:                             latest.ID,
			IsOriginalSubscriptionPurchase: latest.IsOriginalSubscriptionPurchase,
			SucceededAt:                    latest.SucceededAt,
		}
	} else {
		anchorAt = sub.StartedAt
	}

	dueAt := sub.Period.AddTo(anchorAt)

	// A free trial postpones the first charge to the trial's end.
	if sub.FreeTrialEndsAt != nil && sub.FreeTrialEndsAt.After(dueAt) {
		dueAt = *sub.FreeTrialEndsAt
	}

	return dueAt, anchor, nil
}

// anchorPurchase is the slice of a purchase the due-date math needs.
type anchorPurchase struct {
	ID                             string
	IsOriginalSubscriptionPurchase bool
	SucceededAt                    *time.Time
}
