package service

import (
	"context"
	"time"

	"github.com/renewly/renewly/internal/domain/purchase"
	"github.com/renewly/renewly/internal/domain/subscription"
	ierr "github.com/renewly/renewly/internal/errors"
	"github.com/renewly/renewly/internal/types"
)

// RecurringChargeService drives one charge attempt per subscription
// invocation. Invoking it repeatedly for the same period is safe: the
// in-progress and already-charged checks make re-invocation a no-op.
type RecurringChargeService struct {
	ServiceParams
	eligibility *EligibilityService
	planChange  *PlanChangeService
}

// NewRecurringChargeService creates a new recurring charge service
func NewRecurringChargeService(params ServiceParams) *RecurringChargeService {
	return &RecurringChargeService{
		ServiceParams: params,
		eligibility:   NewEligibilityService(params),
		planChange:    NewPlanChangeService(params),
	}
}

// ProcessOptions tune a single orchestrator invocation.
type ProcessOptions struct {
	// IgnoreConsecutiveFailures switches the orchestrator to dunning mode:
	// when the most recent charge failed it does not charge again, it either
	// waits or terminally fails the subscription once the overdue duration
	// crosses the dunning threshold.
	IgnoreConsecutiveFailures bool `json:"ignore_consecutive_failures"`
}

// DunningAction describes what dunning mode decided.
type DunningAction string

const (
	DunningActionNone         DunningAction = ""
	DunningActionWaiting      DunningAction = "waiting"
	DunningActionUnsubscribed DunningAction = "unsubscribed"
)

// ProcessResult is the outcome of one orchestrator invocation.
type ProcessResult struct {
	Decision      types.ChargeDecision `json:"decision"`
	Charged       bool                 `json:"charged"`
	ChargeOutcome types.ChargeOutcome  `json:"charge_outcome,omitempty"`
	PurchaseID    string               `json:"purchase_id,omitempty"`
	Dunning       DunningAction        `json:"dunning,omitempty"`
}

// ProcessSubscription evaluates the subscription and, when due, applies any
// effective plan change and attempts the charge. Expected business outcomes
// (not due, in progress, declines) are returned in the result, never as
// errors.
func (s *RecurringChargeService) ProcessSubscription(ctx context.Context, subscriptionID string, opts ProcessOptions) (*ProcessResult, error) {
	sub, err := s.SubRepo.Get(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}

	now := s.Clock.Now()

	decision, err := s.eligibility.Evaluate(ctx, sub, now)
	if err != nil {
		return nil, err
	}

	result := &ProcessResult{Decision: decision}
	if !decision.IsDue() {
		s.Logger.Debugw("subscription not due for charge",
			"subscription_id", sub.ID,
			"outcome", decision.Outcome,
			"reason", decision.Reason)
		return result, nil
	}

	if opts.IgnoreConsecutiveFailures {
		handled, action, err := s.escalateDunningIfFailing(ctx, sub)
		if err != nil {
			return nil, err
		}
		if handled {
			result.Dunning = action
			return result, nil
		}
	}

	var pur *purchase.Purchase

	// Plan change application and purchase creation form one all-or-nothing
	// unit: a failure anywhere rolls back every mutation from this attempt.
	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		if err := s.DB.LockKey(ctx, "subscription_charge:"+sub.ID); err != nil {
			return err
		}

		// Re-check under the lock: a concurrent invocation may have opened a
		// purchase between evaluation and here.
		inProgress, err := s.PurchaseRepo.HasInProgressCharge(ctx, sub.ID)
		if err != nil {
			return err
		}
		if inProgress {
			result.Decision = types.Blocked(types.SkipReasonChargeInProgress)
			return nil
		}

		if _, err := s.planChange.ApplyIfEffective(ctx, sub, now); err != nil {
			return err
		}

		successfulCharges, err := s.PurchaseRepo.CountSuccessfulCharges(ctx, sub.ID)
		if err != nil {
			return err
		}
		amount, err := chargeAmountCents(ctx, s.ServiceParams, sub, successfulCharges)
		if err != nil {
			return err
		}

		pur = &purchase.Purchase{
			ID:                  purchaseID(),
			SubscriptionID:      sub.ID,
			BuyerID:             sub.BuyerID,
			Kind:                types.PurchaseKindClassic,
			State:               types.PurchaseStateInProgress,
			DisplayedPriceCents: amount,
			BaseModel:           baseModelAt(now),
		}
		return s.PurchaseRepo.Create(ctx, pur)
	})
	if err != nil {
		return nil, err
	}
	if pur == nil {
		// Lost the race to a concurrent invocation.
		return result, nil
	}

	outcome, err := s.settleCharge(ctx, sub, pur)
	if err != nil {
		return nil, err
	}

	result.Charged = outcome == types.ChargeOutcomeSucceeded
	result.ChargeOutcome = outcome
	result.PurchaseID = pur.ID
	return result, nil
}

// settleCharge runs the processor call for an open purchase and records the
// outcome. The network call happens outside any transaction.
func (s *RecurringChargeService) settleCharge(ctx context.Context, sub *subscription.Subscription, pur *purchase.Purchase) (types.ChargeOutcome, error) {
	intent, err := s.Processor.Authorize(ctx, authorizeParamsFor(sub, pur))
	if err != nil {
		// The authorization never reached the processor; close the purchase
		// so the next invocation can retry cleanly.
		pur.MarkFailed(s.Clock.Now(), "authorization_error")
		if uerr := s.PurchaseRepo.Update(ctx, pur); uerr != nil {
			return "", uerr
		}
		s.Logger.Errorw("failed to authorize recurring charge",
			"subscription_id", sub.ID,
			"purchase_id", pur.ID,
			"error", err)
		return types.ChargeOutcomeProcessingError, nil
	}

	pur.IntentID = intent.ID
	pur.IntentType = intent.Type
	if err := s.PurchaseRepo.Update(ctx, pur); err != nil {
		return "", err
	}

	// The processor now holds an open intent against this purchase. Schedule
	// the recheck before capturing so an anomalous capture failure cannot
	// leave the purchase stranded in progress.
	if err := scheduleAuthorizationRecheck(ctx, s.ServiceParams, pur); err != nil {
		return "", err
	}

	capture, err := s.Processor.Capture(ctx, intent.ID)
	if err != nil {
		return "", err
	}

	now := s.Clock.Now()
	switch capture.Outcome {
	case types.ChargeOutcomeSucceeded:
		pur.MarkSuccessful(now)
		if err := s.PurchaseRepo.Update(ctx, pur); err != nil {
			return "", err
		}
		if err := s.concludeFixedLengthIfComplete(ctx, sub, now); err != nil {
			return "", err
		}
		s.Logger.Infow("recurring charge succeeded",
			"subscription_id", sub.ID,
			"purchase_id", pur.ID,
			"amount_cents", pur.DisplayedPriceCents)

	case types.ChargeOutcomeDeclined:
		pur.MarkFailed(now, capture.DeclineCode)
		if err := s.PurchaseRepo.Update(ctx, pur); err != nil {
			return "", err
		}
		s.Mailer.SendCardDeclined(ctx, pur.ID, capture.DeclineCode)
		s.Logger.Infow("recurring charge declined",
			"subscription_id", sub.ID,
			"purchase_id", pur.ID,
			"decline_code", capture.DeclineCode)

	case types.ChargeOutcomeProcessingError:
		pur.MarkFailed(now, capture.ErrorCode)
		if err := s.PurchaseRepo.Update(ctx, pur); err != nil {
			return "", err
		}
		s.Logger.Warnw("recurring charge hit processing error",
			"subscription_id", sub.ID,
			"purchase_id", pur.ID,
			"error_code", capture.ErrorCode)
	}

	return capture.Outcome, nil
}

// escalateDunningIfFailing implements dunning mode: when the latest charge
// failed, compare the overdue duration against the dunning threshold instead
// of charging again.
func (s *RecurringChargeService) escalateDunningIfFailing(ctx context.Context, sub *subscription.Subscription) (bool, DunningAction, error) {
	latest, err := s.PurchaseRepo.GetLatestCharge(ctx, sub.ID)
	if err != nil {
		if ierr.IsNotFound(err) {
			return false, DunningActionNone, nil
		}
		return false, DunningActionNone, err
	}
	if latest.State != types.PurchaseStateFailed {
		return false, DunningActionNone, nil
	}

	now := s.Clock.Now()
	dueAt, _, err := s.eligibility.NextChargeDue(ctx, sub)
	if err != nil {
		return false, DunningActionNone, err
	}

	overdue := now.Sub(dueAt)
	if overdue < s.Config.Billing.DunningThreshold() {
		s.Logger.Debugw("dunning below threshold, waiting",
			"subscription_id", sub.ID,
			"overdue", overdue)
		return true, DunningActionWaiting, nil
	}

	sub.MarkFailed(now)
	if err := s.SubRepo.Update(ctx, sub); err != nil {
		return false, DunningActionNone, err
	}

	s.Mailer.SendDunningNotice(ctx, sub.ID)
	s.Reporter.ReportMessage(ctx, "subscription terminated after dunning threshold", map[string]string{
		"subscription_id": sub.ID,
	})
	s.Logger.Infow("subscription unsubscribed and failed after dunning threshold",
		"subscription_id", sub.ID,
		"overdue", overdue)
	return true, DunningActionUnsubscribed, nil
}

// concludeFixedLengthIfComplete ends a fixed-length subscription once its
// final occurrence has been charged.
func (s *RecurringChargeService) concludeFixedLengthIfComplete(ctx context.Context, sub *subscription.Subscription, now time.Time) error {
	if !sub.IsFixedLength() {
		return nil
	}
	count, err := s.PurchaseRepo.CountSuccessfulCharges(ctx, sub.ID)
	if err != nil {
		return err
	}
	if count >= *sub.ChargeOccurrenceCount {
		sub.MarkEnded(now)
		if err := s.SubRepo.Update(ctx, sub); err != nil {
			return err
		}
		s.Logger.Infow("fixed-length subscription completed",
			"subscription_id", sub.ID,
			"charges", count)
	}
	return nil
}
