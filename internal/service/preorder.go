package service

import (
	"context"

	"github.com/renewly/renewly/internal/domain/purchase"
	"github.com/renewly/renewly/internal/domain/workqueue"
	ierr "github.com/renewly/renewly/internal/errors"
	"github.com/renewly/renewly/internal/types"
)

// PreorderChargeService drives the two-phase preorder lifecycle: the release
// triggers the first capture attempt, transient failures retry on a fixed
// bounded schedule, and hard declines give the buyer a grace window before
// the preorder is cancelled.
type PreorderChargeService struct {
	ServiceParams
}

// NewPreorderChargeService creates a new preorder charge service
func NewPreorderChargeService(params ServiceParams) *PreorderChargeService {
	return &PreorderChargeService{ServiceParams: params}
}

// ChargeAttemptResult is the outcome of one capture attempt.
type ChargeAttemptResult struct {
	Outcome        types.ChargeOutcome `json:"outcome,omitempty"`
	PurchaseID     string              `json:"purchase_id,omitempty"`
	RetryScheduled bool                `json:"retry_scheduled"`
	NextAttempt    int                 `json:"next_attempt,omitempty"`
	Exhausted      bool                `json:"exhausted"`
	AlreadyCharged bool                `json:"already_charged"`
}

// AttemptCharge runs capture attempt number attempt for the preorder.
// Attempts are numbered from 1; retries carry 2, 3 and 4. Each attempt
// creates exactly one new purchase row; the preorder itself is never
// duplicated.
func (s *PreorderChargeService) AttemptCharge(ctx context.Context, preorderID string, attempt int) (*ChargeAttemptResult, error) {
	pre, err := s.PreorderRepo.Get(ctx, preorderID)
	if err != nil {
		return nil, err
	}

	now := s.Clock.Now()

	prod, err := s.ProductRepo.Get(ctx, pre.ProductID)
	if err != nil {
		return nil, err
	}
	if !prod.IsInChargeableReleaseWindow(now) {
		return nil, ierr.NewError("product is not in a chargeable release window").
			WithReportableDetails(map[string]any{
				"preorder_id": pre.ID,
				"product_id":  prod.ID,
			}).
			Mark(ierr.ErrInvalidOperation)
	}

	if pre.State == types.PreorderStateChargeSuccessful {
		return &ChargeAttemptResult{AlreadyCharged: true}, nil
	}
	if !pre.IsChargeable() {
		return nil, ierr.NewErrorf("preorder in state %s cannot be charged", pre.State).
			WithReportableDetails(map[string]any{"preorder_id": pre.ID}).
			Mark(ierr.ErrInvalidOperation)
	}

	auth, err := s.PurchaseRepo.GetAuthorizationForPreorder(ctx, pre.ID)
	if err != nil {
		return nil, err
	}
	if auth.IntentID == "" {
		return nil, ierr.NewError("preorder authorization purchase has no intent id").
			WithReportableDetails(map[string]any{
				"preorder_id": pre.ID,
				"purchase_id": auth.ID,
			}).
			Mark(ierr.ErrInvalidOperation)
	}

	pur := &purchase.Purchase{
		ID:                  purchaseID(),
		PreorderID:          pre.ID,
		BuyerID:             pre.BuyerID,
		Kind:                types.PurchaseKindPreorderCharge,
		State:               types.PurchaseStateInProgress,
		DisplayedPriceCents: pre.PriceCents,
		IntentID:            auth.IntentID,
		IntentType:          auth.IntentType,
		BaseModel:           baseModelAt(now),
	}
	if err := s.PurchaseRepo.Create(ctx, pur); err != nil {
		return nil, err
	}
	if err := scheduleAuthorizationRecheck(ctx, s.ServiceParams, pur); err != nil {
		return nil, err
	}

	capture, err := s.Processor.Capture(ctx, auth.IntentID)
	if err != nil {
		return nil, err
	}

	result := &ChargeAttemptResult{
		Outcome:    capture.Outcome,
		PurchaseID: pur.ID,
	}
	now = s.Clock.Now()

	switch capture.Outcome {
	case types.ChargeOutcomeSucceeded:
		err = s.DB.WithTx(ctx, func(ctx context.Context) error {
			pur.MarkSuccessful(now)
			if err := s.PurchaseRepo.Update(ctx, pur); err != nil {
				return err
			}

			auth.State = types.PurchaseStatePreorderConcludedSuccessfully
			auth.UpdatedAt = now
			if err := s.PurchaseRepo.Update(ctx, auth); err != nil {
				return err
			}

			if err := pre.TransitionTo(types.PreorderStateChargeSuccessful, now); err != nil {
				return err
			}
			return s.PreorderRepo.Update(ctx, pre)
		})
		if err != nil {
			return nil, err
		}
		s.Logger.Infow("preorder charged",
			"preorder_id", pre.ID,
			"purchase_id", pur.ID,
			"attempt", attempt)

	case types.ChargeOutcomeProcessingError:
		// The preorder stays authorization_successful and remains eligible
		// for bounded retry.
		pur.MarkFailed(now, capture.ErrorCode)
		if err := s.PurchaseRepo.Update(ctx, pur); err != nil {
			return nil, err
		}

		nextAttempt := attempt + 1
		runAt, ok := workqueue.NextPreorderAttemptAt(nextAttempt, now)
		if !ok {
			result.Exhausted = true
			s.Reporter.ReportMessage(ctx, "preorder charge retries exhausted", map[string]string{
				"preorder_id": pre.ID,
				"attempts":    itoa(attempt),
			})
			s.Logger.Warnw("preorder charge retries exhausted",
				"preorder_id", pre.ID,
				"attempts", attempt)
			break
		}

		job := &workqueue.ScheduledJob{
			ID:         jobID(),
			Kind:       workqueue.JobKindPreorderChargeRetry,
			PreorderID: pre.ID,
			Attempt:    nextAttempt,
			RunAt:      runAt,
			BaseModel:  baseModelAt(now),
		}
		if err := s.JobRepo.Enqueue(ctx, job); err != nil {
			return nil, err
		}
		result.RetryScheduled = true
		result.NextAttempt = nextAttempt
		s.Logger.Infow("preorder charge hit processing error, retry scheduled",
			"preorder_id", pre.ID,
			"purchase_id", pur.ID,
			"next_attempt", nextAttempt,
			"run_at", runAt)

	case types.ChargeOutcomeDeclined:
		pur.MarkFailed(now, capture.DeclineCode)
		if err := s.PurchaseRepo.Update(ctx, pur); err != nil {
			return nil, err
		}

		s.Mailer.SendCardDeclined(ctx, pur.ID, capture.DeclineCode)

		// Give the buyer a window to update payment details before the
		// preorder is abandoned.
		job := &workqueue.ScheduledJob{
			ID:         jobID(),
			Kind:       workqueue.JobKindPreorderCancellation,
			PreorderID: pre.ID,
			RunAt:      now.Add(s.Config.Billing.PreorderCancellationDelay()),
			BaseModel:  baseModelAt(now),
		}
		if err := s.JobRepo.Enqueue(ctx, job); err != nil {
			return nil, err
		}
		s.Logger.Infow("preorder charge declined, cancellation scheduled",
			"preorder_id", pre.ID,
			"purchase_id", pur.ID,
			"decline_code", capture.DeclineCode,
			"cancel_at", job.RunAt)
	}

	return result, nil
}

// CancelAbandonedPreorder cancels a preorder whose buyer never recovered from
// a declined capture. It is a no-op when the preorder has since been charged
// or cancelled.
func (s *PreorderChargeService) CancelAbandonedPreorder(ctx context.Context, preorderID string) error {
	pre, err := s.PreorderRepo.Get(ctx, preorderID)
	if err != nil {
		return err
	}

	if pre.State != types.PreorderStateAuthorizationSuccessful {
		s.Logger.Debugw("preorder no longer cancellable, skipping",
			"preorder_id", pre.ID,
			"state", pre.State)
		return nil
	}

	auth, err := s.PurchaseRepo.GetAuthorizationForPreorder(ctx, pre.ID)
	if err != nil {
		return err
	}

	if auth.IntentID != "" {
		if _, err := s.Processor.CancelIntent(ctx, auth.IntentID, auth.IntentType); err != nil {
			return err
		}
	}

	now := s.Clock.Now()
	if err := pre.TransitionTo(types.PreorderStateCancelled, now); err != nil {
		return err
	}
	if err := s.PreorderRepo.Update(ctx, pre); err != nil {
		return err
	}

	s.Mailer.SendPreorderCancelled(ctx, pre.ID)
	s.Logger.Infow("abandoned preorder cancelled", "preorder_id", pre.ID)
	return nil
}
