package service

import (
	"context"
	"time"

	ierr "github.com/renewly/renewly/internal/errors"
	"github.com/renewly/renewly/internal/processor"
	"github.com/renewly/renewly/internal/types"
)

// AbandonedAuthService reconciles purchases that were authorized but never
// settled. A purchase can get stranded in progress when the buyer abandons a
// strong customer authentication challenge: the processor holds an open
// intent and the purchase never reaches a terminal state on its own.
type AbandonedAuthService struct {
	ServiceParams
}

// NewAbandonedAuthService creates a new abandoned authorization service
func NewAbandonedAuthService(params ServiceParams) *AbandonedAuthService {
	return &AbandonedAuthService{ServiceParams: params}
}

// ReconcileResult reports what the reconciler did to a purchase.
type ReconcileResult struct {
	Reconciled bool `json:"reconciled"`
	// Rescheduled is set when the purchase is still inside the completion
	// window and should be checked again at RecheckAt.
	Rescheduled bool       `json:"rescheduled"`
	RecheckAt   *time.Time `json:"recheck_at,omitempty"`
}

// ReconcilePurchase abandons the open intent behind a stale in-progress
// purchase and rolls back any side effects the purchase's kind implies.
// Purchases still inside the completion window are left alone so a slow
// authentication flow can finish.
func (s *AbandonedAuthService) ReconcilePurchase(ctx context.Context, purchaseID string) (*ReconcileResult, error) {
	pur, err := s.PurchaseRepo.Get(ctx, purchaseID)
	if err != nil {
		return nil, err
	}

	if pur.IsTerminal() {
		s.Logger.Debugw("purchase already terminal, nothing to reconcile",
			"purchase_id", pur.ID,
			"state", pur.State)
		return &ReconcileResult{}, nil
	}

	now := s.Clock.Now()
	deadline := pur.CreatedAt.Add(s.Config.Billing.SCACompletionWindow())
	if now.Before(deadline) {
		return &ReconcileResult{Rescheduled: true, RecheckAt: &deadline}, nil
	}

	if pur.IntentID == "" {
		return nil, ierr.NewError("in-progress purchase past completion window has no intent id").
			WithReportableDetails(map[string]any{
				"purchase_id": pur.ID,
				"kind":        pur.Kind,
			}).
			Mark(ierr.ErrInvalidOperation)
	}

	cancel, err := s.Processor.CancelIntent(ctx, pur.IntentID, pur.IntentType)
	if err != nil {
		return nil, err
	}

	switch cancel.Outcome {
	case processor.CancelOutcomeAlreadyCanceled, processor.CancelOutcomeAlreadySucceeded:
		// The intent resolved concurrently; whoever resolved it owns the
		// purchase state.
		s.Logger.Infow("intent already resolved, leaving purchase untouched",
			"purchase_id", pur.ID,
			"outcome", cancel.Outcome)
		return &ReconcileResult{}, nil
	}

	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		switch pur.Kind {
		case types.PurchaseKindPreorderAuthorization:
			return s.failPreorderAuthorization(ctx, pur.ID)
		case types.PurchaseKindMembershipUpgrade:
			return s.rollBackUpgrade(ctx, pur.ID)
		default:
			p, err := s.PurchaseRepo.Get(ctx, pur.ID)
			if err != nil {
				return err
			}
			p.MarkFailed(s.Clock.Now(), "authorization_abandoned")
			return s.PurchaseRepo.Update(ctx, p)
		}
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("abandoned authorization reconciled",
		"purchase_id", pur.ID,
		"kind", pur.Kind)
	return &ReconcileResult{Reconciled: true}, nil
}

func (s *AbandonedAuthService) failPreorderAuthorization(ctx context.Context, purchaseID string) error {
	pur, err := s.PurchaseRepo.Get(ctx, purchaseID)
	if err != nil {
		return err
	}

	now := s.Clock.Now()
	pur.State = types.PurchaseStatePreorderAuthorizationFailed
	pur.FailedAt = &now
	pur.UpdatedAt = now
	if err := s.PurchaseRepo.Update(ctx, pur); err != nil {
		return err
	}

	pre, err := s.PreorderRepo.Get(ctx, pur.PreorderID)
	if err != nil {
		return err
	}
	if err := pre.TransitionTo(types.PreorderStateAuthorizationFailed, now); err != nil {
		return err
	}
	return s.PreorderRepo.Update(ctx, pre)
}

func (s *AbandonedAuthService) rollBackUpgrade(ctx context.Context, purchaseID string) error {
	pur, err := s.PurchaseRepo.Get(ctx, purchaseID)
	if err != nil {
		return err
	}

	if pur.PreUpgradeTierID == "" {
		return ierr.NewError("membership upgrade purchase has no pre-upgrade tier").
			WithReportableDetails(map[string]any{"purchase_id": pur.ID}).
			Mark(ierr.ErrInvalidOperation)
	}

	sub, err := s.SubRepo.Get(ctx, pur.SubscriptionID)
	if err != nil {
		return err
	}

	now := s.Clock.Now()
	sub.TierID = pur.PreUpgradeTierID
	sub.UpdatedAt = now
	if err := s.SubRepo.Update(ctx, sub); err != nil {
		return err
	}

	pur.MarkFailed(now, "authorization_abandoned")
	return s.PurchaseRepo.Update(ctx, pur)
}
