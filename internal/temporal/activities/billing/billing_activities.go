package billing

import (
	"context"

	"github.com/renewly/renewly/internal/logger"
	"github.com/renewly/renewly/internal/service"
	"github.com/renewly/renewly/internal/temporal/models"
)

// BillingActivities exposes the billing services as temporal activities. Each
// activity is a thin adapter: state and decisions live in the services, the
// activity only translates inputs and outputs.
type BillingActivities struct {
	sweepSvc      *service.SweepService
	dispatchSvc   *service.DispatchService
	recurringSvc  *service.RecurringChargeService
	preorderSvc   *service.PreorderChargeService
	reconcilerSvc *service.AbandonedAuthService
	logger        *logger.Logger
}

// NewBillingActivities creates a new BillingActivities instance
func NewBillingActivities(
	sweepSvc *service.SweepService,
	dispatchSvc *service.DispatchService,
	recurringSvc *service.RecurringChargeService,
	preorderSvc *service.PreorderChargeService,
	reconcilerSvc *service.AbandonedAuthService,
	logger *logger.Logger,
) *BillingActivities {
	return &BillingActivities{
		sweepSvc:      sweepSvc,
		dispatchSvc:   dispatchSvc,
		recurringSvc:  recurringSvc,
		preorderSvc:   preorderSvc,
		reconcilerSvc: reconcilerSvc,
		logger:        logger,
	}
}

// SweepOverdueSubscriptions runs one discovery pass over overdue subscriptions
func (a *BillingActivities) SweepOverdueSubscriptions(ctx context.Context, input models.BillingSweepWorkflowInput) (*models.BillingSweepWorkflowResult, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	res, err := a.sweepSvc.SweepOverdueSubscriptions(ctx)
	if err != nil {
		return nil, err
	}
	return &models.BillingSweepWorkflowResult{
		Scanned:  res.Scanned,
		Enqueued: res.Enqueued,
		Batches:  res.Batches,
	}, nil
}

// DispatchDueJobs runs every scheduled job whose time has come
func (a *BillingActivities) DispatchDueJobs(ctx context.Context, input models.DispatchDueJobsWorkflowInput) (*models.DispatchDueJobsWorkflowResult, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	res, err := a.dispatchSvc.DispatchDueJobs(ctx, input.Limit)
	if err != nil {
		return nil, err
	}
	return &models.DispatchDueJobsWorkflowResult{
		Processed: res.Processed,
		Failed:    res.Failed,
	}, nil
}

// ProcessSubscriptionCharge evaluates and, when due, charges one subscription
func (a *BillingActivities) ProcessSubscriptionCharge(ctx context.Context, input models.SubscriptionChargeWorkflowInput) (*models.SubscriptionChargeWorkflowResult, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	res, err := a.recurringSvc.ProcessSubscription(ctx, input.SubscriptionID, service.ProcessOptions{
		IgnoreConsecutiveFailures: input.IgnoreConsecutiveFailures,
	})
	if err != nil {
		return nil, err
	}
	return &models.SubscriptionChargeWorkflowResult{
		Charged:    res.Charged,
		Outcome:    string(res.ChargeOutcome),
		SkipReason: string(res.Decision.Reason),
		PurchaseID: res.PurchaseID,
	}, nil
}

// AttemptPreorderCharge runs one preorder capture attempt
func (a *BillingActivities) AttemptPreorderCharge(ctx context.Context, input models.PreorderChargeWorkflowInput) (*models.PreorderChargeWorkflowResult, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	res, err := a.preorderSvc.AttemptCharge(ctx, input.PreorderID, input.Attempt)
	if err != nil {
		return nil, err
	}
	return &models.PreorderChargeWorkflowResult{
		Outcome:        string(res.Outcome),
		PurchaseID:     res.PurchaseID,
		RetryScheduled: res.RetryScheduled,
		NextAttempt:    res.NextAttempt,
		Exhausted:      res.Exhausted,
	}, nil
}

// ReconcileAbandonedAuth cancels the intent behind a stale in-progress purchase
func (a *BillingActivities) ReconcileAbandonedAuth(ctx context.Context, input models.ReconcileAbandonedAuthWorkflowInput) (*models.ReconcileAbandonedAuthWorkflowResult, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	res, err := a.reconcilerSvc.ReconcilePurchase(ctx, input.PurchaseID)
	if err != nil {
		return nil, err
	}
	return &models.ReconcileAbandonedAuthWorkflowResult{
		Reconciled:  res.Reconciled,
		Rescheduled: res.Rescheduled,
	}, nil
}
