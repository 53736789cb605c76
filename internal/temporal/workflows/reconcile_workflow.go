package workflows

import (
	"time"

	"github.com/renewly/renewly/internal/temporal/models"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

const (
	// Workflow name - must match the function name
	WorkflowReconcileAbandonedAuth = "ReconcileAbandonedAuthWorkflow"

	// Activity names for reconciliation
	ActivityReconcileAbandonedAuth = "ReconcileAbandonedAuth"
)

// ReconcileAbandonedAuthWorkflow abandons the open intent behind a purchase
// that has been in progress past the authentication completion window.
func ReconcileAbandonedAuthWorkflow(ctx workflow.Context, input models.ReconcileAbandonedAuthWorkflowInput) (*models.ReconcileAbandonedAuthWorkflowResult, error) {
	logger := workflow.GetLogger(ctx)

	if err := input.Validate(); err != nil {
		return nil, err
	}

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    time.Minute,
			MaximumAttempts:    3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	var result models.ReconcileAbandonedAuthWorkflowResult
	err := workflow.ExecuteActivity(ctx, ActivityReconcileAbandonedAuth, input).Get(ctx, &result)
	if err != nil {
		logger.Error("Reconciliation failed", "error", err, "purchase_id", input.PurchaseID)
		return nil, err
	}

	logger.Info("Reconcile workflow completed",
		"purchase_id", input.PurchaseID,
		"reconciled", result.Reconciled,
		"rescheduled", result.Rescheduled)
	return &result, nil
}
