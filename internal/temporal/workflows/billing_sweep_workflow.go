package workflows

import (
	"time"

	"github.com/renewly/renewly/internal/temporal/models"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

const (
	// Workflow name - must match the function name
	WorkflowBillingSweep = "BillingSweepWorkflow"

	// Activity names for the sweep
	ActivitySweepOverdueSubscriptions = "SweepOverdueSubscriptions"
)

// BillingSweepWorkflow is the entry point workflow triggered on a cron
// schedule. It runs one discovery pass: overdue-looking subscriptions become
// staggered charge jobs, and the dispatch workflow picks those up as their
// run times arrive.
func BillingSweepWorkflow(ctx workflow.Context, input models.BillingSweepWorkflowInput) (*models.BillingSweepWorkflowResult, error) {
	logger := workflow.GetLogger(ctx)

	if err := input.Validate(); err != nil {
		return nil, err
	}

	logger.Info("Starting billing sweep workflow")

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    time.Minute,
			MaximumAttempts:    3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	var result models.BillingSweepWorkflowResult
	err := workflow.ExecuteActivity(ctx, ActivitySweepOverdueSubscriptions, input).Get(ctx, &result)
	if err != nil {
		logger.Error("Billing sweep failed", "error", err)
		return nil, err
	}

	logger.Info("Billing sweep workflow completed",
		"scanned", result.Scanned,
		"enqueued", result.Enqueued,
		"batches", result.Batches)
	return &result, nil
}
