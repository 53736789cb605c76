package workflows

import (
	"time"

	"github.com/renewly/renewly/internal/temporal/models"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

const (
	// Workflow name - must match the function name
	WorkflowPreorderCharge = "PreorderChargeWorkflow"

	// Activity names for preorder charging
	ActivityAttemptPreorderCharge = "AttemptPreorderCharge"
)

// PreorderChargeWorkflow runs a single preorder capture attempt. Transient
// failures are retried on the billing schedule, not temporal's: the activity
// enqueues its own follow-up job carrying the next attempt number, so the
// temporal retry policy only covers infrastructure failures.
func PreorderChargeWorkflow(ctx workflow.Context, input models.PreorderChargeWorkflowInput) (*models.PreorderChargeWorkflowResult, error) {
	logger := workflow.GetLogger(ctx)

	if err := input.Validate(); err != nil {
		return nil, err
	}

	logger.Info("Starting preorder charge workflow",
		"preorder_id", input.PreorderID,
		"attempt", input.Attempt)

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

	var result models.PreorderChargeWorkflowResult
	err := workflow.ExecuteActivity(ctx, ActivityAttemptPreorderCharge, input).Get(ctx, &result)
	if err != nil {
		logger.Error("Preorder charge failed", "error", err, "preorder_id", input.PreorderID)
		return nil, err
	}

	logger.Info("Preorder charge workflow completed",
		"preorder_id", input.PreorderID,
		"outcome", result.Outcome,
		"retry_scheduled", result.RetryScheduled)
	return &result, nil
}
