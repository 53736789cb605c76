package workflows

import (
	"time"

	"github.com/renewly/renewly/internal/temporal/models"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

const (
	// Workflow name - must match the function name
	WorkflowSubscriptionCharge = "SubscriptionChargeWorkflow"

	// Activity names for subscription charging
	ActivityProcessSubscriptionCharge = "ProcessSubscriptionCharge"
)

// SubscriptionChargeWorkflow charges a single subscription. The activity is
// idempotent end to end: the eligibility evaluator re-checks everything and
// concurrent attempts resolve to a blocked decision, so temporal-level
// retries are safe.
func SubscriptionChargeWorkflow(ctx workflow.Context, input models.SubscriptionChargeWorkflowInput) (*models.SubscriptionChargeWorkflowResult, error) {
	logger := workflow.GetLogger(ctx)

	if err := input.Validate(); err != nil {
		return nil, err
	}

	logger.Info("Starting subscription charge workflow", "subscription_id", input.SubscriptionID)

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

	var result models.SubscriptionChargeWorkflowResult
	err := workflow.ExecuteActivity(ctx, ActivityProcessSubscriptionCharge, input).Get(ctx, &result)
	if err != nil {
		logger.Error("Subscription charge failed", "error", err, "subscription_id", input.SubscriptionID)
		return nil, err
	}

	logger.Info("Subscription charge workflow completed",
		"subscription_id", input.SubscriptionID,
		"charged", result.Charged,
		"skip_reason", result.SkipReason)
	return &result, nil
}
