package workflows

import (
	"time"

	"github.com/renewly/renewly/internal/temporal/models"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

const (
	// Workflow name - must match the function name
	WorkflowDispatchDueJobs = "DispatchDueJobsWorkflow"

	// Activity names for dispatching
	ActivityDispatchDueJobs = "DispatchDueJobs"
)

// DispatchDueJobsWorkflow runs every scheduled job whose time has come. It is
// triggered on a short cron; a job that fails stays uncompleted and the next
// run retries it.
func DispatchDueJobsWorkflow(ctx workflow.Context, input models.DispatchDueJobsWorkflowInput) (*models.DispatchDueJobsWorkflowResult, error) {
	logger := workflow.GetLogger(ctx)

	if err := input.Validate(); err != nil {
		return nil, err
	}

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

	var result models.DispatchDueJobsWorkflowResult
	err := workflow.ExecuteActivity(ctx, ActivityDispatchDueJobs, input).Get(ctx, &result)
	if err != nil {
		logger.Error("Dispatch failed", "error", err)
		return nil, err
	}

	logger.Info("Dispatch workflow completed",
		"processed", result.Processed,
		"failed", result.Failed)
	return &result, nil
}
