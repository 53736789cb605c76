package worker

import (
	"github.com/renewly/renewly/internal/config"
	ierr "github.com/renewly/renewly/internal/errors"
	"github.com/renewly/renewly/internal/logger"
	"github.com/renewly/renewly/internal/temporal/activities/billing"
	"github.com/renewly/renewly/internal/temporal/workflows"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"
)

// Worker hosts the billing workflows and activities on the configured task
// queue.
type Worker struct {
	client client.Client
	worker worker.Worker
	logger *logger.Logger
}

// New connects to temporal and registers the billing workflows and
// activities.
func New(cfg *config.Configuration, acts *billing.BillingActivities, log *logger.Logger) (*Worker, error) {
	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.Address,
		Namespace: cfg.Temporal.Namespace,
	})
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to connect to temporal").
			Mark(ierr.ErrSystem)
	}

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})

	w.RegisterWorkflowWithOptions(workflows.BillingSweepWorkflow,
		workflow.RegisterOptions{Name: workflows.WorkflowBillingSweep})
	w.RegisterWorkflowWithOptions(workflows.DispatchDueJobsWorkflow,
		workflow.RegisterOptions{Name: workflows.WorkflowDispatchDueJobs})
	w.RegisterWorkflowWithOptions(workflows.SubscriptionChargeWorkflow,
		workflow.RegisterOptions{Name: workflows.WorkflowSubscriptionCharge})
	w.RegisterWorkflowWithOptions(workflows.PreorderChargeWorkflow,
		workflow.RegisterOptions{Name: workflows.WorkflowPreorderCharge})
	w.RegisterWorkflowWithOptions(workflows.ReconcileAbandonedAuthWorkflow,
		workflow.RegisterOptions{Name: workflows.WorkflowReconcileAbandonedAuth})

	w.RegisterActivityWithOptions(acts.SweepOverdueSubscriptions,
		activity.RegisterOptions{Name: workflows.ActivitySweepOverdueSubscriptions})
	w.RegisterActivityWithOptions(acts.DispatchDueJobs,
		activity.RegisterOptions{Name: workflows.ActivityDispatchDueJobs})
	w.RegisterActivityWithOptions(acts.ProcessSubscriptionCharge,
		activity.RegisterOptions{Name: workflows.ActivityProcessSubscriptionCharge})
	w.RegisterActivityWithOptions(acts.AttemptPreorderCharge,
		activity.RegisterOptions{Name: workflows.ActivityAttemptPreorderCharge})
	w.RegisterActivityWithOptions(acts.ReconcileAbandonedAuth,
		activity.RegisterOptions{Name: workflows.ActivityReconcileAbandonedAuth})

	return &Worker{client: c, worker: w, logger: log}, nil
}

// Start runs the worker in the background.
func (w *Worker) Start() error {
	w.logger.Infow("starting temporal worker")
	if err := w.worker.Start(); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to start temporal worker").
			Mark(ierr.ErrSystem)
	}
	return nil
}

// Stop shuts the worker down and closes the client.
func (w *Worker) Stop() {
	w.worker.Stop()
	w.client.Close()
	w.logger.Infow("temporal worker stopped")
}

// Client returns the underlying temporal client.
func (w *Worker) Client() client.Client {
	return w.client
}
