package service

import (
	"context"
	"time"

	"github.com/renewly/renewly/internal/domain/workqueue"
	ierr "github.com/renewly/renewly/internal/errors"
)

// SweepService discovers subscriptions that look overdue and fans them out
// as staggered charge jobs. It holds no billing logic of its own: every
// candidate it emits is re-evaluated by the eligibility rules at charge time,
// so sweeping too broadly is harmless.
type SweepService struct {
	ServiceParams
}

// NewSweepService creates a new sweep service
func NewSweepService(params ServiceParams) *SweepService {
	return &SweepService{ServiceParams: params}
}

// SweepResult summarizes one discovery pass.
type SweepResult struct {
	Scanned  int `json:"scanned"`
	Enqueued int `json:"enqueued"`
	Batches  int `json:"batches"`
}

// SweepOverdueSubscriptions pages through overdue candidates and enqueues a
// charge job per subscription. Each successive batch runs one stagger
// interval later than the previous one so a large backlog does not hit the
// payment processor all at once.
func (s *SweepService) SweepOverdueSubscriptions(ctx context.Context) (*SweepResult, error) {
	now := s.Clock.Now()
	batchSize := s.Config.Billing.SweepBatchSize
	stagger := s.Config.Billing.SweepStagger()

	result := &SweepResult{}
	for batch := 0; ; batch++ {
		subs, err := s.SubRepo.ListOverdueCandidates(ctx, now, batchSize, batch*batchSize)
		if err != nil {
			return nil, err
		}
		if len(subs) == 0 {
			break
		}

		result.Batches++
		runAt := now.Add(time.Duration(batch) * stagger)
		for _, sub := range subs {
			result.Scanned++
			job := &workqueue.ScheduledJob{
				ID:             jobID(),
				Kind:           workqueue.JobKindSubscriptionCharge,
				SubscriptionID: sub.ID,
				RunAt:          runAt,
				BaseModel:      baseModelAt(now),
			}
			if err := s.JobRepo.Enqueue(ctx, job); err != nil {
				return nil, err
			}
			result.Enqueued++
		}

		if len(subs) < batchSize {
			break
		}
	}

	s.Logger.Infow("overdue subscription sweep complete",
		"scanned", result.Scanned,
		"enqueued", result.Enqueued,
		"batches", result.Batches)
	return result, nil
}

// DispatchService runs due scheduled jobs against the service that owns each
// job kind.
type DispatchService struct {
	ServiceParams

	recurring  *RecurringChargeService
	preorder   *PreorderChargeService
	reconciler *AbandonedAuthService
}

// NewDispatchService creates a new dispatch service
func NewDispatchService(
	params ServiceParams,
	recurring *RecurringChargeService,
	preorder *PreorderChargeService,
	reconciler *AbandonedAuthService,
) *DispatchService {
	return &DispatchService{
		ServiceParams: params,
		recurring:     recurring,
		preorder:      preorder,
		reconciler:    reconciler,
	}
}

// DispatchResult summarizes one dispatch pass.
type DispatchResult struct {
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
}

// DispatchDueJobs runs every job whose time has come. A failing job is
// logged and left uncompleted so the next pass retries it; one bad job never
// blocks the rest of the queue.
func (s *DispatchService) DispatchDueJobs(ctx context.Context, limit int) (*DispatchResult, error) {
	now := s.Clock.Now()
	jobs, err := s.JobRepo.ListDue(ctx, now, limit)
	if err != nil {
		return nil, err
	}

	result := &DispatchResult{}
	for _, job := range jobs {
		if err := s.runJob(ctx, job); err != nil {
			result.Failed++
			s.Logger.Errorw("scheduled job failed",
				"job_id", job.ID,
				"kind", job.Kind,
				"error", err)
			s.Reporter.ReportError(ctx, err, map[string]string{
				"job_id": job.ID,
				"kind":   string(job.Kind),
			})
			continue
		}
		if err := s.JobRepo.MarkCompleted(ctx, job.ID, s.Clock.Now()); err != nil {
			return nil, err
		}
		result.Processed++
	}
	return result, nil
}

func (s *DispatchService) runJob(ctx context.Context, job *workqueue.ScheduledJob) error {
	switch job.Kind {
	case workqueue.JobKindSubscriptionCharge:
		_, err := s.recurring.ProcessSubscription(ctx, job.SubscriptionID, ProcessOptions{
			IgnoreConsecutiveFailures: true,
		})
		return err
	case workqueue.JobKindPreorderChargeRetry:
		_, err := s.preorder.AttemptCharge(ctx, job.PreorderID, job.Attempt)
		return err
	case workqueue.JobKindPreorderCancellation:
		return s.preorder.CancelAbandonedPreorder(ctx, job.PreorderID)
	case workqueue.JobKindAuthorizationReconcile:
		res, err := s.reconciler.ReconcilePurchase(ctx, job.PurchaseID)
		if err != nil {
			return err
		}
		if res.Rescheduled {
			return s.rescheduleReconcile(ctx, job, *res.RecheckAt)
		}
		return nil
	default:
		return ierr.NewErrorf("unknown scheduled job kind %s", job.Kind).
			WithReportableDetails(map[string]any{"job_id": job.ID}).
			Mark(ierr.ErrInvalidOperation)
	}
}

func (s *DispatchService) rescheduleReconcile(ctx context.Context, job *workqueue.ScheduledJob, runAt time.Time) error {
	next := &workqueue.ScheduledJob{
		ID:         jobID(),
		Kind:       workqueue.JobKindAuthorizationReconcile,
		PurchaseID: job.PurchaseID,
		RunAt:      runAt,
		BaseModel:  baseModelAt(s.Clock.Now()),
	}
	return s.JobRepo.Enqueue(ctx, next)
}
