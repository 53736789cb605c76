package workqueue

import (
	"fmt"
	"strings"
	"time"

	ierr "github.com/renewly/renewly/internal/errors"
	"github.com/renewly/renewly/internal/types"
	"github.com/samber/lo"
)

// JobKind identifies the unit of work a scheduled job carries.
type JobKind string

const (
	JobKindSubscriptionCharge     JobKind = "subscription_charge"
	JobKindPreorderChargeRetry    JobKind = "preorder_charge_retry"
	JobKindPreorderCancellation   JobKind = "preorder_cancellation"
	JobKindAuthorizationReconcile JobKind = "authorization_reconcile"
)

// Validate validates the job kind
func (k JobKind) Validate() error {
	allowedKinds := []JobKind{
		JobKindSubscriptionCharge,
		JobKindPreorderChargeRetry,
		JobKindPreorderCancellation,
		JobKindAuthorizationReconcile,
	}
	if lo.Contains(allowedKinds, k) {
		return nil
	}
	return ierr.NewError("invalid job kind").
		WithHint(fmt.Sprintf("Job kind must be one of: %s", strings.Join(lo.Map(allowedKinds, func(k JobKind, _ int) string { return string(k) }), ", "))).
		Mark(ierr.ErrValidation)
}

// ScheduledJob is a delayed, self-contained unit of work. A self-rescheduling
// flow enqueues a new job carrying a monotonically increasing attempt counter
// rather than mutating the old one.
type ScheduledJob struct {
	ID   string  `json:"id"`
	Kind JobKind `json:"kind"`

	SubscriptionID string `json:"subscription_id,omitempty"`
	PreorderID     string `json:"preorder_id,omitempty"`
	PurchaseID     string `json:"purchase_id,omitempty"`

	// Attempt numbers retry jobs; the numbering itself is the externally
	// observable retry count.
	Attempt int `json:"attempt,omitempty"`

	RunAt       time.Time  `json:"run_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	types.BaseModel
}

// IsDue reports whether the job should run now.
func (j *ScheduledJob) IsDue(now time.Time) bool {
	return j.CompletedAt == nil && !j.RunAt.After(now)
}

// MarkCompleted records that the job has run.
func (j *ScheduledJob) MarkCompleted(now time.Time) {
	t := now.UTC()
	j.CompletedAt = &t
	j.UpdatedAt = t
}

// Validate validates the scheduled job
func (j *ScheduledJob) Validate() error {
	if j.ID == "" {
		return ierr.NewError("job id is required").Mark(ierr.ErrValidation)
	}
	if err := j.Kind.Validate(); err != nil {
		return err
	}
	if j.RunAt.IsZero() {
		return ierr.NewError("run_at is required").Mark(ierr.ErrValidation)
	}
	return nil
}
