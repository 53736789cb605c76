package workqueue

import (
	"context"
	"time"
)

// Enqueuer is the narrow interface services use to schedule delayed work.
type Enqueuer interface {
	// Enqueue schedules the job to run at job.RunAt.
	Enqueue(ctx context.Context, job *ScheduledJob) error
}

// Repository defines the interface for scheduled job persistence operations
type Repository interface {
	Enqueuer

	// Get retrieves a job by ID
	Get(ctx context.Context, id string) (*ScheduledJob, error)

	// ListDue returns uncompleted jobs whose run time is at or before asOf.
	ListDue(ctx context.Context, asOf time.Time, limit int) ([]*ScheduledJob, error)

	// MarkCompleted records that the job has run.
	MarkCompleted(ctx context.Context, id string, completedAt time.Time) error
}
