package testutil

import (
	"context"
	"sort"
	"time"

	"github.com/renewly/renewly/internal/domain/workqueue"
)

// InMemoryScheduledJobStore implements workqueue.Repository
type InMemoryScheduledJobStore struct {
	*InMemoryStore[*workqueue.ScheduledJob]
}

// NewInMemoryScheduledJobStore creates a new in-memory scheduled job store
func NewInMemoryScheduledJobStore() *InMemoryScheduledJobStore {
	return &InMemoryScheduledJobStore{
		InMemoryStore: NewInMemoryStore[*workqueue.ScheduledJob](),
	}
}

func copyJob(job *workqueue.ScheduledJob) *workqueue.ScheduledJob {
	if job == nil {
		return nil
	}
	copied := *job
	return &copied
}

func (s *InMemoryScheduledJobStore) Enqueue(ctx context.Context, job *workqueue.ScheduledJob) error {
	return s.InMemoryStore.Create(ctx, job.ID, copyJob(job))
}

func (s *InMemoryScheduledJobStore) Get(ctx context.Context, id string) (*workqueue.ScheduledJob, error) {
	job, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return copyJob(job), nil
}

func (s *InMemoryScheduledJobStore) ListDue(ctx context.Context, asOf time.Time, limit int) ([]*workqueue.ScheduledJob, error) {
	var due []*workqueue.ScheduledJob
	for _, job := range s.InMemoryStore.List(ctx) {
		if job.IsDue(asOf) {
			due = append(due, copyJob(job))
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].RunAt.Equal(due[j].RunAt) {
			return due[i].ID < due[j].ID
		}
		return due[i].RunAt.Before(due[j].RunAt)
	})
	if limit < len(due) {
		due = due[:limit]
	}
	return due, nil
}

func (s *InMemoryScheduledJobStore) MarkCompleted(ctx context.Context, id string, completedAt time.Time) error {
	job, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return err
	}
	copied := copyJob(job)
	copied.MarkCompleted(completedAt)
	return s.InMemoryStore.Update(ctx, id, copied)
}

// Jobs returns all stored jobs, soonest first.
func (s *InMemoryScheduledJobStore) Jobs(ctx context.Context) []*workqueue.ScheduledJob {
	jobs := s.InMemoryStore.List(ctx)
	out := make([]*workqueue.ScheduledJob, len(jobs))
	for i, job := range jobs {
		out[i] = copyJob(job)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].RunAt.Before(out[j].RunAt)
	})
	return out
}
