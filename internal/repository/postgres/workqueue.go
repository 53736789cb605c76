package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	domainQueue "github.com/renewly/renewly/internal/domain/workqueue"
	ierr "github.com/renewly/renewly/internal/errors"
	"github.com/renewly/renewly/internal/logger"
	"github.com/renewly/renewly/internal/postgres"
)

type scheduledJobRepository struct {
	client *postgres.Client
	logger *logger.Logger
}

// NewScheduledJobRepository creates a new scheduled job repository
func NewScheduledJobRepository(client *postgres.Client, logger *logger.Logger) domainQueue.Repository {
	return &scheduledJobRepository{
		client: client,
		logger: logger,
	}
}

const jobColumns = `
	id, kind, subscription_id, preorder_id, purchase_id, attempt,
	run_at, completed_at, status, created_at, updated_at`

func (r *scheduledJobRepository) Enqueue(ctx context.Context, job *domainQueue.ScheduledJob) error {
	r.logger.Debugw("enqueueing job",
		"job_id", job.ID,
		"kind", job.Kind,
		"run_at", job.RunAt)

	query := `
		INSERT INTO scheduled_jobs (` + jobColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.client.Querier(ctx).ExecContext(ctx, query,
		job.ID, job.Kind, job.SubscriptionID, job.PreorderID, job.PurchaseID,
		job.Attempt, job.RunAt, nullTime(job.CompletedAt),
		job.Status, job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to enqueue scheduled job").
			WithReportableDetails(map[string]any{"job_id": job.ID}).
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *scheduledJobRepository) Get(ctx context.Context, id string) (*domainQueue.ScheduledJob, error) {
	query := `SELECT ` + jobColumns + ` FROM scheduled_jobs WHERE id = $1`

	row := r.client.Querier(ctx).QueryRowContext(ctx, query, id)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.NewError("scheduled job not found").
				WithReportableDetails(map[string]any{"job_id": id}).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get scheduled job").
			Mark(ierr.ErrDatabase)
	}
	return job, nil
}

func (r *scheduledJobRepository) ListDue(ctx context.Context, asOf time.Time, limit int) ([]*domainQueue.ScheduledJob, error) {
	query := `
		SELECT ` + jobColumns + ` FROM scheduled_jobs
		WHERE completed_at IS NULL AND run_at <= $1
		ORDER BY run_at, id
		LIMIT $2`

	rows, err := r.client.Querier(ctx).QueryContext(ctx, query, asOf, limit)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list due jobs").
			Mark(ierr.ErrDatabase)
	}
	defer rows.Close()

	var jobs []*domainQueue.ScheduledJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, ierr.WithError(err).
				WithHint("Failed to scan scheduled job row").
				Mark(ierr.ErrDatabase)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, ierr.WithError(err).Mark(ierr.ErrDatabase)
	}
	return jobs, nil
}

func (r *scheduledJobRepository) MarkCompleted(ctx context.Context, id string, completedAt time.Time) error {
	query := `
		UPDATE scheduled_jobs SET completed_at = $2, updated_at = $2
		WHERE id = $1 AND completed_at IS NULL`

	res, err := r.client.Querier(ctx).ExecContext(ctx, query, id, completedAt)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to mark scheduled job completed").
			WithReportableDetails(map[string]any{"job_id": id}).
			Mark(ierr.ErrDatabase)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ierr.NewError("scheduled job not found or already completed").
			WithReportableDetails(map[string]any{"job_id": id}).
			Mark(ierr.ErrNotFound)
	}
	return nil
}

func scanJob(row rowScanner) (*domainQueue.ScheduledJob, error) {
	var job domainQueue.ScheduledJob
	var completed sql.NullTime

	err := row.Scan(
		&job.ID, &job.Kind, &job.SubscriptionID, &job.PreorderID, &job.PurchaseID,
		&job.Attempt, &job.RunAt, &completed,
		&job.Status, &job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	job.CompletedAt = timePtr(completed)
	return &job, nil
}
