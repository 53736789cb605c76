package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	domainQueue "github.com/renewly/renewly/internal/domain/workqueue"
	ierr "github.com/renewly/renewly/internal/errors"
	"github.com/renewly/renewly/internal/logger"
	"github.com/renewly/renewly/internal/postgres"
	"github.com/renewly/renewly/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newJobRepoWithMock(t *testing.T) (domainQueue.Repository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	client := postgres.NewClientWithDB(db, logger.GetLogger())
	return NewScheduledJobRepository(client, logger.GetLogger()), mock
}

func jobRows(job *domainQueue.ScheduledJob) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"id", "kind", "subscription_id", "preorder_id", "purchase_id", "attempt",
		"run_at", "completed_at", "status", "created_at", "updated_at",
	})
	var completed any
	if job.CompletedAt != nil {
		completed = *job.CompletedAt
	}
	rows.AddRow(
		job.ID, string(job.Kind), job.SubscriptionID, job.PreorderID, job.PurchaseID,
		job.Attempt, job.RunAt, completed,
		string(job.Status), job.CreatedAt, job.UpdatedAt,
	)
	return rows
}

func TestScheduledJobRepositoryEnqueue(t *testing.T) {
	repo, mock := newJobRepoWithMock(t)

	now := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	job := &domainQueue.ScheduledJob{
		ID:             "job_1",
		Kind:           domainQueue.JobKindSubscriptionCharge,
		SubscriptionID: "sub_1",
		RunAt:          now.Add(time.Hour),
		BaseModel:      types.GetDefaultBaseModel(now),
	}

	mock.ExpectExec("INSERT INTO scheduled_jobs").
		WithArgs(
			job.ID, string(job.Kind), job.SubscriptionID, "", "",
			0, job.RunAt, nil,
			string(job.Status), job.CreatedAt, job.UpdatedAt,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Enqueue(context.Background(), job))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduledJobRepositoryGet(t *testing.T) {
	repo, mock := newJobRepoWithMock(t)

	now := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	want := &domainQueue.ScheduledJob{
		ID:         "job_1",
		Kind:       domainQueue.JobKindPreorderChargeRetry,
		PreorderID: "pre_1",
		Attempt:    2,
		RunAt:      now.Add(4 * time.Hour),
		BaseModel:  types.GetDefaultBaseModel(now),
	}

	mock.ExpectQuery("FROM scheduled_jobs WHERE id =").
		WithArgs("job_1").
		WillReturnRows(jobRows(want))

	got, err := repo.Get(context.Background(), "job_1")
	require.NoError(t, err)
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.Kind, got.Kind)
	assert.Equal(t, want.Attempt, got.Attempt)
	assert.Nil(t, got.CompletedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduledJobRepositoryGetNotFound(t *testing.T) {
	repo, mock := newJobRepoWithMock(t)

	mock.ExpectQuery("FROM scheduled_jobs WHERE id =").
		WithArgs("job_missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.Get(context.Background(), "job_missing")
	require.Error(t, err)
	assert.True(t, ierr.IsNotFound(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduledJobRepositoryListDue(t *testing.T) {
	repo, mock := newJobRepoWithMock(t)

	now := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	due := &domainQueue.ScheduledJob{
		ID:             "job_1",
		Kind:           domainQueue.JobKindSubscriptionCharge,
		SubscriptionID: "sub_1",
		RunAt:          now.Add(-time.Minute),
		BaseModel:      types.GetDefaultBaseModel(now.Add(-time.Hour)),
	}

	mock.ExpectQuery("WHERE completed_at IS NULL AND run_at <=").
		WithArgs(now, 100).
		WillReturnRows(jobRows(due))

	jobs, err := repo.ListDue(context.Background(), now, 100)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "job_1", jobs[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduledJobRepositoryMarkCompleted(t *testing.T) {
	repo, mock := newJobRepoWithMock(t)
	now := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec("UPDATE scheduled_jobs SET completed_at").
		WithArgs("job_1", now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.MarkCompleted(context.Background(), "job_1", now))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduledJobRepositoryMarkCompletedTwice(t *testing.T) {
	repo, mock := newJobRepoWithMock(t)
	now := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)

	// The completed_at IS NULL guard makes the second completion a not-found.
	mock.ExpectExec("UPDATE scheduled_jobs SET completed_at").
		WithArgs("job_1", now).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.MarkCompleted(context.Background(), "job_1", now)
	require.Error(t, err)
	assert.True(t, ierr.IsNotFound(err))
	require.NoError(t, mock.ExpectationsWereMet())
}
