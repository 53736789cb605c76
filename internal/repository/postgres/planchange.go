package postgres

import (
	"context"
	"database/sql"
	"errors"

	domainPlanChange "github.com/renewly/renewly/internal/domain/planchange"
	ierr "github.com/renewly/renewly/internal/errors"
	"github.com/renewly/renewly/internal/logger"
	"github.com/renewly/renewly/internal/postgres"
)

type planChangeRepository struct {
	client *postgres.Client
	logger *logger.Logger
}

// NewPlanChangeRepository creates a new plan change repository
func NewPlanChangeRepository(client *postgres.Client, logger *logger.Logger) domainPlanChange.Repository {
	return &planChangeRepository{
		client: client,
		logger: logger,
	}
}

const planChangeColumns = `
	id, subscription_id, tier_id, recurrence, perceived_price_cents,
	effective_on, applied, deleted_at, for_product_price_change,
	status, created_at, updated_at`

func (r *planChangeRepository) Create(ctx context.Context, change *domainPlanChange.PlanChange) error {
	r.logger.Debugw("creating plan change",
		"plan_change_id", change.ID,
		"subscription_id", change.SubscriptionID)

	query := `
		INSERT INTO plan_changes (` + planChangeColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.client.Querier(ctx).ExecContext(ctx, query,
		change.ID, change.SubscriptionID, change.TierID, change.Recurrence,
		change.PerceivedPriceCents, change.EffectiveOn, change.Applied,
		nullTime(change.DeletedAt), change.ForProductPriceChange,
		change.Status, change.CreatedAt, change.UpdatedAt,
	)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to create plan change").
			WithReportableDetails(map[string]any{"plan_change_id": change.ID}).
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *planChangeRepository) Get(ctx context.Context, id string) (*domainPlanChange.PlanChange, error) {
	query := `SELECT ` + planChangeColumns + ` FROM plan_changes WHERE id = $1`
	return r.getOne(ctx, query, id)
}

func (r *planChangeRepository) Update(ctx context.Context, change *domainPlanChange.PlanChange) error {
	query := `
		UPDATE plan_changes SET
			tier_id = $2, recurrence = $3, perceived_price_cents = $4,
			effective_on = $5, applied = $6, deleted_at = $7, updated_at = $8
		WHERE id = $1`

	res, err := r.client.Querier(ctx).ExecContext(ctx, query,
		change.ID, change.TierID, change.Recurrence, change.PerceivedPriceCents,
		change.EffectiveOn, change.Applied, nullTime(change.DeletedAt), change.UpdatedAt,
	)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update plan change").
			WithReportableDetails(map[string]any{"plan_change_id": change.ID}).
			Mark(ierr.ErrDatabase)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ierr.NewError("plan change not found").
			WithReportableDetails(map[string]any{"plan_change_id": change.ID}).
			Mark(ierr.ErrNotFound)
	}
	return nil
}

func (r *planChangeRepository) GetLiveForSubscription(ctx context.Context, subscriptionID string) (*domainPlanChange.PlanChange, error) {
	query := `
		SELECT ` + planChangeColumns + ` FROM plan_changes
		WHERE subscription_id = $1 AND applied = FALSE AND deleted_at IS NULL
		ORDER BY created_at DESC LIMIT 1`
	return r.getOne(ctx, query, subscriptionID)
}

func (r *planChangeRepository) ListLiveForSubscription(ctx context.Context, subscriptionID string) ([]*domainPlanChange.PlanChange, error) {
	query := `
		SELECT ` + planChangeColumns + ` FROM plan_changes
		WHERE subscription_id = $1 AND applied = FALSE AND deleted_at IS NULL
		ORDER BY created_at DESC`

	rows, err := r.client.Querier(ctx).QueryContext(ctx, query, subscriptionID)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list plan changes").
			Mark(ierr.ErrDatabase)
	}
	defer rows.Close()

	var changes []*domainPlanChange.PlanChange
	for rows.Next() {
		change, err := scanPlanChange(rows)
		if err != nil {
			return nil, ierr.WithError(err).
				WithHint("Failed to scan plan change row").
				Mark(ierr.ErrDatabase)
		}
		changes = append(changes, change)
	}
	if err := rows.Err(); err != nil {
		return nil, ierr.WithError(err).Mark(ierr.ErrDatabase)
	}
	return changes, nil
}

func (r *planChangeRepository) getOne(ctx context.Context, query string, arg any) (*domainPlanChange.PlanChange, error) {
	row := r.client.Querier(ctx).QueryRowContext(ctx, query, arg)
	change, err := scanPlanChange(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.NewError("plan change not found").
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get plan change").
			Mark(ierr.ErrDatabase)
	}
	return change, nil
}

func scanPlanChange(row rowScanner) (*domainPlanChange.PlanChange, error) {
	var change domainPlanChange.PlanChange
	var deleted sql.NullTime

	err := row.Scan(
		&change.ID, &change.SubscriptionID, &change.TierID, &change.Recurrence,
		&change.PerceivedPriceCents, &change.EffectiveOn, &change.Applied,
		&deleted, &change.ForProductPriceChange,
		&change.Status, &change.CreatedAt, &change.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	change.DeletedAt = timePtr(deleted)
	return &change, nil
}
