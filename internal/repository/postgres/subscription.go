package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	domainSub "github.com/renewly/renewly/internal/domain/subscription"
	ierr "github.com/renewly/renewly/internal/errors"
	"github.com/renewly/renewly/internal/logger"
	"github.com/renewly/renewly/internal/postgres"
)

type subscriptionRepository struct {
	client *postgres.Client
	logger *logger.Logger
}

// NewSubscriptionRepository creates a new subscription repository
func NewSubscriptionRepository(client *postgres.Client, logger *logger.Logger) domainSub.Repository {
	return &subscriptionRepository{
		client: client,
		logger: logger,
	}
}

const subscriptionColumns = `
	id, product_id, buyer_id, period, started_at, charge_occurrence_count,
	free_trial_ends_at, cancelled_at, failed_at, ended_at, is_test,
	tier_id, recurrence, perceived_price_cents, flat_fee_applicable,
	offer_code_id, payment_method_id, status, created_at, updated_at`

func (r *subscriptionRepository) Create(ctx context.Context, sub *domainSub.Subscription) error {
	r.logger.Debugw("creating subscription", "subscription_id", sub.ID)

	query := `
		INSERT INTO subscriptions (` + subscriptionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`

	_, err := r.client.Querier(ctx).ExecContext(ctx, query,
		sub.ID, sub.ProductID, sub.BuyerID, sub.Period, sub.StartedAt,
		nullInt(sub.ChargeOccurrenceCount),
		nullTime(sub.FreeTrialEndsAt), nullTime(sub.CancelledAt),
		nullTime(sub.FailedAt), nullTime(sub.EndedAt), sub.IsTest,
		sub.TierID, sub.Recurrence, sub.PerceivedPriceCents, sub.FlatFeeApplicable,
		sub.OfferCodeID, sub.PaymentMethodID,
		sub.Status, sub.CreatedAt, sub.UpdatedAt,
	)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to create subscription").
			WithReportableDetails(map[string]any{"subscription_id": sub.ID}).
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *subscriptionRepository) Get(ctx context.Context, id string) (*domainSub.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id = $1`

	row := r.client.Querier(ctx).QueryRowContext(ctx, query, id)
	sub, err := scanSubscription(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.NewError("subscription not found").
				WithHint("The subscription does not exist").
				WithReportableDetails(map[string]any{"subscription_id": id}).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get subscription").
			Mark(ierr.ErrDatabase)
	}
	return sub, nil
}

func (r *subscriptionRepository) Update(ctx context.Context, sub *domainSub.Subscription) error {
	query := `
		UPDATE subscriptions SET
			period = $2, charge_occurrence_count = $3,
			free_trial_ends_at = $4, cancelled_at = $5, failed_at = $6, ended_at = $7,
			tier_id = $8, recurrence = $9, perceived_price_cents = $10,
			flat_fee_applicable = $11, offer_code_id = $12, payment_method_id = $13,
			status = $14, updated_at = $15
		WHERE id = $1`

	res, err := r.client.Querier(ctx).ExecContext(ctx, query,
		sub.ID, sub.Period, nullInt(sub.ChargeOccurrenceCount),
		nullTime(sub.FreeTrialEndsAt), nullTime(sub.CancelledAt),
		nullTime(sub.FailedAt), nullTime(sub.EndedAt),
		sub.TierID, sub.Recurrence, sub.PerceivedPriceCents,
		sub.FlatFeeApplicable, sub.OfferCodeID, sub.PaymentMethodID,
		sub.Status, sub.UpdatedAt,
	)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update subscription").
			WithReportableDetails(map[string]any{"subscription_id": sub.ID}).
			Mark(ierr.ErrDatabase)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ierr.NewError("subscription not found").
			WithReportableDetails(map[string]any{"subscription_id": sub.ID}).
			Mark(ierr.ErrNotFound)
	}
	return nil
}

// ListOverdueCandidates filters coarsely in SQL: alive, non-test
// subscriptions whose anchor (latest successful charge, else start) plus one
// period is at or before asOf. The eligibility evaluator re-checks every
// candidate, so false positives here only cost an extra evaluation.
func (r *subscriptionRepository) ListOverdueCandidates(ctx context.Context, asOf time.Time, limit, offset int) ([]*domainSub.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions s
		WHERE s.is_test = FALSE
		  AND s.failed_at IS NULL
		  AND s.ended_at IS NULL
		  AND (s.cancelled_at IS NULL OR s.cancelled_at > $1)
		  AND COALESCE(
				(SELECT MAX(p.succeeded_at) FROM purchases p
				 WHERE p.subscription_id = s.id AND p.succeeded_at IS NOT NULL),
				s.started_at
			  ) <= $1 - make_interval(months => CASE s.period
				WHEN 'monthly' THEN 1
				WHEN 'quarterly' THEN 3
				WHEN 'biannually' THEN 6
				ELSE 12 END)
		ORDER BY s.started_at, s.id
		LIMIT $2 OFFSET $3`

	rows, err := r.client.Querier(ctx).QueryContext(ctx, query, asOf, limit, offset)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list overdue subscription candidates").
			Mark(ierr.ErrDatabase)
	}
	defer rows.Close()

	var subs []*domainSub.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, ierr.WithError(err).
				WithHint("Failed to scan subscription row").
				Mark(ierr.ErrDatabase)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, ierr.WithError(err).Mark(ierr.ErrDatabase)
	}
	return subs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubscription(row rowScanner) (*domainSub.Subscription, error) {
	var sub domainSub.Subscription
	var occurrences sql.NullInt64
	var trialEnds, cancelled, failed, ended sql.NullTime

	err := row.Scan(
		&sub.ID, &sub.ProductID, &sub.BuyerID, &sub.Period, &sub.StartedAt,
		&occurrences, &trialEnds, &cancelled, &failed, &ended, &sub.IsTest,
		&sub.TierID, &sub.Recurrence, &sub.PerceivedPriceCents, &sub.FlatFeeApplicable,
		&sub.OfferCodeID, &sub.PaymentMethodID,
		&sub.Status, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	sub.ChargeOccurrenceCount = intPtr(occurrences)
	sub.FreeTrialEndsAt = timePtr(trialEnds)
	sub.CancelledAt = timePtr(cancelled)
	sub.FailedAt = timePtr(failed)
	sub.EndedAt = timePtr(ended)
	return &sub, nil
}
