package postgres

import (
	"context"
	"database/sql"
	"errors"

	domainPurchase "github.com/renewly/renewly/internal/domain/purchase"
	ierr "github.com/renewly/renewly/internal/errors"
	"github.com/renewly/renewly/internal/logger"
	"github.com/renewly/renewly/internal/postgres"
)

type purchaseRepository struct {
	client *postgres.Client
	logger *logger.Logger
}

// NewPurchaseRepository creates a new purchase repository
func NewPurchaseRepository(client *postgres.Client, logger *logger.Logger) domainPurchase.Repository {
	return &purchaseRepository{
		client: client,
		logger: logger,
	}
}

const purchaseColumns = `
	id, subscription_id, preorder_id, buyer_id, kind, state,
	succeeded_at, failed_at, is_original_subscription_purchase,
	displayed_price_cents, error_code, intent_id, intent_type,
	pre_upgrade_tier_id, status, created_at, updated_at`

// chargeKinds restricts a query to purchases that represent actual charge
// attempts, excluding preorder authorizations.
const chargeKinds = `('classic', 'preorder_charge', 'membership_upgrade')`

func (r *purchaseRepository) Create(ctx context.Context, p *domainPurchase.Purchase) error {
	r.logger.Debugw("creating purchase", "purchase_id", p.ID, "kind", p.Kind)

	query := `
		INSERT INTO purchases (` + purchaseColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	_, err := r.client.Querier(ctx).ExecContext(ctx, query,
		p.ID, p.SubscriptionID, p.PreorderID, p.BuyerID, p.Kind, p.State,
		nullTime(p.SucceededAt), nullTime(p.FailedAt), p.IsOriginalSubscriptionPurchase,
		p.DisplayedPriceCents, p.ErrorCode, p.IntentID, p.IntentType,
		p.PreUpgradeTierID, p.Status, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to create purchase").
			WithReportableDetails(map[string]any{"purchase_id": p.ID}).
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *purchaseRepository) Get(ctx context.Context, id string) (*domainPurchase.Purchase, error) {
	query := `SELECT ` + purchaseColumns + ` FROM purchases WHERE id = $1`
	return r.getOne(ctx, query, id)
}

func (r *purchaseRepository) Update(ctx context.Context, p *domainPurchase.Purchase) error {
	query := `
		UPDATE purchases SET
			state = $2, succeeded_at = $3, failed_at = $4,
			displayed_price_cents = $5, error_code = $6,
			intent_id = $7, intent_type = $8, updated_at = $9
		WHERE id = $1`

	res, err := r.client.Querier(ctx).ExecContext(ctx, query,
		p.ID, p.State, nullTime(p.SucceededAt), nullTime(p.FailedAt),
		p.DisplayedPriceCents, p.ErrorCode,
		p.IntentID, p.IntentType, p.UpdatedAt,
	)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update purchase").
			WithReportableDetails(map[string]any{"purchase_id": p.ID}).
			Mark(ierr.ErrDatabase)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ierr.NewError("purchase not found").
			WithReportableDetails(map[string]any{"purchase_id": p.ID}).
			Mark(ierr.ErrNotFound)
	}
	return nil
}

func (r *purchaseRepository) GetOriginalForSubscription(ctx context.Context, subscriptionID string) (*domainPurchase.Purchase, error) {
	query := `
		SELECT ` + purchaseColumns + ` FROM purchases
		WHERE subscription_id = $1 AND is_original_subscription_purchase = TRUE
		ORDER BY created_at LIMIT 1`
	return r.getOne(ctx, query, subscriptionID)
}

func (r *purchaseRepository) GetLatestSuccessfulCharge(ctx context.Context, subscriptionID string) (*domainPurchase.Purchase, error) {
	query := `
		SELECT ` + purchaseColumns + ` FROM purchases
		WHERE subscription_id = $1 AND succeeded_at IS NOT NULL
		  AND kind IN ` + chargeKinds + `
		ORDER BY succeeded_at DESC LIMIT 1`
	return r.getOne(ctx, query, subscriptionID)
}

func (r *purchaseRepository) GetLatestCharge(ctx context.Context, subscriptionID string) (*domainPurchase.Purchase, error) {
	query := `
		SELECT ` + purchaseColumns + ` FROM purchases
		WHERE subscription_id = $1 AND is_original_subscription_purchase = FALSE
		  AND kind IN ` + chargeKinds + `
		ORDER BY created_at DESC LIMIT 1`
	return r.getOne(ctx, query, subscriptionID)
}

func (r *purchaseRepository) HasInProgressCharge(ctx context.Context, subscriptionID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM purchases
			WHERE subscription_id = $1 AND state = 'in_progress'
			  AND is_original_subscription_purchase = FALSE
			  AND kind IN ` + chargeKinds + `
		)`

	var exists bool
	if err := r.client.Querier(ctx).QueryRowContext(ctx, query, subscriptionID).Scan(&exists); err != nil {
		return false, ierr.WithError(err).
			WithHint("Failed to check for in-progress charge").
			Mark(ierr.ErrDatabase)
	}
	return exists, nil
}

func (r *purchaseRepository) CountSuccessfulCharges(ctx context.Context, subscriptionID string) (int, error) {
	query := `
		SELECT COUNT(*) FROM purchases
		WHERE subscription_id = $1 AND succeeded_at IS NOT NULL
		  AND kind IN ` + chargeKinds

	var count int
	if err := r.client.Querier(ctx).QueryRowContext(ctx, query, subscriptionID).Scan(&count); err != nil {
		return 0, ierr.WithError(err).
			WithHint("Failed to count successful charges").
			Mark(ierr.ErrDatabase)
	}
	return count, nil
}

func (r *purchaseRepository) GetAuthorizationForPreorder(ctx context.Context, preorderID string) (*domainPurchase.Purchase, error) {
	query := `
		SELECT ` + purchaseColumns + ` FROM purchases
		WHERE preorder_id = $1 AND kind = 'preorder_authorization'
		ORDER BY created_at LIMIT 1`
	return r.getOne(ctx, query, preorderID)
}

func (r *purchaseRepository) ListForPreorder(ctx context.Context, preorderID string) ([]*domainPurchase.Purchase, error) {
	query := `
		SELECT ` + purchaseColumns + ` FROM purchases
		WHERE preorder_id = $1
		ORDER BY created_at DESC`

	rows, err := r.client.Querier(ctx).QueryContext(ctx, query, preorderID)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list purchases for preorder").
			Mark(ierr.ErrDatabase)
	}
	defer rows.Close()

	var purchases []*domainPurchase.Purchase
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, ierr.WithError(err).
				WithHint("Failed to scan purchase row").
				Mark(ierr.ErrDatabase)
		}
		purchases = append(purchases, p)
	}
	if err := rows.Err(); err != nil {
		return nil, ierr.WithError(err).Mark(ierr.ErrDatabase)
	}
	return purchases, nil
}

func (r *purchaseRepository) getOne(ctx context.Context, query string, arg any) (*domainPurchase.Purchase, error) {
	row := r.client.Querier(ctx).QueryRowContext(ctx, query, arg)
	p, err := scanPurchase(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.NewError("purchase not found").
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get purchase").
			Mark(ierr.ErrDatabase)
	}
	return p, nil
}

func scanPurchase(row rowScanner) (*domainPurchase.Purchase, error) {
	var p domainPurchase.Purchase
	var succeeded, failed sql.NullTime

	err := row.Scan(
		&p.ID, &p.SubscriptionID, &p.PreorderID, &p.BuyerID, &p.Kind, &p.State,
		&succeeded, &failed, &p.IsOriginalSubscriptionPurchase,
		&p.DisplayedPriceCents, &p.ErrorCode, &p.IntentID, &p.IntentType,
		&p.PreUpgradeTierID, &p.Status, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.SucceededAt = timePtr(succeeded)
	p.FailedAt = timePtr(failed)
	return &p, nil
}
