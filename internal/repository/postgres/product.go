package postgres

import (
	"context"
	"database/sql"
	"errors"

	domainProduct "github.com/renewly/renewly/internal/domain/product"
	ierr "github.com/renewly/renewly/internal/errors"
	"github.com/renewly/renewly/internal/logger"
	"github.com/renewly/renewly/internal/postgres"
	"github.com/renewly/renewly/internal/types"
)

type productRepository struct {
	client *postgres.Client
	logger *logger.Logger
}

// NewProductRepository creates a new product repository
func NewProductRepository(client *postgres.Client, logger *logger.Logger) domainProduct.Repository {
	return &productRepository{
		client: client,
		logger: logger,
	}
}

func (r *productRepository) Get(ctx context.Context, id string) (*domainProduct.Product, error) {
	query := `
		SELECT id, name, seller_id, release_at, seller_suspended_for_fraud,
		       status, created_at, updated_at
		FROM products WHERE id = $1`

	var p domainProduct.Product
	var releaseAt sql.NullTime
	err := r.client.Querier(ctx).QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.Name, &p.SellerID, &releaseAt, &p.SellerSuspendedForFraud,
		&p.Status, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.NewError("product not found").
				WithReportableDetails(map[string]any{"product_id": id}).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get product").
			Mark(ierr.ErrDatabase)
	}
	p.ReleaseAt = timePtr(releaseAt)
	return &p, nil
}

func (r *productRepository) GetTierPrice(ctx context.Context, productID, tierID string, recurrence types.BillingPeriod) (*domainProduct.TierPrice, error) {
	query := `
		SELECT product_id, tier_id, recurrence, price_cents, flat_fee_applicable
		FROM tier_prices
		WHERE product_id = $1 AND tier_id = $2 AND recurrence = $3`

	var tp domainProduct.TierPrice
	err := r.client.Querier(ctx).QueryRowContext(ctx, query, productID, tierID, recurrence).Scan(
		&tp.ProductID, &tp.TierID, &tp.Recurrence, &tp.PriceCents, &tp.FlatFeeApplicable,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.NewError("tier price not found").
				WithHint("The product does not offer this tier and recurrence combination").
				WithReportableDetails(map[string]any{
					"product_id": productID,
					"tier_id":    tierID,
					"recurrence": recurrence,
				}).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get tier price").
			Mark(ierr.ErrDatabase)
	}
	return &tp, nil
}

func (r *productRepository) GetOfferCode(ctx context.Context, id string) (*domainProduct.OfferCode, error) {
	query := `
		SELECT id, discount_cents, duration_in_billing_cycles
		FROM offer_codes WHERE id = $1`

	var oc domainProduct.OfferCode
	var duration sql.NullInt64
	err := r.client.Querier(ctx).QueryRowContext(ctx, query, id).Scan(
		&oc.ID, &oc.DiscountCents, &duration,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.NewError("offer code not found").
				WithReportableDetails(map[string]any{"offer_code_id": id}).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get offer code").
			Mark(ierr.ErrDatabase)
	}
	oc.DurationInBillingCycles = intPtr(duration)
	return &oc, nil
}
