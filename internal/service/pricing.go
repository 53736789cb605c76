package service

import (
	"context"

	"github.com/renewly/renewly/internal/domain/product"
	"github.com/renewly/renewly/internal/domain/subscription"
	ierr "github.com/renewly/renewly/internal/errors"
)

// chargeAmountCents computes the amount the next charge should settle for.
// The agreed perceived price controls, except when a time-limited offer code
// discount has elapsed: then the tier's nominal price takes over.
func chargeAmountCents(ctx context.Context, deps ServiceParams, sub *subscription.Subscription, successfulCharges int) (int64, error) {
	if sub.OfferCodeID == "" {
		return sub.PerceivedPriceCents, nil
	}

	offer, err := deps.ProductRepo.GetOfferCode(ctx, sub.OfferCodeID)
	if err != nil {
		if ierr.IsNotFound(err) {
			return sub.PerceivedPriceCents, nil
		}
		return 0, err
	}

	if !offer.IsElapsed(successfulCharges) {
		return sub.PerceivedPriceCents, nil
	}

	tierPrice, err := deps.ProductRepo.GetTierPrice(ctx, sub.ProductID, sub.TierID, sub.Recurrence)
	if err != nil {
		return 0, err
	}
	return tierPrice.PriceCents, nil
}

// nominalPriceMinusDiscount computes the price a plan change settles on: the
// target tier's nominal price minus any still-active offer code discount.
func nominalPriceMinusDiscount(ctx context.Context, deps ServiceParams, sub *subscription.Subscription, tierPrice *product.TierPrice, successfulCharges int) (int64, error) {
	price := tierPrice.PriceCents

	if sub.OfferCodeID != "" {
		offer, err := deps.ProductRepo.GetOfferCode(ctx, sub.OfferCodeID)
		if err != nil && !ierr.IsNotFound(err) {
			return 0, err
		}
		if offer != nil {
			price -= offer.DiscountFor(successfulCharges)
		}
	}

	if price < 0 {
		price = 0
	}
	return price, nil
}
