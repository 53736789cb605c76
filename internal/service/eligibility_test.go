package service

import (
	"context"
	"testing"
	"time"

	"github.com/renewly/renewly/internal/domain/product"
	"github.com/renewly/renewly/internal/domain/purchase"
	"github.com/renewly/renewly/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateDueAtPeriodBoundary(t *testing.T) {
	env := newTestEnv(t)
	svc := NewEligibilityService(env.params)
	ctx := context.Background()

	env.seedProduct(t, "prod_1")
	sub := env.seedSubscription(t, "sub_1", "prod_1")

	// One day short of the boundary.
	decision, err := svc.Evaluate(ctx, sub, sub.StartedAt.AddDate(0, 1, -1))
	require.NoError(t, err)
	assert.Equal(t, types.ChargeDecisionNotDue, decision.Outcome)
	assert.Equal(t, types.SkipReasonNotOverdue, decision.Reason)

	// The boundary itself counts as due.
	decision, err = svc.Evaluate(ctx, sub, sub.StartedAt.AddDate(0, 1, 0))
	require.NoError(t, err)
	assert.True(t, decision.IsDue())
}

func TestEvaluateYearlyPeriod(t *testing.T) {
	env := newTestEnv(t)
	svc := NewEligibilityService(env.params)
	ctx := context.Background()

	env.seedProduct(t, "prod_1")
	require.NoError(t, env.stores.Products.AddTierPrice(ctx, &product.TierPrice{
		ProductID:  "prod_1",
		TierID:     "tier_basic",
		Recurrence: types.BillingPeriodYearly,
		PriceCents: 10000,
	}))
	sub := env.seedSubscription(t, "sub_1", "prod_1")
	sub.Period = types.BillingPeriodYearly
	sub.Recurrence = types.BillingPeriodYearly
	require.NoError(t, env.stores.Subscriptions.Update(ctx, sub))

	decision, err := svc.Evaluate(ctx, sub, sub.StartedAt.AddDate(0, 11, 0))
	require.NoError(t, err)
	assert.Equal(t, types.SkipReasonNotOverdue, decision.Reason)

	decision, err = svc.Evaluate(ctx, sub, sub.StartedAt.AddDate(1, 0, 0))
	require.NoError(t, err)
	assert.True(t, decision.IsDue())
}

func TestEvaluateTestSubscriptionNeverDue(t *testing.T) {
	env := newTestEnv(t)
	svc := NewEligibilityService(env.params)
	ctx := context.Background()

	env.seedProduct(t, "prod_1")
	sub := env.seedSubscription(t, "sub_1", "prod_1")
	sub.IsTest = true

	decision, err := svc.Evaluate(ctx, sub, sub.StartedAt.AddDate(0, 2, 0))
	require.NoError(t, err)
	assert.Equal(t, types.ChargeDecisionNotDue, decision.Outcome)
	assert.Equal(t, types.SkipReasonTestSubscription, decision.Reason)
}

func TestEvaluateDeadSubscription(t *testing.T) {
	env := newTestEnv(t)
	svc := NewEligibilityService(env.params)
	ctx := context.Background()

	env.seedProduct(t, "prod_1")
	sub := env.seedSubscription(t, "sub_1", "prod_1")

	now := sub.StartedAt.AddDate(0, 2, 0)
	cancelled := now.Add(-time.Hour)
	sub.CancelledAt = &cancelled

	decision, err := svc.Evaluate(ctx, sub, now)
	require.NoError(t, err)
	assert.Equal(t, types.SkipReasonNotAlive, decision.Reason)

	// Cancelled effective in the future still bills.
	future := now.Add(24 * time.Hour)
	sub.CancelledAt = &future
	decision, err = svc.Evaluate(ctx, sub, now)
	require.NoError(t, err)
	assert.True(t, decision.IsDue())
}

func TestEvaluateChargeLimit(t *testing.T) {
	env := newTestEnv(t)
	svc := NewEligibilityService(env.params)
	ctx := context.Background()

	env.seedProduct(t, "prod_1")
	sub := env.seedSubscription(t, "sub_1", "prod_1")
	limit := 1
	sub.ChargeOccurrenceCount = &limit

	// The original purchase already counts as the single allowed charge.
	decision, err := svc.Evaluate(ctx, sub, sub.StartedAt.AddDate(0, 2, 0))
	require.NoError(t, err)
	assert.Equal(t, types.SkipReasonChargeLimitReached, decision.Reason)
}

func TestEvaluateSellerSuspended(t *testing.T) {
	env := newTestEnv(t)
	svc := NewEligibilityService(env.params)
	ctx := context.Background()

	require.NoError(t, env.stores.Products.AddProduct(ctx, &product.Product{
		ID:                      "prod_1",
		Name:                    "Test Product",
		SellerID:                "seller_1",
		SellerSuspendedForFraud: true,
		BaseModel:               types.GetDefaultBaseModel(env.clock.Now()),
	}))
	sub := env.seedSubscription(t, "sub_1", "prod_1")

	decision, err := svc.Evaluate(ctx, sub, sub.StartedAt.AddDate(0, 2, 0))
	require.NoError(t, err)
	assert.Equal(t, types.SkipReasonSellerSuspended, decision.Reason)
}

func TestEvaluateChargeInProgressBlocks(t *testing.T) {
	env := newTestEnv(t)
	svc := NewEligibilityService(env.params)
	ctx := context.Background()

	env.seedProduct(t, "prod_1")
	sub := env.seedSubscription(t, "sub_1", "prod_1")

	require.NoError(t, env.stores.Purchases.Create(ctx, &purchase.Purchase{
		ID:             "pur_open",
		SubscriptionID: sub.ID,
		BuyerID:        sub.BuyerID,
		Kind:           types.PurchaseKindClassic,
		State:          types.PurchaseStateInProgress,
		BaseModel:      types.GetDefaultBaseModel(env.clock.Now()),
	}))

	decision, err := svc.Evaluate(ctx, sub, sub.StartedAt.AddDate(0, 2, 0))
	require.NoError(t, err)
	assert.Equal(t, types.ChargeDecisionBlocked, decision.Outcome)
	assert.Equal(t, types.SkipReasonChargeInProgress, decision.Reason)
}

func TestEvaluateAlreadyChargedInPeriod(t *testing.T) {
	env := newTestEnv(t)
	svc := NewEligibilityService(env.params)
	ctx := context.Background()

	env.seedProduct(t, "prod_1")
	sub := env.seedSubscription(t, "sub_1", "prod_1")

	// A renewal charge landed two days ago; a concurrent invocation inside
	// the same period must be a no-op.
	now := sub.StartedAt.AddDate(0, 1, 2)
	succeededAt := sub.StartedAt.AddDate(0, 1, 0)
	require.NoError(t, env.stores.Purchases.Create(ctx, &purchase.Purchase{
		ID:                  "pur_renewal",
		SubscriptionID:      sub.ID,
		BuyerID:             sub.BuyerID,
		Kind:                types.PurchaseKindClassic,
		State:               types.PurchaseStateSuccessful,
		SucceededAt:         &succeededAt,
		DisplayedPriceCents: 1000,
		BaseModel:           types.GetDefaultBaseModel(succeededAt),
	}))

	decision, err := svc.Evaluate(ctx, sub, now)
	require.NoError(t, err)
	assert.Equal(t, types.ChargeDecisionBlocked, decision.Outcome)
	assert.Equal(t, types.SkipReasonAlreadyChargedInPeriod, decision.Reason)
}

func TestEvaluateFreeSubscription(t *testing.T) {
	env := newTestEnv(t)
	svc := NewEligibilityService(env.params)
	ctx := context.Background()

	env.seedProduct(t, "prod_1")
	sub := env.seedSubscription(t, "sub_1", "prod_1")
	sub.PerceivedPriceCents = 0

	decision, err := svc.Evaluate(ctx, sub, sub.StartedAt.AddDate(0, 2, 0))
	require.NoError(t, err)
	assert.Equal(t, types.SkipReasonFreeSubscription, decision.Reason)
}

func TestEvaluateElapsedOfferRevertsToNominalPrice(t *testing.T) {
	env := newTestEnv(t)
	svc := NewEligibilityService(env.params)
	ctx := context.Background()

	env.seedProduct(t, "prod_1")
	sub := env.seedSubscription(t, "sub_1", "prod_1")

	// The buyer agreed to a 100% discount for one cycle. The original
	// purchase consumed that cycle, so the nominal tier price controls now.
	cycles := 1
	require.NoError(t, env.stores.Products.AddOfferCode(ctx, &product.OfferCode{
		ID:                      "offer_1",
		DiscountCents:           1000,
		DurationInBillingCycles: &cycles,
	}))
	sub.PerceivedPriceCents = 0
	sub.OfferCodeID = "offer_1"

	decision, err := svc.Evaluate(ctx, sub, sub.StartedAt.AddDate(0, 2, 0))
	require.NoError(t, err)
	assert.True(t, decision.IsDue())
}

func TestEvaluateFreeTrialPostponesFirstCharge(t *testing.T) {
	env := newTestEnv(t)
	svc := NewEligibilityService(env.params)
	ctx := context.Background()

	env.seedProduct(t, "prod_1")
	sub := env.seedSubscription(t, "sub_1", "prod_1")
	trialEnd := sub.StartedAt.AddDate(0, 2, 0)
	sub.FreeTrialEndsAt = &trialEnd

	decision, err := svc.Evaluate(ctx, sub, sub.StartedAt.AddDate(0, 1, 5))
	require.NoError(t, err)
	assert.Equal(t, types.SkipReasonNotOverdue, decision.Reason)

	decision, err = svc.Evaluate(ctx, sub, trialEnd)
	require.NoError(t, err)
	assert.True(t, decision.IsDue())
}
