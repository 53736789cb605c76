package service

import (
	"context"
	"testing"
	"time"

	"github.com/renewly/renewly/internal/domain/planchange"
	"github.com/renewly/renewly/internal/domain/product"
	"github.com/renewly/renewly/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedPlanChange(t *testing.T, env *testEnv, id, subscriptionID, tierID string, price int64, effectiveOn time.Time) *planchange.PlanChange {
	t.Helper()

	change := &planchange.PlanChange{
		ID:                  id,
		SubscriptionID:      subscriptionID,
		TierID:              tierID,
		Recurrence:          types.BillingPeriodMonthly,
		PerceivedPriceCents: price,
		EffectiveOn:         effectiveOn,
		BaseModel:           types.GetDefaultBaseModel(env.clock.Now()),
	}
	require.NoError(t, env.stores.PlanChanges.Create(context.Background(), change))
	return change
}

func TestApplyIfEffectiveFinancialChange(t *testing.T) {
	env := newTestEnv(t)
	svc := NewPlanChangeService(env.params)
	ctx := context.Background()

	env.seedProduct(t, "prod_1")
	sub := env.seedSubscription(t, "sub_1", "prod_1")
	require.NoError(t, env.stores.Products.AddTierPrice(ctx, &product.TierPrice{
		ProductID:  "prod_1",
		TierID:     "tier_pro",
		Recurrence: types.BillingPeriodMonthly,
		PriceCents: 2500,
	}))

	now := sub.StartedAt.AddDate(0, 1, 0)
	seedPlanChange(t, env, "pc_1", sub.ID, "tier_pro", 2500, now.AddDate(0, 0, -1))

	result, err := svc.ApplyIfEffective(ctx, sub, now)
	require.NoError(t, err)
	assert.True(t, result.Applied)
	assert.True(t, result.TierChanged)
	assert.True(t, result.FinancialChange)

	assert.Equal(t, "tier_pro", sub.TierID)
	assert.Equal(t, int64(2500), sub.PerceivedPriceCents)

	// The original purchase mirrors the new agreed price.
	original, err := env.stores.Purchases.GetOriginalForSubscription(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2500), original.DisplayedPriceCents)

	// The change is consumed and can never be picked up again.
	change, err := env.stores.PlanChanges.Get(ctx, "pc_1")
	require.NoError(t, err)
	assert.True(t, change.Applied)
	assert.False(t, change.IsLive())

	// The tier changed, so content scheduling was requested.
	require.Len(t, env.notifier.Scheduled, 1)
	assert.Equal(t, "tier_pro", env.notifier.Scheduled[0].TierID)
	assert.Equal(t, original.ID, env.notifier.Scheduled[0].PurchaseID)
}

func TestApplyIfEffectivePriceUnchangedReportsInsteadOfRaising(t *testing.T) {
	env := newTestEnv(t)
	svc := NewPlanChangeService(env.params)
	ctx := context.Background()

	env.seedProduct(t, "prod_1")
	sub := env.seedSubscription(t, "sub_1", "prod_1")
	require.NoError(t, env.stores.Products.AddTierPrice(ctx, &product.TierPrice{
		ProductID:  "prod_1",
		TierID:     "tier_pro",
		Recurrence: types.BillingPeriodMonthly,
		PriceCents: 1000,
	}))

	now := sub.StartedAt.AddDate(0, 1, 0)
	seedPlanChange(t, env, "pc_1", sub.ID, "tier_pro", 1000, now.AddDate(0, 0, -1))

	result, err := svc.ApplyIfEffective(ctx, sub, now)
	require.NoError(t, err)
	assert.True(t, result.Applied)
	assert.False(t, result.FinancialChange)

	// Tier bookkeeping still happens.
	assert.Equal(t, "tier_pro", sub.TierID)
	assert.Equal(t, int64(1000), sub.PerceivedPriceCents)

	// The original purchase price must not be touched.
	original, err := env.stores.Purchases.GetOriginalForSubscription(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), original.DisplayedPriceCents)

	assert.Contains(t, env.reporter.Messages(), "subscription plan change applied but price has not changed")
}

func TestApplyIfEffectiveNotYetEffective(t *testing.T) {
	env := newTestEnv(t)
	svc := NewPlanChangeService(env.params)
	ctx := context.Background()

	env.seedProduct(t, "prod_1")
	sub := env.seedSubscription(t, "sub_1", "prod_1")

	now := sub.StartedAt.AddDate(0, 1, 0)
	seedPlanChange(t, env, "pc_1", sub.ID, "tier_pro", 2500, now.AddDate(0, 0, 3))

	result, err := svc.ApplyIfEffective(ctx, sub, now)
	require.NoError(t, err)
	assert.False(t, result.Applied)
	assert.Equal(t, "tier_basic", sub.TierID)
}

func TestApplyIfEffectiveNoLiveChange(t *testing.T) {
	env := newTestEnv(t)
	svc := NewPlanChangeService(env.params)
	ctx := context.Background()

	env.seedProduct(t, "prod_1")
	sub := env.seedSubscription(t, "sub_1", "prod_1")

	result, err := svc.ApplyIfEffective(ctx, sub, sub.StartedAt.AddDate(0, 1, 0))
	require.NoError(t, err)
	assert.False(t, result.Applied)
}

func TestApplyIfEffectiveSoftDeletesSupersededChanges(t *testing.T) {
	env := newTestEnv(t)
	svc := NewPlanChangeService(env.params)
	ctx := context.Background()

	env.seedProduct(t, "prod_1")
	sub := env.seedSubscription(t, "sub_1", "prod_1")
	require.NoError(t, env.stores.Products.AddTierPrice(ctx, &product.TierPrice{
		ProductID:  "prod_1",
		TierID:     "tier_pro",
		Recurrence: types.BillingPeriodMonthly,
		PriceCents: 2500,
	}))

	now := sub.StartedAt.AddDate(0, 1, 0)
	// Older change superseded by a newer one; the newer applies.
	older := seedPlanChange(t, env, "pc_old", sub.ID, "tier_pro", 2000, now.AddDate(0, 0, -2))
	older.CreatedAt = env.clock.Now().AddDate(0, 0, -10)
	require.NoError(t, env.stores.PlanChanges.Update(ctx, older))
	seedPlanChange(t, env, "pc_new", sub.ID, "tier_pro", 2500, now.AddDate(0, 0, -1))

	result, err := svc.ApplyIfEffective(ctx, sub, now)
	require.NoError(t, err)
	require.True(t, result.Applied)
	assert.Equal(t, "pc_new", result.PlanChangeID)

	stale, err := env.stores.PlanChanges.Get(ctx, "pc_old")
	require.NoError(t, err)
	assert.False(t, stale.Applied)
	assert.False(t, stale.IsLive())
}

func TestApplyIfEffectiveOfferDiscountStillApplies(t *testing.T) {
	env := newTestEnv(t)
	svc := NewPlanChangeService(env.params)
	ctx := context.Background()

	env.seedProduct(t, "prod_1")
	sub := env.seedSubscription(t, "sub_1", "prod_1")
	require.NoError(t, env.stores.Products.AddTierPrice(ctx, &product.TierPrice{
		ProductID:  "prod_1",
		TierID:     "tier_pro",
		Recurrence: types.BillingPeriodMonthly,
		PriceCents: 2500,
	}))
	require.NoError(t, env.stores.Products.AddOfferCode(ctx, &product.OfferCode{
		ID:            "offer_1",
		DiscountCents: 500,
	}))
	sub.OfferCodeID = "offer_1"
	require.NoError(t, env.stores.Subscriptions.Update(ctx, sub))

	now := sub.StartedAt.AddDate(0, 1, 0)
	seedPlanChange(t, env, "pc_1", sub.ID, "tier_pro", 2000, now.AddDate(0, 0, -1))

	result, err := svc.ApplyIfEffective(ctx, sub, now)
	require.NoError(t, err)
	require.True(t, result.Applied)

	// New price = nominal 2500 minus the still-active 500 discount.
	assert.Equal(t, int64(2000), sub.PerceivedPriceCents)
}

func TestApplyIfEffectiveMissingTierPrice(t *testing.T) {
	env := newTestEnv(t)
	svc := NewPlanChangeService(env.params)
	ctx := context.Background()

	env.seedProduct(t, "prod_1")
	sub := env.seedSubscription(t, "sub_1", "prod_1")

	now := sub.StartedAt.AddDate(0, 1, 0)
	seedPlanChange(t, env, "pc_1", sub.ID, "tier_missing", 2500, now.AddDate(0, 0, -1))

	_, err := svc.ApplyIfEffective(ctx, sub, now)
	require.Error(t, err)
}

func TestSchedulePriceChange(t *testing.T) {
	env := newTestEnv(t)
	svc := NewPlanChangeService(env.params)
	ctx := context.Background()

	env.seedProduct(t, "prod_1")
	sub := env.seedSubscription(t, "sub_1", "prod_1")

	// An earlier pending change gets superseded by the price propagation.
	seedPlanChange(t, env, "pc_old", sub.ID, "tier_basic", 1200, sub.StartedAt.AddDate(0, 2, 0))

	effectiveOn := sub.StartedAt.AddDate(0, 1, 0)
	change, err := svc.SchedulePriceChange(ctx, sub, 1500, effectiveOn)
	require.NoError(t, err)
	assert.True(t, change.ForProductPriceChange)
	assert.Equal(t, int64(1500), change.PerceivedPriceCents)
	assert.Equal(t, sub.TierID, change.TierID)

	live, err := env.stores.PlanChanges.ListLiveForSubscription(ctx, sub.ID)
	require.NoError(t, err)
	require.Len(t, live, 1)
	assert.Equal(t, change.ID, live[0].ID)

	notices := env.mailer.ByTemplate("plan-change-price")
	require.Len(t, notices, 1)
	assert.Equal(t, sub.ID, notices[0].EntityID)
	assert.Equal(t, "$15.00", notices[0].NewPrice)
}
