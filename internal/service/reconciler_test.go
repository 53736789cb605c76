package service

import (
	"context"
	"testing"
	"time"

	"github.com/renewly/renewly/internal/domain/preorder"
	"github.com/renewly/renewly/internal/domain/product"
	"github.com/renewly/renewly/internal/domain/purchase"
	ierr "github.com/renewly/renewly/internal/errors"
	"github.com/renewly/renewly/internal/processor"
	"github.com/renewly/renewly/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedStalePurchase creates an in-progress purchase created longer ago than
// the completion window.
func seedStalePurchase(t *testing.T, env *testEnv, id string, kind types.PurchaseKind) *purchase.Purchase {
	t.Helper()

	createdAt := env.clock.Now().Add(-27 * time.Hour)
	pur := &purchase.Purchase{
		ID:                  id,
		SubscriptionID:      "sub_1",
		BuyerID:             "buyer_1",
		Kind:                kind,
		State:               types.PurchaseStateInProgress,
		DisplayedPriceCents: 1000,
		IntentID:            "pi_stale_1",
		IntentType:          types.IntentTypePayment,
		BaseModel: types.BaseModel{
			Status:    types.StatusPublished,
			CreatedAt: createdAt,
			UpdatedAt: createdAt,
		},
	}
	require.NoError(t, env.stores.Purchases.Create(context.Background(), pur))
	return pur
}

func TestReconcilePurchaseTerminalIsNoop(t *testing.T) {
	env := newTestEnv(t)
	svc := NewAbandonedAuthService(env.params)
	ctx := context.Background()

	pur := seedStalePurchase(t, env, "pur_1", types.PurchaseKindClassic)
	pur.MarkSuccessful(env.clock.Now())
	require.NoError(t, env.stores.Purchases.Update(ctx, pur))

	result, err := svc.ReconcilePurchase(ctx, "pur_1")
	require.NoError(t, err)
	assert.False(t, result.Reconciled)
	assert.False(t, result.Rescheduled)
	assert.Empty(t, env.proc.CancelCalls)
}

func TestReconcilePurchaseWithinWindowReschedules(t *testing.T) {
	env := newTestEnv(t)
	svc := NewAbandonedAuthService(env.params)
	ctx := context.Background()

	now := env.clock.Now()
	pur := &purchase.Purchase{
		ID:             "pur_1",
		SubscriptionID: "sub_1",
		BuyerID:        "buyer_1",
		Kind:           types.PurchaseKindClassic,
		State:          types.PurchaseStateInProgress,
		IntentID:       "pi_1",
		IntentType:     types.IntentTypePayment,
		BaseModel:      types.GetDefaultBaseModel(now.Add(-time.Hour)),
	}
	require.NoError(t, env.stores.Purchases.Create(ctx, pur))

	result, err := svc.ReconcilePurchase(ctx, "pur_1")
	require.NoError(t, err)
	assert.False(t, result.Reconciled)
	assert.True(t, result.Rescheduled)
	require.NotNil(t, result.RecheckAt)
	assert.Equal(t, pur.CreatedAt.Add(26*time.Hour), *result.RecheckAt)
	assert.Empty(t, env.proc.CancelCalls)
}

func TestReconcilePurchaseMissingIntentPastWindow(t *testing.T) {
	env := newTestEnv(t)
	svc := NewAbandonedAuthService(env.params)
	ctx := context.Background()

	pur := seedStalePurchase(t, env, "pur_1", types.PurchaseKindClassic)
	pur.IntentID = ""
	require.NoError(t, env.stores.Purchases.Update(ctx, pur))

	_, err := svc.ReconcilePurchase(ctx, "pur_1")
	require.Error(t, err)
	assert.True(t, ierr.IsInvalidOperation(err))
}

func TestReconcilePurchaseClassic(t *testing.T) {
	env := newTestEnv(t)
	svc := NewAbandonedAuthService(env.params)
	ctx := context.Background()

	seedStalePurchase(t, env, "pur_1", types.PurchaseKindClassic)

	result, err := svc.ReconcilePurchase(ctx, "pur_1")
	require.NoError(t, err)
	assert.True(t, result.Reconciled)

	require.Len(t, env.proc.CancelCalls, 1)
	assert.Equal(t, "pi_stale_1", env.proc.CancelCalls[0])

	got, err := env.stores.Purchases.Get(ctx, "pur_1")
	require.NoError(t, err)
	assert.Equal(t, types.PurchaseStateFailed, got.State)
	assert.Equal(t, "authorization_abandoned", got.ErrorCode)
}

func TestReconcilePurchaseBenignCancelRace(t *testing.T) {
	for _, outcome := range []processor.CancelOutcome{
		processor.CancelOutcomeAlreadyCanceled,
		processor.CancelOutcomeAlreadySucceeded,
	} {
		t.Run(string(outcome), func(t *testing.T) {
			env := newTestEnv(t)
			svc := NewAbandonedAuthService(env.params)
			ctx := context.Background()

			seedStalePurchase(t, env, "pur_1", types.PurchaseKindClassic)
			env.proc.CancelResults = []*processor.CancelResult{{Outcome: outcome}}

			result, err := svc.ReconcilePurchase(ctx, "pur_1")
			require.NoError(t, err)
			assert.False(t, result.Reconciled)

			// Whoever resolved the intent owns the purchase state.
			got, err := env.stores.Purchases.Get(ctx, "pur_1")
			require.NoError(t, err)
			assert.Equal(t, types.PurchaseStateInProgress, got.State)
		})
	}
}

func TestReconcilePurchasePreorderAuthorization(t *testing.T) {
	env := newTestEnv(t)
	svc := NewAbandonedAuthService(env.params)
	ctx := context.Background()

	now := env.clock.Now()
	require.NoError(t, env.stores.Preorders.Create(ctx, &preorder.Preorder{
		ID:         "pre_1",
		ProductID:  "prod_pre",
		BuyerID:    "buyer_1",
		State:      types.PreorderStateInProgress,
		PriceCents: 3000,
		BaseModel:  types.GetDefaultBaseModel(now),
	}))

	pur := seedStalePurchase(t, env, "pur_1", types.PurchaseKindPreorderAuthorization)
	pur.SubscriptionID = ""
	pur.PreorderID = "pre_1"
	require.NoError(t, env.stores.Purchases.Update(ctx, pur))

	result, err := svc.ReconcilePurchase(ctx, "pur_1")
	require.NoError(t, err)
	assert.True(t, result.Reconciled)

	got, err := env.stores.Purchases.Get(ctx, "pur_1")
	require.NoError(t, err)
	assert.Equal(t, types.PurchaseStatePreorderAuthorizationFailed, got.State)
	require.NotNil(t, got.FailedAt)

	pre, err := env.stores.Preorders.Get(ctx, "pre_1")
	require.NoError(t, err)
	assert.Equal(t, types.PreorderStateAuthorizationFailed, pre.State)
}

func TestReconcilePurchaseMembershipUpgradeRollsBackTier(t *testing.T) {
	env := newTestEnv(t)
	svc := NewAbandonedAuthService(env.params)
	ctx := context.Background()

	env.seedProduct(t, "prod_1")
	sub := env.seedSubscription(t, "sub_1", "prod_1")
	sub.TierID = "tier_pro"
	require.NoError(t, env.stores.Subscriptions.Update(ctx, sub))
	require.NoError(t, env.stores.Products.AddTierPrice(ctx, &product.TierPrice{
		ProductID:  "prod_1",
		TierID:     "tier_pro",
		Recurrence: types.BillingPeriodMonthly,
		PriceCents: 2500,
	}))

	pur := seedStalePurchase(t, env, "pur_1", types.PurchaseKindMembershipUpgrade)
	pur.PreUpgradeTierID = "tier_basic"
	require.NoError(t, env.stores.Purchases.Update(ctx, pur))

	result, err := svc.ReconcilePurchase(ctx, "pur_1")
	require.NoError(t, err)
	assert.True(t, result.Reconciled)

	got, err := env.stores.Subscriptions.Get(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, "tier_basic", got.TierID)

	failed, err := env.stores.Purchases.Get(ctx, "pur_1")
	require.NoError(t, err)
	assert.Equal(t, types.PurchaseStateFailed, failed.State)
	assert.Equal(t, "authorization_abandoned", failed.ErrorCode)
}

func TestReconcilePurchaseUpgradeWithoutPreUpgradeTier(t *testing.T) {
	env := newTestEnv(t)
	svc := NewAbandonedAuthService(env.params)
	ctx := context.Background()

	env.seedProduct(t, "prod_1")
	sub := env.seedSubscription(t, "sub_1", "prod_1")
	sub.TierID = "tier_pro"
	require.NoError(t, env.stores.Subscriptions.Update(ctx, sub))

	seedStalePurchase(t, env, "pur_1", types.PurchaseKindMembershipUpgrade)

	_, err := svc.ReconcilePurchase(ctx, "pur_1")
	require.Error(t, err)
	assert.True(t, ierr.IsInvalidOperation(err))

	// The transaction rolled back: the subscription keeps its upgraded tier
	// and the purchase stays in progress.
	got, err := env.stores.Subscriptions.Get(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, "tier_pro", got.TierID)

	pur, err := env.stores.Purchases.Get(ctx, "pur_1")
	require.NoError(t, err)
	assert.Equal(t, types.PurchaseStateInProgress, pur.State)
}
