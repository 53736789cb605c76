package service

import (
	"context"
	"testing"
	"time"

	"github.com/renewly/renewly/internal/domain/planchange"
	"github.com/renewly/renewly/internal/domain/product"
	"github.com/renewly/renewly/internal/domain/purchase"
	"github.com/renewly/renewly/internal/domain/workqueue"
	ierr "github.com/renewly/renewly/internal/errors"
	"github.com/renewly/renewly/internal/processor"
	"github.com/renewly/renewly/internal/testutil"
	"github.com/renewly/renewly/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessSubscriptionCharges(t *testing.T) {
	env := newTestEnv(t)
	svc := NewRecurringChargeService(env.params)
	ctx := context.Background()

	env.seedProduct(t, "prod_1")
	sub := env.seedSubscription(t, "sub_1", "prod_1")

	env.clock.SetNow(sub.StartedAt.AddDate(0, 1, 0))

	result, err := svc.ProcessSubscription(ctx, sub.ID, ProcessOptions{})
	require.NoError(t, err)
	assert.True(t, result.Charged)
	assert.Equal(t, types.ChargeOutcomeSucceeded, result.ChargeOutcome)
	require.NotEmpty(t, result.PurchaseID)

	pur, err := env.stores.Purchases.Get(ctx, result.PurchaseID)
	require.NoError(t, err)
	assert.Equal(t, types.PurchaseStateSuccessful, pur.State)
	assert.Equal(t, int64(1000), pur.DisplayedPriceCents)
	assert.NotEmpty(t, pur.IntentID)

	require.Len(t, env.proc.AuthorizeCalls, 1)
	assert.Equal(t, "pm_test", env.proc.AuthorizeCalls[0].PaymentMethodID)
	assert.Equal(t, int64(1000), env.proc.AuthorizeCalls[0].AmountCents)
	// The purchase id doubles as the idempotency key.
	assert.Equal(t, result.PurchaseID, env.proc.AuthorizeCalls[0].IdempotencyKey)
}

func TestProcessSubscriptionSecondInvocationIsNoop(t *testing.T) {
	env := newTestEnv(t)
	svc := NewRecurringChargeService(env.params)
	ctx := context.Background()

	env.seedProduct(t, "prod_1")
	sub := env.seedSubscription(t, "sub_1", "prod_1")

	env.clock.SetNow(sub.StartedAt.AddDate(0, 1, 0))

	first, err := svc.ProcessSubscription(ctx, sub.ID, ProcessOptions{})
	require.NoError(t, err)
	require.True(t, first.Charged)

	second, err := svc.ProcessSubscription(ctx, sub.ID, ProcessOptions{})
	require.NoError(t, err)
	assert.False(t, second.Charged)
	assert.Equal(t, types.ChargeDecisionBlocked, second.Decision.Outcome)
	assert.Equal(t, types.SkipReasonAlreadyChargedInPeriod, second.Decision.Reason)

	// Exactly one renewal charge exists next to the original purchase.
	count, err := env.stores.Purchases.CountSuccessfulCharges(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	require.Len(t, env.proc.AuthorizeCalls, 1)
}

func TestProcessSubscriptionNotDueSkips(t *testing.T) {
	env := newTestEnv(t)
	svc := NewRecurringChargeService(env.params)
	ctx := context.Background()

	env.seedProduct(t, "prod_1")
	sub := env.seedSubscription(t, "sub_1", "prod_1")

	env.clock.SetNow(sub.StartedAt.AddDate(0, 0, 10))

	result, err := svc.ProcessSubscription(ctx, sub.ID, ProcessOptions{})
	require.NoError(t, err)
	assert.False(t, result.Charged)
	assert.Equal(t, types.SkipReasonNotOverdue, result.Decision.Reason)
	assert.Empty(t, env.proc.AuthorizeCalls)
}

func TestProcessSubscriptionDeclineSendsMail(t *testing.T) {
	env := newTestEnv(t)
	svc := NewRecurringChargeService(env.params)
	ctx := context.Background()

	env.seedProduct(t, "prod_1")
	sub := env.seedSubscription(t, "sub_1", "prod_1")

	env.clock.SetNow(sub.StartedAt.AddDate(0, 1, 0))
	env.proc.CaptureResults = []*processor.CaptureResult{
		{Outcome: types.ChargeOutcomeDeclined, DeclineCode: "insufficient_funds"},
	}

	result, err := svc.ProcessSubscription(ctx, sub.ID, ProcessOptions{})
	require.NoError(t, err)
	assert.False(t, result.Charged)
	assert.Equal(t, types.ChargeOutcomeDeclined, result.ChargeOutcome)

	pur, err := env.stores.Purchases.Get(ctx, result.PurchaseID)
	require.NoError(t, err)
	assert.Equal(t, types.PurchaseStateFailed, pur.State)
	assert.Equal(t, "insufficient_funds", pur.ErrorCode)

	declined := env.mailer.ByTemplate("card-declined")
	require.Len(t, declined, 1)
	assert.Equal(t, result.PurchaseID, declined[0].EntityID)
	assert.Equal(t, "insufficient_funds", declined[0].DeclineCode)
}

func TestProcessSubscriptionAuthorizeFailureClosesPurchase(t *testing.T) {
	env := newTestEnv(t)
	svc := NewRecurringChargeService(env.params)
	ctx := context.Background()

	env.seedProduct(t, "prod_1")
	sub := env.seedSubscription(t, "sub_1", "prod_1")

	env.clock.SetNow(sub.StartedAt.AddDate(0, 1, 0))
	env.proc.AuthorizeResults = []testutil.AuthorizeScript{
		{Err: ierr.NewError("processor unreachable").Mark(ierr.ErrSystem)},
	}

	result, err := svc.ProcessSubscription(ctx, sub.ID, ProcessOptions{})
	require.NoError(t, err)
	assert.Equal(t, types.ChargeOutcomeProcessingError, result.ChargeOutcome)

	// The purchase is closed so the next invocation can retry cleanly.
	pur, err := env.stores.Purchases.Get(ctx, result.PurchaseID)
	require.NoError(t, err)
	assert.Equal(t, types.PurchaseStateFailed, pur.State)
	assert.Equal(t, "authorization_error", pur.ErrorCode)
}

func TestProcessSubscriptionDunningWaitsBelowThreshold(t *testing.T) {
	env := newTestEnv(t)
	svc := NewRecurringChargeService(env.params)
	ctx := context.Background()

	env.seedProduct(t, "prod_1")
	sub := env.seedSubscription(t, "sub_1", "prod_1")

	dueAt := sub.StartedAt.AddDate(0, 1, 0)
	seedFailedCharge(t, env, sub.ID, dueAt)

	// One minute short of the dunning threshold: wait, do not charge again.
	env.clock.SetNow(dueAt.Add(120*time.Hour - time.Minute))

	result, err := svc.ProcessSubscription(ctx, sub.ID, ProcessOptions{IgnoreConsecutiveFailures: true})
	require.NoError(t, err)
	assert.Equal(t, DunningActionWaiting, result.Dunning)
	assert.Empty(t, env.proc.AuthorizeCalls)

	got, err := env.stores.Subscriptions.Get(ctx, sub.ID)
	require.NoError(t, err)
	assert.Nil(t, got.FailedAt)
}

func TestProcessSubscriptionDunningUnsubscribesPastThreshold(t *testing.T) {
	env := newTestEnv(t)
	svc := NewRecurringChargeService(env.params)
	ctx := context.Background()

	env.seedProduct(t, "prod_1")
	sub := env.seedSubscription(t, "sub_1", "prod_1")

	dueAt := sub.StartedAt.AddDate(0, 1, 0)
	seedFailedCharge(t, env, sub.ID, dueAt)

	env.clock.SetNow(dueAt.Add(120*time.Hour + time.Minute))

	result, err := svc.ProcessSubscription(ctx, sub.ID, ProcessOptions{IgnoreConsecutiveFailures: true})
	require.NoError(t, err)
	assert.Equal(t, DunningActionUnsubscribed, result.Dunning)
	assert.Empty(t, env.proc.AuthorizeCalls)

	got, err := env.stores.Subscriptions.Get(ctx, sub.ID)
	require.NoError(t, err)
	require.NotNil(t, got.FailedAt)

	require.Len(t, env.mailer.ByTemplate("dunning-notice"), 1)
	assert.Contains(t, env.reporter.Messages(), "subscription terminated after dunning threshold")
}

func TestProcessSubscriptionDunningModeStillChargesFreshFailureFreeLedger(t *testing.T) {
	env := newTestEnv(t)
	svc := NewRecurringChargeService(env.params)
	ctx := context.Background()

	env.seedProduct(t, "prod_1")
	sub := env.seedSubscription(t, "sub_1", "prod_1")

	env.clock.SetNow(sub.StartedAt.AddDate(0, 1, 0))

	result, err := svc.ProcessSubscription(ctx, sub.ID, ProcessOptions{IgnoreConsecutiveFailures: true})
	require.NoError(t, err)
	assert.Equal(t, DunningActionNone, result.Dunning)
	assert.True(t, result.Charged)
}

func TestProcessSubscriptionEndsFixedLengthAfterFinalCharge(t *testing.T) {
	env := newTestEnv(t)
	svc := NewRecurringChargeService(env.params)
	ctx := context.Background()

	env.seedProduct(t, "prod_1")
	sub := env.seedSubscription(t, "sub_1", "prod_1")
	limit := 2
	sub.ChargeOccurrenceCount = &limit
	require.NoError(t, env.stores.Subscriptions.Update(ctx, sub))

	env.clock.SetNow(sub.StartedAt.AddDate(0, 1, 0))

	result, err := svc.ProcessSubscription(ctx, sub.ID, ProcessOptions{})
	require.NoError(t, err)
	require.True(t, result.Charged)

	got, err := env.stores.Subscriptions.Get(ctx, sub.ID)
	require.NoError(t, err)
	require.NotNil(t, got.EndedAt)
}

func TestProcessSubscriptionAppliesEffectivePlanChange(t *testing.T) {
	env := newTestEnv(t)
	svc := NewRecurringChargeService(env.params)
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
	require.NoError(t, env.stores.PlanChanges.Create(ctx, &planchange.PlanChange{
		ID:                  "pc_1",
		SubscriptionID:      sub.ID,
		TierID:              "tier_pro",
		Recurrence:          types.BillingPeriodMonthly,
		PerceivedPriceCents: 2500,
		EffectiveOn:         now.AddDate(0, 0, -1),
		BaseModel:           types.GetDefaultBaseModel(sub.StartedAt),
	}))

	env.clock.SetNow(now)

	result, err := svc.ProcessSubscription(ctx, sub.ID, ProcessOptions{})
	require.NoError(t, err)
	require.True(t, result.Charged)

	pur, err := env.stores.Purchases.Get(ctx, result.PurchaseID)
	require.NoError(t, err)
	assert.Equal(t, int64(2500), pur.DisplayedPriceCents)

	got, err := env.stores.Subscriptions.Get(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, "tier_pro", got.TierID)
	assert.Equal(t, int64(2500), got.PerceivedPriceCents)
}

func TestProcessSubscriptionRollsBackAttemptOnFailure(t *testing.T) {
	env := newTestEnv(t)
	svc := NewRecurringChargeService(env.params)
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
	require.NoError(t, env.stores.PlanChanges.Create(ctx, &planchange.PlanChange{
		ID:                  "pc_1",
		SubscriptionID:      sub.ID,
		TierID:              "tier_pro",
		Recurrence:          types.BillingPeriodMonthly,
		PerceivedPriceCents: 2500,
		EffectiveOn:         now.AddDate(0, 0, -1),
		BaseModel:           types.GetDefaultBaseModel(sub.StartedAt),
	}))

	env.clock.SetNow(now)
	env.notifier.Err = ierr.NewError("notification service down").Mark(ierr.ErrSystem)

	_, err := svc.ProcessSubscription(ctx, sub.ID, ProcessOptions{})
	require.Error(t, err)

	// The plan change application rolled back with the rest of the attempt.
	got, err := env.stores.Subscriptions.Get(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, "tier_basic", got.TierID)
	assert.Equal(t, int64(1000), got.PerceivedPriceCents)

	change, err := env.stores.PlanChanges.Get(ctx, "pc_1")
	require.NoError(t, err)
	assert.True(t, change.IsLive())

	inProgress, err := env.stores.Purchases.HasInProgressCharge(ctx, sub.ID)
	require.NoError(t, err)
	assert.False(t, inProgress)
	assert.Empty(t, env.proc.AuthorizeCalls)
}

func TestProcessSubscriptionSchedulesRecheckForOpenIntent(t *testing.T) {
	env := newTestEnv(t)
	svc := NewRecurringChargeService(env.params)
	ctx := context.Background()

	env.seedProduct(t, "prod_1")
	sub := env.seedSubscription(t, "sub_1", "prod_1")
	env.clock.SetNow(sub.StartedAt.AddDate(0, 1, 0))
	now := env.clock.Now()

	result, err := svc.ProcessSubscription(ctx, sub.ID, ProcessOptions{})
	require.NoError(t, err)
	require.True(t, result.Charged)

	rechecks := env.jobsOfKind(ctx, workqueue.JobKindAuthorizationReconcile)
	require.Len(t, rechecks, 1)
	assert.Equal(t, result.PurchaseID, rechecks[0].PurchaseID)
	assert.Equal(t, now.Add(26*time.Hour), rechecks[0].RunAt)
}

func TestProcessSubscriptionStrandedPurchaseRecoversViaRecheck(t *testing.T) {
	env := newTestEnv(t)
	svc := NewRecurringChargeService(env.params)
	dispatch := newDispatchService(env)
	ctx := context.Background()

	env.seedProduct(t, "prod_1")
	sub := env.seedSubscription(t, "sub_1", "prod_1")
	env.clock.SetNow(sub.StartedAt.AddDate(0, 1, 0))

	// The capture call dies after the intent was opened, so the purchase
	// stays in progress with an intent attached.
	env.proc.CaptureErr = ierr.NewError("connection reset during capture").
		Mark(ierr.ErrHTTPClient)
	_, err := svc.ProcessSubscription(ctx, sub.ID, ProcessOptions{})
	require.Error(t, err)

	inProgress, err := env.stores.Purchases.HasInProgressCharge(ctx, sub.ID)
	require.NoError(t, err)
	require.True(t, inProgress)

	// Every further invocation is blocked while the purchase is open.
	result, err := svc.ProcessSubscription(ctx, sub.ID, ProcessOptions{})
	require.NoError(t, err)
	assert.Equal(t, types.ChargeDecisionBlocked, result.Decision.Outcome)
	assert.Equal(t, types.SkipReasonChargeInProgress, result.Decision.Reason)

	// The recheck enqueued alongside the authorization resolves the purchase
	// once the completion window elapses.
	rechecks := env.jobsOfKind(ctx, workqueue.JobKindAuthorizationReconcile)
	require.Len(t, rechecks, 1)

	env.clock.Advance(27 * time.Hour)
	dres, err := dispatch.DispatchDueJobs(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, dres.Processed)

	inProgress, err = env.stores.Purchases.HasInProgressCharge(ctx, sub.ID)
	require.NoError(t, err)
	assert.False(t, inProgress)

	stranded, err := env.stores.Purchases.Get(ctx, rechecks[0].PurchaseID)
	require.NoError(t, err)
	assert.Equal(t, types.PurchaseStateFailed, stranded.State)
	assert.Equal(t, "authorization_abandoned", stranded.ErrorCode)
	assert.Len(t, env.proc.CancelCalls, 1)
}

// seedFailedCharge records a failed renewal attempt at the given time.
func seedFailedCharge(t *testing.T, env *testEnv, subscriptionID string, failedAt time.Time) {
	t.Helper()

	pur := &purchase.Purchase{
		ID:                  "pur_failed_" + subscriptionID,
		SubscriptionID:      subscriptionID,
		BuyerID:             "buyer_1",
		Kind:                types.PurchaseKindClassic,
		State:               types.PurchaseStateFailed,
		FailedAt:            &failedAt,
		DisplayedPriceCents: 1000,
		ErrorCode:           "insufficient_funds",
		BaseModel:           types.GetDefaultBaseModel(failedAt),
	}
	require.NoError(t, env.stores.Purchases.Create(context.Background(), pur))
}
