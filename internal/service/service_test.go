package service

import (
	"context"
	"testing"
	"time"

	"github.com/renewly/renewly/internal/config"
	"github.com/renewly/renewly/internal/domain/product"
	"github.com/renewly/renewly/internal/domain/purchase"
	"github.com/renewly/renewly/internal/domain/subscription"
	"github.com/renewly/renewly/internal/domain/workqueue"
	"github.com/renewly/renewly/internal/logger"
	"github.com/renewly/renewly/internal/testutil"
	"github.com/renewly/renewly/internal/types"
	"github.com/stretchr/testify/require"
)

// testEnv bundles the in-memory stores and fakes the service tests share.
type testEnv struct {
	stores   *testutil.Stores
	clock    *testutil.TestClock
	proc     *testutil.FakeChargeProcessor
	mailer   *testutil.CapturingMailer
	notifier *testutil.CapturingNotifier
	reporter *testutil.CapturingReporter
	params   ServiceParams
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	stores := testutil.NewStores()
	clock := testutil.NewTestClock(time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC))
	proc := testutil.NewFakeChargeProcessor()
	mailer := testutil.NewCapturingMailer()
	notifier := testutil.NewCapturingNotifier()
	reporter := testutil.NewCapturingReporter()

	cfg := &config.Configuration{
		Billing: config.BillingConfig{
			DunningThresholdHours:         120,
			SCACompletionWindowHours:      26,
			PreorderCancellationDelayDays: 14,
			SweepBatchSize:                100,
			SweepStaggerMinutes:           5,
		},
	}

	return &testEnv{
		stores:   stores,
		clock:    clock,
		proc:     proc,
		mailer:   mailer,
		notifier: notifier,
		reporter: reporter,
		params: ServiceParams{
			Logger:         logger.GetLogger(),
			Config:         cfg,
			Clock:          clock,
			DB:             stores.DB,
			SubRepo:        stores.Subscriptions,
			PurchaseRepo:   stores.Purchases,
			PlanChangeRepo: stores.PlanChanges,
			PreorderRepo:   stores.Preorders,
			ProductRepo:    stores.Products,
			JobRepo:        stores.Jobs,
			Processor:      proc,
			Mailer:         mailer,
			Notifier:       notifier,
			Reporter:       reporter,
		},
	}
}

// jobsOfKind returns the enqueued jobs of one kind, ordered by RunAt.
func (e *testEnv) jobsOfKind(ctx context.Context, kind workqueue.JobKind) []*workqueue.ScheduledJob {
	var out []*workqueue.ScheduledJob
	for _, job := range e.stores.Jobs.Jobs(ctx) {
		if job.Kind == kind {
			out = append(out, job)
		}
	}
	return out
}

// seedProduct creates a product with one monthly tier price.
func (e *testEnv) seedProduct(t *testing.T, id string) *product.Product {
	t.Helper()

	prod := &product.Product{
		ID:        id,
		Name:      "Test Product",
		SellerID:  "seller_1",
		BaseModel: types.GetDefaultBaseModel(e.clock.Now()),
	}
	require.NoError(t, e.stores.Products.AddProduct(context.Background(), prod))
	require.NoError(t, e.stores.Products.AddTierPrice(context.Background(), &product.TierPrice{
		ProductID:  id,
		TierID:     "tier_basic",
		Recurrence: types.BillingPeriodMonthly,
		PriceCents: 1000,
	}))
	return prod
}

// seedSubscription creates a monthly subscription started at the clock's
// current time, with the original purchase anchoring the first period.
func (e *testEnv) seedSubscription(t *testing.T, id, productID string) *subscription.Subscription {
	t.Helper()

	now := e.clock.Now()
	sub := &subscription.Subscription{
		ID:                  id,
		ProductID:           productID,
		BuyerID:             "buyer_1",
		Period:              types.BillingPeriodMonthly,
		StartedAt:           now,
		TierID:              "tier_basic",
		Recurrence:          types.BillingPeriodMonthly,
		PerceivedPriceCents: 1000,
		PaymentMethodID:     "pm_test",
		BaseModel:           types.GetDefaultBaseModel(now),
	}
	require.NoError(t, e.stores.Subscriptions.Create(context.Background(), sub))

	succeededAt := now
	original := &purchase.Purchase{
		ID:                             "pur_original_" + id,
		SubscriptionID:                 id,
		BuyerID:                        sub.BuyerID,
		Kind:                           types.PurchaseKindClassic,
		State:                          types.PurchaseStateSuccessful,
		SucceededAt:                    &succeededAt,
		IsOriginalSubscriptionPurchase: true,
		DisplayedPriceCents:            sub.PerceivedPriceCents,
		BaseModel:                      types.GetDefaultBaseModel(now),
	}
	require.NoError(t, e.stores.Purchases.Create(context.Background(), original))
	return sub
}
