package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/renewly/renewly/internal/domain/subscription"
	ierr "github.com/renewly/renewly/internal/errors"
	"github.com/renewly/renewly/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSubscription(id string) *subscription.Subscription {
	now := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	return &subscription.Subscription{
		ID:                  id,
		ProductID:           "prod_1",
		BuyerID:             "buyer_1",
		Period:              types.BillingPeriodMonthly,
		StartedAt:           now,
		TierID:              "tier_basic",
		Recurrence:          types.BillingPeriodMonthly,
		PerceivedPriceCents: 1000,
		BaseModel:           types.GetDefaultBaseModel(now),
	}
}

func TestWithTxCommitsOnSuccess(t *testing.T) {
	stores := NewStores()
	ctx := context.Background()

	err := stores.DB.WithTx(ctx, func(ctx context.Context) error {
		return stores.Subscriptions.Create(ctx, newTestSubscription("sub_1"))
	})
	require.NoError(t, err)

	got, err := stores.Subscriptions.Get(ctx, "sub_1")
	require.NoError(t, err)
	assert.Equal(t, "sub_1", got.ID)
}

func TestWithTxRollsBackAllStoresOnError(t *testing.T) {
	stores := NewStores()
	ctx := context.Background()

	require.NoError(t, stores.Subscriptions.Create(ctx, newTestSubscription("sub_1")))

	boom := ierr.NewError("boom").Mark(ierr.ErrSystem)
	err := stores.DB.WithTx(ctx, func(ctx context.Context) error {
		sub, err := stores.Subscriptions.Get(ctx, "sub_1")
		if err != nil {
			return err
		}
		sub.TierID = "tier_pro"
		if err := stores.Subscriptions.Update(ctx, sub); err != nil {
			return err
		}
		if err := stores.Subscriptions.Create(ctx, newTestSubscription("sub_2")); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	// The update rolled back.
	got, err := stores.Subscriptions.Get(ctx, "sub_1")
	require.NoError(t, err)
	assert.Equal(t, "tier_basic", got.TierID)

	// The insert rolled back.
	_, err = stores.Subscriptions.Get(ctx, "sub_2")
	assert.True(t, ierr.IsNotFound(err))
}

func TestWithTxNestedJoinsOuterTransaction(t *testing.T) {
	stores := NewStores()
	ctx := context.Background()

	boom := ierr.NewError("boom").Mark(ierr.ErrSystem)
	err := stores.DB.WithTx(ctx, func(ctx context.Context) error {
		if err := stores.Subscriptions.Create(ctx, newTestSubscription("sub_outer")); err != nil {
			return err
		}
		// The inner transaction succeeds, but the outer failure still rolls
		// its writes back.
		if err := stores.DB.WithTx(ctx, func(ctx context.Context) error {
			return stores.Subscriptions.Create(ctx, newTestSubscription("sub_inner"))
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = stores.Subscriptions.Get(ctx, "sub_outer")
	assert.True(t, ierr.IsNotFound(err))
	_, err = stores.Subscriptions.Get(ctx, "sub_inner")
	assert.True(t, ierr.IsNotFound(err))
}

func TestLockKeyRecordsKeys(t *testing.T) {
	stores := NewStores()
	ctx := context.Background()

	err := stores.DB.WithTx(ctx, func(ctx context.Context) error {
		return stores.DB.LockKey(ctx, "subscription_charge:sub_1")
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"subscription_charge:sub_1"}, stores.DB.LockedKeys)
}
