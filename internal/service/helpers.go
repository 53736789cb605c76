package service

import (
	"context"
	"strconv"
	"time"

	"github.com/renewly/renewly/internal/domain/purchase"
	"github.com/renewly/renewly/internal/domain/subscription"
	"github.com/renewly/renewly/internal/domain/workqueue"
	"github.com/renewly/renewly/internal/processor"
	"github.com/renewly/renewly/internal/types"
	"github.com/shopspring/decimal"
)

func subscriptionID() string {
	return types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIPTION)
}

func purchaseID() string {
	return types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PURCHASE)
}

func planChangeID() string {
	return types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PLAN_CHANGE)
}

func jobID() string {
	return types.GenerateUUIDWithPrefix(types.UUID_PREFIX_JOB)
}

func itoa(n int) string {
	return strconv.Itoa(n)
}

func baseModelAt(now time.Time) types.BaseModel {
	return types.GetDefaultBaseModel(now)
}

// formatCents renders a cent amount as a display price.
func formatCents(cents int64) string {
	return "$" + decimal.NewFromInt(cents).Div(decimal.NewFromInt(100)).StringFixed(2)
}

// scheduleAuthorizationRecheck enqueues the reconcile job for a purchase that
// holds an open intent. Every such purchase gets exactly one initial recheck
// at the end of its completion window, so a settlement path that dies midway
// cannot strand the purchase in progress forever. The reconciler is a no-op
// for purchases that reached a terminal state in the meantime.
func scheduleAuthorizationRecheck(ctx context.Context, p ServiceParams, pur *purchase.Purchase) error {
	job := &workqueue.ScheduledJob{
		ID:         jobID(),
		Kind:       workqueue.JobKindAuthorizationReconcile,
		PurchaseID: pur.ID,
		RunAt:      pur.CreatedAt.Add(p.Config.Billing.SCACompletionWindow()),
		BaseModel:  baseModelAt(p.Clock.Now()),
	}
	return p.JobRepo.Enqueue(ctx, job)
}

// authorizeParamsFor builds the processor authorization request for a charge
// purchase. The purchase id doubles as the idempotency key so concurrent
// retries resolve to the same intent.
func authorizeParamsFor(sub *subscription.Subscription, pur *purchase.Purchase) processor.AuthorizeParams {
	return processor.AuthorizeParams{
		PaymentMethodID: sub.PaymentMethodID,
		AmountCents:     pur.DisplayedPriceCents,
		Currency:        "usd",
		IdempotencyKey:  pur.ID,
	}
}
