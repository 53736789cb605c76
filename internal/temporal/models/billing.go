package models

import (
	ierr "github.com/renewly/renewly/internal/errors"
)

// ===================== Sweep Workflow Models =====================

// BillingSweepWorkflowInput represents the input for the billing sweep workflow
type BillingSweepWorkflowInput struct{}

// Validate validates the billing sweep workflow input
func (i *BillingSweepWorkflowInput) Validate() error {
	return nil
}

// BillingSweepWorkflowResult represents the result of the billing sweep workflow
type BillingSweepWorkflowResult struct {
	Scanned  int `json:"scanned"`
	Enqueued int `json:"enqueued"`
	Batches  int `json:"batches"`
}

// ===================== Dispatch Workflow Models =====================

// DispatchDueJobsWorkflowInput represents the input for the dispatch workflow
type DispatchDueJobsWorkflowInput struct {
	Limit int `json:"limit"`
}

// Validate validates the dispatch workflow input
func (i *DispatchDueJobsWorkflowInput) Validate() error {
	if i.Limit <= 0 {
		i.Limit = 100
	}
	return nil
}

// DispatchDueJobsWorkflowResult represents the result of the dispatch workflow
type DispatchDueJobsWorkflowResult struct {
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
}

// ===================== Subscription Charge Workflow Models =====================

// SubscriptionChargeWorkflowInput represents the input for charging a single subscription
type SubscriptionChargeWorkflowInput struct {
	SubscriptionID            string `json:"subscription_id"`
	IgnoreConsecutiveFailures bool   `json:"ignore_consecutive_failures"`
}

// Validate validates the subscription charge workflow input
func (i *SubscriptionChargeWorkflowInput) Validate() error {
	if i.SubscriptionID == "" {
		return ierr.NewError("subscription_id is required").
			WithHint("Subscription ID is required").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// SubscriptionChargeWorkflowResult represents the result of charging a subscription
type SubscriptionChargeWorkflowResult struct {
	Charged    bool   `json:"charged"`
	Outcome    string `json:"outcome,omitempty"`
	SkipReason string `json:"skip_reason,omitempty"`
	PurchaseID string `json:"purchase_id,omitempty"`
}

// ===================== Preorder Charge Workflow Models =====================

// PreorderChargeWorkflowInput represents the input for a preorder capture attempt
type PreorderChargeWorkflowInput struct {
	PreorderID string `json:"preorder_id"`
	Attempt    int    `json:"attempt"`
}

// Validate validates the preorder charge workflow input
func (i *PreorderChargeWorkflowInput) Validate() error {
	if i.PreorderID == "" {
		return ierr.NewError("preorder_id is required").
			WithHint("Preorder ID is required").
			Mark(ierr.ErrValidation)
	}
	if i.Attempt <= 0 {
		i.Attempt = 1
	}
	return nil
}

// PreorderChargeWorkflowResult represents the result of a preorder capture attempt
type PreorderChargeWorkflowResult struct {
	Outcome        string `json:"outcome,omitempty"`
	PurchaseID     string `json:"purchase_id,omitempty"`
	RetryScheduled bool   `json:"retry_scheduled"`
	NextAttempt    int    `json:"next_attempt,omitempty"`
	Exhausted      bool   `json:"exhausted"`
}

// ===================== Reconcile Workflow Models =====================

// ReconcileAbandonedAuthWorkflowInput represents the input for reconciling a stale purchase
type ReconcileAbandonedAuthWorkflowInput struct {
	PurchaseID string `json:"purchase_id"`
}

// Validate validates the reconcile workflow input
func (i *ReconcileAbandonedAuthWorkflowInput) Validate() error {
	if i.PurchaseID == "" {
		return ierr.NewError("purchase_id is required").
			WithHint("Purchase ID is required").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// ReconcileAbandonedAuthWorkflowResult represents the result of reconciling a stale purchase
type ReconcileAbandonedAuthWorkflowResult struct {
	Reconciled  bool `json:"reconciled"`
	Rescheduled bool `json:"rescheduled"`
}
