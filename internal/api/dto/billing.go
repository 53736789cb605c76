package dto

import (
	ierr "github.com/renewly/renewly/internal/errors"
)

// DispatchDueJobsRequest represents the request to run due scheduled jobs
type DispatchDueJobsRequest struct {
	Limit int `json:"limit"`
}

// Validate validates the dispatch request
func (r *DispatchDueJobsRequest) Validate() error {
	if r.Limit <= 0 {
		r.Limit = 100
	}
	return nil
}

// ProcessSubscriptionChargeRequest represents the request to charge a single subscription
type ProcessSubscriptionChargeRequest struct {
	SubscriptionID            string `json:"subscription_id" validate:"required"`
	IgnoreConsecutiveFailures bool   `json:"ignore_consecutive_failures"`
}

// Validate validates the subscription charge request
func (r *ProcessSubscriptionChargeRequest) Validate() error {
	if r.SubscriptionID == "" {
		return ierr.NewError("subscription_id is required").
			WithHint("Subscription ID is required").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// AttemptPreorderChargeRequest represents the request to run a preorder capture attempt
type AttemptPreorderChargeRequest struct {
	PreorderID string `json:"preorder_id" validate:"required"`
	Attempt    int    `json:"attempt"`
}

// Validate validates the preorder charge request
func (r *AttemptPreorderChargeRequest) Validate() error {
	if r.PreorderID == "" {
		return ierr.NewError("preorder_id is required").
			WithHint("Preorder ID is required").
			Mark(ierr.ErrValidation)
	}
	if r.Attempt <= 0 {
		r.Attempt = 1
	}
	return nil
}

// ReconcileAbandonedAuthRequest represents the request to reconcile a stale purchase
type ReconcileAbandonedAuthRequest struct {
	PurchaseID string `json:"purchase_id" validate:"required"`
}

// Validate validates the reconcile request
func (r *ReconcileAbandonedAuthRequest) Validate() error {
	if r.PurchaseID == "" {
		return ierr.NewError("purchase_id is required").
			WithHint("Purchase ID is required").
			Mark(ierr.ErrValidation)
	}
	return nil
}
