package types

import (
	"fmt"
	"strings"

	ierr "github.com/renewly/renewly/internal/errors"
	"github.com/samber/lo"
)

// PurchaseState represents the state of a single billing event.
type PurchaseState string

const (
	PurchaseStateInProgress                      PurchaseState = "in_progress"
	PurchaseStateSuccessful                      PurchaseState = "successful"
	PurchaseStateFailed                          PurchaseState = "failed"
	PurchaseStatePreorderAuthorizationSuccessful PurchaseState = "preorder_authorization_successful"
	PurchaseStatePreorderAuthorizationFailed     PurchaseState = "preorder_authorization_failed"
	PurchaseStatePreorderConcludedSuccessfully   PurchaseState = "preorder_concluded_successfully"
)

// String returns the string representation of the purchase state
func (s PurchaseState) String() string {
	return string(s)
}

// Validate validates the purchase state
func (s PurchaseState) Validate() error {
	allowedStates := []PurchaseState{
		PurchaseStateInProgress,
		PurchaseStateSuccessful,
		PurchaseStateFailed,
		PurchaseStatePreorderAuthorizationSuccessful,
		PurchaseStatePreorderAuthorizationFailed,
		PurchaseStatePreorderConcludedSuccessfully,
	}
	if lo.Contains(allowedStates, s) {
		return nil
	}
	return ierr.NewError("invalid purchase state").
		WithHint(fmt.Sprintf("Purchase state must be one of: %s", strings.Join(lo.Map(allowedStates, func(s PurchaseState, _ int) string { return string(s) }), ", "))).
		Mark(ierr.ErrValidation)
}

// IsTerminal reports whether the purchase can no longer change state.
func (s PurchaseState) IsTerminal() bool {
	return s == PurchaseStateSuccessful ||
		s == PurchaseStateFailed ||
		s == PurchaseStatePreorderAuthorizationFailed ||
		s == PurchaseStatePreorderConcludedSuccessfully
}

// PurchaseKind distinguishes the billing flow a purchase belongs to. The kind
// selects the failure-handling path when an abandoned authorization is
// reconciled.
type PurchaseKind string

const (
	PurchaseKindClassic               PurchaseKind = "classic"
	PurchaseKindPreorderAuthorization PurchaseKind = "preorder_authorization"
	PurchaseKindPreorderCharge        PurchaseKind = "preorder_charge"
	PurchaseKindMembershipUpgrade     PurchaseKind = "membership_upgrade"
)

// Validate validates the purchase kind
func (k PurchaseKind) Validate() error {
	allowedKinds := []PurchaseKind{
		PurchaseKindClassic,
		PurchaseKindPreorderAuthorization,
		PurchaseKindPreorderCharge,
		PurchaseKindMembershipUpgrade,
	}
	if lo.Contains(allowedKinds, k) {
		return nil
	}
	return ierr.NewError("invalid purchase kind").
		WithHint(fmt.Sprintf("Purchase kind must be one of: %s", strings.Join(lo.Map(allowedKinds, func(k PurchaseKind, _ int) string { return string(k) }), ", "))).
		Mark(ierr.ErrValidation)
}

// IntentType identifies the processor-side object backing an authorization.
type IntentType string

const (
	IntentTypePayment IntentType = "payment"
	IntentTypeSetup   IntentType = "setup"
)
