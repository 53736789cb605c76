package types

import (
	"fmt"
	"strings"

	ierr "github.com/renewly/renewly/internal/errors"
	"github.com/samber/lo"
)

// PreorderState represents the lifecycle state of a preorder. Capture may only
// be attempted from AuthorizationSuccessful; a failed capture leaves the
// preorder in AuthorizationSuccessful so it stays eligible for retry.
type PreorderState string

const (
	PreorderStateInProgress              PreorderState = "in_progress"
	PreorderStateAuthorizationSuccessful PreorderState = "authorization_successful"
	PreorderStateAuthorizationFailed     PreorderState = "authorization_failed"
	PreorderStateChargeSuccessful        PreorderState = "charge_successful"
	PreorderStateChargeFailed            PreorderState = "charge_failed"
	PreorderStateCancelled               PreorderState = "cancelled"
)

// String returns the string representation of the preorder state
func (s PreorderState) String() string {
	return string(s)
}

// Validate validates the preorder state
func (s PreorderState) Validate() error {
	allowedStates := []PreorderState{
		PreorderStateInProgress,
		PreorderStateAuthorizationSuccessful,
		PreorderStateAuthorizationFailed,
		PreorderStateChargeSuccessful,
		PreorderStateChargeFailed,
		PreorderStateCancelled,
	}
	if lo.Contains(allowedStates, s) {
		return nil
	}
	return ierr.NewError("invalid preorder state").
		WithHint(fmt.Sprintf("Preorder state must be one of: %s", strings.Join(lo.Map(allowedStates, func(s PreorderState, _ int) string { return string(s) }), ", "))).
		Mark(ierr.ErrValidation)
}

// preorderTransitions is the explicit transition table of the preorder state
// machine.
var preorderTransitions = map[PreorderState][]PreorderState{
	PreorderStateInProgress: {
		PreorderStateAuthorizationSuccessful,
		PreorderStateAuthorizationFailed,
	},
	PreorderStateAuthorizationSuccessful: {
		PreorderStateChargeSuccessful,
		PreorderStateChargeFailed,
		PreorderStateCancelled,
	},
}

// CanTransitionTo reports whether the state machine allows moving from s to
// target.
func (s PreorderState) CanTransitionTo(target PreorderState) bool {
	return lo.Contains(preorderTransitions[s], target)
}

// IsTerminal reports whether the preorder can no longer change state.
func (s PreorderState) IsTerminal() bool {
	return len(preorderTransitions[s]) == 0
}
