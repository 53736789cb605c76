package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPreorderStateTransitions(t *testing.T) {
	assert.True(t, PreorderStateInProgress.CanTransitionTo(PreorderStateAuthorizationSuccessful))
	assert.True(t, PreorderStateInProgress.CanTransitionTo(PreorderStateAuthorizationFailed))
	assert.False(t, PreorderStateInProgress.CanTransitionTo(PreorderStateChargeSuccessful))

	assert.True(t, PreorderStateAuthorizationSuccessful.CanTransitionTo(PreorderStateChargeSuccessful))
	assert.True(t, PreorderStateAuthorizationSuccessful.CanTransitionTo(PreorderStateChargeFailed))
	assert.True(t, PreorderStateAuthorizationSuccessful.CanTransitionTo(PreorderStateCancelled))
	assert.False(t, PreorderStateAuthorizationSuccessful.CanTransitionTo(PreorderStateInProgress))

	// Terminal states go nowhere.
	assert.False(t, PreorderStateChargeSuccessful.CanTransitionTo(PreorderStateCancelled))
	assert.False(t, PreorderStateCancelled.CanTransitionTo(PreorderStateAuthorizationSuccessful))
}

func TestPreorderStateIsTerminal(t *testing.T) {
	assert.False(t, PreorderStateInProgress.IsTerminal())
	assert.False(t, PreorderStateAuthorizationSuccessful.IsTerminal())
	assert.True(t, PreorderStateAuthorizationFailed.IsTerminal())
	assert.True(t, PreorderStateChargeSuccessful.IsTerminal())
	assert.True(t, PreorderStateChargeFailed.IsTerminal())
	assert.True(t, PreorderStateCancelled.IsTerminal())
}

func TestPurchaseStateIsTerminal(t *testing.T) {
	assert.False(t, PurchaseStateInProgress.IsTerminal())
	assert.False(t, PurchaseStatePreorderAuthorizationSuccessful.IsTerminal())
	assert.True(t, PurchaseStateSuccessful.IsTerminal())
	assert.True(t, PurchaseStateFailed.IsTerminal())
	assert.True(t, PurchaseStatePreorderAuthorizationFailed.IsTerminal())
	assert.True(t, PurchaseStatePreorderConcludedSuccessfully.IsTerminal())
}
