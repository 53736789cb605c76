package processor

import (
	"context"

	"github.com/renewly/renewly/internal/types"
)

// IntentStatus is the processor-side state of an authorization intent.
type IntentStatus string

const (
	IntentStatusOpen      IntentStatus = "open"
	IntentStatusSucceeded IntentStatus = "succeeded"
	IntentStatusCanceled  IntentStatus = "canceled"
	IntentStatusErrored   IntentStatus = "errored"
)

// Intent is a processor-side handle representing a reserved-but-not-yet-
// captured payment.
type Intent struct {
	ID     string           `json:"id"`
	Type   types.IntentType `json:"type"`
	Status IntentStatus     `json:"status"`
}

// AuthorizeParams are the inputs for reserving a charge.
type AuthorizeParams struct {
	PaymentMethodID string `json:"payment_method_id"`
	AmountCents     int64  `json:"amount_cents"`
	Currency        string `json:"currency"`
	// IdempotencyKey scopes the authorization to one purchase so concurrent
	// retries resolve to the same intent.
	IdempotencyKey string `json:"idempotency_key"`
}

// CaptureResult classifies the outcome of a capture attempt. Declines and
// processing errors are expected business outcomes carried in the result, not
// returned as errors.
type CaptureResult struct {
	Outcome     types.ChargeOutcome `json:"outcome"`
	DeclineCode string              `json:"decline_code,omitempty"`
	ErrorCode   string              `json:"error_code,omitempty"`
}

// CancelOutcome classifies the result of cancelling an intent. The processor
// resolving the intent concurrently is a benign race, reported here instead
// of as an error.
type CancelOutcome string

const (
	CancelOutcomeOK               CancelOutcome = "ok"
	CancelOutcomeAlreadyCanceled  CancelOutcome = "already_canceled"
	CancelOutcomeAlreadySucceeded CancelOutcome = "already_succeeded"
)

// CancelResult is the outcome of a cancel request.
type CancelResult struct {
	Outcome CancelOutcome `json:"outcome"`
}

// ChargeProcessor is the contract this system requires from the external
// charge processor. All operations are idempotent keyed by intent id.
type ChargeProcessor interface {
	// Authorize reserves a charge and returns the resulting intent.
	Authorize(ctx context.Context, params AuthorizeParams) (*Intent, error)

	// Capture settles a previously authorized intent.
	Capture(ctx context.Context, intentID string) (*CaptureResult, error)

	// CancelIntent cancels an outstanding intent. Benign races (intent
	// already canceled or already succeeded at the processor) are reported in
	// the result; any other failure is returned as an error.
	CancelIntent(ctx context.Context, intentID string, intentType types.IntentType) (*CancelResult, error)

	// Refund reverses a captured charge.
	Refund(ctx context.Context, intentID string, amountCents int64) error

	// Retrieve returns the processor-side state of an intent.
	Retrieve(ctx context.Context, intentID string) (*Intent, error)
}
