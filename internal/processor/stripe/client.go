package stripe

import (
	"context"

	"github.com/cenkalti/backoff/v4"
	"github.com/renewly/renewly/internal/config"
	ierr "github.com/renewly/renewly/internal/errors"
	"github.com/renewly/renewly/internal/logger"
	"github.com/renewly/renewly/internal/processor"
	"github.com/renewly/renewly/internal/types"
	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"
	"github.com/stripe/stripe-go/v82/refund"
	"github.com/stripe/stripe-go/v82/setupintent"
)

const retrieveMaxRetries = 3

// Client implements processor.ChargeProcessor on top of the Stripe API.
// Payment intents back classic and preorder purchases; setup intents back
// card-on-file confirmation flows.
type Client struct {
	logger *logger.Logger
}

// NewClient creates a new Stripe-backed charge processor client.
func NewClient(cfg *config.Configuration, logger *logger.Logger) processor.ChargeProcessor {
	stripe.Key = cfg.Stripe.SecretKey
	return &Client{logger: logger}
}

// Authorize reserves a charge with manual capture and returns the intent.
func (c *Client) Authorize(ctx context.Context, params processor.AuthorizeParams) (*processor.Intent, error) {
	if params.PaymentMethodID == "" {
		return nil, ierr.NewError("payment_method_id is required").
			Mark(ierr.ErrValidation)
	}
	if params.AmountCents <= 0 {
		return nil, ierr.NewError("amount must be positive").
			Mark(ierr.ErrValidation)
	}

	currency := params.Currency
	if currency == "" {
		currency = "usd"
	}

	piParams := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(params.AmountCents),
		Currency:      stripe.String(currency),
		PaymentMethod: stripe.String(params.PaymentMethodID),
		Confirm:       stripe.Bool(true),
		CaptureMethod: stripe.String(string(stripe.PaymentIntentCaptureMethodManual)),
	}
	piParams.Context = ctx
	if params.IdempotencyKey != "" {
		piParams.SetIdempotencyKey(params.IdempotencyKey)
	}

	pi, err := paymentintent.New(piParams)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to create payment intent").
			Mark(ierr.ErrHTTPClient)
	}

	return paymentIntentToIntent(pi), nil
}

// Capture settles a previously authorized payment intent. Declines and
// retryable processing errors are carried in the result.
func (c *Client) Capture(ctx context.Context, intentID string) (*processor.CaptureResult, error) {
	if intentID == "" {
		return nil, ierr.NewError("intent id is required").
			Mark(ierr.ErrValidation)
	}

	params := &stripe.PaymentIntentCaptureParams{}
	params.Context = ctx
	params.SetIdempotencyKey("capture_" + intentID)

	pi, err := paymentintent.Capture(intentID, params)
	if err != nil {
		return captureResultFromError(err)
	}

	if pi.Status != stripe.PaymentIntentStatusSucceeded {
		c.logger.Warnw("capture left intent in unexpected status",
			"intent_id", intentID,
			"status", pi.Status)
		return &processor.CaptureResult{
			Outcome:   types.ChargeOutcomeProcessingError,
			ErrorCode: string(pi.Status),
		}, nil
	}

	return &processor.CaptureResult{Outcome: types.ChargeOutcomeSucceeded}, nil
}

// CancelIntent cancels an outstanding intent, treating processor-side
// concurrent resolution as a benign race reported in the result.
func (c *Client) CancelIntent(ctx context.Context, intentID string, intentType types.IntentType) (*processor.CancelResult, error) {
	if intentID == "" {
		return nil, ierr.NewError("intent id is required").
			Mark(ierr.ErrValidation)
	}

	var err error
	if intentType == types.IntentTypeSetup {
		params := &stripe.SetupIntentCancelParams{}
		params.Context = ctx
		_, err = setupintent.Cancel(intentID, params)
	} else {
		params := &stripe.PaymentIntentCancelParams{}
		params.Context = ctx
		_, err = paymentintent.Cancel(intentID, params)
	}
	if err == nil {
		return &processor.CancelResult{Outcome: processor.CancelOutcomeOK}, nil
	}

	// Stripe rejects cancellation of an intent another actor already
	// resolved; retrieve the intent to classify the race.
	if isUnexpectedStateError(err) {
		intent, rerr := c.Retrieve(ctx, intentID)
		if rerr != nil {
			return nil, rerr
		}
		switch intent.Status {
		case processor.IntentStatusCanceled:
			return &processor.CancelResult{Outcome: processor.CancelOutcomeAlreadyCanceled}, nil
		case processor.IntentStatusSucceeded:
			return &processor.CancelResult{Outcome: processor.CancelOutcomeAlreadySucceeded}, nil
		}
	}

	return nil, ierr.WithError(err).
		WithHint("Failed to cancel intent").
		WithReportableDetails(map[string]any{"intent_id": intentID}).
		Mark(ierr.ErrHTTPClient)
}

// Refund reverses a captured charge. A zero amount refunds the full charge.
func (c *Client) Refund(ctx context.Context, intentID string, amountCents int64) error {
	if intentID == "" {
		return ierr.NewError("intent id is required").
			Mark(ierr.ErrValidation)
	}

	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(intentID),
	}
	params.Context = ctx
	if amountCents > 0 {
		params.Amount = stripe.Int64(amountCents)
	}
	params.SetIdempotencyKey("refund_" + intentID)

	if _, err := refund.New(params); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to refund charge").
			WithReportableDetails(map[string]any{"intent_id": intentID}).
			Mark(ierr.ErrHTTPClient)
	}
	return nil
}

// Retrieve returns the processor-side state of a payment intent, retrying
// transient transport failures since the read is idempotent.
func (c *Client) Retrieve(ctx context.Context, intentID string) (*processor.Intent, error) {
	if intentID == "" {
		return nil, ierr.NewError("intent id is required").
			Mark(ierr.ErrValidation)
	}

	var pi *stripe.PaymentIntent
	operation := func() error {
		params := &stripe.PaymentIntentParams{}
		params.Context = ctx
		var err error
		pi, err = paymentintent.Get(intentID, params)
		if err != nil {
			if stripeErr, ok := err.(*stripe.Error); ok && stripeErr.HTTPStatusCode < 500 {
				return backoff.Permanent(err)
			}
			return err
		}
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), retrieveMaxRetries),
		ctx,
	)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to retrieve intent").
			WithReportableDetails(map[string]any{"intent_id": intentID}).
			Mark(ierr.ErrHTTPClient)
	}

	return paymentIntentToIntent(pi), nil
}

func paymentIntentToIntent(pi *stripe.PaymentIntent) *processor.Intent {
	intent := &processor.Intent{
		ID:   pi.ID,
		Type: types.IntentTypePayment,
	}
	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		intent.Status = processor.IntentStatusSucceeded
	case stripe.PaymentIntentStatusCanceled:
		intent.Status = processor.IntentStatusCanceled
	default:
		intent.Status = processor.IntentStatusOpen
	}
	return intent
}

// captureResultFromError maps a Stripe capture failure onto the charge
// outcome taxonomy. Unclassified errors propagate so the outer alerting layer
// reacts.
func captureResultFromError(err error) (*processor.CaptureResult, error) {
	stripeErr, ok := err.(*stripe.Error)
	if !ok {
		return nil, ierr.WithError(err).
			WithHint("Failed to capture payment intent").
			Mark(ierr.ErrHTTPClient)
	}

	switch stripeErr.Code {
	case stripe.ErrorCodeCardDeclined, stripe.ErrorCodeExpiredCard, stripe.ErrorCodeIncorrectCVC:
		declineCode := string(stripeErr.DeclineCode)
		// A processing_error decline is transient at the card network and
		// eligible for bounded retry, unlike a hard decline.
		if declineCode == "processing_error" {
			return &processor.CaptureResult{
				Outcome:   types.ChargeOutcomeProcessingError,
				ErrorCode: declineCode,
			}, nil
		}
		return &processor.CaptureResult{
			Outcome:     types.ChargeOutcomeDeclined,
			DeclineCode: declineCode,
			ErrorCode:   string(stripeErr.Code),
		}, nil
	case stripe.ErrorCodeProcessingError:
		return &processor.CaptureResult{
			Outcome:   types.ChargeOutcomeProcessingError,
			ErrorCode: string(stripeErr.Code),
		}, nil
	}

	return nil, ierr.WithError(err).
		WithHint("Failed to capture payment intent").
		WithReportableDetails(map[string]any{"code": string(stripeErr.Code)}).
		Mark(ierr.ErrHTTPClient)
}

func isUnexpectedStateError(err error) bool {
	stripeErr, ok := err.(*stripe.Error)
	if !ok {
		return false
	}
	return stripeErr.Code == stripe.ErrorCodePaymentIntentUnexpectedState ||
		stripeErr.Code == stripe.ErrorCodeSetupIntentUnexpectedState
}
