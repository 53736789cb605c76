package testutil

import (
	"context"
	"strconv"
	"sync"

	ierr "github.com/renewly/renewly/internal/errors"
	"github.com/renewly/renewly/internal/processor"
	"github.com/renewly/renewly/internal/types"
)

// FakeChargeProcessor is a scriptable processor.ChargeProcessor. Tests queue
// the results each call should return; calls themselves are recorded for
// assertions.
type FakeChargeProcessor struct {
	mu sync.Mutex

	// Scripted responses, consumed in order. When a queue is empty the
	// corresponding call returns a success default.
	AuthorizeResults []AuthorizeScript
	CaptureResults   []*processor.CaptureResult
	CancelResults    []*processor.CancelResult

	// CaptureErr, when set, is returned by the next Capture call instead of
	// a result and then cleared.
	CaptureErr error

	// Recorded calls.
	AuthorizeCalls []processor.AuthorizeParams
	CaptureCalls   []string
	CancelCalls    []string
	RefundCalls    []string

	intents map[string]*processor.Intent
	nextID  int
}

// AuthorizeScript is one scripted Authorize response.
type AuthorizeScript struct {
	Intent *processor.Intent
	Err    error
}

var _ processor.ChargeProcessor = (*FakeChargeProcessor)(nil)

// NewFakeChargeProcessor creates a new fake charge processor
func NewFakeChargeProcessor() *FakeChargeProcessor {
	return &FakeChargeProcessor{
		intents: make(map[string]*processor.Intent),
	}
}

func (f *FakeChargeProcessor) Authorize(ctx context.Context, params processor.AuthorizeParams) (*processor.Intent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.AuthorizeCalls = append(f.AuthorizeCalls, params)

	if len(f.AuthorizeResults) > 0 {
		script := f.AuthorizeResults[0]
		f.AuthorizeResults = f.AuthorizeResults[1:]
		if script.Intent != nil {
			f.intents[script.Intent.ID] = script.Intent
		}
		return script.Intent, script.Err
	}

	f.nextID++
	intent := &processor.Intent{
		ID:     "pi_test_" + strconv.Itoa(f.nextID),
		Type:   types.IntentTypePayment,
		Status: processor.IntentStatusOpen,
	}
	f.intents[intent.ID] = intent
	return intent, nil
}

func (f *FakeChargeProcessor) Capture(ctx context.Context, intentID string) (*processor.CaptureResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.CaptureCalls = append(f.CaptureCalls, intentID)

	if f.CaptureErr != nil {
		err := f.CaptureErr
		f.CaptureErr = nil
		return nil, err
	}

	if len(f.CaptureResults) > 0 {
		result := f.CaptureResults[0]
		f.CaptureResults = f.CaptureResults[1:]
		return result, nil
	}
	return &processor.CaptureResult{Outcome: types.ChargeOutcomeSucceeded}, nil
}

func (f *FakeChargeProcessor) CancelIntent(ctx context.Context, intentID string, intentType types.IntentType) (*processor.CancelResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.CancelCalls = append(f.CancelCalls, intentID)

	if len(f.CancelResults) > 0 {
		result := f.CancelResults[0]
		f.CancelResults = f.CancelResults[1:]
		return result, nil
	}
	return &processor.CancelResult{Outcome: processor.CancelOutcomeOK}, nil
}

func (f *FakeChargeProcessor) Refund(ctx context.Context, intentID string, amountCents int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.RefundCalls = append(f.RefundCalls, intentID)
	return nil
}

func (f *FakeChargeProcessor) Retrieve(ctx context.Context, intentID string) (*processor.Intent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	intent, ok := f.intents[intentID]
	if !ok {
		return nil, ierr.NewError("intent not found").
			WithReportableDetails(map[string]any{"intent_id": intentID}).
			Mark(ierr.ErrNotFound)
	}
	return intent, nil
}
