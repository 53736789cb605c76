package errors

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// InternalError is the error type carried through the application. It wraps a
// cause and attaches a human readable hint plus structured details that are
// safe to report to callers and monitoring.
type InternalError struct {
	cause             error
	hint              string
	reportableDetails map[string]any
}

func (e *InternalError) Error() string {
	return e.cause.Error()
}

// Unwrap exposes the cause chain so errors.Is/As keep working.
func (e *InternalError) Unwrap() error {
	return e.cause
}

// Hint returns the human readable hint attached to the error, if any.
func (e *InternalError) Hint() string {
	return e.hint
}

// ReportableDetails returns the structured details attached to the error.
func (e *InternalError) ReportableDetails() map[string]any {
	return e.reportableDetails
}

// ErrorBuilder builds an InternalError fluently. Every chain must end with
// Mark to classify the error against one of the package sentinels.
type ErrorBuilder struct {
	err *InternalError
}

// NewError starts building an error with the given message.
func NewError(message string) *ErrorBuilder {
	return &ErrorBuilder{
		err: &InternalError{cause: errors.New(message)},
	}
}

// NewErrorf starts building an error with a formatted message.
func NewErrorf(format string, args ...any) *ErrorBuilder {
	return &ErrorBuilder{
		err: &InternalError{cause: errors.Newf(format, args...)},
	}
}

// WithError starts building an error that wraps an existing cause.
func WithError(err error) *ErrorBuilder {
	if err == nil {
		err = errors.New("unknown error")
	}
	return &ErrorBuilder{
		err: &InternalError{cause: err},
	}
}

// WithHint attaches a human readable hint.
func (b *ErrorBuilder) WithHint(hint string) *ErrorBuilder {
	b.err.hint = hint
	return b
}

// WithHintf attaches a formatted human readable hint.
func (b *ErrorBuilder) WithHintf(format string, args ...any) *ErrorBuilder {
	b.err.hint = fmt.Sprintf(format, args...)
	return b
}

// WithMessage wraps the cause with an additional message.
func (b *ErrorBuilder) WithMessage(message string) *ErrorBuilder {
	b.err.cause = errors.Wrap(b.err.cause, message)
	return b
}

// WithMessagef wraps the cause with an additional formatted message.
func (b *ErrorBuilder) WithMessagef(format string, args ...any) *ErrorBuilder {
	b.err.cause = errors.Wrapf(b.err.cause, format, args...)
	return b
}

// WithReportableDetails attaches structured details safe to surface to callers.
func (b *ErrorBuilder) WithReportableDetails(details map[string]any) *ErrorBuilder {
	b.err.reportableDetails = details
	return b
}

// Mark classifies the error against a sentinel and finishes the chain.
func (b *ErrorBuilder) Mark(sentinel error) error {
	b.err.cause = errors.Mark(b.err.cause, sentinel)
	return b.err
}

// Error allows an unfinished builder to satisfy the error interface. Chains
// should still always end with Mark.
func (b *ErrorBuilder) Error() string {
	return b.err.Error()
}

// Hint extracts the hint from an error if it carries one.
func Hint(err error) string {
	var ie *InternalError
	if errors.As(err, &ie) {
		return ie.Hint()
	}
	return ""
}

// ReportableDetails extracts the structured details from an error if present.
func ReportableDetails(err error) map[string]any {
	var ie *InternalError
	if errors.As(err, &ie) {
		return ie.ReportableDetails()
	}
	return nil
}
