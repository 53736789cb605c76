package monitor

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/renewly/renewly/internal/config"
	ierr "github.com/renewly/renewly/internal/errors"
	"github.com/renewly/renewly/internal/logger"
)

// Reporter is the channel for conditions that must be surfaced to operators
// without failing the invocation: price-unchanged plan changes, exhausted
// preorder retry budgets, dunning terminations.
type Reporter interface {
	// ReportMessage records a non-fatal condition with structured tags.
	ReportMessage(ctx context.Context, message string, tags map[string]string)

	// ReportError records an error that was handled locally but is still
	// worth operator attention.
	ReportError(ctx context.Context, err error, tags map[string]string)
}

type sentryReporter struct {
	logger *logger.Logger
}

// NewReporter initializes Sentry and returns a Reporter backed by it. When
// Sentry is disabled the reporter only logs.
func NewReporter(cfg *config.Configuration, logger *logger.Logger) (Reporter, error) {
	if !cfg.Sentry.Enabled {
		return &noopReporter{logger: logger}, nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.Sentry.DSN,
		Environment:      cfg.Sentry.Environment,
		TracesSampleRate: cfg.Sentry.SampleRate,
	})
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to initialize Sentry").
			Mark(ierr.ErrSystem)
	}

	return &sentryReporter{logger: logger}, nil
}

func (r *sentryReporter) ReportMessage(ctx context.Context, message string, tags map[string]string) {
	r.logger.Infow("reporting to monitoring", "message", message, "tags", tags)
	sentry.WithScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		sentry.CaptureMessage(message)
	})
}

func (r *sentryReporter) ReportError(ctx context.Context, err error, tags map[string]string) {
	r.logger.Errorw("reporting error to monitoring", "error", err, "tags", tags)
	sentry.WithScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		sentry.CaptureException(err)
	})
}

// Flush waits for buffered events to be delivered before shutdown.
func Flush(timeout time.Duration) {
	sentry.Flush(timeout)
}

type noopReporter struct {
	logger *logger.Logger
}

func (r *noopReporter) ReportMessage(ctx context.Context, message string, tags map[string]string) {
	r.logger.Infow("monitoring disabled, logging report", "message", message, "tags", tags)
}

func (r *noopReporter) ReportError(ctx context.Context, err error, tags map[string]string) {
	r.logger.Errorw("monitoring disabled, logging error report", "error", err, "tags", tags)
}
