package notifications

import (
	"context"

	"github.com/renewly/renewly/internal/logger"
)

// WorkflowNotifier schedules tier-specific follow-up content for a purchase.
// It is invoked only when a plan change actually switches tiers, never on
// pure recurrence or price changes.
type WorkflowNotifier interface {
	ScheduleTierContent(ctx context.Context, tierID, purchaseID string) error
}

type logNotifier struct {
	logger *logger.Logger
}

// NewLogNotifier returns a WorkflowNotifier that only records the request.
// The content pipeline consumes these log lines downstream.
func NewLogNotifier(logger *logger.Logger) WorkflowNotifier {
	return &logNotifier{logger: logger}
}

func (n *logNotifier) ScheduleTierContent(ctx context.Context, tierID, purchaseID string) error {
	n.logger.Infow("scheduling tier workflow content",
		"tier_id", tierID,
		"purchase_id", purchaseID)
	return nil
}

// NoopNotifier drops all notifications; used in tests.
type NoopNotifier struct{}

func (NoopNotifier) ScheduleTierContent(ctx context.Context, tierID, purchaseID string) error {
	return nil
}
