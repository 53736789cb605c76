package testutil

import (
	"context"
	"sync"
)

// SentMail records one outbound mail request.
type SentMail struct {
	Template    string
	EntityID    string
	DeclineCode string
	NewPrice    string
}

// CapturingMailer implements email.Mailer, recording every send.
type CapturingMailer struct {
	mu   sync.Mutex
	Sent []SentMail
}

// NewCapturingMailer creates a new capturing mailer
func NewCapturingMailer() *CapturingMailer {
	return &CapturingMailer{}
}

func (m *CapturingMailer) record(mail SentMail) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, mail)
}

func (m *CapturingMailer) SendCardDeclined(ctx context.Context, purchaseID, declineCode string) {
	m.record(SentMail{Template: "card-declined", EntityID: purchaseID, DeclineCode: declineCode})
}

func (m *CapturingMailer) SendDunningNotice(ctx context.Context, subscriptionID string) {
	m.record(SentMail{Template: "dunning-notice", EntityID: subscriptionID})
}

func (m *CapturingMailer) SendPreorderCancelled(ctx context.Context, preorderID string) {
	m.record(SentMail{Template: "preorder-cancelled", EntityID: preorderID})
}

func (m *CapturingMailer) SendPlanChangePriceNotice(ctx context.Context, subscriptionID, newPrice string) {
	m.record(SentMail{Template: "plan-change-price", EntityID: subscriptionID, NewPrice: newPrice})
}

// ByTemplate returns the sends matching the given template name.
func (m *CapturingMailer) ByTemplate(template string) []SentMail {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []SentMail
	for _, mail := range m.Sent {
		if mail.Template == template {
			out = append(out, mail)
		}
	}
	return out
}

// ScheduledContent records one tier content scheduling request.
type ScheduledContent struct {
	TierID     string
	PurchaseID string
}

// CapturingNotifier implements notifications.WorkflowNotifier, recording
// every request. Setting Err makes every call fail after recording.
type CapturingNotifier struct {
	mu        sync.Mutex
	Scheduled []ScheduledContent
	Err       error
}

// NewCapturingNotifier creates a new capturing notifier
func NewCapturingNotifier() *CapturingNotifier {
	return &CapturingNotifier{}
}

func (n *CapturingNotifier) ScheduleTierContent(ctx context.Context, tierID, purchaseID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Scheduled = append(n.Scheduled, ScheduledContent{TierID: tierID, PurchaseID: purchaseID})
	return n.Err
}

// Report records one reported message or error.
type Report struct {
	Message string
	Err     error
	Tags    map[string]string
}

// CapturingReporter implements monitor.Reporter, recording every report.
type CapturingReporter struct {
	mu      sync.Mutex
	Reports []Report
}

// NewCapturingReporter creates a new capturing reporter
func NewCapturingReporter() *CapturingReporter {
	return &CapturingReporter{}
}

func (r *CapturingReporter) ReportMessage(ctx context.Context, message string, tags map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Reports = append(r.Reports, Report{Message: message, Tags: tags})
}

func (r *CapturingReporter) ReportError(ctx context.Context, err error, tags map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Reports = append(r.Reports, Report{Err: err, Tags: tags})
}

// Messages returns the reported message strings in order.
func (r *CapturingReporter) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []string
	for _, report := range r.Reports {
		if report.Message != "" {
			out = append(out, report.Message)
		}
	}
	return out
}
