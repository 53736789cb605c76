package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"github.com/renewly/renewly/internal/logger"
)

// emailTemplates stores email templates as string constants
var emailTemplates = map[string]string{
	"card-declined.html": `<!DOCTYPE html>
<html>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Helvetica, Arial, sans-serif; font-size: 14px; line-height: 1.6; color: #333;">
    <p>Hi,</p>
    <p>We tried to charge your card for <strong>{{.product_name}}</strong> but it was declined{{if .decline_reason}} ({{.decline_reason}}){{end}}.</p>
    <p>Please update your payment details to keep your order active: <a href="{{.update_url}}">{{.update_url}}</a></p>
    <p>If the card is not updated, the order will be cancelled automatically.</p>
</body>
</html>`,
	"dunning-notice.html": `<!DOCTYPE html>
<html>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Helvetica, Arial, sans-serif; font-size: 14px; line-height: 1.6; color: #333;">
    <p>Hi,</p>
    <p>Your subscription to <strong>{{.product_name}}</strong> has been cancelled because we could not charge your card.</p>
    <p>You can re-subscribe at any time with an updated card.</p>
</body>
</html>`,
	"preorder-cancelled.html": `<!DOCTYPE html>
<html>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Helvetica, Arial, sans-serif; font-size: 14px; line-height: 1.6; color: #333;">
    <p>Hi,</p>
    <p>Your preorder of <strong>{{.product_name}}</strong> has been cancelled because we could not charge your card.</p>
    <p>No money has been taken. You can place a new order with an updated card.</p>
</body>
</html>`,
	"plan-change-price.html": `<!DOCTYPE html>
<html>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Helvetica, Arial, sans-serif; font-size: 14px; line-height: 1.6; color: #333;">
    <p>Hi,</p>
    <p>The price of your subscription to <strong>{{.product_name}}</strong> changes to {{.new_price}} starting with your next billing period.</p>
</body>
</html>`,
}

// Mailer dispatches buyer and seller notices keyed by entity id. Delivery is
// fire-and-forget: a failure is logged and never rolls back billing state.
type Mailer interface {
	SendCardDeclined(ctx context.Context, purchaseID, declineCode string)
	SendDunningNotice(ctx context.Context, subscriptionID string)
	SendPreorderCancelled(ctx context.Context, preorderID string)
	SendPlanChangePriceNotice(ctx context.Context, subscriptionID, newPrice string)
}

// Contact is the resolved recipient of a notice.
type Contact struct {
	Address     string
	ProductName string
}

// Directory resolves a billing entity id to the buyer contact. The user store
// backing it lives outside the billing core.
type Directory interface {
	ContactForSubscription(ctx context.Context, subscriptionID string) (*Contact, error)
	ContactForPurchase(ctx context.Context, purchaseID string) (*Contact, error)
	ContactForPreorder(ctx context.Context, preorderID string) (*Contact, error)
}

// Email implements Mailer on top of the resend client.
type Email struct {
	client    *EmailClient
	directory Directory
	logger    *logger.Logger
}

// NewEmail creates a new email service
func NewEmail(client *EmailClient, directory Directory, logger *logger.Logger) *Email {
	return &Email{
		client:    client,
		directory: directory,
		logger:    logger,
	}
}

func (s *Email) SendCardDeclined(ctx context.Context, purchaseID, declineCode string) {
	contact, err := s.directory.ContactForPurchase(ctx, purchaseID)
	if err != nil {
		s.logger.Errorw("failed to resolve contact for purchase", "purchase_id", purchaseID, "error", err)
		return
	}
	s.sendTemplate(ctx, contact.Address, "Your card was declined", "card-declined.html", map[string]interface{}{
		"product_name":   contact.ProductName,
		"decline_reason": declineCode,
		"update_url":     "https://renewly.dev/settings/payments",
	})
}

func (s *Email) SendDunningNotice(ctx context.Context, subscriptionID string) {
	contact, err := s.directory.ContactForSubscription(ctx, subscriptionID)
	if err != nil {
		s.logger.Errorw("failed to resolve contact for subscription", "subscription_id", subscriptionID, "error", err)
		return
	}
	s.sendTemplate(ctx, contact.Address, "Your subscription has been cancelled", "dunning-notice.html", map[string]interface{}{
		"product_name": contact.ProductName,
	})
}

func (s *Email) SendPreorderCancelled(ctx context.Context, preorderID string) {
	contact, err := s.directory.ContactForPreorder(ctx, preorderID)
	if err != nil {
		s.logger.Errorw("failed to resolve contact for preorder", "preorder_id", preorderID, "error", err)
		return
	}
	s.sendTemplate(ctx, contact.Address, "Your preorder has been cancelled", "preorder-cancelled.html", map[string]interface{}{
		"product_name": contact.ProductName,
	})
}

func (s *Email) SendPlanChangePriceNotice(ctx context.Context, subscriptionID, newPrice string) {
	contact, err := s.directory.ContactForSubscription(ctx, subscriptionID)
	if err != nil {
		s.logger.Errorw("failed to resolve contact for subscription", "subscription_id", subscriptionID, "error", err)
		return
	}
	s.sendTemplate(ctx, contact.Address, "Your subscription price is changing", "plan-change-price.html", map[string]interface{}{
		"product_name": contact.ProductName,
		"new_price":    newPrice,
	})
}

func (s *Email) sendTemplate(ctx context.Context, toAddress, subject, templatePath string, data map[string]interface{}) {
	if !s.client.IsEnabled() {
		s.logger.Warnw("email client is disabled, skipping email send",
			"to", toAddress,
			"subject", subject,
			"template", templatePath,
		)
		return
	}

	htmlContent, err := s.readTemplate(templatePath)
	if err != nil {
		s.logger.Errorw("failed to read email template",
			"error", err,
			"template", templatePath,
		)
		return
	}

	htmlContent, err = s.renderTemplate(htmlContent, data)
	if err != nil {
		s.logger.Errorw("failed to render email template",
			"error", err,
			"template", templatePath,
		)
		return
	}

	messageID, err := s.client.SendEmail(ctx, s.client.GetFromAddress(), toAddress, subject, htmlContent, "")
	if err != nil {
		s.logger.Errorw("failed to send email",
			"error", err,
			"to", toAddress,
			"subject", subject,
		)
		return
	}

	s.logger.Infow("email sent successfully",
		"message_id", messageID,
		"to", toAddress,
		"subject", subject,
		"template", templatePath,
	)
}

func (s *Email) readTemplate(templatePath string) (string, error) {
	templateContent, exists := emailTemplates[templatePath]
	if !exists {
		return "", fmt.Errorf("template not found: %s", templatePath)
	}
	return templateContent, nil
}

// renderTemplate renders an HTML template using Go's html/template for safe HTML rendering
func (s *Email) renderTemplate(templateContent string, data map[string]interface{}) (string, error) {
	tmpl, err := template.New("email").Parse(templateContent)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}

	return buf.String(), nil
}

// NoopMailer drops every notice; used in tests and when email is not
// configured.
type NoopMailer struct{}

func (NoopMailer) SendCardDeclined(ctx context.Context, purchaseID, declineCode string) {}
func (NoopMailer) SendDunningNotice(ctx context.Context, subscriptionID string)         {}
func (NoopMailer) SendPreorderCancelled(ctx context.Context, preorderID string)         {}
func (NoopMailer) SendPlanChangePriceNotice(ctx context.Context, subscriptionID, newPrice string) {
}
