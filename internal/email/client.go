package email

import (
	"context"
	"fmt"

	"github.com/renewly/renewly/internal/config"
	"github.com/resend/resend-go/v2"
)

// EmailClient wraps the resend API client.
type EmailClient struct {
	client      *resend.Client
	enabled     bool
	fromAddress string
	fromName    string
}

// NewEmailClient creates a new email client from configuration.
func NewEmailClient(cfg *config.Configuration) *EmailClient {
	c := &EmailClient{
		enabled:     cfg.Email.Enabled && cfg.Email.APIKey != "",
		fromAddress: cfg.Email.FromAddress,
		fromName:    cfg.Email.FromName,
	}
	if c.enabled {
		c.client = resend.NewClient(cfg.Email.APIKey)
	}
	return c
}

// IsEnabled reports whether outbound email is configured.
func (c *EmailClient) IsEnabled() bool {
	return c.enabled
}

// GetFromAddress returns the configured sender address.
func (c *EmailClient) GetFromAddress() string {
	if c.fromName != "" {
		return fmt.Sprintf("%s <%s>", c.fromName, c.fromAddress)
	}
	return c.fromAddress
}

// SendEmail sends a single email and returns the provider message id.
func (c *EmailClient) SendEmail(ctx context.Context, from, to, subject, html, text string) (string, error) {
	params := &resend.SendEmailRequest{
		From:    from,
		To:      []string{to},
		Subject: subject,
		Html:    html,
		Text:    text,
	}

	sent, err := c.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return "", err
	}
	return sent.Id, nil
}
