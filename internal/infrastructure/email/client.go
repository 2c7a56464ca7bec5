// Package email provides the email client for sending transactional emails.
package email

import (
	"fmt"
	"os"

	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/email/templates"
	"github.com/resendlabs/resend-go"
)

// Sender is the from identity for one outbound email. Zero fields fall back
// to the client's environment-configured defaults, so tenants without a
// custom identity still send.
type Sender struct {
	Email string
	Name  string
}

// Service defines the interface for sending emails, allowing for mock
// implementations in tests.
type Service interface {
	SendCartRecoveryEmail(from Sender, toEmail, funnelName string, cartItems int, resumeURL string) error
}

// ResendClient is the concrete implementation of the email Service using the
// Resend API.
type ResendClient struct {
	client    *resend.Client
	fromEmail string
	fromName  string
}

// NewService creates a new email service client, returning the Service interface.
func NewService() (Service, error) {
	apiKey := os.Getenv("RESEND_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("RESEND_API_KEY environment variable is required")
	}

	fromEmail := os.Getenv("RECOVERY_EMAIL_FROM")
	if fromEmail == "" {
		fromEmail = "noreply@signalstack.com"
	}

	fromName := os.Getenv("RECOVERY_EMAIL_FROM_NAME")
	if fromName == "" {
		fromName = "SignalStack"
	}

	return &ResendClient{
		client:    resend.NewClient(apiKey),
		fromEmail: fromEmail,
		fromName:  fromName,
	}, nil
}

// SendCartRecoveryEmail composes and sends a recovery email for an expired
// high-intent session, using the tenant's sender identity when one is set.
func (c *ResendClient) SendCartRecoveryEmail(from Sender, toEmail, funnelName string, cartItems int, resumeURL string) error {
	subject := "You left something behind"

	htmlContent := templates.GetRecoveryEmailContent(templates.RecoveryEmailProps{
		FunnelName: funnelName,
		CartItems:  cartItems,
		ResumeURL:  resumeURL,
	})

	params := &resend.SendEmailRequest{
		From:    c.fromHeader(from),
		To:      []string{toEmail},
		Subject: subject,
		Html:    htmlContent,
	}

	_, err := c.client.Emails.Send(params)
	if err != nil {
		return fmt.Errorf("failed to send recovery email via Resend: %w", err)
	}
	return nil
}

func (c *ResendClient) fromHeader(from Sender) string {
	email := from.Email
	if email == "" {
		email = c.fromEmail
	}
	name := from.Name
	if name == "" {
		name = c.fromName
	}
	return fmt.Sprintf("%s <%s>", name, email)
}
