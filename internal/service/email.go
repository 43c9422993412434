package service

import (
	"context"
	"fmt"
	"sort"

	"forum-invitations/internal/logger"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

type mailClient interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

type sendGridEmailService struct {
	client    mailClient
	fromEmail string
	fromName  string
	templates map[string]string
}

// NewSendGridEmailService sends templated mail through SendGrid dynamic
// templates. templates maps a template name to a SendGrid template id.
func NewSendGridEmailService(apiKey, fromEmail, fromName string, templates map[string]string) EmailService {
	return newSendGridEmailService(sendgrid.NewSendClient(apiKey), fromEmail, fromName, templates)
}

func newSendGridEmailService(client mailClient, fromEmail, fromName string, templates map[string]string) *sendGridEmailService {
	return &sendGridEmailService{
		client:    client,
		fromEmail: fromEmail,
		fromName:  fromName,
		templates: templates,
	}
}

func (s *sendGridEmailService) SendToEmail(ctx context.Context, template, email, language string, payload map[string]any) error {
	templateID, ok := s.templates[template]
	if !ok || templateID == "" {
		return fmt.Errorf("no sendgrid template configured for %q", template)
	}

	message := mail.NewV3Mail()
	message.SetFrom(mail.NewEmail(s.fromName, s.fromEmail))
	message.SetTemplateID(templateID)

	personalization := mail.NewPersonalization()
	personalization.AddTos(mail.NewEmail("", email))
	if subject, ok := payload["subject"].(string); ok {
		personalization.Subject = subject
	}
	for key, value := range payload {
		personalization.SetDynamicTemplateData(key, value)
	}
	personalization.SetDynamicTemplateData("language", language)
	message.AddPersonalizations(personalization)

	response, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("failed to send %s email: %w", template, err)
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("sendgrid error: status %d, body: %s", response.StatusCode, response.Body)
	}
	return nil
}

type logEmailService struct{}

// NewLogEmailService returns an EmailService that only logs what it would
// send. Used when no SendGrid API key is configured.
func NewLogEmailService() EmailService {
	return logEmailService{}
}

func (logEmailService) SendToEmail(ctx context.Context, template, email, language string, payload map[string]any) error {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	args := []any{"template", template, "to", email, "language", language}
	for _, k := range keys {
		args = append(args, k, payload[k])
	}
	logger.InfoContext(ctx, "Email delivery disabled, logging message", args...)
	return nil
}
