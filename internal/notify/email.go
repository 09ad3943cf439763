package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/sms-email-bridge/internal/bridge"
	"github.com/wolfman30/sms-email-bridge/pkg/logging"
)

var sendgridTracer = otel.Tracer("smsbridge.internal.notify.sendgrid")

const sendGridMailEndpoint = "/v3/mail/send"

// SendGridSender sends emails via SendGrid API. A request is built per send,
// so one sender is safe for concurrent use.
type SendGridSender struct {
	apiKey string
	host   string
	logger *logging.Logger
}

// SendGridConfig holds configuration for SendGrid. Host overrides the API
// base URL and is only set in tests.
type SendGridConfig struct {
	APIKey string
	Host   string
}

// NewSendGridSender creates a new SendGrid email sender. It returns nil when
// no API key is configured.
func NewSendGridSender(cfg SendGridConfig, logger *logging.Logger) *SendGridSender {
	if cfg.APIKey == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &SendGridSender{
		apiKey: cfg.APIKey,
		host:   cfg.Host,
		logger: logger,
	}
}

var _ bridge.EmailSender = (*SendGridSender)(nil)

// Name implements bridge.EmailSender.
func (s *SendGridSender) Name() string { return "SendGrid" }

// SendEmail sends a plain-text email via SendGrid.
func (s *SendGridSender) SendEmail(ctx context.Context, msg bridge.OutboundEmail) error {
	if s == nil || s.apiKey == "" {
		return errors.New("notify: sendgrid client not configured")
	}

	ctx, span := sendgridTracer.Start(ctx, "notify.sendgrid.send")
	defer span.End()
	span.SetAttributes(attribute.String("smsbridge.email.to", msg.To))

	from := mail.NewEmail("", msg.From)
	to := mail.NewEmail("", msg.To)
	message := mail.NewV3MailInit(from, msg.Subject, to, mail.NewContent("text/plain", msg.Body))

	request := sendgrid.GetRequest(s.apiKey, sendGridMailEndpoint, s.host)
	request.Method = "POST"
	request.Body = mail.GetRequestBody(message)

	response, err := sendgrid.MakeRequestWithContext(ctx, request)
	if err != nil {
		span.RecordError(err)
		s.logger.Error("sendgrid send failed", "error", err, "to", msg.To)
		return &bridge.ProviderError{Provider: s.Name(), Err: fmt.Errorf("notify: sendgrid send failed: %w", err)}
	}

	if response.StatusCode >= 400 {
		perr := &bridge.ProviderError{
			Provider: s.Name(),
			Status:   response.StatusCode,
			Reasons:  sendGridReasons(response.Body),
		}
		span.RecordError(perr)
		s.logger.Error("sendgrid returned error status", "status", response.StatusCode, "body", response.Body, "to", msg.To)
		return perr
	}

	s.logger.Info("email sent via sendgrid", "to", msg.To, "subject", msg.Subject, "status", response.StatusCode)
	return nil
}

type sendGridErrorBody struct {
	Errors []struct {
		Message string `json:"message"`
		Field   string `json:"field"`
	} `json:"errors"`
}

// sendGridReasons extracts errors[].message from a v3 error response.
func sendGridReasons(body string) []string {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil
	}
	var parsed sendGridErrorBody
	if err := json.Unmarshal([]byte(body), &parsed); err != nil || len(parsed.Errors) == 0 {
		return []string{body}
	}
	reasons := make([]string, 0, len(parsed.Errors))
	for _, e := range parsed.Errors {
		if e.Message != "" {
			reasons = append(reasons, e.Message)
		}
	}
	return reasons
}

// StubEmailSender logs instead of sending. It backs local development when
// no provider is configured.
type StubEmailSender struct {
	logger *logging.Logger
}

// NewStubEmailSender creates a stub email sender that logs but doesn't send.
func NewStubEmailSender(logger *logging.Logger) *StubEmailSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &StubEmailSender{logger: logger}
}

func (s *StubEmailSender) Name() string { return "stub" }

// SendEmail logs the email but doesn't actually send it.
func (s *StubEmailSender) SendEmail(ctx context.Context, msg bridge.OutboundEmail) error {
	s.logger.Info("stub email sender: would send email", "to", msg.To, "from", msg.From, "subject", msg.Subject)
	return nil
}
