package notify

import (
	"fmt"
	"strings"

	"github.com/wolfman30/sms-email-bridge/internal/bridge"
	"github.com/wolfman30/sms-email-bridge/pkg/logging"
)

const (
	// EmailProviderSendGrid sends through the SendGrid v3 API.
	EmailProviderSendGrid = "sendgrid"
	// EmailProviderSES sends through AWS SES v2.
	EmailProviderSES = "ses"
	// EmailProviderStub logs instead of sending.
	EmailProviderStub = "stub"
)

// ProviderSelectionConfig captures what is needed to build an email sender.
type ProviderSelectionConfig struct {
	Preference     string
	SendGridAPIKey string
	SendGridHost   string
	SESClient      SESAPI
	SESFromName    string
}

// BuildEmailSender instantiates the preferred email sender. It returns the
// sender, or a reason when it could not be configured.
func BuildEmailSender(cfg ProviderSelectionConfig, logger *logging.Logger) (bridge.EmailSender, string) {
	if logger == nil {
		logger = logging.Default()
	}
	preference := strings.ToLower(strings.TrimSpace(cfg.Preference))
	if preference == "" {
		preference = EmailProviderSendGrid
	}

	switch preference {
	case EmailProviderSendGrid:
		if sender := NewSendGridSender(SendGridConfig{APIKey: cfg.SendGridAPIKey, Host: cfg.SendGridHost}, logger); sender != nil {
			return sender, ""
		}
		return nil, "SENDGRID_API_KEY missing"
	case EmailProviderSES:
		if sender := NewSESSender(cfg.SESClient, SESConfig{FromName: cfg.SESFromName}, logger); sender != nil {
			return sender, ""
		}
		return nil, "SES client not configured"
	case EmailProviderStub:
		return NewStubEmailSender(logger), ""
	default:
		return nil, fmt.Sprintf("unknown email provider %q", preference)
	}
}
